package crdt

import (
	"sync"

	"github.com/google/uuid"
)

// TombstoneMarker is the distinguished sentinel field value for deletion.
const TombstoneMarker = "__deleted"

// Delta is a single update targeting one document, immutable after
// creation. ID is unique and used for ACK correlation; duplicates
// (by id) are idempotent.
type Delta struct {
	ID       string                 `json:"id"`
	ClientID string                 `json:"clientId"`
	WallTS   int64                  `json:"wallTs"`
	Data     map[string]interface{} `json:"data"`
	VC       *VectorClock           `json:"vectorClock"`
}

// NewDelta mints a delta with a fresh id.
func NewDelta(clientID string, wallTS int64, data map[string]interface{}, vc *VectorClock) *Delta {
	return &Delta{
		ID:       uuid.NewString(),
		ClientID: clientID,
		WallTS:   wallTS,
		Data:     data,
		VC:       vc,
	}
}

// DeltaLog is the append-only log of deltas accepted by a document.
// Grounded on the teacher's DeltaLog (internal/domain/ctxsync/delta.go):
// dedup by id, per-source index, and vc-filtered retrieval.
type DeltaLog struct {
	mu       sync.RWMutex
	deltas   []*Delta
	byID     map[string]*Delta
	bySource map[string][]*Delta
}

// NewDeltaLog returns an empty log.
func NewDeltaLog() *DeltaLog {
	return &DeltaLog{
		byID:     make(map[string]*Delta),
		bySource: make(map[string][]*Delta),
	}
}

// Append adds d to the log. Returns false if d.ID was already present
// (idempotent no-op, per spec.md §3 "duplicates are idempotent").
func (l *DeltaLog) Append(d *Delta) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.byID[d.ID]; exists {
		return false
	}
	l.deltas = append(l.deltas, d)
	l.byID[d.ID] = d
	l.bySource[d.ClientID] = append(l.bySource[d.ClientID], d)
	return true
}

// Get returns the delta with the given id, if present.
func (l *DeltaLog) Get(id string) (*Delta, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.byID[id]
	return d, ok
}

// All returns every delta in append order.
func (l *DeltaLog) All() []*Delta {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Delta, len(l.deltas))
	copy(out, l.deltas)
	return out
}

// Since returns deltas whose vector clock is not <= vc, i.e. not already
// observed by a caller that has seen everything up to vc. Per spec.md
// §4.2 "deltas_since(vc)".
func (l *DeltaLog) Since(vc *VectorClock) []*Delta {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Delta, 0)
	for _, d := range l.deltas {
		if !d.VC.LessEqualOrEqual(vc) {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of deltas stored.
func (l *DeltaLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.deltas)
}

// IsTombstoneValue reports whether v is the tombstone sentinel
// {__deleted: true}.
func IsTombstoneValue(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	deleted, ok := m[TombstoneMarker]
	if !ok {
		return false
	}
	b, ok := deleted.(bool)
	return ok && b
}
