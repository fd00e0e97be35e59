package crdt

import "sync"

// FieldEntry is the resolved state for one field of a MapDocument, kept
// even after tombstoning so later writes can still be compared against it.
type FieldEntry struct {
	Value       interface{}
	WallTS      int64
	Counter     uint64
	ClientID    string
	IsTombstone bool
	// Revision is a diagnostics-only monotonic counter incremented on
	// every accepted write regardless of LWW outcome. Never used in
	// tiebreak, never exposed by BuildState.
	Revision uint64
}

// wins reports whether candidate strictly wins over current under the
// three-tier LWW ordering from spec.md §4.2: wall_ts, then counter, then
// client_id lexicographic on raw bytes.
func wins(curTS int64, curCounter uint64, curClient string, ts int64, counter uint64, client string) bool {
	if ts != curTS {
		return ts > curTS
	}
	if counter != curCounter {
		return counter > curCounter
	}
	return client > curClient
}

// MapDocument is a keyed document whose fields converge under
// Last-Writer-Wins. Mutations are serialized by mu, matching §5's
// per-document lock requirement.
type MapDocument struct {
	mu             sync.Mutex
	DocID          string
	deltas         *DeltaLog
	resolvedFields map[string]*FieldEntry
	vc             *VectorClock
}

// NewMapDocument creates an empty document, lazily, as §3 describes.
func NewMapDocument(docID string) *MapDocument {
	return &MapDocument{
		DocID:          docID,
		deltas:         NewDeltaLog(),
		resolvedFields: make(map[string]*FieldEntry),
		vc:             NewVectorClock(),
	}
}

// AddDelta appends stored to the log, merges the clock, and applies it
// to resolved_fields. Either all fields of the delta are considered or
// none (atomic per delta, per spec.md §4.2 failure semantics). Returns
// false if the delta was already applied (idempotent duplicate).
func (d *MapDocument) AddDelta(stored *Delta) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.deltas.Append(stored) {
		return false
	}
	d.vc.MergeInPlace(stored.VC)
	d.applyFields(stored)
	return true
}

// applyFields runs the per-field LWW resolution for one delta. Malformed
// data (non-object top level) is ignored at the field layer, but the
// delta itself stays in the log (so later observers can diagnose it) —
// AddDelta already appended it before calling this.
func (d *MapDocument) applyFields(stored *Delta) {
	if stored.Data == nil {
		return
	}
	counter := stored.VC.Get(stored.ClientID)
	for field, value := range stored.Data {
		cur, exists := d.resolvedFields[field]
		tombstone := IsTombstoneValue(value)
		if !exists {
			d.resolvedFields[field] = &FieldEntry{
				Value:       value,
				WallTS:      stored.WallTS,
				Counter:     counter,
				ClientID:    stored.ClientID,
				IsTombstone: tombstone,
				Revision:    1,
			}
			continue
		}
		if wins(cur.WallTS, cur.Counter, cur.ClientID, stored.WallTS, counter, stored.ClientID) {
			cur.Value = value
			cur.WallTS = stored.WallTS
			cur.Counter = counter
			cur.ClientID = stored.ClientID
			cur.IsTombstone = tombstone
		}
		cur.Revision++
	}
}

// AddDeltaWithIncrement ticks the local clock for clientID, produces a
// delta carrying the new clock, and applies it. wallTS is supplied by
// the caller (the coordinator's clock source, per §9's "explicit
// context" note) rather than read from a global clock here.
func (d *MapDocument) AddDeltaWithIncrement(clientID string, wallTS int64, data map[string]interface{}) (*Delta, bool) {
	d.mu.Lock()
	newVC := d.vc.Clone()
	d.mu.Unlock()

	if _, ok := newVC.Tick(clientID); !ok {
		return nil, false
	}
	delta := NewDelta(clientID, wallTS, data, newVC)
	if !d.AddDelta(delta) {
		return nil, false
	}
	return delta, true
}

// BuildState projects resolved_fields to field->value, omitting
// tombstoned entries.
func (d *MapDocument) BuildState() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]interface{}, len(d.resolvedFields))
	for field, entry := range d.resolvedFields {
		if entry.IsTombstone {
			continue
		}
		out[field] = entry.Value
	}
	return out
}

// FieldValue returns the current resolved value for field and whether it
// exists at all (exists is true even for tombstoned fields, matching the
// "authoritative per-field rewrite" contract in §4.5 step 5: a concurrent
// delete that wins still needs its tombstone reported, not a missing key).
func (d *MapDocument) FieldValue(field string) (value interface{}, isTombstone bool, exists bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.resolvedFields[field]
	if !ok {
		return nil, false, false
	}
	return entry.Value, entry.IsTombstone, true
}

// DeltasSince returns deltas not observed by vc.
func (d *MapDocument) DeltasSince(vc *VectorClock) []*Delta {
	return d.deltas.Since(vc)
}

// VectorClock returns a snapshot of the document's merged clock.
func (d *MapDocument) VectorClock() *VectorClock {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vc.Clone()
}

// DocStats summarizes a MapDocument for the dashboard and /metrics.
type DocStats struct {
	FieldCount     int
	TombstoneCount int
	DeltaCount     int
}

// Stats returns diagnostics (SPEC_FULL.md MapDocument supplement).
func (d *MapDocument) Stats() DocStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := DocStats{DeltaCount: d.deltas.Len()}
	for _, entry := range d.resolvedFields {
		if entry.IsTombstone {
			s.TombstoneCount++
		} else {
			s.FieldCount++
		}
	}
	return s
}
