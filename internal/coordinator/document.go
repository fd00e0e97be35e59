package coordinator

import (
	"sync"
	"time"

	"synckit/internal/crdt"
)

// batchEntry is the per-document coalescing window described in §3
// ("Batch Entry") and §4.5 step 6-7: later writes for the same field
// overwrite earlier ones within the window; vector clocks merge by
// pointwise max.
type batchEntry struct {
	fields  map[string]interface{}
	vc      *crdt.VectorClock
	created time.Time
	timer   *time.Timer
}

// Document wraps exactly one CRDT per doc_id: a MapDocument for field
// writes, or a FugueText for text operations. Kind is fixed on first
// write and enforced thereafter. opMu guards the batch entry. The CRDTs
// serialize their own mutations under their own locks (MapDocument and
// FugueText each hold a mutex), which covers §5's "all mutations on a
// single document are serialized" requirement; applying a delta and
// reading back its authoritative field values are two separate locked
// steps.
type Document struct {
	ID string

	opMu  sync.Mutex
	batch *batchEntry

	kindMu sync.RWMutex
	isText bool
	kindSet bool

	Map  *crdt.MapDocument
	Text *crdt.FugueText
}

// newDocument lazily creates a document shell; its kind is decided on
// first write (§3: "created on first reference").
func newDocument(docID, localClientID string) *Document {
	return &Document{
		ID:   docID,
		Map:  crdt.NewMapDocument(docID),
		Text: crdt.NewFugueText(docID, localClientID),
	}
}

// ensureKind pins the document's kind on first write and rejects a
// later write of the other kind (malformed/cross-kind traffic is a
// protocol error, not silently accepted).
func (d *Document) ensureKind(wantText bool) bool {
	d.kindMu.Lock()
	defer d.kindMu.Unlock()
	if !d.kindSet {
		d.kindSet = true
		d.isText = wantText
		return true
	}
	return d.isText == wantText
}

// DocStatsSnapshot merges MapDocument and FugueText diagnostics for the
// dashboard and /metrics (SPEC_FULL.md coordinator supplement).
type DocStatsSnapshot struct {
	DocID      string
	IsText     bool
	Map        crdt.DocStats
	Text       crdt.TextStats
	Subscribers int
}
