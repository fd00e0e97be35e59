// Package storage defines the persistence contract external to the
// replicated document core (§6 "Persistence contract (external)"): the
// coordinator calls these asynchronously and tolerates failure.
package storage

import "synckit/internal/crdt"

// Adapter is implemented by every storage backend (badger, postgres).
// The coordinator never blocks a client ack on these calls succeeding —
// storage unavailability is a degraded-mode condition, not a client-
// visible failure (§7).
type Adapter interface {
	// SaveDelta persists a single delta for docID.
	SaveDelta(docID string, delta *crdt.Delta) error
	// LoadDeltas returns every persisted delta for docID, ordered by
	// wall_ts.
	LoadDeltas(docID string) ([]*crdt.Delta, error)
	// SaveSnapshot persists a point-in-time snapshot of a document's
	// resolved state (payload is adapter-opaque: a MapDocument field
	// projection or a FugueText node list, already serialized by the
	// caller).
	SaveSnapshot(docID string, payload []byte) error
	// LoadLatestSnapshot returns the most recently saved snapshot for
	// docID, or (nil, false, nil) if none exists.
	LoadLatestSnapshot(docID string) (payload []byte, found bool, err error)
	// Close releases any underlying resources.
	Close() error
}
