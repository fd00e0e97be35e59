// Package badger implements storage.Adapter on top of an embedded
// BadgerDB instance. Grounded on the teacher's
// internal/infrastructure/storage/badger/manager.go (tuned
// badger.Options) and src/infrastructure/storage/badger/delta_store.go
// (key-prefix + zero-padded-timestamp index scheme for range scans).
package badger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"synckit/internal/crdt"
)

const (
	deltaPrefix    = "delta:"
	deltaTSPrefix  = "delta_ts:"
	snapshotPrefix = "snapshot:"
)

// Store is a storage.Adapter backed by a single BadgerDB database.
type Store struct {
	db *badgerdb.DB
}

// Open opens (creating if absent) a BadgerDB at dir with the teacher's
// tuned options: a 64MB value log, a single kept version (deltas are
// immutable and never updated in place), compaction on close, and two
// background compactors.
func Open(dir string) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir).
		WithValueLogFileSize(64 << 20).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithNumCompactors(2).
		WithDetectConflicts(false).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20).
		WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: failed to open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func deltaKey(docID string, wallTS int64, deltaID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", deltaPrefix, docID, wallTS, deltaID))
}

func deltaTSIndexKey(docID string, wallTS int64, deltaID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", deltaTSPrefix, docID, wallTS, deltaID))
}

func snapshotKey(docID string) []byte {
	return []byte(fmt.Sprintf("%s%s", snapshotPrefix, docID))
}

// SaveDelta persists d under a doc-scoped, time-ordered primary key and
// a matching secondary index key, mirroring delta_store.go's two-key
// layout (the index key exists so a future time-range scan doesn't need
// to share the primary key's exact format).
func (s *Store) SaveDelta(docID string, d *crdt.Delta) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("badger: failed to marshal delta: %w", err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(deltaKey(docID, d.WallTS, d.ID), data); err != nil {
			return err
		}
		return txn.Set(deltaTSIndexKey(docID, d.WallTS, d.ID), []byte(d.ID))
	})
}

// LoadDeltas returns every persisted delta for docID, in key order
// (which is wall_ts order, since the key is zero-padded).
func (s *Store) LoadDeltas(docID string) ([]*crdt.Delta, error) {
	prefix := []byte(fmt.Sprintf("%s%s:", deltaPrefix, docID))
	var out []*crdt.Delta
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if strings.HasPrefix(string(item.Key()), deltaTSPrefix) {
				continue
			}
			// A document whose id extends docID with ":..." shares this
			// prefix; docID's own keys continue with the 20-digit wall_ts.
			rest := item.Key()[len(prefix):]
			if len(rest) < 21 || rest[20] != ':' {
				continue
			}
			if _, err := strconv.ParseInt(string(rest[:20]), 10, 64); err != nil {
				continue
			}
			var d crdt.Delta
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				return err
			}
			out = append(out, &d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: failed to load deltas for %s: %w", docID, err)
	}
	return out, nil
}

// SaveSnapshot overwrites the single latest snapshot for docID.
func (s *Store) SaveSnapshot(docID string, payload []byte) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(snapshotKey(docID), payload)
	})
}

// LoadLatestSnapshot returns the most recently saved snapshot for docID.
func (s *Store) LoadLatestSnapshot(docID string) ([]byte, bool, error) {
	var payload []byte
	found := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(snapshotKey(docID))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			payload = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("badger: failed to load snapshot for %s: %w", docID, err)
	}
	return payload, found, nil
}

// RunGC triggers BadgerDB's value-log garbage collection at the given
// discard ratio, matching the teacher's manager.go RunGC helper.
func (s *Store) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if err == badgerdb.ErrNoRewrite {
		return nil
	}
	return err
}

// Close releases the underlying BadgerDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// parseWallTS extracts the wall_ts segment from a delta key. It is kept
// for symmetry with delta_store.go's key-parsing utilities; nothing in
// this module calls it.
func parseWallTS(key []byte) (int64, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) < 3 {
		return 0, fmt.Errorf("badger: malformed key %q", key)
	}
	return strconv.ParseInt(parts[len(parts)-2], 10, 64)
}
