package snapshot

import (
	"bytes"
	"testing"

	"synckit/internal/crdt"
)

type memAdapter struct {
	snapshots map[string][]byte
}

func newMemAdapter() *memAdapter {
	return &memAdapter{snapshots: map[string][]byte{}}
}

func (m *memAdapter) SaveDelta(string, *crdt.Delta) error        { return nil }
func (m *memAdapter) LoadDeltas(string) ([]*crdt.Delta, error)   { return nil, nil }
func (m *memAdapter) Close() error                               { return nil }
func (m *memAdapter) SaveSnapshot(docID string, payload []byte) error {
	m.snapshots[docID] = append([]byte(nil), payload...)
	return nil
}
func (m *memAdapter) LoadLatestSnapshot(docID string) ([]byte, bool, error) {
	v, ok := m.snapshots[docID]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func TestAdapterRoundTripsSmallPayloadUncompressed(t *testing.T) {
	inner := newMemAdapter()
	a := Wrap(inner)

	payload := []byte("short")
	if err := a.SaveSnapshot("doc1", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.snapshots["doc1"][0] != tagNone {
		t.Fatalf("expected small payload to be tagged uncompressed")
	}
	got, found, err := a.LoadLatestSnapshot("doc1")
	if err != nil || !found {
		t.Fatalf("unexpected load result: found=%v err=%v", found, err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %q want %q", got, payload)
	}
}

func TestAdapterCompressesLargeCompressiblePayload(t *testing.T) {
	inner := newMemAdapter()
	a := Wrap(inner)

	payload := bytes.Repeat([]byte("aaaaaaaaaa"), 500) // 5000 bytes, highly compressible
	if err := a.SaveSnapshot("doc2", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := inner.snapshots["doc2"]
	if stored[0] != tagZstd {
		t.Fatalf("expected large compressible payload to be tagged zstd")
	}
	if len(stored) >= len(payload) {
		t.Fatalf("expected compressed payload to be smaller: stored=%d original=%d", len(stored), len(payload))
	}

	got, found, err := a.LoadLatestSnapshot("doc2")
	if err != nil || !found {
		t.Fatalf("unexpected load result: found=%v err=%v", found, err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("decompressed payload mismatch")
	}
}

func TestAdapterLoadMissingReturnsNotFound(t *testing.T) {
	a := Wrap(newMemAdapter())
	_, found, err := a.LoadLatestSnapshot("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestCompressRoundTripsSmallPayload(t *testing.T) {
	data := []byte("a small gossiped delta")
	wrapped := Compress(data)
	got, err := Decompress(wrapped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %q want %q", got, data)
	}
}

func TestCompressRoundTripsLargeCompressiblePayload(t *testing.T) {
	data := bytes.Repeat([]byte("gossip"), 1000)
	wrapped := Compress(data)
	if wrapped[0] != tagZstd {
		t.Fatalf("expected large compressible payload to be tagged zstd")
	}
	got, err := Decompress(wrapped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecompressRejectsUnknownTag(t *testing.T) {
	_, err := Decompress([]byte{0xFF, 1, 2, 3})
	if err == nil {
		t.Fatal("expected an error for unknown compression tag")
	}
}
