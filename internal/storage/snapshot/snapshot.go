// Package snapshot wraps a storage.Adapter to transparently compress
// snapshot payloads with zstd, using a size-threshold + compression-ratio
// gate grounded on the teacher's internal/infrastructure/network/libp2p/
// compression.go. Compress/Decompress are exported so the cross-node
// publisher (internal/publisher/libp2p) can reuse the same gating logic
// for gossiped deltas instead of carrying a second, wire-specific copy.
package snapshot

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"synckit/internal/storage"
)

const (
	compressionThreshold = 1024
	compressionRatio     = 0.8
)

const (
	tagNone byte = 0x00
	tagZstd byte = 0x01
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("snapshot: failed to create zstd decoder: %v", err))
	}
}

// Adapter decorates a storage.Adapter, compressing snapshot payloads on
// the way in and decompressing them on the way out. Delta persistence
// passes through unchanged — individual deltas are small and already
// JSON, so compressing them would cost more CPU than it saves in bytes.
type Adapter struct {
	storage.Adapter
}

// Wrap returns a snapshot-compressing decorator around inner.
func Wrap(inner storage.Adapter) *Adapter {
	return &Adapter{Adapter: inner}
}

// SaveSnapshot compresses payload (if it's large enough to be worth it)
// before delegating to the wrapped adapter.
func (a *Adapter) SaveSnapshot(docID string, payload []byte) error {
	return a.Adapter.SaveSnapshot(docID, Compress(payload))
}

// LoadLatestSnapshot delegates to the wrapped adapter and decompresses
// the result.
func (a *Adapter) LoadLatestSnapshot(docID string) ([]byte, bool, error) {
	raw, found, err := a.Adapter.LoadLatestSnapshot(docID)
	if err != nil || !found {
		return nil, found, err
	}
	payload, err := Decompress(raw)
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: failed to decompress snapshot for %s: %w", docID, err)
	}
	return payload, true, nil
}

// Compress tags data with a one-byte compression marker, zstd-encoding
// it first when it's both large enough (compressionThreshold) and
// compressible enough (compressionRatio) to be worth the CPU. Exported
// so other components gated on the same tradeoff (the libp2p publisher's
// gossiped deltas) can reuse this instead of reimplementing it.
func Compress(data []byte) []byte {
	if len(data) < compressionThreshold {
		return append([]byte{tagNone}, data...)
	}
	compressed := encoder.EncodeAll(data, nil)
	if float64(len(compressed)) < float64(len(data))*compressionRatio {
		return append([]byte{tagZstd}, compressed...)
	}
	return append([]byte{tagNone}, data...)
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("snapshot: empty payload")
	}
	tag, payload := data[0], data[1:]
	switch tag {
	case tagNone:
		return payload, nil
	case tagZstd:
		return decoder.DecodeAll(payload, nil)
	default:
		return nil, fmt.Errorf("snapshot: unknown compression tag %d", tag)
	}
}

var _ storage.Adapter = (*Adapter)(nil)
