package coordinator

import (
	"sync/atomic"
	"testing"
	"time"

	"synckit/internal/wire"
)

type allowAllPerms struct{}

func (allowAllPerms) CanRead(string, string) bool  { return true }
func (allowAllPerms) CanWrite(string, string) bool { return true }

func testClock() ClockSource {
	var n int64
	return func() int64 { return atomic.AddInt64(&n, 1) }
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := Config{
		BatchWindow:         20 * time.Millisecond,
		OutboundQueueDepth:  16,
		MaxDocumentIDLength: 256,
		AwarenessTTL:        30 * time.Second,
		MaxMessagesPerMin:   10000,
		LocalNodeID:         "node-test",
	}
	return New(cfg, allowAllPerms{}, testClock(), nil, nil, testLogger())
}

func deltaFrame(t *testing.T, docID string, data map[string]interface{}, vc map[string]uint64) wire.Frame {
	t.Helper()
	f, err := wire.EncodePayload(wire.Delta, 1000, wire.DeltaPayload{DocumentID: docID, Delta: data, VectorClock: vc})
	if err != nil {
		t.Fatalf("failed to encode delta frame: %v", err)
	}
	return f
}

// Scenario 6 (§8): batch coalescing. Three deltas for the same field
// within the batch window produce exactly one flush and one DELTA frame
// carrying the last value.
func TestCoordinatorBatchCoalescing(t *testing.T) {
	c := newTestCoordinator(t)
	conn := c.RegisterConn("conn1", "127.0.0.1:1")
	c.Subscribe("conn1", "d4")

	for i, v := range []string{"1", "2", "3"} {
		f := deltaFrame(t, "d4", map[string]interface{}{"z": v}, map[string]uint64{"client-a": uint64(i + 1)})
		if _, err := c.ApplyDelta("conn1", "client-a", f); err != nil {
			t.Fatalf("unexpected ApplyDelta error: %v", err)
		}
	}

	var received []wire.DeltaPayload
	deadline := time.After(500 * time.Millisecond)
	for len(received) == 0 {
		select {
		case frame := <-conn.Outbound:
			var payload wire.DeltaPayload
			if err := wire.DecodePayload(frame, &payload); err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			received = append(received, payload)
		case <-deadline:
			t.Fatal("timed out waiting for flushed DELTA frame")
		}
	}

	// Leave room for a second flush to show up before counting.
	select {
	case frame := <-conn.Outbound:
		t.Fatalf("expected exactly one DELTA frame for field z, got an extra %s frame", frame.Type)
	case <-time.After(100 * time.Millisecond):
	}

	if len(received) != 1 {
		t.Fatalf("expected exactly one DELTA frame for field z, got %d", len(received))
	}
	if received[0].Delta["z"] != "3" {
		t.Fatalf("expected coalesced value 3, got %v", received[0].Delta["z"])
	}
}

func TestCoordinatorApplyDeltaRejectsInvalidDocID(t *testing.T) {
	c := newTestCoordinator(t)
	c.RegisterConn("conn1", "127.0.0.1:1")
	f := deltaFrame(t, "bad id!", map[string]interface{}{"x": "1"}, nil)
	if _, err := c.ApplyDelta("conn1", "client-a", f); err == nil {
		t.Fatal("expected an error for an invalid document id")
	}
}

// Scenario 4 (§8): SyncRequest with empty clock returns full state.
func TestCoordinatorSyncRequestEmptyClockReturnsFullState(t *testing.T) {
	c := newTestCoordinator(t)
	c.RegisterConn("conn1", "127.0.0.1:1")
	c.ApplyDelta("conn1", "client-a", deltaFrame(t, "d2", map[string]interface{}{"x": "1"}, map[string]uint64{"client-a": 1}))
	c.ApplyDelta("conn1", "client-a", deltaFrame(t, "d2", map[string]interface{}{"y": "2"}, map[string]uint64{"client-a": 2}))

	req, _ := wire.EncodePayload(wire.SyncRequest, 1, wire.SyncRequestPayload{ID: "req1", DocumentID: "d2"})
	resp, err := c.SyncRequest("client-a", req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.RequestID != "req1" {
		t.Fatalf("expected requestId echoed, got %q", resp.RequestID)
	}
	if resp.State["x"] != "1" || resp.State["y"] != "2" {
		t.Fatalf("unexpected state: %v", resp.State)
	}
}

func TestCoordinatorCrossKindRejected(t *testing.T) {
	c := newTestCoordinator(t)
	c.RegisterConn("conn1", "127.0.0.1:1")
	if _, err := c.ApplyDelta("conn1", "client-a", deltaFrame(t, "shared", map[string]interface{}{"x": "1"}, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	textFrame, _ := wire.EncodePayload(wire.Delta, 1, wire.FugueOpPayload{DocumentID: "shared", Node: wire.FugueNodeWire{ClientID: "a", Seq: 1, Side: "right", Value: "x"}})
	if _, err := c.ApplyTextOp("conn1", "client-a", textFrame); err == nil {
		t.Fatal("expected an error applying a text op to a map document")
	}
}
