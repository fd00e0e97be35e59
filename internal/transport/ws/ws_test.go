package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"synckit/internal/coordinator"
	"synckit/internal/obs/log"
	"synckit/internal/wire"
)

type allowAll struct{}

func (allowAll) CanRead(string, string) bool  { return true }
func (allowAll) CanWrite(string, string) bool { return true }

func newTestServer(t *testing.T) (*httptest.Server, *coordinator.Coordinator) {
	t.Helper()
	cfg := coordinator.Config{
		BatchWindow:         10 * time.Millisecond,
		OutboundQueueDepth:  16,
		MaxDocumentIDLength: 256,
		AwarenessTTL:        time.Minute,
		MaxMessagesPerMin:   10000,
		LocalNodeID:         "node-test",
	}
	var n int64
	clock := func() int64 { n++; return n }
	c := coordinator.New(cfg, allowAll{}, clock, nil, nil, log.NewConsole(zerolog.Disabled))
	srv := New(c, nil, nil, log.NewConsole(zerolog.Disabled), 50*time.Millisecond, time.Second, 2_000_000)

	ts := httptest.NewServer(srv)
	return ts, c
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func TestSubscribeAndDeltaRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	conn := dial(t, ts)
	defer conn.Close()

	sub, _ := wire.EncodePayload(wire.Subscribe, 0, wire.SubscribePayload{ID: "s1", DocumentID: "doc1"})
	if err := conn.WriteMessage(websocket.BinaryMessage, wire.Encode(sub)); err != nil {
		t.Fatalf("failed to write subscribe frame: %v", err)
	}

	delta, _ := wire.EncodePayload(wire.Delta, 1000, wire.DeltaPayload{DocumentID: "doc1", Delta: map[string]interface{}{"title": "hello"}, VectorClock: map[string]uint64{"client-a": 1}})
	if err := conn.WriteMessage(websocket.BinaryMessage, wire.Encode(delta)); err != nil {
		t.Fatalf("failed to write delta frame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var sawAck, sawDelta bool
	for i := 0; i < 5 && !(sawAck && sawDelta); i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		frame, err := wire.Decode(data, 0)
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		switch frame.Type {
		case wire.Ack:
			sawAck = true
		case wire.Delta:
			sawDelta = true
		}
	}
	if !sawAck {
		t.Fatal("expected an ACK frame")
	}
	if !sawDelta {
		t.Fatal("expected a flushed DELTA frame")
	}
}
