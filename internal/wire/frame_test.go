package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{Type: Delta, Timestamp: 1234567890, Payload: []byte(`{"id":"1"}`)}
	buf := Encode(f)
	got, err := Decode(buf, DefaultMaxPayloadBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != f.Type || got.Timestamp != f.Timestamp || string(got.Payload) != string(f.Payload) {
		t.Fatalf("round-trip mismatch: got %+v", got)
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	if _, err := Decode(make([]byte, 5), DefaultMaxPayloadBytes); err == nil {
		t.Fatal("expected error for frame shorter than header")
	}
}

func TestDecodeRejectsOversizePayload(t *testing.T) {
	f := Frame{Type: Delta, Timestamp: 1, Payload: make([]byte, 100)}
	buf := Encode(f)
	if _, err := Decode(buf, 10); err == nil {
		t.Fatal("expected error for payload exceeding configured max")
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	f := Frame{Type: Delta, Timestamp: 1, Payload: make([]byte, 100)}
	buf := Encode(f)
	truncated := buf[:HeaderSize+10]
	if _, err := Decode(truncated, DefaultMaxPayloadBytes); err == nil {
		t.Fatal("expected error when declared length exceeds remaining buffer")
	}
}

func TestIsJSONTextAutoDetect(t *testing.T) {
	if !IsJSONText([]byte(`{"type":"PING"}`)) {
		t.Fatal("expected JSON text to be detected")
	}
	if IsJSONText(Encode(Frame{Type: Ping, Timestamp: 1})) {
		t.Fatal("binary frame must not be detected as JSON text")
	}
}

func TestDecodeAnyHandlesBothModes(t *testing.T) {
	bin := Encode(Frame{Type: Ping, Timestamp: 1, Payload: []byte(`{}`)})
	f1, err := DecodeAny(bin, DefaultMaxPayloadBytes)
	if err != nil || f1.Type != Ping {
		t.Fatalf("binary decode failed: %v %+v", err, f1)
	}

	legacy := []byte(`{"type":"PING","data":{}}`)
	f2, err := DecodeAny(legacy, DefaultMaxPayloadBytes)
	if err != nil || f2.Type != Ping {
		t.Fatalf("legacy JSON decode failed: %v %+v", err, f2)
	}
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	payload := DeltaPayload{ID: "m1", DocumentID: "doc1", Delta: map[string]interface{}{"x": "1"}, VectorClock: map[string]uint64{"a": 1}}
	f, err := EncodePayload(Delta, 42, payload)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	var got DeltaPayload
	if err := DecodePayload(f, &got); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.DocumentID != "doc1" || got.Delta["x"] != "1" {
		t.Fatalf("payload mismatch: %+v", got)
	}
}
