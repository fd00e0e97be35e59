package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// HeaderSize is the fixed header length: 1-byte type + 8-byte timestamp
// + 4-byte payload length.
const HeaderSize = 1 + 8 + 4

// DefaultMaxPayloadBytes is the default ceiling on payload_len (§4.4).
const DefaultMaxPayloadBytes = 2_000_000

// Frame is one decoded wire message.
type Frame struct {
	Type      Type
	Timestamp int64
	Payload   []byte
}

// Encode serializes f into the binary frame layout. Legacy JSON-text
// mode is not produced by this encoder — only accepted on decode.
func Encode(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint64(buf[1:9], uint64(f.Timestamp))
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(f.Payload)))
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// Decode parses a complete binary frame from buf, rejecting frames
// shorter than the header or whose declared payload_len exceeds the
// remaining buffer or maxPayload (§4.4's parsing contract).
func Decode(buf []byte, maxPayload int) (Frame, error) {
	if len(buf) < HeaderSize {
		return Frame{}, fmt.Errorf("wire: frame too short: %d bytes", len(buf))
	}
	typ := Type(buf[0])
	ts := int64(binary.BigEndian.Uint64(buf[1:9]))
	payloadLen := binary.BigEndian.Uint32(buf[9:13])
	if maxPayload > 0 && payloadLen > uint32(maxPayload) {
		return Frame{}, fmt.Errorf("wire: payload_len %d exceeds max %d", payloadLen, maxPayload)
	}
	if int(payloadLen) > len(buf)-HeaderSize {
		return Frame{}, fmt.Errorf("wire: declared payload_len %d exceeds remaining buffer", payloadLen)
	}
	payload := buf[HeaderSize : HeaderSize+int(payloadLen)]
	return Frame{Type: typ, Timestamp: ts, Payload: payload}, nil
}

// IsJSONText reports whether buf is a legacy JSON-text message rather
// than a binary frame: the receiver auto-detects protocol by checking
// whether the first byte is '{' (§4.4).
func IsJSONText(buf []byte) bool {
	return len(buf) > 0 && buf[0] == '{'
}

// jsonEnvelope is the shape of a legacy JSON-text message: a type field
// alongside the same payload keys a binary frame would carry.
type jsonEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// DecodeAny decodes buf as a binary frame, or — if it auto-detects as
// JSON text — synthesizes an equivalent Frame so callers have a single
// decode path regardless of transport mode.
func DecodeAny(buf []byte, maxPayload int) (Frame, error) {
	if !IsJSONText(buf) {
		return Decode(buf, maxPayload)
	}
	var env jsonEnvelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return Frame{}, fmt.Errorf("wire: malformed JSON-text frame: %w", err)
	}
	typ, ok := nameToType[env.Type]
	if !ok {
		return Frame{}, fmt.Errorf("wire: unknown JSON-text frame type %q", env.Type)
	}
	return Frame{Type: typ, Payload: env.Data}, nil
}

var nameToType = map[string]Type{
	"AUTH": Auth, "AUTH_SUCCESS": AuthSuccess, "AUTH_ERROR": AuthError,
	"SUBSCRIBE": Subscribe, "UNSUBSCRIBE": Unsubscribe,
	"SYNC_REQUEST": SyncRequest, "SYNC_RESPONSE": SyncResponse,
	"SYNC_STEP1": SyncStep1, "SYNC_STEP2": SyncStep2,
	"DELTA": Delta, "ACK": Ack,
	"DELTA_BATCH": DeltaBatch, "DELTA_BATCH_CHUNK": DeltaBatchChunk,
	"PING": Ping, "PONG": Pong,
	"AWARENESS_UPDATE": AwarenessUpdate, "AWARENESS_SUBSCRIBE": AwarenessSubscribe,
	"AWARENESS_STATE": AwarenessState,
	"ERROR":           Error,
}

// DecodePayload unmarshals a frame's JSON payload into v, reporting a
// wire error for a missing-required-key shape (§4.4: "required keys
// missing → wire error" is enforced by the caller's struct tags plus
// this error path for malformed JSON).
func DecodePayload(f Frame, v interface{}) error {
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("wire: malformed payload for %s: %w", f.Type, err)
	}
	return nil
}

// EncodePayload marshals v into a Frame of the given type at timestamp ts.
func EncodePayload(typ Type, ts int64, v interface{}) (Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: failed to marshal %s payload: %w", typ, err)
	}
	return Frame{Type: typ, Timestamp: ts, Payload: data}, nil
}
