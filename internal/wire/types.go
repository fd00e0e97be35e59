// Package wire implements the length-framed binary protocol shared by
// every SyncKit server port (§4.4, §6).
package wire

// Type is the one-byte frame type code. The full enumeration is fixed
// and shared across server ports; unused codes are still reserved here
// even where this port never emits them (DELTA_BATCH_CHUNK, §9).
type Type byte

const (
	Auth        Type = 0x01
	AuthSuccess Type = 0x02
	AuthError   Type = 0x03

	Subscribe    Type = 0x10
	Unsubscribe  Type = 0x11
	SyncRequest  Type = 0x12
	SyncResponse Type = 0x13
	SyncStep1    Type = 0x14
	SyncStep2    Type = 0x15

	Delta      Type = 0x20
	Ack        Type = 0x21
	DeltaBatch Type = 0x22
	// DeltaBatchChunk is reserved (§9 open question): defined in the type
	// enumeration but never invoked on the hot path by this port.
	DeltaBatchChunk Type = 0x23

	Ping Type = 0x30
	Pong Type = 0x31

	AwarenessUpdate    Type = 0x40
	AwarenessSubscribe Type = 0x41
	AwarenessState     Type = 0x42

	Error Type = 0xFF
)

func (t Type) String() string {
	switch t {
	case Auth:
		return "AUTH"
	case AuthSuccess:
		return "AUTH_SUCCESS"
	case AuthError:
		return "AUTH_ERROR"
	case Subscribe:
		return "SUBSCRIBE"
	case Unsubscribe:
		return "UNSUBSCRIBE"
	case SyncRequest:
		return "SYNC_REQUEST"
	case SyncResponse:
		return "SYNC_RESPONSE"
	case SyncStep1:
		return "SYNC_STEP1"
	case SyncStep2:
		return "SYNC_STEP2"
	case Delta:
		return "DELTA"
	case Ack:
		return "ACK"
	case DeltaBatch:
		return "DELTA_BATCH"
	case DeltaBatchChunk:
		return "DELTA_BATCH_CHUNK"
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	case AwarenessUpdate:
		return "AWARENESS_UPDATE"
	case AwarenessSubscribe:
		return "AWARENESS_SUBSCRIBE"
	case AwarenessState:
		return "AWARENESS_STATE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DeltaPayload is the JSON body of a DELTA frame (§6).
type DeltaPayload struct {
	ID          string                 `json:"id"`
	DocumentID  string                 `json:"documentId"`
	Delta       map[string]interface{} `json:"delta"`
	VectorClock map[string]uint64      `json:"vectorClock"`
}

// SubscribePayload is the JSON body of a SUBSCRIBE/UNSUBSCRIBE frame.
type SubscribePayload struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
}

// SyncRequestPayload is the JSON body of a SYNC_REQUEST frame.
type SyncRequestPayload struct {
	ID          string            `json:"id"`
	DocumentID  string            `json:"documentId"`
	VectorClock map[string]uint64 `json:"vectorClock,omitempty"`
}

// SyncResponsePayload is the JSON body of a SYNC_RESPONSE frame.
type SyncResponsePayload struct {
	ID         string                 `json:"id"`
	RequestID  string                 `json:"requestId"`
	DocumentID string                 `json:"documentId"`
	State      map[string]interface{} `json:"state,omitempty"`
	Deltas     []DeltaPayload         `json:"deltas,omitempty"`
}

// AckPayload is the JSON body of an ACK frame.
type AckPayload struct {
	ID      string `json:"id"`
	DeltaID string `json:"deltaId"`
}

// ErrorPayload is the JSON body of an ERROR frame (§7): a human-readable
// reason plus a machine-readable kind.
type ErrorPayload struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// AwarenessPayload is the JSON body of AWARENESS_UPDATE/AWARENESS_STATE
// frames (§4.7).
type AwarenessPayload struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"documentId"`
	ClientID   string                 `json:"clientId"`
	State      map[string]interface{} `json:"state"`
}

// FugueNodeWire is the wire representation of a crdt.Node: a Fugue text
// node carried inline on a DELTA frame when the payload is a text
// operation rather than a field write (§4.6).
type FugueNodeWire struct {
	ClientID       string `json:"clientId"`
	Seq            uint64 `json:"seq"`
	HasParent      bool   `json:"hasParent"`
	ParentClientID string `json:"parentClientId,omitempty"`
	ParentSeq      uint64 `json:"parentSeq,omitempty"`
	Side           string `json:"side"`
	Value          string `json:"value"`
	IsTombstone    bool   `json:"isTombstone"`
}

// FugueOpPayload is the JSON body of a DELTA frame targeting a text
// document.
type FugueOpPayload struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"documentId"`
	Node       FugueNodeWire `json:"node"`
}

// SyncStepResponsePayload is the JSON body of a SYNC_STEP2 frame: the
// flat-operation-list alternative to SYNC_RESPONSE (§4.5).
type SyncStepResponsePayload struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	Deltas     []DeltaPayload  `json:"deltas,omitempty"`
	Nodes      []FugueNodeWire `json:"nodes,omitempty"`
}
