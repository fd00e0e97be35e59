// Package ws implements the /ws transport (§6): a gorilla/websocket
// upgrade plus a read pump and write pump per connection, dispatching
// length-framed wire.Frame messages into the coordinator. Grounded on
// the gorilla/websocket read/write pump idiom used across the example
// pack, generalized to SyncKit's binary frame format instead of raw
// text/JSON messages.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"synckit/internal/auth"
	"synckit/internal/coordinator"
	"synckit/internal/obs/errs"
	"synckit/internal/obs/log"
	"synckit/internal/wire"
)

// Server upgrades HTTP connections to WebSocket and drives each one's
// read/write pumps against a shared Coordinator.
type Server struct {
	coord    *coordinator.Coordinator
	issuer   *auth.Issuer
	perms    *auth.Permissions
	logger   *log.Logger
	upgrader websocket.Upgrader

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	maxMessageBytes   int64
}

// New builds a Server. issuer/perms may be nil to run unauthenticated
// (every connection is granted a generated client id with no scoping),
// matching a single-tenant or local-development deployment.
func New(coord *coordinator.Coordinator, issuer *auth.Issuer, perms *auth.Permissions, logger *log.Logger, heartbeatInterval, heartbeatTimeout time.Duration, maxMessageBytes int) *Server {
	return &Server{
		coord:  coord,
		issuer: issuer,
		perms:  perms,
		logger: logger.Component("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		heartbeatInterval: heartbeatInterval,
		heartbeatTimeout:  heartbeatTimeout,
		maxMessageBytes:   int64(maxMessageBytes),
	}
}

// ServeHTTP implements http.Handler for the /ws route.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID, err := s.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	out := s.coord.RegisterConn(connID, r.RemoteAddr)
	conn.SetReadLimit(s.maxMessageBytes)

	done := make(chan struct{})
	go s.writePump(conn, out, done)
	s.readPump(conn, connID, clientID)

	close(done)
	s.coord.UnregisterConn(connID, clientID)
	if s.perms != nil {
		s.perms.Forget(clientID)
	}
	conn.Close()
}

// authenticate extracts and verifies a bearer token, or assigns an
// anonymous client id when no issuer is configured.
func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.issuer == nil {
		return uuid.NewString(), nil
	}
	tok := r.URL.Query().Get("token")
	if tok == "" {
		tok = bearerToken(r.Header.Get("Authorization"))
	}
	if tok == "" {
		return "", errs.Authorization("missing bearer token")
	}
	claims, err := s.issuer.Verify(tok)
	if err != nil {
		return "", err
	}
	if s.perms != nil {
		s.perms.Register(claims.ClientID, claims)
	}
	return claims.ClientID, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

// readPump decodes incoming frames and dispatches them to the
// coordinator until the connection closes. Runs on the caller's
// goroutine; ServeHTTP blocks here for the connection's lifetime.
func (s *Server) readPump(conn *websocket.Conn, connID, clientID string) {
	conn.SetReadDeadline(time.Now().Add(s.heartbeatTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.heartbeatTimeout))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame wire.Frame
		if msgType == websocket.TextMessage {
			frame, err = wire.DecodeAny(data, int(s.maxMessageBytes))
		} else {
			frame, err = wire.Decode(data, int(s.maxMessageBytes))
		}
		if err != nil {
			s.sendError(connID, "", errs.Protocol("malformed frame"))
			continue
		}

		s.dispatch(connID, clientID, frame)
	}
}

// dispatch routes one decoded frame to the appropriate coordinator
// operation and sends its reply (ACK/SYNC_RESPONSE/etc) back to the
// originating connection.
func (s *Server) dispatch(connID, clientID string, f wire.Frame) {
	switch f.Type {
	case wire.Subscribe:
		var msg wire.SubscribePayload
		if err := wire.DecodePayload(f, &msg); err != nil {
			s.sendError(connID, "", err)
			return
		}
		if err := s.coord.Subscribe(connID, msg.DocumentID); err != nil {
			s.sendError(connID, msg.ID, err)
		}

	case wire.Unsubscribe:
		var msg wire.SubscribePayload
		if err := wire.DecodePayload(f, &msg); err == nil {
			s.coord.Unsubscribe(connID, msg.DocumentID)
		}

	case wire.Delta:
		s.dispatchDelta(connID, clientID, f)

	case wire.SyncRequest:
		resp, err := s.coord.SyncRequest(clientID, f)
		if err != nil {
			s.sendError(connID, "", err)
			return
		}
		s.reply(connID, wire.SyncResponse, resp)

	case wire.SyncStep1:
		resp, err := s.coord.SyncStep(clientID, f)
		if err != nil {
			s.sendError(connID, "", err)
			return
		}
		s.reply(connID, wire.SyncStep2, resp)

	case wire.AwarenessUpdate:
		if err := s.coord.UpdateAwareness(connID, clientID, f); err != nil {
			s.sendError(connID, "", err)
		}

	case wire.AwarenessSubscribe:
		req, entries, err := s.coord.AwarenessSnapshot(clientID, f)
		if err != nil {
			s.sendError(connID, "", err)
			return
		}
		for _, e := range entries {
			s.reply(connID, wire.AwarenessState, wire.AwarenessPayload{DocumentID: req.DocumentID, ClientID: e.ClientID, State: e.State})
		}

	case wire.Ping:
		s.reply(connID, wire.Pong, struct{}{})

	default:
		s.sendError(connID, "", errs.Protocol("unsupported frame type"))
	}
}

// dispatchDelta distinguishes a map-field write from a text op by
// sniffing the payload shape: a FugueOpPayload carries a "node" object,
// a DeltaPayload carries a "delta" object.
func (s *Server) dispatchDelta(connID, clientID string, f wire.Frame) {
	var probe struct {
		Node json.RawMessage `json:"node"`
	}
	isText := json.Unmarshal(f.Payload, &probe) == nil && len(probe.Node) > 0

	if isText {
		ack, err := s.coord.ApplyTextOp(connID, clientID, f)
		if err != nil {
			s.sendError(connID, "", err)
			return
		}
		s.reply(connID, wire.Ack, ack)
		return
	}

	ack, err := s.coord.ApplyDelta(connID, clientID, f)
	if err != nil {
		s.sendError(connID, "", err)
		return
	}
	s.reply(connID, wire.Ack, ack)
}

func (s *Server) reply(connID string, t wire.Type, payload interface{}) {
	frame, err := wire.EncodePayload(t, time.Now().UnixMilli(), payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode reply frame")
		return
	}
	s.coord.Send(connID, frame)
}

func (s *Server) sendError(connID, requestID string, err error) {
	kind := errs.KindInternal
	if ce, ok := err.(errs.Categorized); ok {
		kind = ce.Kind()
	}
	frame, encErr := wire.EncodePayload(wire.Error, time.Now().UnixMilli(), wire.ErrorPayload{ID: requestID, Kind: string(kind), Reason: err.Error()})
	if encErr != nil {
		return
	}
	s.coord.Send(connID, frame)
}

// writePump drains the connection's outbound queue and sends a
// WebSocket ping on heartbeatInterval, matching §5's heartbeat contract.
func (s *Server) writePump(conn *websocket.Conn, out *coordinator.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case f, ok := <-out.Outbound:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, wire.Encode(f)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
