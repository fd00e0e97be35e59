package coordinator

import (
	"sync"

	"synckit/internal/wire"
)

// Conn is a single client connection's outbound side: one bounded
// channel drained by that connection's write pump. Grounded on the
// teacher's EventBus (internal/interface/daemon/eventbus.go): one
// buffered channel per subscriber, non-blocking publish.
type Conn struct {
	ID       string
	RemoteIP string
	Outbound chan wire.Frame
}

// SubscriptionManager tracks connection<->document membership and
// per-connection outbound delivery (§3 "Subscription Set", §5's bounded
// outbound queue per connection).
type SubscriptionManager struct {
	mu       sync.RWMutex
	conns    map[string]*Conn
	connDocs map[string]map[string]struct{}
	docConns map[string]map[string]struct{}
	depth    int
}

// NewSubscriptionManager builds a manager whose per-connection outbound
// channels are sized to depth (outbound_queue_depth, default 1024).
func NewSubscriptionManager(depth int) *SubscriptionManager {
	return &SubscriptionManager{
		conns:    make(map[string]*Conn),
		connDocs: make(map[string]map[string]struct{}),
		docConns: make(map[string]map[string]struct{}),
		depth:    depth,
	}
}

// Register creates the outbound queue for a new connection and returns it.
func (m *SubscriptionManager) Register(connID, remoteIP string) *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &Conn{ID: connID, RemoteIP: remoteIP, Outbound: make(chan wire.Frame, m.depth)}
	m.conns[connID] = c
	m.connDocs[connID] = make(map[string]struct{})
	return c
}

// Unregister removes a connection and every subscription it held,
// returning the document ids it was subscribed to (so the caller can
// emit awareness leave updates per §4.7).
func (m *SubscriptionManager) Unregister(connID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.connDocs[connID]
	docIDs := make([]string, 0, len(docs))
	for docID := range docs {
		docIDs = append(docIDs, docID)
		if conns, ok := m.docConns[docID]; ok {
			delete(conns, connID)
		}
	}
	delete(m.connDocs, connID)
	if c, ok := m.conns[connID]; ok {
		close(c.Outbound)
		delete(m.conns, connID)
	}
	return docIDs
}

// Subscribe adds both directions of the membership relation; documents
// are created lazily elsewhere (the coordinator), subscriptions here are
// just bookkeeping.
func (m *SubscriptionManager) Subscribe(connID, docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connDocs[connID] == nil {
		m.connDocs[connID] = make(map[string]struct{})
	}
	m.connDocs[connID][docID] = struct{}{}
	if m.docConns[docID] == nil {
		m.docConns[docID] = make(map[string]struct{})
	}
	m.docConns[docID][connID] = struct{}{}
}

// Unsubscribe removes both directions. Empty doc entries are retained
// (§4.5: "empty doc entries are retained; they are cheap and data-bearing").
func (m *SubscriptionManager) Unsubscribe(connID, docID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if docs, ok := m.connDocs[connID]; ok {
		delete(docs, docID)
	}
	if conns, ok := m.docConns[docID]; ok {
		delete(conns, connID)
	}
}

// IsSubscribed reports whether connID is already subscribed to docID.
func (m *SubscriptionManager) IsSubscribed(connID, docID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, ok := m.connDocs[connID]
	if !ok {
		return false
	}
	_, ok = docs[docID]
	return ok
}

// SubscribersOf returns the connection ids currently subscribed to docID.
func (m *SubscriptionManager) SubscribersOf(docID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conns := m.docConns[docID]
	out := make([]string, 0, len(conns))
	for connID := range conns {
		out = append(out, connID)
	}
	return out
}

// ConnectionCount returns the number of currently registered connections.
func (m *SubscriptionManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// DocsOf returns the document ids connID is subscribed to.
func (m *SubscriptionManager) DocsOf(connID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.connDocs[connID]
	out := make([]string, 0, len(docs))
	for docID := range docs {
		out = append(out, docID)
	}
	return out
}

// Send enqueues a frame on connID's outbound channel without blocking.
// Per §5's backpressure policy: if the queue is full, a non-DELTA frame
// is simply dropped; a DELTA frame that cannot be enqueued means the
// connection must be closed (the caller is told via mustClose so it can
// drive the actual close — this manager does not close connections on
// send failure, only on explicit Unregister).
func (m *SubscriptionManager) Send(connID string, f wire.Frame) (sent bool, mustClose bool) {
	m.mu.RLock()
	c, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return false, false
	}
	select {
	case c.Outbound <- f:
		return true, false
	default:
		if f.Type == wire.Delta {
			return false, true
		}
		return false, false
	}
}

// Broadcast sends f to every subscriber of docID except those in skip,
// returning the connection ids that must be closed due to backpressure.
func (m *SubscriptionManager) Broadcast(docID string, f wire.Frame, skip map[string]struct{}) []string {
	var toClose []string
	for _, connID := range m.SubscribersOf(docID) {
		if _, skipped := skip[connID]; skipped {
			continue
		}
		if _, mustClose := m.Send(connID, f); mustClose {
			toClose = append(toClose, connID)
		}
	}
	return toClose
}
