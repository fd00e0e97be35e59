// Package coordinator implements the delta sync coordinator (§4.5): the
// server-side authority that ingests deltas, resolves conflicts via the
// underlying CRDTs, batches broadcasts, and answers sync handshakes.
package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"synckit/internal/crdt"
	"synckit/internal/obs/errs"
	"synckit/internal/obs/log"
	"synckit/internal/obs/metrics"
	"synckit/internal/ratelimit"
	"synckit/internal/storage"
	"synckit/internal/wire"
)

// Permissions is the injected read/write predicate pair (§4.5's
// "Permission model"). The coordinator never inspects tokens.
type Permissions interface {
	CanRead(clientID, docID string) bool
	CanWrite(clientID, docID string) bool
}

// Publisher is the cross-node fan-out contract (§6): one method,
// mirrored on Flush so peers apply the delta as if from a local client.
type Publisher interface {
	PublishDelta(docID string, delta *crdt.Delta) error
}

// ClockSource supplies wall-clock milliseconds since epoch. Injected
// per §9's "explicit context" note so tests can control time.
type ClockSource func() int64

// Config bundles the coordinator's tunables, sourced from
// internal/config.Config.
type Config struct {
	BatchWindow         time.Duration
	OutboundQueueDepth  int
	MaxDocumentIDLength int
	AwarenessTTL        time.Duration
	MaxMessagesPerMin   int
	LocalNodeID         string
}

// Coordinator is the document registry plus delta ingestion, batching,
// and sync-handshake logic (§4.5).
type Coordinator struct {
	cfg       Config
	validator Validator
	perms     Permissions
	clock     ClockSource
	storageAd storage.Adapter // nil means memory-only (§7 degraded mode)
	publisher Publisher       // nil means no cross-node fan-out
	limiter   *ratelimit.MessageLimiter
	metrics   *metrics.Registry // nil disables metrics
	logger    *log.Logger

	subs      *SubscriptionManager
	awareness *AwarenessManager

	mu   sync.RWMutex
	docs map[string]*Document

	onDocCreated func(docID string)
}

// New constructs a Coordinator. storageAdapter and publisher may be nil.
func New(cfg Config, perms Permissions, clock ClockSource, storageAdapter storage.Adapter, publisher Publisher, logger *log.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		validator: DefaultValidator(cfg.MaxDocumentIDLength),
		perms:     perms,
		clock:     clock,
		storageAd: storageAdapter,
		publisher: publisher,
		limiter:   ratelimit.NewMessageLimiter(cfg.MaxMessagesPerMin),
		logger:    logger.Component("coordinator"),
		subs:      NewSubscriptionManager(cfg.OutboundQueueDepth),
		awareness: NewAwarenessManager(cfg.AwarenessTTL),
		docs:      make(map[string]*Document),
	}
}

// SetMetrics wires a metrics registry after construction (optional).
func (c *Coordinator) SetMetrics(m *metrics.Registry) { c.metrics = m }

// OnDocumentCreated registers a callback invoked the first time a
// document id is seen, used to lazily join its cross-node gossipsub
// topic (see internal/interface/cli/serve.go).
func (c *Coordinator) OnDocumentCreated(f func(docID string)) { c.onDocCreated = f }

// RunAwarenessEviction blocks, evicting awareness entries whose
// last-seen timestamp exceeds cfg.AwarenessTTL every interval and
// broadcasting a leave update for each, until stop is closed (§4.7).
// Callers run this as a background goroutine from the server's
// lifecycle (see internal/interface/cli/serve.go).
func (c *Coordinator) RunAwarenessEviction(stop <-chan struct{}, interval time.Duration) {
	c.awareness.RunEvictionLoop(stop, interval, c.broadcastAwarenessLeave)
}

// RegisterConn opens a connection's outbound queue.
func (c *Coordinator) RegisterConn(connID, remoteIP string) *Conn {
	if c.metrics != nil {
		c.metrics.Connections.Inc()
	}
	return c.subs.Register(connID, remoteIP)
}

// UnregisterConn closes a connection and emits awareness leave updates
// for every document it was subscribed to (§4.7 "on connection close").
func (c *Coordinator) UnregisterConn(connID, clientID string) {
	docIDs := c.subs.Unregister(connID)
	c.limiter.Forget(connID)
	if c.metrics != nil {
		c.metrics.Connections.Dec()
	}
	for _, docID := range docIDs {
		c.awareness.Leave(docID, clientID)
		c.broadcastAwarenessLeave(docID, clientID)
	}
}

func (c *Coordinator) getOrCreateDoc(docID string) *Document {
	c.mu.RLock()
	d, ok := c.docs[docID]
	c.mu.RUnlock()
	if ok {
		return d
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok = c.docs[docID]; ok {
		return d
	}
	d = newDocument(docID, c.cfg.LocalNodeID)
	c.docs[docID] = d
	if c.metrics != nil {
		c.metrics.DocumentsTotal.Inc()
	}
	if c.onDocCreated != nil {
		c.onDocCreated(docID)
	}
	return d
}

// Subscribe validates doc_id, lazily creates the document, and adds
// both subscription directions (§4.5). The ACK is implicit: the client
// already knows its own request id.
func (c *Coordinator) Subscribe(connID, docID string) error {
	if err := c.validator(docID); err != nil {
		return err
	}
	c.getOrCreateDoc(docID)
	c.subs.Subscribe(connID, docID)
	return nil
}

// Unsubscribe removes both subscription directions.
func (c *Coordinator) Unsubscribe(connID, docID string) {
	c.subs.Unsubscribe(connID, docID)
}

// Send delivers a single frame directly to one connection (used for
// replies that aren't document broadcasts: ACK, SYNC_RESPONSE, ERROR,
// PONG, AWARENESS_STATE).
func (c *Coordinator) Send(connID string, f wire.Frame) {
	if _, mustClose := c.subs.Send(connID, f); mustClose {
		c.UnregisterConn(connID, "")
	}
}

// ApplyDelta implements §4.5's ApplyDelta for map-document field writes.
// f.Timestamp (the frame header's wall-clock field) is used as the
// delta's wall_ts.
func (c *Coordinator) ApplyDelta(connID, clientID string, f wire.Frame) (wire.AckPayload, error) {
	if !c.limiter.Allow(connID) {
		return wire.AckPayload{}, errs.New(errs.CategoryRetryable, errs.KindProtocol, "rate limit exceeded")
	}

	var msg wire.DeltaPayload
	if err := wire.DecodePayload(f, &msg); err != nil {
		return wire.AckPayload{}, errs.Wrap(errs.CategoryValidation, errs.KindProtocol, err)
	}
	if err := c.validator(msg.DocumentID); err != nil {
		return wire.AckPayload{}, err
	}
	if !c.perms.CanWrite(clientID, msg.DocumentID) {
		return wire.AckPayload{}, errs.Authorization(fmt.Sprintf("write denied for document %q", msg.DocumentID))
	}
	if msg.Delta == nil {
		return wire.AckPayload{}, errs.Protocol("delta message missing data")
	}

	doc := c.getOrCreateDoc(msg.DocumentID)
	if !doc.ensureKind(false) {
		return wire.AckPayload{}, errs.Protocol(fmt.Sprintf("document %q is a text document, not a map document", msg.DocumentID))
	}

	if !c.subs.IsSubscribed(connID, msg.DocumentID) {
		c.subs.Subscribe(connID, msg.DocumentID)
	}

	deltaID := msg.ID
	if deltaID == "" {
		deltaID = uuid.NewString()
	}
	vc := crdt.FromMap(msg.VectorClock)
	stored := &crdt.Delta{ID: deltaID, ClientID: clientID, WallTS: f.Timestamp, Data: msg.Delta, VC: vc}
	isNew := doc.Map.AddDelta(stored)

	if !isNew {
		// Idempotent duplicate (§3, §8): already applied, already
		// broadcast once. Re-ack without re-enqueuing or re-persisting.
		return wire.AckPayload{ID: msg.ID, DeltaID: stored.ID}, nil
	}

	if c.metrics != nil {
		c.metrics.DeltasApplied.WithLabelValues(msg.DocumentID).Inc()
	}

	if c.storageAd != nil {
		go func() {
			if err := c.storageAd.SaveDelta(msg.DocumentID, stored); err != nil {
				// Storage failure never blocks the ack path (§7).
				c.logger.Warn().Err(err).Str("doc_id", msg.DocumentID).Msg("delta persistence failed, continuing in memory")
			}
		}()
	}

	c.enqueueAuthoritative(doc, stored, msg.Delta)

	return wire.AckPayload{ID: msg.ID, DeltaID: stored.ID}, nil
}

// enqueueAuthoritative computes the per-field authoritative rewrite
// (§4.5 step 5) and coalesces it into the document's batch window.
func (c *Coordinator) enqueueAuthoritative(doc *Document, stored *crdt.Delta, fields map[string]interface{}) {
	authoritative := make(map[string]interface{}, len(fields))
	for field := range fields {
		value, isTombstone, exists := doc.Map.FieldValue(field)
		if !exists {
			authoritative[field] = map[string]interface{}{crdt.TombstoneMarker: true}
			continue
		}
		if isTombstone {
			authoritative[field] = map[string]interface{}{crdt.TombstoneMarker: true}
			continue
		}
		authoritative[field] = value
	}

	doc.opMu.Lock()
	defer doc.opMu.Unlock()
	if doc.batch == nil {
		doc.batch = &batchEntry{
			fields:  make(map[string]interface{}),
			vc:      crdt.NewVectorClock(),
			created: time.Now(),
		}
		doc.batch.timer = time.AfterFunc(c.cfg.BatchWindow, func() { c.Flush(doc.ID) })
	}
	for field, value := range authoritative {
		doc.batch.fields[field] = value
	}
	doc.batch.vc.MergeInPlace(stored.VC)
}

// Flush atomically detaches the batch entry and broadcasts one DELTA
// frame per coalesced field to every subscriber, including the sender
// (§4.5 "Flush"). Mirrors the consolidated delta to the cross-node
// publisher, if present.
func (c *Coordinator) Flush(docID string) {
	c.mu.RLock()
	doc, ok := c.docs[docID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	doc.opMu.Lock()
	b := doc.batch
	doc.batch = nil
	doc.opMu.Unlock()
	if b == nil {
		return
	}

	now := c.clock()
	for field, value := range b.fields {
		payload := wire.DeltaPayload{
			DocumentID:  docID,
			Delta:       map[string]interface{}{field: value},
			VectorClock: b.vc.ToMap(),
		}
		frame, err := wire.EncodePayload(wire.Delta, now, payload)
		if err != nil {
			c.logger.Error().Err(err).Str("doc_id", docID).Msg("failed to encode flush frame")
			continue
		}
		for _, connID := range c.subs.Broadcast(docID, frame, nil) {
			c.UnregisterConn(connID, "")
		}
		if c.metrics != nil {
			c.metrics.FramesSent.WithLabelValues(wire.Delta.String()).Inc()
		}
	}

	if c.metrics != nil {
		c.metrics.FlushesTotal.WithLabelValues(docID).Inc()
	}

	if c.publisher != nil {
		consolidated := &crdt.Delta{ID: uuid.NewString(), ClientID: c.cfg.LocalNodeID, WallTS: now, Data: b.fields, VC: b.vc}
		if err := c.publisher.PublishDelta(docID, consolidated); err != nil {
			c.logger.Warn().Err(err).Str("doc_id", docID).Msg("cross-node publish failed, continuing locally")
		}
	}
}

// ApplyRemoteDelta applies a delta received from another node via the
// cross-node publisher, as if it came from a local client (§6).
func (c *Coordinator) ApplyRemoteDelta(docID string, delta *crdt.Delta) {
	doc := c.getOrCreateDoc(docID)
	if !doc.ensureKind(false) {
		return
	}
	if !doc.Map.AddDelta(delta) {
		return // already observed
	}
	c.enqueueAuthoritative(doc, delta, delta.Data)
}

// SyncRequest implements §4.5's SyncRequest: an empty/absent client
// clock returns the full projected state; otherwise only missing
// deltas are returned.
func (c *Coordinator) SyncRequest(clientID string, f wire.Frame) (wire.SyncResponsePayload, error) {
	var msg wire.SyncRequestPayload
	if err := wire.DecodePayload(f, &msg); err != nil {
		return wire.SyncResponsePayload{}, errs.Wrap(errs.CategoryValidation, errs.KindProtocol, err)
	}
	if err := c.validator(msg.DocumentID); err != nil {
		return wire.SyncResponsePayload{}, err
	}
	if !c.perms.CanRead(clientID, msg.DocumentID) {
		return wire.SyncResponsePayload{}, errs.Authorization(fmt.Sprintf("read denied for document %q", msg.DocumentID))
	}

	doc := c.getOrCreateDoc(msg.DocumentID)
	resp := wire.SyncResponsePayload{RequestID: msg.ID, DocumentID: msg.DocumentID}

	if c.metrics != nil {
		c.metrics.SyncRequests.Inc()
	}

	if len(msg.VectorClock) == 0 {
		resp.State = doc.Map.BuildState()
		return resp, nil
	}

	since := doc.Map.DeltasSince(crdt.FromMap(msg.VectorClock))
	resp.Deltas = make([]wire.DeltaPayload, 0, len(since))
	for _, d := range since {
		resp.Deltas = append(resp.Deltas, wire.DeltaPayload{
			ID:          d.ID,
			DocumentID:  msg.DocumentID,
			Delta:       d.Data,
			VectorClock: d.VC.ToMap(),
		})
	}
	return resp, nil
}

func (c *Coordinator) broadcastAwarenessLeave(docID, clientID string) {
	now := c.clock()
	payload := wire.AwarenessPayload{DocumentID: docID, ClientID: clientID, State: nil}
	frame, err := wire.EncodePayload(wire.AwarenessUpdate, now, payload)
	if err != nil {
		return
	}
	c.subs.Broadcast(docID, frame, nil)
}

// Stats aggregates per-document and global diagnostics for the TUI
// dashboard and /metrics (SPEC_FULL.md coordinator supplement).
type Stats struct {
	DocumentCount   int
	ConnectionCount int
	Documents       []DocStatsSnapshot
}

func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := Stats{DocumentCount: len(c.docs), ConnectionCount: c.subs.ConnectionCount()}
	for id, d := range c.docs {
		d.kindMu.RLock()
		isText := d.isText
		d.kindMu.RUnlock()
		snap := DocStatsSnapshot{DocID: id, IsText: isText, Subscribers: len(c.subs.SubscribersOf(id))}
		if isText {
			snap.Text = d.Text.Stats()
		} else {
			snap.Map = d.Map.Stats()
		}
		out.Documents = append(out.Documents, snap)
	}
	return out
}
