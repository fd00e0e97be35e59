package coordinator

import (
	"encoding/json"
	"fmt"

	"synckit/internal/crdt"
	"synckit/internal/obs/errs"
	"synckit/internal/wire"
)

// toWireNode converts a crdt.Node to its wire representation.
func toWireNode(n *crdt.Node) wire.FugueNodeWire {
	w := wire.FugueNodeWire{
		ClientID:    n.ID.ClientID,
		Seq:         n.ID.Seq,
		Value:       n.Value,
		IsTombstone: n.IsTombstone,
	}
	if n.Side == crdt.Right {
		w.Side = "right"
	} else {
		w.Side = "left"
	}
	if n.Parent != nil {
		w.HasParent = true
		w.ParentClientID = n.Parent.ClientID
		w.ParentSeq = n.Parent.Seq
	}
	return w
}

// fromWireNode converts a wire.FugueNodeWire to a crdt.Node.
func fromWireNode(w wire.FugueNodeWire) *crdt.Node {
	n := &crdt.Node{
		ID:          crdt.NodeID{ClientID: w.ClientID, Seq: w.Seq},
		Value:       w.Value,
		IsTombstone: w.IsTombstone,
	}
	if w.Side == "right" {
		n.Side = crdt.Right
	} else {
		n.Side = crdt.Left
	}
	if w.HasParent {
		n.Parent = &crdt.NodeID{ClientID: w.ParentClientID, Seq: w.ParentSeq}
	}
	return n
}

// ApplyTextOp integrates a Fugue node operation on a text document
// (§4.6): preserved as-is and broadcast, with no LWW merge — text is
// its own CRDT. A node whose parent is unknown is rejected rather than
// applied out of order.
func (c *Coordinator) ApplyTextOp(connID, clientID string, f wire.Frame) (wire.AckPayload, error) {
	if !c.limiter.Allow(connID) {
		return wire.AckPayload{}, errs.New(errs.CategoryRetryable, errs.KindProtocol, "rate limit exceeded")
	}

	var msg wire.FugueOpPayload
	if err := wire.DecodePayload(f, &msg); err != nil {
		return wire.AckPayload{}, errs.Wrap(errs.CategoryValidation, errs.KindProtocol, err)
	}
	if err := c.validator(msg.DocumentID); err != nil {
		return wire.AckPayload{}, err
	}
	if !c.perms.CanWrite(clientID, msg.DocumentID) {
		return wire.AckPayload{}, errs.Authorization(fmt.Sprintf("write denied for document %q", msg.DocumentID))
	}

	doc := c.getOrCreateDoc(msg.DocumentID)
	if !doc.ensureKind(true) {
		return wire.AckPayload{}, errs.Protocol(fmt.Sprintf("document %q is a map document, not a text document", msg.DocumentID))
	}

	if !c.subs.IsSubscribed(connID, msg.DocumentID) {
		c.subs.Subscribe(connID, msg.DocumentID)
	}

	node := fromWireNode(msg.Node)
	if err := doc.Text.ApplyRemote(node); err != nil {
		return wire.AckPayload{}, errs.Causal(err.Error())
	}

	// Text ops are preserved as-is and broadcast immediately — no batch
	// window applies, since there is no per-field coalescing to do.
	now := c.clock()
	frame, err := wire.EncodePayload(wire.Delta, now, msg)
	if err == nil {
		for _, closeID := range c.subs.Broadcast(msg.DocumentID, frame, nil) {
			c.UnregisterConn(closeID, "")
		}
		if c.metrics != nil {
			c.metrics.FramesSent.WithLabelValues(wire.Delta.String()).Inc()
		}
	}

	if c.storageAd != nil && len(doc.Text.Snapshot())%64 == 0 {
		go c.snapshotText(msg.DocumentID, doc)
	}

	return wire.AckPayload{ID: msg.ID, DeltaID: fmt.Sprintf("%s:%d", node.ID.ClientID, node.ID.Seq)}, nil
}

func (c *Coordinator) snapshotText(docID string, doc *Document) {
	nodes := doc.Text.Snapshot()
	wireNodes := make([]wire.FugueNodeWire, len(nodes))
	for i, n := range nodes {
		wireNodes[i] = toWireNode(n)
	}
	payload, err := json.Marshal(wireNodes)
	if err != nil {
		c.logger.Warn().Err(err).Str("doc_id", docID).Msg("failed to marshal text snapshot")
		return
	}
	if err := c.storageAd.SaveSnapshot(docID, payload); err != nil {
		c.logger.Warn().Err(err).Str("doc_id", docID).Msg("text snapshot persistence failed")
	}
}

// SyncStep implements §4.5's SyncStep1/Step2 alternate entry point: same
// semantics as SyncRequest, but the response is a flat operation list —
// deltas for a map document, nodes (in causal order, per §4.6) for a
// text document.
func (c *Coordinator) SyncStep(clientID string, f wire.Frame) (wire.SyncStepResponsePayload, error) {
	var msg wire.SyncRequestPayload
	if err := wire.DecodePayload(f, &msg); err != nil {
		return wire.SyncStepResponsePayload{}, errs.Wrap(errs.CategoryValidation, errs.KindProtocol, err)
	}
	if err := c.validator(msg.DocumentID); err != nil {
		return wire.SyncStepResponsePayload{}, err
	}
	if !c.perms.CanRead(clientID, msg.DocumentID) {
		return wire.SyncStepResponsePayload{}, errs.Authorization(fmt.Sprintf("read denied for document %q", msg.DocumentID))
	}

	doc := c.getOrCreateDoc(msg.DocumentID)
	resp := wire.SyncStepResponsePayload{ID: msg.ID, DocumentID: msg.DocumentID}

	doc.kindMu.RLock()
	isText := doc.isText
	doc.kindMu.RUnlock()

	if isText {
		for _, n := range doc.Text.Nodes() {
			resp.Nodes = append(resp.Nodes, toWireNode(n))
		}
		return resp, nil
	}

	var since []*crdt.Delta
	if len(msg.VectorClock) == 0 {
		since = doc.Map.DeltasSince(crdt.NewVectorClock())
	} else {
		since = doc.Map.DeltasSince(crdt.FromMap(msg.VectorClock))
	}
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
