package coordinator

import (
	"fmt"
	"time"

	"synckit/internal/obs/errs"
	"synckit/internal/wire"
)

// UpdateAwareness implements §4.7's awareness update path: decode,
// validate, auto-subscribe, record, and rebroadcast to every other
// subscriber of the document. A nil State marks an explicit leave.
func (c *Coordinator) UpdateAwareness(connID, clientID string, f wire.Frame) error {
	var msg wire.AwarenessPayload
	if err := wire.DecodePayload(f, &msg); err != nil {
		return errs.Wrap(errs.CategoryValidation, errs.KindProtocol, err)
	}
	if err := c.validator(msg.DocumentID); err != nil {
		return err
	}
	if !c.perms.CanRead(clientID, msg.DocumentID) {
		return errs.Authorization(fmt.Sprintf("read denied for document %q", msg.DocumentID))
	}

	c.getOrCreateDoc(msg.DocumentID)
	if !c.subs.IsSubscribed(connID, msg.DocumentID) {
		c.subs.Subscribe(connID, msg.DocumentID)
	}

	now := time.Now()
	c.awareness.Update(msg.DocumentID, clientID, msg.State, uint64(c.clock()), now)

	frame, err := wire.EncodePayload(wire.AwarenessUpdate, c.clock(), msg)
	if err != nil {
		return errs.Wrap(errs.CategoryInternal, errs.KindInternal, err)
	}
	for _, closeID := range c.subs.Broadcast(msg.DocumentID, frame, map[string]struct{}{connID: {}}) {
		c.UnregisterConn(closeID, "")
	}
	return nil
}

// AwarenessSnapshot implements §4.7's AWARENESS_SUBSCRIBE response: the
// current presence state of every client in the document, sent only to
// the requester.
func (c *Coordinator) AwarenessSnapshot(clientID string, f wire.Frame) (wire.AwarenessPayload, []wire.AwarenessPayload, error) {
	var msg wire.AwarenessPayload
	if err := wire.DecodePayload(f, &msg); err != nil {
		return wire.AwarenessPayload{}, nil, errs.Wrap(errs.CategoryValidation, errs.KindProtocol, err)
	}
	if err := c.validator(msg.DocumentID); err != nil {
		return wire.AwarenessPayload{}, nil, err
	}
	if !c.perms.CanRead(clientID, msg.DocumentID) {
		return wire.AwarenessPayload{}, nil, errs.Authorization(fmt.Sprintf("read denied for document %q", msg.DocumentID))
	}

	entries := c.awareness.Snapshot(msg.DocumentID)
	out := make([]wire.AwarenessPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, wire.AwarenessPayload{DocumentID: msg.DocumentID, ClientID: e.ClientID, State: e.State})
	}
	return msg, out, nil
}
