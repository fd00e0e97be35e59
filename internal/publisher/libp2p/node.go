// Package libp2p implements the cross-node fan-out publisher (§6): each
// flushed batch is mirrored to a libp2p gossipsub topic named after its
// document id, so every other node running the same document applies it
// as if it came from a local client. Grounded on the teacher's
// internal/infrastructure/network/libp2p/node.go, trimmed to the
// subset this port needs: no DHT, no peer discovery beyond explicit
// bootstrap addresses, no MessageBatcher/GossipSubConfig (the
// coordinator already owns batching via its flush window — see
// DESIGN.md). Gossiped payloads are compressed with
// internal/storage/snapshot's size/ratio-gated zstd helpers rather than
// a second copy of the same technique.
package libp2p

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/multiformats/go-multiaddr"

	"synckit/internal/crdt"
	"synckit/internal/obs/log"
	"synckit/internal/storage/snapshot"
)

const topicPrefix = "/synckit/doc/"

// wireDelta is the payload gossiped on a document's topic: a consolidated
// delta plus the id of the node that produced it, so a node never
// re-applies its own publish.
type wireDelta struct {
	Delta    *crdt.Delta `json:"delta"`
	SourceID string      `json:"sourceId"`
}

// Node wraps a libp2p host plus one gossipsub topic per subscribed
// document.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	nodeID string
	logger *log.Logger

	mu     sync.RWMutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription
}

// Config configures the listening node.
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []peer.AddrInfo
	NodeID         string
}

// DefaultConfig returns an ephemeral, locally-reachable configuration.
func DefaultConfig() Config {
	return Config{ListenAddrs: []string{"/ip4/0.0.0.0/tcp/0"}}
}

// New starts a libp2p host and gossipsub router.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Node, error) {
	var listenAddrs []multiaddr.Multiaddr
	for _, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("libp2p: failed to parse listen addr %q: %w", addr, err)
		}
		listenAddrs = append(listenAddrs, ma)
	}

	h, err := libp2p.New(
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.Security(noise.ID, noise.New),
		libp2p.NATPortMap(),
	)
	if err != nil {
		return nil, fmt.Errorf("libp2p: failed to create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h, pubsub.WithPeerExchange(true))
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("libp2p: failed to create gossipsub router: %w", err)
	}

	n := &Node{
		host:   h,
		pubsub: ps,
		nodeID: cfg.NodeID,
		logger: logger.Component("libp2p"),
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
	}

	for _, pi := range cfg.BootstrapPeers {
		if err := h.Connect(ctx, pi); err != nil {
			n.logger.Warn().Err(err).Str("peer", pi.ID.String()).Msg("failed to connect to bootstrap peer")
		}
	}

	return n, nil
}

func topicName(docID string) string { return topicPrefix + docID }

func (n *Node) joinTopic(docID string) (*pubsub.Topic, error) {
	name := topicName(docID)

	n.mu.RLock()
	if t, ok := n.topics[name]; ok {
		n.mu.RUnlock()
		return t, nil
	}
	n.mu.RUnlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.topics[name]; ok {
		return t, nil
	}
	t, err := n.pubsub.Join(name)
	if err != nil {
		return nil, fmt.Errorf("libp2p: failed to join topic %q: %w", name, err)
	}
	n.topics[name] = t
	return t, nil
}

// PublishDelta implements coordinator.Publisher: it mirrors one
// consolidated delta onto docID's gossipsub topic, zstd-compressed when
// it's large enough to be worth it.
func (n *Node) PublishDelta(docID string, delta *crdt.Delta) error {
	topic, err := n.joinTopic(docID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(wireDelta{Delta: delta, SourceID: n.nodeID})
	if err != nil {
		return fmt.Errorf("libp2p: failed to marshal delta: %w", err)
	}
	return topic.Publish(context.Background(), snapshot.Compress(payload))
}

// OnRemoteDelta is implemented by the coordinator; SubscribeDocument
// calls it for every delta this node did not itself originate.
type OnRemoteDelta func(docID string, delta *crdt.Delta)

// SubscribeDocument joins docID's topic (if not already joined) and
// starts a goroutine delivering remote deltas to onDelta until ctx is
// done. Safe to call multiple times for the same docID; later calls
// are no-ops once a subscription is already running.
func (n *Node) SubscribeDocument(ctx context.Context, docID string, onDelta OnRemoteDelta) error {
	name := topicName(docID)

	n.mu.Lock()
	if _, ok := n.subs[name]; ok {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	topic, err := n.joinTopic(docID)
	if err != nil {
		return err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("libp2p: failed to subscribe to topic %q: %w", name, err)
	}

	n.mu.Lock()
	n.subs[name] = sub
	n.mu.Unlock()

	go n.receiveLoop(ctx, docID, sub, onDelta)
	return nil
}

func (n *Node) receiveLoop(ctx context.Context, docID string, sub *pubsub.Subscription, onDelta OnRemoteDelta) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return // ctx cancelled or subscription closed
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		raw, err := snapshot.Decompress(msg.Data)
		if err != nil {
			n.logger.Warn().Err(err).Str("doc_id", docID).Msg("failed to decompress gossiped message")
			continue
		}
		var wd wireDelta
		if err := json.Unmarshal(raw, &wd); err != nil {
			n.logger.Warn().Err(err).Str("doc_id", docID).Msg("failed to unmarshal gossiped delta")
			continue
		}
		if wd.SourceID == n.nodeID {
			continue
		}
		onDelta(docID, wd.Delta)
	}
}

// ID returns this node's libp2p peer id.
func (n *Node) ID() peer.ID { return n.host.ID() }

// Addrs returns this node's listen multiaddrs.
func (n *Node) Addrs() []multiaddr.Multiaddr { return n.host.Addrs() }

// Close cancels every subscription, closes every topic, and shuts down
// the host.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		sub.Cancel()
	}
	for _, t := range n.topics {
		t.Close()
	}
	return n.host.Close()
}
