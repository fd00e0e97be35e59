package crdt

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// Side is the placement side of a Fugue node relative to its parent.
type Side int

const (
	Left Side = iota
	Right
)

// NodeID is a total order: compare sequence, then client id lexicographic
// on raw bytes (§3 "Node Identifier Order").
type NodeID struct {
	ClientID string
	Seq      uint64
}

// Less implements the node-id total order used for sibling placement.
func (n NodeID) Less(other NodeID) bool {
	if n.Seq != other.Seq {
		return n.Seq < other.Seq
	}
	return n.ClientID < other.ClientID
}

func (n NodeID) Equal(other NodeID) bool {
	return n.Seq == other.Seq && n.ClientID == other.ClientID
}

// Node is a Fugue tree node. Parent is nil for children of the virtual
// root. Nodes are never physically removed; deletion sets IsTombstone.
type Node struct {
	ID          NodeID
	Parent      *NodeID
	Side        Side
	Value       string
	IsTombstone bool
}

// ErrUnknownParent is returned by ApplyRemote when the node's parent has
// not yet been integrated (§4.3 "causal delivery").
var ErrUnknownParent = errors.New("crdt: fugue node references unknown parent")

// FugueText is a position-identifier CRDT for interleaving-free
// collaborative text.
type FugueText struct {
	mu       sync.Mutex
	DocID    string
	clientID string
	nextSeq  uint64
	nodes    map[NodeID]*Node
	// children[parent][side] holds that parent's children on that side,
	// kept sorted by node-id order. The virtual root has no id of its
	// own, so its children live in the dedicated rootChildren field.
	children     map[NodeID]map[Side][]*Node
	rootChildren map[Side][]*Node
}

// NewFugueText creates an empty text CRDT for clientID's local edits.
// clientID is used to mint node ids for locally produced inserts.
func NewFugueText(docID, clientID string) *FugueText {
	return &FugueText{
		DocID:        docID,
		clientID:     clientID,
		nodes:        make(map[NodeID]*Node),
		children:     make(map[NodeID]map[Side][]*Node),
		rootChildren: make(map[Side][]*Node),
	}
}

func (t *FugueText) childList(parent *NodeID, side Side) []*Node {
	if parent == nil {
		return t.rootChildren[side]
	}
	sides, ok := t.children[*parent]
	if !ok {
		return nil
	}
	return sides[side]
}

func (t *FugueText) setChildList(parent *NodeID, side Side, list []*Node) {
	if parent == nil {
		t.rootChildren[side] = list
		return
	}
	sides, ok := t.children[*parent]
	if !ok {
		sides = make(map[Side][]*Node)
		t.children[*parent] = sides
	}
	sides[side] = list
}

// insertSorted inserts n into a side's child list, maintaining node-id
// total order.
func (t *FugueText) insertSorted(parent *NodeID, side Side, n *Node) {
	list := t.childList(parent, side)
	i := sort.Search(len(list), func(i int) bool { return n.ID.Less(list[i].ID) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = n
	t.setChildList(parent, side, list)
}

// visit appends node (and its subtree, recursively) to out in document
// in-order: left children, self, right children.
func (t *FugueText) visit(n *Node, out *[]*Node) {
	for _, c := range t.childList(&n.ID, Left) {
		t.visit(c, out)
	}
	*out = append(*out, n)
	for _, c := range t.childList(&n.ID, Right) {
		t.visit(c, out)
	}
}

// causalOrder returns every node (including tombstones) in tree order.
func (t *FugueText) causalOrder() []*Node {
	out := make([]*Node, 0, len(t.nodes))
	for _, c := range t.rootChildren[Left] {
		t.visit(c, &out)
	}
	for _, c := range t.rootChildren[Right] {
		t.visit(c, &out)
	}
	return out
}

// visibleNodes returns non-tombstoned nodes in tree order.
func (t *FugueText) visibleNodes() []*Node {
	all := t.causalOrder()
	out := make([]*Node, 0, len(all))
	for _, n := range all {
		if !n.IsTombstone {
			out = append(out, n)
		}
	}
	return out
}

// isAncestorChain walks the parent chain of node looking for anc, a nil
// anc meaning the virtual root (ancestor of everything).
func (t *FugueText) isAncestorChain(anc *NodeID, node *Node) bool {
	if anc == nil {
		return true
	}
	cur := node
	for cur.Parent != nil {
		if cur.Parent.Equal(*anc) {
			return true
		}
		p, ok := t.nodes[*cur.Parent]
		if !ok {
			return false
		}
		cur = p
	}
	return false
}

// insertBetween computes the (parent, side) placement for a new node
// inserted between left and right (either may be nil; nil left means
// "start of document", nil right means "end of document"). This is the
// rule that yields maximal non-interleaving (§4.3, §8 scenario 3).
func (t *FugueText) insertBetween(left, right *Node) (*NodeID, Side) {
	switch {
	case right == nil:
		if left == nil {
			return nil, Right
		}
		id := left.ID
		return &id, Right
	case left == nil:
		id := right.ID
		return &id, Left
	case t.isAncestorChain(&left.ID, right):
		id := right.ID
		return &id, Left
	default:
		id := left.ID
		return &id, Right
	}
}

// Insert places value at visible index, minting a fresh local node id.
func (t *FugueText) Insert(index int, value string) NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	visible := t.visibleNodes()
	var left, right *Node
	if index > 0 && index-1 < len(visible) {
		left = visible[index-1]
	}
	if index < len(visible) {
		right = visible[index]
	}

	parent, side := t.insertBetween(left, right)
	t.nextSeq++
	id := NodeID{ClientID: t.clientID, Seq: t.nextSeq}
	n := &Node{ID: id, Parent: parent, Side: side, Value: value}
	t.nodes[id] = n
	t.insertSorted(parent, side, n)
	return id
}

// Delete logically removes the node at visible index. Idempotent:
// double-delete is a no-op.
func (t *FugueText) Delete(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	visible := t.visibleNodes()
	if index < 0 || index >= len(visible) {
		return false
	}
	visible[index].IsTombstone = true
	return true
}

// ApplyRemote integrates a node produced elsewhere. Safe under any
// delivery order once the node's causal parent has already been
// applied; otherwise returns ErrUnknownParent so the caller can defer
// or reject per §4.3/§4.6.
func (t *FugueText) ApplyRemote(n *Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.nodes[n.ID]; exists {
		return nil // idempotent
	}
	if n.Parent != nil {
		if _, ok := t.nodes[*n.Parent]; !ok {
			return ErrUnknownParent
		}
	}
	copied := *n
	t.nodes[n.ID] = &copied
	t.insertSorted(n.Parent, n.Side, &copied)
	if n.ID.Seq >= t.nextSeq && n.ID.ClientID == t.clientID {
		t.nextSeq = n.ID.Seq
	}
	return nil
}

// Visible returns the in-order, tombstone-filtered visible string.
func (t *FugueText) Visible() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for _, n := range t.visibleNodes() {
		b.WriteString(n.Value)
	}
	return b.String()
}

// Nodes returns every node (including tombstones) in pre-order, so each
// node follows its parent: suitable for a sync response that must
// respect §4.6's parent-before-child ordering constraint.
func (t *FugueText) Nodes() []*Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Node, 0, len(t.nodes))
	for _, side := range []Side{Left, Right} {
		for _, c := range t.rootChildren[side] {
			t.preOrder(c, &out)
		}
	}
	return out
}

// preOrder appends n, then its left subtree, then its right subtree.
func (t *FugueText) preOrder(n *Node, out *[]*Node) {
	*out = append(*out, n)
	for _, side := range []Side{Left, Right} {
		for _, c := range t.childList(&n.ID, side) {
			t.preOrder(c, out)
		}
	}
}

// TextStats summarizes a FugueText for the dashboard and /metrics.
type TextStats struct {
	VisibleLength  int
	TombstoneCount int
	NodeCount      int
}

// Stats returns diagnostics (SPEC_FULL.md FugueText supplement).
func (t *FugueText) Stats() TextStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := TextStats{NodeCount: len(t.nodes)}
	for _, n := range t.nodes {
		if n.IsTombstone {
			s.TombstoneCount++
		} else {
			s.VisibleLength++
		}
	}
	return s
}

// Snapshot returns the node list in causal order, backing the storage
// adapters' save_snapshot/load_latest_snapshot contract so a cold start
// need not replay the full node history (SPEC_FULL.md FugueText
// supplement).
func (t *FugueText) Snapshot() []*Node {
	return t.Nodes()
}

// LoadSnapshot rebuilds the tree from a causally-ordered node list
// previously produced by Snapshot.
func (t *FugueText) LoadSnapshot(nodes []*Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = make(map[NodeID]*Node, len(nodes))
	t.children = make(map[NodeID]map[Side][]*Node)
	t.rootChildren = make(map[Side][]*Node)
	for _, n := range nodes {
		if n.Parent != nil {
			if _, ok := t.nodes[*n.Parent]; !ok {
				return ErrUnknownParent
			}
		}
		copied := *n
		t.nodes[n.ID] = &copied
		t.insertSorted(n.Parent, n.Side, &copied)
		if copied.ID.ClientID == t.clientID && copied.ID.Seq > t.nextSeq {
			t.nextSeq = copied.ID.Seq
		}
	}
	return nil
}
