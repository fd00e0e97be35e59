package crdt

import (
	"strings"
	"testing"
)

func TestFugueTextLocalInsertAppend(t *testing.T) {
	text := NewFugueText("doc1", "a")
	text.Insert(0, "h")
	text.Insert(1, "i")
	if got := text.Visible(); got != "hi" {
		t.Fatalf("expected hi, got %q", got)
	}
}

func TestFugueTextDeleteIsIdempotent(t *testing.T) {
	text := NewFugueText("doc1", "a")
	hID := text.Insert(0, "h")
	text.Insert(1, "i")
	if !text.Delete(0) {
		t.Fatal("first delete should succeed")
	}
	if got := text.Visible(); got != "i" {
		t.Fatalf("expected i after deleting h, got %q", got)
	}
	// Delete addresses visible indices, so the deleted node cannot be
	// reached through Delete again: index 0 now refers to "i". Deliver
	// the deleted node a second time, as a tombstone, instead.
	if err := text.ApplyRemote(&Node{ID: hID, Side: Right, Value: "h", IsTombstone: true}); err != nil {
		t.Fatalf("re-applying the deleted node should be a no-op, got %v", err)
	}
	if got := text.Visible(); got != "i" {
		t.Fatalf("expected i after re-applying the deleted node, got %q", got)
	}
	if got := text.Stats().TombstoneCount; got != 1 {
		t.Fatalf("expected exactly one tombstone, got %d", got)
	}
}

func TestFugueTextApplyRemoteRejectsUnknownParent(t *testing.T) {
	text := NewFugueText("doc1", "a")
	orphan := &Node{ID: NodeID{ClientID: "b", Seq: 5}, Parent: &NodeID{ClientID: "b", Seq: 4}, Side: Right, Value: "x"}
	if err := text.ApplyRemote(orphan); err != ErrUnknownParent {
		t.Fatalf("expected ErrUnknownParent, got %v", err)
	}
}

func TestFugueTextApplyRemoteIsIdempotent(t *testing.T) {
	text := NewFugueText("doc1", "a")
	id := text.Insert(0, "x")
	node := &Node{ID: id, Parent: nil, Side: Right, Value: "x"}
	if err := text.ApplyRemote(node); err != nil {
		t.Fatalf("re-applying an already-known node should be a no-op, got %v", err)
	}
	if got := text.Visible(); got != "x" {
		t.Fatalf("expected single x, got %q", got)
	}
}

// Scenario 3 (§8): non-interleaving of concurrently inserted runs.
func TestFugueTextNonInterleavingOfConcurrentRuns(t *testing.T) {
	// Replica 1: client "a" inserts "abc" locally.
	replicaA := NewFugueText("doc1", "a")
	idA0 := replicaA.Insert(0, "a")
	idA1 := replicaA.Insert(1, "b")
	idA2 := replicaA.Insert(2, "c")

	// Replica 2: client "b" inserts "XYZ" locally, concurrently, also at
	// position 0 on its own empty copy.
	replicaB := NewFugueText("doc1", "b")
	idB0 := replicaB.Insert(0, "X")
	idB1 := replicaB.Insert(1, "Y")
	idB2 := replicaB.Insert(2, "Z")

	nodesA := []*Node{
		{ID: idA0, Parent: nil, Side: Right, Value: "a"},
		{ID: idA1, Parent: &idA0, Side: Right, Value: "b"},
		{ID: idA2, Parent: &idA1, Side: Right, Value: "c"},
	}
	nodesB := []*Node{
		{ID: idB0, Parent: nil, Side: Right, Value: "X"},
		{ID: idB1, Parent: &idB0, Side: Right, Value: "Y"},
		{ID: idB2, Parent: &idB1, Side: Right, Value: "Z"},
	}

	// Merge both runs into two fresh replicas, applied in opposite
	// node-arrival orders, and confirm they converge to the same,
	// non-interleaved string.
	merge := func(order []*Node) string {
		dst := NewFugueText("doc1", "merge")
		for _, n := range order {
			if err := dst.ApplyRemote(n); err != nil {
				t.Fatalf("unexpected causal delivery error: %v", err)
			}
		}
		return dst.Visible()
	}

	forward := merge(append(append([]*Node{}, nodesA...), nodesB...))
	backward := merge(append(append([]*Node{}, nodesB...), nodesA...))

	if forward != backward {
		t.Fatalf("convergence violated: forward=%q backward=%q", forward, backward)
	}
	if forward != "abcXYZ" && forward != "XYZabc" {
		t.Fatalf("expected contiguous runs, got interleaved result %q", forward)
	}
	if !strings.Contains(forward, "abc") || !strings.Contains(forward, "XYZ") {
		t.Fatalf("expected both runs intact as substrings, got %q", forward)
	}
}

func TestFugueTextSnapshotRoundTrip(t *testing.T) {
	src := NewFugueText("doc1", "a")
	src.Insert(0, "h")
	src.Insert(1, "i")
	src.Delete(0)

	snap := src.Snapshot()
	dst := NewFugueText("doc1", "a")
	if err := dst.LoadSnapshot(snap); err != nil {
		t.Fatalf("unexpected error loading snapshot: %v", err)
	}
	if got, want := dst.Visible(), src.Visible(); got != want {
		t.Fatalf("snapshot round-trip mismatch: got %q want %q", got, want)
	}
	if dst.Stats() != src.Stats() {
		t.Fatalf("snapshot round-trip stats mismatch: got %+v want %+v", dst.Stats(), src.Stats())
	}
}
