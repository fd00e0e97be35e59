package crdt

import "testing"

func TestVectorClockTickMonotone(t *testing.T) {
	vc := NewVectorClock()
	for i := 0; i < 5; i++ {
		if _, ok := vc.Tick("a"); !ok {
			t.Fatalf("tick %d should not fail", i)
		}
	}
	if got := vc.Get("a"); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := vc.Get("unknown"); got != 0 {
		t.Fatalf("missing key should be 0, got %d", got)
	}
}

func TestVectorClockMergeCommutativeAssociativeIdempotent(t *testing.T) {
	a := FromMap(map[string]uint64{"a": 2, "b": 1})
	b := FromMap(map[string]uint64{"b": 3, "c": 1})
	c := FromMap(map[string]uint64{"a": 1, "c": 2})

	ab := a.Merge(b)
	ba := b.Merge(a)
	if !ab.Equal(ba) {
		t.Fatal("merge must be commutative")
	}

	abc1 := ab.Merge(c)
	bc := b.Merge(c)
	abc2 := a.Merge(bc)
	if !abc1.Equal(abc2) {
		t.Fatal("merge must be associative")
	}

	idem := ab.Merge(ab)
	if !idem.Equal(ab) {
		t.Fatal("merge must be idempotent")
	}
}

func TestVectorClockHappensBeforeAndConcurrent(t *testing.T) {
	a := FromMap(map[string]uint64{"a": 1})
	b := FromMap(map[string]uint64{"a": 1, "b": 1})
	if !a.HappensBefore(b) {
		t.Fatal("a should happen-before b")
	}
	if b.HappensBefore(a) {
		t.Fatal("b should not happen-before a")
	}

	c := FromMap(map[string]uint64{"a": 1, "c": 1})
	if !b.IsConcurrent(c) {
		t.Fatal("b and c should be concurrent")
	}
	if b.HappensBefore(c) || c.HappensBefore(b) {
		t.Fatal("concurrent clocks must not happen-before each other")
	}
}

func TestVectorClockEqual(t *testing.T) {
	a := FromMap(map[string]uint64{"a": 1, "b": 2})
	b := FromMap(map[string]uint64{"a": 1, "b": 2})
	if !a.Equal(b) {
		t.Fatal("identical clocks should be equal")
	}
	if a.HappensBefore(b) || b.HappensBefore(a) {
		t.Fatal("equal clocks do not happen-before each other")
	}
	// §4.1 defines is_concurrent as "neither happens-before the other",
	// which literally includes the equal case.
	if !a.IsConcurrent(b) {
		t.Fatal("equal clocks satisfy is_concurrent's literal definition")
	}
}
