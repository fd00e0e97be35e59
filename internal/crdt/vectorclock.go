// Package crdt implements the replicated document core: vector clocks,
// the LWW map document, and the Fugue text CRDT.
package crdt

import (
	"encoding/json"
	"math"
	"sync"
)

// VectorClock is a mapping from client id to a monotone, non-negative
// counter. A missing key is implicitly zero.
type VectorClock struct {
	mu     sync.RWMutex
	counts map[string]uint64
}

// NewVectorClock returns an empty clock.
func NewVectorClock() *VectorClock {
	return &VectorClock{counts: make(map[string]uint64)}
}

// FromMap builds a clock from a snapshot, copying the map.
func FromMap(m map[string]uint64) *VectorClock {
	c := NewVectorClock()
	for k, v := range m {
		c.counts[k] = v
	}
	return c
}

// Get returns the stored counter for client, or 0 if absent.
func (c *VectorClock) Get(client string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[client]
}

// Tick increments the entry for client by 1 and returns the new value.
// A counter that would overflow past math.MaxInt64 is a fatal invariant
// breach (§4.1): it does not wrap, it refuses the tick.
func (c *VectorClock) Tick(client string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.counts[client]
	if cur >= math.MaxInt64 {
		return cur, false
	}
	cur++
	c.counts[client] = cur
	return cur, true
}

// ToMap returns a copy of the underlying counters.
func (c *VectorClock) ToMap() map[string]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of the clock.
func (c *VectorClock) Clone() *VectorClock {
	return FromMap(c.ToMap())
}

// Merge returns the pointwise maximum of self and other. Snapshots are
// taken before comparison so that merging a clock with itself (or two
// clocks sharing a mutex via aliasing) never deadlocks.
func (c *VectorClock) Merge(other *VectorClock) *VectorClock {
	a := c.ToMap()
	b := other.ToMap()
	merged := make(map[string]uint64, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		if v > merged[k] {
			merged[k] = v
		}
	}
	return FromMap(merged)
}

// MergeInPlace merges other into self, mutating self.
func (c *VectorClock) MergeInPlace(other *VectorClock) {
	b := other.ToMap()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range b {
		if v > c.counts[k] {
			c.counts[k] = v
		}
	}
}

// lessEqual reports whether a <= b pointwise, treating missing keys as 0.
func lessEqual(a, b map[string]uint64) bool {
	for k, v := range a {
		if v > b[k] {
			return false
		}
	}
	return true
}

func mapsEqual(a, b map[string]uint64) bool {
	for k, v := range a {
		if v != 0 && b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if v != 0 && a[k] != v {
			return false
		}
	}
	return true
}

// HappensBefore reports whether self <= other pointwise and self != other.
func (c *VectorClock) HappensBefore(other *VectorClock) bool {
	a := c.ToMap()
	b := other.ToMap()
	return lessEqual(a, b) && !mapsEqual(a, b)
}

// HappensAfter reports whether other happens-before self.
func (c *VectorClock) HappensAfter(other *VectorClock) bool {
	return other.HappensBefore(c)
}

// IsConcurrent reports whether neither clock happens-before the other.
func (c *VectorClock) IsConcurrent(other *VectorClock) bool {
	return !c.HappensBefore(other) && !other.HappensBefore(c)
}

// Equal reports whether all non-zero entries match pairwise.
func (c *VectorClock) Equal(other *VectorClock) bool {
	return mapsEqual(c.ToMap(), other.ToMap())
}

// LessEqualOrEqual reports whether self <= other pointwise (used by
// deltas_since: a delta already observed by the caller satisfies this).
func (c *VectorClock) LessEqualOrEqual(other *VectorClock) bool {
	return lessEqual(c.ToMap(), other.ToMap())
}

func (c *VectorClock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToMap())
}

func (c *VectorClock) UnmarshalJSON(data []byte) error {
	var m map[string]uint64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = m
	if c.counts == nil {
		c.counts = make(map[string]uint64)
	}
	return nil
}
