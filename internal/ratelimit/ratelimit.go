// Package ratelimit holds the limiters behind max_messages_per_minute and
// max_connections_per_ip (§6). MessageLimiter is a per-connection
// golang.org/x/time/rate token bucket that the coordinator consults on
// its ingest path. ConnectionLimiter counts open connections per source
// IP; nothing in this module calls it, so the per-IP cap is not enforced.
package ratelimit

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// MessageLimiter gives each connection its own token bucket, refilled
// at maxPerMinute and capped at a one-minute burst.
type MessageLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	buckets      map[string]*rate.Limiter
}

// NewMessageLimiter builds a limiter honoring max_messages_per_minute.
func NewMessageLimiter(maxPerMinute int) *MessageLimiter {
	return &MessageLimiter{maxPerMinute: maxPerMinute, buckets: make(map[string]*rate.Limiter)}
}

// Allow reports whether connID may send another message right now.
func (m *MessageLimiter) Allow(connID string) bool {
	m.mu.Lock()
	b, ok := m.buckets[connID]
	if !ok {
		perSecond := float64(m.maxPerMinute) / 60.0
		b = rate.NewLimiter(rate.Limit(perSecond), m.maxPerMinute)
		m.buckets[connID] = b
	}
	m.mu.Unlock()
	return b.Allow()
}

// Forget releases a connection's bucket on disconnect.
func (m *MessageLimiter) Forget(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, connID)
}

// ConnectionLimiter caps concurrent connections per source IP
// (max_connections_per_ip).
type ConnectionLimiter struct {
	mu      sync.Mutex
	maxConn int
	counts  map[string]int
}

// NewConnectionLimiter builds a limiter honoring max_connections_per_ip.
func NewConnectionLimiter(maxConn int) *ConnectionLimiter {
	return &ConnectionLimiter{maxConn: maxConn, counts: make(map[string]int)}
}

// TryAcquire reports whether addr may open another connection, and if
// so, reserves a slot. The caller must call Release on disconnect.
func (c *ConnectionLimiter) TryAcquire(addr string) bool {
	ip := hostOf(addr)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[ip] >= c.maxConn {
		return false
	}
	c.counts[ip]++
	return true
}

// Release frees a previously-acquired slot for addr.
func (c *ConnectionLimiter) Release(addr string) {
	ip := hostOf(addr)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[ip] > 0 {
		c.counts[ip]--
		if c.counts[ip] == 0 {
			delete(c.counts, ip)
		}
	}
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
