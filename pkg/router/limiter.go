package router

import (
	"sync"
	"time"
)

// IPRateLimiter caps the number of concurrent connections per remote IP,
// counting each from accept until its handshake fails or its session ends,
// so a connection flood cannot exhaust handshake goroutines (spec.md §5, an
// ambient hardening
// measure distinct from the application-level rate limiting the spec's
// Non-goals exclude).
type IPRateLimiter struct {
	mu          sync.Mutex
	connections map[string]int
	maxPerIP    int
}

// NewIPRateLimiter creates a new IPRateLimiter; maxPerIP <= 0 disables it.
func NewIPRateLimiter(maxPerIP int) *IPRateLimiter {
	return &IPRateLimiter{
		connections: make(map[string]int),
		maxPerIP:    maxPerIP,
	}
}

// AllowConnection reports whether ip may open a new connection,
// incrementing its count if so.
func (l *IPRateLimiter) AllowConnection(ip string) bool {
	if l.maxPerIP <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connections[ip] >= l.maxPerIP {
		return false
	}
	l.connections[ip]++
	return true
}

// ReleaseConnection decrements ip's count; Listener calls it when the
// connection's handshake fails or its session ends.
func (l *IPRateLimiter) ReleaseConnection(ip string) {
	if l.maxPerIP <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connections[ip] > 0 {
		l.connections[ip]--
		if l.connections[ip] == 0 {
			delete(l.connections, ip)
		}
	}
}

// HandshakeLimiter throttles the overall rate of incoming handshakes with a
// token bucket, independent of per-IP accounting.
type HandshakeLimiter struct {
	mu         sync.Mutex
	rate       float64
	burst      int
	tokens     float64
	lastRefill time.Time
}

// NewHandshakeLimiter creates a limiter allowing rate handshakes/second with
// bursts up to burst; rate <= 0 disables it.
func NewHandshakeLimiter(rate float64, burst int) *HandshakeLimiter {
	return &HandshakeLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (l *HandshakeLimiter) Allow() bool {
	if l.rate <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastRefill = now

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}
