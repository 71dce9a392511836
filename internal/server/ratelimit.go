package server

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/mingodad/libnavajo/internal/netaddr"
)

// RateLimiterRegistry keeps one token bucket per peer address.
type RateLimiterRegistry struct {
	limit rate.Limit
	burst int

	mu       sync.RWMutex
	limiters map[netaddr.Address]*rate.Limiter
}

// NewRateLimiterRegistry allows perSecond connections per peer with the
// given burst.
func NewRateLimiterRegistry(perSecond float64, burst int) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[netaddr.Address]*rate.Limiter),
	}
}

// GetOrCreate returns the limiter for addr, creating it on first use.
func (r *RateLimiterRegistry) GetOrCreate(addr netaddr.Address) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[addr]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := r.limiters[addr]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.limit, r.burst)
	r.limiters[addr] = limiter
	return limiter
}

// Allow takes a token for addr.
func (r *RateLimiterRegistry) Allow(addr netaddr.Address) bool {
	return r.GetOrCreate(addr).Allow()
}

// Prune drops limiters whose bucket has refilled, so peers that went quiet
// do not accumulate.
func (r *RateLimiterRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for addr, limiter := range r.limiters {
		if limiter.Tokens() >= float64(r.burst) {
			delete(r.limiters, addr)
			n++
		}
	}
	return n
}

// Len returns the number of tracked peers.
func (r *RateLimiterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}
