package auth

import (
	"sync"
	"time"
)

// History records the last time each key was seen. It is used for
// reporting only and never consulted for access decisions.
type History[K comparable] struct {
	mu   sync.Mutex
	last map[K]time.Time
	now  func() time.Time
}

// NewHistory creates an empty history.
func NewHistory[K comparable]() *History[K] {
	return &History[K]{last: make(map[K]time.Time), now: time.Now}
}

// Touch records key as seen now.
func (h *History[K]) Touch(key K) {
	h.mu.Lock()
	h.last[key] = h.now()
	h.mu.Unlock()
}

// LastSeen returns when key was last recorded.
func (h *History[K]) LastSeen(key K) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.last[key]
	return t, ok
}

// Snapshot returns a copy of the history.
func (h *History[K]) Snapshot() map[K]time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[K]time.Time, len(h.last))
	for k, v := range h.last {
		out[k] = v
	}
	return out
}

// Len returns the number of distinct keys recorded.
func (h *History[K]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.last)
}
