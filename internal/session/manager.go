package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
)

const (
	// DefaultTTL is the session lifetime when none is configured.
	DefaultTTL = 20 * time.Minute

	// sweepThrottle bounds how often Create triggers a sweep.
	sweepThrottle = 60 * time.Second

	// maxIDAttempts bounds the regenerate-on-collision loop.
	maxIDAttempts = 16
)

// Hooks receives lifecycle notifications. Every field is optional.
// Hooks are called without the table lock held.
type Hooks struct {
	Created func()
	Expired func(n int)
	Removed func()
}

type entry struct {
	attrs     map[string]Value
	expiresAt time.Time
}

// Manager is a concurrency-safe session table.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	ttl       time.Duration
	lastSweep time.Time

	now   func() time.Time
	newID func() (string, error)
	hooks Hooks
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the sliding session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator replaces NewID. Used by tests.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithHooks installs lifecycle notifications.
func WithHooks(h Hooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// NewManager creates an empty session table.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*entry),
		ttl:      DefaultTTL,
		now:      time.Now,
		newID:    NewID,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastSweep = m.now()
	return m
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttl
}

// SetTTL changes the lifetime applied to future creations and lookups.
func (m *Manager) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.ttl = ttl
	m.mu.Unlock()
}

// Create registers a new session with no attributes and returns its ID.
func (m *Manager) Create() (string, error) {
	m.mu.Lock()
	var id string
	for attempt := 0; ; attempt++ {
		if attempt == maxIDAttempts {
			m.mu.Unlock()
			return "", fmt.Errorf("session: no unique id after %d attempts", maxIDAttempts)
		}
		candidate, err := m.newID()
		if err != nil {
			m.mu.Unlock()
			return "", fmt.Errorf("session: generating id: %w", err)
		}
		if _, exists := m.sessions[candidate]; !exists {
			id = candidate
			break
		}
	}

	now := m.now()
	m.sessions[id] = &entry{
		attrs:     make(map[string]Value),
		expiresAt: now.Add(m.ttl),
	}
	sweepDue := now.Sub(m.lastSweep) > sweepThrottle
	m.mu.Unlock()

	if m.hooks.Created != nil {
		m.hooks.Created()
	}
	if sweepDue {
		m.SweepExpired()
	}
	return id, nil
}

// Find reports whether id names a live session and extends its expiry.
func (m *Manager) Find(id string) bool {
	if id == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(id)
	if !ok {
		return false
	}
	e.expiresAt = m.now().Add(m.ttl)
	return true
}

// live returns the entry if it exists and has not expired. Caller holds mu.
func (m *Manager) live(id string) (*entry, bool) {
	e, ok := m.sessions[id]
	if !ok || !e.expiresAt.After(m.now()) {
		return nil, false
	}
	return e, true
}

// SetAttribute stores v under name. Unknown sessions are ignored.
func (m *Manager) SetAttribute(id, name string, v Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.live(id); ok {
		e.attrs[name] = v.clone()
	}
}

// Attribute returns the value stored under name.
func (m *Manager) Attribute(id, name string) (Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(id)
	if !ok {
		return Value{}, false
	}
	v, ok := e.attrs[name]
	if !ok {
		return Value{}, false
	}
	return v.clone(), true
}

// RemoveAttribute deletes one attribute. The session keeps its expiry.
func (m *Manager) RemoveAttribute(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		delete(e.attrs, name)
	}
}

// AttributeNames returns the sorted attribute names of a session.
func (m *Manager) AttributeNames(id string) []string {
	m.mu.Lock()
	e, ok := m.live(id)
	if !ok {
		m.mu.Unlock()
		return nil
	}
	names := make([]string, 0, len(e.attrs))
	for name := range e.attrs {
		names = append(names, name)
	}
	m.mu.Unlock()

	sort.Strings(names)
	return names
}

// Remove drops a session and all its attributes.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok && m.hooks.Removed != nil {
		m.hooks.Removed()
	}
}

// SweepExpired removes every session whose expiry is not in the future and
// returns how many were removed.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()
	now := m.now()
	removed := 0
	for id, e := range m.sessions {
		if !e.expiresAt.After(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	m.lastSweep = now
	m.mu.Unlock()

	if removed > 0 {
		logging.Debug("Expired sessions removed", zap.Int("count", removed))
		if m.hooks.Expired != nil {
			m.hooks.Expired(removed)
		}
	}
	return removed
}

// Len returns the number of sessions in the table, expired or not.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close drops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	if n > 0 {
		logging.Debug("Session table cleared", zap.Int("count", n))
	}
}

// Run sweeps expired sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = sweepThrottle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepExpired()
		}
	}
}
