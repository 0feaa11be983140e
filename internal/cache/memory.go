package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/travelsearch/internal/model"
)

// Memory is an in-process Cache. Expired entries are evicted by the read
// that discovers them; there is no background sweep.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]model.Offer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.Expired(m.now()) {
		delete(m.entries, key)
		zap.L().Debug("cache entry expired", zap.String("key", ShortKey(key)))
		return nil, false
	}
	return cloneOffers(e.Data), true
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, data []model.Offer, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Entry{
		Key:       key,
		Data:      cloneOffers(data),
		Timestamp: m.now(),
		TTL:       effectiveTTL(ttl),
	}
}

// Clear implements Cache.
func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Entry)
}

// Size implements Cache.
func (m *Memory) Size(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
