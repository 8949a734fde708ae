package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/thinking/metrics"
)

// MemoryConfig bounds the in-memory LRU store.
type MemoryConfig struct {
	MaxEntries int   `yaml:"max_entries"` // 0 = default
	MaxBytes   int64 `yaml:"max_bytes"`   // 0 = default
}

// DefaultMemoryConfig provides sensible defaults.
var DefaultMemoryConfig = MemoryConfig{
	MaxEntries: 512,
	MaxBytes:   64 << 20, // 64 MiB
}

type memoryEntry struct {
	key       string
	value     []byte
	size      int64
	expiresAt time.Time
	elem      *list.Element
}

// Memory is an in-memory LRU cache bounded by entry count and byte
// budget. Eviction happens synchronously on insert and never evicts a
// key whose computation is currently in flight.
type Memory struct {
	mu      sync.Mutex
	cfg     MemoryConfig
	entries map[string]*memoryEntry
	order   *list.List // front = most recently used
	bytes   int64

	// guard reports whether a key's computation is in flight; set by the
	// coordinator that owns this store.
	guard func(key string) bool

	now func() time.Time
}

// NewMemory creates a bounded in-memory store.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMemoryConfig.MaxEntries
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMemoryConfig.MaxBytes
	}
	return &Memory{
		cfg:     cfg,
		entries: make(map[string]*memoryEntry),
		order:   list.New(),
		now:     time.Now,
	}
}

// SetEvictionGuard installs the in-flight predicate consulted before
// evicting a key.
func (m *Memory) SetEvictionGuard(guard func(key string) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guard = guard
}

// Name identifies the backend.
func (m *Memory) Name() string { return "memory" }

// Get returns the payload for key, updating recency. Expired entries
// are removed lazily.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.remove(e)
		return nil, false, nil
	}

	m.order.MoveToFront(e.elem)
	return e.value, true, nil
}

// Set stores the payload under key and evicts least-recently-used
// entries until the store fits its budgets again.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}

	if e, ok := m.entries[key]; ok {
		m.bytes += int64(len(value)) - e.size
		e.value = value
		e.size = int64(len(value))
		e.expiresAt = expiresAt
		m.order.MoveToFront(e.elem)
	} else {
		e := &memoryEntry{
			key:       key,
			value:     value,
			size:      int64(len(value)),
			expiresAt: expiresAt,
		}
		e.elem = m.order.PushFront(e)
		m.entries[key] = e
		m.bytes += e.size
	}

	m.evictOverBudget()
	return nil
}

// Delete removes key if present.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		m.remove(e)
	}
	return nil
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error { return nil }

// Len returns the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// must be called with the lock held
func (m *Memory) evictOverBudget() {
	for len(m.entries) > m.cfg.MaxEntries || m.bytes > m.cfg.MaxBytes {
		evicted := false
		for elem := m.order.Back(); elem != nil; elem = elem.Prev() {
			e := elem.Value.(*memoryEntry)
			if m.guard != nil && m.guard(e.key) {
				continue // computation in flight, skip
			}
			m.remove(e)
			metrics.CacheEvictions.Inc()
			evicted = true
			break
		}
		if !evicted {
			return // everything remaining is in flight
		}
	}
}

// must be called with the lock held
func (m *Memory) remove(e *memoryEntry) {
	m.order.Remove(e.elem)
	delete(m.entries, e.key)
	m.bytes -= e.size
}
