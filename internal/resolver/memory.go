package resolver

import (
	"sync"
	"time"

	"mandi/internal/models"
)

// DefaultMemoryTTL bounds how long an in-process entry may serve a
// same-day query before the persistent tiers are consulted again.
const DefaultMemoryTTL = 10 * time.Minute

type memoryItem struct {
	records []models.PriceRecord
	expires time.Time
}

// MemoryCache is the in-process tier: a mutex-guarded TTL map owned and
// injected by the resolver, never ambient state. Clear gives tests and
// operators a clean slate.
type MemoryCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]memoryItem
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &MemoryCache{
		ttl:   ttl,
		items: make(map[string]memoryItem),
	}
}

func (m *MemoryCache) Get(key string) ([]models.PriceRecord, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(it.expires) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, false
	}
	out := make([]models.PriceRecord, len(it.records))
	copy(out, it.records)
	return out, true
}

func (m *MemoryCache) Set(key string, records []models.PriceRecord) {
	if m == nil || key == "" || len(records) == 0 {
		return
	}
	cp := make([]models.PriceRecord, len(records))
	copy(cp, records)
	m.mu.Lock()
	m.items[key] = memoryItem{records: cp, expires: time.Now().Add(m.ttl)}
	m.mu.Unlock()
}

func (m *MemoryCache) Clear() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.items = make(map[string]memoryItem)
	m.mu.Unlock()
}

func (m *MemoryCache) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
