package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryEdgeTier is the in-process edge tier: a TTL map pruned lazily
// on access. Entries are process-local; separate processes each keep
// their own edge, reconciled only through the regional tier.
type MemoryEdgeTier struct {
	mu      sync.RWMutex
	items   map[string]edgeItem
	nowFunc func() time.Time
}

type edgeItem struct {
	value     string
	expiresAt time.Time
}

// NewMemoryEdgeTier creates an empty edge tier.
func NewMemoryEdgeTier() *MemoryEdgeTier {
	return &MemoryEdgeTier{
		items:   make(map[string]edgeItem),
		nowFunc: time.Now,
	}
}

// Match returns the stored value if present and unexpired.
func (t *MemoryEdgeTier) Match(_ context.Context, key string) (string, bool, error) {
	t.mu.RLock()
	item, ok := t.items[key]
	t.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if t.nowFunc().After(item.expiresAt) {
		t.mu.Lock()
		delete(t.items, key)
		t.mu.Unlock()
		return "", false, nil
	}
	return item.value, true, nil
}

// Put stores a value with the given TTL, pruning expired entries as a
// side effect.
func (t *MemoryEdgeTier) Put(_ context.Context, key, value string, ttl time.Duration) error {
	now := t.nowFunc()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, item := range t.items {
		if now.After(item.expiresAt) {
			delete(t.items, k)
		}
	}
	t.items[key] = edgeItem{value: value, expiresAt: now.Add(ttl)}
	return nil
}

// Delete removes a key.
func (t *MemoryEdgeTier) Delete(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, key)
	return nil
}

// SetNow overrides the clock. For tests.
func (t *MemoryEdgeTier) SetNow(nowFunc func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nowFunc = nowFunc
}

// Len reports the number of live entries.
func (t *MemoryEdgeTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}
