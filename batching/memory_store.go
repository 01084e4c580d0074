package batching

import (
	"context"
	"sync"
	"time"
)

type memoryBatch struct {
	items   []string
	token   string
	at      time.Time
	expires time.Time
}

// MemoryStore keeps batches in process. Single instance deployments only.
type MemoryStore struct {
	mu      sync.Mutex
	batches map[string]*memoryBatch
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string]*memoryBatch), now: time.Now}
}

func (m *MemoryStore) get(key string) *memoryBatch {
	b, ok := m.batches[key]
	if !ok {
		return nil
	}
	if m.now().After(b.expires) {
		delete(m.batches, key)
		return nil
	}
	return b
}

func (m *MemoryStore) Push(_ context.Context, key, token, content string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.get(key)
	if b == nil {
		b = &memoryBatch{}
		m.batches[key] = b
	}
	now := m.now()
	b.items = append(b.items, content)
	b.token, b.at = token, now
	b.expires = now.Add(ttl)
	return nil
}

func (m *MemoryStore) Marker(_ context.Context, key string) (Marker, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.get(key)
	if b == nil {
		return Marker{}, false, nil
	}
	return Marker{Token: b.token, Quiet: m.now().Sub(b.at)}, true, nil
}

func (m *MemoryStore) Drain(_ context.Context, key, token string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.get(key)
	if b == nil || b.token != token {
		return nil, false, nil
	}
	delete(m.batches, key)
	return b.items, true, nil
}
