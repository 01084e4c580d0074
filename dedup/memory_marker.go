package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryMarker is the single instance replacement for the valkey marker.
type MemoryMarker struct {
	mu    sync.Mutex
	ttl   time.Duration
	seen  map[string]time.Time
	now   func() time.Time
	marks int
}

func NewMemoryMarker(ttl time.Duration) *MemoryMarker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryMarker{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryMarker) Mark(_ context.Context, tenantID, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.marks++
	if m.marks%256 == 0 {
		for k, exp := range m.seen {
			if now.After(exp) {
				delete(m.seen, k)
			}
		}
	}

	key := Record{TenantID: tenantID, MessageID: messageID}.Key()
	if exp, ok := m.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.seen[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryMarker) Unmark(_ context.Context, tenantID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, Record{TenantID: tenantID, MessageID: messageID}.Key())
	return nil
}
