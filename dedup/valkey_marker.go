package dedup

import (
	"context"
	"strconv"
	"time"

	"github.com/uzzaidev/ChatBot-Oficial-sub002/infrastructure/valkey"
)

// ValkeyMarker uses SET NX with an expiry as an atomic check-and-set.
type ValkeyMarker struct {
	client *valkey.Client
	ttl    time.Duration
}

func NewValkeyMarker(client *valkey.Client, ttl time.Duration) *ValkeyMarker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ValkeyMarker{client: client, ttl: ttl}
}

func (m *ValkeyMarker) Mark(ctx context.Context, tenantID, messageID string) (bool, error) {
	key := m.client.Key("dedup", tenantID, messageID)
	return m.client.SetNX(ctx, key, strconv.FormatInt(time.Now().UnixMilli(), 10), m.ttl)
}

func (m *ValkeyMarker) Unmark(ctx context.Context, tenantID, messageID string) error {
	return m.client.Del(ctx, m.client.Key("dedup", tenantID, messageID))
}
