package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
)

type countingRepo struct {
	calls   int
	tenants map[string]*domain.Tenant
}

func (r *countingRepo) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.calls++
	t, ok := r.tenants[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *countingRepo) Upsert(_ context.Context, t *domain.Tenant) error {
	r.tenants[t.ID] = t
	return nil
}

func TestCachedResolver_CachesUntilExpiry(t *testing.T) {
	repo := &countingRepo{tenants: map[string]*domain.Tenant{
		"acme": {ID: "acme", Status: domain.TenantActive},
	}}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewCachedResolver(repo, time.Minute)
	r.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		tenant, err := r.Resolve(context.Background(), "acme")
		require.NoError(t, err)
		assert.Equal(t, "acme", tenant.ID)
	}
	assert.Equal(t, 1, repo.calls)

	now = now.Add(2 * time.Minute)
	_, err := r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)

	r.Invalidate("acme")
	_, err = r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls)
}

func TestCachedResolver_NotFoundIsNotCached(t *testing.T) {
	repo := &countingRepo{tenants: map[string]*domain.Tenant{}}
	r := NewCachedResolver(repo, time.Minute)

	_, err := r.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
	_, err = r.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
	assert.Equal(t, 2, repo.calls)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestCachedResolver_ReturnsCopies(t *testing.T) {
	repo := &countingRepo{tenants: map[string]*domain.Tenant{
		"acme": {ID: "acme", Status: domain.TenantActive, SystemPrompt: "original"},
	}}
	r := NewCachedResolver(repo, time.Minute)

	first, err := r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	first.SystemPrompt = "mutated"

	second, err := r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "original", second.SystemPrompt)
}
