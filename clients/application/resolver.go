package application

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
)

type cacheEntry struct {
	tenant    *domain.Tenant
	expiresAt time.Time
}

// CachedResolver resuelve la configuración del tenant con una caché en memoria
// por proceso. Solo se cachean resultados exitosos.
type CachedResolver struct {
	repo domain.TenantRepository
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCachedResolver crea el resolver; ttl <= 0 desactiva la caché
func NewCachedResolver(repo domain.TenantRepository, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if tenantID == "" {
		return nil, domain.ErrTenantNotFound
	}

	if r.ttl > 0 {
		r.mu.RLock()
		entry, ok := r.entries[tenantID]
		r.mu.RUnlock()
		if ok && r.now().Before(entry.expiresAt) {
			copied := *entry.tenant
			return &copied, nil
		}
	}

	tenant, err := r.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if r.ttl > 0 {
		stored := *tenant
		r.mu.Lock()
		r.entries[tenantID] = cacheEntry{tenant: &stored, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	logrus.WithField("tenant_id", tenantID).Debug("[TenantResolver] tenant loaded from repository")
	return tenant, nil
}

// Invalidate drops a cached tenant so the next Resolve reads the repository.
func (r *CachedResolver) Invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.entries, tenantID)
	r.mu.Unlock()
}
