package repository

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	"gopkg.in/yaml.v3"
)

type tenantFile struct {
	Tenants []domain.Tenant `yaml:"tenants"`
}

// TenantFileRepository serves tenants declared in a YAML file. Used for
// single-tenant deployments and local development; writes stay in memory.
type TenantFileRepository struct {
	mu      sync.RWMutex
	tenants map[string]domain.Tenant
}

func NewTenantFileRepository(path string) (*TenantFileRepository, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants file: %w", err)
	}
	return ParseTenantFile(raw)
}

func ParseTenantFile(raw []byte) (*TenantFileRepository, error) {
	var file tenantFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenants file: %w", err)
	}

	repo := &TenantFileRepository{tenants: make(map[string]domain.Tenant, len(file.Tenants))}
	for i := range file.Tenants {
		t := file.Tenants[i]
		if t.Status == "" {
			t.Status = domain.TenantActive
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tenant %q: %w", t.ID, err)
		}
		if _, dup := repo.tenants[t.ID]; dup {
			return nil, fmt.Errorf("tenant %q declared twice", t.ID)
		}
		repo.tenants[t.ID] = t
	}
	return repo, nil
}

func (r *TenantFileRepository) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return &t, nil
}

func (r *TenantFileRepository) Upsert(_ context.Context, tenant *domain.Tenant) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.tenants[tenant.ID] = *tenant
	r.mu.Unlock()
	return nil
}

// All returns the declared tenants ordered by id.
func (r *TenantFileRepository) All() []domain.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
