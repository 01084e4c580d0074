package domain

import "context"

// TenantRepository define las operaciones de persistencia para tenants
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*Tenant, error)
	Upsert(ctx context.Context, tenant *Tenant) error
}

// TenantResolver resolves the configuration used to authenticate and serve a webhook.
type TenantResolver interface {
	Resolve(ctx context.Context, tenantID string) (*Tenant, error)
}
