package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/crypto"
)

func newTestRepo(t *testing.T) *TenantGormRepository {
	t.Helper()
	db, err := database.NewClient(config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "tenants.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewTenantGormRepository(db)
	require.NoError(t, repo.InitSchema(context.Background()))
	return repo
}

func TestTenantGormRepository_UpsertAndGet(t *testing.T) {
	crypto.SetEncryptionKey("tenant-test")
	t.Cleanup(func() { crypto.SetEncryptionKey("") })

	repo := newTestRepo(t)
	ctx := context.Background()

	tenant := &domain.Tenant{
		ID:            "acme",
		Name:          "Acme",
		Status:        domain.TenantActive,
		VerifyToken:   "verify-me",
		AppSecret:     "s3cret",
		AccessToken:   "EAAG-token",
		PhoneNumberID: "10987",
		SystemPrompt:  "Você é a assistente da Acme.",
		Model:         domain.ModelSelection{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0.4},
		Notify:        domain.NotificationTargets{Emails: []string{"ops@acme.test"}},
	}
	require.NoError(t, repo.Upsert(ctx, tenant))

	got, err := repo.GetByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got.AppSecret)
	assert.Equal(t, "verify-me", got.VerifyToken)
	assert.Equal(t, "gpt-4o-mini", got.Model.Model)
	assert.Equal(t, []string{"ops@acme.test"}, got.Notify.Emails)
	assert.True(t, got.IsActive())

	// secrets are not stored in clear text
	var stored tenantModel
	require.NoError(t, repo.db.DB().First(&stored, "id = ?", "acme").Error)
	assert.NotEqual(t, "s3cret", stored.AppSecret)

	tenant.Status = domain.TenantInactive
	require.NoError(t, repo.Upsert(ctx, tenant))
	got, err = repo.GetByID(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, got.IsActive())
}

func TestTenantGormRepository_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetByID(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestTenantGormRepository_RejectsInvalidTenant(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Upsert(context.Background(), &domain.Tenant{ID: "x", Status: "paused"})
	assert.Error(t, err)
}

func TestParseTenantFile(t *testing.T) {
	raw := []byte(`
tenants:
  - id: acme
    name: Acme
    verify_token: tok
    app_secret: secret
    access_token: EAAG
    phone_number_id: "123"
    system_prompt: Be nice
    model:
      model: gpt-4o-mini
      temperature: 0.2
    notify:
      emails: [ops@acme.test]
      webhooks: [https://hooks.acme.test/handoff]
  - id: beta
    status: inactive
`)
	repo, err := ParseTenantFile(raw)
	require.NoError(t, err)

	acme, err := repo.GetByID(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantActive, acme.Status)
	assert.Equal(t, "secret", acme.AppSecret)
	assert.Equal(t, "123", acme.PhoneNumberID)
	assert.Equal(t, []string{"https://hooks.acme.test/handoff"}, acme.Notify.Webhooks)

	beta, err := repo.GetByID(context.Background(), "beta")
	require.NoError(t, err)
	assert.False(t, beta.IsActive())

	all := repo.All()
	require.Len(t, all, 2)
	assert.Equal(t, "acme", all[0].ID)
	assert.Equal(t, "beta", all[1].ID)
}

func TestParseTenantFile_Invalid(t *testing.T) {
	_, err := ParseTenantFile([]byte("tenants:\n  - id: a\n    notify:\n      emails: [not-an-email]\n"))
	assert.Error(t, err)

	_, err = ParseTenantFile([]byte("tenants:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)
}
