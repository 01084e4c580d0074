package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
)

func newHistoryRepo(t *testing.T) *HistoryGormRepository {
	t.Helper()
	db, err := database.NewClient(config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewHistoryGormRepository(db)
	require.NoError(t, repo.InitSchema(context.Background()))
	return repo
}

func TestHistory_FetchRecentIsBoundedAndOrdered(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		role := domain.RoleUser
		if i%2 == 0 {
			role = domain.RoleAssistant
		}
		require.NoError(t, repo.Append(ctx, &domain.ChatMessage{
			TenantID: "acme",
			Phone:    "5511",
			Role:     role,
			Content:  fmt.Sprintf("msg %d", i),
		}))
	}
	require.NoError(t, repo.Append(ctx, &domain.ChatMessage{TenantID: "acme", Phone: "other", Role: domain.RoleUser, Content: "x"}))

	got, err := repo.FetchRecent(ctx, "acme", "5511", 4)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "msg 3", got[0].Content)
	assert.Equal(t, "msg 6", got[3].Content)

	none, err := repo.FetchRecent(ctx, "acme", "5511", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistory_FailedAssistantSegmentsAreNotHistory(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, &domain.ChatMessage{TenantID: "acme", Phone: "5511", Role: domain.RoleUser, Content: "oi"}))
	require.NoError(t, repo.Append(ctx, &domain.ChatMessage{TenantID: "acme", Phone: "5511", Role: domain.RoleAssistant, Content: "lost", DeliveryStatus: "failed"}))
	require.NoError(t, repo.Append(ctx, &domain.ChatMessage{TenantID: "acme", Phone: "5511", Role: domain.RoleAssistant, Content: "olá!", DeliveryStatus: "sent"}))

	got, err := repo.FetchRecent(ctx, "acme", "5511", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "olá!", got[1].Content)
}

func TestHistory_DeliveryStatusOnlyAdvances(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, &domain.ChatMessage{
		TenantID: "acme", Phone: "5511", Role: domain.RoleAssistant,
		Content: "hi", ProviderMessageID: "wamid.OUT1", DeliveryStatus: "sent",
	}))

	require.NoError(t, repo.UpdateDeliveryStatus(ctx, "acme", "wamid.OUT1", "read"))
	require.NoError(t, repo.UpdateDeliveryStatus(ctx, "acme", "wamid.OUT1", "delivered"))

	got, err := repo.FetchRecent(ctx, "acme", "5511", 1)
	require.NoError(t, err)
	assert.Equal(t, "read", got[0].DeliveryStatus)

	assert.ErrorIs(t, repo.UpdateDeliveryStatus(ctx, "acme", "wamid.UNKNOWN", "read"), domain.ErrMessageNotFound)
	assert.ErrorIs(t, repo.UpdateDeliveryStatus(ctx, "beta", "wamid.OUT1", "read"), domain.ErrMessageNotFound)
}

func TestHistory_SetReaction(t *testing.T) {
	repo := newHistoryRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, &domain.ChatMessage{
		TenantID: "acme", Phone: "5511", Role: domain.RoleAssistant,
		Content: "hi", ProviderMessageID: "wamid.OUT2",
	}))
	require.NoError(t, repo.SetReaction(ctx, "acme", "wamid.OUT2", "👍"))

	got, err := repo.FetchRecent(ctx, "acme", "5511", 1)
	require.NoError(t, err)
	assert.Equal(t, "👍", got[0].Reaction)

	assert.ErrorIs(t, repo.SetReaction(ctx, "acme", "wamid.NOPE", "👍"), domain.ErrMessageNotFound)
}
