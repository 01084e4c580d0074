package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Database.PoolMax)
	assert.Equal(t, 2, cfg.Database.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Database.RetryBackoffUnit)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.DebounceWindow)
	assert.True(t, cfg.Pipeline.Async)
	assert.Same(t, cfg, Global)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PIPELINE_DEBOUNCE_MS", "2500")
	t.Setenv("DB_QUERY_TIMEOUT", "3s")
	t.Setenv("TENANT_CACHE_TTL", "30")
	t.Setenv("HANDOFF_WEBHOOK_URLS", "https://a.example/hook, ,https://b.example/hook")
	t.Setenv("RAG_SIMILARITY_THRESHOLD", "0.82")
	t.Setenv("APP_DEBUG", "on")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, cfg.Pipeline.DebounceWindow)
	assert.Equal(t, 3*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 30*time.Second, cfg.App.TenantCacheTTL)
	assert.Equal(t, []string{"https://a.example/hook", "https://b.example/hook"}, cfg.Notify.WebhookURLs)
	assert.InDelta(t, 0.82, cfg.RAG.SimilarityThreshold, 0.0001)
	assert.True(t, cfg.App.Debug)
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TIMEOUT", time.Minute))

	t.Setenv("SOME_TIMEOUT", "-5")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TIMEOUT", time.Minute))
}
