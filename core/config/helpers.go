package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetAllSettings returns a map of the operational settings currently loaded in memory.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_debug":                 Global.App.Debug,
		"app_version":               Global.App.Version,
		"db_driver":                 Global.Database.Driver,
		"db_pool_max":               Global.Database.PoolMax,
		"db_query_timeout":          Global.Database.QueryTimeout.String(),
		"valkey_enabled":            Global.Database.ValkeyEnabled,
		"pipeline_async":            Global.Pipeline.Async,
		"pipeline_debounce_window":  Global.Pipeline.DebounceWindow.String(),
		"pipeline_history_limit":    Global.Pipeline.HistoryLimit,
		"rag_enabled":               Global.RAG.Enabled,
		"rag_top_k":                 Global.RAG.TopK,
		"rag_similarity_threshold":  Global.RAG.SimilarityThreshold,
		"delivery_max_segment_char": Global.Delivery.MaxSegmentChars,
		"ai_default_model":          Global.AI.DefaultModel,
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		vLower := strings.ToLower(v)
		return vLower == "1" || vLower == "true" || vLower == "yes" || vLower == "on"
	}
	return fallback
}

// getEnvDuration accepts Go durations ("1500ms", "2s") or plain integers.
// Plain integers are milliseconds when the key ends in _MS, seconds otherwise.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	if strings.HasSuffix(key, "_MS") {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
