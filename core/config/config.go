package config

import (
	"os"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Whatsapp   WhatsappConfig
	AI         AIConfig
	Media      MediaConfig
	Pipeline   PipelineConfig
	RAG        RAGConfig
	Delivery   DeliveryConfig
	Notify     NotifyConfig
	Monitor    MonitorConfig
	WorkerPool WorkerPoolConfig
	Security   SecurityConfig
}

type AppConfig struct {
	Version        string
	Port           string
	Debug          bool
	Environment    string
	LogFormat      string
	LogLevel       string
	Timezone       string
	BasicAuth      []string
	BasePath       string
	TrustedProxies []string
	TenantsFile    string
	TenantCacheTTL time.Duration
	VerifyRateMax  int
	VerifyRateTTL  time.Duration
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB Name for Postgres
	SSLMode  string

	PoolMax          int
	PoolIdleTimeout  time.Duration
	QueryTimeout     time.Duration
	ProbeTimeout     time.Duration
	SlowQuery        time.Duration
	MaxRetries       int
	RetryBackoffUnit time.Duration

	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type WhatsappConfig struct {
	GraphBaseURL    string
	GraphVersion    string
	HTTPTimeout     time.Duration
	MaxDownloadSize int64
}

type AIConfig struct {
	GatewayBaseURL     string
	GatewayAPIKey      string
	DefaultModel       string
	DefaultTemperature float64
	DefaultMaxTokens   int
	Timeout            time.Duration
	GlobalSystemPrompt string
}

type MediaConfig struct {
	OpenAIAPIKey       string
	TranscriptionModel string
	GeminiAPIKey       string
	VisionModel        string
	MaxImageDimension  int
	Timeout            time.Duration
}

type PipelineConfig struct {
	Async          bool
	DebounceWindow time.Duration
	DebouncePoll   time.Duration
	HistoryLimit   int
	DedupTTL       time.Duration
	DedupRetention time.Duration
	SweepSchedule  string
}

type RAGConfig struct {
	Enabled             bool
	QdrantHost          string
	QdrantPort          int
	QdrantAPIKey        string
	QdrantTLS           bool
	Collection          string
	EmbeddingModel      string
	TopK                int
	SimilarityThreshold float32
}

type DeliveryConfig struct {
	MaxSegmentChars int
	SegmentGap      time.Duration
}

type NotifyConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLS      string // none | opportunistic | mandatory
	WebhookURLs  []string
	WebhookKey   string
}

type MonitorConfig struct {
	BufferSize     int
	PersistTraces  bool
	TraceRetention time.Duration

	// InstanceID names this replica in traces; empty means resolve it.
	InstanceID string
	StateDir   string
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type SecurityConfig struct {
	SecretKey string
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	debug := getEnvBool("APP_DEBUG", false) || getEnvBool("DEBUG", false)

	var basicAuth []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:        "v1.4.0",
		Port:           getEnv("APP_PORT", "3000"),
		Debug:          debug,
		Environment:    getEnv("APP_ENV", "development"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Timezone:       getEnv("APP_TIMEZONE", "America/Sao_Paulo"),
		BasicAuth:      basicAuth,
		BasePath:       getEnv("APP_BASE_PATH", ""),
		TrustedProxies: getEnvList("APP_TRUSTED_PROXIES"),
		TenantsFile:    getEnv("TENANTS_FILE", ""),
		TenantCacheTTL: getEnvDuration("TENANT_CACHE_TTL", time.Minute),
		VerifyRateMax:  getEnvInt("WEBHOOK_VERIFY_RATE_MAX", 10),
		VerifyRateTTL:  getEnvDuration("WEBHOOK_VERIFY_RATE_WINDOW", time.Minute),
	}

	dbCfg := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "sqlite"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 6543),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "storages/chatbot.db"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),

		PoolMax:          getEnvInt("DB_POOL_MAX", 5),
		PoolIdleTimeout:  getEnvDuration("DB_POOL_IDLE_TIMEOUT", 10*time.Second),
		QueryTimeout:     getEnvDuration("DB_QUERY_TIMEOUT", 10*time.Second),
		ProbeTimeout:     getEnvDuration("DB_PROBE_TIMEOUT", 2*time.Second),
		SlowQuery:        getEnvDuration("DB_SLOW_QUERY_MS", time.Second),
		MaxRetries:       getEnvInt("DB_MAX_RETRIES", 2),
		RetryBackoffUnit: getEnvDuration("DB_RETRY_BACKOFF", 500*time.Millisecond),

		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "chatbot:"),
	}

	waCfg := WhatsappConfig{
		GraphBaseURL:    getEnv("WHATSAPP_GRAPH_URL", "https://graph.facebook.com"),
		GraphVersion:    getEnv("WHATSAPP_GRAPH_VERSION", "v19.0"),
		HTTPTimeout:     getEnvDuration("WHATSAPP_HTTP_TIMEOUT", 15*time.Second),
		MaxDownloadSize: getEnvInt64("WHATSAPP_MAX_DOWNLOAD_SIZE", 25*1024*1024),
	}

	aiCfg := AIConfig{
		GatewayBaseURL:     getEnv("AI_GATEWAY_BASE_URL", "https://api.openai.com/v1"),
		GatewayAPIKey:      getEnv("AI_GATEWAY_API_KEY", getEnv("OPENAI_API_KEY", "")),
		DefaultModel:       getEnv("AI_DEFAULT_MODEL", "gpt-4o-mini"),
		DefaultTemperature: getEnvFloat("AI_DEFAULT_TEMPERATURE", 0.7),
		DefaultMaxTokens:   getEnvInt("AI_DEFAULT_MAX_TOKENS", 1024),
		Timeout:            getEnvDuration("AI_TIMEOUT", 60*time.Second),
		GlobalSystemPrompt: getEnv("AI_GLOBAL_SYSTEM_PROMPT", ""),
	}

	mediaCfg := MediaConfig{
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		TranscriptionModel: getEnv("MEDIA_TRANSCRIPTION_MODEL", "whisper-1"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		VisionModel:        getEnv("MEDIA_VISION_MODEL", "gemini-2.0-flash"),
		MaxImageDimension:  getEnvInt("MEDIA_MAX_IMAGE_DIMENSION", 1568),
		Timeout:            getEnvDuration("MEDIA_TIMEOUT", 45*time.Second),
	}

	pipelineCfg := PipelineConfig{
		Async:          getEnvBool("PIPELINE_ASYNC", true),
		DebounceWindow: getEnvDuration("PIPELINE_DEBOUNCE_MS", 10*time.Second),
		DebouncePoll:   getEnvDuration("PIPELINE_DEBOUNCE_POLL_MS", 500*time.Millisecond),
		HistoryLimit:   getEnvInt("PIPELINE_HISTORY_LIMIT", 15),
		DedupTTL:       getEnvDuration("DEDUP_TTL", 10*time.Minute),
		DedupRetention: getEnvDuration("DEDUP_RETENTION", 72*time.Hour),
		SweepSchedule:  getEnv("RETENTION_SWEEP_SCHEDULE", "@every 1h"),
	}

	ragCfg := RAGConfig{
		Enabled:             getEnvBool("RAG_ENABLED", false),
		QdrantHost:          getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:          getEnvInt("QDRANT_PORT", 6334),
		QdrantAPIKey:        getEnv("QDRANT_API_KEY", ""),
		QdrantTLS:           getEnvBool("QDRANT_TLS", false),
		Collection:          getEnv("RAG_COLLECTION", "knowledge"),
		EmbeddingModel:      getEnv("RAG_EMBEDDING_MODEL", "text-embedding-3-small"),
		TopK:                getEnvInt("RAG_TOP_K", 5),
		SimilarityThreshold: float32(getEnvFloat("RAG_SIMILARITY_THRESHOLD", 0.7)),
	}

	notifyCfg := NotifyConfig{
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPTLS:      getEnv("SMTP_TLS", "opportunistic"),
		WebhookURLs:  getEnvList("HANDOFF_WEBHOOK_URLS"),
		WebhookKey:   getEnv("HANDOFF_WEBHOOK_SECRET", ""),
	}

	cfg := &Config{
		App:      appCfg,
		Database: dbCfg,
		Whatsapp: waCfg,
		AI:       aiCfg,
		Media:    mediaCfg,
		Pipeline: pipelineCfg,
		RAG:      ragCfg,
		Delivery: DeliveryConfig{
			MaxSegmentChars: getEnvInt("DELIVERY_MAX_SEGMENT_CHARS", 4096),
			SegmentGap:      getEnvDuration("DELIVERY_SEGMENT_GAP_MS", 800*time.Millisecond),
		},
		Notify: notifyCfg,
		Monitor: MonitorConfig{
			BufferSize:     getEnvInt("BOT_MONITOR_BUFFER", 200),
			PersistTraces:  getEnvBool("EXECUTION_LOG_PERSIST", true),
			TraceRetention: getEnvDuration("EXECUTION_LOG_RETENTION", 7*24*time.Hour),
			InstanceID:     getEnv("SERVER_ID", ""),
			StateDir:       getEnv("MONITOR_STATE_DIR", "storages"),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("MESSAGE_WORKER_POOL_SIZE", 20),
			QueueSize: getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 1000),
		},
		Security: SecurityConfig{SecretKey: getEnv("APP_SECRET_KEY", "")},
	}

	Global = cfg
	return cfg, nil
}
