package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/batching"
	botApp "github.com/uzzaidev/ChatBot-Oficial-sub002/botengine/application"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/botengine/providers"
	clientsApp "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/application"
	clientsDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/domain"
	clientsRepo "github.com/uzzaidev/ChatBot-Oficial-sub002/clients/repository"
	convApp "github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/application"
	convDomain "github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/domain"
	convRepo "github.com/uzzaidev/ChatBot-Oficial-sub002/conversation/repository"
	coreconfig "github.com/uzzaidev/ChatBot-Oficial-sub002/core/config"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/core/database"
	customersRepo "github.com/uzzaidev/ChatBot-Oficial-sub002/customers/repository"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/dedup"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/delivery"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/infrastructure/valkey"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/infrastructure/whatsapp"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/media"
	mediaProviders "github.com/uzzaidev/ChatBot-Oficial-sub002/media/providers"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/notify"
	pipelineApp "github.com/uzzaidev/ChatBot-Oficial-sub002/pipeline/application"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/botmonitor"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/msgworker"
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/sweeper"
)

// schemaOwner is implemented by every gorm repository of the service.
type schemaOwner interface {
	InitSchema(ctx context.Context) error
}

// App holds every long lived component of the webhook server.
type App struct {
	Config   *coreconfig.Config
	DB       *database.Client
	Valkey   *valkey.Client
	Tenants  clientsDomain.TenantResolver
	Service  *pipelineApp.WebhookService
	Monitor  *botmonitor.Monitor
	ExecLogs *botmonitor.GormSink
	Pool     *msgworker.MessageWorkerPool
	Sweeper  *sweeper.Scheduler

	knowledge *convRepo.QdrantKnowledgeStore
}

func openDatabase(cfg *coreconfig.Config) (*database.Client, error) {
	db, err := database.NewClient(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logrus.Infof("[DATABASE] connected (%s)", cfg.Database.Driver)
	return db, nil
}

// migrateSchema creates or updates every table the service owns.
func migrateSchema(ctx context.Context, db *database.Client) error {
	owners := []struct {
		name  string
		owner schemaOwner
	}{
		{"tenants", clientsRepo.NewTenantGormRepository(db)},
		{"customers", customersRepo.NewCustomerGormRepository(db)},
		{"chat_messages", convRepo.NewHistoryGormRepository(db)},
		{"processed_messages", dedup.NewGormMarker(db)},
		{"execution_logs", botmonitor.NewGormSink(db)},
	}
	for _, o := range owners {
		if err := o.owner.InitSchema(ctx); err != nil {
			return fmt.Errorf("migrate %s: %w", o.name, err)
		}
		logrus.Debugf("[MIGRATION] table %s ready", o.name)
	}
	return nil
}

// NewApp wires the pipeline from configuration. Optional backends (valkey,
// qdrant, SMTP, Gemini) degrade to their in-process or disabled variants.
func NewApp(ctx context.Context, cfg *coreconfig.Config) (*App, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := migrateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{Config: cfg, DB: db}

	if cfg.Database.ValkeyEnabled {
		client, err := valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.WithError(err).Warn("[VALKEY] unavailable, using in-process dedup cache and batch store")
		} else {
			app.Valkey = client
		}
	}

	tenants, err := newTenantResolver(cfg, db)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Tenants = tenants

	// Dedup: fast marker in valkey (or memory) backed by the durable table
	durableMarker := dedup.NewGormMarker(db)
	var cacheMarker dedup.Marker = dedup.NewMemoryMarker(cfg.Pipeline.DedupTTL)
	var batchStore batching.Store = batching.NewMemoryStore()
	if app.Valkey != nil {
		cacheMarker = dedup.NewValkeyMarker(app.Valkey, cfg.Pipeline.DedupTTL)
		batchStore = batching.NewValkeyStore(app.Valkey)
	}
	deduplicator := dedup.NewService(cacheMarker, durableMarker)

	customers := customersRepo.NewCustomerGormRepository(db)
	history := convRepo.NewHistoryGormRepository(db)

	var knowledge convDomain.KnowledgeStore = convRepo.DisabledKnowledgeStore{}
	if cfg.RAG.Enabled {
		embedder := convRepo.NewOpenAIEmbedder(cfg.AI.GatewayAPIKey, cfg.AI.GatewayBaseURL, cfg.RAG.EmbeddingModel)
		store, err := convRepo.NewQdrantKnowledgeStore(convRepo.QdrantConfig{
			Host:       cfg.RAG.QdrantHost,
			Port:       cfg.RAG.QdrantPort,
			APIKey:     cfg.RAG.QdrantAPIKey,
			UseTLS:     cfg.RAG.QdrantTLS,
			Collection: cfg.RAG.Collection,
		}, embedder)
		if err != nil {
			logrus.WithError(err).Warn("[RAG] qdrant unavailable, answering without knowledge snippets")
		} else {
			knowledge = store
			app.knowledge = store
		}
	}

	graph := whatsapp.NewGraphClient(whatsapp.GraphConfig{
		BaseURL:         cfg.Whatsapp.GraphBaseURL,
		Version:         cfg.Whatsapp.GraphVersion,
		Timeout:         cfg.Whatsapp.HTTPTimeout,
		MaxDownloadSize: int(cfg.Whatsapp.MaxDownloadSize),
	})

	var transcriber media.Transcriber
	if cfg.Media.OpenAIAPIKey != "" {
		transcriber = mediaProviders.NewOpenAITranscriber(cfg.Media.OpenAIAPIKey, "", cfg.Media.TranscriptionModel)
	}
	var describer media.Describer
	if cfg.Media.GeminiAPIKey != "" {
		vision, err := mediaProviders.NewGeminiVision(ctx, mediaProviders.GeminiConfig{
			APIKey: cfg.Media.GeminiAPIKey,
			Model:  cfg.Media.VisionModel,
		})
		if err != nil {
			logrus.WithError(err).Warn("[MEDIA] gemini unavailable, image and document messages will fail")
		} else {
			describer = vision
		}
	}

	gateway := providers.NewOpenAIGateway(providers.GatewayConfig{
		BaseURL:      cfg.AI.GatewayBaseURL,
		APIKey:       cfg.AI.GatewayAPIKey,
		DefaultModel: cfg.AI.DefaultModel,
		Timeout:      cfg.AI.Timeout,
		MaxRetries:   2,
	})
	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		logrus.WithError(err).Warnf("[CONFIG] unknown timezone %q, using UTC", cfg.App.Timezone)
		location = time.UTC
	}

	notifiers := []notify.Notifier{notify.NewWebhookNotifier(notify.WebhookConfig{
		URLs:   cfg.Notify.WebhookURLs,
		Secret: cfg.Notify.WebhookKey,
	})}
	if cfg.Notify.SMTPHost != "" {
		notifiers = append(notifiers, notify.NewEmailNotifier(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.SMTPUsername,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.SMTPFrom,
			TLS:      cfg.Notify.SMTPTLS,
		}))
	}

	messages := pipelineApp.NewMessagePipeline(pipelineApp.MessageDeps{
		Customers: customers,
		Media: media.NewProcessor(graph, transcriber, describer, media.Config{
			MaxImageDimension: cfg.Media.MaxImageDimension,
			Timeout:           cfg.Media.Timeout,
		}),
		Batcher: batching.NewService(batchStore, batching.Config{
			Window: cfg.Pipeline.DebounceWindow,
			Poll:   cfg.Pipeline.DebouncePoll,
		}),
		History: history,
		Assembler: convApp.NewAssembler(history, knowledge, convApp.AssemblerConfig{
			HistoryLimit: cfg.Pipeline.HistoryLimit,
			TopK:         cfg.RAG.TopK,
			Threshold:    cfg.RAG.SimilarityThreshold,
		}),
		Generator: botApp.NewGenerator(gateway, botApp.NewPrompter(cfg.AI.GlobalSystemPrompt, location), botApp.ModelDefaults{
			Model:       cfg.AI.DefaultModel,
			Temperature: cfg.AI.DefaultTemperature,
			MaxTokens:   cfg.AI.DefaultMaxTokens,
		}),
		Handoff:   botApp.NewHandoffService(customers, notify.NewMulti(notifiers...)),
		Formatter: delivery.NewFormatter(cfg.Delivery.MaxSegmentChars),
		Deliverer: delivery.NewDeliverer(graph, cfg.Delivery.SegmentGap),
	})

	app.Monitor = botmonitor.New(cfg.Monitor.BufferSize, 0)
	var sink botmonitor.Sink
	if cfg.Monitor.PersistTraces {
		app.ExecLogs = botmonitor.NewGormSink(db)
		sink = app.ExecLogs
	}
	instanceID := botmonitor.ResolveInstanceID(cfg.Monitor)
	tracer := botmonitor.NewTracer(app.Monitor, sink, instanceID)

	var dispatcher pipelineApp.Dispatcher = pipelineApp.InlineDispatcher{}
	if cfg.Pipeline.Async {
		app.Pool = msgworker.GetGlobalPool()
		dispatcher = pipelineApp.PoolDispatcher{Pool: app.Pool}
	}

	app.Service = pipelineApp.NewWebhookService(
		deduplicator,
		messages,
		pipelineApp.NewStatusPipeline(history),
		pipelineApp.NewReactionPipeline(history),
		dispatcher,
		tracer,
	)

	app.Sweeper = sweeper.New(time.Minute)
	if err := app.Sweeper.Add("processed_messages", cfg.Pipeline.SweepSchedule, func(ctx context.Context) (int64, error) {
		return durableMarker.Sweep(ctx, time.Now().Add(-cfg.Pipeline.DedupRetention))
	}); err != nil {
		app.Close()
		return nil, err
	}
	if app.ExecLogs != nil {
		if err := app.Sweeper.Add("execution_logs", cfg.Pipeline.SweepSchedule, func(ctx context.Context) (int64, error) {
			return app.ExecLogs.Sweep(ctx, time.Now().Add(-cfg.Monitor.TraceRetention))
		}); err != nil {
			app.Close()
			return nil, err
		}
	}
	app.Sweeper.Start()

	logrus.WithFields(logrus.Fields{
		"instance_id": instanceID,
		"async":       cfg.Pipeline.Async,
		"valkey":      app.Valkey != nil,
		"rag":         app.knowledge != nil,
	}).Info("[APP] pipeline ready")
	return app, nil
}

func newTenantResolver(cfg *coreconfig.Config, db *database.Client) (*clientsApp.CachedResolver, error) {
	var repo clientsDomain.TenantRepository = clientsRepo.NewTenantGormRepository(db)
	if cfg.App.TenantsFile != "" {
		fileRepo, err := clientsRepo.NewTenantFileRepository(cfg.App.TenantsFile)
		if err != nil {
			return nil, err
		}
		logrus.Infof("[TENANTS] serving %d tenants from %s", len(fileRepo.All()), cfg.App.TenantsFile)
		repo = fileRepo
	}
	return clientsApp.NewCachedResolver(repo, cfg.App.TenantCacheTTL), nil
}

// Close stops the background work first, then the backends it uses.
func (a *App) Close() {
	logrus.Info("[APP] Stopping application...")
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.Pool != nil {
		msgworker.StopGlobalPool()
	}
	if a.knowledge != nil {
		if err := a.knowledge.Close(); err != nil {
			logrus.WithError(err).Warn("[RAG] failed to close qdrant client")
		}
	}
	if a.Valkey != nil {
		a.Valkey.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logrus.WithError(err).Warn("[DATABASE] failed to close")
		}
	}
	logrus.Info("[APP] Application stopped cleanly.")
}
