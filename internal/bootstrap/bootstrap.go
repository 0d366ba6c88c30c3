package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/invoice-auditor/internal/config"
	"github.com/kirillkom/invoice-auditor/internal/core/ports"
	"github.com/kirillkom/invoice-auditor/internal/core/usecase"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/resilience"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/storage/memory"
	redisstore "github.com/kirillkom/invoice-auditor/internal/infrastructure/storage/redis"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/storage/sqlkv"
	"github.com/kirillkom/invoice-auditor/internal/observability/metrics"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"

	// Extracted text beyond this is dropped before prompting a text-only model.
	maxExtractChars = 24000
)

type Options struct {
	ServiceName string
	Logger      *slog.Logger
	// DisableEvents skips NATS even when NATS_URL is set.
	DisableEvents bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Session     *usecase.AuditSession
	Registry    *prometheus.Registry
	Metrics     *metrics.AnalysisMetrics
	HTTPMetrics *metrics.HTTPServerMetrics
	// Events is nil when NATS_URL is empty.
	Events *nats.Events

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	app.Registry = prometheus.NewRegistry()
	app.Metrics = metrics.NewAnalysisMetrics(opts.ServiceName, app.Registry)
	app.HTTPMetrics = metrics.NewHTTPServerMetrics(opts.ServiceName, app.Registry)

	kv, err := app.openKeyValueStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	extractor := pdftext.NewExtractor(maxExtractChars)
	analyzer, err := newAnalyzer(ctx, cfg, extractor, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	orchestratorOpts := usecase.OrchestratorOptions{
		MaxInFlight: cfg.AnalysisMaxInFlight,
		Observer:    app.Metrics,
		Logger:      logger,
	}
	if cfg.NATSURL != "" && !opts.DisableEvents {
		events, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ClientName:         opts.ServiceName,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(logger)),
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init analysis events: %w", err)
		}
		app.Events = events
		app.closers = append(app.closers, events.Close)
		orchestratorOpts.Events = events
	}

	history := usecase.NewHistoryStore(kv, usecase.HistoryStoreOptions{
		Key:      cfg.HistoryKey,
		Logger:   logger,
		Observer: app.Metrics,
	})
	loaded := history.Load(ctx)
	logger.Info("history_loaded", "backend", cfg.HistoryBackend, "entries", len(loaded))

	orchestrator := usecase.NewAnalysisOrchestrator(analyzer, history, orchestratorOpts)
	app.Session = usecase.NewAuditSession(usecase.NewIntake(extractor, logger), orchestrator, history, logger)
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newAnalyzer(ctx context.Context, cfg config.Config, extractor *pdftext.Extractor, logger *slog.Logger) (ports.InvoiceAnalyzer, error) {
	timeout := time.Duration(cfg.AnalyzerTimeoutSeconds) * time.Second
	executor := resilience.NewExecutor(
		resilience.SingleAttemptConfig(cfg.AnalyzerBreakerEnabled, cfg.AnalyzerRateLimitRPS, cfg.AnalyzerRateLimitBurst),
		resilience.WithLogger(logger),
	)

	switch cfg.AnalyzerProvider {
	case ProviderGemini, "":
		return gemini.New(ctx, gemini.Config{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.GeminiModel,
			UseVertex: cfg.GeminiUseVertex,
			Project:   cfg.GoogleCloudProject,
			Location:  cfg.GoogleCloudLocation,
			Timeout:   timeout,
		}, executor, logger), nil
	case ProviderOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaModel, timeout, executor)
		return ollama.NewAnalyzer(client, extractor, logger), nil
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.AnalyzerProvider)
	}
}

func (a *App) openKeyValueStore(ctx context.Context, cfg config.Config) (ports.KeyValueStore, error) {
	switch cfg.HistoryBackend {
	case "file", "":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init file storage: %w", err)
		}
		return storage, nil
	case "memory":
		return memory.New(), nil
	case "redis":
		store, err := redisstore.New(ctx, redisstore.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: "invoice-auditor:",
		})
		if err != nil {
			return nil, fmt.Errorf("init redis storage: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	case "postgres":
		return a.openSQLStore(ctx, sqlkv.DialectPostgres, cfg.PostgresDSN)
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return a.openSQLStore(ctx, sqlkv.DialectSQLite, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

func (a *App) openSQLStore(ctx context.Context, dialect sqlkv.Dialect, dsn string) (ports.KeyValueStore, error) {
	db, err := sqlkv.OpenDB(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	store := sqlkv.New(db, dialect)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure %s schema: %w", dialect, err)
	}
	return store, nil
}
