package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/kirillkom/aaer-miner/internal/config"
	"github.com/kirillkom/aaer-miner/internal/core/ports"
	"github.com/kirillkom/aaer-miner/internal/core/usecase"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/chunking"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/entities"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/extractor"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/extractor/sections"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/fetch"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/fuzzy"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/harm"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/queue/nats"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/registry"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/repository/firestore"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/resilience"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/secapi"
	sourcepg "github.com/kirillkom/aaer-miner/internal/infrastructure/source/postgres"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/aaer-miner/internal/infrastructure/tagger/rules"
	"github.com/kirillkom/aaer-miner/internal/observability/metrics"
)

const (
	RunModeBatch     = "batch"
	RunModeSubscribe = "subscribe"

	RecordStorePostgres  = "postgres"
	RecordStoreFirestore = "firestore"

	ResolverDirectory = "directory"
	ResolverSECAPI    = "secapi"

	TaggerRules  = "rules"
	TaggerOllama = "ollama"
)

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.WorkerMetrics

	Source    ports.DocumentSource
	Store     ports.RecordStore
	Queue     *nats.Queue
	ProcessUC *usecase.ProcessDocumentUseCase
	BatchUC   *usecase.BatchUseCase

	closers []func()
}

// New wires the full worker: upstream source, record store, pipeline collaborators
// and, when enabled, the NATS connection.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := cfg.ApplyRulesFile()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	ruleset := cfg.Rules
	app := &App{Config: cfg, Logger: logger}

	app.Metrics = metrics.NewWorkerMetrics("worker")
	executor := NewExecutor(cfg, logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func() { _ = db.Close() })

	source, err := sourcepg.NewSourceRepository(db, cfg.SourceTable)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init source: %w", err)
	}
	app.Source = source

	store, closeStore, err := openRecordStore(ctx, cfg, db)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, closeStore)
	app.Store = store

	resolver, err := NewResolver(ctx, cfg, ruleset.SimilarityThreshold, executor, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	fetcher, closeFetcher, err := newFetcher(ctx, cfg, executor, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, closeFetcher)

	harmClassifier, err := harm.NewClassifier(ruleset.HarmPatterns)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init harm classifier: %w", err)
	}

	deps := usecase.ProcessDeps{
		Fetcher:   fetcher,
		Extractor: newExtractor(),
		Finder:    entities.NewFinder(ruleset.EntitySuffixes),
		Resolver:  resolver,
		Tagger:    newTagger(cfg, executor),
		Periods: usecase.NewPeriodFilter(usecase.PeriodFilterConfig{
			Strategy:        ruleset.Period.Strategy,
			Cutoff:          ruleset.Period.Cutoff,
			MinSpreadMonths: ruleset.Period.MinSpreadMonths,
			SingleMention:   ruleset.Period.SingleMention,
		}),
		Harm:     harmClassifier,
		Matcher:  fuzzy.Matcher{},
		Store:    store,
		Source:   source,
		Observer: app.Metrics,
		Logger:   logger,
	}

	if cfg.EventsEnabled || cfg.RunMode == RunModeSubscribe {
		queue, err := nats.New(cfg.NATSURL, nats.Options{
			DocumentsSubject:   cfg.NATSSubject,
			RecordsSubject:     cfg.NATSRecordsSubject,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closers = append(app.closers, queue.Close)
		if cfg.EventsEnabled {
			deps.Events = queue
		}
	}

	app.ProcessUC = usecase.NewProcessDocumentUseCase(deps, usecase.ProcessConfig{
		CandidateScope:      ruleset.CandidateScope,
		SimilarityThreshold: ruleset.SimilarityThreshold,
		LookupTimeout:       cfg.LookupTimeout,
	})
	app.BatchUC = usecase.NewBatchUseCase(source, app.ProcessUC, app.Metrics, logger, usecase.BatchConfig{
		Workers:               cfg.BatchWorkers,
		Interval:              cfg.BatchInterval,
		DocumentTimeout:       cfg.DocumentTimeout,
		MaxConsecutiveOutages: cfg.BatchMaxConsecutiveOutages,
	})
	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func NewExecutor(cfg config.Config, logger *slog.Logger) *resilience.Executor {
	rcfg := resilience.DefaultConfig()
	rcfg.RetryMaxAttempts = cfg.RetryMaxAttempts
	rcfg.RetryInitialBackoff = cfg.RetryInitialBackoff
	rcfg.BreakerEnabled = cfg.BreakerEnabled
	rcfg.BreakerConsecutiveFailures = cfg.BreakerConsecutiveFailures
	rcfg.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return resilience.NewExecutorWithLogger(rcfg, logger)
}

// NewResolver builds the configured identity resolver. The directory backend loads
// its snapshot before returning.
func NewResolver(ctx context.Context, cfg config.Config, threshold float64, executor *resilience.Executor, logger *slog.Logger) (ports.IdentityResolver, error) {
	switch cfg.ResolverBackend {
	case ResolverDirectory:
		dir := registry.NewDirectory(registry.Options{
			URL:       cfg.RegistryURL,
			File:      cfg.RegistryFile,
			UserAgent: cfg.SECUserAgent,
			Timeout:   cfg.FetchTimeout,
			Executor:  executor,
			Logger:    logger,
		})
		if err := dir.Reload(ctx); err != nil {
			return nil, fmt.Errorf("load company directory: %w", err)
		}
		return registry.NewResolver(dir, threshold), nil
	case ResolverSECAPI:
		if cfg.SECAPIKey == "" {
			return nil, fmt.Errorf("SEC_API_KEY is required for the secapi resolver")
		}
		return secapi.New(cfg.SECAPIURL, cfg.SECAPIKey, threshold, cfg.LookupTimeout, executor), nil
	default:
		return nil, fmt.Errorf("unknown resolver backend %q", cfg.ResolverBackend)
	}
}

// OpenRecordStore opens only the configured record store, for tools that read
// persisted records.
func OpenRecordStore(ctx context.Context, cfg config.Config) (ports.RecordStore, func(), error) {
	var db *sql.DB
	if cfg.RecordStore != RecordStoreFirestore {
		var err error
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
	}
	store, closeStore, err := openRecordStore(ctx, cfg, db)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, nil, err
	}
	return store, func() {
		closeStore()
		if db != nil {
			_ = db.Close()
		}
	}, nil
}

func openRecordStore(ctx context.Context, cfg config.Config, db *sql.DB) (ports.RecordStore, func(), error) {
	switch cfg.RecordStore {
	case RecordStorePostgres:
		repo := postgres.NewRecordRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, func() {}, nil
	case RecordStoreFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("init firestore: %w", err)
		}
		return firestore.NewRecordStore(client, cfg.FirestoreCollection), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown record store %q", cfg.RecordStore)
	}
}

func newFetcher(ctx context.Context, cfg config.Config, executor *resilience.Executor, logger *slog.Logger) (*fetch.Fetcher, func(), error) {
	cache, err := localfs.New(cfg.DownloadCachePath)
	if err != nil {
		return nil, nil, fmt.Errorf("init download cache: %w", err)
	}

	opts := fetch.Options{
		UserAgent: cfg.SECUserAgent,
		Timeout:   cfg.FetchTimeout,
		Cache:     cache,
		Executor:  executor,
		Logger:    logger,
	}
	closeFn := func() {}
	if cfg.GCSEnabled {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		opts.Objects = fetch.NewGCSObjects(client)
		closeFn = func() { _ = client.Close() }
	}
	return fetch.New(opts), closeFn, nil
}

func newExtractor() *extractor.Router {
	return extractor.NewRouter(map[extractor.Format]extractor.FormatExtractor{
		extractor.FormatPDF:   pdftext.NewExtractor(),
		extractor.FormatHTML:  htmltext.NewExtractor(),
		extractor.FormatPlain: plaintext.NewExtractor(),
	}, sections.NewSplitter())
}

func newTagger(cfg config.Config, executor *resilience.Executor) ports.DateTagger {
	if cfg.TaggerBackend == TaggerOllama {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.DocumentTimeout, executor)
		return ollama.NewDateTagger(client, chunking.NewSplitter(cfg.TaggerChunkSize, cfg.TaggerChunkOverlap))
	}
	return rules.NewTagger()
}
