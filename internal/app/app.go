// Package app assembles the parts assistant from configuration. Both
// binaries build their router through New.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/appliance"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/cache"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/config"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/extract"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/llm"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/retrieval"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/search"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/storage"
)

// App holds every wired component of a running assistant.
type App struct {
	Config        *config.Config
	Logger        *observability.Logger
	Store         catalog.Store
	// Lookup is the in-memory parts snapshot behind the appliance index and
	// fast lookup, so neither touches the database per request.
	Lookup        *catalog.MemoryCatalog
	Index         *appliance.PrefixIndex
	Conversations *conversation.Manager
	Cache         *retrieval.ResponseCache
	FastLookup    *retrieval.FastLookupResolver
	Router        *retrieval.Router

	// LLMEnabled is false when answers come from the offline generator.
	LLMEnabled bool

	closers []func() error
}

// Options overrides parts of the assembly. Tests use it to avoid the
// network.
type Options struct {
	// Model replaces the configured language model.
	Model llm.Model
	// Embed replaces the embedding function used by semantic search.
	Embed chromem.EmbeddingFunc
	// ConversationStore replaces the configured conversation store.
	ConversationStore cache.Client
}

// New builds the assistant described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	a := &App{Config: cfg, Logger: logger}

	store, lookup, err := a.openCatalog(ctx, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store
	a.Lookup = lookup

	records, err := lookup.IndexRecords(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build appliance index: %w", err)
	}
	a.Index = appliance.NewPrefixIndex(records, nil)

	convStore := opts.ConversationStore
	if convStore == nil {
		if convStore, err = a.openConversationStore(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	extractor := extract.New()
	a.Conversations = conversation.NewManager(extractor, logger, conversation.ManagerConfig{
		Store:    convStore,
		StoreTTL: cfg.Cache.ConversationTTL,
	})

	if a.Cache, err = retrieval.NewResponseCache(cfg.Cache.ResponseEntries, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("create response cache: %w", err)
	}

	model := opts.Model
	a.LLMEnabled = model != nil || cfg.LLMEnabled()
	if model == nil {
		model = a.newModel()
	}

	r := cfg.Routing
	a.FastLookup = retrieval.NewFastLookupResolver(extractor, a.Index, lookup, logger, r.FastLookupMinConfidence, r.ModelPartsLimit)
	patterns := retrieval.NewPatternResponder(extractor, retrieval.PatternThresholds{
		Generic:       r.PatternGenericConfidence,
		PartLookup:    r.PatternPartConfidence,
		Compatibility: r.PatternCompatConfidence,
	})
	pipeline := retrieval.NewPipeline(store, model, logger, retrieval.PipelineConfig{
		PartsLimit:    r.PartsSearchLimit,
		RepairsLimit:  r.RepairsSearchLimit,
		ArticlesLimit: r.ArticlesSearchLimit,
		MaxAttempts:   r.MaxValidationAttempts,
		Timeout:       cfg.LLM.Timeout,
		Confidence:    r.PipelineCacheConfidence,
	})

	a.Router = retrieval.NewRouter(logger, a.Conversations, a.Cache, a.FastLookup, patterns, pipeline, retrieval.RouterConfig{
		PatternAcceptConfidence: r.PatternAcceptConfidence,
		SpecificTokens:          r.SpecificTokens,
	})

	logger.Info().
		Str("database", orDefault(cfg.Database.Driver, "memory")).
		Str("conversation_store", cfg.Cache.Driver).
		Bool("semantic_search", cfg.Search.Semantic).
		Bool("llm_enabled", a.LLMEnabled).
		Int("indexed_parts", a.Index.PartCount()).
		Int("model_prefixes", a.Index.PrefixCount()).
		Msg("Parts assistant assembled")

	return a, nil
}

// openCatalog returns the in-memory catalog, or the SQL store when a
// database driver is configured. Semantic search wraps either one. The
// second result is an in-memory snapshot of the parts for request paths
// that must not wait on the database.
func (a *App) openCatalog(ctx context.Context, opts Options) (catalog.Store, *catalog.MemoryCatalog, error) {
	cfg := a.Config

	var (
		store  catalog.Store
		lookup *catalog.MemoryCatalog
		ds     *catalog.Dataset
		err    error
	)

	if cfg.Database.Driver == "" {
		ds, err = a.loadDataset()
		if err != nil {
			return nil, nil, err
		}
		lookup = catalog.NewMemoryCatalog(ds)
		store = lookup
		a.Logger.Info().Int("parts", len(ds.Parts)).Int("repairs", len(ds.Repairs)).
			Int("articles", len(ds.Articles)).Msg("Loaded catalog into memory")
	} else {
		db, err := OpenDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)

		sqlStore := storage.NewSQLStore(db)
		n, err := sqlStore.Count(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("count parts: %w", err)
		}
		if n == 0 {
			// An empty database is seeded from the CSV files when they exist.
			if ds, err = a.loadDataset(); err == nil {
				if err := sqlStore.ImportDataset(ctx, ds, nil); err != nil {
					return nil, nil, fmt.Errorf("seed database: %w", err)
				}
				a.Logger.Info().Int("parts", len(ds.Parts)).Msg("Seeded empty database from CSV")
			} else {
				a.Logger.Warn().Err(err).Msg("Database is empty and no CSV catalog could be read")
			}
		}

		parts, err := sqlStore.Parts(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot parts: %w", err)
		}
		lookup = catalog.NewMemoryCatalog(&catalog.Dataset{Parts: parts})
		store = sqlStore
	}

	if !cfg.Search.Semantic {
		return store, lookup, nil
	}

	if ds == nil {
		if ds, err = a.loadDataset(); err != nil {
			return nil, nil, fmt.Errorf("semantic search: %w", err)
		}
	}
	embed := opts.Embed
	if embed == nil {
		embed = search.NewOpenAIEmbeddingFunc(search.EmbeddingConfig{
			BaseURL: cfg.Search.EmbeddingBaseURL,
			APIKey:  cfg.Search.EmbeddingAPIKey,
			Model:   cfg.Search.EmbeddingModel,
		})
	}
	semantic, err := search.NewSemanticStore(ctx, store, ds, embed, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build semantic index: %w", err)
	}
	return semantic, lookup, nil
}

func (a *App) loadDataset() (*catalog.Dataset, error) {
	c := a.Config.Catalog
	ds, err := catalog.LoadDataset(c.PartsPath, c.RepairsPath, c.BlogsPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return ds, nil
}

// OpenDatabase opens, tunes and migrates the configured catalog database.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	driver := storage.DriverName(cfg.Database.Driver)
	db, err := storage.Open(ctx, driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}
	if driver == storage.DriverPostgres {
		pg := cfg.Database.Postgres
		db.SetMaxOpenConns(pg.MaxOpenConns)
		db.SetMaxIdleConns(pg.MaxIdleConns)
		db.SetConnMaxLifetime(pg.ConnMaxLifetime)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (a *App) openConversationStore(ctx context.Context) (cache.Client, error) {
	cfg := a.Config.Cache
	if cfg.Driver != "redis" {
		store := cache.NewMemoryClient(cfg.ResponseEntries)
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	store, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("connect conversation store: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *App) newModel() llm.Model {
	cfg := a.Config.LLM
	if !a.Config.LLMEnabled() {
		a.Logger.Warn().Msg("No LLM API key configured, using the offline generator")
		return llm.NewOffline()
	}
	return llm.NewClient(llm.ClientConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		Retry: llm.RetryConfig{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.BaseDelay,
			MaxBackoff:     cfg.MaxDelay,
		},
	}, a.Logger)
}

// PruneConversations drops idle conversations every interval until ctx ends.
func (a *App) PruneConversations(ctx context.Context, interval time.Duration) {
	maxIdle := a.Config.Cache.ConversationTTL
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Conversations.Prune(maxIdle); n > 0 {
				a.Logger.Debug().Int("pruned", n).Msg("Pruned idle conversations")
			}
		}
	}
}

// Close releases the database and conversation store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
