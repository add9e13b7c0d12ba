// Package app wires the conversation engine and its collaborators from
// configuration. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/legalchat/internal/config"
	"github.com/raphaelgruber/legalchat/internal/db"
	"github.com/raphaelgruber/legalchat/internal/dedup"
	"github.com/raphaelgruber/legalchat/internal/intent"
	"github.com/raphaelgruber/legalchat/internal/lang"
	"github.com/raphaelgruber/legalchat/internal/lexicon"
	"github.com/raphaelgruber/legalchat/internal/llm"
	"github.com/raphaelgruber/legalchat/internal/metrics"
	"github.com/raphaelgruber/legalchat/internal/render"
	"github.com/raphaelgruber/legalchat/internal/research"
	"github.com/raphaelgruber/legalchat/internal/service"
	"github.com/raphaelgruber/legalchat/internal/store"
	"github.com/raphaelgruber/legalchat/internal/voice"
)

// App holds the wired components.
type App struct {
	Config     config.Config
	Engine     *service.Engine
	Store      store.Store
	Dedup      dedup.Tracker
	Metrics    *metrics.Collector
	Lexicon    *lexicon.Lexicon
	Classifier *intent.Classifier
	Logger     *slog.Logger
}

// New builds the engine with the configured store, model and collaborators.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mc := metrics.NewCollector()

	lex, err := lexicon.Load(cfg.LexiconFile)
	if err != nil {
		return nil, err
	}
	logger.Info("lexicon loaded", "version", lex.Version, "file", cfg.LexiconFile)

	model := OpenModel(ctx, cfg, mc, logger)
	classifier := NewClassifier(cfg, lex, model, logger)

	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := service.Deps{
		Store:      st,
		Classifier: classifier,
		Researcher: research.New(cfg.ResearchURL, cfg.ResearchTimeout),
		Detector:   lang.NewDetector(cfg.ScriptThreshold),
		Renderer:   render.New(cfg.DocumentDir),
		Voice: voice.New(voice.Config{
			Endpoint: cfg.VoiceURL,
			APIKey:   cfg.VoiceAPIKey,
			Timeout:  cfg.VoiceTimeout,
			Dir:      cfg.AudioDir,
		}),
		Metrics: mc,
		Logger:  logger,
	}
	if model != nil {
		deps.Summarizer = model
		deps.Chitchat = model
	}

	engine, err := service.NewEngine(deps, service.Options{
		ResearchConcurrency: cfg.ResearchConcurrency,
		ResearchTimeout:     cfg.ResearchTimeout,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Engine:     engine,
		Store:      st,
		Metrics:    mc,
		Lexicon:    lex,
		Classifier: classifier,
		Logger:     logger,
	}, nil
}

// OpenModel creates the generative model. It returns nil when the provider
// cannot be set up; classification then runs on its lexical fallbacks.
func OpenModel(ctx context.Context, cfg config.Config, mc *metrics.Collector, logger *slog.Logger) *llm.Model {
	model, err := llm.NewModel(ctx, cfg, mc, logger)
	if err != nil {
		logger.Warn("generative model unavailable, using fallbacks", "provider", cfg.LLMProvider, "error", err)
		return nil
	}
	logger.Info("generative model ready", "provider", cfg.LLMProvider, "model", model.Model())
	return model
}

// NewClassifier builds the intent classifier from configuration. A nil model
// leaves the classifier without a generative backend.
func NewClassifier(cfg config.Config, lex *lexicon.Lexicon, model *llm.Model, logger *slog.Logger) *intent.Classifier {
	var backend intent.Backend
	if model != nil {
		backend = model
	}
	return intent.New(lex, backend, intent.Options{
		ChitchatMaxWords:    cfg.ChitchatMaxWords,
		ShortReplyMaxWords:  cfg.ShortReplyMaxWords,
		SubstantiveMinWords: cfg.SubstantiveMinWords,
		Timeout:             cfg.ClassifyTimeout,
	}, logger)
}

// OpenStore opens the configured conversation store.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreSQLite, "":
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("conversation store ready", "backend", config.StoreSQLite, "path", cfg.SQLitePath)
		return s, nil
	case config.StoreSurrealDB:
		client, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(ctx); err != nil {
			client.Close(ctx)
			return nil, err
		}
		logger.Info("conversation store ready", "backend", config.StoreSurrealDB, "url", cfg.SurrealDBURL)
		return db.NewConversationStore(client), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// OpenDedup opens the configured message de-duplication tracker.
func OpenDedup(ctx context.Context, cfg config.Config) (dedup.Tracker, error) {
	switch cfg.DedupBackend {
	case config.DedupMemory, "":
		return dedup.NewMemoryTracker(cfg.DedupTTL), nil
	case config.DedupRedis:
		return dedup.NewRedisTracker(ctx, cfg.RedisURL, cfg.DedupTTL)
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", cfg.DedupBackend)
	}
}

// Close releases the store and tracker.
func (a *App) Close() error {
	var errs []error
	if a.Dedup != nil {
		errs = append(errs, a.Dedup.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
