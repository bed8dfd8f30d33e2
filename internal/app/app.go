// Package app wires the configured services shared by every entry point.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/scriptoria/deepresearch/internal/brave"
	"github.com/scriptoria/deepresearch/internal/cache"
	"github.com/scriptoria/deepresearch/internal/citation"
	"github.com/scriptoria/deepresearch/internal/config"
	"github.com/scriptoria/deepresearch/internal/db"
	"github.com/scriptoria/deepresearch/internal/fetch"
	"github.com/scriptoria/deepresearch/internal/llm"
	"github.com/scriptoria/deepresearch/internal/logging"
	"github.com/scriptoria/deepresearch/internal/notes"
	"github.com/scriptoria/deepresearch/internal/podcast"
	"github.com/scriptoria/deepresearch/internal/research"
	"github.com/scriptoria/deepresearch/internal/retry"
	"github.com/scriptoria/deepresearch/internal/taskgraph"
	"github.com/scriptoria/deepresearch/internal/tools"
)

const searchCachePrefix = "deepresearch:search:"

type Services struct {
	Config       config.Config
	Logger       *zap.Logger
	Registry     *tools.Registry
	Health       *tools.HealthCheck
	Orchestrator *research.Orchestrator

	closers []func() error
}

// Build constructs the tool registry and the orchestrator from cfg.
// Optional backends that fail to come up are logged and left out; only
// note storage and the plan templates are required.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Services, error) {
	logger = logging.OrNop(logger)
	s := &Services{Config: cfg, Logger: logger}

	searcher := brave.NewClient(cfg, nil)
	fetcher := fetch.NewFetcher(fetch.Config{RequestTimeout: cfg.ToolTimeout}, nil)
	index := podcast.NewRSSIndex(nil, nil, logger.Named("podcast"))
	logger.Debug("podcast index ready", zap.Int("feeds", len(index.Feeds())))
	policy := retry.Policy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}

	store, err := openNotes(ctx, cfg)
	if err != nil {
		return nil, err
	}

	checkers := []tools.Checker{
		tools.NewSearchChecker(searcher),
		tools.NewStorageChecker(store),
	}

	var resultCache tools.ResultCache
	if cfg.RedisURL != "" {
		client, err := cache.NewClientFromURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("search cache disabled", zap.Error(err))
		} else {
			redisCache := cache.NewRedisCache(client, searchCachePrefix, cfg.SearchCacheTTL, logger.Named("cache"))
			resultCache = redisCache
			checkers = append(checkers, tools.NewPingChecker("redis", true, redisCache.Ping))
			s.closers = append(s.closers, client.Close)
		}
	}

	var validationStore *citation.Store
	database, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Warn("validation results will not be persisted", zap.Error(err))
	} else {
		validationStore = citation.NewStore(database)
		checkers = append(checkers, tools.NewPingChecker("validation_db", true, database.PingContext))
		s.closers = append(s.closers, database.Close)
	}

	s.Health = tools.NewHealthCheck(checkers...)
	registry, err := tools.NewRegistry(logger.Named("tools"),
		tools.NewWebSearch(searcher, resultCache, policy, logger.Named("web_search")),
		tools.NewPodcastSearch(index, policy, logger.Named("podcast_search")),
		tools.NewFetchContent(fetcher, policy, logger.Named("fetch_content")),
		tools.NewValidateURL(fetcher),
		tools.NewSaveNote(store, logger.Named("save_note")),
		s.Health,
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	s.Registry = registry

	planner, err := taskgraph.NewPlanner()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load plan templates: %w", err)
	}

	validator := citation.NewValidator(fetcher, validationStore, logger.Named("citation"))
	author := llm.NewReportAuthor(llm.NewClient(cfg, nil))
	s.Orchestrator = research.NewOrchestrator(registry, planner, validator, author, research.ConfigFromApp(cfg), logger.Named("research"))
	return s, nil
}

// Close releases connections opened by Build.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func openNotes(ctx context.Context, cfg config.Config) (notes.Store, error) {
	if cfg.NotesGCSBucket != "" {
		store, err := notes.NewGCSStore(ctx, cfg.NotesGCSBucket, cfg.NotesGCSPrefix)
		if err != nil {
			return nil, fmt.Errorf("open gcs note store: %w", err)
		}
		return store, nil
	}
	store, err := notes.NewFileStore(cfg.NotesDir)
	if err != nil {
		return nil, fmt.Errorf("open note directory: %w", err)
	}
	return store, nil
}
