package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/LJTian/NewsHub/internal/archive"
	"github.com/LJTian/NewsHub/internal/cache"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/ingest"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/retention"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/LJTian/NewsHub/internal/trending"
)

// App 组装好的流水线，cmd/api 与 cmd/collect 共用
type App struct {
	Config       *config.Config
	Store        *storage.Store
	Orchestrator *ingest.Orchestrator
	Ranker       *trending.Ranker
	Sweeper      *retention.Sweeper
	Scheduler    *scheduler.Scheduler

	closers []func() error
}

func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Component("app")

	repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	a := &App{Config: cfg, Store: storage.NewStore(repo)}
	a.closers = append(a.closers, repo.Close)

	var c cache.Cache = cache.NewMemory(cfg.CacheTTL)
	if cfg.RedisAddr != "" {
		rc := cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed, cache degrades to misses until it recovers")
		}
		c = rc
		a.closers = append(a.closers, rc.Close)
	}

	a.Orchestrator = ingest.New(ingest.Config{
		Categories:            Categories(cfg),
		MaxCategoriesPerCycle: cfg.MaxCategoriesPerCycle,
		ItemsPerProvider:      cfg.ItemsPerProvider,
		ProviderTimeout:       cfg.ProviderTimeout,
	}, Fetchers(cfg), c, ingest.NewGuard(repo, cfg.FreshnessWindow), a.Store)

	a.Ranker = trending.New(repo, cfg.TrendingWindow, cfg.TrendingLimit)
	a.Sweeper = retention.New(repo, cfg.RetentionAge, cfg.RetentionMinViews)
	if cfg.ArchiveBucket != "" {
		arch, err := archive.NewS3(ctx, archive.Config{
			Bucket:          cfg.ArchiveBucket,
			Prefix:          cfg.ArchivePrefix,
			Region:          cfg.ArchiveRegion,
			Endpoint:        cfg.ArchiveEndpoint,
			AccessKeyID:     cfg.ArchiveKeyID,
			SecretAccessKey: cfg.ArchiveSecret,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
		a.Sweeper.WithArchiver(arch)
	}

	a.Scheduler, err = scheduler.New(scheduler.Specs{
		Ingest:   cfg.IngestCron,
		Trending: cfg.TrendingCron,
		Sweep:    cfg.SweepCron,
	}, a.Orchestrator, a.Ranker, a.Sweeper, cfg.StartupDelay)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func OpenRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return storage.OpenSQLite(cfg.SQLitePath)
	case "mongo":
		return storage.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return storage.OpenPostgres(cfg.PostgresDSN)
	}
}

// Fetchers 未配置密钥的数据源仍然注册，调用时按未认证处理并记为零条
func Fetchers(cfg *config.Config) []collector.Fetcher {
	fetchers := []collector.Fetcher{
		collector.NewNewsAPIFetcher(cfg.NewsAPIKey, cfg.NewsAPIURL, cfg.ProviderTimeout),
		collector.NewGuardianFetcher(cfg.GuardianAPIKey, cfg.GuardianAPIURL, cfg.ProviderTimeout),
	}
	if cfg.EnableBBC {
		var bbc collector.Fetcher = collector.NewBBCFetcher("", cfg.ProviderTimeout)
		if cfg.EnrichBodies {
			bbc = collector.WithBodyEnrichment(bbc, collector.NewBodyEnricher(cfg.ProviderTimeout))
		}
		fetchers = append(fetchers, bbc)
	}
	if cfg.EnableHN {
		fetchers = append(fetchers, collector.NewHackerNewsFetcher("", cfg.ProviderTimeout))
	}
	return fetchers
}

// Categories 过滤掉不认识的分类
func Categories(cfg *config.Config) []collector.Category {
	log := logger.Component("app")
	out := make([]collector.Category, 0, len(cfg.Categories))
	for _, name := range cfg.Categories {
		c := collector.Category(name)
		if !c.Valid() {
			log.Warn().Str("category", name).Msg("ignoring unknown category")
			continue
		}
		out = append(out, c)
	}
	return out
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
