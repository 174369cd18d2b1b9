package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/cache"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrAllBranchesFailed 本轮所有实际执行的数据源调用都失败（不含未配置凭据）
var ErrAllBranchesFailed = errors.New("ingest: every provider call failed")

const (
	DefaultMaxCategories    = 3
	DefaultItemsPerProvider = 1
	DefaultProviderTimeout  = 5 * time.Second
)

type Config struct {
	Categories            []collector.Category
	MaxCategoriesPerCycle int
	ItemsPerProvider      int
	ProviderTimeout       time.Duration
}

// Persister 入库由 storage.Store 实现
type Persister interface {
	UpsertBatch(ctx context.Context, items []collector.NewsItem) storage.BatchResult
}

type Report struct {
	RunID        string               `json:"runId"`
	Categories   []collector.Category `json:"categories"`
	Fresh        []collector.Category `json:"fresh"`
	GuardFailed  []collector.Category `json:"guardFailed,omitempty"`
	Fetched      int                  `json:"fetched"`
	Branches     int                  `json:"branches"`
	Failed       int                  `json:"failed"`
	NoCredential int                  `json:"noCredential"`
	CacheHits    int                  `json:"cacheHits"`
}

type Orchestrator struct {
	cfg      Config
	fetchers []collector.Fetcher
	cache    cache.Cache
	guard    *Guard
	store    Persister
	log      zerolog.Logger

	// 入库任务计数；drained 在计数归零时关闭，由 0 变 1 时重建
	mu       sync.Mutex
	inflight int
	drained  chan struct{}
}

func New(cfg Config, fetchers []collector.Fetcher, c cache.Cache, guard *Guard, store Persister) *Orchestrator {
	if len(cfg.Categories) == 0 {
		cfg.Categories = collector.Categories
	}
	if cfg.MaxCategoriesPerCycle <= 0 {
		cfg.MaxCategoriesPerCycle = DefaultMaxCategories
	}
	if cfg.ItemsPerProvider <= 0 {
		cfg.ItemsPerProvider = DefaultItemsPerProvider
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if c == nil {
		c = cache.NewMemory(cache.DefaultTTL)
	}
	drained := make(chan struct{})
	close(drained)
	return &Orchestrator{
		cfg:      cfg,
		fetchers: fetchers,
		cache:    c,
		guard:    guard,
		store:    store,
		log:      logger.Component("ingest"),
		drained:  drained,
	}
}

func (o *Orchestrator) categories() []collector.Category {
	cats := o.cfg.Categories
	if len(cats) > o.cfg.MaxCategoriesPerCycle {
		cats = cats[:o.cfg.MaxCategoriesPerCycle]
	}
	return cats
}

type branchResult struct {
	items    []collector.NewsItem
	err      error
	cacheHit bool
}

type categoryResult struct {
	category    collector.Category
	fresh       bool
	guardFailed bool
	branches    []branchResult
}

// RunCycle 执行一轮采集：分类并发，分类内各数据源并发，单个失败不影响其余
func (o *Orchestrator) RunCycle(ctx context.Context) (Report, error) {
	cats := o.categories()
	report := Report{RunID: uuid.NewString(), Categories: cats}
	log := o.log.With().Str("run_id", report.RunID).Logger()
	log.Info().Int("categories", len(cats)).Int("providers", len(o.fetchers)).Msg("ingest cycle start")

	results := make([]categoryResult, len(cats))
	var wg sync.WaitGroup
	for i, cat := range cats {
		wg.Add(1)
		go func(i int, cat collector.Category) {
			defer wg.Done()
			results[i] = o.runCategory(ctx, log, cat)
		}(i, cat)
	}
	wg.Wait()

	for _, res := range results {
		switch {
		case res.guardFailed:
			report.GuardFailed = append(report.GuardFailed, res.category)
			continue
		case res.fresh:
			report.Fresh = append(report.Fresh, res.category)
			continue
		}
		for _, b := range res.branches {
			report.Branches++
			switch {
			case b.err == nil:
				report.Fetched += len(b.items)
				if b.cacheHit {
					report.CacheHits++
				}
			case collector.KindOf(b.err) == collector.Unauthenticated:
				report.NoCredential++
			default:
				report.Failed++
			}
		}
	}

	log.Info().
		Int("fetched", report.Fetched).
		Int("failed", report.Failed).
		Int("fresh", len(report.Fresh)).
		Int("cache_hits", report.CacheHits).
		Msg("ingest cycle done")

	ran := report.Branches - report.NoCredential
	if ran > 0 && report.Failed == ran {
		return report, ErrAllBranchesFailed
	}
	return report, nil
}

func (o *Orchestrator) runCategory(ctx context.Context, log zerolog.Logger, cat collector.Category) categoryResult {
	res := categoryResult{category: cat}
	log = log.With().Str("category", string(cat)).Logger()

	if o.guard != nil {
		fresh, err := o.guard.IsFresh(ctx, cat)
		if err != nil {
			log.Warn().Err(err).Msg("freshness check failed, skipping category")
			res.guardFailed = true
			return res
		}
		if fresh {
			log.Debug().Msg("category is fresh, skipping providers")
			res.fresh = true
			return res
		}
	}

	res.branches = make([]branchResult, len(o.fetchers))
	var wg sync.WaitGroup
	for i, f := range o.fetchers {
		wg.Add(1)
		go func(i int, f collector.Fetcher) {
			defer wg.Done()
			res.branches[i] = o.fetchThrough(ctx, f, cat)
			if err := res.branches[i].err; err != nil {
				ev := log.Warn()
				if collector.KindOf(err) == collector.Unauthenticated {
					ev = log.Debug()
				}
				ev.Err(err).Str("provider", f.Name()).Str("kind", collector.KindOf(err).String()).Msg("provider fetch failed")
			}
		}(i, f)
	}
	wg.Wait()

	var merged []collector.NewsItem
	for _, b := range res.branches {
		if b.err == nil {
			merged = append(merged, b.items...)
		}
	}
	for i := range merged {
		merged[i].Category = cat
	}
	if len(merged) > 0 && o.store != nil {
		o.persist(ctx, log, merged)
	}
	return res
}

func (o *Orchestrator) fetchThrough(ctx context.Context, f collector.Fetcher, cat collector.Category) branchResult {
	key := cache.Key{Provider: f.Name(), Category: cat, Limit: o.cfg.ItemsPerProvider}
	if items, ok := o.cache.Get(ctx, key); ok {
		return branchResult{items: items, cacheHit: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()
	items, err := f.Fetch(callCtx, cat, o.cfg.ItemsPerProvider)
	if err != nil {
		return branchResult{err: err}
	}
	o.cache.Set(ctx, key, items)
	return branchResult{items: items}
}

// persist 异步入库，不随本轮 ctx 取消；Flush 等待全部完成
func (o *Orchestrator) persist(ctx context.Context, log zerolog.Logger, items []collector.NewsItem) {
	o.begin()
	go func() {
		defer o.end()
		res := o.store.UpsertBatch(context.WithoutCancel(ctx), items)
		log.Info().
			Int("inserted", res.Inserted).
			Int("updated", res.Updated).
			Int("skipped", res.Skipped).
			Int("failed", res.Failed).
			Msg("articles persisted")
	}()
}

func (o *Orchestrator) begin() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight == 0 {
		o.drained = make(chan struct{})
	}
	o.inflight++
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight--
	if o.inflight == 0 {
		close(o.drained)
	}
}

// Flush 等待在途入库任务清空，ctx 结束时提前返回；可与 RunCycle 并发调用
func (o *Orchestrator) Flush(ctx context.Context) error {
	o.mu.Lock()
	done := o.drained
	o.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
