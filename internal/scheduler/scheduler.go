package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/ingest"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type Ingester interface {
	RunCycle(ctx context.Context) (ingest.Report, error)
	Flush(ctx context.Context) error
}

type Ranker interface {
	Recompute(ctx context.Context) (int, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Specs 三个周期任务的 cron 表达式（5 段）
type Specs struct {
	Ingest   string
	Trending string
	Sweep    string
}

type Scheduler struct {
	cron         *cron.Cron
	ingester     Ingester
	ranker       Ranker
	sweeper      Sweeper
	startupDelay time.Duration
	log          zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
}

func New(specs Specs, ing Ingester, rank Ranker, sweep Sweeper, startupDelay time.Duration) (*Scheduler, error) {
	cl := logger.CronLogger{L: logger.Component("cron")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:         c,
		ingester:     ing,
		ranker:       rank,
		sweeper:      sweep,
		startupDelay: startupDelay,
		log:          logger.Component("scheduler"),
		ctx:          ctx,
		cancel:       cancel,
	}

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{"ingest", specs.Ingest, s.ingestJob},
		{"trending", specs.Trending, s.trendingJob},
		{"sweep", specs.Sweep, s.sweepJob},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := c.AddFunc(j.spec, j.run); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s %q: %w", j.name, j.spec, err)
		}
	}
	return s, nil
}

// Start 启动定时任务，并在 startupDelay 后执行首轮采集
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.startupDelay < 0 {
		return
	}
	s.mu.Lock()
	s.timer = time.AfterFunc(s.startupDelay, s.ingestJob)
	s.mu.Unlock()
}

// Stop 停止调度，等待运行中的任务与异步入库完成
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
	err := s.ingester.Flush(ctx)
	s.cancel()
	return err
}

// RefreshNow 手动触发：采集、等待入库、重算热门
func (s *Scheduler) RefreshNow(ctx context.Context) (ingest.Report, error) {
	report, err := s.ingester.RunCycle(ctx)
	if ferr := s.ingester.Flush(ctx); ferr != nil {
		err = errors.Join(err, fmt.Errorf("flush: %w", ferr))
	}
	if _, terr := s.ranker.Recompute(ctx); terr != nil {
		err = errors.Join(err, terr)
	}
	return report, err
}

func (s *Scheduler) ingestJob() {
	report, err := s.RefreshNow(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", report.RunID).Msg("scheduled ingest failed, retrying next tick")
	}
}

func (s *Scheduler) trendingJob() {
	if _, err := s.ranker.Recompute(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("trending recompute failed, retrying next tick")
	}
}

func (s *Scheduler) sweepJob() {
	if _, err := s.sweeper.Sweep(s.ctx); err != nil {
		s.log.Error().Err(err).Msg("retention sweep failed, retrying next tick")
	}
}
