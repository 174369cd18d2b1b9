package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxAge   = 30 * 24 * time.Hour
	DefaultMinViews = 10

	// 每批归档并删除的条数，控制 IN 列表的参数个数
	DefaultBatchSize = 500
)

// Archiver 删除前保存待清理的文章
type Archiver interface {
	Archive(ctx context.Context, articles []storage.Article) error
}

// Sweeper 删除过期且浏览量低的文章
type Sweeper struct {
	repo     storage.Repository
	archiver Archiver
	maxAge   time.Duration
	minViews int64
	batch    int
	now      func() time.Time
	log      zerolog.Logger
}

func New(repo storage.Repository, maxAge time.Duration, minViews int64) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if minViews <= 0 {
		minViews = DefaultMinViews
	}
	return &Sweeper{
		repo:     repo,
		maxAge:   maxAge,
		minViews: minViews,
		batch:    DefaultBatchSize,
		now:      time.Now,
		log:      logger.Component("retention"),
	}
}

// WithArchiver 配置后先归档再删除，归档失败则本轮不删除
func (s *Sweeper) WithArchiver(a Archiver) *Sweeper {
	s.archiver = a
	return s
}

func (s *Sweeper) filter() storage.Filter {
	return storage.Filter{
		PublishedBefore: s.now().Add(-s.maxAge),
		ViewsBelow:      storage.Int64(s.minViews),
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	f := s.filter()
	if s.archiver == nil {
		n, err := s.repo.DeleteMany(ctx, f)
		if err != nil {
			return 0, fmt.Errorf("delete stale articles: %w", err)
		}
		s.log.Info().Int64("deleted", n).Time("cutoff", f.PublishedBefore).Msg("retention sweep done")
		return n, nil
	}

	var total int64
	for batches := 0; ; batches++ {
		n, more, err := s.archiveBatch(ctx, f)
		total += n
		if err != nil {
			s.log.Warn().Err(err).Int64("deleted", total).Int("batches", batches).Msg("retention sweep stopped")
			return total, err
		}
		// 本批一条未删说明候选在归档后被访问过，留到下一轮再判断
		if !more || n == 0 {
			break
		}
	}
	s.log.Info().Int64("deleted", total).Time("cutoff", f.PublishedBefore).Msg("retention sweep done")
	return total, nil
}

// archiveBatch 取一批候选，归档成功后按 ID 删除；more 表示可能还有剩余
func (s *Sweeper) archiveBatch(ctx context.Context, f storage.Filter) (int64, bool, error) {
	candidates, err := s.repo.Find(ctx, storage.Query{
		Filter: f,
		Sort:   []storage.Sort{{Key: storage.ByPublishedAt}},
		Limit:  s.batch,
	})
	if err != nil {
		return 0, false, fmt.Errorf("select sweep candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}
	if err := s.archiver.Archive(ctx, candidates); err != nil {
		return 0, false, fmt.Errorf("archive sweep candidates: %w", err)
	}
	ids := make([]string, 0, len(candidates))
	for _, a := range candidates {
		ids = append(ids, a.ID)
	}
	// 归档与删除之间浏览量可能增长，删除时再次带上阈值
	f.IDs = ids
	n, err := s.repo.DeleteMany(ctx, f)
	if err != nil {
		return 0, false, fmt.Errorf("delete stale articles: %w", err)
	}
	return n, len(candidates) == s.batch, nil
}
