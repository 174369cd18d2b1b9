package trending

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/rs/zerolog"
)

const (
	DefaultWindow = 24 * time.Hour
	DefaultLimit  = 20
)

// Ranker 按互动数据重算热门标记
type Ranker struct {
	repo   storage.Repository
	window time.Duration
	limit  int
	now    func() time.Time
	log    zerolog.Logger
}

func New(repo storage.Repository, window time.Duration, limit int) *Ranker {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ranker{
		repo:   repo,
		window: window,
		limit:  limit,
		now:    time.Now,
		log:    logger.Component("trending"),
	}
}

// Recompute 先选出窗口内的前 N 篇，再清除其余文章的标记，最后为入选者置位。
// 结果与“全部清除再置位”一致，但入选文章不会出现短暂未标记的状态。
func (r *Ranker) Recompute(ctx context.Context) (int, error) {
	winners, err := r.repo.Find(ctx, storage.Query{
		Filter: storage.Filter{PublishedAfter: r.now().Add(-r.window)},
		Sort: []storage.Sort{
			{Key: storage.ByViews, Desc: true},
			{Key: storage.ByLikes, Desc: true},
			{Key: storage.ByPublishedAt, Desc: true},
		},
		Limit: r.limit,
	})
	if err != nil {
		return 0, fmt.Errorf("select trending: %w", err)
	}

	ids := make([]string, 0, len(winners))
	for _, a := range winners {
		ids = append(ids, a.ID)
	}

	cleared, err := r.repo.UpdateMany(ctx, storage.Filter{
		Trending:   storage.Bool(true),
		ExcludeIDs: ids,
	}, storage.Update{Trending: storage.Bool(false)})
	if err != nil {
		return 0, fmt.Errorf("clear trending: %w", err)
	}

	if len(ids) > 0 {
		if _, err := r.repo.UpdateMany(ctx, storage.Filter{IDs: ids}, storage.Update{Trending: storage.Bool(true)}); err != nil {
			return 0, fmt.Errorf("flag trending: %w", err)
		}
	}

	r.log.Info().Int("trending", len(ids)).Int64("cleared", cleared).Msg("trending recomputed")
	return len(ids), nil
}
