package ingest

import (
	"context"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/storage"
)

const DefaultFreshnessWindow = 2 * time.Hour

// ArticleFinder 守卫只需要按条件查询
type ArticleFinder interface {
	Find(ctx context.Context, q storage.Query) ([]storage.Article, error)
}

// Guard 分类在窗口内已有文章时跳过外部调用
type Guard struct {
	repo   ArticleFinder
	window time.Duration
	now    func() time.Time
}

func NewGuard(repo ArticleFinder, window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &Guard{repo: repo, window: window, now: time.Now}
}

func (g *Guard) IsFresh(ctx context.Context, category collector.Category) (bool, error) {
	found, err := g.repo.Find(ctx, storage.Query{
		Filter: storage.Filter{
			Category:       category,
			PublishedAfter: g.now().Add(-g.window),
		},
		Limit: 1,
	})
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}
