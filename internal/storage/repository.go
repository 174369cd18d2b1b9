package storage

import (
	"context"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
)

// Filter 文章集合上的查询条件，零值字段不参与过滤，多个条件之间为 AND
type Filter struct {
	ExternalID      string
	Category        collector.Category
	PublishedAfter  time.Time // published_at >= PublishedAfter
	PublishedBefore time.Time // published_at < PublishedBefore
	ViewsBelow      *int64
	Trending        *bool
	IDs             []string
	ExcludeIDs      []string
}

func (f Filter) IsEmpty() bool {
	return f.ExternalID == "" && f.Category == "" &&
		f.PublishedAfter.IsZero() && f.PublishedBefore.IsZero() &&
		f.ViewsBelow == nil && f.Trending == nil &&
		len(f.IDs) == 0 && len(f.ExcludeIDs) == 0
}

type SortKey int

const (
	ByPublishedAt SortKey = iota
	ByViews
	ByLikes
)

type Sort struct {
	Key  SortKey
	Desc bool
}

type Query struct {
	Filter Filter
	Sort   []Sort
	Limit  int
}

// Update 批量更新只开放排行相关字段
type Update struct {
	Trending *bool
}

// Repository 文档存储抽象；postgres / sqlite 走 gorm，mongo 走官方驱动
type Repository interface {
	// FindOne 未找到时返回 ErrNotFound
	FindOne(ctx context.Context, f Filter) (*Article, error)
	Find(ctx context.Context, q Query) ([]Article, error)
	Insert(ctx context.Context, a *Article) error
	// UpdateContent 只写 contentColumns，计数与标记不受影响
	UpdateContent(ctx context.Context, a *Article) error
	UpdateMany(ctx context.Context, f Filter, u Update) (int64, error)
	// DeleteMany 拒绝空条件，防止误删整表
	DeleteMany(ctx context.Context, f Filter) (int64, error)
	Close() error
}

func Bool(v bool) *bool    { return &v }
func Int64(v int64) *int64 { return &v }
