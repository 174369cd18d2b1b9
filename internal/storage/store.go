package storage

import (
	"context"
	"errors"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type UpsertResult int

const (
	Inserted UpsertResult = iota
	Updated
	Unchanged
	// Duplicate 并发插入同一外部标识时落败的一方，视为成功
	Duplicate
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "duplicate"
	}
}

type BatchResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Store 在 Repository 之上实现按外部标识的幂等写入
type Store struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
	log      zerolog.Logger
}

func NewStore(repo Repository) *Store {
	return &Store{
		repo:     repo,
		validate: validator.New(),
		now:      time.Now,
		log:      logger.Component("storage"),
	}
}

func (s *Store) Repo() Repository { return s.repo }

func (s *Store) Close() error { return s.repo.Close() }

// Upsert 以 ExternalID 为键：已存在则只覆盖内容列，不存在则插入
func (s *Store) Upsert(ctx context.Context, item collector.NewsItem) (UpsertResult, error) {
	item = processor.Normalize(item)
	if item.ExternalID == "" {
		return 0, &Error{Kind: ValidationFailure, Op: "upsert", Err: errors.New("missing external id")}
	}
	incoming := articleFromItem(item)
	if err := s.validate.Struct(incoming); err != nil {
		return 0, &Error{Kind: ValidationFailure, Op: "upsert", Err: err}
	}

	existing, err := s.repo.FindOne(ctx, Filter{ExternalID: item.ExternalID})
	switch {
	case err == nil:
		if existing.sameContent(incoming) {
			return Unchanged, nil
		}
		existing.applyContent(incoming)
		existing.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateContent(ctx, existing); err != nil {
			return 0, err
		}
		return Updated, nil
	case errors.Is(err, ErrNotFound):
	default:
		return 0, err
	}

	now := s.now().UTC()
	incoming.ID = uuid.NewString()
	incoming.CreatedAt = now
	incoming.UpdatedAt = now
	if err := s.repo.Insert(ctx, incoming); err != nil {
		if IsKind(err, DuplicateKey) {
			s.log.Debug().Str("external_id", item.ExternalID).Msg("article inserted concurrently, skipping")
			return Duplicate, nil
		}
		return 0, err
	}
	return Inserted, nil
}

// UpsertBatch 批内先去重再逐条写入，单条失败只记日志不影响其余条目
func (s *Store) UpsertBatch(ctx context.Context, items []collector.NewsItem) BatchResult {
	var res BatchResult
	unique := processor.Process(items)
	res.Skipped = len(items) - len(unique)
	for _, it := range unique {
		r, err := s.Upsert(ctx, it)
		if err != nil {
			res.Failed++
			s.log.Warn().Err(err).Str("external_id", it.ExternalID).Str("provider", it.Provider).Msg("upsert article failed")
			continue
		}
		switch r {
		case Inserted:
			res.Inserted++
		case Updated:
			res.Updated++
		default:
			res.Skipped++
		}
	}
	return res
}

// ListTrending 当前标记为热门的文章，按浏览量降序
func (s *Store) ListTrending(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.Find(ctx, Query{
		Filter: Filter{Trending: Bool(true)},
		Sort:   []Sort{{Key: ByViews, Desc: true}, {Key: ByLikes, Desc: true}, {Key: ByPublishedAt, Desc: true}},
		Limit:  limit,
	})
}

// ListLatest 按分类返回最新文章，category 为空时不过滤
func (s *Store) ListLatest(ctx context.Context, category collector.Category, limit int) ([]Article, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.Find(ctx, Query{
		Filter: Filter{Category: category},
		Sort:   []Sort{{Key: ByPublishedAt, Desc: true}},
		Limit:  limit,
	})
}
