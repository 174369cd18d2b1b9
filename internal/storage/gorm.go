package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormRepository 关系型存储实现，postgres 为生产默认，sqlite 用于单机与测试
type GormRepository struct {
	db *gorm.DB
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

func OpenPostgres(dsn string) (*GormRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, classifyGorm("open", err)
	}
	return newGormRepository(db)
}

// OpenSQLite 单连接访问，避免并发写入时出现 database is locked
func OpenSQLite(path string) (*GormRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), gormConfig())
	if err != nil {
		return nil, classifyGorm("open", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return newGormRepository(db)
}

func newGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&Article{}); err != nil {
		return nil, classifyGorm("migrate", err)
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) FindOne(ctx context.Context, f Filter) (*Article, error) {
	var a Article
	err := applyGormFilter(r.db.WithContext(ctx), f).First(&a).Error
	if err != nil {
		return nil, classifyGorm("find_one", err)
	}
	return &a, nil
}

func (r *GormRepository) Find(ctx context.Context, q Query) ([]Article, error) {
	tx := applyGormFilter(r.db.WithContext(ctx).Model(&Article{}), q.Filter)
	for _, s := range q.Sort {
		order := gormColumn(s.Key)
		if s.Desc {
			order += " DESC"
		}
		tx = tx.Order(order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var out []Article
	if err := tx.Find(&out).Error; err != nil {
		return nil, classifyGorm("find", err)
	}
	return out, nil
}

func (r *GormRepository) Insert(ctx context.Context, a *Article) error {
	return classifyGorm("insert", r.db.WithContext(ctx).Create(a).Error)
}

func (r *GormRepository) UpdateContent(ctx context.Context, a *Article) error {
	res := r.db.WithContext(ctx).Model(a).Select(contentColumns).Updates(a)
	if res.Error != nil {
		return classifyGorm("update_content", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) UpdateMany(ctx context.Context, f Filter, u Update) (int64, error) {
	cols := map[string]any{}
	if u.Trending != nil {
		cols["trending"] = *u.Trending
	}
	if len(cols) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx)
	if f.IsEmpty() {
		tx = tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	}
	// UpdateColumns 不刷新 updated_at，排行标记不算内容变更
	res := applyGormFilter(tx.Model(&Article{}), f).UpdateColumns(cols)
	if res.Error != nil {
		return 0, classifyGorm("update_many", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	if f.IsEmpty() {
		return 0, &Error{Kind: ValidationFailure, Op: "delete_many", Err: ErrEmptyFilter}
	}
	res := applyGormFilter(r.db.WithContext(ctx), f).Delete(&Article{})
	if res.Error != nil {
		return 0, classifyGorm("delete_many", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func applyGormFilter(tx *gorm.DB, f Filter) *gorm.DB {
	if f.ExternalID != "" {
		tx = tx.Where("external_id = ?", f.ExternalID)
	}
	if f.Category != "" {
		tx = tx.Where("category = ?", string(f.Category))
	}
	if !f.PublishedAfter.IsZero() {
		tx = tx.Where("published_at >= ?", f.PublishedAfter.UTC())
	}
	if !f.PublishedBefore.IsZero() {
		tx = tx.Where("published_at < ?", f.PublishedBefore.UTC())
	}
	if f.ViewsBelow != nil {
		tx = tx.Where("view_count < ?", *f.ViewsBelow)
	}
	if f.Trending != nil {
		tx = tx.Where("trending = ?", *f.Trending)
	}
	if len(f.IDs) > 0 {
		tx = tx.Where("id IN ?", f.IDs)
	}
	if len(f.ExcludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", f.ExcludeIDs)
	}
	return tx
}

func gormColumn(k SortKey) string {
	switch k {
	case ByViews:
		return "view_count"
	case ByLikes:
		return "like_count"
	default:
		return "published_at"
	}
}
