package storage

import (
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
	"gorm.io/datatypes"
)

// ProviderMeta 数据源附带的元信息，字段固定，不接受任意结构
type ProviderMeta struct {
	Provider string `json:"provider" bson:"provider"`
	Language string `json:"language" bson:"language"`
	Country  string `json:"country" bson:"country"`
	Section  string `json:"section" bson:"section"`
}

type Article struct {
	ID          string             `gorm:"primaryKey;size:36" json:"id"`
	Title       string             `gorm:"size:512;not null" json:"title" validate:"required,max=512"`
	Description string             `gorm:"type:text;not null" json:"description" validate:"required"`
	Content     string             `gorm:"type:text;not null" json:"content" validate:"required"`
	Author      string             `gorm:"size:256" json:"author" validate:"required,max=256"`
	SourceName  string             `gorm:"size:128" json:"source" validate:"required,max=128"`
	SourceURL   string             `gorm:"size:1024" json:"sourceUrl" validate:"max=1024"`
	URL         string             `gorm:"size:1024;not null" json:"url" validate:"required,url,max=1024"`
	ImageURL    string             `gorm:"size:1024" json:"imageUrl" validate:"max=1024"`
	Category    collector.Category `gorm:"size:32;index:idx_articles_category_published,priority:1" json:"category" validate:"required,oneof=technology business science health entertainment sports politics world"`
	PublishedAt time.Time          `gorm:"index:idx_articles_category_published,priority:2;index" json:"publishedAt" validate:"required"`

	// 以下计数由用户行为累积，入库更新时不覆盖
	ViewCount  int64 `gorm:"index;not null" json:"viewCount"`
	LikeCount  int64 `gorm:"not null" json:"likes"`
	ShareCount int64 `gorm:"not null" json:"shares"`
	Trending   bool  `gorm:"index" json:"isTrending"`
	Breaking   bool  `json:"isBreaking"`

	// 外部标识可为空（非数据源文章），存在时唯一；base64 编码的 1024 字符 URL 加前缀也放得下
	ExternalID *string                          `gorm:"size:1400;uniqueIndex" json:"externalId,omitempty" validate:"omitempty,max=1400"`
	Meta       datatypes.JSONType[ProviderMeta] `json:"meta"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// contentColumns 再次见到同一外部标识时允许覆盖的列
var contentColumns = []string{
	"title", "description", "content", "author", "source_name", "source_url",
	"url", "image_url", "category", "published_at", "meta", "updated_at",
}

// applyContent 用新抓取的内容覆盖当前记录，保留 ID、计数与标记
func (a *Article) applyContent(from *Article) {
	a.Title = from.Title
	a.Description = from.Description
	a.Content = from.Content
	a.Author = from.Author
	a.SourceName = from.SourceName
	a.SourceURL = from.SourceURL
	a.URL = from.URL
	a.ImageURL = from.ImageURL
	a.Category = from.Category
	a.PublishedAt = from.PublishedAt
	a.Meta = from.Meta
}

// storedTimePrecision 各后端中最粗的时间精度（BSON datetime 为毫秒）
const storedTimePrecision = time.Millisecond

func (a *Article) sameContent(other *Article) bool {
	return a.Title == other.Title &&
		a.Description == other.Description &&
		a.Content == other.Content &&
		a.Author == other.Author &&
		a.SourceName == other.SourceName &&
		a.SourceURL == other.SourceURL &&
		a.URL == other.URL &&
		a.ImageURL == other.ImageURL &&
		a.Category == other.Category &&
		a.PublishedAt.Truncate(storedTimePrecision).Equal(other.PublishedAt.Truncate(storedTimePrecision)) &&
		a.Meta.Data() == other.Meta.Data()
}

func articleFromItem(it collector.NewsItem) *Article {
	a := &Article{
		Title:       it.Title,
		Description: it.Description,
		Content:     it.Content,
		Author:      it.Author,
		SourceName:  it.SourceName,
		SourceURL:   it.SourceURL,
		URL:         it.URL,
		ImageURL:    it.ImageURL,
		Category:    it.Category,
		PublishedAt: it.PublishedAt.UTC(),
		Meta: datatypes.NewJSONType(ProviderMeta{
			Provider: it.Provider,
			Language: it.Language,
			Country:  it.Country,
			Section:  it.Section,
		}),
	}
	if it.ExternalID != "" {
		id := it.ExternalID
		a.ExternalID = &id
	}
	return a
}
