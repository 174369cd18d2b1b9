package collector

import (
	"context"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/gocolly/colly/v2"
)

const (
	enrichMaxChars     = 5000
	enrichMinParagraph = 40
)

// BodyEnricher 对只有摘要的条目抓取原文页面，提取正文段落
type BodyEnricher struct {
	timeout time.Duration
}

func NewBodyEnricher(timeout time.Duration) *BodyEnricher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BodyEnricher{timeout: timeout}
}

func needsBody(it NewsItem) bool {
	return it.Content == "" || it.Content == ContentPlaceholder || it.Content == it.Description
}

// Enrich 尽力而为：页面失败时保留原内容
func (e *BodyEnricher) Enrich(ctx context.Context, items []NewsItem) []NewsItem {
	log := logger.Component("enrich")

	c := colly.NewCollector(
		colly.UserAgent("NewsHubBot/1.0"),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(e.timeout)

	var article, fallback []string
	// 页面结构各异，优先 <article> 内的段落，其次全页段落
	c.OnHTML("article p", func(el *colly.HTMLElement) {
		if t := strings.Join(strings.Fields(el.Text), " "); len(t) >= enrichMinParagraph {
			article = append(article, t)
		}
	})
	c.OnHTML("p", func(el *colly.HTMLElement) {
		if t := strings.Join(strings.Fields(el.Text), " "); len(t) >= enrichMinParagraph {
			fallback = append(fallback, t)
		}
	})

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		if !needsBody(items[i]) || items[i].URL == "" {
			continue
		}
		article, fallback = nil, nil
		if err := c.Visit(items[i].URL); err != nil {
			log.Debug().Err(err).Str("url", items[i].URL).Msg("fetch article page failed")
			continue
		}
		paras := article
		if len(paras) == 0 {
			paras = fallback
		}
		if body := truncateRunes(strings.Join(paras, "\n\n"), enrichMaxChars); body != "" {
			items[i].Content = body
		}
	}
	return items
}

type enrichingFetcher struct {
	Fetcher
	enricher *BodyEnricher
}

// WithBodyEnrichment 包装数据源，抓取结果在写入缓存前补全正文
func WithBodyEnrichment(f Fetcher, e *BodyEnricher) Fetcher {
	return &enrichingFetcher{Fetcher: f, enricher: e}
}

func (f *enrichingFetcher) Fetch(ctx context.Context, category Category, limit int) ([]NewsItem, error) {
	items, err := f.Fetcher.Fetch(ctx, category, limit)
	if err != nil || len(items) == 0 {
		return items, err
	}
	return f.enricher.Enrich(ctx, items), nil
}
