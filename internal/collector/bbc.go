package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	bbcName        = "bbc"
	bbcBaseURL     = "https://feeds.bbci.co.uk"
	bbcDefaultFeed = "/news/rss.xml"
)

var bbcFeeds = map[Category]string{
	Technology:    "/news/technology/rss.xml",
	Business:      "/news/business/rss.xml",
	Science:       "/news/science_and_environment/rss.xml",
	Health:        "/news/health/rss.xml",
	Entertainment: "/news/entertainment_and_arts/rss.xml",
	Sports:        "/sport/rss.xml",
	Politics:      "/news/politics/rss.xml",
	World:         "/news/world/rss.xml",
}

// BBCFetcher 读取 BBC 公开 RSS，无需凭证
type BBCFetcher struct {
	baseURL string
	parser  *gofeed.Parser
	now     func() time.Time
}

func NewBBCFetcher(baseURL string, timeout time.Duration) *BBCFetcher {
	if baseURL == "" {
		baseURL = bbcBaseURL
	}
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: timeout}
	p.UserAgent = "NewsHubBot/1.0"
	return &BBCFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		parser:  p,
		now:     time.Now,
	}
}

func (b *BBCFetcher) Name() string {
	return bbcName
}

// MapCategory 未映射的分类退回头条 feed
func (b *BBCFetcher) MapCategory(c Category) string {
	if s, ok := bbcFeeds[c]; ok {
		return s
	}
	return bbcDefaultFeed
}

func (b *BBCFetcher) Fetch(ctx context.Context, category Category, limit int) ([]NewsItem, error) {
	section := b.MapCategory(category)
	feed, err := b.parser.ParseURLWithContext(b.baseURL+section, ctx)
	if err != nil {
		return nil, b.classify(err)
	}

	out := make([]NewsItem, 0, limit)
	for _, item := range feed.Items {
		if item == nil || item.Link == "" || item.Title == "" {
			continue
		}
		published := b.now()
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		author := "BBC News"
		if item.Author != nil && item.Author.Name != "" {
			author = item.Author.Name
		}

		it := NewsItem{
			Title:       item.Title,
			Description: plainText(item.Description),
			Content:     plainText(item.Content),
			Author:      author,
			SourceName:  "BBC News",
			SourceURL:   item.Link,
			URL:         item.Link,
			ImageURL:    itemImage(item),
			Category:    category,
			PublishedAt: published,
			ExternalID:  bbcName + "_" + HashURL(item.Link),
			Provider:    bbcName,
			Language:    "en",
			Country:     "uk",
			Section:     section,
		}
		it.FillDefaults()
		out = append(out, it)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (b *BBCFetcher) classify(err error) *ProviderError {
	var he gofeed.HTTPError
	if errors.As(err, &he) {
		return statusError(bbcName, he.StatusCode, he.Status)
	}
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return newError(bbcName, Malformed, err)
	}
	pe := transportError(bbcName, err)
	if pe.Kind == Timeout {
		return pe
	}
	var ue *url.Error
	var ne net.Error
	if errors.As(err, &ue) || errors.As(err, &ne) {
		return pe
	}
	// 其余均为 feed 解析失败
	return newError(bbcName, Malformed, fmt.Errorf("parse feed: %w", err))
}

// itemImage 优先 media:thumbnail / image，其次图片类型的 enclosure
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
