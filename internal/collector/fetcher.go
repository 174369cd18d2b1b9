package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Category 本系统固定的新闻分类
type Category string

const (
	Technology    Category = "technology"
	Business      Category = "business"
	Science       Category = "science"
	Health        Category = "health"
	Entertainment Category = "entertainment"
	Sports        Category = "sports"
	Politics      Category = "politics"
	World         Category = "world"
)

// Categories 全部合法分类，顺序即默认采集顺序
var Categories = []Category{Technology, Business, Science, Health, Entertainment, Sports, Politics, World}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

const (
	DescriptionPlaceholder = "No description available."
	ContentPlaceholder     = "No content available."
)

// NewsItem 统一采集后的基础结构（尚未入库）
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Author      string    `json:"author"`
	SourceName  string    `json:"sourceName"`
	SourceURL   string    `json:"sourceUrl"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl"`
	Category    Category  `json:"category"`
	PublishedAt time.Time `json:"publishedAt"`
	// 带数据源前缀，跨轮次稳定，是入库去重的唯一依据
	ExternalID string `json:"externalId"`

	Provider string `json:"provider"`
	Language string `json:"language"`
	Country  string `json:"country"`
	Section  string `json:"section"`
}

// FillDefaults 用占位文案补齐缺失的描述与正文，正文缺失时优先退回描述
func (it *NewsItem) FillDefaults() {
	it.Title = strings.TrimSpace(it.Title)
	it.Description = strings.TrimSpace(it.Description)
	it.Content = strings.TrimSpace(it.Content)
	if it.Description == "" {
		it.Description = DescriptionPlaceholder
	}
	if it.Content == "" {
		if it.Description != DescriptionPlaceholder {
			it.Content = it.Description
		} else {
			it.Content = ContentPlaceholder
		}
	}
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, category Category, limit int) ([]NewsItem, error)
}

// ErrorKind 数据源错误分类
type ErrorKind int

const (
	Unexpected ErrorKind = iota
	Unauthenticated
	Timeout
	RateLimited
	Malformed
)

func (k ErrorKind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Timeout:
		return "timeout"
	case RateLimited:
		return "rate_limited"
	case Malformed:
		return "malformed"
	default:
		return "unexpected"
	}
}

type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf 返回错误分类；非 ProviderError 视为 Unexpected
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Unexpected
}

var errMissingKey = errors.New("api key not configured")

func newError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// transportError 区分超时与其它传输错误
func transportError(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(provider, Timeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return newError(provider, Timeout, err)
	}
	return newError(provider, Unexpected, err)
}

// statusError 将非 200 状态码映射为错误分类
func statusError(provider string, code int, body string) *ProviderError {
	if len(body) > 200 {
		body = body[:200]
	}
	err := fmt.Errorf("unexpected status %d: %s", code, strings.TrimSpace(body))
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return newError(provider, Unauthenticated, err)
	case http.StatusTooManyRequests:
		return newError(provider, RateLimited, err)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return newError(provider, Timeout, err)
	default:
		return newError(provider, Unexpected, err)
	}
}
