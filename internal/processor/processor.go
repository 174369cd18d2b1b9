package processor

import (
	"strings"
	"unicode/utf8"

	"github.com/LJTian/NewsHub/internal/collector"
)

const (
	maxTitleRunes  = 512
	maxAuthorRunes = 256
	maxSourceRunes = 128
	maxURLRunes    = 1024
	defaultAuthor  = "Unknown"
	fallbackPrefix = "url_"
)

// Normalize 入库前的统一清洗：合法 UTF-8、占位文案、URL 与作者兜底
func Normalize(it collector.NewsItem) collector.NewsItem {
	it.Title = truncateRunes(toValidUTF8(it.Title), maxTitleRunes)
	it.Description = toValidUTF8(it.Description)
	it.Content = toValidUTF8(it.Content)
	it.FillDefaults()

	it.URL = strings.TrimSpace(it.URL)
	it.SourceURL = strings.TrimSpace(it.SourceURL)
	if it.URL == "" {
		it.URL = it.SourceURL
	}
	if it.SourceURL == "" {
		it.SourceURL = it.URL
	}

	// 配图只是附属信息，超长直接丢弃
	it.ImageURL = strings.TrimSpace(it.ImageURL)
	if utf8.RuneCountInString(it.ImageURL) > maxURLRunes {
		it.ImageURL = ""
	}

	it.Author = truncateRunes(it.Author, maxAuthorRunes)
	if it.Author == "" {
		it.Author = defaultAuthor
	}
	it.SourceName = truncateRunes(it.SourceName, maxSourceRunes)
	if it.SourceName == "" {
		it.SourceName = truncateRunes(it.Provider, maxSourceRunes)
	}
	if it.ExternalID == "" && it.URL != "" {
		it.ExternalID = fallbackPrefix + collector.HashURL(it.URL)
	}
	return it
}

// Process 对一批采集结果做清洗，并按外部标识去重，保留首次出现的条目
func Process(items []collector.NewsItem) []collector.NewsItem {
	out := make([]collector.NewsItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, raw := range items {
		it := Normalize(raw)
		if it.ExternalID == "" {
			continue
		}
		if _, ok := seen[it.ExternalID]; ok {
			continue
		}
		seen[it.ExternalID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// toValidUTF8 避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
