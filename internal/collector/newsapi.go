package collector

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const newsAPIName = "newsapi"

var newsAPICategories = map[Category]string{
	Technology:    "technology",
	Business:      "business",
	Science:       "science",
	Health:        "health",
	Entertainment: "entertainment",
	Sports:        "sports",
	Politics:      "general",
	World:         "general",
}

// NewsAPIFetcher 通过 newsapi.org 的 top-headlines 接口抓取头条
type NewsAPIFetcher struct {
	apiKey string
	client *resty.Client
	now    func() time.Time
}

func NewNewsAPIFetcher(apiKey, baseURL string, timeout time.Duration) *NewsAPIFetcher {
	return &NewsAPIFetcher{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", "NewsHubBot/1.0"),
		now: time.Now,
	}
}

func (n *NewsAPIFetcher) Name() string {
	return newsAPIName
}

// MapCategory 未映射的分类退回 general
func (n *NewsAPIFetcher) MapCategory(c Category) string {
	if s, ok := newsAPICategories[c]; ok {
		return s
	}
	return "general"
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (n *NewsAPIFetcher) Fetch(ctx context.Context, category Category, limit int) ([]NewsItem, error) {
	if n.apiKey == "" {
		return nil, newError(newsAPIName, Unauthenticated, errMissingKey)
	}

	section := n.MapCategory(category)
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apiKey":   n.apiKey,
			"category": section,
			"country":  "us",
			"pageSize": strconv.Itoa(limit),
			"language": "en",
		}).
		Get("/top-headlines")
	if err != nil {
		return nil, transportError(newsAPIName, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError(newsAPIName, resp.StatusCode(), resp.String())
	}

	var body newsAPIResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, newError(newsAPIName, Malformed, fmt.Errorf("decode top-headlines: %w", err))
	}
	if body.Status != "ok" || body.Articles == nil {
		return nil, newError(newsAPIName, Malformed, fmt.Errorf("status=%q code=%q: %s", body.Status, body.Code, body.Message))
	}

	out := make([]NewsItem, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		published, err := time.Parse(time.RFC3339, a.PublishedAt)
		if err != nil {
			published = n.now()
		}
		author := a.Author
		if author == "" {
			author = "Unknown"
		}
		it := NewsItem{
			Title:       a.Title,
			Description: plainText(a.Description),
			Content:     plainText(a.Content),
			Author:      author,
			SourceName:  a.Source.Name,
			SourceURL:   a.URL,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			Category:    category,
			PublishedAt: published,
			ExternalID:  newsAPIName + "_" + base64.StdEncoding.EncodeToString([]byte(a.URL)),
			Provider:    newsAPIName,
			Language:    "en",
			Country:     "us",
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
