package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const guardianName = "guardian"

var guardianSections = map[Category]string{
	Technology:    "technology",
	Business:      "business",
	Science:       "science",
	Health:        "society",
	Entertainment: "culture",
	Sports:        "sport",
	Politics:      "politics",
	World:         "world",
}

// GuardianFetcher 通过 Guardian Content API 的 /search 接口按栏目抓取最新文章
type GuardianFetcher struct {
	apiKey string
	client *resty.Client
	now    func() time.Time
}

func NewGuardianFetcher(apiKey, baseURL string, timeout time.Duration) *GuardianFetcher {
	return &GuardianFetcher{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", "NewsHubBot/1.0"),
		now: time.Now,
	}
}

func (g *GuardianFetcher) Name() string {
	return guardianName
}

// MapCategory 未映射的分类退回 news 栏目
func (g *GuardianFetcher) MapCategory(c Category) string {
	if s, ok := guardianSections[c]; ok {
		return s
	}
	return "news"
}

type guardianResponse struct {
	Response struct {
		Status  string           `json:"status"`
		Message string           `json:"message"`
		Results []guardianResult `json:"results"`
	} `json:"response"`
}

type guardianResult struct {
	ID                 string `json:"id"`
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
	WebPublicationDate string `json:"webPublicationDate"`
	SectionID          string `json:"sectionId"`
	Fields             struct {
		Headline  string `json:"headline"`
		Byline    string `json:"byline"`
		Thumbnail string `json:"thumbnail"`
		BodyText  string `json:"bodyText"`
		ShortURL  string `json:"shortUrl"`
	} `json:"fields"`
}

func (g *GuardianFetcher) Fetch(ctx context.Context, category Category, limit int) ([]NewsItem, error) {
	if g.apiKey == "" {
		return nil, newError(guardianName, Unauthenticated, errMissingKey)
	}

	section := g.MapCategory(category)
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api-key":     g.apiKey,
			"section":     section,
			"page-size":   strconv.Itoa(limit),
			"show-fields": "headline,byline,thumbnail,bodyText,shortUrl",
			"order-by":    "newest",
		}).
		Get("/search")
	if err != nil {
		return nil, transportError(guardianName, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError(guardianName, resp.StatusCode(), resp.String())
	}

	var body guardianResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, newError(guardianName, Malformed, fmt.Errorf("decode search: %w", err))
	}
	if body.Response.Status != "ok" {
		return nil, newError(guardianName, Malformed, fmt.Errorf("status=%q: %s", body.Response.Status, body.Response.Message))
	}

	out := make([]NewsItem, 0, len(body.Response.Results))
	for _, r := range body.Response.Results {
		if r.ID == "" || r.WebURL == "" {
			continue
		}
		title := r.Fields.Headline
		if title == "" {
			title = r.WebTitle
		}
		author := r.Fields.Byline
		if author == "" {
			author = "Guardian Staff"
		}
		// 短链作为来源地址，缺失时用正文页地址
		sourceURL := r.Fields.ShortURL
		if sourceURL == "" {
			sourceURL = r.WebURL
		}
		published, err := time.Parse(time.RFC3339, r.WebPublicationDate)
		if err != nil {
			published = g.now()
		}
		it := NewsItem{
			Title:       title,
			Description: extractDescription(r.Fields.BodyText),
			Content:     plainText(r.Fields.BodyText),
			Author:      author,
			SourceName:  "The Guardian",
			SourceURL:   sourceURL,
			URL:         r.WebURL,
			ImageURL:    r.Fields.Thumbnail,
			Category:    category,
			PublishedAt: published,
			ExternalID:  guardianName + "_" + r.ID,
			Provider:    guardianName,
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
