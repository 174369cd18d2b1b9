package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	hackerNewsName    = "hackernews"
	hnDefaultBaseURL  = "https://hacker-news.firebaseio.com/v0"
	hnConcurrency     = 5
	hnMaxCandidateIDs = 30
)

// HackerNewsFetcher 通过官方 Firebase API 抓取热门故事，只服务 technology 分类
type HackerNewsFetcher struct {
	client *resty.Client
}

func NewHackerNewsFetcher(baseURL string, timeout time.Duration) *HackerNewsFetcher {
	if baseURL == "" {
		baseURL = hnDefaultBaseURL
	}
	return &HackerNewsFetcher{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", "NewsHubBot/1.0"),
	}
}

func (h *HackerNewsFetcher) Name() string {
	return hackerNewsName
}

type hnItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
}

func (h *HackerNewsFetcher) Fetch(ctx context.Context, category Category, limit int) ([]NewsItem, error) {
	if category != Technology || limit <= 0 {
		return nil, nil
	}

	resp, err := h.client.R().SetContext(ctx).Get("/topstories.json")
	if err != nil {
		return nil, transportError(hackerNewsName, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError(hackerNewsName, resp.StatusCode(), resp.String())
	}
	var ids []int
	if err := json.Unmarshal(resp.Body(), &ids); err != nil {
		return nil, newError(hackerNewsName, Malformed, fmt.Errorf("decode top stories: %w", err))
	}

	// 部分条目是 job / 已删除，多取一些候选
	want := limit * 3
	if want > hnMaxCandidateIDs {
		want = hnMaxCandidateIDs
	}
	if len(ids) > want {
		ids = ids[:want]
	}

	items := make([]hnItem, len(ids))
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, hnConcurrency)
	)
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i, id int) {
			defer wg.Done()
			defer func() { <-sem }()
			it, err := h.fetchItem(ctx, id)
			if err != nil {
				return
			}
			items[i] = it
		}(i, id)
	}
	wg.Wait()

	out := make([]NewsItem, 0, limit)
	for _, it := range items {
		if it.Title == "" || it.Type != "story" {
			continue
		}
		discussion := "https://news.ycombinator.com/item?id=" + strconv.Itoa(it.ID)
		link := it.URL
		if link == "" {
			link = discussion
		}
		author := it.By
		if author == "" {
			author = "Unknown"
		}
		n := NewsItem{
			Title:       it.Title,
			Description: extractDescription(it.Text),
			Content:     plainText(it.Text),
			Author:      author,
			SourceName:  "Hacker News",
			SourceURL:   discussion,
			URL:         link,
			Category:    category,
			PublishedAt: time.Unix(it.Time, 0).UTC(),
			ExternalID:  hackerNewsName + "_" + strconv.Itoa(it.ID),
			Provider:    hackerNewsName,
			Language:    "en",
			Section:     "topstories",
		}
		n.FillDefaults()
		out = append(out, n)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (h *HackerNewsFetcher) fetchItem(ctx context.Context, id int) (hnItem, error) {
	var it hnItem
	resp, err := h.client.R().SetContext(ctx).Get(fmt.Sprintf("/item/%d.json", id))
	if err != nil {
		return it, err
	}
	if resp.StatusCode() != http.StatusOK {
		return it, fmt.Errorf("status %d", resp.StatusCode())
	}
	err = json.Unmarshal(resp.Body(), &it)
	return it, err
}
