package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const newsAPIBody = `{
  "status": "ok",
  "totalResults": 2,
  "articles": [
    {
      "source": {"id": "the-verge", "name": "The Verge"},
      "author": null,
      "title": "Chips get faster",
      "description": null,
      "url": "https://www.theverge.com/chips",
      "urlToImage": "https://img.example/chips.jpg",
      "publishedAt": "2026-10-19T08:00:00Z",
      "content": null
    },
    {
      "source": {"id": null, "name": "Wired"},
      "author": "Jane Roe",
      "title": "Second story",
      "description": "<p>Some <b>bold</b> text</p>",
      "url": "https://www.wired.com/second",
      "urlToImage": null,
      "publishedAt": "2026-10-19T07:00:00Z",
      "content": "Body"
    }
  ]
}`

func TestNewsAPIFetchMapsArticles(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/top-headlines", r.URL.Path)
		gotQuery.Store(r.URL.Query())
		_, _ = w.Write([]byte(newsAPIBody))
	}))
	defer srv.Close()

	f := NewNewsAPIFetcher("key-1", srv.URL, time.Second)
	items, err := f.Fetch(context.Background(), Politics, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"general"}, q["category"])
	assert.Equal(t, []string{"1"}, q["pageSize"])
	assert.Equal(t, []string{"key-1"}, q["apiKey"])

	it := items[0]
	assert.Equal(t, "Chips get faster", it.Title)
	assert.Equal(t, DescriptionPlaceholder, it.Description)
	assert.Equal(t, ContentPlaceholder, it.Content)
	assert.Equal(t, "Unknown", it.Author)
	assert.Equal(t, "The Verge", it.SourceName)
	assert.Equal(t, Politics, it.Category)
	assert.Equal(t, "newsapi_aHR0cHM6Ly93d3cudGhldmVyZ2UuY29tL2NoaXBz", it.ExternalID)
	assert.True(t, it.PublishedAt.Equal(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)))

	again, err := f.Fetch(context.Background(), Politics, 1)
	require.NoError(t, err)
	assert.Equal(t, it.ExternalID, again[0].ExternalID, "external id must be stable across fetches")
}

func TestNewsAPIStripsHTMLFromDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(newsAPIBody))
	}))
	defer srv.Close()

	items, err := NewNewsAPIFetcher("k", srv.URL, time.Second).Fetch(context.Background(), Technology, 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Some bold text", items[1].Description)
	assert.Equal(t, "Body", items[1].Content)
}

func TestNewsAPIMissingKeySkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := NewNewsAPIFetcher("", srv.URL, time.Second).Fetch(context.Background(), Health, 1)
	require.Error(t, err)
	assert.Equal(t, Unauthenticated, KindOf(err))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestProviderErrorKinds(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    ErrorKind
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid"}`))
		}, Unauthenticated},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, RateLimited},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>not json</html>`))
		}, Malformed},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, Unexpected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := NewNewsAPIFetcher("k", srv.URL, time.Second).Fetch(context.Background(), Business, 1)
			require.Error(t, err)
			assert.Equal(t, tc.want, KindOf(err), err.Error())

			_, err = NewGuardianFetcher("k", srv.URL, time.Second).Fetch(context.Background(), Business, 1)
			require.Error(t, err)
			assert.Equal(t, tc.want, KindOf(err), err.Error())
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewGuardianFetcher("k", srv.URL, 50*time.Millisecond).Fetch(context.Background(), World, 1)
	require.Error(t, err)
	assert.Equal(t, Timeout, KindOf(err))

	_, err = NewBBCFetcher(srv.URL, 50*time.Millisecond).Fetch(context.Background(), World, 1)
	require.Error(t, err)
	assert.Equal(t, Timeout, KindOf(err))
}

func TestGuardianFetchMapsResults(t *testing.T) {
	body := `{"response":{"status":"ok","results":[{
		"id":"society/2026/oct/19/clinic",
		"webTitle":"Clinic web title",
		"webUrl":"https://www.theguardian.com/society/2026/oct/19/clinic",
		"webPublicationDate":"2026-10-19T06:30:00Z",
		"fields":{"headline":"Clinic headline","byline":"","thumbnail":"https://media.guim.co.uk/t.jpg",
		"shortUrl":"https://www.theguardian.com/p/abc12","bodyText":"` + strings.Repeat("word ", 60) + `"}
	}]}}`
	var section atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "headline,byline,thumbnail,bodyText,shortUrl", r.URL.Query().Get("show-fields"))
		section.Store(r.URL.Query().Get("section"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	items, err := NewGuardianFetcher("k", srv.URL, time.Second).Fetch(context.Background(), Health, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "society", section.Load())

	it := items[0]
	assert.Equal(t, "Clinic headline", it.Title)
	assert.Equal(t, "Guardian Staff", it.Author)
	assert.Equal(t, "guardian_society/2026/oct/19/clinic", it.ExternalID)
	assert.Equal(t, "The Guardian", it.SourceName)
	assert.Equal(t, "https://www.theguardian.com/p/abc12", it.SourceURL)
	assert.Equal(t, "https://www.theguardian.com/society/2026/oct/19/clinic", it.URL)
	assert.True(t, strings.HasSuffix(it.Description, "..."))
	assert.LessOrEqual(t, len([]rune(it.Description)), 203)
	assert.Equal(t, "uk", it.Country)
}

func TestGuardianErrorStatusIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"status":"error","message":"bad section"}}`))
	}))
	defer srv.Close()

	_, err := NewGuardianFetcher("k", srv.URL, time.Second).Fetch(context.Background(), Sports, 1)
	assert.Equal(t, Malformed, KindOf(err))
}

const bbcFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>BBC News</title>
  <link>https://www.bbc.co.uk/news</link>
  <item>
    <title>Top story</title>
    <description>Summary of the top story</description>
    <link>https://www.bbc.co.uk/news/articles/abc123</link>
    <pubDate>Mon, 19 Oct 2026 09:00:00 GMT</pubDate>
    <media:thumbnail width="240" height="135" url="https://ichef.bbci.co.uk/abc.jpg"/>
  </item>
  <item>
    <title>Second story</title>
    <link>https://www.bbc.co.uk/news/articles/def456</link>
  </item>
</channel>
</rss>`

func TestBBCFetchUnknownCategoryUsesDefaultFeed(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(bbcFeed))
	}))
	defer srv.Close()

	items, err := NewBBCFetcher(srv.URL, time.Second).Fetch(context.Background(), Category("weather"), 1)
	require.NoError(t, err)
	assert.Equal(t, bbcDefaultFeed, path.Load())
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "Top story", it.Title)
	assert.Equal(t, "Summary of the top story", it.Description)
	assert.Equal(t, "Summary of the top story", it.Content)
	assert.Equal(t, "bbc_"+HashURL("https://www.bbc.co.uk/news/articles/abc123"), it.ExternalID)
	assert.Equal(t, "https://ichef.bbci.co.uk/abc.jpg", it.ImageURL)
	assert.True(t, it.PublishedAt.Equal(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)))
}

func TestBBCNotAFeedIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("service temporarily moved"))
	}))
	defer srv.Close()

	_, err := NewBBCFetcher(srv.URL, time.Second).Fetch(context.Background(), Science, 1)
	assert.Equal(t, Malformed, KindOf(err))
}

func TestCategoryMappingFallbacks(t *testing.T) {
	unknown := Category("weather")

	n := NewNewsAPIFetcher("", "http://unused", time.Second)
	assert.Equal(t, "general", n.MapCategory(unknown))
	assert.Equal(t, "health", n.MapCategory(Health))

	g := NewGuardianFetcher("", "http://unused", time.Second)
	assert.Equal(t, "news", g.MapCategory(unknown))
	assert.Equal(t, "society", g.MapCategory(Health))
	assert.Equal(t, "culture", g.MapCategory(Entertainment))

	b := NewBBCFetcher("", time.Second)
	assert.Equal(t, bbcDefaultFeed, b.MapCategory(unknown))
	assert.Equal(t, "/sport/rss.xml", b.MapCategory(Sports))
}

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	a := HashURL("https://example.com/a")
	assert.Equal(t, a, HashURL("https://example.com/a"))
	assert.NotEqual(t, a, HashURL("https://example.com/b"))
}

func TestFillDefaultsPrefersDescriptionForContent(t *testing.T) {
	it := NewsItem{Title: "  t  ", Description: "d"}
	it.FillDefaults()
	assert.Equal(t, "t", it.Title)
	assert.Equal(t, "d", it.Content)

	empty := NewsItem{}
	empty.FillDefaults()
	assert.Equal(t, DescriptionPlaceholder, empty.Description)
	assert.Equal(t, ContentPlaceholder, empty.Content)
}

func TestHackerNewsFetchSkipsJobsAndUsesDiscussionLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/topstories.json":
			_, _ = w.Write([]byte(`[101, 102, 103]`))
		case "/item/101.json":
			_, _ = w.Write([]byte(`{"id":101,"type":"job","title":"We are hiring","time":1760860800}`))
		case "/item/102.json":
			_, _ = w.Write([]byte(`{"id":102,"type":"story","title":"Ask HN: Tools?","text":"<p>What do you use?</p>","by":"pg","time":1760860800}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewHackerNewsFetcher(srv.URL, time.Second)
	items, err := f.Fetch(context.Background(), Technology, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "hackernews_102", it.ExternalID)
	assert.Equal(t, "https://news.ycombinator.com/item?id=102", it.URL)
	assert.Equal(t, "What do you use?", it.Description)
	assert.Equal(t, "pg", it.Author)
	assert.Equal(t, Technology, it.Category)
}

func TestHackerNewsIgnoresOtherCategories(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	items, err := NewHackerNewsFetcher(srv.URL, time.Second).Fetch(context.Background(), Health, 1)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, calls.Load())
}

func TestHackerNewsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHackerNewsFetcher(srv.URL, time.Second).Fetch(context.Background(), Technology, 1)
	assert.Equal(t, RateLimited, KindOf(err))
}

type staticFetcher struct{ items []NewsItem }

func (s staticFetcher) Name() string { return "static" }

func (s staticFetcher) Fetch(context.Context, Category, int) ([]NewsItem, error) {
	return append([]NewsItem(nil), s.items...), nil
}

func TestBodyEnrichmentFillsSummaryOnlyItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body>
<nav><p>Home News Sport Weather and everything else in the menu</p></nav>
<article>
  <p>The first paragraph of the story carries enough words to count.</p>
  <p>short</p>
  <p>The second paragraph also has plenty of words to be kept around.</p>
</article>
</body></html>`))
	}))
	defer srv.Close()

	f := WithBodyEnrichment(staticFetcher{items: []NewsItem{
		{Title: "summary only", Description: "Summary.", Content: "Summary.", URL: srv.URL + "/news/1"},
		{Title: "has body", Description: "d", Content: "Full body already present.", URL: srv.URL + "/news/2"},
	}}, NewBodyEnricher(time.Second))

	items, err := f.Fetch(context.Background(), World, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "static", f.Name())
	assert.Equal(t,
		"The first paragraph of the story carries enough words to count.\n\nThe second paragraph also has plenty of words to be kept around.",
		items[0].Content)
	assert.Equal(t, "Full body already present.", items[1].Content)
}

func TestBodyEnrichmentKeepsContentOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	items := NewBodyEnricher(time.Second).Enrich(context.Background(), []NewsItem{
		{Description: "Summary.", Content: "Summary.", URL: srv.URL},
	})
	assert.Equal(t, "Summary.", items[0].Content)
}
