package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinhngo-x/news-agg/config"
	"github.com/thinhngo-x/news-agg/db"
	"github.com/thinhngo-x/news-agg/digest"
	"github.com/thinhngo-x/news-agg/feeds"
	"github.com/thinhngo-x/news-agg/models"
	"github.com/thinhngo-x/news-agg/scraper"
	"github.com/thinhngo-x/news-agg/server"
	"github.com/thinhngo-x/news-agg/summarizer"
)

const rssDocument = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example News</title>
    <description>All the news that fits</description>
    <item>
      <title>First story</title>
      <link>https://example.com/first</link>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Second story</title>
      <link>https://example.com/second</link>
    </item>
  </channel>
</rss>`

type testServer struct {
	app      *fiber.App
	database *db.DB
	store    *config.AIStore
}

// newTestServer wires the full API stack over a throwaway database. An
// aiBaseURL points the summarizer at a fake completion endpoint, empty
// leaves it at the real one.
func newTestServer(t *testing.T, aiBaseURL string) *testServer {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "news.db")
	require.NoError(t, db.Migrate(path))

	database, err := db.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	store := config.NewAIStore(filepath.Join(dir, "key.json"), models.ModelGPT4oMini)

	fetcher := feeds.NewFetcher(feeds.FetcherConfig{Timeout: 5 * time.Second, MaxItems: 100})
	pipeline := feeds.NewPipeline(database, fetcher, nil)
	summ := summarizer.New(store, summarizer.Config{
		MaxSummaryLength: 500,
		Temperature:      0.3,
		Timeout:          5 * time.Second,
		BaseURL:          aiBaseURL,
	})

	app := server.Server(&server.ServerConfig{
		AllowOrigins: "*",
		DB:           database,
		Fetcher:      fetcher,
		Pipeline:     pipeline,
		Scraper:      scraper.New(scraper.Config{Timeout: 5 * time.Second, MaxContentLength: 10000}),
		Summarizer:   summ,
		Digest:       digest.New(database, summ),
		AIStore:      store,
		Config:       cfg,
	})

	return &testServer{app: app, database: database, store: store}
}

func (ts *testServer) request(t *testing.T, method string, target string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) seedFeed(t *testing.T, url string) models.Feed {
	t.Helper()

	feed, err := ts.database.CreateFeed(context.Background(), models.Feed{Url: url, Title: "Seeded"})
	require.NoError(t, err)
	return feed
}

func (ts *testServer) seedArticle(t *testing.T, article models.Article) models.Article {
	t.Helper()

	if article.PublishedAt.IsZero() {
		article.PublishedAt = time.Now().UTC()
	}
	created, err := ts.database.InsertArticle(context.Background(), article)
	require.NoError(t, err)
	require.True(t, created)

	page, err := ts.database.ListArticles(context.Background(), db.ArticleQuery{Limit: 500})
	require.NoError(t, err)
	for _, stored := range page.Articles {
		if stored.Url == article.Url {
			return stored
		}
	}

	t.Fatalf("article %s not stored", article.Url)
	return models.Article{}
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type bulkResponse struct {
	Message      string   `json:"message"`
	TotalItems   int      `json:"totalItems"`
	SuccessCount int      `json:"successCount"`
	ErrorCount   int      `json:"errorCount"`
	Errors       []string `json:"errors"`
}

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssDocument))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newArticleServer(t *testing.T) *httptest.Server {
	t.Helper()

	page := "<html><body><article>" + strings.Repeat("The committee met to discuss the new budget proposal. ", 5) + "</article></body></html>"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	t.Cleanup(ts.Close)
	return ts
}

// newCompletionServer answers every chat completion with the given text
func newCompletionServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: reply}},
			},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.request(t, "GET", "/", nil)
	assert.Equal(t, 200, resp.StatusCode)

	var root map[string]interface{}
	decode(t, resp, &root)
	assert.Equal(t, "News Aggregator API is running", root["message"])

	resp = ts.request(t, "GET", "/api/health", nil)
	assert.Equal(t, 200, resp.StatusCode)

	var health struct {
		Status           string `json:"status"`
		ApiKeyConfigured bool   `json:"apiKeyConfigured"`
		AiAvailable      bool   `json:"aiAvailable"`
	}
	decode(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.False(t, health.ApiKeyConfigured)
	assert.False(t, health.AiAvailable)
}

func TestConfigEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.request(t, "GET", "/api/config", nil)
	assert.Equal(t, 200, resp.StatusCode)

	var cfg struct {
		AiConfigured       bool     `json:"aiConfigured"`
		SelectedModel      string   `json:"selectedModel"`
		BulkSummarizeLimit int      `json:"bulkSummarizeLimit"`
		DefaultFeeds       []string `json:"defaultFeeds"`
	}
	decode(t, resp, &cfg)
	assert.False(t, cfg.AiConfigured)
	assert.Equal(t, "gpt-4o-mini", cfg.SelectedModel)
	assert.Equal(t, 10, cfg.BulkSummarizeLimit)
	assert.NotEmpty(t, cfg.DefaultFeeds)
}

func TestFeedLifecycle(t *testing.T) {
	ts := newTestServer(t, "")
	feedServer := newFeedServer(t)

	// Create validates the url with one fetch and fills in the metadata
	resp := ts.request(t, "POST", "/api/feeds", map[string]string{"url": feedServer.URL})
	require.Equal(t, 201, resp.StatusCode)

	var feed models.Feed
	decode(t, resp, &feed)
	assert.NotZero(t, feed.Id)
	assert.Equal(t, "Example News", feed.Title)
	assert.Equal(t, "All the news that fits", feed.Description)
	assert.Equal(t, models.FeedActive, feed.Status)

	// Adding a feed never ingests its articles right away
	var page models.ArticlePage
	resp = ts.request(t, "GET", "/api/articles", nil)
	decode(t, resp, &page)
	assert.Zero(t, page.Total)

	// The same url again conflicts
	resp = ts.request(t, "POST", "/api/feeds", map[string]string{"url": feedServer.URL})
	assert.Equal(t, 409, resp.StatusCode)
	var conflict errorResponse
	decode(t, resp, &conflict)
	assert.Equal(t, "Feed already exists", conflict.Error)

	target := fmt.Sprintf("/api/feeds/%d", feed.Id)

	resp = ts.request(t, "PATCH", target, map[string]string{"title": "Renamed"})
	require.Equal(t, 200, resp.StatusCode)
	var updated models.Feed
	decode(t, resp, &updated)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, feed.Description, updated.Description)

	resp = ts.request(t, "PATCH", target, map[string]string{"status": "sleeping"})
	assert.Equal(t, 400, resp.StatusCode)
	var invalid errorResponse
	decode(t, resp, &invalid)
	assert.Equal(t, "Invalid feed status", invalid.Error)

	resp = ts.request(t, "DELETE", target, nil)
	require.Equal(t, 200, resp.StatusCode)
	var deleted messageResponse
	decode(t, resp, &deleted)
	assert.Equal(t, "Feed deleted successfully", deleted.Message)
	assert.True(t, deleted.Success)

	// Soft deleted feeds hide from the default listing
	var listed []models.Feed
	resp = ts.request(t, "GET", "/api/feeds", nil)
	decode(t, resp, &listed)
	assert.Empty(t, listed)

	resp = ts.request(t, "GET", "/api/feeds?include_inactive=true", nil)
	decode(t, resp, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, models.FeedInactive, listed[0].Status)

	resp = ts.request(t, "POST", target+"/restore", nil)
	require.Equal(t, 200, resp.StatusCode)

	resp = ts.request(t, "GET", target, nil)
	var restored models.Feed
	decode(t, resp, &restored)
	assert.Equal(t, models.FeedActive, restored.Status)

	resp = ts.request(t, "DELETE", target+"/permanent", nil)
	require.Equal(t, 200, resp.StatusCode)

	resp = ts.request(t, "GET", target, nil)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestCreateFeedValidation(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.request(t, "POST", "/api/feeds", map[string]string{"url": "   "})
	assert.Equal(t, 400, resp.StatusCode)
	var missing errorResponse
	decode(t, resp, &missing)
	assert.Equal(t, "Feed url is required", missing.Error)

	dead := newFeedServer(t)
	dead.Close()

	resp = ts.request(t, "POST", "/api/feeds", map[string]string{"url": dead.URL})
	assert.Equal(t, 400, resp.StatusCode)
	var unreachable errorResponse
	decode(t, resp, &unreachable)
	assert.Contains(t, unreachable.Error, "Could not fetch feed")
}

func TestUpdateAllFeeds(t *testing.T) {
	ts := newTestServer(t, "")
	feedServer := newFeedServer(t)

	resp := ts.request(t, "POST", "/api/feeds", map[string]string{"url": feedServer.URL})
	require.Equal(t, 201, resp.StatusCode)
	var feed models.Feed
	decode(t, resp, &feed)

	resp = ts.request(t, "POST", "/api/feeds/update-all", nil)
	require.Equal(t, 200, resp.StatusCode)

	var result bulkResponse
	decode(t, resp, &result)
	assert.Equal(t, "Feed update completed: 2 new articles", result.Message)
	assert.Equal(t, 1, result.TotalItems)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Zero(t, result.ErrorCount)
	assert.Empty(t, result.Errors)

	// The second run sees only known urls
	resp = ts.request(t, "POST", "/api/feeds/update-all", nil)
	decode(t, resp, &result)
	assert.Equal(t, "Feed update completed: 0 new articles", result.Message)

	resp = ts.request(t, "GET", fmt.Sprintf("/api/feeds/%d/stats", feed.Id), nil)
	require.Equal(t, 200, resp.StatusCode)
	var stats models.FeedStatistics
	decode(t, resp, &stats)
	assert.Equal(t, int64(2), stats.TotalArticles)
	assert.Zero(t, stats.ArticlesWithContent)
}

func TestUpdateAllReportsFeedErrors(t *testing.T) {
	ts := newTestServer(t, "")

	dead := newFeedServer(t)
	dead.Close()
	ts.seedFeed(t, dead.URL)

	resp := ts.request(t, "POST", "/api/feeds/update-all", nil)
	require.Equal(t, 200, resp.StatusCode)

	var result bulkResponse
	decode(t, resp, &result)
	assert.Equal(t, 1, result.TotalItems)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Failed to update feed")
}

func TestListArticlesValidation(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.request(t, "GET", "/api/articles?status=bogus", nil)
	assert.Equal(t, 400, resp.StatusCode)
	var invalidStatus errorResponse
	decode(t, resp, &invalidStatus)
	assert.Equal(t, "Invalid status", invalidStatus.Error)

	resp = ts.request(t, "GET", "/api/articles?feed_id=abc", nil)
	assert.Equal(t, 400, resp.StatusCode)
	var invalidFeed errorResponse
	decode(t, resp, &invalidFeed)
	assert.Equal(t, "Invalid feed_id", invalidFeed.Error)
}

func TestArticleEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	feed := ts.seedFeed(t, "https://example.com/rss")
	now := time.Now().UTC()
	article := ts.seedArticle(t, models.Article{
		FeedId:      feed.Id,
		Url:         "https://example.com/recent",
		Title:       "Recent story",
		PublishedAt: now.Add(-time.Hour),
	})
	ts.seedArticle(t, models.Article{
		FeedId:      feed.Id,
		Url:         "https://example.com/old",
		Title:       "Old story",
		PublishedAt: now.Add(-72 * time.Hour),
	})

	var page models.ArticlePage
	resp := ts.request(t, "GET", "/api/articles", nil)
	require.Equal(t, 200, resp.StatusCode)
	decode(t, resp, &page)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 50, page.Limit)

	resp = ts.request(t, "GET", fmt.Sprintf("/api/articles?feed_id=%d&limit=1", feed.Id), nil)
	decode(t, resp, &page)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Articles, 1)
	assert.True(t, page.HasMore)

	resp = ts.request(t, "GET", fmt.Sprintf("/api/articles/%d", article.Id), nil)
	require.Equal(t, 200, resp.StatusCode)
	var stored models.Article
	decode(t, resp, &stored)
	assert.Equal(t, "Recent story", stored.Title)

	resp = ts.request(t, "GET", "/api/articles/4242", nil)
	assert.Equal(t, 404, resp.StatusCode)
	var missing errorResponse
	decode(t, resp, &missing)
	assert.Equal(t, "Article not found", missing.Error)

	var recent struct {
		Articles        []models.Article `json:"articles"`
		Count           int              `json:"count"`
		Hours           int              `json:"hours"`
		ActiveFeedsOnly bool             `json:"activeFeedsOnly"`
	}
	resp = ts.request(t, "GET", "/api/articles/recent", nil)
	require.Equal(t, 200, resp.StatusCode)
	decode(t, resp, &recent)
	assert.Equal(t, 1, recent.Count)
	assert.Equal(t, 24, recent.Hours)
	assert.True(t, recent.ActiveFeedsOnly)
	require.Len(t, recent.Articles, 1)
	assert.Equal(t, "https://example.com/recent", recent.Articles[0].Url)

	resp = ts.request(t, "GET", "/api/articles/recent?hours=96", nil)
	decode(t, resp, &recent)
	assert.Equal(t, 2, recent.Count)
	assert.Equal(t, 96, recent.Hours)
}

func TestArticlesPerTimeEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	feed := ts.seedFeed(t, "https://example.com/rss")
	ts.seedArticle(t, models.Article{
		FeedId:      feed.Id,
		Url:         "https://example.com/1",
		PublishedAt: time.Date(2026, 3, 5, 14, 10, 0, 0, time.UTC),
	})

	resp := ts.request(t, "GET", "/api/articles/stats/per-time?time=day", nil)
	require.Equal(t, 200, resp.StatusCode)

	var counts []models.ArticlesAggregatedByTime
	decode(t, resp, &counts)
	require.Len(t, counts, 1)
	assert.Equal(t, int64(1), counts[0].Count)

	resp = ts.request(t, "GET", "/api/articles/stats/per-time?time=century", nil)
	assert.Equal(t, 400, resp.StatusCode)
	var invalid errorResponse
	decode(t, resp, &invalid)
	assert.Equal(t, "Invalid time", invalid.Error)
}

func TestScrapeArticle(t *testing.T) {
	ts := newTestServer(t, "")
	pageServer := newArticleServer(t)

	feed := ts.seedFeed(t, "https://example.com/rss")
	article := ts.seedArticle(t, models.Article{
		FeedId: feed.Id,
		Url:    pageServer.URL,
		Title:  "Scrapable",
	})

	resp := ts.request(t, "POST", fmt.Sprintf("/api/articles/%d/scrape", article.Id), nil)
	require.Equal(t, 200, resp.StatusCode)

	var scraped models.Article
	decode(t, resp, &scraped)
	assert.Equal(t, models.ArticleScraped, scraped.Status)
	require.NotNil(t, scraped.Content)
	assert.Contains(t, *scraped.Content, "committee met")
}

func TestScrapeArticleFailure(t *testing.T) {
	ts := newTestServer(t, "")

	dead := newArticleServer(t)
	dead.Close()

	feed := ts.seedFeed(t, "https://example.com/rss")
	article := ts.seedArticle(t, models.Article{
		FeedId: feed.Id,
		Url:    dead.URL,
		Title:  "Unreachable",
	})

	resp := ts.request(t, "POST", fmt.Sprintf("/api/articles/%d/scrape", article.Id), nil)
	assert.Equal(t, 502, resp.StatusCode)
	var failed errorResponse
	decode(t, resp, &failed)
	assert.Equal(t, "Failed to scrape article content", failed.Error)

	// The failure is recorded on the article
	resp = ts.request(t, "GET", fmt.Sprintf("/api/articles/%d", article.Id), nil)
	var stored models.Article
	decode(t, resp, &stored)
	assert.Equal(t, models.ArticleFailed, stored.Status)
}

func TestBulkScrape(t *testing.T) {
	ts := newTestServer(t, "")
	pageServer := newArticleServer(t)
	dead := newArticleServer(t)
	dead.Close()

	feed := ts.seedFeed(t, "https://example.com/rss")
	good := ts.seedArticle(t, models.Article{
		FeedId: feed.Id,
		Url:    pageServer.URL,
		Title:  "Scrapable",
	})
	ts.seedArticle(t, models.Article{
		FeedId: feed.Id,
		Url:    dead.URL,
		Title:  "Unreachable",
	})

	resp := ts.request(t, "POST", "/api/articles/bulk-scrape", nil)
	require.Equal(t, 200, resp.StatusCode)

	var result bulkResponse
	decode(t, resp, &result)
	assert.Equal(t, "Bulk scraping completed: 1 successful, 1 failed", result.Message)
	assert.Equal(t, 2, result.TotalItems)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Unreachable")

	resp = ts.request(t, "GET", fmt.Sprintf("/api/articles/%d", good.Id), nil)
	var stored models.Article
	decode(t, resp, &stored)
	assert.Equal(t, models.ArticleScraped, stored.Status)

	// Failed articles left the pending pool, a second run has nothing to do
	resp = ts.request(t, "POST", "/api/articles/bulk-scrape", nil)
	decode(t, resp, &result)
	assert.Zero(t, result.TotalItems)
}

func TestSummarizeRequiresKey(t *testing.T) {
	ts := newTestServer(t, "")

	feed := ts.seedFeed(t, "https://example.com/rss")
	article := ts.seedArticle(t, models.Article{
		FeedId:      feed.Id,
		Url:         "https://example.com/story",
		Description: "Something happened",
	})

	targets := []string{
		fmt.Sprintf("/api/articles/%d/summarize", article.Id),
		"/api/articles/bulk-summarize",
		"/api/digest/generate",
	}
	for _, target := range targets {
		resp := ts.request(t, "POST", target, nil)
		assert.Equal(t, 400, resp.StatusCode)

		var unavailable errorResponse
		decode(t, resp, &unavailable)
		assert.Equal(t, "AI summarization not available", unavailable.Error)
	}
}

func TestSummarizeArticle(t *testing.T) {
	completions := newCompletionServer(t, "A short AI summary.")
	ts := newTestServer(t, completions.URL+"/v1")
	require.NoError(t, ts.store.SetKey("sk-test"))

	feed := ts.seedFeed(t, "https://example.com/rss")
	article := ts.seedArticle(t, models.Article{
		FeedId:      feed.Id,
		Url:         "https://example.com/story",
		Title:       "Budget passed",
		Description: "The council voted.",
	})

	target := fmt.Sprintf("/api/articles/%d/summarize", article.Id)

	resp := ts.request(t, "POST", target, nil)
	require.Equal(t, 200, resp.StatusCode)

	var summarized models.Article
	decode(t, resp, &summarized)
	assert.Equal(t, models.ArticleSummarized, summarized.Status)
	require.NotNil(t, summarized.Summary)
	assert.Equal(t, "A short AI summary.", *summarized.Summary)

	// A second call returns the stored summary untouched
	resp = ts.request(t, "POST", target, nil)
	require.Equal(t, 200, resp.StatusCode)
	decode(t, resp, &summarized)
	assert.Equal(t, "A short AI summary.", *summarized.Summary)
}

func TestSummarizeArticleWithoutText(t *testing.T) {
	completions := newCompletionServer(t, "unused")
	ts := newTestServer(t, completions.URL+"/v1")
	require.NoError(t, ts.store.SetKey("sk-test"))

	feed := ts.seedFeed(t, "https://example.com/rss")
	article := ts.seedArticle(t, models.Article{
		FeedId: feed.Id,
		Url:    "https://example.com/bare",
	})

	resp := ts.request(t, "POST", fmt.Sprintf("/api/articles/%d/summarize", article.Id), nil)
	assert.Equal(t, 400, resp.StatusCode)

	var empty errorResponse
	decode(t, resp, &empty)
	assert.Equal(t, "Article has no content to summarize", empty.Error)
}

func TestBulkSummarize(t *testing.T) {
	completions := newCompletionServer(t, "A short AI summary.")
	ts := newTestServer(t, completions.URL+"/v1")
	require.NoError(t, ts.store.SetKey("sk-test"))

	ctx := context.Background()
	feed := ts.seedFeed(t, "https://example.com/rss")

	first := ts.seedArticle(t, models.Article{
		FeedId: feed.Id,
		Url:    "https://example.com/1",
		Title:  "First",
	})
	require.NoError(t, ts.database.SetArticleContent(ctx, first.Id, "Scraped page text"))

	second := ts.seedArticle(t, models.Article{
		FeedId: feed.Id,
		Url:    "https://example.com/2",
		Title:  "Second",
	})
	require.NoError(t, ts.database.SetArticleContent(ctx, second.Id, "More scraped text"))

	// Still pending, never picked up by the bulk path
	ts.seedArticle(t, models.Article{
		FeedId: feed.Id,
		Url:    "https://example.com/3",
		Title:  "Pending",
	})

	resp := ts.request(t, "POST", "/api/articles/bulk-summarize", nil)
	require.Equal(t, 200, resp.StatusCode)

	var result bulkResponse
	decode(t, resp, &result)
	assert.Equal(t, "Bulk summarization completed: 2 successful, 0 failed", result.Message)
	assert.Equal(t, 2, result.TotalItems)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Zero(t, result.ErrorCount)

	resp = ts.request(t, "GET", fmt.Sprintf("/api/articles/%d", first.Id), nil)
	var stored models.Article
	decode(t, resp, &stored)
	assert.Equal(t, models.ArticleSummarized, stored.Status)
	require.NotNil(t, stored.Summary)
	assert.Equal(t, "A short AI summary.", *stored.Summary)
}

func TestAIStatusAndConfigure(t *testing.T) {
	ts := newTestServer(t, "")

	var status struct {
		Available       bool                 `json:"available"`
		CurrentModel    string               `json:"currentModel"`
		AvailableModels []models.AIModelInfo `json:"availableModels"`
	}
	resp := ts.request(t, "GET", "/api/ai/status", nil)
	require.Equal(t, 200, resp.StatusCode)
	decode(t, resp, &status)
	assert.False(t, status.Available)
	assert.Equal(t, "gpt-4o-mini", status.CurrentModel)
	assert.Len(t, status.AvailableModels, 5)

	resp = ts.request(t, "POST", "/api/ai/configure", map[string]string{"apiKey": "sk-test", "model": "gpt-99"})
	assert.Equal(t, 400, resp.StatusCode)
	var badModel errorResponse
	decode(t, resp, &badModel)
	assert.Equal(t, "Invalid model", badModel.Error)

	resp = ts.request(t, "POST", "/api/ai/configure", map[string]string{"apiKey": "  "})
	assert.Equal(t, 400, resp.StatusCode)
	var badKey errorResponse
	decode(t, resp, &badKey)
	assert.Equal(t, "Invalid API key", badKey.Error)

	resp = ts.request(t, "POST", "/api/ai/configure", map[string]string{"apiKey": "sk-test", "model": "gpt-4o"})
	require.Equal(t, 200, resp.StatusCode)
	var ok messageResponse
	decode(t, resp, &ok)
	assert.Equal(t, "AI configuration updated successfully", ok.Message)
	assert.True(t, ok.Success)

	resp = ts.request(t, "GET", "/api/ai/status", nil)
	decode(t, resp, &status)
	assert.True(t, status.Available)
	assert.Equal(t, "gpt-4o", status.CurrentModel)
}

func TestDigestEndpoints(t *testing.T) {
	completions := newCompletionServer(t, "Today the council passed the budget.")
	ts := newTestServer(t, completions.URL+"/v1")

	resp := ts.request(t, "GET", "/api/digest/latest", nil)
	assert.Equal(t, 404, resp.StatusCode)
	var none errorResponse
	decode(t, resp, &none)
	assert.Equal(t, "No digest generated yet", none.Error)

	require.NoError(t, ts.store.SetKey("sk-test"))

	feed := ts.seedFeed(t, "https://example.com/rss")
	ts.seedArticle(t, models.Article{
		FeedId:      feed.Id,
		Url:         "https://example.com/story",
		Title:       "Budget passed",
		Description: "The council voted.",
		PublishedAt: time.Now().UTC().Add(-time.Hour),
	})

	resp = ts.request(t, "POST", "/api/digest/generate", nil)
	require.Equal(t, 200, resp.StatusCode)

	var generated models.DailySummary
	decode(t, resp, &generated)
	assert.Equal(t, "Today the council passed the budget.", generated.Summary)
	assert.Equal(t, 1, generated.ArticleCount)
	assert.Equal(t, 1, generated.SourceCount)
	assert.Equal(t, 24, generated.TimeRangeHours)

	resp = ts.request(t, "GET", "/api/digest/latest", nil)
	require.Equal(t, 200, resp.StatusCode)
	var latest models.DailySummary
	decode(t, resp, &latest)
	assert.Equal(t, generated.Id, latest.Id)
	assert.Equal(t, generated.Summary, latest.Summary)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.request(t, "GET", "/metrics", nil)
	assert.Equal(t, 200, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
