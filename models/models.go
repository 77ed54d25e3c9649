package models

import "time"

// FeedStatus is the lifecycle state of a configured feed
type FeedStatus string

const (
	FeedActive   FeedStatus = "active"
	FeedInactive FeedStatus = "inactive"
	FeedError    FeedStatus = "error"
	FeedPaused   FeedStatus = "paused"
)

// ValidFeedStatus reports whether s is one of the known feed states
func ValidFeedStatus(s FeedStatus) bool {
	switch s {
	case FeedActive, FeedInactive, FeedError, FeedPaused:
		return true
	}
	return false
}

// ArticleStatus tracks how far an article has moved through the pipeline
type ArticleStatus string

const (
	ArticlePending    ArticleStatus = "pending"
	ArticleScraped    ArticleStatus = "scraped"
	ArticleSummarized ArticleStatus = "summarized"
	ArticleFailed     ArticleStatus = "error"
)

// ValidArticleStatus reports whether s is one of the known article states
func ValidArticleStatus(s ArticleStatus) bool {
	switch s {
	case ArticlePending, ArticleScraped, ArticleSummarized, ArticleFailed:
		return true
	}
	return false
}

// Feed is a configured RSS/Atom source
type Feed struct {
	Id             int64      `json:"id"`
	Url            string     `json:"url"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         FeedStatus `json:"status"`
	FetchInterval  int        `json:"fetchInterval"`
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
	LastFetchError *string    `json:"lastFetchError,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Article is a persisted feed entry, optionally enriched with scraped
// text and an AI summary
type Article struct {
	Id          int64         `json:"id"`
	FeedId      int64         `json:"feedId"`
	Url         string        `json:"url"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Language    *string       `json:"language,omitempty"`
	Content     *string       `json:"content,omitempty"`
	Summary     *string       `json:"summary,omitempty"`
	Status      ArticleStatus `json:"status"`
	PublishedAt time.Time     `json:"publishedAt"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Entry is a single item parsed from a feed document, prior to persistence
type Entry struct {
	Title       string
	Link        string
	Guid        string
	Description string
	PublishedAt time.Time
}

// DailySummary is a generated front page digest over recent articles
type DailySummary struct {
	Id              int64     `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	ArticleCount    int       `json:"articleCount"`
	SourceCount     int       `json:"sourceCount"`
	TimeRangeHours  int       `json:"timeRangeHours"`
	ActiveFeedsOnly bool      `json:"activeFeedsOnly"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// FeedStatistics aggregates per feed article counts and completion rates
type FeedStatistics struct {
	FeedId              int64      `json:"feedId"`
	TotalArticles       int64      `json:"totalArticles"`
	ArticlesWithContent int64      `json:"articlesWithContent"`
	ArticlesWithSummary int64      `json:"articlesWithSummary"`
	LatestArticle       *time.Time `json:"latestArticle,omitempty"`
	LastUpdated         *time.Time `json:"lastUpdated,omitempty"`
	ErrorCount          int64      `json:"errorCount"`
	ScrapedRate         float64    `json:"scrapedRate"`
	SummarizedRate      float64    `json:"summarizedRate"`
}

// FeedRefreshError records a single feed failure during a refresh-all run
type FeedRefreshError struct {
	FeedId int64  `json:"feedId"`
	Url    string `json:"url"`
	Error  string `json:"error"`
}

// RefreshResult is the outcome of refreshing every active feed. Failures
// are collected per feed, never propagated as a single aborting error.
type RefreshResult struct {
	TotalFeeds  int                `json:"totalFeeds"`
	NewArticles int                `json:"newArticles"`
	Errors      []FeedRefreshError `json:"errors"`
}

// ArticlePage is one page of a filtered article listing
type ArticlePage struct {
	Articles []Article `json:"articles"`
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
	HasMore  bool      `json:"hasMore"`
}

// ArticlesAggregatedByTime is one bucket of the articles-per-time statistic
type ArticlesAggregatedByTime struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}
