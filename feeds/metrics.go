package feeds

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagg_feeds_fetched_total",
		Help: "The total number of feed documents fetched and parsed successfully",
	})

	feedFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagg_feed_fetch_errors_total",
		Help: "The total number of feed fetches that failed",
	})

	articlesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagg_articles_ingested_total",
		Help: "The total number of new articles created by the ingestion pipeline",
	})

	entriesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsagg_entries_skipped_total",
		Help: "The total number of entries skipped as duplicates during ingestion",
	})
)
