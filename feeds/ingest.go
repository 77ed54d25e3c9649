package feeds

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/thinhngo-x/news-agg/db"
	"github.com/thinhngo-x/news-agg/models"
)

// Pipeline moves entries from fetched feed documents into the store:
// fetch, parse, deduplicate against stored articles, insert what is new.
type Pipeline struct {
	db       *db.DB
	fetcher  *Fetcher
	detector *Detector // nil disables language detection
}

// NewPipeline wires the ingestion pipeline
func NewPipeline(database *db.DB, fetcher *Fetcher, detector *Detector) *Pipeline {
	return &Pipeline{
		db:       database,
		fetcher:  fetcher,
		detector: detector,
	}
}

// Ingest inserts every entry whose url is not stored yet and returns how
// many articles that created. The url is the dedup key, duplicates are
// skipped silently. Entries without a link are dropped, not an error.
func (p *Pipeline) Ingest(ctx context.Context, feedId int64, entries []models.Entry) (int, error) {
	created := 0
	for _, entry := range entries {
		if entry.Link == "" {
			continue
		}

		article := models.Article{
			FeedId:      feedId,
			Url:         entry.Link,
			Title:       entry.Title,
			Description: entry.Description,
			Status:      models.ArticlePending,
			PublishedAt: entry.PublishedAt,
		}

		if p.detector != nil {
			if code := p.detector.Detect(entry.Title + " " + entry.Description); code != "" {
				article.Language = &code
			}
		}

		inserted, err := p.db.InsertArticle(ctx, article)
		if err != nil {
			return created, fmt.Errorf("ingest %s: %w", entry.Link, err)
		}
		if inserted {
			created++
			articlesIngested.Inc()
		} else {
			entriesSkipped.Inc()
		}
	}

	return created, nil
}

// Refresh fetches one feed and ingests its entries. A successful run
// clears the feed's error state, a failed fetch records it.
func (p *Pipeline) Refresh(ctx context.Context, feed models.Feed) (int, error) {
	doc, err := p.fetcher.Fetch(ctx, feed.Url)
	if err != nil {
		feedFetchErrors.Inc()
		if markErr := p.db.MarkFeedError(ctx, feed.Id, err.Error()); markErr != nil {
			log.WithFields(log.Fields{
				"feed":  feed.Url,
				"error": markErr,
			}).Warn("Could not record feed error")
		}
		return 0, err
	}
	feedsFetched.Inc()

	created, err := p.Ingest(ctx, feed.Id, doc.Entries)
	if err != nil {
		return created, err
	}

	// Feeds added by bare url get their display metadata from the document
	if feed.Title == "" && doc.Title != "" {
		update := db.FeedUpdate{Title: &doc.Title}
		if feed.Description == "" && doc.Description != "" {
			update.Description = &doc.Description
		}
		if _, err := p.db.UpdateFeed(ctx, feed.Id, update); err != nil {
			log.WithFields(log.Fields{
				"feed":  feed.Url,
				"error": err,
			}).Warn("Could not backfill feed metadata")
		}
	}

	if err := p.db.MarkFeedFetched(ctx, feed.Id, time.Now().UTC()); err != nil {
		log.WithFields(log.Fields{
			"feed":  feed.Url,
			"error": err,
		}).Warn("Could not record feed fetch time")
	}

	log.WithFields(log.Fields{
		"feed":    feed.Url,
		"entries": len(doc.Entries),
		"created": created,
	}).Info("Feed refreshed")

	return created, nil
}

// RefreshAll fetches every feed in rotation, one after the other. Each
// feed is fetched and ingested independently: failures are collected in
// the result, never propagated as a single aborting error.
func (p *Pipeline) RefreshAll(ctx context.Context) (models.RefreshResult, error) {
	rotation, err := p.db.ActiveFeeds(ctx)
	if err != nil {
		return models.RefreshResult{}, err
	}

	result := models.RefreshResult{
		TotalFeeds: len(rotation),
		Errors:     []models.FeedRefreshError{},
	}

	for _, feed := range rotation {
		created, err := p.Refresh(ctx, feed)
		result.NewArticles += created
		if err != nil {
			log.WithFields(log.Fields{
				"feed":  feed.Url,
				"error": err,
			}).Error("Feed refresh failed")

			result.Errors = append(result.Errors, models.FeedRefreshError{
				FeedId: feed.Id,
				Url:    feed.Url,
				Error:  err.Error(),
			})
		}
	}

	log.WithFields(log.Fields{
		"feeds":       result.TotalFeeds,
		"newArticles": result.NewArticles,
		"errors":      len(result.Errors),
	}).Info("Refreshed all feeds")

	return result, nil
}
