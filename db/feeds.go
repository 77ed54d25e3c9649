package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
	"github.com/thinhngo-x/news-agg/models"
)

var feedColumns = []string{
	"feeds.id", "feeds.url", "feeds.title", "feeds.description", "feeds.status",
	"feeds.fetch_interval", "feeds.last_updated", "feeds.last_fetch_error", "feeds.created_at",
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row scanner) (models.Feed, error) {
	var feed models.Feed
	var status string
	var lastUpdated sql.NullInt64
	var lastFetchError sql.NullString
	var createdAt int64

	err := row.Scan(
		&feed.Id,
		&feed.Url,
		&feed.Title,
		&feed.Description,
		&status,
		&feed.FetchInterval,
		&lastUpdated,
		&lastFetchError,
		&createdAt,
	)
	if err != nil {
		return models.Feed{}, err
	}

	feed.Status = models.FeedStatus(status)
	feed.LastUpdated = nullableTime(lastUpdated)
	feed.LastFetchError = nullableString(lastFetchError)
	feed.CreatedAt = unixTime(createdAt)
	return feed, nil
}

// CreateFeed inserts a new feed. The url carries a unique constraint, a
// second feed with the same url fails the insert.
func (db *DB) CreateFeed(ctx context.Context, feed models.Feed) (models.Feed, error) {
	log.WithFields(log.Fields{
		"url":   feed.Url,
		"title": feed.Title,
	}).Info("Creating feed")

	if feed.Status == "" {
		feed.Status = models.FeedActive
	}
	if feed.FetchInterval <= 0 {
		feed.FetchInterval = 3600
	}
	feed.CreatedAt = time.Now().UTC().Truncate(time.Second)

	insertFeed := sqlbuilder.NewInsertBuilder()
	insertFeed.InsertInto("feeds").
		Cols("url", "title", "description", "status", "fetch_interval", "created_at").
		Values(feed.Url, feed.Title, feed.Description, string(feed.Status), feed.FetchInterval, feed.CreatedAt.Unix())
	query, args := insertFeed.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Feed{}, fmt.Errorf("insert error: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Feed{}, fmt.Errorf("insert error: %w", err)
	}
	feed.Id = id

	return feed, nil
}

// GetFeed looks up a feed by id
func (db *DB) GetFeed(ctx context.Context, id int64) (models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds").Where(sb.Equal("id", id))
	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	feed, err := scanFeed(db.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return models.Feed{}, ErrNotFound
	}
	if err != nil {
		return models.Feed{}, fmt.Errorf("query error: %w", err)
	}
	return feed, nil
}

// GetFeedByUrl looks up a feed by its source url
func (db *DB) GetFeedByUrl(ctx context.Context, url string) (models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds").Where(sb.Equal("url", url))
	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	feed, err := scanFeed(db.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return models.Feed{}, ErrNotFound
	}
	if err != nil {
		return models.Feed{}, fmt.Errorf("query error: %w", err)
	}
	return feed, nil
}

// ListFeeds returns all feeds, skipping soft deleted ones unless asked
func (db *DB) ListFeeds(ctx context.Context, includeInactive bool) ([]models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds")
	if !includeInactive {
		sb.Where(sb.NotEqual("status", string(models.FeedInactive)))
	}
	sb.OrderBy("feeds.id").Asc()

	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

// ActiveFeeds returns the feeds a refresh run should fetch
func (db *DB) ActiveFeeds(ctx context.Context) ([]models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds")
	// Feeds in the error state stay in rotation so they can recover
	sb.Where(sb.In("status", string(models.FeedActive), string(models.FeedError)))
	sb.OrderBy("feeds.id").Asc()

	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

// FeedUpdate carries the mutable feed fields; nil fields are left unchanged
type FeedUpdate struct {
	Title         *string
	Description   *string
	Status        *models.FeedStatus
	FetchInterval *int
}

// UpdateFeed applies a partial update and returns the updated feed
func (db *DB) UpdateFeed(ctx context.Context, id int64, update FeedUpdate) (models.Feed, error) {
	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update("feeds")

	var assignments []string
	if update.Title != nil {
		assignments = append(assignments, ub.Assign("title", *update.Title))
	}
	if update.Description != nil {
		assignments = append(assignments, ub.Assign("description", *update.Description))
	}
	if update.Status != nil {
		assignments = append(assignments, ub.Assign("status", string(*update.Status)))
	}
	if update.FetchInterval != nil {
		assignments = append(assignments, ub.Assign("fetch_interval", *update.FetchInterval))
	}

	if len(assignments) == 0 {
		return db.GetFeed(ctx, id)
	}

	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))
	query, args := ub.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.Feed{}, fmt.Errorf("update error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return models.Feed{}, ErrNotFound
	}

	return db.GetFeed(ctx, id)
}

// MarkFeedFetched records a successful fetch: the feed goes back to active
// and the previous fetch error, if any, is cleared
func (db *DB) MarkFeedFetched(ctx context.Context, id int64, at time.Time) error {
	_, err := db.db.ExecContext(ctx,
		"UPDATE feeds SET status = ?, last_updated = ?, last_fetch_error = NULL WHERE id = ?",
		string(models.FeedActive), at.Unix(), id)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	return nil
}

// MarkFeedError records a failed fetch without touching last_updated
func (db *DB) MarkFeedError(ctx context.Context, id int64, message string) error {
	_, err := db.db.ExecContext(ctx,
		"UPDATE feeds SET status = ?, last_fetch_error = ? WHERE id = ?",
		string(models.FeedError), message, id)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	return nil
}

// SoftDeleteFeed marks the feed inactive, keeping its articles around
func (db *DB) SoftDeleteFeed(ctx context.Context, id int64) error {
	res, err := db.db.ExecContext(ctx,
		"UPDATE feeds SET status = ? WHERE id = ?",
		string(models.FeedInactive), id)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreFeed reactivates a soft deleted feed
func (db *DB) RestoreFeed(ctx context.Context, id int64) error {
	res, err := db.db.ExecContext(ctx,
		"UPDATE feeds SET status = ?, last_fetch_error = NULL WHERE id = ?",
		string(models.FeedActive), id)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFeedPermanent removes the feed row; articles go with it through
// the foreign key cascade
func (db *DB) DeleteFeedPermanent(ctx context.Context, id int64) error {
	log.WithFields(log.Fields{
		"id": id,
	}).Info("Permanently deleting feed")

	res, err := db.db.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FeedStatistics aggregates article counts and completion rates for a feed
func (db *DB) FeedStatistics(ctx context.Context, id int64) (models.FeedStatistics, error) {
	feed, err := db.GetFeed(ctx, id)
	if err != nil {
		return models.FeedStatistics{}, err
	}

	stats := models.FeedStatistics{
		FeedId:      feed.Id,
		LastUpdated: feed.LastUpdated,
	}

	var latest sql.NullInt64
	err = db.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(content),
			COUNT(summary),
			COUNT(CASE WHEN status = ? THEN 1 END),
			MAX(published_at)
		FROM articles
		WHERE feed_id = ?`,
		string(models.ArticleFailed), id).Scan(
		&stats.TotalArticles,
		&stats.ArticlesWithContent,
		&stats.ArticlesWithSummary,
		&stats.ErrorCount,
		&latest,
	)
	if err != nil {
		return models.FeedStatistics{}, fmt.Errorf("query error: %w", err)
	}

	stats.LatestArticle = nullableTime(latest)
	if stats.TotalArticles > 0 {
		stats.ScrapedRate = float64(stats.ArticlesWithContent) / float64(stats.TotalArticles) * 100
		stats.SummarizedRate = float64(stats.ArticlesWithSummary) / float64(stats.TotalArticles) * 100
	}

	return stats, nil
}
