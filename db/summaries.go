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

var summaryColumns = []string{
	"id", "title", "summary", "article_count", "source_count",
	"time_range_hours", "active_feeds_only", "generated_at",
}

func scanDailySummary(row scanner) (models.DailySummary, error) {
	var summary models.DailySummary
	var activeOnly int
	var generatedAt int64

	err := row.Scan(
		&summary.Id,
		&summary.Title,
		&summary.Summary,
		&summary.ArticleCount,
		&summary.SourceCount,
		&summary.TimeRangeHours,
		&activeOnly,
		&generatedAt,
	)
	if err != nil {
		return models.DailySummary{}, err
	}

	summary.ActiveFeedsOnly = activeOnly != 0
	summary.GeneratedAt = unixTime(generatedAt)
	return summary, nil
}

// InsertDailySummary persists a generated front page digest
func (db *DB) InsertDailySummary(ctx context.Context, summary models.DailySummary) (models.DailySummary, error) {
	log.WithFields(log.Fields{
		"articles": summary.ArticleCount,
		"sources":  summary.SourceCount,
	}).Info("Storing daily summary")

	if summary.GeneratedAt.IsZero() {
		summary.GeneratedAt = time.Now().UTC().Truncate(time.Second)
	}

	insertSummary := sqlbuilder.NewInsertBuilder()
	insertSummary.InsertInto("daily_summaries").
		Cols("title", "summary", "article_count", "source_count", "time_range_hours", "active_feeds_only", "generated_at").
		Values(
			summary.Title,
			summary.Summary,
			summary.ArticleCount,
			summary.SourceCount,
			summary.TimeRangeHours,
			boolToInt(summary.ActiveFeedsOnly),
			summary.GeneratedAt.Unix(),
		)
	query, args := insertSummary.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("insert error: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("insert error: %w", err)
	}
	summary.Id = id

	return summary, nil
}

// LatestDailySummary returns the most recently generated digest
func (db *DB) LatestDailySummary(ctx context.Context) (models.DailySummary, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(summaryColumns...).From("daily_summaries")
	sb.OrderBy("generated_at", "id").Desc()
	sb.Limit(1)
	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	summary, err := scanDailySummary(db.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return models.DailySummary{}, ErrNotFound
	}
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("query error: %w", err)
	}
	return summary, nil
}

// PruneDailySummaries deletes digests generated before the cutoff and
// returns how many rows went away
func (db *DB) PruneDailySummaries(ctx context.Context, olderThan time.Time) (int64, error) {
	deleteSummaries := sqlbuilder.NewDeleteBuilder()
	deleteSummaries.DeleteFrom("daily_summaries")
	deleteSummaries.Where(deleteSummaries.LessThan("generated_at", olderThan.Unix()))
	query, args := deleteSummaries.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	log.WithFields(log.Fields{
		"cutoff": olderThan.Format(time.RFC3339),
	}).Info("Pruning old daily summaries")

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}

	return res.RowsAffected()
}
