package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/thinhngo-x/news-agg/models"
)

// ArticleCountPerTime returns the number of articles published per hour,
// day or week, optionally restricted to one detected language
func (db *DB) ArticleCountPerTime(ctx context.Context, lang string, timeAgg string) ([]models.ArticlesAggregatedByTime, error) {
	var sqlFormat string
	var timeParse func(string) (time.Time, error)

	switch timeAgg {
	case "day":
		sqlFormat = `STRFTIME('%Y-%m-%d', published_at, 'unixepoch')`
		timeParse = func(str string) (time.Time, error) {
			return time.Parse("2006-01-02", str)
		}
	case "week":
		sqlFormat = `STRFTIME('%Y-%W', published_at, 'unixepoch')`
		timeParse = func(str string) (time.Time, error) {
			// Manually parse year and week number as separate integers
			year, err := time.Parse("2006", str[:4])
			if err != nil {
				return time.Time{}, err
			}
			week, err := strconv.ParseInt(str[5:], 10, 64)
			if err != nil {
				return time.Time{}, err
			}

			_, weekOffset := year.ISOWeek()
			weekOffset = weekOffset - 1
			firstDay := year.AddDate(0, 0, -int(year.Weekday())+weekOffset*7)

			// Add the number of weeks to the first day of the week
			return firstDay.AddDate(0, 0, int(week)*7), nil
		}
	default:
		sqlFormat = `STRFTIME('%Y-%m-%d-%H', published_at, 'unixepoch')`
		timeParse = func(str string) (time.Time, error) {
			return time.Parse("2006-01-02-15", str)
		}
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(sqlFormat, "count(*) as count").From("articles")
	if lang != "" {
		sb.Where(sb.Equal("language", lang))
	}
	sb.GroupBy(sqlFormat)
	sb.OrderBy("published_at").Asc()

	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var counts []models.ArticlesAggregatedByTime
	for rows.Next() {
		var sqlTime string
		var bucket models.ArticlesAggregatedByTime

		if err := rows.Scan(&sqlTime, &bucket.Count); err != nil {
			continue // Skip this row
		}

		if parsed, err := timeParse(sqlTime); err == nil {
			bucket.Time = parsed
		}
		counts = append(counts, bucket)
	}

	return counts, rows.Err()
}
