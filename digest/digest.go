package digest

import (
	"context"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/thinhngo-x/news-agg/db"
	"github.com/thinhngo-x/news-agg/models"
	"github.com/thinhngo-x/news-agg/summarizer"
)

const digestTitle = "Daily News Summary"

// emptyDigest is stored when the window holds no articles, so the front
// page still shows when a digest was last attempted
const emptyDigest = "No articles available for the requested time period."

// Service builds the front page: one AI digest over recent articles.
// Every generated digest is persisted, the latest one is what the UI shows.
type Service struct {
	db         *db.DB
	summarizer *summarizer.Summarizer
}

func New(database *db.DB, s *summarizer.Summarizer) *Service {
	return &Service{db: database, summarizer: s}
}

// Generate builds and stores a digest over the articles published in the
// last hours hours. It fails with summarizer.ErrNoAPIKey when no key is
// configured, even for an empty window.
func (s *Service) Generate(ctx context.Context, hours int, activeFeedsOnly bool) (models.DailySummary, error) {
	if hours <= 0 {
		hours = 24
	}
	if !s.summarizer.Available() {
		return models.DailySummary{}, summarizer.ErrNoAPIKey
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	articles, err := s.db.RecentArticles(ctx, since, activeFeedsOnly, 0)
	if err != nil {
		return models.DailySummary{}, err
	}

	if len(articles) == 0 {
		return s.db.InsertDailySummary(ctx, models.DailySummary{
			Title:           digestTitle,
			Summary:         emptyDigest,
			TimeRangeHours:  hours,
			ActiveFeedsOnly: activeFeedsOnly,
		})
	}

	text, err := s.summarizer.DailyDigest(ctx, articles, hours)
	if err != nil {
		return models.DailySummary{}, err
	}

	sources := lo.Uniq(lo.Map(articles, func(a models.Article, _ int) int64 {
		return a.FeedId
	}))

	summary, err := s.db.InsertDailySummary(ctx, models.DailySummary{
		Title:           digestTitle,
		Summary:         text,
		ArticleCount:    len(articles),
		SourceCount:     len(sources),
		TimeRangeHours:  hours,
		ActiveFeedsOnly: activeFeedsOnly,
	})
	if err != nil {
		return models.DailySummary{}, err
	}

	log.WithFields(log.Fields{
		"articles": summary.ArticleCount,
		"sources":  summary.SourceCount,
		"hours":    hours,
	}).Info("Daily digest generated")

	return summary, nil
}

// Latest returns the most recently generated digest
func (s *Service) Latest(ctx context.Context) (models.DailySummary, error) {
	return s.db.LatestDailySummary(ctx)
}
