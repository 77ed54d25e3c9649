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

var articleColumns = []string{
	"articles.id", "articles.feed_id", "articles.url", "articles.title",
	"articles.description", "articles.language", "articles.content",
	"articles.summary", "articles.status", "articles.published_at",
	"articles.created_at", "articles.updated_at",
}

func scanArticle(row scanner) (models.Article, error) {
	var article models.Article
	var language, content, summary sql.NullString
	var status string
	var publishedAt, createdAt, updatedAt int64

	err := row.Scan(
		&article.Id,
		&article.FeedId,
		&article.Url,
		&article.Title,
		&article.Description,
		&language,
		&content,
		&summary,
		&status,
		&publishedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return models.Article{}, err
	}

	article.Language = nullableString(language)
	article.Content = nullableString(content)
	article.Summary = nullableString(summary)
	article.Status = models.ArticleStatus(status)
	article.PublishedAt = unixTime(publishedAt)
	article.CreatedAt = unixTime(createdAt)
	article.UpdatedAt = unixTime(updatedAt)
	return article, nil
}

// InsertArticle stores a new article unless its url is already taken. The
// url is the dedup key, so a conflicting insert is skipped silently and
// reported through the bool return, not as an error.
func (db *DB) InsertArticle(ctx context.Context, article models.Article) (bool, error) {
	if article.Status == "" {
		article.Status = models.ArticlePending
	}
	now := time.Now().UTC()

	insertArticle := sqlbuilder.NewInsertBuilder()
	insertArticle.InsertIgnoreInto("articles").
		Cols("feed_id", "url", "title", "description", "language", "status", "published_at", "created_at", "updated_at").
		Values(
			article.FeedId,
			article.Url,
			article.Title,
			article.Description,
			stringArg(article.Language),
			string(article.Status),
			article.PublishedAt.Unix(),
			now.Unix(),
			now.Unix(),
		)
	query, args := insertArticle.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert error: %w", err)
	}
	return affected > 0, nil
}

// GetArticle looks up an article by id
func (db *DB) GetArticle(ctx context.Context, id int64) (models.Article, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(articleColumns...).From("articles").Where(sb.Equal("id", id))
	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))

	article, err := scanArticle(db.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return models.Article{}, ErrNotFound
	}
	if err != nil {
		return models.Article{}, fmt.Errorf("query error: %w", err)
	}
	return article, nil
}

// ArticleQuery filters an article listing
type ArticleQuery struct {
	FeedId int64
	Status models.ArticleStatus
	Limit  int
	Offset int
}

// ListArticles returns one page of articles, newest first, along with the
// total count for the same filter
func (db *DB) ListArticles(ctx context.Context, query ArticleQuery) (models.ArticlePage, error) {
	if query.Limit <= 0 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(articleColumns...).From("articles")
	cb := sqlbuilder.NewSelectBuilder()
	cb.Select("COUNT(*)").From("articles")

	for _, b := range []*sqlbuilder.SelectBuilder{sb, cb} {
		if query.FeedId != 0 {
			b.Where(b.Equal("feed_id", query.FeedId))
		}
		if query.Status != "" {
			b.Where(b.Equal("status", string(query.Status)))
		}
	}

	countQuery, countArgs := cb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))
	var total int64
	if err := db.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return models.ArticlePage{}, fmt.Errorf("count error: %w", err)
	}

	sb.OrderBy("articles.published_at").Desc()
	sb.Limit(query.Limit).Offset(query.Offset)

	listQuery, listArgs := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))
	rows, err := db.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return models.ArticlePage{}, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return models.ArticlePage{}, fmt.Errorf("scan error: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return models.ArticlePage{}, fmt.Errorf("query error: %w", err)
	}

	return models.ArticlePage{
		Articles: articles,
		Total:    total,
		Limit:    query.Limit,
		Offset:   query.Offset,
		HasMore:  int64(query.Offset+len(articles)) < total,
	}, nil
}

// RecentArticles returns articles published at or after the cutoff,
// newest first, optionally restricted to articles from active feeds
func (db *DB) RecentArticles(ctx context.Context, since time.Time, activeFeedsOnly bool, limit int) ([]models.Article, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(articleColumns...).From("articles")
	if activeFeedsOnly {
		sb.Join("feeds", "feeds.id = articles.feed_id")
		sb.Where(sb.Equal("feeds.status", string(models.FeedActive)))
	}
	sb.Where(sb.GreaterEqualThan("articles.published_at", since.Unix()))
	sb.OrderBy("articles.published_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		articles = append(articles, article)
	}

	return articles, rows.Err()
}

// ArticlesWithoutContent lists pending articles whose page text has not
// been scraped yet, newest first. Articles that failed a scrape are in the
// error state and stay out of this list, a manual scrape can still retry
// them.
func (db *DB) ArticlesWithoutContent(ctx context.Context, limit int) ([]models.Article, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(articleColumns...).From("articles")
	sb.Where(sb.Equal("status", string(models.ArticlePending)))
	sb.Where(sb.Or(sb.IsNull("content"), sb.Equal("content", "")))

	return db.selectArticles(ctx, sb, limit)
}

// ArticlesWithoutSummary lists scraped articles with no AI summary yet,
// newest first. Only articles that already have page text qualify, the
// bulk path never summarizes from the feed description alone.
func (db *DB) ArticlesWithoutSummary(ctx context.Context, limit int) ([]models.Article, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(articleColumns...).From("articles")
	sb.Where(sb.Equal("status", string(models.ArticleScraped)))
	sb.Where(sb.Or(sb.IsNull("summary"), sb.Equal("summary", "")))
	sb.Where(sb.And(sb.IsNotNull("content"), sb.NotEqual("content", "")))

	return db.selectArticles(ctx, sb, limit)
}

func (db *DB) selectArticles(ctx context.Context, sb *sqlbuilder.SelectBuilder, limit int) ([]models.Article, error) {
	sb.OrderBy("articles.created_at").Desc()
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.BuildWithFlavor(sqlbuilder.Flavor(sqlbuilder.SQLite))
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		articles = append(articles, article)
	}

	return articles, rows.Err()
}

// SetArticleContent stores scraped text and advances the article to scraped
func (db *DB) SetArticleContent(ctx context.Context, id int64, content string) error {
	log.WithFields(log.Fields{
		"id":    id,
		"bytes": len(content),
	}).Info("Storing scraped content")

	res, err := db.db.ExecContext(ctx,
		"UPDATE articles SET content = ?, status = ?, updated_at = ? WHERE id = ?",
		content, string(models.ArticleScraped), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetArticleSummary stores an AI summary and advances the article to
// summarized
func (db *DB) SetArticleSummary(ctx context.Context, id int64, summary string) error {
	log.WithFields(log.Fields{
		"id":    id,
		"bytes": len(summary),
	}).Info("Storing summary")

	res, err := db.db.ExecContext(ctx,
		"UPDATE articles SET summary = ?, status = ?, updated_at = ? WHERE id = ?",
		summary, string(models.ArticleSummarized), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetArticleStatus updates only the pipeline status field
func (db *DB) SetArticleStatus(ctx context.Context, id int64, status models.ArticleStatus) error {
	res, err := db.db.ExecContext(ctx,
		"UPDATE articles SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}
