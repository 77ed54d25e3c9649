package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	appconfig "github.com/thinhngo-x/news-agg/config"
	"github.com/thinhngo-x/news-agg/db"
	"github.com/thinhngo-x/news-agg/digest"
	"github.com/thinhngo-x/news-agg/feeds"
	"github.com/thinhngo-x/news-agg/models"
	"github.com/thinhngo-x/news-agg/scraper"
	"github.com/thinhngo-x/news-agg/summarizer"
)

type ServerConfig struct {

	// Allowed CORS origins, comma separated
	AllowOrigins string

	// The store to read and write feeds, articles and digests
	DB *db.DB

	// Fetches and parses feeds, used for validating new feed urls
	Fetcher *feeds.Fetcher

	// Refreshes feeds and ingests new articles
	Pipeline *feeds.Pipeline

	// Extracts article text from web pages
	Scraper *scraper.Scraper

	// Generates article summaries and digests
	Summarizer *summarizer.Summarizer

	// Builds and reads the daily digest
	Digest *digest.Service

	// Runtime AI settings, the API key and selected model
	AIStore *appconfig.AIStore

	// Effective configuration, exposed read only
	Config *appconfig.TomlConfig
}

type feedCreateRequest struct {
	Url         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type feedUpdateRequest struct {
	Title         *string `json:"title"`
	Description   *string `json:"description"`
	Status        *string `json:"status"`
	FetchInterval *int    `json:"fetchInterval"`
}

type aiConfigRequest struct {
	ApiKey string `json:"apiKey"`
	Model  string `json:"model"`
}

type apiResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type healthResponse struct {
	Status           string    `json:"status"`
	ApiKeyConfigured bool      `json:"apiKeyConfigured"`
	AiAvailable      bool      `json:"aiAvailable"`
	Timestamp        time.Time `json:"timestamp"`
}

type configResponse struct {
	AiConfigured       bool           `json:"aiConfigured"`
	SelectedModel      models.AIModel `json:"selectedModel"`
	BulkSummarizeLimit int            `json:"bulkSummarizeLimit"`
	DefaultFeeds       []string       `json:"defaultFeeds"`
}

type recentArticlesResponse struct {
	Articles        []models.Article `json:"articles"`
	Count           int              `json:"count"`
	Hours           int              `json:"hours"`
	ActiveFeedsOnly bool             `json:"activeFeedsOnly"`
}

type aiStatusResponse struct {
	Available       bool                 `json:"available"`
	CurrentModel    models.AIModel       `json:"currentModel"`
	AvailableModels []models.AIModelInfo `json:"availableModels"`
}

type bulkOperationResponse struct {
	Message        string   `json:"message"`
	TotalItems     int      `json:"totalItems"`
	ProcessedItems int      `json:"processedItems"`
	SuccessCount   int      `json:"successCount"`
	ErrorCount     int      `json:"errorCount"`
	Errors         []string `json:"errors"`
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(map[string]interface{}{
		"error": message,
	})
}

func queryBool(c *fiber.Ctx, name string, fallback bool) bool {
	value, err := strconv.ParseBool(c.Query(name, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return value
}

// Returns a fiber.App instance serving the aggregator API
func Server(config *ServerConfig) *fiber.App {

	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		// stop timer
		stop := time.Now()

		// Diff
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": stop.Sub(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{
			"message": "News Aggregator API is running",
		})
	})

	app.Get("/api/health", func(c *fiber.Ctx) error {
		status := "healthy"
		code := 200
		if err := config.DB.Ping(c.Context()); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Health check failed")
			status = "unhealthy"
			code = 503
		}

		return c.Status(code).JSON(healthResponse{
			Status:           status,
			ApiKeyConfigured: config.AIStore.Current().HasKey(),
			AiAvailable:      config.Summarizer.Available(),
			Timestamp:        time.Now(),
		})
	})

	app.Get("/api/config", func(c *fiber.Ctx) error {
		settings := config.AIStore.Current()
		return c.JSON(configResponse{
			AiConfigured:       settings.HasKey(),
			SelectedModel:      settings.Model,
			BulkSummarizeLimit: config.Config.AI.BulkSummarizeLimit,
			DefaultFeeds:       config.Config.Feeds.DefaultFeeds,
		})
	})

	// Feed management

	app.Get("/api/feeds", func(c *fiber.Ctx) error {
		includeInactive := queryBool(c, "include_inactive", false)

		feedList, err := config.DB.ListFeeds(c.Context(), includeInactive)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error listing feeds")
			return jsonError(c, 500, "Error listing feeds")
		}

		return c.JSON(feedList)
	})

	app.Post("/api/feeds", func(c *fiber.Ctx) error {
		var req feedCreateRequest
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, 400, "Invalid request body")
		}

		req.Url = strings.TrimSpace(req.Url)
		if req.Url == "" {
			return jsonError(c, 400, "Feed url is required")
		}

		if _, err := config.DB.GetFeedByUrl(c.Context(), req.Url); err == nil {
			return jsonError(c, 409, "Feed already exists")
		} else if !errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 500, "Error checking feed")
		}

		// One validation fetch, the document also supplies the title and
		// description when the request leaves them empty
		doc, err := config.Fetcher.Fetch(c.Context(), req.Url)
		if err != nil {
			log.WithFields(log.Fields{
				"url":   req.Url,
				"error": err,
			}).Warn("Feed validation failed")
			return jsonError(c, 400, "Could not fetch feed: "+err.Error())
		}

		title := req.Title
		if title == "" {
			title = doc.Title
		}
		description := req.Description
		if description == "" {
			description = doc.Description
		}

		feed, err := config.DB.CreateFeed(c.Context(), models.Feed{
			Url:           req.Url,
			Title:         title,
			Description:   description,
			FetchInterval: config.Config.Feeds.FetchInterval,
		})
		if err != nil {
			log.WithFields(log.Fields{
				"url":   req.Url,
				"error": err,
			}).Error("Error creating feed")
			return jsonError(c, 500, "Error creating feed")
		}

		return c.Status(201).JSON(feed)
	})

	app.Get("/api/feeds/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid feed id")
		}

		feed, err := config.DB.GetFeed(c.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Feed not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error getting feed")
		}

		return c.JSON(feed)
	})

	app.Patch("/api/feeds/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid feed id")
		}

		var req feedUpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, 400, "Invalid request body")
		}

		update := db.FeedUpdate{
			Title:       req.Title,
			Description: req.Description,
		}
		if req.Status != nil {
			status := models.FeedStatus(*req.Status)
			if !models.ValidFeedStatus(status) {
				return jsonError(c, 400, "Invalid feed status")
			}
			update.Status = &status
		}
		if req.FetchInterval != nil {
			if *req.FetchInterval <= 0 {
				return jsonError(c, 400, "Invalid fetch interval")
			}
			update.FetchInterval = req.FetchInterval
		}

		feed, err := config.DB.UpdateFeed(c.Context(), id, update)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Feed not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error updating feed")
		}

		return c.JSON(feed)
	})

	app.Delete("/api/feeds/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid feed id")
		}

		err = config.DB.SoftDeleteFeed(c.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Feed not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error deleting feed")
		}

		return c.JSON(apiResponse{Message: "Feed deleted successfully", Success: true})
	})

	app.Post("/api/feeds/:id/restore", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid feed id")
		}

		err = config.DB.RestoreFeed(c.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Feed not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error restoring feed")
		}

		return c.JSON(apiResponse{Message: "Feed restored successfully", Success: true})
	})

	app.Delete("/api/feeds/:id/permanent", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid feed id")
		}

		err = config.DB.DeleteFeedPermanent(c.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Feed not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error deleting feed")
		}

		return c.JSON(apiResponse{Message: "Feed permanently deleted", Success: true})
	})

	app.Get("/api/feeds/:id/stats", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid feed id")
		}

		stats, err := config.DB.FeedStatistics(c.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Feed not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error getting feed statistics")
		}

		return c.JSON(stats)
	})

	app.Post("/api/feeds/update-all", func(c *fiber.Ctx) error {
		result, err := config.Pipeline.RefreshAll(c.Context())
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error updating feeds")
			return jsonError(c, 500, "Error updating feeds")
		}

		errorMessages := []string{}
		for _, refreshError := range result.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf("Failed to update feed %d (%s): %s",
				refreshError.FeedId, refreshError.Url, refreshError.Error))
		}

		return c.JSON(bulkOperationResponse{
			Message:        fmt.Sprintf("Feed update completed: %d new articles", result.NewArticles),
			TotalItems:     result.TotalFeeds,
			ProcessedItems: result.TotalFeeds,
			SuccessCount:   result.TotalFeeds - len(result.Errors),
			ErrorCount:     len(result.Errors),
			Errors:         errorMessages,
		})
	})

	// Articles

	app.Get("/api/articles", func(c *fiber.Ctx) error {
		limit, err := strconv.ParseInt(c.Query("limit", "50"), 0, 32)
		if err != nil || limit < 1 || limit > 100 {
			limit = 50
		}
		offset, err := strconv.ParseInt(c.Query("offset", "0"), 0, 32)
		if err != nil || offset < 0 {
			offset = 0
		}

		query := db.ArticleQuery{
			Limit:  int(limit),
			Offset: int(offset),
		}

		if raw := c.Query("feed_id", ""); raw != "" {
			feedId, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return jsonError(c, 400, "Invalid feed_id")
			}
			query.FeedId = feedId
		}

		if raw := c.Query("status", ""); raw != "" {
			status := models.ArticleStatus(raw)
			if !models.ValidArticleStatus(status) {
				return jsonError(c, 400, "Invalid status")
			}
			query.Status = status
		}

		page, err := config.DB.ListArticles(c.Context(), query)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error listing articles")
			return jsonError(c, 500, "Error listing articles")
		}

		return c.JSON(page)
	})

	app.Get("/api/articles/recent", func(c *fiber.Ctx) error {
		hours, err := strconv.ParseInt(c.Query("hours", "24"), 0, 32)
		if err != nil || hours < 1 {
			hours = 24
		}
		activeFeedsOnly := queryBool(c, "active_feeds_only", true)

		since := time.Now().Add(-time.Duration(hours) * time.Hour)
		articles, err := config.DB.RecentArticles(c.Context(), since, activeFeedsOnly, 0)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error listing recent articles")
			return jsonError(c, 500, "Error listing recent articles")
		}
		if articles == nil {
			articles = []models.Article{}
		}

		return c.JSON(recentArticlesResponse{
			Articles:        articles,
			Count:           len(articles),
			Hours:           int(hours),
			ActiveFeedsOnly: activeFeedsOnly,
		})
	})

	app.Get("/api/articles/stats/per-time", func(c *fiber.Ctx) error {
		lang := c.Query("lang", "")
		timeAgg := c.Query("time", "")

		if timeAgg == "" {
			timeAgg = "hour"
		}

		// check if time is hour, day or week
		if timeAgg != "hour" && timeAgg != "day" && timeAgg != "week" {
			return jsonError(c, 400, "Invalid time")
		}

		counts, err := config.DB.ArticleCountPerTime(c.Context(), lang, timeAgg)
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error getting articles per time")
			return jsonError(c, 500, "Error getting articles per time")
		}

		log.WithFields(log.Fields{
			"lang":  lang,
			"count": len(counts),
		}).Info("Get articles per time")

		return c.JSON(counts)
	})

	app.Get("/api/articles/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid article id")
		}

		article, err := config.DB.GetArticle(c.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Article not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error getting article")
		}

		return c.JSON(article)
	})

	app.Post("/api/articles/:id/scrape", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid article id")
		}

		article, err := config.DB.GetArticle(c.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Article not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error getting article")
		}

		content, err := config.Scraper.Scrape(c.Context(), article.Url)
		if err != nil {
			log.WithFields(log.Fields{
				"id":    article.Id,
				"url":   article.Url,
				"error": err,
			}).Warn("Scrape failed")

			if statusErr := config.DB.SetArticleStatus(c.Context(), id, models.ArticleFailed); statusErr != nil {
				log.WithFields(log.Fields{
					"id":    id,
					"error": statusErr,
				}).Error("Error marking article failed")
			}
			return jsonError(c, 502, "Failed to scrape article content")
		}

		if err := config.DB.SetArticleContent(c.Context(), id, content); err != nil {
			return jsonError(c, 500, "Error storing article content")
		}

		updated, err := config.DB.GetArticle(c.Context(), id)
		if err != nil {
			return jsonError(c, 500, "Error getting article")
		}
		return c.JSON(updated)
	})

	app.Post("/api/articles/:id/summarize", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return jsonError(c, 400, "Invalid article id")
		}

		if !config.Summarizer.Available() {
			return jsonError(c, 400, "AI summarization not available")
		}

		article, err := config.DB.GetArticle(c.Context(), id)
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "Article not found")
		}
		if err != nil {
			return jsonError(c, 500, "Error getting article")
		}

		// An existing summary is kept as is
		if article.Summary != nil && *article.Summary != "" {
			return c.JSON(article)
		}

		text := article.Description
		if article.Content != nil && *article.Content != "" {
			text = *article.Content
		}
		if text == "" {
			return jsonError(c, 400, "Article has no content to summarize")
		}

		summary, err := config.Summarizer.Summarize(c.Context(), article.Title, text)
		if err != nil {
			log.WithFields(log.Fields{
				"id":    article.Id,
				"error": err,
			}).Warn("Summarize failed")
			return jsonError(c, 502, "Failed to generate summary")
		}

		if err := config.DB.SetArticleSummary(c.Context(), id, summary); err != nil {
			return jsonError(c, 500, "Error storing summary")
		}

		updated, err := config.DB.GetArticle(c.Context(), id)
		if err != nil {
			return jsonError(c, 500, "Error getting article")
		}
		return c.JSON(updated)
	})

	app.Post("/api/articles/bulk-scrape", func(c *fiber.Ctx) error {
		articles, err := config.DB.ArticlesWithoutContent(c.Context(), 0)
		if err != nil {
			return jsonError(c, 500, "Error listing articles to scrape")
		}

		successCount := 0
		errorMessages := []string{}
		for _, article := range articles {
			content, err := config.Scraper.Scrape(c.Context(), article.Url)
			if err != nil {
				errorMessages = append(errorMessages, fmt.Sprintf("Failed to scrape article %d: %s", article.Id, article.Title))
				if statusErr := config.DB.SetArticleStatus(c.Context(), article.Id, models.ArticleFailed); statusErr != nil {
					log.WithFields(log.Fields{
						"id":    article.Id,
						"error": statusErr,
					}).Error("Error marking article failed")
				}
				continue
			}
			if err := config.DB.SetArticleContent(c.Context(), article.Id, content); err != nil {
				errorMessages = append(errorMessages, fmt.Sprintf("Failed to store content for article %d: %s", article.Id, article.Title))
				continue
			}
			successCount++
		}

		errorCount := len(articles) - successCount
		if len(errorMessages) > 10 {
			errorMessages = errorMessages[:10]
		}

		log.WithFields(log.Fields{
			"total":   len(articles),
			"success": successCount,
			"errors":  errorCount,
		}).Info("Bulk scrape completed")

		return c.JSON(bulkOperationResponse{
			Message:        fmt.Sprintf("Bulk scraping completed: %d successful, %d failed", successCount, errorCount),
			TotalItems:     len(articles),
			ProcessedItems: len(articles),
			SuccessCount:   successCount,
			ErrorCount:     errorCount,
			Errors:         errorMessages,
		})
	})

	app.Post("/api/articles/bulk-summarize", func(c *fiber.Ctx) error {
		if !config.Summarizer.Available() {
			return jsonError(c, 400, "AI summarization not available")
		}

		articles, err := config.DB.ArticlesWithoutSummary(c.Context(), config.Config.AI.BulkSummarizeLimit)
		if err != nil {
			return jsonError(c, 500, "Error listing articles to summarize")
		}

		successCount := 0
		errorMessages := []string{}
		for _, article := range articles {
			text := article.Description
			if article.Content != nil && *article.Content != "" {
				text = *article.Content
			}

			summary, err := config.Summarizer.Summarize(c.Context(), article.Title, text)
			if err != nil {
				errorMessages = append(errorMessages, fmt.Sprintf("Failed to summarize article %d: %s", article.Id, article.Title))
				continue
			}
			if err := config.DB.SetArticleSummary(c.Context(), article.Id, summary); err != nil {
				errorMessages = append(errorMessages, fmt.Sprintf("Failed to store summary for article %d: %s", article.Id, article.Title))
				continue
			}
			successCount++
		}

		errorCount := len(articles) - successCount
		if len(errorMessages) > 10 {
			errorMessages = errorMessages[:10]
		}

		log.WithFields(log.Fields{
			"total":   len(articles),
			"success": successCount,
			"errors":  errorCount,
		}).Info("Bulk summarize completed")

		return c.JSON(bulkOperationResponse{
			Message:        fmt.Sprintf("Bulk summarization completed: %d successful, %d failed", successCount, errorCount),
			TotalItems:     len(articles),
			ProcessedItems: len(articles),
			SuccessCount:   successCount,
			ErrorCount:     errorCount,
			Errors:         errorMessages,
		})
	})

	// AI configuration

	app.Get("/api/ai/status", func(c *fiber.Ctx) error {
		return c.JSON(aiStatusResponse{
			Available:       config.Summarizer.Available(),
			CurrentModel:    config.AIStore.Current().Model,
			AvailableModels: models.AllModels(),
		})
	})

	app.Post("/api/ai/configure", func(c *fiber.Ctx) error {
		var req aiConfigRequest
		if err := c.BodyParser(&req); err != nil {
			return jsonError(c, 400, "Invalid request body")
		}

		if req.Model != "" {
			if !models.AIModel(req.Model).Valid() {
				return jsonError(c, 400, "Invalid model")
			}
		}

		if err := config.AIStore.SetKey(req.ApiKey); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Warn("Rejected AI configuration")
			return jsonError(c, 400, "Invalid API key")
		}

		if req.Model != "" {
			if err := config.AIStore.SetModel(models.AIModel(req.Model)); err != nil {
				return jsonError(c, 400, "Invalid model")
			}
		}

		return c.JSON(apiResponse{Message: "AI configuration updated successfully", Success: true})
	})

	// Daily digest

	app.Post("/api/digest/generate", func(c *fiber.Ctx) error {
		hours, err := strconv.ParseInt(c.Query("hours", "24"), 0, 32)
		if err != nil || hours < 1 {
			hours = 24
		}
		activeFeedsOnly := queryBool(c, "active_feeds_only", true)

		summary, err := config.Digest.Generate(c.Context(), int(hours), activeFeedsOnly)
		if errors.Is(err, summarizer.ErrNoAPIKey) {
			return jsonError(c, 400, "AI summarization not available")
		}
		if err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Error("Error generating digest")
			return jsonError(c, 502, "Failed to generate summary")
		}

		return c.JSON(summary)
	})

	app.Get("/api/digest/latest", func(c *fiber.Ctx) error {
		summary, err := config.Digest.Latest(c.Context())
		if errors.Is(err, db.ErrNotFound) {
			return jsonError(c, 404, "No digest generated yet")
		}
		if err != nil {
			return jsonError(c, 500, "Error getting digest")
		}

		return c.JSON(summary)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}
