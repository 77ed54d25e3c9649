/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/thinhngo-x/news-agg/config"
	"github.com/thinhngo-x/news-agg/db"
	"github.com/thinhngo-x/news-agg/digest"
	"github.com/thinhngo-x/news-agg/feeds"
	"github.com/thinhngo-x/news-agg/models"
	"github.com/thinhngo-x/news-agg/scraper"
	"github.com/thinhngo-x/news-agg/server"
	"github.com/thinhngo-x/news-agg/summarizer"
	"github.com/urfave/cli/v2"
)

// serveCmd represents the serve command
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the aggregator HTTP API",
		Description: `Starts the HTTP API.

Runs database migrations, loads the configuration and serves the feed,
article, AI and digest endpoints. Feeds are refreshed on demand through
the update-all endpoint, or from cron via the fetch command.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "news.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"NEWSAGG_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.toml",
				Usage:   "Path to the TOML configuration file",
				EnvVars: []string{"NEWSAGG_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Address to listen on, overrides the config file",
				EnvVars: []string{"NEWSAGG_LISTEN"},
			},
		},
		Action: func(ctx *cli.Context) error {

			fmt.Println("Starting newsagg...")

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			dbPath := databasePath(ctx, cfg)
			if err := db.Migrate(dbPath); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			database, err := db.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()

			aiStore := config.NewAIStore(cfg.AI.KeyFile, models.AIModel(cfg.AI.SelectedModel))

			fetcher := feeds.NewFetcher(feeds.FetcherConfig{
				Timeout:  cfg.FeedRequestTimeout(),
				MaxItems: cfg.Feeds.MaxArticlesPerFeed,
			})

			var detector *feeds.Detector
			if cfg.Feeds.DetectLanguage {
				detector = feeds.NewDetector()
			}

			pipeline := feeds.NewPipeline(database, fetcher, detector)

			summarize := summarizer.New(aiStore, summarizer.Config{
				MaxSummaryLength: cfg.AI.MaxSummaryLength,
				Temperature:      cfg.AI.Temperature,
				Timeout:          cfg.AITimeout(),
			})

			app := server.Server(&server.ServerConfig{
				AllowOrigins: strings.Join(cfg.Server.AllowOrigins, ","),
				DB:           database,
				Fetcher:      fetcher,
				Pipeline:     pipeline,
				Scraper: scraper.New(scraper.Config{
					Timeout:          cfg.ScrapeRequestTimeout(),
					MaxContentLength: cfg.Scraper.MaxContentLength,
				}),
				Summarizer: summarize,
				Digest:     digest.New(database, summarize),
				AIStore:    aiStore,
				Config:     cfg,
			})

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt)

			go func() {
				<-quit
				fmt.Println("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithFields(log.Fields{
						"error": err,
					}).Error("Error shutting down server")
				}
			}()

			listen := ctx.String("listen")
			if listen == "" {
				listen = cfg.Server.Listen
			}

			fmt.Println("Listening on", listen)
			return app.Listen(listen)
		},
	}
}
