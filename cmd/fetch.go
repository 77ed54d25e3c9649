/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/thinhngo-x/news-agg/db"
	"github.com/thinhngo-x/news-agg/feeds"
	"github.com/urfave/cli/v2"
)

// fetchCmd represents the fetch command
func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch all active feeds once",
		Description: `Refreshes every active feed and ingests new articles.

Articles already stored are skipped by their source url, so the command can
run as often as you like, for example from a cron job between server runs.

Prints a result summary to stdout and log messages to stderr.`,
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
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout for the result summary
			log.SetOutput(os.Stderr)

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

			var detector *feeds.Detector
			if cfg.Feeds.DetectLanguage {
				detector = feeds.NewDetector()
			}

			pipeline := feeds.NewPipeline(database, feeds.NewFetcher(feeds.FetcherConfig{
				Timeout:  cfg.FeedRequestTimeout(),
				MaxItems: cfg.Feeds.MaxArticlesPerFeed,
			}), detector)

			result, err := pipeline.RefreshAll(ctx.Context)
			if err != nil {
				return err
			}

			fmt.Printf("Fetched %d feeds: %d new articles, %d errors\n",
				result.TotalFeeds, result.NewArticles, len(result.Errors))
			for _, refreshError := range result.Errors {
				fmt.Printf("  %s: %s\n", refreshError.Url, refreshError.Error)
			}

			return nil
		},
	}
}
