/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/thinhngo-x/news-agg/db"
	"github.com/thinhngo-x/news-agg/models"
	"github.com/urfave/cli/v2"
)

// seedCmd represents the seed command
func seedCmd() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Add the default feeds",
		Description: `Adds the default feeds from the configuration to the database.

Feeds that are already stored are left untouched, so seeding is safe to
repeat. Titles are filled in on the first fetch.`,
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

			added := 0
			for _, url := range cfg.Feeds.DefaultFeeds {
				_, err := database.GetFeedByUrl(ctx.Context, url)
				if err == nil {
					continue
				}
				if !errors.Is(err, db.ErrNotFound) {
					return err
				}

				feed := models.Feed{Url: url, FetchInterval: cfg.Feeds.FetchInterval}
				if _, err := database.CreateFeed(ctx.Context, feed); err != nil {
					return fmt.Errorf("failed to seed feed %s: %w", url, err)
				}
				fmt.Println("Added feed: ", url)
				added++
			}

			fmt.Printf("Seeded %d feeds\n", added)
			return nil
		},
	}
}
