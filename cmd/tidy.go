/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/thinhngo-x/news-agg/db"
	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing daily digests that are old.

		Articles are never deleted, only generated digests past the retention
		window. This is to keep the database size down. Can be run as a cron
		job.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "news.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"NEWSAGG_DATABASE"},
			},
			&cli.IntFlag{
				Name:    "days",
				Value:   30,
				Usage:   "Remove digests older than this many days",
				EnvVars: []string{"NEWSAGG_TIDY_DAYS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			fmt.Println("Database configured: ", database)

			store, err := db.New(database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			cutoff := time.Now().Add(-time.Duration(ctx.Int("days")) * 24 * time.Hour)
			deleted, err := store.PruneDailySummaries(ctx.Context, cutoff)
			if err != nil {
				return err
			}

			fmt.Printf("Removed %d old digests\n", deleted)
			return nil
		},
	}
}
