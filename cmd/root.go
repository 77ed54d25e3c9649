/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"

	"github.com/thinhngo-x/news-agg/config"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "newsagg",
		Usage: "A single user news aggregator",
		Description: `A news aggregator that pulls articles from your RSS and Atom
		feeds into a local SQLite database.

		Newsagg fetches the configured feeds, deduplicates articles by their
		source url and serves everything over a JSON HTTP API. Articles can
		be enriched with scraped page text and OpenAI generated summaries,
		including a daily front page digest.

		Flags can generally be set via environment variables, e.g.:

		--database => NEWSAGG_DATABASE=news.db
		--config => NEWSAGG_CONFIG=config.toml
		`,
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			migrateCmd(),
			rollbackCmd(),
			seedCmd(),
			tidyCmd(),
			aikeyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

// loadConfig reads the TOML configuration. A missing file is only an error
// when the path was given explicitly, otherwise the defaults apply.
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !ctx.IsSet("config") {
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// databasePath resolves the SQLite location, an explicit flag wins over the
// config file
func databasePath(ctx *cli.Context, cfg *config.TomlConfig) string {
	if ctx.IsSet("database") {
		return ctx.String("database")
	}
	if cfg.Database.Path != "" {
		return cfg.Database.Path
	}
	return ctx.String("database")
}
