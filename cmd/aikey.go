/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	"github.com/thinhngo-x/news-agg/config"
	"github.com/thinhngo-x/news-agg/models"
	"github.com/urfave/cli/v2"
)

// aikeyCmd represents the aikey command
func aikeyCmd() *cli.Command {
	return &cli.Command{
		Name:  "aikey",
		Usage: "Configure the OpenAI API key",
		Description: `Stores the OpenAI API key used for article summaries.

The key is prompted for interactively and written to the key file
configured under [ai] in the configuration. The OPENAI_API_KEY
environment variable still wins over the stored key at runtime.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.toml",
				Usage:   "Path to the TOML configuration file",
				EnvVars: []string{"NEWSAGG_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Select the model to summarize with",
			},
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Remove the stored key instead of setting one",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			store := config.NewAIStore(cfg.AI.KeyFile, models.AIModel(cfg.AI.SelectedModel))

			if ctx.Bool("clear") {
				if err := store.ClearKey(); err != nil {
					return err
				}
				fmt.Println("API key cleared")
				return nil
			}

			if model := ctx.String("model"); model != "" {
				if err := store.SetModel(models.AIModel(model)); err != nil {
					return err
				}
				fmt.Println("Model set to", model)
			}

			key, err := prompt.New().Ask("OpenAI API key:").Input("", input.WithEchoMode(input.EchoNone))
			if err != nil {
				return err
			}

			if err := store.SetKey(key); err != nil {
				return err
			}

			fmt.Println("API key saved to", cfg.AI.KeyFile)
			return nil
		},
	}
}
