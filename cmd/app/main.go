package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/askwiki/internal"
	pkgconfig "github.com/starford/askwiki/pkg/config"
)

var version = "dev"

// loadConfig reads the config flag. Commands that run without a server accept
// a missing file and use the defaults.
func loadConfig(cmd *cli.Command, optional bool) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	load := pkgconfig.Load[internal.Config]
	if optional {
		load = pkgconfig.LoadOptional[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if src := cmd.String("source"); src != "" {
		cfg.KnowledgeBase.Source = src
		cfg.KnowledgeBase.Format = ""
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func ask(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	return internal.RunAsk(ctx, internal.WithConfig(cfg))
}

func query(ctx context.Context, cmd *cli.Command) error {
	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("query: a question argument is required")
	}
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	var threshold *float64
	if cmd.IsSet("threshold") {
		t := cmd.Float("threshold")
		threshold = &t
	}
	return internal.Query(ctx, question, threshold, cmd.Bool("json"), internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:    "askwiki",
		Usage:   "Answers support questions from a wiki export by matching them to the closest article",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Knowledge base document, overrides knowledge_base.source",
				Sources: cli.EnvVars("ASKWIKI_SOURCE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the knowledge base to MCP clients over stdio",
				Action: mcp,
			},
			{
				Name:   "ask",
				Usage:  "Open the interactive terminal client",
				Action: ask,
			},
			{
				Name:      "query",
				Usage:     "Answer one question and exit",
				ArgsUsage: "<question>",
				Action:    query,
				Flags: []cli.Flag{
					&cli.FloatFlag{
						Name:  "threshold",
						Usage: "Minimum similarity score in [0, 1]",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full answer as JSON",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
