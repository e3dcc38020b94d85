// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/projectsearch"
	"github.com/poiesic/projectsearch/ai"
	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/enrich"
	"github.com/poiesic/projectsearch/server"
	"github.com/urfave/cli/v2"
)

const defaultSecret = "not_a_secret_secret"

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "projectsearch",
		Usage: "Ranked search over scraped project pages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: concatFlags(storeFlags(), embeddingFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Value:   "127.0.0.1:6552",
						EnvVars: []string{"SOM_BACKEND_ADDR"},
					},
					&cli.StringFlag{
						Name:    "secret",
						Usage:   "Shared secret for write endpoints",
						Value:   defaultSecret,
						EnvVars: []string{"SOM_BACKEND_AUTH_SECRET"},
					},
					&cli.StringFlag{
						Name:  "origin",
						Usage: "CORS allowed origin",
						Value: "http://localhost:6552",
					},
					&cli.StringFlag{
						Name:  "static",
						Usage: "Directory of front-end files served at /",
					},
					&cli.IntFlag{
						Name:  "query-limit",
						Usage: "Number of results returned by /query",
						Value: server.DefaultQueryLimit,
					},
					&cli.DurationFlag{
						Name:  "save-interval",
						Usage: "How often the snapshot is written",
						Value: 15 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "enrich-on-ingest",
						Usage: "Embed pages in the background as they arrive (needs --embedding-model)",
					},
				}),
			},
			{
				Name:      "search",
				Usage:     "Run a ranked query against a snapshot",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: concatFlags(storeFlags(), embeddingFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
					&cli.BoolFlag{
						Name:  "semantic",
						Usage: "Rank by embedding similarity instead of text relevance",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				}),
			},
			{
				Name:   "enrich",
				Usage:  "Embed every page that has no computed data",
				Action: enrichCommand,
				Flags: concatFlags(storeFlags(), embeddingFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent embedding batches",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of pages per embedding request",
						Value: 16,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed requests",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}),
			},
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "snapshot",
			Aliases: []string{"s"},
			Usage:   "Path to the JSON snapshot file",
			Value:   "db.json",
			EnvVars: []string{"SOM_DB_PATH"},
		},
		&cli.StringFlag{
			Name:  "weights",
			Usage: "YAML file of ranking weights, reloaded on change",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "BadgerDB directory caching embeddings by page content",
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name; embedding is disabled when empty",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Embedding service API key",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
	}
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// serviceOptions maps the shared flags onto service options.
func serviceOptions(c *cli.Context) []projectsearch.Option {
	opts := []projectsearch.Option{projectsearch.WithLogger(slog.Default())}
	if path := c.String("weights"); path != "" {
		opts = append(opts, projectsearch.WithWeightsFile(path))
	}
	if dir := c.String("cache-dir"); dir != "" {
		opts = append(opts, projectsearch.WithEmbeddingCacheDir(dir))
	}
	if model := c.String("embedding-model"); model != "" {
		opts = append(opts, projectsearch.WithAIConfig(ai.NewConfig(
			ai.WithEmbeddingHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(model),
			ai.WithAPIKey(c.String("api-key")),
		)))
	}
	return opts
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret := c.String("secret")
	if secret == defaultSecret {
		slog.Warn("using the default auth secret; set SOM_BACKEND_AUTH_SECRET")
	}

	opts := serviceOptions(c)
	if c.Bool("enrich-on-ingest") {
		opts = append(opts, projectsearch.WithEnrichOnIngest(true))
	}
	svc, err := projectsearch.Open(c.String("snapshot"), opts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.Error("failed to flush snapshot", "err", err)
		}
	}()

	srv, err := server.New(svc,
		server.WithSecret(secret),
		server.WithAllowedOrigin(c.String("origin")),
		server.WithQueryLimit(c.Int("query-limit")),
		server.WithStaticDir(c.String("static")),
		server.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	slog.Info("store loaded", "snapshot", c.String("snapshot"), "records", svc.Len())
	go saveLoop(ctx, svc, c.Duration("save-interval"))

	return srv.ListenAndServe(ctx, c.String("addr"))
}

// saveLoop writes the snapshot every interval until ctx is done.
func saveLoop(ctx context.Context, svc *projectsearch.Service, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := svc.Snapshot(ctx); err != nil {
				slog.Error("periodic save failed", "err", err)
			}
		}
	}
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	semantic := c.Bool("semantic")
	if semantic && query == "" {
		return errors.New("semantic search needs a query")
	}

	svc, err := projectsearch.Open(c.String("snapshot"), serviceOptions(c)...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer svc.Close()

	var results []core.SearchResult
	if semantic {
		results, err = svc.SemanticSearch(c.Context, query, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("semantic search failed: %w", err)
		}
	} else {
		results = svc.Search(c.Context, query, c.Int("limit"))
	}

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		fmt.Fprintf(out, "%8.3f  %-40s  %s\n", r.Rank, r.Page.Name, r.Event)
	}
	return nil
}

func enrichCommand(c *cli.Context) error {
	if c.String("embedding-model") == "" {
		return errors.New("embedding-model is required")
	}

	opts := append(serviceOptions(c), projectsearch.WithEnrichOptions(
		enrich.WithPoolSize(c.Int("workers")),
		enrich.WithBatchSize(c.Int("batch-size")),
		enrich.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
		enrich.WithProgress(c.App.ErrWriter),
	))
	svc, err := projectsearch.Open(c.String("snapshot"), opts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Snapshot: %s\n", c.String("snapshot"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintf(c.App.ErrWriter, "Pending: %d of %d\n\n", svc.PendingCount(), svc.Len())

	runErr := svc.Enrich(c.Context)
	stats := svc.EnrichStats()
	fmt.Fprintf(c.App.ErrWriter, "Embedded %d, cached %d, stale %d, failed %d\n",
		stats.Embedded, stats.Cached, stats.Stale, stats.Failed)

	// Close saves whatever was embedded, even after a partial failure.
	if err := svc.Close(); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to save snapshot: %w", err))
	}
	if runErr != nil {
		return fmt.Errorf("enrichment failed: %w", runErr)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
