package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ezgisubasi/leadership-coach-llm/internal/app"
	"github.com/ezgisubasi/leadership-coach-llm/internal/config"
	"github.com/ezgisubasi/leadership-coach-llm/internal/logger"
)

func main() {
	buildIndex := flag.Bool("build-index", false, "rebuild the vector index from CORPUS_PATH and exit")
	question := flag.String("ask", "", "answer one question against the index and exit")
	flag.Parse()

	slog.SetDefault(logger.New(os.Stdout, slog.LevelInfo))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *buildIndex:
		err = withApp(ctx, cfg, slog.Default(), func(a *app.App) error {
			res, err := a.Indexer.BuildFromSource(ctx, cfg.CorpusPath, cfg.IndexBatchSize)
			if err != nil {
				return err
			}
			printJSON(res)
			return nil
		})
	case *question != "":
		err = withApp(ctx, cfg, slog.Default(), func(a *app.App) error {
			printJSON(a.Assistant.Ask(ctx, *question, cfg.SearchLimit))
			return nil
		})
	default:
		err = run(ctx, cfg, slog.Default())
	}
	if err != nil {
		slog.Error("exiting", "error", err)
		os.Exit(1)
	}
}

// run serves the HTTP API until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	return withApp(ctx, cfg, logger, func(a *app.App) error {
		return a.Run(ctx)
	})
}

func withApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(a *app.App) error) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer deps.Close()

	a, err := app.New(cfg, deps, nil, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	return fn(a)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("failed to encode output", "error", err)
	}
}
