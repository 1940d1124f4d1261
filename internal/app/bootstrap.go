package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/ezgisubasi/leadership-coach-llm/internal/adapter/gemini"
	"github.com/ezgisubasi/leadership-coach-llm/internal/adapter/hashing"
	"github.com/ezgisubasi/leadership-coach-llm/internal/adapter/localstore"
	wstore "github.com/ezgisubasi/leadership-coach-llm/internal/adapter/weaviate"
	"github.com/ezgisubasi/leadership-coach-llm/internal/config"
	"github.com/ezgisubasi/leadership-coach-llm/internal/index"
	"github.com/ezgisubasi/leadership-coach-llm/internal/indexer"
)

// Dependencies are the external resources the app runs on. DB and
// NSQProducer are nil when Postgres or nsqd are not configured.
type Dependencies struct {
	DB          *sql.DB
	Store       index.Store
	Embedder    indexer.Embedder
	NSQProducer *nsq.Producer
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	deps := &Dependencies{}

	if cfg.PostgresEnabled() {
		db, err := openDatabase(ctx, cfg, retryDelay)
		if err != nil {
			return nil, err
		}
		deps.DB = db
	} else {
		slog.Info("postgres not configured, profiles and failed jobs disabled")
	}

	store, err := openStore(ctx, cfg, retryDelay)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Store = store

	switch cfg.Embedder {
	case config.EmbedderGemini:
		deps.Embedder = gemini.NewEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel)
	default:
		deps.Embedder = hashing.New(cfg.HashingDimension)
	}

	if cfg.NSQDHost != "" {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.NSQProducer = producer
		createTopics(cfg.NSQDHTTP)
	}

	return deps, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = WithRetry(ctx, cfg.BootstrapRetryAttempts, retryDelay, db.PingContext)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")
	return db, nil
}

func openStore(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (index.Store, error) {
	if cfg.VectorStore == config.StoreLocal {
		slog.Info("using local vector store", "dir", cfg.LocalStoreDir)
		return localstore.New(cfg.LocalStoreDir), nil
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}

	err = WithRetry(ctx, cfg.BootstrapRetryAttempts, retryDelay, func(ctx context.Context) error {
		_, err := client.Schema().Getter().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}
	return wstore.NewStore(client), nil
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if c, ok := d.Embedder.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close embedder", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}

func createTopics(nsqdHTTP string) {
	go func() {
		time.Sleep(2 * time.Second)
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, config.TopicIndexRebuild)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", config.TopicIndexRebuild, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}()
}

// WithRetry calls fn until it succeeds, up to attempts times.
func WithRetry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			slog.Warn("dependency not ready, retrying...", "attempt", i+1, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
