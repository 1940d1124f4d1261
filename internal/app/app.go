package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/ezgisubasi/leadership-coach-llm/features/assistant"
	indexapi "github.com/ezgisubasi/leadership-coach-llm/features/index"
	"github.com/ezgisubasi/leadership-coach-llm/features/job"
	"github.com/ezgisubasi/leadership-coach-llm/features/mcp"
	"github.com/ezgisubasi/leadership-coach-llm/features/stats"
	"github.com/ezgisubasi/leadership-coach-llm/internal/adapter/gemini"
	"github.com/ezgisubasi/leadership-coach-llm/internal/answer"
	"github.com/ezgisubasi/leadership-coach-llm/internal/config"
	"github.com/ezgisubasi/leadership-coach-llm/internal/index"
	"github.com/ezgisubasi/leadership-coach-llm/internal/indexer"
	"github.com/ezgisubasi/leadership-coach-llm/internal/middleware"
	"github.com/ezgisubasi/leadership-coach-llm/internal/retrieval"
	"github.com/ezgisubasi/leadership-coach-llm/internal/worker"
)

type App struct {
	Handler         http.Handler
	Indexer         *indexer.Service
	Retrieval       *retrieval.Service
	Assistant       *answer.Assistant
	RebuildConsumer *worker.RebuildConsumer

	cfg *config.Config
}

// GeminiModels opens a Gemini generation session per API key.
func GeminiModels(model string) answer.ModelFactory {
	return func(ctx context.Context, apiKey string) (answer.LanguageModel, error) {
		g, err := gemini.NewGenerator(ctx, apiKey, model)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

// New wires services and routes on top of deps. A nil models factory
// defaults to Gemini.
func New(cfg *config.Config, deps *Dependencies, models answer.ModelFactory, logger *slog.Logger) (*App, error) {
	if deps == nil || deps.Store == nil || deps.Embedder == nil {
		return nil, errors.New("app: store and embedder are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if models == nil {
		models = GeminiModels(cfg.GenerationModel)
	}
	ctx := context.Background()

	guard := index.NewGuard()

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	retrievalService := retrieval.NewService(deps.Embedder, deps.Store, guard, cfg.CollectionName, queryLogger)
	indexService := indexer.NewService(deps.Store, deps.Embedder, guard, cfg.CollectionName)

	timeout := time.Duration(cfg.GenerationTimeoutSeconds) * time.Second
	coach := answer.NewAssistant(retrievalService, models, timeout)
	if cfg.GeminiAPIKey != "" {
		if err := coach.Configure(ctx, cfg.GeminiAPIKey); err != nil {
			slog.Warn("failed to configure language model from environment", "error", err)
		}
	}

	if cfg.AssistantProfilePath != "" {
		persona, err := answer.LoadConfiguration(cfg.AssistantProfilePath)
		if err != nil {
			return nil, fmt.Errorf("load assistant profile: %w", err)
		}
		coach.SetConfiguration(persona)
	}

	var publisher job.EventPublisher
	var rebuildPublisher indexapi.Publisher
	if deps.NSQProducer != nil {
		publisher = deps.NSQProducer
		rebuildPublisher = deps.NSQProducer
	}

	var (
		profiles   assistant.ProfileRepository
		jobService *job.Service
		profileCnt stats.Counter
		jobCnt     stats.Counter
		recorder   worker.FailureRecorder
	)
	if deps.DB != nil {
		profileRepo := assistant.NewPostgresRepo(deps.DB)
		profiles = profileRepo
		profileCnt = profileRepo

		jobRepo := job.NewPostgresRepo(deps.DB)
		jobService = job.NewService(jobRepo, publisher, logger)
		jobCnt = jobRepo
		recorder = jobService

		active, err := profileRepo.Active(ctx)
		switch {
		case err == nil:
			coach.SetConfiguration(*active)
		case errors.Is(err, sql.ErrNoRows):
		default:
			slog.Warn("failed to load active assistant profile", "error", err)
		}
	}

	rebuildConsumer := worker.NewRebuildConsumer(indexService, recorder, cfg.CorpusPath)

	assistantHandler := assistant.NewHandler(coach, retrievalService, profiles, cfg.SearchLimit)
	indexHandler := indexapi.NewHandler(rebuildPublisher, indexService, cfg.CorpusPath, cfg.IndexBatchSize)
	statsHandler := stats.NewHandler(deps.Store, cfg.CollectionName, profileCnt, jobCnt)
	mcpHandler := mcp.NewHandler(retrievalService, coach, cfg.SearchLimit)

	route := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(middleware.CORS(h))
	}

	mux := http.NewServeMux()

	mux.Handle("POST /assistant/configure", route(assistantHandler.Configure))
	mux.Handle("GET /assistant/configuration", route(assistantHandler.GetConfiguration))
	mux.Handle("PUT /assistant/configuration", route(assistantHandler.SetConfiguration))
	mux.Handle("GET /assistant/info", route(assistantHandler.Info))
	mux.Handle("GET /assistant/examples", route(assistantHandler.Examples))
	mux.Handle("POST /assistant/ask", route(assistantHandler.Ask))
	mux.Handle("POST /search", route(assistantHandler.Search))

	if profiles != nil {
		mux.Handle("GET /assistant/profiles", route(assistantHandler.ListProfiles))
		mux.Handle("PUT /assistant/profiles", route(assistantHandler.SaveProfile))
		mux.Handle("PUT /assistant/profiles/{name}/activate", route(assistantHandler.ActivateProfile))
	}

	if jobService != nil {
		jobHandler := job.NewHandler(jobService)
		mux.Handle("GET /jobs/failed", route(jobHandler.List))
		mux.Handle("POST /jobs/{id}/retry", route(jobHandler.Retry))
		mux.Handle("DELETE /jobs/{id}", route(jobHandler.Discard))
	}

	mux.Handle("POST /index/rebuild", route(indexHandler.Rebuild))
	mux.Handle("GET /stats", route(statsHandler.GetStats))

	mux.Handle("/mcp", middleware.CorrelationID(mcpHandler))
	mux.Handle("GET /mcp/sse", route(mcpHandler.HandleSSE))
	mux.Handle("POST /mcp/messages", route(mcpHandler.HandleMessage))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:         mux,
		Indexer:         indexService,
		Retrieval:       retrievalService,
		Assistant:       coach,
		RebuildConsumer: rebuildConsumer,
		cfg:             cfg,
	}, nil
}

// StartRebuildWorker subscribes the rebuild consumer to nsqlookupd. It
// returns nil when the worker is disabled.
func (a *App) StartRebuildWorker() (*nsq.Consumer, error) {
	if !a.cfg.EnableRebuildWorker {
		return nil, nil
	}

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = 1
	consumer, err := nsq.NewConsumer(config.TopicIndexRebuild, config.ChannelIndexer, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ consumer: %w", err)
	}
	consumer.AddHandler(a.RebuildConsumer)

	if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("failed to connect to NSQLookupd: %w", err)
	}
	slog.Info("rebuild worker connected", "topic", config.TopicIndexRebuild, "channel", config.ChannelIndexer)
	return consumer, nil
}

func (a *App) Run(ctx context.Context) error {
	consumer, err := a.StartRebuildWorker()
	if err != nil {
		slog.Error("rebuild worker unavailable, rebuilds will run inline", "error", err)
	}
	if consumer != nil {
		defer consumer.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
