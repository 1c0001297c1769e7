package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/api"
	"github.com/Harshitk-cp/kindred/internal/buildconfig"
	"github.com/Harshitk-cp/kindred/internal/catalog"
	"github.com/Harshitk-cp/kindred/internal/config"
	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/embedding"
	"github.com/Harshitk-cp/kindred/internal/llm"
	"github.com/Harshitk-cp/kindred/internal/notify"
	"github.com/Harshitk-cp/kindred/internal/service"
	"github.com/Harshitk-cp/kindred/internal/store"
)

// storeHandle bundles the snapshot store with the vector table living in the
// same database.
type storeHandle struct {
	snapshots interface {
		domain.SnapshotStore
		api.Pinger
	}
	vectors domain.VectorStore
}

func main() {
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting", zap.String("version", buildconfig.Version()), zap.String("commit", buildconfig.Commit()))

	ctx := context.Background()

	oracle, err := llm.NewClient(llm.Config{
		Provider:  cfg.LLMProvider,
		APIKey:    cfg.LLMAPIKey(),
		Model:     cfg.LLMModel,
		OllamaURL: cfg.OllamaURL,
	})
	if err != nil {
		logger.Fatal("LLM client initialization failed", zap.String("provider", cfg.LLMProvider), zap.Error(err))
	}
	if cfg.LLMRateLimitRPS > 0 {
		oracle = llm.NewRateLimited(oracle, cfg.LLMRateLimitRPS, cfg.LLMRateBurst)
	}
	logger.Info("LLM client initialized", zap.String("provider", cfg.LLMProvider))

	embedder, err := embedding.NewClient(cfg.EmbeddingProvider, cfg.EmbeddingAPIKey(), cfg.OllamaURL)
	if err != nil {
		logger.Fatal("embedding client initialization failed", zap.String("provider", cfg.EmbeddingProvider), zap.Error(err))
	}

	st, err := openStore(ctx, cfg, embedder, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer func() { _ = st.snapshots.Close() }()

	hub := notify.NewHub(logger)
	cat := catalog.MustLoad()
	mode := domain.RoutineSynced
	if cfg.RoutineFastMode {
		mode = domain.RoutineAccelerated
	}
	clock := service.NewRoutineClock(cat.Routine, mode, logger)

	companion := service.NewCompanion(service.Deps{
		Catalog:     cat,
		Store:       st.snapshots,
		Oracle:      oracle,
		Publisher:   hub,
		Associative: service.NewAssociativeMemory(embedder, st.vectors, logger),
		Clock:       clock,
		Rand:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6b696e64)),
		Logger:      logger,
	}, service.Config{
		Persona:          cfg.PersonaName,
		HistoryLimit:     cfg.HistoryLimit,
		ChurnEvery:       cfg.ChurnEvery,
		SpawnProbability: cfg.SpawnProbability,
		ProactiveMin:     cfg.ProactiveMin,
		MoodNoise:        cfg.MoodNoise,
	})
	if err := companion.Restore(ctx); err != nil {
		logger.Fatal("failed to restore companion state", zap.Error(err))
	}

	app := api.NewApp(api.Deps{
		Companion:      companion,
		Hub:            hub,
		Store:          st.snapshots,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})

	// Background workers
	routine := service.NewRoutineWorker(clock, companion, logger)
	routine.SetInterval(cfg.RoutineInterval)
	sweeper := service.NewEventSweeper(companion, logger)
	sweeper.SetInterval(cfg.SweepInterval)
	proactive := service.NewProactiveWorker(companion, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x70726f)), logger)
	proactive.SetInterval(cfg.ProactiveMin, cfg.ProactiveMax-cfg.ProactiveMin)

	routine.Start()
	sweeper.Start()
	proactive.Start()

	addr := cfg.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	routine.Stop()
	sweeper.Stop()
	proactive.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	companion.Close()

	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func openStore(ctx context.Context, cfg config.Config, embedder domain.EmbeddingClient, logger *zap.Logger) (*storeHandle, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, state is lost on restart")
		return &storeHandle{snapshots: store.NewMemoryStore(), vectors: store.NewMemoryVectorStore()}, nil

	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		pg := store.NewPostgresStore(pool)
		dims := embeddingDims(ctx, embedder, logger)
		if err := pg.Migrate(ctx, dims); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("connected to database", zap.Int("embedding_dims", dims))
		h := &storeHandle{snapshots: pg}
		if dims > 0 {
			h.vectors = pg.Vectors()
		}
		return h, nil

	default:
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", cfg.SQLitePath))
		return &storeHandle{snapshots: s, vectors: s.Vectors()}, nil
	}
}

// embeddingDims asks the embedder once to size the pgvector column. Zero
// means associative recall stays off.
func embeddingDims(ctx context.Context, embedder domain.EmbeddingClient, logger *zap.Logger) int {
	if embedder == nil {
		return 0
	}
	dimCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	v, err := embedder.Embed(dimCtx, "dimension check")
	if err != nil {
		logger.Warn("embedding dimension check failed, associative recall disabled", zap.Error(err))
		return 0
	}
	return len(v)
}
