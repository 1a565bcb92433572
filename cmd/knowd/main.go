package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/knowd-io/knowd/internal/cache"
	"github.com/knowd-io/knowd/internal/config"
	dbRedis "github.com/knowd-io/knowd/internal/db/redis"
	"github.com/knowd-io/knowd/internal/dispatch"
	"github.com/knowd-io/knowd/internal/domain"
	logpkg "github.com/knowd-io/knowd/internal/logger"
	"github.com/knowd-io/knowd/internal/metrics"
	"github.com/knowd-io/knowd/internal/registry"
	metadatarepo "github.com/knowd-io/knowd/internal/repository/metadata"
	vectorrepo "github.com/knowd-io/knowd/internal/repository/vector"
	"github.com/knowd-io/knowd/internal/tools"
	"github.com/knowd-io/knowd/internal/transport/httpapi"
	openaiEmb "github.com/knowd-io/knowd/internal/transport/openai"
	"github.com/knowd-io/knowd/internal/transport/ratelimit"
	"github.com/knowd-io/knowd/internal/usecase/health"
	searchuc "github.com/knowd-io/knowd/internal/usecase/search"
	"github.com/knowd-io/knowd/internal/usecase/vectorize"
	"github.com/knowd-io/knowd/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting knowd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("metadata_addrs", cfg.Metadata.Addrs),
		zap.String("vector_addr", cfg.Vector.Addr),
	)

	// Register Prometheus metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterDispatchMetrics()

	// Metadata store (Redis)
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Metadata.Addrs,
		Password: cfg.Metadata.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create metadata store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Metadata.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Metadata store not ready", zap.Error(err))
	}
	logger.Info("Connected to metadata store")

	metaRepo := metadatarepo.New(store, cfg.Metadata.KeyPrefix)

	// Build embedder chain from the first configured vectorizer
	var vecCfg config.VectorizerConfig
	var provName string
	for _, vc := range cfg.Embedding.Vectorizers {
		vecCfg = vc
		provName = vc.Provider
		break
	}
	provCfg := cfg.Embedding.Providers[provName]

	baseEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	})
	var embedder domain.Embedder = ratelimit.New(baseEmbedder, provCfg.RequestsPerSec, 1)
	logger.Info("Embedder created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	// Vector store (qdrant)
	vecStore, err := vectorrepo.New(cfg.Vector.Addr, cfg.Vector.Collection)
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer func() { _ = vecStore.Close() }()

	if err := vecStore.EnsureCollection(ctx, vecCfg.Dimensions); err != nil {
		logger.Fatal("Failed to ensure vector collection", zap.Error(err))
	}
	logger.Info("Connected to vector store", zap.String("collection", cfg.Vector.Collection))

	// Use case services
	pipeline := vectorize.New(embedder, vecStore, metaRepo, vectorize.Config{
		MaxAttempts:    cfg.Pipeline.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Pipeline.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Pipeline.MaxBackoffSec) * time.Second,
		MaxBatchSize:   cfg.Pipeline.MaxBatchSize,
	}, logger)

	results := cache.New(cfg.Cache.MaxEntries,
		time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.QueryCacheTotal, logger)
	searchSvc := searchuc.New(embedder, vecStore, results, logger)
	healthSvc := health.New(store, vecStore, baseEmbedder)

	// Tool registry
	reg := registry.New()
	reg.MustRegister(tools.NewSaveDocument(pipeline))
	reg.MustRegister(tools.NewBatchVectorize(pipeline))
	reg.MustRegister(tools.NewDeleteDocument(pipeline))
	reg.MustRegister(tools.NewDocumentStatus(pipeline))
	reg.MustRegister(tools.NewSearch(searchSvc))
	reg.MustRegister(tools.NewEcho())
	reg.MustRegister(tools.NewAddNumbers())
	reg.MustRegister(tools.NewListTools(reg))
	logger.Info("Tools registered", zap.Strings("tools", reg.Names()))

	// HTTP sidecar: health, metrics, search
	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpapi.NewServer(searchSvc, healthSvc, logger).Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP sidecar", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Dispatch loop over stdio until EOF, the exit sentinel, or a signal
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher := dispatch.New(reg, dispatch.Config{
		RequestTimeout: time.Duration(cfg.Stdio.RequestTimeoutSec) * time.Second,
		BatchWorkers:   cfg.Stdio.BatchWorkers,
	}, logger)

	runErr := make(chan error, 1)
	go func() {
		runErr <- dispatcher.Run(runCtx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-runErr:
		if err != nil && runCtx.Err() == nil {
			logger.Error("Dispatch loop error", zap.Error(err))
		}
	case <-runCtx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Stopped gracefully")
}
