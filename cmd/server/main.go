package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/blobstore"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/config"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/database"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/embedder"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/handler"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/logging"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/metrics"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/parser"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/repository"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/service"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/tokens"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/worker"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	logger := logging.New()
	slog.SetDefault(logger)

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Shared infrastructure
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	blobs := blobstore.New(cfg.StoragePath)
	parsers := parser.DefaultRegistry(nil)

	// Resolve the configured counter up front: a worker that cannot load it
	// must not come up and chunk differently than its peers.
	counter, err := tokens.ForName(cfg.TokenCounter)
	if err != nil {
		logger.Error("failed to load token counter", "name", cfg.TokenCounter, "error", err)
		os.Exit(1)
	}
	emb := embedder.NewOpenAI(
		cfg.EmbeddingAPIKey,
		cfg.EmbeddingBaseURL,
		cfg.EmbeddingModel,
		cfg.EmbeddingDimensions,
		cfg.EmbeddingRPS,
	)

	// Repositories
	documentRepo := repository.NewDocumentRepository(db)
	jobRepo := repository.NewJobRepository(db)
	chunkRepo := repository.NewChunkRepository(db)

	// Services
	uploadSvc := service.NewUploadService(documentRepo, jobRepo, blobs, cfg, m, logger)
	documentSvc := service.NewDocumentService(documentRepo, chunkRepo)
	retrievalSvc := service.NewRetrievalService(chunkRepo, emb, counter, cfg, m, logger)

	// Job orchestrator + worker pool
	orch := worker.NewOrchestrator(jobRepo, documentRepo, chunkRepo, blobs, parsers, emb,
		worker.Config{
			LeaseTTL:       cfg.LeaseTTL,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RetryMaxDelay:  cfg.RetryMaxDelay,
			EmbedBatchSize: cfg.EmbeddingBatchSize,
		}, m, logger)

	pool, err := worker.NewPool(cfg.WorkerCount, cfg.PollInterval, cfg.LeaseTTL, jobRepo, orch, m, logger)
	if err != nil {
		logger.Error("failed to create worker pool", "error", err)
		os.Exit(1)
	}
	pool.Start()

	// HTTP surface
	r := handler.SetupRouter(cfg, handler.Deps{
		Uploads:   uploadSvc,
		Documents: documentSvc,
		Retrieval: retrievalSvc,
		Registry:  registry,
	})

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("document service starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: stop accepting requests, then drain workers.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	pool.Stop()
	logger.Info("shutdown complete")
}
