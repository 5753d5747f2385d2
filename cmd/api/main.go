package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/handlers"
	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/gcs"
	"github.com/dvloznov/finance-ledger/internal/infra"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML configuration (or set LEDGER_CONFIG env)")
		port       = flag.String("port", "", "HTTP server port, overrides server.port")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	// Initialize repository
	repo, err := infra.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open repository")
	}
	defer repo.Close()

	deps := pipeline.Deps{Repo: repo, Config: cfg}
	if cfg.GCS.Bucket == "" {
		log.Warn().Msg("No GCS bucket configured - snapshot import and report upload are disabled")
	} else {
		storage, err := gcs.NewService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()
		deps.Storage = storage
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore(inmemory.WithRetention(cfg.Server.JobRetention))
	jobQueue := inmemory.NewQueue(cfg.Server.QueueSize, cfg.Server.Workers, jobStore)

	// Start workers in background to process jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Int("workers", cfg.Server.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, pipeline.NewJobHandler(deps)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	handler := handlers.NewRouter(handlers.RouterDeps{
		Repo:      repo,
		Config:    cfg,
		Jobs:      jobStore,
		Publisher: jobQueue,
		Log:       log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("backend", cfg.Storage.Backend).
			Bool("auth", cfg.Server.AuthToken != "").
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
