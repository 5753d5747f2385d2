package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/finance-ledger/internal/config"
	"github.com/dvloznov/finance-ledger/internal/gcs"
	"github.com/dvloznov/finance-ledger/internal/infra"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/dvloznov/finance-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/finance-ledger/internal/logger"
	"github.com/dvloznov/finance-ledger/internal/pipeline"
	"github.com/rs/zerolog"
)

// The worker recomputes the ledgers of a fixed set of owners on a schedule.
// With -interval 0 it runs one round, waits for it and exits.
func main() {
	var (
		configPath = flag.String("config", os.Getenv("LEDGER_CONFIG"), "Path to the YAML configuration (or set LEDGER_CONFIG env)")
		ownersFlag = flag.String("owners", "", "Comma-separated owners to recompute (default: config owner)")
		interval   = flag.Duration("interval", time.Hour, "Time between recompute rounds, 0 to run once")
	)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	owners := splitOwners(*ownersFlag)
	if len(owners) == 0 && cfg.Owner != "" {
		owners = []string{cfg.Owner}
	}
	if len(owners) == 0 {
		log.Fatal().Msg("Error: --owners is required when the configuration has no owner")
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	repo, err := infra.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open repository")
	}
	defer repo.Close()

	deps := pipeline.Deps{Repo: repo, Config: cfg}
	if cfg.GCS.Bucket != "" {
		storage, err := gcs.NewService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()
		deps.Storage = storage
	}

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore(inmemory.WithRetention(cfg.Server.JobRetention))
	jobQueue := inmemory.NewQueue(cfg.Server.QueueSize, cfg.Server.Workers, jobStore)

	if err := jobQueue.Start(ctx, pipeline.NewJobHandler(deps)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().
		Strs("owners", owners).
		Dur("interval", *interval).
		Msg("Worker service started")

	if *interval <= 0 {
		ids := publishRound(ctx, log, jobQueue, owners)
		failed := waitForJobs(ctx, jobStore, ids)
		stopQueue(log, jobQueue)
		if failed > 0 {
			log.Error().Int("failed", failed).Msg("Recompute round finished with failures")
			os.Exit(1)
		}
		log.Info().Msg("Recompute round finished")
		return
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	publishRound(ctx, log, jobQueue, owners)
	for {
		select {
		case <-ticker.C:
			publishRound(ctx, log, jobQueue, owners)
		case <-quit:
			log.Info().Msg("Shutting down worker service...")
			stopQueue(log, jobQueue)
			cancel()
			log.Info().Msg("Worker service exited")
			return
		}
	}
}

func splitOwners(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// publishRound enqueues one recompute job per owner and returns their IDs.
func publishRound(ctx context.Context, log zerolog.Logger, q jobs.Publisher, owners []string) []string {
	var ids []string
	for _, owner := range owners {
		job := &jobs.RecomputeJob{Owner: owner, Kind: jobs.JobKindRecompute}
		if err := q.Publish(ctx, job); err != nil {
			log.Error().Err(err).Str("owner", owner).Msg("Failed to enqueue recompute job")
			continue
		}
		ids = append(ids, job.JobID)
	}
	return ids
}

// waitForJobs blocks until every job completed or failed and returns the
// number of failures.
func waitForJobs(ctx context.Context, store jobs.JobStore, ids []string) int {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		failed, pending := 0, 0
		for _, id := range ids {
			job, err := store.GetJob(ctx, id)
			if err != nil {
				failed++
				continue
			}
			switch job.Status {
			case jobs.JobStatusCompleted:
			case jobs.JobStatusFailed:
				failed++
			default:
				pending++
			}
		}
		if pending == 0 {
			return failed
		}
		select {
		case <-ctx.Done():
			return failed + pending
		case <-ticker.C:
		}
	}
}

func stopQueue(log zerolog.Logger, q *inmemory.Queue) {
	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := q.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
}
