package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-qa/internal/api/handlers"
	"github.com/dvloznov/ledger-qa/internal/classify"
	"github.com/dvloznov/ledger-qa/internal/config"
	"github.com/dvloznov/ledger-qa/internal/engine"
	"github.com/dvloznov/ledger-qa/internal/generator"
	"github.com/dvloznov/ledger-qa/internal/jobs"
	"github.com/dvloznov/ledger-qa/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-qa/internal/logger"
	"github.com/dvloznov/ledger-qa/internal/selector"
	"github.com/dvloznov/ledger-qa/internal/source"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	ctx := logger.WithContext(context.Background(), log)

	eng, err := newEngine(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up ledger engine")
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.AnalysisJob) (string, error) {
		jobLog := log.With().Str("job_id", job.JobID).Logger()
		jobLog.Info().Str("question", job.Question).Msg("Processing analysis job")

		answer, err := eng.Analyze(logger.WithContext(ctx, jobLog), job.Question, nil)
		if err != nil {
			jobLog.Error().Err(err).Msg("Analysis failed")
			return "", err
		}

		jobLog.Info().Int("answer_len", len(answer)).Msg("Analysis completed")
		return answer, nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	handler := handlers.NewRouter(handlers.RouterConfig{
		Ledger:    eng,
		Publisher: jobQueue,
		JobStore:  jobStore,
		Log:       log,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.API.Port).
			Str("source", eng.SourceName()).
			Bool("generator", eng.HasAnalyzer()).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

// newEngine wires the configured source, rules and generator. A generator
// that cannot be created only disables analyses.
func newEngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*engine.Engine, error) {
	classifier := classify.Default()
	if cfg.Ledger.RulesFile != "" {
		c, err := classify.FromFile(cfg.Ledger.RulesFile)
		if err != nil {
			return nil, err
		}
		classifier = c
	}

	src, err := source.Open(cfg.Ledger.Source, source.Options{
		MaxRows: cfg.Ledger.MaxRows,
		UserID:  cfg.Ledger.UserID,
	})
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		Answer: selector.Options{IncludeDescriptionAmounts: cfg.Answer.IncludeDescriptionAmounts},
		TTL:    cfg.Ledger.SnapshotTTL,
	}

	gen, err := generator.NewGemini(ctx, generator.Config{
		Model:          cfg.Generator.Model,
		FallbackModels: cfg.Generator.FallbackModels,
		Temperature:    cfg.Generator.Temperature,
		APIVersion:     cfg.Generator.APIVersion,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Generator unavailable - analyses will be disabled")
	} else {
		opts.Analyzer = gen
	}

	return engine.New(src, classifier, opts), nil
}
