package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/nwm-data-ingest-service/internal/adapter/http"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/adapter/nomads"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/adapter/postgres"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/config"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/observability"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/pipeline"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/validate"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL, metrics, logger)
	if err != nil {
		logger.Error("store unavailable", "error", err)
		return 1
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("schema setup failed", "error", err)
		return 1
	}

	domains := validate.BuiltinDomains()
	if cfg.DomainRangesFromDB {
		if domains, err = store.DomainRanges(ctx); err != nil {
			logger.Error("failed to load domain ranges", "error", err)
			return 1
		}
		logger.Info("domain ranges loaded from store", "count", len(domains))
	}

	fetcher := nomads.NewClient(cfg.BaseURL, cfg.CacheDir, cfg.FetchTimeout, metrics, logger)
	validator := validate.New(domains, logger)

	orch := pipeline.New(fetcher, validator, store, store, logger, metrics, pipeline.Options{
		Products:     cfg.Products,
		Domain:       cfg.Domain,
		Cycle:        cfg.CycleTime,
		Workers:      cfg.Workers,
		FetchRetries: cfg.FetchRetries,
		ForceRefresh: cfg.ForceRefresh,
		DryRun:       cfg.DryRun,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, orch, logger)

	// Serve probes and metrics for the duration of the run.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	report, runErr := orch.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	if runErr != nil {
		logger.Error("run aborted", "error", runErr)
		return 1
	}

	for _, p := range report.Products {
		if p.Skipped {
			logger.Info("product outcome", "product", p.Product.String(), "outcome", "skipped")
			continue
		}
		if p.Failed > 0 {
			logger.Info("product outcome",
				"product", p.Product.String(),
				"succeeded", p.Succeeded,
				"failed", p.Failed,
				"failed_hours", p.FailedHours,
				"records", p.Records)
			continue
		}
		logger.Info("product outcome",
			"product", p.Product.String(),
			"succeeded", p.Succeeded,
			"failed", p.Failed,
			"records", p.Records)
	}

	if failures := report.Failures(); failures > 0 {
		logger.Error("run completed with failures", "failures", failures)
		return 1
	}

	logger.Info("run complete", "records", report.Records())
	return 0
}
