// Package pipeline coordinates one ingest run: plan the attempts each
// product owes the cycle, execute them through a bounded worker pool, and
// record every outcome in the audit trail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/adapter/nomads"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/observability"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/validate"
)

// Fetcher retrieves the parsed wide table for one archive file.
type Fetcher interface {
	Fetch(ctx context.Context, product nwm.Product, cycle time.Time, forecastHour int, domain string, force bool) (*nwm.WideTable, error)
}

// Checker runs the domain and quality gates over a fetched table.
type Checker interface {
	Check(table *nwm.WideTable, product nwm.Product, domain string, cycle time.Time, forecastHour int) validate.Result
}

// Loader persists canonical records and reports how many rows were merged.
type Loader interface {
	Load(ctx context.Context, records []nwm.CanonicalRecord) (int64, error)
}

// Auditor records attempt lifecycles and answers the pre-flight
// reachability check.
type Auditor interface {
	Ping(ctx context.Context) error
	StartJob(ctx context.Context, job nwm.Job) (int64, error)
	CompleteJob(ctx context.Context, id int64, records int64) error
	FailJob(ctx context.Context, id int64, cause error) error
}

// Options fixes the shape of one run.
type Options struct {
	Products     []nwm.Product
	Domain       string
	Cycle        time.Time // zero means latest available per the clock
	Workers      int
	FetchRetries int
	ForceRefresh bool
	DryRun       bool
}

// ProductOutcome summarizes one product's attempts within a run.
// FailedHours lists the forecast hours whose attempts failed, in catalog
// order, so a follow-up run can target just the gaps.
type ProductOutcome struct {
	Product     nwm.Product
	Skipped     bool
	Succeeded   int
	Failed      int
	FailedHours []int
	Records     int64
}

// RunReport summarizes a completed run.
type RunReport struct {
	RunID    uuid.UUID
	Cycle    time.Time
	Domain   string
	Products []ProductOutcome
}

// Failures counts failed attempts across every product.
func (r *RunReport) Failures() int {
	n := 0
	for _, p := range r.Products {
		n += p.Failed
	}
	return n
}

// Records sums merged records across every product.
func (r *RunReport) Records() int64 {
	var n int64
	for _, p := range r.Products {
		n += p.Records
	}
	return n
}

// Orchestrator executes ingest runs.
type Orchestrator struct {
	fetcher   Fetcher
	validator Checker
	loader    Loader
	audit     Auditor
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options
	ready     atomic.Bool
}

// New creates an Orchestrator with the given stages and observability.
func New(f Fetcher, v Checker, l Loader, a Auditor, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Orchestrator {
	return &Orchestrator{
		fetcher:   f,
		validator: v,
		loader:    l,
		audit:     a,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil once the pre-flight store check has passed,
// or an error describing why the service is not yet ready.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("store connectivity not verified yet")
	}
	return nil
}

// Run executes one ingest run and returns its report. Attempt failures are
// isolated: they mark their own audit rows failed and the run continues.
// Only an unreachable store or a cancelled context ends the run early.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	runID := uuid.New()

	cycle := o.opts.Cycle
	if cycle.IsZero() {
		cycle = nwm.LatestAvailableCycle(nwm.Now())
	}

	logger := o.logger.With("run_id", runID.String(), "cycle", cycle.Format(time.RFC3339), "domain", o.opts.Domain)
	logger.Info("run started",
		"products", len(o.opts.Products), "workers", o.opts.Workers, "dry_run", o.opts.DryRun)

	o.metrics.RunActive.Set(1)
	defer o.metrics.RunActive.Set(0)

	if err := o.audit.Ping(ctx); err != nil {
		return nil, fmt.Errorf("store unreachable: %w", err)
	}
	o.ready.Store(true)

	report := &RunReport{RunID: runID, Cycle: cycle, Domain: o.opts.Domain}
	for _, product := range o.opts.Products {
		report.Products = append(report.Products, o.runProduct(ctx, logger, runID, product, cycle))
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	logger.Info("run finished", "records", report.Records(), "failures", report.Failures())
	return report, nil
}

// runProduct plans and executes every attempt one product owes the cycle.
// A product whose publication set excludes the cycle hour is skipped whole:
// no attempts, no audit rows.
func (o *Orchestrator) runProduct(ctx context.Context, logger *slog.Logger, runID uuid.UUID, product nwm.Product, cycle time.Time) ProductOutcome {
	outcome := ProductOutcome{Product: product}

	if !product.ValidCycleHour(cycle.UTC().Hour()) {
		o.metrics.SkippedTotal.WithLabelValues(product.String()).Inc()
		logger.Info("product skipped", "product", product.String(), "cycle_hour", cycle.UTC().Hour())
		outcome.Skipped = true
		return outcome
	}

	hours := product.Spec().ForecastHours
	results := make([]attemptResult, len(hours))

	// Attempts never fail the group; the group context only trips on
	// cancellation from above.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i, fh := range hours {
		g.Go(func() error {
			results[i] = o.runAttempt(gctx, logger, runID, product, cycle, fh)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.err != nil {
			outcome.Failed++
			outcome.FailedHours = append(outcome.FailedHours, res.forecastHour)
			continue
		}
		outcome.Succeeded++
		outcome.Records += res.records
	}
	return outcome
}

type attemptResult struct {
	forecastHour int
	records      int64
	err          error
}

// runAttempt carries one (product, forecast hour) file through fetch,
// validate, normalize and load, bracketing it with audit writes.
func (o *Orchestrator) runAttempt(ctx context.Context, logger *slog.Logger, runID uuid.UUID, product nwm.Product, cycle time.Time, forecastHour int) attemptResult {
	res := attemptResult{forecastHour: forecastHour}
	if ctx.Err() != nil {
		res.err = ctx.Err()
		return res
	}

	start := time.Now()

	var fhPtr *int
	if product.Spec().Class != nwm.ClassSnapshot {
		fhPtr = &forecastHour
	}

	jobID, err := o.audit.StartJob(ctx, nwm.Job{
		RunID:        runID,
		Product:      product,
		Cycle:        cycle,
		Domain:       o.opts.Domain,
		ForecastHour: fhPtr,
	})
	if err != nil {
		res.err = fmt.Errorf("start job: %w", err)
		o.metrics.AttemptsTotal.WithLabelValues(product.String(), "failed").Inc()
		logger.Error("attempt not recorded", "product", product.String(), "forecast_hour", forecastHour, "error", err)
		return res
	}

	records, err := o.ingest(ctx, product, cycle, forecastHour)
	o.metrics.AttemptDuration.WithLabelValues(product.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		res.err = err
		o.metrics.AttemptsTotal.WithLabelValues(product.String(), "failed").Inc()
		logger.Error("attempt failed",
			"product", product.String(), "forecast_hour", forecastHour, "error", err)
		if auditErr := o.audit.FailJob(ctx, jobID, err); auditErr != nil {
			logger.Error("mark job failed", "job_id", jobID, "error", auditErr)
		}
		return res
	}

	res.records = records
	o.metrics.AttemptsTotal.WithLabelValues(product.String(), "success").Inc()
	logger.Info("attempt succeeded",
		"product", product.String(), "forecast_hour", forecastHour, "records", records)
	if auditErr := o.audit.CompleteJob(ctx, jobID, records); auditErr != nil {
		logger.Error("mark job complete", "job_id", jobID, "error", auditErr)
	}
	return res
}

// ingest is the attempt body: fetch with bounded retry, gate, normalize,
// load. Dry runs stop after counting what would be written.
func (o *Orchestrator) ingest(ctx context.Context, product nwm.Product, cycle time.Time, forecastHour int) (int64, error) {
	table, err := o.fetchWithRetry(ctx, product, cycle, forecastHour)
	if err != nil {
		return 0, err
	}

	if result := o.validator.Check(table, product, o.opts.Domain, cycle, forecastHour); !result.OK() {
		return 0, result.Err()
	}

	records, err := nwm.Normalize(table, product, cycle, forecastHour)
	if err != nil {
		return 0, err
	}

	if o.opts.DryRun {
		return int64(len(records)), nil
	}
	return o.loader.Load(ctx, records)
}

// Exponential backoff: start at 200ms, double each retry, cap at 5s. Keeps
// retry storms short while avoiding tight loops during archive outages.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// fetchWithRetry retries transient fetch failures (unpublished cycles,
// network and server errors) up to the configured budget. Config and parse
// errors surface immediately.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, product nwm.Product, cycle time.Time, forecastHour int) (*nwm.WideTable, error) {
	backoff := initialBackoff
	for try := 0; ; try++ {
		table, err := o.fetcher.Fetch(ctx, product, cycle, forecastHour, o.opts.Domain, o.opts.ForceRefresh)
		if err == nil {
			return table, nil
		}
		if !nomads.IsTransient(err) || try >= o.opts.FetchRetries {
			return nil, err
		}
		o.metrics.FetchRetries.Inc()
		if !sleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
