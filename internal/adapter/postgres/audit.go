package postgres

import (
	"context"
	"fmt"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
)

// Job statuses. A row is inserted as running and moves exactly once to
// success or failed.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// StartJob records the attempt as running and returns the audit row id.
//
// Implements pipeline.Auditor.
func (s *Store) StartJob(ctx context.Context, job nwm.Job) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO ingestion_jobs
			(run_id, product, cycle_time, domain, forecast_hour, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		job.RunID, job.Product.String(), job.Cycle.UTC(), job.Domain, job.ForecastHour,
		StatusRunning, nwm.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert ingestion job: %w", err)
	}
	return id, nil
}

// CompleteJob marks the attempt successful with the merged record count.
func (s *Store) CompleteJob(ctx context.Context, id int64, records int64) error {
	return s.finishJob(ctx, id, StatusSuccess, records, "")
}

// FailJob marks the attempt failed, recording the cause verbatim.
func (s *Store) FailJob(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.finishJob(ctx, id, StatusFailed, 0, msg)
}

func (s *Store) finishJob(ctx context.Context, id int64, status string, records int64, message string) error {
	completed := nwm.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_jobs
		SET status           = $2,
		    records_ingested = $3,
		    error_message    = NULLIF($4, ''),
		    completed_at     = $5,
		    duration_ms      = (EXTRACT(EPOCH FROM ($5::timestamptz - started_at)) * 1000)::BIGINT
		WHERE id = $1`,
		id, status, records, message, completed)
	if err != nil {
		return fmt.Errorf("finish ingestion job %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish ingestion job %d: no such row", id)
	}
	return nil
}
