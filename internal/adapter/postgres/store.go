// Package postgres persists canonical channel records and the per-attempt
// audit trail. One Store wraps a pgx connection pool; the loader and the
// audit log share it.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/observability"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/validate"
)

// Store holds the connection pool and the handles the loader and audit
// methods hang off.
type Store struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New opens a pool against databaseURL and verifies connectivity with a
// ping, so a bad URL or unreachable server fails at startup rather than on
// the first attempt.
func New(ctx context.Context, databaseURL string, metrics *observability.Metrics, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, metrics: metrics, logger: logger}, nil
}

// Ping reports whether the store is reachable. The readiness probe and the
// orchestrator's pre-flight check both call it.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS channel_records (
		feature_id    BIGINT           NOT NULL,
		valid_time    TIMESTAMPTZ      NOT NULL,
		variable      TEXT             NOT NULL,
		value         DOUBLE PRECISION NOT NULL,
		source        TEXT             NOT NULL,
		forecast_hour SMALLINT,
		ingested_at   TIMESTAMPTZ      NOT NULL,
		PRIMARY KEY (feature_id, valid_time, variable, source)
	)`,
	`CREATE TABLE IF NOT EXISTS ingestion_jobs (
		id               BIGSERIAL PRIMARY KEY,
		run_id           UUID        NOT NULL,
		product          TEXT        NOT NULL,
		cycle_time       TIMESTAMPTZ NOT NULL,
		domain           TEXT        NOT NULL,
		forecast_hour    SMALLINT,
		status           TEXT        NOT NULL,
		records_ingested BIGINT      NOT NULL DEFAULT 0,
		error_message    TEXT,
		started_at       TIMESTAMPTZ NOT NULL,
		completed_at     TIMESTAMPTZ,
		duration_ms      BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS ingestion_jobs_run_id_idx ON ingestion_jobs (run_id)`,
	`CREATE TABLE IF NOT EXISTS domain_ranges (
		name           TEXT PRIMARY KEY,
		min_feature_id BIGINT NOT NULL,
		max_feature_id BIGINT NOT NULL
	)`,
}

// EnsureSchema creates the tables if they do not exist and seeds
// domain_ranges with the compiled-in bands. Seeding never overwrites rows an
// operator has edited.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	for _, d := range validate.BuiltinDomains() {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO domain_ranges (name, min_feature_id, max_feature_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO NOTHING`,
			d.Name, d.MinFeatureID, d.MaxFeatureID)
		if err != nil {
			return fmt.Errorf("seed domain range %s: %w", d.Name, err)
		}
	}
	return nil
}

// DomainRanges loads the domain table from the store for deployments that
// maintain it there instead of using the compiled-in bands.
func (s *Store) DomainRanges(ctx context.Context) ([]validate.DomainRange, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, min_feature_id, max_feature_id FROM domain_ranges ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query domain ranges: %w", err)
	}
	defer rows.Close()

	var ranges []validate.DomainRange
	for rows.Next() {
		var r validate.DomainRange
		if err := rows.Scan(&r.Name, &r.MinFeatureID, &r.MaxFeatureID); err != nil {
			return nil, fmt.Errorf("scan domain range: %w", err)
		}
		ranges = append(ranges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read domain ranges: %w", err)
	}
	if len(ranges) == 0 {
		return nil, errors.New("domain_ranges table is empty")
	}
	return ranges, nil
}
