package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
)

const createStagingSQL = `
	CREATE TEMP TABLE channel_records_staging
	(LIKE channel_records INCLUDING DEFAULTS)
	ON COMMIT DROP`

const mergeSQL = `
	INSERT INTO channel_records
		(feature_id, valid_time, variable, value, source, forecast_hour, ingested_at)
	SELECT feature_id, valid_time, variable, value, source, forecast_hour, ingested_at
	FROM channel_records_staging
	ON CONFLICT (feature_id, valid_time, variable, source) DO UPDATE SET
		value         = EXCLUDED.value,
		forecast_hour = EXCLUDED.forecast_hour,
		ingested_at   = EXCLUDED.ingested_at`

var stagingColumns = []string{
	"feature_id", "valid_time", "variable", "value", "source", "forecast_hour", "ingested_at",
}

// Load upserts one attempt's records in a single transaction: COPY into a
// session-local staging table, then merge into channel_records keyed on
// (feature_id, valid_time, variable, source). A repeated load of the same
// attempt overwrites values in place and never duplicates rows. Any failure,
// including context cancellation, rolls the whole batch back.
//
// Implements pipeline.Loader.
func (s *Store) Load(ctx context.Context, records []nwm.CanonicalRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createStagingSQL); err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	ingestedAt := nwm.Now().UTC()
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"channel_records_staging"},
		stagingColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{r.FeatureID, r.ValidTime, string(r.Variable), r.Value, r.Source, r.ForecastHour, ingestedAt}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy into staging: %w", err)
	}

	tag, err := tx.Exec(ctx, mergeSQL)
	if err != nil {
		return 0, fmt.Errorf("merge staging: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit load: %w", err)
	}

	merged := tag.RowsAffected()
	s.metrics.RecordsWritten.Add(float64(merged))
	s.metrics.LoadDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("loaded records", "copied", copied, "merged", merged)
	return merged, nil
}
