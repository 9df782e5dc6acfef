//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/adapter/postgres"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/observability"
)

func newStore(ctx context.Context, t *testing.T, connStr string) *postgres.Store {
	t.Helper()
	store, err := postgres.New(ctx, connStr, observability.NewMetricsForTesting(), discardLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

// TestStore_LoadUpsertSemantics verifies the staging-and-merge loader:
// re-loading a record with the same key overwrites its value and refreshes
// ingested_at instead of duplicating the row.
func TestStore_LoadUpsertSemantics(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := startPostgres(ctx, t)
	store := newStore(ctx, t, connStr)
	pool := testPool(ctx, t, connStr)

	t0 := time.Date(2026, time.January, 5, 12, 0, 0, 0, time.UTC)
	nwm.SetClock(clockwork.NewFakeClockAt(t0))
	t.Cleanup(func() { nwm.SetClock(nil) })

	fh := 6
	rec := nwm.CanonicalRecord{
		FeatureID:    42,
		ValidTime:    time.Date(2026, time.January, 5, 6, 0, 0, 0, time.UTC),
		Variable:     nwm.Streamflow,
		Value:        1.23,
		Source:       "short_range",
		ForecastHour: &fh,
	}

	n, err := store.Load(ctx, []nwm.CanonicalRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Same key, corrected value, later clock.
	rec.Value = 4.56
	nwm.SetClock(clockwork.NewFakeClockAt(t0.Add(time.Hour)))

	n, err = store.Load(ctx, []nwm.CanonicalRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM channel_records`).Scan(&count))
	assert.Equal(t, 1, count, "upsert must not duplicate the row")

	var value float64
	var ingestedAt time.Time
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT value, ingested_at FROM channel_records WHERE feature_id = 42
	`).Scan(&value, &ingestedAt))
	assert.Equal(t, 4.56, value, "the later load wins")
	assert.True(t, ingestedAt.Equal(t0.Add(time.Hour)), "ingested_at reflects the overwrite")
}

// TestStore_LoadRollsBackAtomically feeds the loader a batch whose merge
// cannot complete and verifies nothing becomes visible.
func TestStore_LoadRollsBackAtomically(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := startPostgres(ctx, t)
	store := newStore(ctx, t, connStr)
	pool := testPool(ctx, t, connStr)

	rec := nwm.CanonicalRecord{
		FeatureID: 7,
		ValidTime: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
		Variable:  nwm.Velocity,
		Value:     0.5,
		Source:    "analysis_assim",
	}

	// Two staged rows with the same key make ON CONFLICT DO UPDATE abort.
	_, err := store.Load(ctx, []nwm.CanonicalRecord{rec, rec})
	require.Error(t, err)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM channel_records`).Scan(&count))
	assert.Equal(t, 0, count, "a failed merge leaves no partial rows")
}

func TestStore_AuditLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := startPostgres(ctx, t)
	store := newStore(ctx, t, connStr)
	pool := testPool(ctx, t, connStr)

	runID := uuid.New()
	cycle := time.Date(2026, time.January, 5, 6, 0, 0, 0, time.UTC)
	fh := 12

	id, err := store.StartJob(ctx, nwm.Job{
		RunID:        runID,
		Product:      nwm.ShortRange,
		Cycle:        cycle,
		Domain:       "conus",
		ForecastHour: &fh,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	var status string
	var completed *time.Time
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT status, completed_at FROM ingestion_jobs WHERE id = $1
	`, id).Scan(&status, &completed))
	assert.Equal(t, postgres.StatusRunning, status)
	assert.Nil(t, completed, "running jobs have no completion time")

	require.NoError(t, store.CompleteJob(ctx, id, 125))

	var records int64
	var durationMS *int64
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT status, records_ingested, completed_at, duration_ms FROM ingestion_jobs WHERE id = $1
	`, id).Scan(&status, &records, &completed, &durationMS))
	assert.Equal(t, postgres.StatusSuccess, status)
	assert.Equal(t, int64(125), records)
	assert.NotNil(t, completed)
	assert.NotNil(t, durationMS)

	// A failing attempt keeps its cause.
	id2, err := store.StartJob(ctx, nwm.Job{RunID: runID, Product: nwm.AnalysisAssim, Cycle: cycle, Domain: "conus"})
	require.NoError(t, err)
	require.NoError(t, store.FailJob(ctx, id2, assert.AnError))

	var msg string
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT status, error_message FROM ingestion_jobs WHERE id = $1
	`, id2).Scan(&status, &msg))
	assert.Equal(t, postgres.StatusFailed, status)
	assert.Equal(t, assert.AnError.Error(), msg)

	// Finishing a row that does not exist is an error, not a silent no-op.
	err = store.CompleteJob(ctx, 999_999, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such row")
}

func TestStore_DomainRangesSeeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	connStr := startPostgres(ctx, t)
	store := newStore(ctx, t, connStr)
	pool := testPool(ctx, t, connStr)

	ranges, err := store.DomainRanges(ctx)
	require.NoError(t, err)
	require.Len(t, ranges, 3, "schema setup seeds the compiled-in domains")

	names := map[string]bool{}
	for _, r := range ranges {
		names[r.Name] = true
	}
	assert.True(t, names["conus"] && names["hawaii"] && names["puertorico"])

	// Operator edits survive a re-run of schema setup.
	_, err = pool.Exec(ctx, `UPDATE domain_ranges SET max_feature_id = 5 WHERE name = 'conus'`)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	ranges, err = store.DomainRanges(ctx)
	require.NoError(t, err)
	for _, r := range ranges {
		if r.Name == "conus" {
			assert.Equal(t, int64(5), r.MaxFeatureID, "seeding must not clobber edited rows")
		}
	}
}
