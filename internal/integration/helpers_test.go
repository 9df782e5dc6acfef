//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/adapter/nomads"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/validate"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startPostgres runs a throwaway postgres container and returns its
// connection string.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("nwm"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

// testPool opens a direct pool for SQL assertions alongside the store.
func testPool(ctx context.Context, t *testing.T, connStr string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// fullTable builds a table with every tracked column populated and no
// missing cells, so normalized record counts are exact: rows times
// variables. Values stay inside the quality gates.
func fullTable(product nwm.Product, domain validate.DomainRange, features int) *nwm.WideTable {
	table := &nwm.WideTable{
		FeatureIDs: make([]int64, features),
		Columns:    map[nwm.Variable][]float64{},
	}
	for i := range features {
		table.FeatureIDs[i] = domain.MinFeatureID + int64(i*7+3)
	}
	for _, v := range product.Variables() {
		col := make([]float64, features)
		for i := range col {
			switch v {
			case nwm.Streamflow:
				col[i] = float64(i) + 0.5
			case nwm.Velocity:
				col[i] = 0.1 * float64(i%30)
			case nwm.Nudge:
				col[i] = 0.01*float64(i%10) - 0.05
			default:
				col[i] = 0.01 * float64(i+1)
			}
		}
		table.Columns[v] = col
	}
	return table
}

// buildArchive writes a synthetic archive tree for one cycle under root and
// returns the number of files written.
func buildArchive(t *testing.T, root string, products []nwm.Product, cycle time.Time, features int) int {
	t.Helper()

	conus := validate.BuiltinDomains()[0]
	written := 0
	for _, product := range products {
		if !product.ValidCycleHour(cycle.Hour()) {
			continue
		}
		for _, fh := range product.Spec().ForecastHours {
			table := fullTable(product, conus, features)
			table.ReferenceTime = &cycle

			path := filepath.Join(root, filepath.FromSlash(product.RemotePath(cycle, fh, "conus")))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			f, err := os.Create(path)
			require.NoError(t, err)
			require.NoError(t, nomads.WriteChannelFile(f, product, table))
			require.NoError(t, f.Close())
			written++
		}
	}
	return written
}
