package nomads

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
)

func writeFixture(t *testing.T, product nwm.Product, table *nwm.WideTable) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteChannelFile(f, product, table))
	require.NoError(t, f.Close())
	return path
}

func TestReadChannelFile_ReferenceTime(t *testing.T) {
	ref := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	path := writeFixture(t, nwm.ShortRange, &nwm.WideTable{
		FeatureIDs: []int64{7},
		Columns: map[nwm.Variable][]float64{
			nwm.Streamflow:     {2.5},
			nwm.Velocity:       {0.3},
			nwm.QSfcLatRunoff:  {0.1},
			nwm.QBucket:        {0.1},
			nwm.QBtmVertRunoff: {0.1},
		},
		ReferenceTime: &ref,
	})

	table, err := ReadChannelFile(path, nwm.ShortRange)
	require.NoError(t, err)
	require.NotNil(t, table.ReferenceTime)
	assert.True(t, table.ReferenceTime.Equal(ref))
}

func TestReadChannelFile_NoReferenceTime(t *testing.T) {
	path := writeFixture(t, nwm.ShortRange, &nwm.WideTable{
		FeatureIDs: []int64{7},
		Columns: map[nwm.Variable][]float64{
			nwm.Streamflow:     {2.5},
			nwm.Velocity:       {0.3},
			nwm.QSfcLatRunoff:  {0.1},
			nwm.QBucket:        {0.1},
			nwm.QBtmVertRunoff: {0.1},
		},
	})

	table, err := ReadChannelFile(path, nwm.ShortRange)
	require.NoError(t, err)
	assert.Nil(t, table.ReferenceTime, "files without the metadata entry parse with no reference time")
}

func TestReadChannelFile_BadReferenceTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad-ref.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := parquet.NewGenericWriter[channelRow](f, parquet.KeyValueMetadata(referenceTimeKey, "next tuesday"))
	flow := 1.0
	_, err = w.Write([]channelRow{{FeatureID: 7, Streamflow: &flow}})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = ReadChannelFile(path, nwm.ShortRange)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), referenceTimeKey)
}

func TestReadChannelFile_MissingCellsReadAsNaN(t *testing.T) {
	path := writeFixture(t, nwm.ShortRange, &nwm.WideTable{
		FeatureIDs: []int64{1, 2},
		Columns: map[nwm.Variable][]float64{
			nwm.Streamflow:     {1.0, math.NaN()},
			nwm.Velocity:       {0.2, 0.4},
			nwm.QSfcLatRunoff:  {0.1, 0.1},
			nwm.QBucket:        {0.1, 0.1},
			nwm.QBtmVertRunoff: {0.1, 0.1},
		},
	})

	table, err := ReadChannelFile(path, nwm.ShortRange)
	require.NoError(t, err)

	flow, ok := table.Column(nwm.Streamflow)
	require.True(t, ok)
	require.Len(t, flow, 2)
	assert.Equal(t, 1.0, flow[0])
	assert.True(t, math.IsNaN(flow[1]), "an absent cell reads back as NaN, not zero")
}

func TestReadChannelFile_ColumnsMatchProduct(t *testing.T) {
	ref := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	path := writeFixture(t, nwm.AnalysisAssim, &nwm.WideTable{
		FeatureIDs: []int64{42},
		Columns: map[nwm.Variable][]float64{
			nwm.Streamflow:     {1.23},
			nwm.Velocity:       {0.45},
			nwm.QSfcLatRunoff:  {0.1},
			nwm.QBucket:        {0.1},
			nwm.QBtmVertRunoff: {0.1},
			nwm.Nudge:          {-0.5},
		},
		ReferenceTime: &ref,
	})

	table, err := ReadChannelFile(path, nwm.AnalysisAssim)
	require.NoError(t, err)
	assert.Len(t, table.Columns, 6, "assimilated products track the nudge column")

	// The same file read for a product without nudge keeps only the base set.
	table, err = ReadChannelFile(path, nwm.AnalysisAssimNoDA)
	require.NoError(t, err)
	assert.Len(t, table.Columns, 5)
	_, ok := table.Column(nwm.Nudge)
	assert.False(t, ok)
}

func TestReadChannelFile_NotParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.parquet")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := ReadChannelFile(path, nwm.ShortRange)
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}
