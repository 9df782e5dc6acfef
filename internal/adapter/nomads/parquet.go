package nomads

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
)

// referenceTimeKey is the file-metadata entry carrying the model cycle the
// file was produced for, as RFC 3339.
const referenceTimeKey = "reference_time"

// channelRow mirrors the column layout of a channel output file. Optional
// columns map to pointer fields; nil means the cell was missing. Files for
// products without data assimilation simply have no nudge column, which
// reads back as nil.
type channelRow struct {
	FeatureID      int64    `parquet:"feature_id"`
	Streamflow     *float64 `parquet:"streamflow,optional"`
	Velocity       *float64 `parquet:"velocity,optional"`
	QSfcLatRunoff  *float64 `parquet:"qSfcLatRunoff,optional"`
	QBucket        *float64 `parquet:"qBucket,optional"`
	QBtmVertRunoff *float64 `parquet:"qBtmVertRunoff,optional"`
	Nudge          *float64 `parquet:"nudge,optional"`
}

const readBatchSize = 8192

// ReadChannelFile reads the feature-ID array and the product's tracked
// variable columns from a file on disk. Columns the product does not track
// are left behind in the parquet layer and never decoded.
func ReadChannelFile(path string, product nwm.Product) (*nwm.WideTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	table := &nwm.WideTable{Columns: map[nwm.Variable][]float64{}}

	if raw, ok := pf.Lookup(referenceTimeKey); ok {
		ref, parseErr := time.Parse(time.RFC3339, raw)
		if parseErr != nil {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("bad %s metadata %q: %w", referenceTimeKey, raw, parseErr)}
		}
		ref = ref.UTC()
		table.ReferenceTime = &ref
	}

	reader := parquet.NewGenericReader[channelRow](pf)
	defer reader.Close()

	rows := make([]channelRow, readBatchSize)
	for {
		n, readErr := reader.Read(rows)
		for i := range rows[:n] {
			appendRow(table, product, &rows[i])
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, &ParseError{Path: path, Err: readErr}
		}
		if n == 0 {
			break
		}
	}

	return table, nil
}

// appendRow copies one parsed row into the table, keeping every tracked
// column the same length as the feature-ID array.
func appendRow(table *nwm.WideTable, product nwm.Product, row *channelRow) {
	table.FeatureIDs = append(table.FeatureIDs, row.FeatureID)
	for _, v := range product.Variables() {
		table.Columns[v] = append(table.Columns[v], cell(row, v))
	}
}

func cell(row *channelRow, v nwm.Variable) float64 {
	var p *float64
	switch v {
	case nwm.Streamflow:
		p = row.Streamflow
	case nwm.Velocity:
		p = row.Velocity
	case nwm.QSfcLatRunoff:
		p = row.QSfcLatRunoff
	case nwm.QBucket:
		p = row.QBucket
	case nwm.QBtmVertRunoff:
		p = row.QBtmVertRunoff
	case nwm.Nudge:
		p = row.Nudge
	}
	if p == nil {
		return math.NaN()
	}
	return *p
}

// WriteChannelFile renders a wide table in the archive's columnar layout,
// embedding the table's reference time when set. The ingest path never
// writes product files; this serves the fixture generator and tests.
func WriteChannelFile(w io.Writer, product nwm.Product, table *nwm.WideTable) error {
	var opts []parquet.WriterOption
	if table.ReferenceTime != nil {
		opts = append(opts, parquet.KeyValueMetadata(referenceTimeKey, table.ReferenceTime.UTC().Format(time.RFC3339)))
	}

	writer := parquet.NewGenericWriter[channelRow](w, opts...)

	rows := make([]channelRow, len(table.FeatureIDs))
	for i, id := range table.FeatureIDs {
		rows[i].FeatureID = id
		for _, v := range product.Variables() {
			col, ok := table.Columns[v]
			if !ok || i >= len(col) || math.IsNaN(col[i]) {
				continue
			}
			setCell(&rows[i], v, col[i])
		}
	}

	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func setCell(row *channelRow, v nwm.Variable, value float64) {
	p := &value
	switch v {
	case nwm.Streamflow:
		row.Streamflow = p
	case nwm.Velocity:
		row.Velocity = p
	case nwm.QSfcLatRunoff:
		row.QSfcLatRunoff = p
	case nwm.QBucket:
		row.QBucket = p
	case nwm.QBtmVertRunoff:
		row.QBtmVertRunoff = p
	case nwm.Nudge:
		row.Nudge = p
	}
}
