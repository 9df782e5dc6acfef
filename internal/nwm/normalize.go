package nwm

import (
	"math"
	"time"
)

// Normalize pivots a wide table into canonical long-form records, resolving
// the product's time semantics: snapshot values are valid at cycle time with
// a nil forecast hour, forecast values at cycle plus the forecast-hour
// offset. A NaN cell emits no record, so absent readings stay absent instead
// of becoming explicit nulls. Output order is fixed, row-major over feature
// IDs with variables in catalog order; identical input yields identical
// output.
func Normalize(table *WideTable, product Product, cycle time.Time, forecastHour int) ([]CanonicalRecord, error) {
	if err := product.CheckRequest(cycle, forecastHour); err != nil {
		return nil, err
	}

	validTime := product.ValidTime(cycle, forecastHour)

	var fh *int
	if product.Spec().Class != ClassSnapshot {
		h := forecastHour
		fh = &h
	}

	source := product.Spec().Name
	vars := product.Variables()
	records := make([]CanonicalRecord, 0, len(table.FeatureIDs)*len(vars))

	for i, id := range table.FeatureIDs {
		for _, v := range vars {
			col, ok := table.Columns[v]
			if !ok || i >= len(col) || math.IsNaN(col[i]) {
				continue
			}
			records = append(records, CanonicalRecord{
				FeatureID:    id,
				ValidTime:    validTime,
				Variable:     v,
				Value:        col[i],
				Source:       source,
				ForecastHour: fh,
			})
		}
	}
	return records, nil
}
