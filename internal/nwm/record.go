package nwm

import "time"

// Variable names one tracked channel-output field.
type Variable string

const (
	Streamflow     Variable = "streamflow"
	Velocity       Variable = "velocity"
	QSfcLatRunoff  Variable = "qSfcLatRunoff"
	QBucket        Variable = "qBucket"
	QBtmVertRunoff Variable = "qBtmVertRunoff"
	Nudge          Variable = "nudge"
)

// baseVariables are tracked for every product. Nudge is appended only for
// the data-assimilated analysis, the one product that carries it.
var baseVariables = []Variable{Streamflow, Velocity, QSfcLatRunoff, QBucket, QBtmVertRunoff}

// WideTable holds one parsed product file: a feature-ID key array plus one
// float column per tracked variable, all the same length. NaN marks a
// missing cell. ReferenceTime is the file's embedded cycle, when present.
type WideTable struct {
	FeatureIDs    []int64
	Columns       map[Variable][]float64
	ReferenceTime *time.Time
}

// Rows returns the number of feature rows.
func (t *WideTable) Rows() int { return len(t.FeatureIDs) }

// Column returns the values for one variable, if the file carries it.
func (t *WideTable) Column(v Variable) ([]float64, bool) {
	col, ok := t.Columns[v]
	return col, ok
}

// CanonicalRecord is the only form persisted to the store: one value for one
// feature at one absolute UTC instant. ForecastHour is nil for snapshot
// products. The store enforces uniqueness on (FeatureID, ValidTime, Variable,
// Source); a later record with the same key overwrites the earlier value.
type CanonicalRecord struct {
	FeatureID    int64
	ValidTime    time.Time
	Variable     Variable
	Value        float64
	Source       string
	ForecastHour *int
}
