package nwm

import (
	"time"

	"github.com/google/uuid"
)

// Job identifies one ingest attempt for the audit trail. ForecastHour is nil
// for snapshot products.
type Job struct {
	RunID        uuid.UUID
	Product      Product
	Cycle        time.Time
	Domain       string
	ForecastHour *int
}
