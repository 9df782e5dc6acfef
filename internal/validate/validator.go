// Package validate gates parsed product files before they are normalized and
// loaded. Identity checks (right product, right domain) are fatal and stop
// checking early; quality and temporal checks are aggregated so one bad
// column never masks another.
package validate

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
)

// Check names as they appear in violation maps and audit rows.
const (
	CheckProduct     = "product_identity"
	CheckDomain      = "domain_membership"
	CheckColumns     = "required_columns"
	CheckNegatives   = "negative_values"
	CheckVelocity    = "velocity_ceiling"
	CheckMissingness = "missingness"
	CheckZeroFlow    = "zero_streamflow"
	CheckDuplicates  = "duplicate_features"
	CheckRefTime     = "reference_time"
)

const (
	// domainSampleSize bounds the membership scan. Full columns run to
	// millions of rows; a fixed sample catches a wrong-domain file just as
	// reliably.
	domainSampleSize = 1000

	// domainSampleSeed pins the sample so revalidating one file reports the
	// same offending IDs.
	domainSampleSeed = 1

	// maxPlausibleVelocity in m/s. Observed river currents top out in single
	// digits; values above this mean unit or sensor trouble.
	maxPlausibleVelocity = 15.0

	// maxMissingFraction flags a column that is mostly fill values.
	maxMissingFraction = 0.80

	// maxZeroFlowFraction flags a streamflow column that parsed to almost
	// all exact zeros, which in practice means a scaling defect upstream.
	maxZeroFlowFraction = 0.99

	// maxReportedIDs caps per-check ID listings so audit rows stay readable.
	maxReportedIDs = 10
)

// Violations maps a check name to that check's findings.
type Violations map[string][]string

// Result is the outcome of validating one wide table.
type Result struct {
	Violations Violations
}

// OK reports whether every check passed.
func (r Result) OK() bool { return len(r.Violations) == 0 }

// Err returns nil for a clean result, otherwise an *Error carrying the full
// violation map.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Violations: r.Violations}
}

// Error preserves the violation map so audit rows can record every finding,
// not just the first.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string {
	names := make([]string, 0, len(e.Violations))
	for name := range e.Violations {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Violations[name], "; ")))
	}
	return "validation failed: " + strings.Join(parts, " | ")
}

// Validator runs the domain and quality gates.
type Validator struct {
	domains map[string]DomainRange
	logger  *slog.Logger
}

// New builds a Validator over the given domain table.
func New(domains []DomainRange, logger *slog.Logger) *Validator {
	m := make(map[string]DomainRange, len(domains))
	for _, d := range domains {
		m[d.Name] = d
	}
	return &Validator{domains: m, logger: logger}
}

// Check runs every gate against one parsed product file.
func (v *Validator) Check(table *nwm.WideTable, product nwm.Product, domain string, cycle time.Time, forecastHour int) Result {
	res := Result{Violations: Violations{}}

	if !product.Valid() {
		res.add(CheckProduct, fmt.Sprintf("product %d is not in the catalog", int(product)))
		return res
	}

	if msgs := v.checkDomain(table, domain); len(msgs) > 0 {
		res.Violations[CheckDomain] = msgs
		return res
	}

	v.checkColumns(&res, table, product)
	v.checkValues(&res, table)
	v.checkDuplicates(&res, table)
	v.checkReferenceTime(&res, table, cycle)

	if !res.OK() {
		v.logger.Warn("validation failed",
			"product", product.Spec().Name,
			"domain", domain,
			"forecast_hour", forecastHour,
			"failed_checks", len(res.Violations),
		)
	}
	return res
}

// checkDomain samples feature IDs against the domain's configured range.
func (v *Validator) checkDomain(table *nwm.WideTable, domain string) []string {
	r, ok := v.domains[domain]
	if !ok {
		return []string{fmt.Sprintf("no configured range for domain %q", domain)}
	}

	ids := table.FeatureIDs
	n := len(ids)
	if n == 0 {
		return nil // emptiness is a column finding, not a domain one
	}

	sample := n
	if sample > domainSampleSize {
		sample = domainSampleSize
	}
	rng := rand.New(rand.NewPCG(domainSampleSeed, 0))

	var msgs []string
	extra := 0
	for i := 0; i < sample; i++ {
		id := ids[i]
		if n > domainSampleSize {
			id = ids[rng.IntN(n)]
		}
		if r.Contains(id) {
			continue
		}
		if len(msgs) < maxReportedIDs {
			msgs = append(msgs, fmt.Sprintf("feature %d outside %s range [%d, %d]", id, r.Name, r.MinFeatureID, r.MaxFeatureID))
		} else {
			extra++
		}
	}
	if extra > 0 {
		msgs = append(msgs, fmt.Sprintf("and %d more sampled IDs out of range", extra))
	}
	return msgs
}

func (v *Validator) checkColumns(res *Result, table *nwm.WideTable, product nwm.Product) {
	if table.Rows() == 0 {
		res.add(CheckColumns, "file contains no feature rows")
		return
	}
	for _, name := range product.Variables() {
		col, ok := table.Column(name)
		if !ok || len(col) == 0 {
			res.add(CheckColumns, fmt.Sprintf("required column %s is missing", name))
			continue
		}
		switch missing := missingFraction(col); {
		case missing == 1:
			res.add(CheckColumns, fmt.Sprintf("required column %s is entirely null", name))
		case missing > maxMissingFraction:
			res.add(CheckMissingness, fmt.Sprintf("column %s is %.1f%% null (ceiling %.0f%%)",
				name, missing*100, maxMissingFraction*100))
		}
	}
}

func (v *Validator) checkValues(res *Result, table *nwm.WideTable) {
	if flow, ok := table.Column(nwm.Streamflow); ok {
		if n := countNegative(flow); n > 0 {
			res.add(CheckNegatives, fmt.Sprintf("streamflow has %d negative values", n))
		}
		if frac, n := zeroFraction(flow); n > 0 && frac > maxZeroFlowFraction {
			res.add(CheckZeroFlow, fmt.Sprintf("%.1f%% of streamflow values are exactly zero, likely a parse defect", frac*100))
		}
	}
	if vel, ok := table.Column(nwm.Velocity); ok {
		if n := countNegative(vel); n > 0 {
			res.add(CheckNegatives, fmt.Sprintf("velocity has %d negative values", n))
		}
		if n := countAbove(vel, maxPlausibleVelocity); n > 0 {
			res.add(CheckVelocity, fmt.Sprintf("velocity has %d values above %.0f m/s", n, maxPlausibleVelocity))
		}
	}
}

func (v *Validator) checkDuplicates(res *Result, table *nwm.WideTable) {
	seen := make(map[int64]struct{}, len(table.FeatureIDs))
	var dups []string
	extra := 0
	for _, id := range table.FeatureIDs {
		if _, dup := seen[id]; dup {
			if len(dups) < maxReportedIDs {
				dups = append(dups, fmt.Sprintf("%d", id))
			} else {
				extra++
			}
		}
		seen[id] = struct{}{}
	}
	if len(dups) > 0 {
		msg := "duplicate feature IDs: " + strings.Join(dups, ", ")
		if extra > 0 {
			msg += fmt.Sprintf(" and %d more", extra)
		}
		res.add(CheckDuplicates, msg)
	}
}

func (v *Validator) checkReferenceTime(res *Result, table *nwm.WideTable, cycle time.Time) {
	if table.ReferenceTime == nil {
		return
	}
	if !table.ReferenceTime.Equal(cycle) {
		res.add(CheckRefTime, fmt.Sprintf("embedded reference time %s does not match requested cycle %s",
			table.ReferenceTime.UTC().Format(time.RFC3339), cycle.UTC().Format(time.RFC3339)))
	}
}

func (r *Result) add(check, msg string) {
	r.Violations[check] = append(r.Violations[check], msg)
}

func missingFraction(col []float64) float64 {
	if len(col) == 0 {
		return 1
	}
	missing := 0
	for _, v := range col {
		if math.IsNaN(v) {
			missing++
		}
	}
	return float64(missing) / float64(len(col))
}

func countNegative(col []float64) int {
	n := 0
	for _, v := range col {
		if v < 0 { // NaN compares false
			n++
		}
	}
	return n
}

func countAbove(col []float64, ceiling float64) int {
	n := 0
	for _, v := range col {
		if v > ceiling {
			n++
		}
	}
	return n
}

// zeroFraction returns the share of exact zeros among non-missing values and
// the non-missing count.
func zeroFraction(col []float64) (float64, int) {
	zeros, present := 0, 0
	for _, v := range col {
		if math.IsNaN(v) {
			continue
		}
		present++
		if v == 0 {
			zeros++
		}
	}
	if present == 0 {
		return 0, 0
	}
	return float64(zeros) / float64(present), present
}
