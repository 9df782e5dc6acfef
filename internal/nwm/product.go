package nwm

import (
	"fmt"
	"strings"
	"time"
)

// Product identifies one channel-output product in the fixed NWM catalog.
// The zero value is not a valid product.
type Product int

const (
	productInvalid Product = iota
	AnalysisAssim
	AnalysisAssimNoDA
	ShortRange
	MediumRange
)

// TimeClass partitions products by how file timestamps relate to the cycle.
type TimeClass int

const (
	// ClassSnapshot files are valid exactly at cycle time.
	ClassSnapshot TimeClass = iota
	// ClassShortHorizon files forecast hourly offsets from cycle time.
	ClassShortHorizon
	// ClassExtendedHorizon files forecast multi-day offsets at a coarser stride.
	ClassExtendedHorizon
)

// Spec is the fixed shape of one product: archive naming, publication
// cadence, forecast horizon, and time semantics. Specs are configuration,
// not caller input; every branch on product behavior goes through them.
type Spec struct {
	Name          string
	Class         TimeClass
	FileKind      string
	CycleHours    []int
	ForecastHours []int
	HasNudge      bool
}

var (
	specAnalysisAssim = Spec{
		Name:          "analysis_assim",
		Class:         ClassSnapshot,
		FileKind:      "channel_rt",
		CycleHours:    hourRange(0, 23, 1),
		ForecastHours: []int{0},
		HasNudge:      true,
	}

	// The no-DA analysis runs the model open-loop for comparison against the
	// assimilated run; the archive keeps one cycle per day at 00z.
	specAnalysisAssimNoDA = Spec{
		Name:          "analysis_assim_no_da",
		Class:         ClassSnapshot,
		FileKind:      "channel_rt",
		CycleHours:    []int{0},
		ForecastHours: []int{0},
	}

	specShortRange = Spec{
		Name:          "short_range",
		Class:         ClassShortHorizon,
		FileKind:      "channel_rt",
		CycleHours:    hourRange(0, 23, 1),
		ForecastHours: hourRange(1, 18, 1),
	}

	specMediumRange = Spec{
		Name:          "medium_range",
		Class:         ClassExtendedHorizon,
		FileKind:      "channel_rt_1",
		CycleHours:    []int{0, 6, 12, 18},
		ForecastHours: hourRange(3, 240, 3),
	}
)

// Products returns the full catalog in publication order.
func Products() []Product {
	return []Product{AnalysisAssim, AnalysisAssimNoDA, ShortRange, MediumRange}
}

// ParseProduct maps an archive product name to its catalog entry.
func ParseProduct(name string) (Product, error) {
	for _, p := range Products() {
		if p.Spec().Name == strings.TrimSpace(name) {
			return p, nil
		}
	}
	return productInvalid, configErrorf("unknown product %q", name)
}

// Spec returns the product's fixed shape. The zero Spec marks an invalid
// product.
func (p Product) Spec() Spec {
	switch p {
	case AnalysisAssim:
		return specAnalysisAssim
	case AnalysisAssimNoDA:
		return specAnalysisAssimNoDA
	case ShortRange:
		return specShortRange
	case MediumRange:
		return specMediumRange
	default:
		return Spec{}
	}
}

// Valid reports whether p is a member of the catalog.
func (p Product) Valid() bool { return p.Spec().Name != "" }

func (p Product) String() string {
	if !p.Valid() {
		return fmt.Sprintf("invalid product (%d)", int(p))
	}
	return p.Spec().Name
}

// Variables returns the tracked columns for the product in canonical order.
func (p Product) Variables() []Variable {
	if p.Spec().HasNudge {
		return append(append([]Variable{}, baseVariables...), Nudge)
	}
	return baseVariables
}

// ValidCycleHour reports whether the archive publishes this product for a
// cycle at hour-of-day h.
func (p Product) ValidCycleHour(h int) bool {
	return containsHour(p.Spec().CycleHours, h)
}

// ValidForecastHour reports whether fh is inside the product's horizon.
func (p Product) ValidForecastHour(fh int) bool {
	return containsHour(p.Spec().ForecastHours, fh)
}

// CheckRequest verifies that a (cycle, forecast hour) pair is one the product
// actually publishes.
func (p Product) CheckRequest(cycle time.Time, forecastHour int) error {
	if !p.Valid() {
		return configErrorf("product %d is not in the catalog", int(p))
	}
	if h := cycle.UTC().Hour(); !p.ValidCycleHour(h) {
		return configErrorf("product %s has no cycle at hour %02d (valid: %v)", p, h, p.Spec().CycleHours)
	}
	if !p.ValidForecastHour(forecastHour) {
		return configErrorf("product %s has no forecast hour %d", p, forecastHour)
	}
	return nil
}

// ValidTime resolves the absolute instant a (cycle, forecast hour) request
// describes: cycle time itself for snapshots, cycle plus offset for
// forecasts.
func (p Product) ValidTime(cycle time.Time, forecastHour int) time.Time {
	cycle = cycle.UTC()
	if p.Spec().Class == ClassSnapshot {
		return cycle
	}
	return cycle.Add(time.Duration(forecastHour) * time.Hour)
}

// ForecastToken renders the forecast position segment of an archive file
// name: the fixed snapshot marker "tm00", or a zero-padded hour like "f012".
func (s Spec) ForecastToken(forecastHour int) string {
	if s.Class == ClassSnapshot {
		return "tm00"
	}
	return fmt.Sprintf("f%03d", forecastHour)
}

// FileName renders one archive file name, e.g.
// nwm.t06z.short_range.channel_rt.f012.conus.parquet.
func (p Product) FileName(cycleHour, forecastHour int, domain string) string {
	s := p.Spec()
	return fmt.Sprintf("nwm.t%02dz.%s.%s.%s.%s.parquet",
		cycleHour, s.Name, s.FileKind, s.ForecastToken(forecastHour), domain)
}

// RemotePath renders the archive path below the base URL, e.g.
// nwm.20260105/short_range/nwm.t06z.short_range.channel_rt.f012.conus.parquet.
func (p Product) RemotePath(cycle time.Time, forecastHour int, domain string) string {
	cycle = cycle.UTC()
	return fmt.Sprintf("nwm.%s/%s/%s",
		cycle.Format("20060102"), p.Spec().Name, p.FileName(cycle.Hour(), forecastHour, domain))
}

// PathInfo is one archive file's identity as recovered from its path.
type PathInfo struct {
	Product      Product
	Cycle        time.Time
	ForecastHour int
	Domain       string
}

// ParsePath recovers a file's identity from its slash-separated
// archive-relative path, the inverse of RemotePath. The recovered identity
// must be one the catalog publishes, so paths naming off-cycle hours or
// out-of-horizon offsets are rejected.
func ParsePath(rel string) (PathInfo, error) {
	segs := strings.Split(strings.Trim(rel, "/"), "/")
	if len(segs) != 3 {
		return PathInfo{}, configErrorf("path %q: want nwm.{date}/{product}/{file}", rel)
	}

	date, ok := strings.CutPrefix(segs[0], "nwm.")
	if !ok {
		return PathInfo{}, configErrorf("path %q: directory %q lacks the nwm. prefix", rel, segs[0])
	}
	day, err := time.Parse("20060102", date)
	if err != nil {
		return PathInfo{}, configErrorf("path %q: bad date %q", rel, date)
	}

	product, err := ParseProduct(segs[1])
	if err != nil {
		return PathInfo{}, configErrorf("path %q: %v", rel, err)
	}
	spec := product.Spec()

	parts := strings.Split(segs[2], ".")
	if len(parts) != 7 || parts[0] != "nwm" || parts[6] != "parquet" {
		return PathInfo{}, configErrorf("path %q: file name %q does not match nwm.t{HH}z.{product}.{kind}.{token}.{domain}.parquet", rel, segs[2])
	}
	if parts[2] != spec.Name {
		return PathInfo{}, configErrorf("path %q: file names product %q inside a %s directory", rel, parts[2], spec.Name)
	}
	if parts[3] != spec.FileKind {
		return PathInfo{}, configErrorf("path %q: file kind %q, product %s publishes %q", rel, parts[3], product, spec.FileKind)
	}

	hour, err := parseCycleToken(parts[1])
	if err != nil {
		return PathInfo{}, configErrorf("path %q: %v", rel, err)
	}
	cycle := day.Add(time.Duration(hour) * time.Hour)

	forecastHour, err := parseForecastToken(spec, parts[4])
	if err != nil {
		return PathInfo{}, configErrorf("path %q: %v", rel, err)
	}

	if parts[5] == "" {
		return PathInfo{}, configErrorf("path %q: empty domain segment", rel)
	}
	if err := product.CheckRequest(cycle, forecastHour); err != nil {
		return PathInfo{}, err
	}

	return PathInfo{Product: product, Cycle: cycle, ForecastHour: forecastHour, Domain: parts[5]}, nil
}

func parseCycleToken(tok string) (int, error) {
	if len(tok) != 4 || tok[0] != 't' || tok[3] != 'z' {
		return 0, fmt.Errorf("bad cycle token %q", tok)
	}
	h, ok := digits(tok[1:3])
	if !ok {
		return 0, fmt.Errorf("bad cycle token %q", tok)
	}
	return h, nil
}

func parseForecastToken(s Spec, tok string) (int, error) {
	if s.Class == ClassSnapshot {
		if tok != "tm00" {
			return 0, fmt.Errorf("snapshot products use token tm00, got %q", tok)
		}
		return 0, nil
	}
	if len(tok) != 4 || tok[0] != 'f' {
		return 0, fmt.Errorf("bad forecast token %q", tok)
	}
	fh, ok := digits(tok[1:])
	if !ok {
		return 0, fmt.Errorf("bad forecast token %q", tok)
	}
	return fh, nil
}

// digits parses an unsigned decimal of ASCII digits only. Signed spellings
// like "-1" or "+06" are rejected so a malformed token can never alias a
// neighboring cycle or forecast hour.
func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// publicationLag is how far behind wall clock the archive reliably has a
// complete cycle. Files for an hour appear over the following hour or so.
const publicationLag = 2 * time.Hour

// LatestAvailableCycle returns the most recent cycle the archive can be
// expected to have fully published by now.
func LatestAvailableCycle(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour).Add(-publicationLag)
}

func hourRange(from, to, step int) []int {
	hours := make([]int, 0, (to-from)/step+1)
	for h := from; h <= to; h += step {
		hours = append(hours, h)
	}
	return hours
}

func containsHour(hours []int, h int) bool {
	for _, v := range hours {
		if v == h {
			return true
		}
	}
	return false
}
