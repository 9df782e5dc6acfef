// Command genproduct writes a synthetic archive tree of channel output files
// for one model cycle, using the same columnar codec the ingest service
// reads. Point any static file server at the output directory and the
// service will ingest it like the real archive.
//
// Usage:
//
//	go run ./cmd/genproduct \
//	  -out /tmp/nwm-archive \
//	  -cycle 2026-01-05T06 \
//	  -products analysis_assim,short_range \
//	  -features 250
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/adapter/nomads"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/validate"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "root directory for the generated archive tree")
	cycleArg := flag.String("cycle", "", "model cycle, YYYY-MM-DDTHH in UTC")
	productsArg := flag.String("products", "analysis_assim,analysis_assim_no_da,short_range,medium_range", "comma-separated product names")
	domainArg := flag.String("domain", "conus", "spatial domain token")
	features := flag.Int("features", 100, "feature rows per file")
	seed := flag.Uint64("seed", 1, "rng seed; the same seed reproduces the same values")
	flag.Parse()

	if *out == "" || *cycleArg == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out, -cycle")
	}

	cycle, err := time.ParseInLocation("2006-01-02T15", *cycleArg, time.UTC)
	if err != nil {
		return fmt.Errorf("parse -cycle: %w", err)
	}

	domain, err := findDomain(*domainArg)
	if err != nil {
		return err
	}

	var products []nwm.Product
	for _, name := range strings.Split(*productsArg, ",") {
		p, err := nwm.ParseProduct(name)
		if err != nil {
			return err
		}
		products = append(products, p)
	}

	var files, rows int
	for _, product := range products {
		if !product.ValidCycleHour(cycle.Hour()) {
			log.Printf("%s: cycle hour %02d outside publication set, skipping", product, cycle.Hour())
			continue
		}

		hours := product.Spec().ForecastHours
		for _, fh := range hours {
			table := syntheticTable(product, fh, domain, *features, *seed)
			table.ReferenceTime = &cycle

			path := filepath.Join(*out, filepath.FromSlash(product.RemotePath(cycle, fh, domain.Name)))
			if err := writeFile(path, product, table); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			files++
			rows += len(table.FeatureIDs)
		}
		log.Printf("%s: %d files", product, len(hours))
	}

	log.Printf("wrote %d files, %d feature rows under %s", files, rows, *out)
	return nil
}

func findDomain(name string) (validate.DomainRange, error) {
	for _, d := range validate.BuiltinDomains() {
		if d.Name == name {
			return d, nil
		}
	}
	return validate.DomainRange{}, fmt.Errorf("unknown domain %q", name)
}

// syntheticTable builds plausible channel values: non-negative flows with the
// occasional dry channel, velocities well under the quality ceiling, sparse
// missing cells in the bucket column. The rng is seeded per file so
// regenerating an archive reproduces the same values.
func syntheticTable(product nwm.Product, forecastHour int, domain validate.DomainRange, features int, seed uint64) *nwm.WideTable {
	rng := rand.New(rand.NewPCG(seed, uint64(product)<<16|uint64(forecastHour)))

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
			col[i] = syntheticValue(rng, v)
		}
		table.Columns[v] = col
	}
	return table
}

func syntheticValue(rng *rand.Rand, v nwm.Variable) float64 {
	switch v {
	case nwm.Streamflow:
		if rng.IntN(20) == 0 {
			return 0 // dry channel
		}
		return rng.Float64() * 40
	case nwm.Velocity:
		return rng.Float64() * 3
	case nwm.QSfcLatRunoff:
		return rng.Float64() * 0.5
	case nwm.QBucket:
		if rng.IntN(50) == 0 {
			return math.NaN() // sensorless reach, no reading
		}
		return rng.Float64() * 0.3
	case nwm.QBtmVertRunoff:
		return rng.Float64() * 0.2
	case nwm.Nudge:
		return rng.Float64()*2 - 1
	default:
		return rng.Float64()
	}
}

func writeFile(path string, product nwm.Product, table *nwm.WideTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nomads.WriteChannelFile(f, product, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
