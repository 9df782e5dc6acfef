// Command checkfile verifies channel-output parquet files on disk against
// the product catalog and the ingest quality gates. It walks an archive
// tree (a download cache, a genproduct fixture tree, or a manually synced
// day), recovers each file's identity from its path, and runs the same
// checks the pipeline applies before loading.
//
// Usage:
//
//	go run ./cmd/checkfile -root /var/cache/nwm
//
// The exit code is non-zero when any file fails.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/adapter/nomads"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/validate"
)

// fileReport holds the outcome for one archive file.
type fileReport struct {
	rel        string
	rows       int
	err        error
	violations validate.Violations
}

func (r *fileReport) passed() bool { return r.err == nil && len(r.violations) == 0 }

func main() {
	root := flag.String("root", "", "archive tree to check (cache directory or fixture root)")
	flag.Parse()

	if *root == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*root); code != 0 {
		os.Exit(code)
	}
}

func run(root string) int {
	// The report below covers everything the validator would log.
	checker := validate.New(validate.BuiltinDomains(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	reports, err := checkTree(root, checker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: walk %s: %v\n", root, err)
		return 1
	}
	if len(reports) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no parquet files under %s\n", root)
		return 1
	}

	fmt.Println("=== Channel File Integrity Check ===")
	fmt.Println()

	failed := 0
	rows := 0
	for _, r := range reports {
		status := "\033[32mPASS\033[0m"
		if !r.passed() {
			status = "\033[31mFAIL\033[0m"
			failed++
		}
		fmt.Printf("  %-76s %s\n", r.rel, status)
		rows += r.rows
	}

	fmt.Println()
	fmt.Printf("Files: %d checked, %d failed. Feature rows: %d\n", len(reports), failed, rows)

	// Print detailed findings.
	for _, r := range reports {
		if r.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", r.rel)
		if r.err != nil {
			fmt.Printf("  %v\n", r.err)
			continue
		}
		names := make([]string, 0, len(r.violations))
		for name := range r.violations {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, msg := range r.violations[name] {
				fmt.Printf("  [%s] %s\n", name, msg)
			}
		}
	}

	if failed > 0 {
		fmt.Println("\nCheck FAILED.")
		return 1
	}
	fmt.Println("\nAll files passed.")
	return 0
}

// checkTree walks root and checks every parquet file, in path order.
func checkTree(root string, checker *validate.Validator) ([]*fileReport, error) {
	var reports []*fileReport
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".parquet") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		reports = append(reports, checkOne(path, filepath.ToSlash(rel), checker))
		return nil
	})
	return reports, err
}

// checkOne recovers the file's identity from its archive-relative path and
// runs the pipeline's validation gates against its contents.
func checkOne(path, rel string, checker *validate.Validator) *fileReport {
	r := &fileReport{rel: rel}

	info, err := nwm.ParsePath(rel)
	if err != nil {
		r.err = err
		return r
	}

	table, err := nomads.ReadChannelFile(path, info.Product)
	if err != nil {
		r.err = err
		return r
	}
	r.rows = table.Rows()

	res := checker.Check(table, info.Product, info.Domain, info.Cycle, info.ForecastHour)
	r.violations = res.Violations
	return r
}
