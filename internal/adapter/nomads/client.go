// Package nomads fetches National Water Model channel output files from a
// NOMADS-style archive mirror and parses them into wide tables.
package nomads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/nwm-data-ingest-service/internal/nwm"
	"github.com/couchcryptid/nwm-data-ingest-service/internal/observability"
)

// ErrNotPublished reports the routine not-found case: the archive has not
// published the requested cycle yet. Callers retry it under the same bounded
// policy as other transient failures.
var ErrNotPublished = errors.New("cycle not yet published")

// FetchError wraps a network or server failure while downloading a file.
type FetchError struct {
	URL    string
	Status int // zero when the request never got a response
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports malformed or unexpected file contents. It fails the
// attempt without retry; a corrupt file stays corrupt.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying: a not-yet-published
// cycle or a network/server fetch failure.
func IsTransient(err error) bool {
	if errors.Is(err, ErrNotPublished) {
		return true
	}
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}

// Client fetches and parses channel output files, keeping a local copy of
// every download keyed by the file's archive path.
type Client struct {
	baseURL    string
	cacheDir   string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient builds a Client. The cache directory is created on demand; each
// Client owns exactly the directory it was given, there is no process-wide
// default.
func NewClient(baseURL, cacheDir string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cacheDir:   cacheDir,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch returns the parsed wide table for one (product, cycle, forecast
// hour, domain) file, downloading it unless a cached copy exists. force
// bypasses the cache and re-downloads.
func (c *Client) Fetch(ctx context.Context, product nwm.Product, cycle time.Time, forecastHour int, domain string, force bool) (*nwm.WideTable, error) {
	if err := product.CheckRequest(cycle, forecastHour); err != nil {
		return nil, err
	}

	rel := product.RemotePath(cycle, forecastHour, domain)
	local := filepath.Join(c.cacheDir, filepath.FromSlash(rel))

	if !force {
		if _, err := os.Stat(local); err == nil {
			c.metrics.CacheHits.Inc()
			c.logger.Debug("fetch served from cache", "path", local)
			return ReadChannelFile(local, product)
		}
	}

	if err := c.download(ctx, rel, local); err != nil {
		return nil, err
	}
	return ReadChannelFile(local, product)
}

// download streams the remote file to a temporary name and renames it into
// place, so an interrupted download never leaves a half-written cache entry.
func (c *Client) download(ctx context.Context, rel, local string) error {
	url := c.baseURL + "/" + rel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", url, ErrNotPublished)
	case resp.StatusCode != http.StatusOK:
		return &FetchError{URL: url, Status: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(local), filepath.Base(local)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return &FetchError{URL: url, Err: err}
	}

	if err := os.Rename(tmp.Name(), local); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("finalize download: %w", err)
	}

	c.metrics.Downloads.Inc()
	c.metrics.DownloadBytes.Add(float64(n))
	c.metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("downloaded product file", "url", url, "bytes", n)
	return nil
}
