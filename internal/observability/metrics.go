package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest pipeline.
type Metrics struct {
	RunActive     prometheus.Gauge
	AttemptsTotal *prometheus.CounterVec // labels: product, outcome={success,failed}
	SkippedTotal  *prometheus.CounterVec // labels: product

	RecordsWritten  prometheus.Counter
	AttemptDuration *prometheus.HistogramVec // labels: product
	LoadDuration    prometheus.Histogram

	// Source client metrics.
	Downloads        prometheus.Counter
	CacheHits        prometheus.Counter
	DownloadBytes    prometheus.Counter
	DownloadDuration prometheus.Histogram
	FetchRetries     prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nwm_ingest",
			Name:      "run_active",
			Help:      "1 while an ingest run is executing, 0 otherwise.",
		}),
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwm_ingest",
			Name:      "attempts_total",
			Help:      "Ingest attempts by product and outcome.",
		}, []string{"product", "outcome"}),
		SkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nwm_ingest",
			Name:      "products_skipped_total",
			Help:      "Products skipped because the cycle hour is outside their publication set.",
		}, []string{"product"}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm_ingest",
			Name:      "records_written_total",
			Help:      "Canonical records merged into the store.",
		}),
		AttemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nwm_ingest",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of a complete fetch-validate-normalize-load attempt.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"product"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwm_ingest",
			Name:      "load_duration_seconds",
			Help:      "Duration of one staged bulk merge transaction.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		Downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm_ingest",
			Name:      "downloads_total",
			Help:      "Product files downloaded from the archive.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm_ingest",
			Name:      "cache_hits_total",
			Help:      "Fetches served from the local file cache.",
		}),
		DownloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm_ingest",
			Name:      "download_bytes_total",
			Help:      "Bytes downloaded from the archive.",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nwm_ingest",
			Name:      "download_duration_seconds",
			Help:      "Duration of one archive file download.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nwm_ingest",
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts retried after a transient failure.",
		}),
	}

	prometheus.MustRegister(
		m.RunActive,
		m.AttemptsTotal,
		m.SkippedTotal,
		m.RecordsWritten,
		m.AttemptDuration,
		m.LoadDuration,
		m.Downloads,
		m.CacheHits,
		m.DownloadBytes,
		m.DownloadDuration,
		m.FetchRetries,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunActive:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "nwm_ingest", Name: "run_active"}),
		AttemptsTotal:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "nwm_ingest", Name: "attempts_total"}, []string{"product", "outcome"}),
		SkippedTotal:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "nwm_ingest", Name: "products_skipped_total"}, []string{"product"}),
		RecordsWritten:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm_ingest", Name: "records_written_total"}),
		AttemptDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "nwm_ingest", Name: "attempt_duration_seconds"}, []string{"product"}),
		LoadDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "nwm_ingest", Name: "load_duration_seconds"}),
		Downloads:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm_ingest", Name: "downloads_total"}),
		CacheHits:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm_ingest", Name: "cache_hits_total"}),
		DownloadBytes:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm_ingest", Name: "download_bytes_total"}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "nwm_ingest", Name: "download_duration_seconds"}),
		FetchRetries:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "nwm_ingest", Name: "fetch_retries_total"}),
	}
}
