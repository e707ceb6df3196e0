package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SupplierRequests counts outbound supplier API calls by endpoint and
	// outcome ("ok", "retryable", "permanent").
	SupplierRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplier_requests_total",
			Help: "Total outbound supplier API requests",
		},
		[]string{"endpoint", "outcome"},
	)

	// ImportJobs counts import jobs by terminal status.
	ImportJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_jobs_total",
			Help: "Total import jobs by terminal status",
		},
		[]string{"status"},
	)

	// ImportedProducts counts staging rows created by importers.
	ImportedProducts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imported_products_total",
			Help: "Total staging products created by import jobs",
		},
	)

	// ImportJobDuration observes wall time of completed import jobs.
	ImportJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_job_duration_seconds",
			Help:    "Import job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// FxRefreshes counts exchange-rate refresh attempts by outcome.
	FxRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fx_refreshes_total",
			Help: "Total FX refresh attempts",
		},
		[]string{"outcome"},
	)
)
