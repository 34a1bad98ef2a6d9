package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the manage service
type Metrics struct {
	StatusIngestedTotal   prometheus.Counter
	IngestFailuresTotal   *prometheus.CounterVec
	RelayFailuresTotal    prometheus.Counter
	OutboxRetriesTotal    prometheus.Counter
	ReportUploadsTotal    prometheus.Counter
	ReportDownloadsTotal  prometheus.Counter
	StatusQueriesTotal    prometheus.Counter
	RequestDurationSecond *prometheus.HistogramVec
}

// New registers the manage service metrics with the given registerer. The
// server passes prometheus.DefaultRegisterer; tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StatusIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "manage_status_ingested_total",
			Help: "Entry status reports persisted",
		}),
		IngestFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "manage_ingest_failures_total",
			Help: "Failed ingestion calls by error code",
		}, []string{"code"}),
		RelayFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "manage_relay_failures_total",
			Help: "Notification relays that failed after the status was committed",
		}),
		OutboxRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "manage_outbox_retries_total",
			Help: "Outbox delivery attempts made by the worker",
		}),
		ReportUploadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "manage_report_uploads_total",
			Help: "Report files uploaded to the blob store",
		}),
		ReportDownloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "manage_report_downloads_total",
			Help: "Report files served from the blob store",
		}),
		StatusQueriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "manage_status_queries_total",
			Help: "Status query calls served",
		}),
		RequestDurationSecond: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "manage_http_request_duration_seconds",
			Help:    "HTTP request latency distribution in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "method"}),
	}
}
