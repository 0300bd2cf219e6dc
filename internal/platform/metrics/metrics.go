package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. Every method is safe
// to call on a nil receiver so components can run without metrics wired.
type Metrics struct {
	// Credential refreshes by result ("success", "failure")
	TokenRefreshes *prometheus.CounterVec
	// Expiry of the current token as a unix timestamp, when it is a JWT
	TokenExpiry prometheus.Gauge

	// Page fetch attempts by result ("ok", "retry", "unavailable")
	PageFetches      *prometheus.CounterVec
	PageFetchLatency prometheus.Histogram

	// Records seen by the upsert engine by outcome
	Records         *prometheus.CounterVec
	BatchFailures   prometheus.Counter
	BatchLatency    prometheus.Histogram
	DatesIncomplete prometheus.Counter

	// Runs by mode ("import", "update") and result
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Registry lookups by party kind and outcome
	Enrichment *prometheus.CounterVec

	AuditDropped prometheus.Counter
}

// New creates the metrics and registers them on reg. Passing a fresh
// registry keeps tests isolated from the default one.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesync_token_refreshes_total",
			Help: "Credential refresh attempts by result",
		}, []string{"result"}),
		TokenExpiry: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradesync_token_expiry_timestamp_seconds",
			Help: "Expiry of the current bearer token",
		}),

		PageFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesync_page_fetches_total",
			Help: "Trade page fetch attempts by result",
		}, []string{"result"}),
		PageFetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesync_page_fetch_duration_seconds",
			Help:    "Duration of a trade page fetch including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesync_records_total",
			Help: "Inbound trade records by upsert outcome",
		}, []string{"outcome"}), // received, inserted, updated, skipped, rejected
		BatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradesync_batch_failures_total",
			Help: "Batches whose transaction failed",
		}),
		BatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesync_batch_duration_seconds",
			Help:    "Duration of one upsert batch",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		DatesIncomplete: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradesync_dates_incomplete_total",
			Help: "Dates whose pagination stopped on an unavailable page",
		}),

		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesync_runs_total",
			Help: "Ingestion runs by mode and result",
		}, []string{"mode", "result"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradesync_run_duration_seconds",
			Help:    "Duration of ingestion plus enrichment runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"mode"}),

		Enrichment: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesync_enrichment_lookups_total",
			Help: "Registry lookups by party kind and outcome",
		}, []string{"kind", "outcome"}),

		AuditDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tradesync_audit_events_dropped_total",
			Help: "Audit events dropped because the queue was full",
		}),
	}
}

func (m *Metrics) IncTokenRefresh(result string) {
	if m != nil {
		m.TokenRefreshes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SetTokenExpiry(t time.Time) {
	if m != nil && !t.IsZero() {
		m.TokenExpiry.Set(float64(t.Unix()))
	}
}

func (m *Metrics) IncPageFetch(result string) {
	if m != nil {
		m.PageFetches.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObservePageFetch(d time.Duration) {
	if m != nil {
		m.PageFetchLatency.Observe(d.Seconds())
	}
}

// RecordBatch adds the counts of one successful batch.
func (m *Metrics) RecordBatch(received, inserted, updated, skipped, rejected int, d time.Duration) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues("received").Add(float64(received))
	m.Records.WithLabelValues("inserted").Add(float64(inserted))
	m.Records.WithLabelValues("updated").Add(float64(updated))
	m.Records.WithLabelValues("skipped").Add(float64(skipped))
	m.Records.WithLabelValues("rejected").Add(float64(rejected))
	m.BatchLatency.Observe(d.Seconds())
}

func (m *Metrics) IncBatchFailure() {
	if m != nil {
		m.BatchFailures.Inc()
	}
}

func (m *Metrics) IncDateIncomplete() {
	if m != nil {
		m.DatesIncomplete.Inc()
	}
}

func (m *Metrics) ObserveRun(mode, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(mode, result).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) IncEnrichment(kind, outcome string) {
	if m != nil {
		m.Enrichment.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) IncAuditDropped() {
	if m != nil {
		m.AuditDropped.Inc()
	}
}
