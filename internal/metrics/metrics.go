package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the crawler's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	PagesFetched  *prometheus.CounterVec
	Accepted      *prometheus.CounterVec
	Rejected      *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	CrawlsTotal   *prometheus.CounterVec
	InFlight      prometheus.Gauge
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		PagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refurb_pages_fetched_total",
			Help: "Pages fetched, by region and kind (listing or product).",
		}, []string{"region", "kind"}),
		Accepted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refurb_records_accepted_total",
			Help: "Product records accepted.",
		}, []string{"region"}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refurb_candidates_rejected_total",
			Help: "Fetched candidates that were not product pages, by reason.",
		}, []string{"region", "reason"}),
		FetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refurb_fetch_failures_total",
			Help: "Fetches that failed or timed out.",
		}, []string{"region"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "refurb_fetch_duration_seconds",
			Help:    "Time to open and render a page.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
		}, []string{"kind"}),
		CrawlsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "refurb_site_crawls_total",
			Help: "Site-root crawls, by outcome.",
		}, []string{"status"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "refurb_validations_in_flight",
			Help: "Validation fetches currently running.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) PageFetched(region, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(region, kind).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) RecordAccepted(region string) {
	if m == nil {
		return
	}
	m.Accepted.WithLabelValues(region).Inc()
}

func (m *Metrics) CandidateRejected(region, reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(region, reason).Inc()
}

func (m *Metrics) FetchFailed(region string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(region).Inc()
}

func (m *Metrics) SiteCrawled(status string) {
	if m == nil {
		return
	}
	m.CrawlsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ValidationStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *Metrics) ValidationDone() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}

func (m *Metrics) HTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
