package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for catalogue fetching.
type Metrics struct {
	Registry            *prometheus.Registry
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     prometheus.Histogram
	PagesTotal          *prometheus.CounterVec
	CardsExtractedTotal prometheus.Counter
	CardsDroppedTotal   prometheus.Counter
	RetriesTotal        prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
}

// NewMetrics constructs the scraper collectors and registers them on registry.
// A nil registry gets a dedicated one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogue_requests_total",
			Help: "Catalogue page requests by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalogue_request_duration_seconds",
			Help:    "Latency of catalogue page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogue_pages_total",
			Help: "Catalogue pages processed by outcome.",
		},
		[]string{"result"},
	)
	extracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogue_cards_extracted_total",
			Help: "Product cards turned into valid records.",
		},
	)
	dropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogue_cards_dropped_total",
			Help: "Product cards dropped for missing slug or name.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalogue_retries_total",
			Help: "Page fetch retries performed.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalogue_fetch_errors_total",
			Help: "Page fetch failures by kind.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, extracted, dropped, retries, errorsTotal)

	return &Metrics{
		Registry:            registry,
		RequestsTotal:       requests,
		RequestDuration:     requestDuration,
		PagesTotal:          pages,
		CardsExtractedTotal: extracted,
		CardsDroppedTotal:   dropped,
		RetriesTotal:        retries,
		ErrorsTotal:         errorsTotal,
	}
}

// IncRequest increments the request counter for a phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPage counts one processed page under result.
func (m *Metrics) IncPage(result string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(result).Inc()
}

// AddCards records the valid and dropped cards of one page.
func (m *Metrics) AddCards(extracted, dropped int) {
	if m == nil {
		return
	}
	m.CardsExtractedTotal.Add(float64(extracted))
	m.CardsDroppedTotal.Add(float64(dropped))
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a kind label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
