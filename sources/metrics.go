package sources

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the site sources.
type Metrics struct {
	Registry       *prometheus.Registry
	PagesTotal     *prometheus.CounterVec
	PageDuration   prometheus.Histogram
	ProductsTotal  *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	SearchesTotal  *prometheus.CounterVec
	SearchDuration prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_pages_total",
			Help: "Total result pages fetched, by source and outcome.",
		},
		[]string{"source", "outcome"},
	)
	pageDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricescout_page_duration_seconds",
			Help:    "Fetch-and-extract latency per result page.",
			Buckets: prometheus.DefBuckets,
		},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_products_extracted_total",
			Help: "Products extracted, by source and strategy.",
		},
		[]string{"source", "strategy"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_source_errors_total",
			Help: "Source errors by type.",
		},
		[]string{"source", "error_type"},
	)
	searches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_searches_total",
			Help: "Search invocations per source.",
		},
		[]string{"source"},
	)
	searchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricescout_search_duration_seconds",
			Help:    "End-to-end latency of one source search.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 120},
		},
	)

	registry.MustRegister(pages, pageDuration, products, errorsTotal, searches, searchDuration)

	return &Metrics{
		Registry:       registry,
		PagesTotal:     pages,
		PageDuration:   pageDuration,
		ProductsTotal:  products,
		ErrorsTotal:    errorsTotal,
		SearchesTotal:  searches,
		SearchDuration: searchDuration,
	}
}

// IncPage counts one fetched page with its outcome label.
func (m *Metrics) IncPage(source, outcome string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(source, outcome).Inc()
}

// ObservePage records the latency of one page task.
func (m *Metrics) ObservePage(d time.Duration) {
	if m == nil {
		return
	}
	m.PageDuration.Observe(d.Seconds())
}

// AddProducts counts extracted products for an extraction strategy.
func (m *Metrics) AddProducts(source, strategy string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ProductsTotal.WithLabelValues(source, strategy).Add(float64(n))
}

// IncError counts a classified source error.
func (m *Metrics) IncError(source, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(source, errorType).Inc()
}

// IncSearch counts a search invocation.
func (m *Metrics) IncSearch(source string) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(source).Inc()
}

// ObserveSearch records the end-to-end latency of one source search.
func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}
