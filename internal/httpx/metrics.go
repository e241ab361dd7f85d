package httpx

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the adapter's collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	checkouts       *prometheus.CounterVec
	stockRejections prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_total",
			Help: "Checkout and direct order attempts by outcome.",
		}, []string{"outcome"}),
		stockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_rejections_total",
			Help: "Requests refused for insufficient or unavailable stock.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.checkouts, m.stockRejections)
	}
	return m
}

func (m *Metrics) observeRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, status).Inc()
	m.duration.WithLabelValues(method, route, status).Observe(seconds)
}

// outcome is one of created, replayed, rejected, failed.
func (m *Metrics) checkout(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) stockRejected() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}
