package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway collectors. Each App owns its own registry so
// several apps can run in one test binary.
type Metrics struct {
	registry *prometheus.Registry

	APICallsTotal       *prometheus.CounterVec
	APICallDuration     *prometheus.HistogramVec
	NotificationsTotal  *prometheus.CounterVec
	RefundsTotal        *prometheus.CounterVec
	CheckoutsTotal      *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		APICallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrugate_api_calls_total",
				Help: "Calls made to the payment API",
			},
			[]string{"resource", "method", "status"},
		),
		APICallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zrugate_api_call_duration_seconds",
				Help:    "Payment API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource", "method"},
		),
		NotificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrugate_notifications_total",
				Help: "Inbound payment notifications by outcome",
			},
			[]string{"type", "status", "outcome"},
		),
		RefundsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrugate_refunds_total",
				Help: "Refund attempts by outcome",
			},
			[]string{"outcome"},
		),
		CheckoutsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrugate_checkouts_total",
				Help: "Payments started by kind and presentation mode",
			},
			[]string{"kind", "mode", "outcome"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zrugate_http_requests_total",
				Help: "Inbound HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zrugate_http_request_duration_seconds",
				Help:    "Inbound HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveAPICall records one outbound call. status 0 means no response.
// All recording methods accept a nil *Metrics.
func (m *Metrics) ObserveAPICall(resource, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.APICallsTotal.WithLabelValues(resource, method, strconv.Itoa(status)).Inc()
	m.APICallDuration.WithLabelValues(resource, method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) Notification(typ, status, outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(typ, status, outcome).Inc()
}

func (m *Metrics) Refund(outcome string) {
	if m == nil {
		return
	}
	m.RefundsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Checkout(kind, mode, outcome string) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(kind, mode, outcome).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
