package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the quadlink daemon.
type Metrics struct {
	registry          *prometheus.Registry
	cyclesTotal       prometheus.Counter
	fetchErrorsTotal  prometheus.Counter
	pushErrorsTotal   prometheus.Counter
	quadUpdatesTotal  prometheus.Counter
	webhooksSentTotal prometheus.Counter
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	candidates        prometheus.Gauge
	occupiedSlots     prometheus.Gauge
}

// New creates and registers Prometheus metrics for the daemon.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	cyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ql_cycles_total",
		Help: "Total number of selection cycles started",
	})
	fetchErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ql_fetch_errors_total",
		Help: "Total number of metadata fetch failures",
	})
	pushErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ql_push_errors_total",
		Help: "Total number of failed quad pushes to the display sink",
	})
	quadUpdatesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ql_quad_updates_total",
		Help: "Total number of cycles that produced a changed quad",
	})
	webhooksSentTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ql_webhooks_sent_total",
		Help: "Total number of webhook notifications dispatched",
	})
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ql_http_requests_total",
		Help: "Total number of HTTP requests received by the health server",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ql_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	candidates := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ql_eligible_candidates",
		Help: "Number of eligible candidates in the most recent cycle",
	})
	occupiedSlots := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ql_occupied_slots",
		Help: "Number of occupied quad slots in the current state",
	})

	registry.MustRegister(
		cyclesTotal,
		fetchErrorsTotal,
		pushErrorsTotal,
		quadUpdatesTotal,
		webhooksSentTotal,
		requestsTotal,
		errorsTotal,
		candidates,
		occupiedSlots,
	)

	return &Metrics{
		registry:          registry,
		cyclesTotal:       cyclesTotal,
		fetchErrorsTotal:  fetchErrorsTotal,
		pushErrorsTotal:   pushErrorsTotal,
		quadUpdatesTotal:  quadUpdatesTotal,
		webhooksSentTotal: webhooksSentTotal,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		candidates:        candidates,
		occupiedSlots:     occupiedSlots,
	}
}

// IncCycles increments the cycle counter.
func (m *Metrics) IncCycles() {
	m.cyclesTotal.Inc()
}

// IncFetchErrors increments the metadata fetch failure counter.
func (m *Metrics) IncFetchErrors() {
	m.fetchErrorsTotal.Inc()
}

// IncPushErrors increments the sink push failure counter.
func (m *Metrics) IncPushErrors() {
	m.pushErrorsTotal.Inc()
}

// IncQuadUpdates increments the changed-quad counter.
func (m *Metrics) IncQuadUpdates() {
	m.quadUpdatesTotal.Inc()
}

// IncWebhooksSent increments the webhook dispatch counter.
func (m *Metrics) IncWebhooksSent() {
	m.webhooksSentTotal.Inc()
}

// IncRequests increments the HTTP request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the HTTP error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetCandidates sets the eligible candidates gauge.
func (m *Metrics) SetCandidates(n int) {
	m.candidates.Set(float64(n))
}

// SetOccupiedSlots sets the occupied slots gauge.
func (m *Metrics) SetOccupiedSlots(n int) {
	m.occupiedSlots.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
