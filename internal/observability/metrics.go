// Package observability holds Prometheus metrics and OpenTelemetry setup for the API
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeConflict  = "conflict"
)

// Metrics holds all Prometheus metrics for the chat API
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	TurnsTotal        *prometheus.CounterVec
	TurnDuration      *prometheus.HistogramVec
	StreamWritesTotal prometheus.Counter
	TurnsInFlight     prometheus.Gauge

	// Tool metrics
	ToolCallsTotal *prometheus.CounterVec

	// Background job metrics
	JobsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics on a private registry (plus Go and process collectors)
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatstream_turns_total",
			Help: "Total number of assistant turns by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	m.TurnDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatstream_turn_duration_seconds",
			Help:    "Duration of assistant turns from claim to finalize",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"provider"},
	)

	m.StreamWritesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "chatstream_stream_writes_total",
			Help: "Total number of incremental assistant message writes",
		},
	)

	m.TurnsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatstream_turns_in_flight",
			Help: "Number of assistant turns currently streaming",
		},
	)

	m.ToolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatstream_tool_calls_total",
			Help: "Total number of tool executions by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	m.JobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatstream_jobs_total",
			Help: "Total number of background jobs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatstream_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatstream_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordTurn records a finished turn
func (m *Metrics) RecordTurn(provider, outcome string, duration time.Duration) {
	m.TurnsTotal.WithLabelValues(provider, outcome).Inc()
	m.TurnDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordToolCall records one tool execution
func (m *Metrics) RecordToolCall(tool string, isError bool) {
	outcome := "ok"
	if isError {
		outcome = "error"
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordJob records one background job run
func (m *Metrics) RecordJob(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.JobsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordHTTPRequest records a served request
func (m *Metrics) RecordHTTPRequest(route string, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
