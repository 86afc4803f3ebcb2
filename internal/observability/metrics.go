package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the client-side metrics for grid access:
// - Latency: how long grid requests and poll loops take
// - Traffic: request and poll attempt throughput
// - Errors: failed requests and errors swallowed while polling
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	meter metric.Meter

	// Grid HTTP metrics (Latency, Traffic, Errors)
	GridRequestDuration metric.Float64Histogram
	GridRequestsTotal   metric.Int64Counter
	GridErrorsTotal     metric.Int64Counter

	// Poll loop metrics
	PollDuration      metric.Float64Histogram
	PollAttemptsTotal metric.Int64Counter
	PollIgnoredTotal  metric.Int64Counter
	PollOutcomesTotal metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("gridfetch")
	m := &Metrics{meter: meter}

	m.GridRequestDuration, err = meter.Float64Histogram(
		"grid_request_duration_seconds",
		metric.WithDescription("Grid HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.GridRequestsTotal, err = meter.Int64Counter(
		"grid_requests_total",
		metric.WithDescription("Total number of grid HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.GridErrorsTotal, err = meter.Int64Counter(
		"grid_errors_total",
		metric.WithDescription("Total number of grid HTTP requests that failed or returned non-200"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollDuration, err = meter.Float64Histogram(
		"poll_duration_seconds",
		metric.WithDescription("Time spent in a poll loop until success or deadline"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollAttemptsTotal, err = meter.Int64Counter(
		"poll_attempts_total",
		metric.WithDescription("Total attempts made by poll loops"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollIgnoredTotal, err = meter.Int64Counter(
		"poll_ignored_errors_total",
		metric.WithDescription("Total errors swallowed by poll loops"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollOutcomesTotal, err = meter.Int64Counter(
		"poll_outcomes_total",
		metric.WithDescription("Total finished poll loops by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordGridRequest records grid HTTP request metrics. statusCode 0 means a transport failure.
func (m *Metrics) RecordGridRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		methodAttr(method),
		endpointAttr(path),
		statusAttr(statusCode),
	)

	m.GridRequestDuration.Record(ctx, durationSeconds, attrs)
	m.GridRequestsTotal.Add(ctx, 1, attrs)

	if statusCode != http.StatusOK {
		m.GridErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordPollAttempt records one attempt of a poll loop.
func (m *Metrics) RecordPollAttempt(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.PollAttemptsTotal.Add(ctx, 1, metric.WithAttributes(operationAttr(operation)))
}

// RecordIgnoredError records an error swallowed by a poll loop.
func (m *Metrics) RecordIgnoredError(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.PollIgnoredTotal.Add(ctx, 1, metric.WithAttributes(operationAttr(operation)))
}

// RecordPollOutcome records a finished poll loop.
func (m *Metrics) RecordPollOutcome(ctx context.Context, operation string, success bool, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(operationAttr(operation), successAttr(success))
	m.PollOutcomesTotal.Add(ctx, 1, attrs)
	m.PollDuration.Record(ctx, durationSeconds, attrs)
}
