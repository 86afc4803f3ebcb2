// Package report provides sinks for errors that are handled and then ignored,
// such as failures swallowed while polling for an artifact.
package report

import (
	"context"
	"log/slog"

	"gridfetch/internal/observability"
)

// Reporter receives ignored errors. It never affects control flow.
type Reporter interface {
	IgnoredError(ctx context.Context, operation string, err error)
}

// Func adapts a function to a Reporter.
type Func func(ctx context.Context, operation string, err error)

func (f Func) IgnoredError(ctx context.Context, operation string, err error) {
	f(ctx, operation, err)
}

// Discard drops every report.
var Discard Reporter = Func(func(context.Context, string, error) {})

// Logger reports ignored errors through slog.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a slog-backed reporter. A nil logger uses slog.Default().
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

func (l *Logger) IgnoredError(ctx context.Context, operation string, err error) {
	l.logger.DebugContext(ctx, "Ignored error", "operation", operation, "error", err)
}

// Metrics counts ignored errors per operation.
type Metrics struct {
	metrics *observability.Metrics
}

// NewMetrics creates a metrics-backed reporter.
func NewMetrics(m *observability.Metrics) *Metrics {
	return &Metrics{metrics: m}
}

func (m *Metrics) IgnoredError(ctx context.Context, operation string, _ error) {
	m.metrics.RecordIgnoredError(ctx, operation)
}

// Multi fans a report out to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var rs []Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return Func(func(ctx context.Context, operation string, err error) {
		for _, r := range rs {
			r.IgnoredError(ctx, operation, err)
		}
	})
}
