// Package poll re-invokes an operation at a fixed interval until it succeeds
// or a deadline elapses.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gridfetch/internal/observability"
	"gridfetch/internal/report"
)

// DefaultInterval is the pause between attempts of every poll loop.
const DefaultInterval = time.Second

// ErrTimeout is for callers that turn an absent result into an error.
var ErrTimeout = errors.New("poll: deadline elapsed without success")

// Options configures Until behavior.
type Options struct {
	Timeout   time.Duration
	Interval  time.Duration
	Operation string
	Reporter  report.Reporter
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Option is a functional option for Until.
type Option func(*Options)

// WithTimeout sets the polling window (default: 0, a single attempt).
// Negative values are treated as zero.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithInterval sets the pause between attempts (default: 1s).
func WithInterval(d time.Duration) Option {
	return func(o *Options) {
		o.Interval = d
	}
}

// WithOperation names the loop in reports, metrics and logs.
func WithOperation(name string) Option {
	return func(o *Options) {
		o.Operation = name
	}
}

// WithReporter sets the sink for failures swallowed between attempts.
func WithReporter(r report.Reporter) Option {
	return func(o *Options) {
		o.Reporter = r
	}
}

// WithMetrics records attempts and outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func defaultOptions() Options {
	return Options{
		Interval:  DefaultInterval,
		Operation: "poll",
		Reporter:  report.Discard,
	}
}

// Until calls op until it succeeds or the timeout elapses.
//
// The first success is returned with true and no further attempts are made.
// Each failure is handed to the reporter and never returned. When the window
// closes, or ctx is done, Until returns the zero value and false. A zero
// timeout makes exactly one attempt without sleeping. Attempts run
// sequentially on the calling goroutine, and an attempt still running one
// interval past the deadline is cancelled through its context.
func Until[T any](ctx context.Context, op func(context.Context) (T, error), opts ...Option) (T, bool) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Reporter == nil {
		o.Reporter = report.Discard
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	logger := o.Logger.With("operation", o.Operation, "pollId", uuid.NewString())
	start := time.Now()
	deadline := start.Add(o.Timeout)

	attempt := 0
	for {
		attempt++
		o.Metrics.RecordPollAttempt(ctx, o.Operation)

		value, err := attemptOnce(ctx, op, o, deadline)
		if err == nil {
			o.Metrics.RecordPollOutcome(ctx, o.Operation, true, time.Since(start).Seconds())
			logger.DebugContext(ctx, "Poll succeeded", "attempt", attempt)
			return value, true
		}
		if ctx.Err() != nil {
			logger.DebugContext(ctx, "Poll cancelled", "attempt", attempt, "error", ctx.Err())
			break
		}
		o.Reporter.IgnoredError(ctx, o.Operation, err)

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if !sleep(ctx, min(o.Interval, remaining)) {
			logger.DebugContext(ctx, "Poll cancelled", "attempt", attempt, "error", ctx.Err())
			break
		}
	}

	o.Metrics.RecordPollOutcome(ctx, o.Operation, false, time.Since(start).Seconds())
	logger.DebugContext(ctx, "Poll gave up", "attempts", attempt, "timeout", o.Timeout)
	var zero T
	return zero, false
}

// attemptOnce runs op. With a positive timeout the attempt must finish by
// deadline plus one interval; a zero-timeout attempt is bounded only by ctx.
func attemptOnce[T any](ctx context.Context, op func(context.Context) (T, error), o Options, deadline time.Time) (T, error) {
	if o.Timeout == 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithDeadline(ctx, deadline.Add(o.Interval))
	defer cancel()
	return op(attemptCtx)
}

// sleep waits for d and reports whether it did so without ctx finishing first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Succeeds is Until for operations without a result. It reports whether op
// succeeded within the window.
func Succeeds(ctx context.Context, op func(context.Context) error, opts ...Option) bool {
	_, ok := Until(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return ok
}
