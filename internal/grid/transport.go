package grid

import (
	"log/slog"
	"net/http"
	"time"

	"gridfetch/internal/observability"
)

// instrumentedTransport logs each grid request and records its metrics.
type instrumentedTransport struct {
	next    http.RoundTripper
	metrics *observability.Metrics
}

func newInstrumentedTransport(next http.RoundTripper, metrics *observability.Metrics) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &instrumentedTransport{next: next, metrics: metrics}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(req)

	// 0 marks a transport failure
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	duration := time.Since(start)

	slog.DebugContext(req.Context(), "Grid request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", status,
		"duration", duration,
	)
	t.metrics.RecordGridRequest(req.Context(), req.Method, req.URL.Path, status, duration.Seconds())

	return resp, err
}
