package grid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gridfetch/internal/observability"
	"gridfetch/internal/poll"
	"gridfetch/internal/report"
	"gridfetch/internal/session"
)

// RetrieverConfig holds dependencies for the retriever.
type RetrieverConfig struct {
	Client   ArtifactClient
	Sessions session.Provider       // required for download calls
	Reporter report.Reporter        // default: report.Discard
	Metrics  *observability.Metrics // optional
	Interval time.Duration          // poll interval (default: poll.DefaultInterval)
}

// Retriever polls the grid for artifacts that may not be finalized yet.
//
// Fetches that run out of time return false instead of an error; callers
// decide whether absence is fatal. Deletion is best-effort cleanup and only
// reports whether it succeeded in time.
type Retriever struct {
	client   ArtifactClient
	sessions session.Provider
	reporter report.Reporter
	metrics  *observability.Metrics
	interval time.Duration
}

// NewRetriever creates a retriever.
func NewRetriever(cfg RetrieverConfig) *Retriever {
	if cfg.Reporter == nil {
		cfg.Reporter = report.Discard
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.Static("")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = poll.DefaultInterval
	}
	return &Retriever{
		client:   cfg.Client,
		sessions: cfg.Sessions,
		reporter: cfg.Reporter,
		metrics:  cfg.Metrics,
		interval: cfg.Interval,
	}
}

func (r *Retriever) options(op string, timeout time.Duration) []poll.Option {
	return []poll.Option{
		poll.WithOperation(op),
		poll.WithTimeout(timeout),
		poll.WithInterval(r.interval),
		poll.WithReporter(r.reporter),
		poll.WithMetrics(r.metrics),
	}
}

// Video fetches a recording once.
func (r *Retriever) Video(ctx context.Context, fileName string) ([]byte, error) {
	return r.client.FetchVideo(ctx, fileName)
}

// FetchVideo polls for a recording until it is served or timeout elapses.
func (r *Retriever) FetchVideo(ctx context.Context, fileName string, timeout time.Duration) ([]byte, bool) {
	var lastErr error
	content, ok := poll.Until(ctx, func(ctx context.Context) ([]byte, error) {
		content, err := r.client.FetchVideo(ctx, fileName)
		lastErr = err
		return content, err
	}, r.options(OpFetchVideo, timeout)...)
	if !ok {
		slog.InfoContext(ctx, "Video not available in time",
			"fileName", fileName,
			"timeout", timeout,
			"notFinalized", IsNotFound(lastErr),
		)
	}
	return content, ok
}

// RemoveVideo deletes a recording once.
func (r *Retriever) RemoveVideo(ctx context.Context, fileName string) error {
	return r.client.DeleteVideo(ctx, fileName)
}

// DeleteVideo retries deleting a recording until a delete succeeds (true)
// or timeout elapses (false).
func (r *Retriever) DeleteVideo(ctx context.Context, fileName string, timeout time.Duration) bool {
	deleted := poll.Succeeds(ctx, func(ctx context.Context) error {
		return r.client.DeleteVideo(ctx, fileName)
	}, r.options(OpDeleteVideo, timeout)...)
	if !deleted {
		slog.WarnContext(ctx, "Video not deleted in time", "fileName", fileName, "timeout", timeout)
	}
	return deleted
}

// Download fetches a file downloaded by the current session once.
func (r *Retriever) Download(ctx context.Context, fileName string) ([]byte, error) {
	sessionID, err := r.SessionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve session for [%s]: %w", fileName, err)
	}
	return r.client.FetchDownload(ctx, sessionID, fileName)
}

// FetchDownload polls for a file downloaded by the current session until it
// is served or timeout elapses. The session is resolved on every attempt.
func (r *Retriever) FetchDownload(ctx context.Context, fileName string, timeout time.Duration) ([]byte, bool) {
	var lastErr error
	content, ok := poll.Until(ctx, func(ctx context.Context) ([]byte, error) {
		content, err := r.Download(ctx, fileName)
		lastErr = err
		return content, err
	}, r.options(OpFetchDownload, timeout)...)
	if !ok {
		slog.InfoContext(ctx, "Downloaded file not available in time",
			"fileName", fileName,
			"timeout", timeout,
			"notFinalized", IsNotFound(lastErr),
		)
	}
	return content, ok
}

// SessionID resolves the current session through the provider.
func (r *Retriever) SessionID(ctx context.Context) (string, error) {
	return r.sessions.SessionID(ctx)
}

// ListDownloads returns the raw listing of the current session's downloads.
func (r *Retriever) ListDownloads(ctx context.Context) (string, error) {
	sessionID, err := r.SessionID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve session for listing: %w", err)
	}
	return r.client.ListDownloads(ctx, sessionID)
}
