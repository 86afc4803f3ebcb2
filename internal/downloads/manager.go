// Package downloads stores files downloaded by a remote browser session in a
// local directory.
package downloads

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"gridfetch/internal/apperrors"
	"gridfetch/internal/artifact"
	"gridfetch/internal/listing"
	"gridfetch/internal/poll"
)

const defaultConcurrency = 4

// Source is the part of grid.Retriever the manager uses.
type Source interface {
	FetchDownload(ctx context.Context, fileName string, timeout time.Duration) ([]byte, bool)
	ListDownloads(ctx context.Context) (string, error)
	SessionID(ctx context.Context) (string, error)
}

// Config holds dependencies for the manager.
type Config struct {
	Source      Source
	Fs          afero.Fs      // default: OS filesystem
	Dir         string        // local downloads directory
	Timeout     time.Duration // default wait for a file to appear on the grid
	Concurrency int           // parallel fetches in FetchAll (default: 4)
}

// Manager fetches session downloads from the grid and writes them to Dir.
type Manager struct {
	source      Source
	fs          afero.Fs
	dir         string
	timeout     time.Duration
	concurrency int
}

// NewManager creates a download manager.
func NewManager(cfg Config) *Manager {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Manager{
		source:      cfg.Source,
		fs:          cfg.Fs,
		dir:         cfg.Dir,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
	}
}

// Dir returns the local downloads directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Fetch waits up to the configured timeout for fileName and stores it.
func (m *Manager) Fetch(ctx context.Context, fileName string) (string, error) {
	return m.FetchWithTimeout(ctx, fileName, m.timeout)
}

// FetchWithTimeout waits up to timeout for fileName and stores it, returning
// the local path. A file that does not appear in time is an
// apperrors.ErrArtifactUnavailable wrapping poll.ErrTimeout.
func (m *Manager) FetchWithTimeout(ctx context.Context, fileName string, timeout time.Duration) (string, error) {
	if err := artifact.ValidateFileName(fileName); err != nil {
		return "", err
	}

	content, ok := m.source.FetchDownload(ctx, fileName, timeout)
	if !ok {
		// An unresolvable session leaves the id empty in the error.
		sessionID, _ := m.source.SessionID(ctx)
		return "", apperrors.DownloadUnavailable(sessionID, fileName, fmt.Errorf("%w after %s", poll.ErrTimeout, timeout))
	}

	path := filepath.Join(m.dir, fileName)
	if err := m.write(path, content); err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "Stored downloaded file", "fileName", fileName, "bytes", len(content), "path", path)
	return path, nil
}

// FileNames lists the files the current session downloaded, in grid order.
func (m *Manager) FileNames(ctx context.Context) ([]string, error) {
	body, err := m.source.ListDownloads(ctx)
	if err != nil {
		return nil, err
	}
	return listing.Parse(body), nil
}

// FetchAll stores every file the current session downloaded. Paths are
// returned in listing order; the first failure cancels the rest.
func (m *Manager) FetchAll(ctx context.Context) ([]string, error) {
	names, err := m.FileNames(ctx)
	if err != nil {
		return nil, err
	}

	paths := make([]string, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for i, name := range names {
		g.Go(func() error {
			path, err := m.Fetch(ctx, name)
			if err != nil {
				return fmt.Errorf("fetch %q: %w", name, err)
			}
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (m *Manager) write(path string, content []byte) error {
	if err := m.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Internal("downloads.mkdir", err)
	}
	if err := afero.WriteFile(m.fs, path, content, 0o644); err != nil {
		return apperrors.Internal("downloads.write", err)
	}
	return nil
}
