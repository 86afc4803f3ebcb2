package downloads

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridfetch/internal/apperrors"
	"gridfetch/internal/grid"
	"gridfetch/internal/gridtest"
	"gridfetch/internal/poll"
	"gridfetch/internal/session"
)

func newTestManager(t *testing.T, srv *gridtest.Server, sessionID string) (*Manager, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	retriever := grid.NewRetriever(grid.RetrieverConfig{
		Client:   grid.NewClient(grid.Config{GridURL: srv.GridURL()}),
		Sessions: session.Static(sessionID),
		Interval: 10 * time.Millisecond,
	})
	return NewManager(Config{
		Source:  retriever,
		Fs:      fs,
		Dir:     "/work/downloads",
		Timeout: time.Second,
	}), fs
}

func TestManager_Fetch(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddDownload("s1", "report.csv", []byte("a,b\n"))
	srv.DelayDownload("s1", "report.csv", 2)

	m, fs := newTestManager(t, srv, "s1")

	path, err := m.Fetch(context.Background(), "report.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work/downloads", "report.csv"), path)

	content, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b\n"), content)
}

func TestManager_FetchWithTimeout_NotAvailable(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	m, fs := newTestManager(t, srv, "s1")

	_, err := m.FetchWithTimeout(context.Background(), "missing.txt", 30*time.Millisecond)
	require.ErrorIs(t, err, apperrors.ErrArtifactUnavailable)
	assert.ErrorIs(t, err, poll.ErrTimeout)
	assert.Contains(t, err.Error(), "could not get downloaded file [missing.txt] from session [s1]")

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "s1", appErr.SessionID)
	assert.Equal(t, "missing.txt", appErr.FileName)

	exists, err := afero.Exists(fs, "/work/downloads/missing.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManager_RejectsTraversal(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	m, _ := newTestManager(t, srv, "s1")

	for _, name := range []string{"../escape.txt", "a/../../b", "/etc/passwd", ""} {
		_, err := m.Fetch(context.Background(), name)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "name %q", name)
	}
	assert.Empty(t, srv.Requests())
}

func TestManager_FileNames(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		format gridtest.ListingFormat
	}{
		{"json", gridtest.ListingJSON},
		{"html", gridtest.ListingHTML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := gridtest.New(t)
			srv.SetListingFormat(tt.format)
			srv.AddDownload("s1", "z.txt", []byte("z"))
			srv.AddDownload("s1", "a b.txt", []byte("a"))

			m, _ := newTestManager(t, srv, "s1")

			names, err := m.FileNames(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"z.txt", "a b.txt"}, names)
		})
	}
}

func TestManager_FileNames_NoSession(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	m, _ := newTestManager(t, srv, "")

	_, err := m.FileNames(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestManager_FetchAll(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	names := []string{"c.txt", "a.txt", "b.txt", "e.txt", "d.txt"}
	for _, n := range names {
		srv.AddDownload("s1", n, []byte("content of "+n))
	}
	srv.DelayDownload("s1", "a.txt", 1)

	m, fs := newTestManager(t, srv, "s1")

	paths, err := m.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, paths, len(names))

	for i, n := range names {
		assert.Equal(t, filepath.Join("/work/downloads", n), paths[i])
		content, err := afero.ReadFile(fs, paths[i])
		require.NoError(t, err)
		assert.Equal(t, "content of "+n, string(content))
	}
}

func TestManager_Dir(t *testing.T) {
	t.Parallel()
	m := NewManager(Config{Dir: "out"})
	assert.Equal(t, "out", m.Dir())
}

// stubSource serves a fixed listing and fails listed files that are not in files.
type stubSource struct {
	mu      sync.Mutex
	listing string
	files   map[string][]byte
	listErr error
}

func (s *stubSource) FetchDownload(_ context.Context, name string, _ time.Duration) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[name]
	return content, ok
}

func (s *stubSource) ListDownloads(context.Context) (string, error) {
	return s.listing, s.listErr
}

func (s *stubSource) SessionID(context.Context) (string, error) {
	return "", session.ErrNoSession
}

func TestManager_FetchWithTimeout_UnknownSession(t *testing.T) {
	t.Parallel()
	m := NewManager(Config{Source: &stubSource{}, Fs: afero.NewMemMapFs(), Dir: "d"})

	_, err := m.FetchWithTimeout(context.Background(), "f.txt", 0)
	require.ErrorIs(t, err, apperrors.ErrArtifactUnavailable)
	assert.Equal(t, "could not get downloaded file [f.txt]: poll: deadline elapsed without success after 0s", err.Error())
}

func TestManager_FetchAll_FirstErrorWins(t *testing.T) {
	t.Parallel()
	src := &stubSource{
		listing: `{"value":["ok.txt","gone.txt"]}`,
		files:   map[string][]byte{"ok.txt": []byte("ok")},
	}
	m := NewManager(Config{Source: src, Fs: afero.NewMemMapFs(), Dir: "d", Concurrency: 1})

	paths, err := m.FetchAll(context.Background())
	assert.Nil(t, paths)
	require.ErrorIs(t, err, apperrors.ErrArtifactUnavailable)
	assert.Contains(t, err.Error(), `fetch "gone.txt"`)
}

func TestManager_FetchAll_ListError(t *testing.T) {
	t.Parallel()
	listErr := errors.New("grid down")
	m := NewManager(Config{Source: &stubSource{listErr: listErr}, Fs: afero.NewMemMapFs(), Dir: "d"})

	_, err := m.FetchAll(context.Background())
	assert.ErrorIs(t, err, listErr)
}

func TestManager_FetchAll_Empty(t *testing.T) {
	t.Parallel()
	m := NewManager(Config{Source: &stubSource{listing: `{"value":[]}`}, Fs: afero.NewMemMapFs(), Dir: "d"})

	paths, err := m.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestManager_WriteFailure(t *testing.T) {
	t.Parallel()
	src := &stubSource{files: map[string][]byte{"f.txt": []byte("x")}}
	m := NewManager(Config{Source: src, Fs: afero.NewReadOnlyFs(afero.NewMemMapFs()), Dir: "d"})

	_, err := m.Fetch(context.Background(), "f.txt")
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}
