package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridfetch/internal/apperrors"
	"gridfetch/internal/gridtest"
)

const testConfig = `
poll:
  interval: 10ms
timeouts:
  page_load: 1s
  driver: 1s
`

// execute runs the CLI against fs and returns what it printed to stdout.
func execute(t *testing.T, fs afero.Fs, config string, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridfetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))

	cmd := newRootCmd(fs)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", path}, args...))

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestDownloadList(t *testing.T) {
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
			srv.AddDownload("s1", "b.txt", []byte("b"))
			srv.AddDownload("s1", "a.txt", []byte("a"))

			out, err := execute(t, afero.NewMemMapFs(), testConfig,
				"--grid-url", srv.GridURL(), "--session", "s1", "download", "list")
			require.NoError(t, err)
			assert.Equal(t, "b.txt\na.txt\n", out)
		})
	}
}

func TestDownloadGet(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddDownload("s1", "report.csv", []byte("a,b\n"))
	srv.DelayDownload("s1", "report.csv", 2)
	fs := afero.NewMemMapFs()

	out, err := execute(t, fs, testConfig,
		"--grid-url", srv.GridURL(), "--session", "s1", "--downloads-dir", "/dl",
		"download", "get", "report.csv")
	require.NoError(t, err)

	path := filepath.Join("/dl", "report.csv")
	assert.Equal(t, path+"\n", out)
	content, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b\n"), content)
}

func TestDownloadGet_Timeout(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddDownload("s1", "other.txt", []byte("x"))

	_, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", srv.GridURL(), "--session", "s1",
		"download", "get", "missing.txt", "--timeout", "30ms")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrArtifactUnavailable)
	assert.Equal(t, apperrors.ExitUnavailable, apperrors.ExitCode(err))
}

func TestDownloadGet_NoSession(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)

	_, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", srv.GridURL(), "download", "get", "report.csv", "--timeout", "20ms")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitUnavailable, apperrors.ExitCode(err))
	assert.Empty(t, srv.Requests())
}

func TestDownloadAll(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddDownload("s1", "one.txt", []byte("1"))
	srv.AddDownload("s1", "two.txt", []byte("2"))
	fs := afero.NewMemMapFs()

	out, err := execute(t, fs, testConfig,
		"--grid-url", srv.GridURL(), "--session", "s1", "--downloads-dir", "/dl",
		"download", "all")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/dl", "one.txt")+"\n"+filepath.Join("/dl", "two.txt")+"\n", out)

	content, err := afero.ReadFile(fs, filepath.Join("/dl", "two.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), content)
}

func TestVideoGet_DisabledWithoutForce(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddVideo("session-1", []byte("mp4"))

	_, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", srv.GridURL(), "video", "get", "session-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, apperrors.ExitInvalid, apperrors.ExitCode(err))
	assert.Empty(t, srv.Requests())
}

func TestVideoGet_Force(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddVideo("session-1", []byte("mp4"))
	srv.DelayVideo("session-1", 1)
	fs := afero.NewMemMapFs()

	out, err := execute(t, fs, testConfig,
		"--grid-url", srv.GridURL(), "video", "get", "session-1", "--force", "--out", "/videos/s1.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/videos/s1.mp4\n", out)

	content, err := afero.ReadFile(fs, "/videos/s1.mp4")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), content)
	assert.Equal(t, 2, srv.CountRequests("GET", "/video/session-1.mp4"))
}

func TestVideoGet_EnabledInConfigToStdout(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddVideo("session-1", []byte("mp4"))

	config := testConfig + "grid:\n  video_enabled: true\n"
	out, err := execute(t, afero.NewMemMapFs(), config,
		"--grid-url", srv.GridURL(), "video", "get", "session-1", "--out", "-")
	require.NoError(t, err)
	assert.Equal(t, "mp4", out)
}

func TestVideoDelete_RetriesUntilAccepted(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddVideo("session-1", []byte("mp4"))
	srv.FailDeletes("session-1", 2)

	out, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", srv.GridURL(), "video", "delete", "session-1", "--force")
	require.NoError(t, err)
	assert.Equal(t, "deleted session-1.mp4\n", out)
	assert.False(t, srv.HasVideo("session-1"))
	assert.Equal(t, 3, srv.CountRequests("DELETE", "/video/session-1.mp4"))
}

func TestVideoDelete_SingleShot(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)

	_, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", srv.GridURL(), "video", "delete", "missing", "--force", "--timeout", "0s")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrArtifactUnavailable)
	assert.Equal(t, 1, srv.CountRequests("DELETE", "/video/missing.mp4"))
}

func TestInvalidGridURL(t *testing.T) {
	t.Parallel()
	_, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", "ftp://grid", "download", "list", "--session", "s1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExitInvalid, apperrors.ExitCode(err))
}

func TestMissingConfigFile(t *testing.T) {
	t.Parallel()
	cmd := newRootCmd(afero.NewMemMapFs())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "download", "list"})

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.AddDownload("s1", "a.txt", []byte("a"))

	out, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", srv.GridURL(), "--session", "s1", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "healthy"`)
	assert.Contains(t, out, `"session"`)
}

func TestStatus_UnknownSessionDegrades(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)

	out, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", srv.GridURL(), "--session", "gone", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "degraded"`)
}

func TestStatus_Unhealthy(t *testing.T) {
	t.Parallel()
	srv := gridtest.New(t)
	srv.SetUnhealthy(true)

	out, err := execute(t, afero.NewMemMapFs(), testConfig,
		"--grid-url", srv.GridURL(), "status")
	require.Error(t, err)
	assert.Contains(t, out, `"status": "unhealthy"`)
	assert.NotContains(t, out, `"session"`)
}
