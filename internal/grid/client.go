// Package grid talks to the file-serving API of a Selenoid-style browser grid:
// session video recordings and files downloaded by a browser session.
package grid

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gridfetch/internal/apperrors"
	"gridfetch/internal/artifact"
	"gridfetch/internal/observability"
)

// webDriverPath is the grid's WebDriver sub-path, not part of the file API root.
const webDriverPath = "/wd/hub"

const defaultHTTPTimeout = 30 * time.Second

// Operation names used in reports, metrics and logs.
const (
	OpFetchVideo    = "grid.fetchVideo"
	OpDeleteVideo   = "grid.deleteVideo"
	OpFetchDownload = "grid.fetchDownload"
	OpListDownloads = "grid.listDownloads"
)

// statusPath is the grid's readiness endpoint.
const statusPath = "/status"

// ArtifactClient issues single-shot requests against the grid file endpoints.
// Every failure is an apperrors.ErrArtifactUnavailable.
type ArtifactClient interface {
	FetchVideo(ctx context.Context, fileName string) ([]byte, error)
	DeleteVideo(ctx context.Context, fileName string) error
	FetchDownload(ctx context.Context, sessionID, fileName string) ([]byte, error)
	ListDownloads(ctx context.Context, sessionID string) (string, error)
}

// Config holds dependencies for the client.
type Config struct {
	GridURL    string                 // e.g. http://selenoid:4444/wd/hub
	HTTPClient *http.Client           // default: 30s timeout, default transport
	Metrics    *observability.Metrics // optional
}

// Client is the HTTP implementation of ArtifactClient.
type Client struct {
	gridURL    string
	httpClient *http.Client
}

var _ ArtifactClient = (*Client)(nil)

// NewClient creates a grid client. The given HTTP client is copied and its
// transport wrapped with logging and metrics.
func NewClient(cfg Config) *Client {
	httpClient := http.Client{Timeout: defaultHTTPTimeout}
	if cfg.HTTPClient != nil {
		httpClient = *cfg.HTTPClient
	}
	httpClient.Transport = newInstrumentedTransport(httpClient.Transport, cfg.Metrics)

	return &Client{
		gridURL:    cfg.GridURL,
		httpClient: &httpClient,
	}
}

// BaseURL strips the WebDriver sub-path from a grid URL.
// A URL without it is returned unchanged.
func BaseURL(gridURL string) string {
	if trimmed, ok := strings.CutSuffix(gridURL, webDriverPath+"/"); ok {
		return trimmed
	}
	return strings.TrimSuffix(gridURL, webDriverPath)
}

// BaseURL returns the root of the grid file API.
func (c *Client) BaseURL() string {
	return BaseURL(c.gridURL)
}

// FetchVideo downloads the recording {base}/video/{fileName}.mp4.
func (c *Client) FetchVideo(ctx context.Context, fileName string) ([]byte, error) {
	ref, err := artifact.Video(fileName)
	if err != nil {
		return nil, apperrors.VideoUnavailable(fileName, err)
	}

	body, err := c.do(ctx, http.MethodGet, videoPath(ref), "")
	if err != nil {
		return nil, apperrors.VideoUnavailable(fileName, err)
	}
	return body, nil
}

// DeleteVideo removes the recording {base}/video/{fileName}.mp4.
func (c *Client) DeleteVideo(ctx context.Context, fileName string) error {
	ref, err := artifact.Video(fileName)
	if err != nil {
		return apperrors.VideoUnavailable(fileName, err)
	}

	if _, err := c.do(ctx, http.MethodDelete, videoPath(ref), ""); err != nil {
		return apperrors.VideoUnavailable(fileName, err)
	}
	return nil
}

// FetchDownload downloads {base}/download/{sessionID}/{fileName}.
func (c *Client) FetchDownload(ctx context.Context, sessionID, fileName string) ([]byte, error) {
	if err := artifact.ValidateSessionID(sessionID); err != nil {
		return nil, apperrors.DownloadUnavailable(sessionID, fileName, err)
	}
	ref, err := artifact.NewReference(sessionID, fileName)
	if err != nil {
		return nil, apperrors.DownloadUnavailable(sessionID, fileName, err)
	}

	path := "/download/" + url.PathEscape(ref.SessionID()) + "/" + url.PathEscape(ref.FileName())
	body, err := c.do(ctx, http.MethodGet, path, "")
	if err != nil {
		return nil, apperrors.DownloadUnavailable(sessionID, fileName, err)
	}
	return body, nil
}

// ListDownloads returns the raw body of {base}/download/{sessionID}.
// HTML is requested, but the body is returned whatever the grid sent.
func (c *Client) ListDownloads(ctx context.Context, sessionID string) (string, error) {
	if err := artifact.ValidateSessionID(sessionID); err != nil {
		return "", apperrors.ListingUnavailable(sessionID, err)
	}

	body, err := c.do(ctx, http.MethodGet, "/download/"+url.PathEscape(sessionID), "text/html")
	if err != nil {
		return "", apperrors.ListingUnavailable(sessionID, err)
	}
	return string(body), nil
}

// Ready checks that the grid answers {base}/status with 200.
func (c *Client) Ready(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodGet, statusPath, "application/json"); err != nil {
		return fmt.Errorf("grid %s not ready: %w", c.BaseURL(), err)
	}
	return nil
}

func videoPath(ref artifact.Reference) string {
	return "/video/" + url.PathEscape(ref.FileName()) + artifact.VideoExtension
}

// do performs one request and returns the full body of a 200 response.
func (c *Client) do(ctx context.Context, method, path, accept string) ([]byte, error) {
	target := strings.TrimRight(c.BaseURL(), "/") + path

	req, err := http.NewRequestWithContext(ctx, method, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Method: method, Path: path}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}
