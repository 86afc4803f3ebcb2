// Package config loads client configuration from defaults, an optional YAML
// file, GRIDFETCH_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"gridfetch/internal/apperrors"
)

// EnvPrefix prefixes every environment variable, e.g. GRIDFETCH_GRID_URL.
const EnvPrefix = "GRIDFETCH"

// Configuration keys.
const (
	KeyGridURL             = "grid.url"
	KeyVideoEnabled        = "grid.video_enabled"
	KeyPageLoadTimeout     = "timeouts.page_load"
	KeyDriverTimeout       = "timeouts.driver"
	KeyHTTPTimeout         = "timeouts.http"
	KeyPollInterval        = "poll.interval"
	KeyDownloadsDir        = "downloads.dir"
	KeyDownloadConcurrency = "downloads.concurrency"
	KeySessionID           = "session.id"
	KeyMetricsAddr         = "metrics.addr"
)

// Config holds configuration for the grid client.
type Config struct {
	GridURL             string        // WebDriver URL of the grid, /wd/hub is stripped for file calls
	PageLoadTimeout     time.Duration // default wait for downloaded files
	DriverTimeout       time.Duration // default wait for video operations
	HTTPTimeout         time.Duration // per-request timeout
	PollInterval        time.Duration // pause between poll attempts
	DownloadsDir        string        // local directory downloaded files are written to
	DownloadConcurrency int           // parallel fetches when downloading all files
	SessionID           string        // current browser session, empty if none
	MetricsAddr         string        // address to serve /metrics on, empty to disable

	videoEnabled atomic.Bool
}

// VideoEnabled reports whether the grid records session videos.
func (c *Config) VideoEnabled() bool {
	return c.videoEnabled.Load()
}

// SetVideoEnabled toggles video recording at runtime.
func (c *Config) SetVideoEnabled(enabled bool) {
	c.videoEnabled.Store(enabled)
}

// NewViper creates a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyGridURL, "http://localhost:4444/wd/hub")
	v.SetDefault(KeyVideoEnabled, false)
	v.SetDefault(KeyPageLoadTimeout, 30*time.Second)
	v.SetDefault(KeyDriverTimeout, 10*time.Second)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyPollInterval, time.Second)
	v.SetDefault(KeyDownloadsDir, "downloads")
	v.SetDefault(KeyDownloadConcurrency, 4)
	v.SetDefault(KeySessionID, "")
	v.SetDefault(KeyMetricsAddr, "")
}

// ReadFile merges a YAML config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return apperrors.Internal("config.read", err)
	}
	return nil
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		GridURL:             strings.TrimSpace(v.GetString(KeyGridURL)),
		PageLoadTimeout:     v.GetDuration(KeyPageLoadTimeout),
		DriverTimeout:       v.GetDuration(KeyDriverTimeout),
		HTTPTimeout:         v.GetDuration(KeyHTTPTimeout),
		PollInterval:        v.GetDuration(KeyPollInterval),
		DownloadsDir:        v.GetString(KeyDownloadsDir),
		DownloadConcurrency: v.GetInt(KeyDownloadConcurrency),
		SessionID:           v.GetString(KeySessionID),
		MetricsAddr:         v.GetString(KeyMetricsAddr),
	}
	cfg.SetVideoEnabled(v.GetBool(KeyVideoEnabled))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validateURL(c.GridURL); err != nil {
		return apperrors.Validation(KeyGridURL, fmt.Sprintf("invalid %s: %v", KeyGridURL, err))
	}
	durations := []struct {
		key   string
		value time.Duration
	}{
		{KeyPageLoadTimeout, c.PageLoadTimeout},
		{KeyDriverTimeout, c.DriverTimeout},
		{KeyHTTPTimeout, c.HTTPTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			return apperrors.Validation(d.key, fmt.Sprintf("%s must not be negative", d.key))
		}
	}
	if c.PollInterval <= 0 {
		return apperrors.Validation(KeyPollInterval, fmt.Sprintf("%s must be positive", KeyPollInterval))
	}
	if c.DownloadsDir == "" {
		return apperrors.Validation(KeyDownloadsDir, fmt.Sprintf("%s is required", KeyDownloadsDir))
	}
	if c.DownloadConcurrency <= 0 {
		return apperrors.Validation(KeyDownloadConcurrency, fmt.Sprintf("%s must be positive", KeyDownloadConcurrency))
	}
	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}
