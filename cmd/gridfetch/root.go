package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gridfetch/internal/config"
	"gridfetch/internal/downloads"
	"gridfetch/internal/grid"
	"gridfetch/internal/observability"
	"gridfetch/internal/report"
	"gridfetch/internal/session"
)

// globalFlags holds flags available to all commands.
type globalFlags struct {
	configFile   string
	gridURL      string
	downloadsDir string
	sessionID    string
	metricsAddr  string
	verbose      bool
}

// app is built once per invocation in PersistentPreRunE.
type app struct {
	flags globalFlags
	v     *viper.Viper
	fs    afero.Fs

	cfg           *config.Config
	metricsServer *http.Server
	client        *grid.Client
	retriever     *grid.Retriever
	manager       *downloads.Manager
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"grid-url":      config.KeyGridURL,
	"downloads-dir": config.KeyDownloadsDir,
	"session":       config.KeySessionID,
	"metrics-addr":  config.KeyMetricsAddr,
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	a := &app{v: config.NewViper(), fs: fs}

	cmd := &cobra.Command{
		Use:   "gridfetch",
		Short: "Retrieve session videos and downloaded files from a browser grid",
		Long: `gridfetch fetches artifacts of remote browser sessions from a Selenoid-style grid.

Artifacts may not exist yet while a session or its recording is being
finalized, so fetches poll until the artifact appears or a timeout elapses.

Configuration is read from --config, GRIDFETCH_* environment variables and flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "path to a YAML config file")
	pf.StringVar(&a.flags.gridURL, "grid-url", "", "grid WebDriver URL, e.g. http://selenoid:4444/wd/hub")
	pf.StringVar(&a.flags.downloadsDir, "downloads-dir", "", "local directory for downloaded files")
	pf.StringVar(&a.flags.sessionID, "session", "", "browser session id")
	pf.StringVar(&a.flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newVideoCmd(a))
	cmd.AddCommand(newDownloadCmd(a))
	cmd.AddCommand(newStatusCmd(a))

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.flags.verbose {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	rootFlags := cmd.Root().PersistentFlags()
	for name, key := range flagKeys {
		if err := a.v.BindPFlag(key, rootFlags.Lookup(name)); err != nil {
			return err
		}
	}
	if err := config.ReadFile(a.v, a.flags.configFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	metrics, metricsHandler, err := observability.NewMetrics(cmd.Context())
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr, metricsHandler)
	}

	a.client = grid.NewClient(grid.Config{
		GridURL:    cfg.GridURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Metrics:    metrics,
	})

	a.retriever = grid.NewRetriever(grid.RetrieverConfig{
		Client:   a.client,
		Sessions: session.Static(cfg.SessionID),
		Reporter: report.Multi(report.NewLogger(nil), report.NewMetrics(metrics)),
		Metrics:  metrics,
		Interval: cfg.PollInterval,
	})

	a.manager = downloads.NewManager(downloads.Config{
		Source:      a.retriever,
		Fs:          a.fs,
		Dir:         cfg.DownloadsDir,
		Timeout:     cfg.PageLoadTimeout,
		Concurrency: cfg.DownloadConcurrency,
	})

	slog.Debug("Configured grid client",
		"baseUrl", a.client.BaseURL(),
		"videoEnabled", cfg.VideoEnabled(),
		"pollInterval", cfg.PollInterval,
	)
	return nil
}

func (a *app) serveMetrics(addr string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	a.metricsServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting metrics server", "addr", addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
}

func (a *app) teardown(ctx context.Context) error {
	if a.metricsServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := a.metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server shutdown error", "error", err)
	}
	return nil
}
