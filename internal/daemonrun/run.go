package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"stlpipe/internal/config"
	"stlpipe/internal/daemon"
	"stlpipe/internal/feed"
	"stlpipe/internal/history"
	"stlpipe/internal/logging"
	"stlpipe/internal/metrics"
	"stlpipe/internal/notifications"
	"stlpipe/internal/preflight"
	"stlpipe/internal/publish"
	"stlpipe/internal/workflow"
)

// Options configures watch-mode runtime behavior.
type Options struct {
	Verbose bool
}

// Run starts watch mode and blocks until a signal arrives or the feed
// listener fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.ValidateWatch(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg, opts.Verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "stlpipe*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "stlpipe.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg)
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		defer store.Close()
	}

	notifier := notifications.NewService(cfg)
	recorder, stopMetrics, err := startMetrics(cfg, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	coordinatorOpts := []workflow.Option{
		workflow.WithMetrics(recorder),
		workflow.WithObservers(
			workflow.HistoryObserver(store, logger),
			workflow.MetricsObserver(recorder),
			workflow.NotificationObserver(notifier, logger),
		),
	}
	if cfg.Upload.Enabled {
		drive, err := publish.NewDrive(signalCtx, cfg)
		if err != nil {
			return fmt.Errorf("connect google drive: %w", err)
		}
		coordinatorOpts = append(coordinatorOpts, workflow.WithPublisher(publish.NewPublisher(drive, logger)))
	}
	coordinator := workflow.New(cfg, logger, coordinatorOpts...)

	listener, err := buildListener(cfg, logger)
	if err != nil {
		coordinator.Shutdown()
		return err
	}

	d, err := daemon.New(cfg, logger, coordinator, listener)
	if err != nil {
		coordinator.Shutdown()
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		coordinator.Shutdown()
		return err
	}
	defer d.Stop()

	select {
	case <-signalCtx.Done():
		logger.Info("stlpipe watch shutting down")
		return nil
	case <-d.Done():
		if err := d.Err(); err != nil {
			return fmt.Errorf("feed listener: %w", err)
		}
		return nil
	}
}

func buildListener(cfg *config.Config, logger *slog.Logger) (feed.Listener, error) {
	switch cfg.Watch.Source {
	case "folder":
		return feed.NewFolder(cfg, logger), nil
	case "telegram":
		return feed.NewTelegram(cfg, logger)
	default:
		return nil, fmt.Errorf("watch.source %q is not supported", cfg.Watch.Source)
	}
}

// startMetrics serves /metrics when metrics.bind is set. The returned
// recorder is nil otherwise, which every metrics call tolerates.
func startMetrics(cfg *config.Config, logger *slog.Logger) (*metrics.Recorder, func(), error) {
	if cfg.Metrics.Bind == "" {
		return nil, func() {}, nil
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	server := &http.Server{
		Addr:              cfg.Metrics.Bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(logger, "metrics endpoint stopped", "metrics_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.bind"),
				logging.String(logging.FieldImpact, "prometheus scrapes will fail"),
			)
		}
	}()
	logger.Info("metrics endpoint listening",
		logging.String("bind", cfg.Metrics.Bind),
		logging.String(logging.FieldEventType, "metrics_start"),
	)
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
	return recorder, stop, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("source", cfg.Watch.Source),
		logging.Bool("upload_enabled", cfg.Upload.Enabled),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
