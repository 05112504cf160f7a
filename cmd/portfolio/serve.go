package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/portfolio/internal/api"
	"github.com/hyperengineering/portfolio/internal/cache"
	"github.com/hyperengineering/portfolio/internal/config"
	"github.com/hyperengineering/portfolio/internal/export"
	"github.com/hyperengineering/portfolio/internal/report"
	"github.com/hyperengineering/portfolio/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portfolio HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(os.Stdout, cfg)
	slog.Info("configuration loaded", "level", cfg.Log.Level)

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return d.run(ctx, ln)
}

// daemon is the long-running dashboard service: the HTTP API over the
// project cache plus the refresh and export workers.
type daemon struct {
	projects        *cache.Cache
	exporter        *worker.ReportCoordinator
	refreshInterval time.Duration
	exportEnabled   bool
	shutdownTimeout time.Duration
	srv             *http.Server
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	creds := newCredentialStore()
	client := newRemoteClient(cfg, creds)
	projects := cache.New(client)
	engine := newInsightEngine(cfg, creds)

	source, err := newAnalyticsSource(cfg, client, projects, "")
	if err != nil {
		return nil, err
	}
	uploader, err := export.NewUploader(cfg.Export)
	if err != nil {
		return nil, err
	}
	builder := report.NewBuilder(projects.Snapshot, engine, cfg.Report.RecentLimit)
	exporter := worker.NewReportCoordinator(builder, uploader, time.Duration(cfg.Worker.ExportInterval))

	deps := api.Deps{
		Cache:    projects,
		Insights: engine,
		Graphics: source,
		Reports:  builder,
		APIKey:   cfg.Auth.APIKey,
		Version:  Version,
	}
	// On-demand export shares the worker's switch.
	if cfg.Worker.ExportEnabled {
		deps.Exporter = exporter
	}
	handler := api.NewHandler(deps)

	slog.Info("daemon initialized",
		"remote", client.BaseURL(),
		"provider", engine.ProviderName(),
		"analytics", source.Name(),
		"export_enabled", cfg.Worker.ExportEnabled,
	)

	return &daemon{
		projects:        projects,
		exporter:        exporter,
		refreshInterval: time.Duration(cfg.Worker.RefreshInterval),
		exportEnabled:   cfg.Worker.ExportEnabled,
		shutdownTimeout: time.Duration(cfg.Server.ShutdownTimeout),
		srv: &http.Server{
			Handler:      api.NewRouter(handler),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
		},
	}, nil
}

// run serves on ln until ctx is cancelled or the server fails, then stops
// in order: HTTP server (draining requests), workers, cache. A serve
// failure is returned after the same shutdown.
func (d *daemon) run(ctx context.Context, ln net.Listener) error {
	// Workers outlive ctx until the server has drained.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var wg sync.WaitGroup
	refresher := worker.NewRefreshCoordinator(d.projects, d.refreshInterval)
	startWorker(workerCtx, &wg, "refresh", refresher.Run)
	if d.exportEnabled {
		startWorker(workerCtx, &wg, "report-export", d.exporter.Run)
	}

	err := serveHTTP(ctx, d.srv, ln, d.shutdownTimeout)

	stopWorkers()
	wg.Wait()

	if cerr := d.projects.Close(); cerr != nil {
		slog.Error("cache close error", "error", cerr)
	}

	slog.Info("shutdown complete")
	return err
}

// serveHTTP runs srv on ln until ctx ends or serving fails, then gives
// in-flight requests up to timeout to finish. A serve failure is returned.
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "address", ln.Addr().String())
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else {
			slog.Error("server error", "error", err)
		}
		serveErr <- err
		cancel()
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if err := <-serveErr; err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
