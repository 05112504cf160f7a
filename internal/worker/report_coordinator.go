package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/portfolio/internal/export"
	"github.com/hyperengineering/portfolio/internal/report"
	"github.com/hyperengineering/portfolio/internal/types"
)

// ReportBuilder assembles a dashboard report.
// Implemented by *report.Builder.
type ReportBuilder interface {
	Build(ctx context.Context) types.Report
}

// ReportCoordinator builds and exports a dashboard report on a schedule.
type ReportCoordinator struct {
	builder  ReportBuilder
	uploader export.Uploader
	interval time.Duration
}

// NewReportCoordinator creates a coordinator that exports a report every interval.
func NewReportCoordinator(builder ReportBuilder, uploader export.Uploader, interval time.Duration) *ReportCoordinator {
	return &ReportCoordinator{
		builder:  builder,
		uploader: uploader,
		interval: interval,
	}
}

// Run exports a report every interval until ctx is done.
//
// The first export waits for the first tick: the cache is still loading at
// startup and an immediate report would usually be empty.
func (c *ReportCoordinator) Run(ctx context.Context) {
	log := reportLog()
	log.Info("worker started", "action", "worker_started", "interval", c.interval.String())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped", "action", "worker_stopped", "reason", "context_cancelled")
			return
		case <-ticker.C:
			c.Export(ctx)
		}
	}
}

// Export builds one report and uploads it. Returns the location on success
// and "" on failure; failures are logged, not fatal.
func (c *ReportCoordinator) Export(ctx context.Context) string {
	r := c.builder.Build(ctx)
	log := reportLog().With("report_id", r.ID)

	data, err := report.Encode(r)
	if err != nil {
		log.Error("report encoding failed", "action", "report_failed", "error", err)
		return ""
	}

	location, err := c.uploader.Upload(ctx, report.FileName(r), data)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("report upload failed", "action", "report_upload_failed", "error", err)
		}
		return ""
	}

	log.Info("report exported",
		"action", "report_exported",
		"location", location,
		"projects", r.Distribution.Total,
	)
	return location
}

func reportLog() *slog.Logger {
	return slog.Default().With("component", "worker", "worker", "report-coordinator")
}
