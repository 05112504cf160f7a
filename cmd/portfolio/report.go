package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/portfolio/internal/export"
	"github.com/hyperengineering/portfolio/internal/report"
)

var reportDirOverride string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build the dashboard report",
	Long:  "Build the dashboard report (distribution, predictions, insight, timeline, recent projects) and print it as JSON.",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

var reportExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build the report and store it",
	Long:  "Build the report and write it to the export directory, or to object storage when a bucket is configured.",
	Args:  cobra.NoArgs,
	RunE:  runReportExport,
}

func init() {
	reportExportCmd.Flags().StringVar(&reportDirOverride, "dir", "",
		"Export directory (overrides config and PORTFOLIO_EXPORT_DIR)")

	reportCmd.AddCommand(reportExportCmd)
}

func newReportBuilder(a *app) *report.Builder {
	return report.NewBuilder(a.cache.Snapshot, a.insightEngine(), a.cfg.Report.RecentLimit)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadedApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	return printJSON(cmd.OutOrStdout(), newReportBuilder(a).Build(ctx))
}

func runReportExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadedApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	exportCfg := a.cfg.Export
	if reportDirOverride != "" {
		exportCfg.Dir = reportDirOverride
	}
	uploader, err := export.NewUploader(exportCfg)
	if err != nil {
		return err
	}

	r := newReportBuilder(a).Build(ctx)
	data, err := report.Encode(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	name := report.FileName(r)
	location, err := uploader.Upload(ctx, name, data)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}

	url, expiry, err := uploader.PresignedURL(ctx, name)
	if err != nil && !errors.Is(err, export.ErrNotConfigured) {
		return fmt.Errorf("presign report: %w", err)
	}

	if jsonOutput {
		result := map[string]any{
			"id":       r.ID,
			"location": location,
			"bytes":    len(data),
		}
		if url != "" {
			result["url"] = url
			result["url_expires_at"] = expiry
		}
		return printJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exported report %s (%s) to %s\n", r.ID, humanize.Bytes(uint64(len(data))), location)
	if url != "" {
		fmt.Fprintf(out, "Download: %s (expires %s)\n", url, humanize.Time(expiry))
	}
	return nil
}
