package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hyperengineering/portfolio/internal/config"
	"github.com/hyperengineering/portfolio/internal/logging"
	"github.com/hyperengineering/portfolio/internal/types"
)

// setupLogging installs the configured logger writing to w.
func setupLogging(w io.Writer, cfg *config.Config) *slog.Logger {
	return logging.Setup(w, cfg.Log)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// formatEndDate renders an optional end date, "-" when absent.
func formatEndDate(d *types.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

// formatRelative renders t relative to now ("3 days ago"), "-" for zero.
func formatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// formatDays renders a signed day count as "in N days" or "N days overdue".
func formatDays(days int) string {
	switch {
	case days < 0:
		return humanize.Comma(int64(-days)) + " days overdue"
	case days == 1:
		return "in 1 day"
	default:
		return "in " + humanize.Comma(int64(days)) + " days"
	}
}

// orDash returns s, or "-" when s is empty.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
