package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/portfolio/internal/analytics"
	"github.com/hyperengineering/portfolio/internal/types"
)

var (
	analyticsSourceFlag string
	recentLimit         int
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Portfolio analytics",
}

var analyticsDistributionCmd = &cobra.Command{
	Use:   "distribution",
	Short: "Project counts and shares per status",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsDistribution,
}

var analyticsTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Projects started, completed and active per month",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsTimeline,
}

var analyticsRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Most recently created projects",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsRecent,
}

var analyticsGraphicsCmd = &cobra.Command{
	Use:   "graphics",
	Short: "Dashboard summary from the configured analytics source",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsGraphics,
}

var analyticsProjectCmd = &cobra.Command{
	Use:   "project <id>",
	Short: "Server-computed analysis of one project",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyticsProject,
}

func init() {
	analyticsGraphicsCmd.Flags().StringVar(&analyticsSourceFlag, "source", "",
		"Analytics source: remote or local (overrides config)")
	analyticsRecentCmd.Flags().IntVar(&recentLimit, "limit", 5, "Number of projects to show")

	analyticsCmd.AddCommand(analyticsDistributionCmd)
	analyticsCmd.AddCommand(analyticsTimelineCmd)
	analyticsCmd.AddCommand(analyticsRecentCmd)
	analyticsCmd.AddCommand(analyticsGraphicsCmd)
	analyticsCmd.AddCommand(analyticsProjectCmd)
}

// loadedApp builds the app and loads the cache.
func loadedApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, err
	}
	if err := a.load(ctx); err != nil {
		a.cache.Close()
		return nil, err
	}
	return a, nil
}

func runAnalyticsDistribution(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadedApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	dist := analytics.Distribution(a.cache.Snapshot())
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), dist)
	}
	return printStatusCounts(cmd, dist.Total, dist.Statuses)
}

func runAnalyticsTimeline(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadedApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	points := analytics.Timeline(a.cache.Snapshot(), time.Now())
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"timeline": points})
	}

	if len(points) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No project activity.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "MONTH\tSTARTED\tCOMPLETED\tACTIVE")
	for _, p := range points {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", p.Month, p.Started, p.Completed, p.Active)
	}
	w.Flush()
	return nil
}

func runAnalyticsRecent(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := loadedApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	recent := analytics.Recent(a.cache.Snapshot(), recentLimit)
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"projects": recent})
	}

	if len(recent) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
		return nil
	}

	now := time.Now()
	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "NAME\tSTATUS\tCREATED")
	for _, p := range recent {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Status.Label(), formatRelative(p.CreatedAt, now))
	}
	w.Flush()
	return nil
}

func runAnalyticsGraphics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	source, err := a.analyticsSource(analyticsSourceFlag)
	if err != nil {
		return err
	}
	if _, local := source.(*analytics.Local); local {
		if err := a.load(ctx); err != nil {
			return err
		}
	}

	g, err := source.Graphics(ctx)
	if err != nil {
		return explainError("fetch analytics", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"source":   source.Name(),
			"graphics": g,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source: %s\n", source.Name())
	fmt.Fprintf(out, "Completed: %s  In progress: %s\n\n",
		humanize.Comma(int64(g.CompletedProjects)), humanize.Comma(int64(g.InProgressProjects)))
	return printStatusCounts(cmd, g.TotalProjects, g.ProjectsByStatus)
}

func runAnalyticsProject(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	res, err := analytics.NewRemote(a.remote).ProjectAnalysis(ctx, args[0])
	if err != nil {
		return explainError("fetch analysis", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), res)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Summary)
	fmt.Fprintf(out, "Portfolio size: %s projects (generated %s)\n",
		humanize.Comma(int64(res.TotalProjects)), formatRelative(res.GeneratedAt, time.Now()))
	return nil
}

func printStatusCounts(cmd *cobra.Command, total int, counts []types.StatusCount) error {
	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "STATUS\tCOUNT\tSHARE")
	for _, sc := range counts {
		fmt.Fprintf(w, "%s\t%s\t%.1f%%\n", sc.Status.Label(), humanize.Comma(int64(sc.Count)), sc.Percentage)
	}
	fmt.Fprintf(w, "Total\t%s\t\n", humanize.Comma(int64(total)))
	return w.Flush()
}
