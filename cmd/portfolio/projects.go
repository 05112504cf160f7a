package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/portfolio/internal/types"
)

var (
	projectsStatus string

	draftName        string
	draftDescription string
	draftStatus      string
	draftStart       string
	draftEnd         string
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "Manage projects in the remote store",
	Long:    "List, create, update and delete projects through the project cache.",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectsList,
}

var projectsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsGet,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project",
	Args:  cobra.NoArgs,
	RunE:  runProjectsCreate,
}

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a project",
	Long:  "Update a project. Flags that are not given keep their current value.",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsUpdate,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsDelete,
}

func init() {
	projectsListCmd.Flags().StringVar(&projectsStatus, "status", "",
		"Only list projects with this status (in_progress, completed)")

	for _, c := range []*cobra.Command{projectsCreateCmd, projectsUpdateCmd} {
		c.Flags().StringVar(&draftName, "name", "", "Project name")
		c.Flags().StringVar(&draftDescription, "description", "", "Project description")
		c.Flags().StringVar(&draftStatus, "status", "", "Project status (in_progress, completed)")
		c.Flags().StringVar(&draftStart, "start", "", "Start date (YYYY-MM-DD)")
		c.Flags().StringVar(&draftEnd, "end", "", "End date (YYYY-MM-DD); \"none\" clears it on update")
	}

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsGetCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsUpdateCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	if err := a.load(ctx); err != nil {
		return err
	}

	var filter types.ProjectStatus
	if projectsStatus != "" {
		filter = types.ParseStatus(projectsStatus)
		if !filter.Valid() {
			return fmt.Errorf("unknown status %q", projectsStatus)
		}
	}

	projects := make([]types.Project, 0, a.cache.Len())
	for _, p := range a.cache.Snapshot() {
		if filter == "" || p.Status == filter {
			projects = append(projects, p)
		}
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"projects": projects,
			"total":    len(projects),
		})
	}

	if len(projects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
		return nil
	}

	now := time.Now()
	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTART\tEND\tUPDATED")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			p.Name,
			p.Status.Label(),
			p.StartDate,
			formatEndDate(p.EndDate),
			formatRelative(p.UpdatedAt, now),
		)
	}
	w.Flush()

	return nil
}

func runProjectsGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	p, err := a.cache.Get(ctx, args[0])
	if err != nil {
		return explainError("get project", err)
	}
	return printProject(cmd, p)
}

func runProjectsCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var draft types.ProjectDraft
	status := draftStatus
	if status == "" {
		status = string(types.StatusInProgress)
	}
	if err := applyDraftFlags(cmd, &draft, status); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	p, err := a.cache.Create(ctx, draft)
	if err != nil {
		return explainError("create project", err)
	}

	if !jsonOutput {
		fmt.Fprintf(cmd.OutOrStdout(), "Created project %q (%s)\n", p.Name, p.ID)
		return nil
	}
	return printJSON(cmd.OutOrStdout(), p)
}

func runProjectsUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	current, err := a.cache.Get(ctx, id)
	if err != nil {
		return explainError("update project", err)
	}

	draft := current.Draft()
	if err := applyDraftFlags(cmd, &draft, draftStatus); err != nil {
		return err
	}

	p, err := a.cache.Update(ctx, id, draft)
	if err != nil {
		return explainError("update project", err)
	}

	if !jsonOutput {
		fmt.Fprintf(cmd.OutOrStdout(), "Updated project %q (%s)\n", p.Name, p.ID)
		return nil
	}
	return printJSON(cmd.OutOrStdout(), p)
}

func runProjectsDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	if err := a.cache.Delete(ctx, id); err != nil {
		return explainError("delete project", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"deleted": id})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", id)
	return nil
}

// applyDraftFlags overlays the flags the user set onto draft. status is
// applied when non-empty.
func applyDraftFlags(cmd *cobra.Command, draft *types.ProjectDraft, status string) error {
	flags := cmd.Flags()

	if flags.Changed("name") {
		draft.Name = draftName
	}
	if flags.Changed("description") {
		draft.Description = draftDescription
	}
	if status != "" {
		draft.Status = types.ParseStatus(status)
	}
	if flags.Changed("start") {
		d, err := types.ParseDate(draftStart)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		draft.StartDate = d
	}
	if flags.Changed("end") {
		if strings.EqualFold(draftEnd, "none") || draftEnd == "" {
			draft.EndDate = nil
		} else {
			d, err := types.ParseDate(draftEnd)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			draft.EndDate = &d
		}
	}
	return nil
}

func printProject(cmd *cobra.Command, p *types.Project) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), p)
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintf(w, "ID:\t%s\n", p.ID)
	fmt.Fprintf(w, "Name:\t%s\n", p.Name)
	fmt.Fprintf(w, "Description:\t%s\n", orDash(p.Description))
	fmt.Fprintf(w, "Status:\t%s\n", p.Status.Label())
	fmt.Fprintf(w, "Start:\t%s\n", p.StartDate)
	fmt.Fprintf(w, "End:\t%s\n", formatEndDate(p.EndDate))
	fmt.Fprintf(w, "Updated:\t%s\n", formatRelative(p.UpdatedAt, time.Now()))
	return w.Flush()
}
