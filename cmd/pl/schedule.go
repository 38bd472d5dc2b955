package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/project"
	"github.com/zulandar/planyard/internal/schedule"
	"github.com/zulandar/planyard/internal/version"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule version commands",
	}

	cmd.AddCommand(newScheduleListCmd())
	cmd.AddCommand(newScheduleReportsCmd())
	return cmd
}

func newScheduleListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List a project's schedule versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleList(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runScheduleList(cmd *cobra.Command, configPath, ref string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	versions, err := schedule.List(gormDB, p.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(versions) == 0 {
		fmt.Fprintf(out, "Project %s has no schedule yet.\n", p.ProjectID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tCREATED\tNOTES")
	for _, v := range versions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.Version, formatTimestamp(v.CreatedAt), truncate(v.Notes, 60))
	}
	w.Flush()
	return nil
}

func newScheduleReportsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reports <project> [version]",
		Short: "Show the change reports of a schedule version",
		Long:  "Prints the change reports recorded for a schedule version. The latest version is used when none is given.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := ""
			if len(args) == 2 {
				v = args[1]
			}
			return runScheduleReports(cmd, configPath, args[0], v)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runScheduleReports(cmd *cobra.Command, configPath, ref, versionArg string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	versions, err := schedule.List(gormDB, p.ID)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return perrors.NotFound("project %s has no schedule versions", p.ProjectID)
	}

	// List is newest first.
	sv := versions[0]
	if versionArg != "" {
		want, err := version.Parse(versionArg)
		if err != nil {
			return perrors.Validation("invalid version %q", versionArg)
		}
		found := false
		for _, v := range versions {
			if v.Version == want {
				sv, found = v, true
				break
			}
		}
		if !found {
			return perrors.NotFound("project %s has no schedule version %s", p.ProjectID, want)
		}
	}

	reports, err := schedule.Reports(gormDB, sv.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Schedule %s of project %s\n", sv.Version, p.ProjectID)
	fmt.Fprintf(out, "Notes: %s\n", orDash(sv.Notes))
	if len(reports) == 0 {
		fmt.Fprintln(out, "\nNo change reports.")
		return nil
	}
	for _, r := range reports {
		fmt.Fprintf(out, "\n[%s]\n%s\n", formatTimestamp(r.CreatedAt), r.ChangeSummary)
	}
	return nil
}
