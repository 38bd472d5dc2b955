package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/project"
	"github.com/zulandar/planyard/internal/user"
	"github.com/zulandar/planyard/internal/version"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project management commands",
	}

	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectUpdateCmd())
	cmd.AddCommand(newProjectVersionCmd())
	cmd.AddCommand(newProjectVersionsCmd())
	cmd.AddCommand(newProjectAttachCmd())
	cmd.AddCommand(newProjectDeleteCmd())
	return cmd
}

// projectFlags are the editable project fields shared by create and update.
type projectFlags struct {
	name           string
	description    string
	start          string
	end            string
	projectType    string
	totalAmount    string
	monthlyBilling string
	manager        string
	po             string
	status         string
}

func (f *projectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "project name")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.projectType, "type", string(models.ProjectFixedPrice), "project type (fixed_price, time_and_materials)")
	cmd.Flags().StringVar(&f.totalAmount, "total-amount", "", "total amount for fixed price projects")
	cmd.Flags().StringVar(&f.monthlyBilling, "monthly-billing", "", "monthly billing for T&M projects")
	cmd.Flags().StringVar(&f.manager, "manager", "", "project manager username")
	cmd.Flags().StringVar(&f.po, "po", "", "customer PO number")
	cmd.Flags().StringVar(&f.status, "status", "", "status (entered, approved_active, canceled, completed)")
}

func (f *projectFlags) createOpts(gormDB *gorm.DB, me *models.User) (project.CreateOpts, error) {
	opts := project.CreateOpts{
		Name:             f.name,
		Description:      f.description,
		Type:             models.ProjectType(f.projectType),
		CustomerPONumber: f.po,
		Status:           models.ProjectStatus(f.status),
		CreatedBy:        me.ID,
	}
	var err error
	if opts.StartDate, err = parseDateFlag("start", f.start); err != nil {
		return opts, err
	}
	if opts.EndDate, err = parseDateFlag("end", f.end); err != nil {
		return opts, err
	}
	if opts.TotalAmount, err = parseAmountFlag("total-amount", f.totalAmount); err != nil {
		return opts, err
	}
	if opts.MonthlyBilling, err = parseAmountFlag("monthly-billing", f.monthlyBilling); err != nil {
		return opts, err
	}
	if opts.ManagerID, err = userIDFor(gormDB, f.manager); err != nil {
		return opts, err
	}
	if opts.ManagerID == 0 && me.Role == models.RoleProjectManager {
		opts.ManagerID = me.ID
	}
	return opts, nil
}

// updateOpts converts only the flags set on the command line.
func (f *projectFlags) updateOpts(cmd *cobra.Command, gormDB *gorm.DB) (project.UpdateOpts, error) {
	var opts project.UpdateOpts
	set := cmd.Flags().Changed
	if set("name") {
		opts.Name = &f.name
	}
	if set("description") {
		opts.Description = &f.description
	}
	if set("start") {
		d, err := parseDateFlag("start", f.start)
		if err != nil {
			return opts, err
		}
		opts.StartDate = &d
	}
	if set("end") {
		d, err := parseDateFlag("end", f.end)
		if err != nil {
			return opts, err
		}
		opts.EndDate = &d
	}
	if set("type") {
		t := models.ProjectType(f.projectType)
		opts.Type = &t
	}
	var err error
	if opts.TotalAmount, err = parseAmountFlag("total-amount", f.totalAmount); err != nil {
		return opts, err
	}
	if opts.MonthlyBilling, err = parseAmountFlag("monthly-billing", f.monthlyBilling); err != nil {
		return opts, err
	}
	if set("manager") {
		id, err := userIDFor(gormDB, f.manager)
		if err != nil {
			return opts, err
		}
		opts.ManagerID = &id
	}
	if set("po") {
		opts.CustomerPONumber = &f.po
	}
	if set("status") {
		s := models.ProjectStatus(f.status)
		opts.Status = &s
	}
	return opts, nil
}

func newProjectCreateCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		flags      projectFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new project",
		Long:  "Creates a project with a generated five digit identifier and records version 1.0.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectCreate(cmd, configPath, actor, &flags)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	flags.register(cmd)
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func runProjectCreate(cmd *cobra.Command, configPath, actor string, flags *projectFlags) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return err
	}
	if !user.CanCreateProject(me) {
		return denied(me, "create projects")
	}
	opts, err := flags.createOpts(gormDB, me)
	if err != nil {
		return err
	}

	p, err := project.Create(gormDB, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created project %s (id %d)\n", p.ProjectID, p.ID)
	fmt.Fprintf(out, "Version: %s\n", version.Initial)
	return nil
}

func newProjectListCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		filters    project.ListFilters
		status     string
		manager    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Long:  "Lists projects newest first. With --as the listing is limited to what that user may see.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters.Status = models.ProjectStatus(status)
			return runProjectList(cmd, configPath, actor, manager, filters)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "as", "", "scope the listing to this user")
	cmd.Flags().StringVar(&filters.ProjectID, "id", "", "filter by project identifier substring")
	cmd.Flags().StringVar(&filters.Name, "name", "", "filter by name substring")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&manager, "manager", "", "filter by manager username")
	cmd.Flags().IntVar(&filters.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&filters.PerPage, "per-page", project.DefaultPerPage, "projects per page")
	return cmd
}

func runProjectList(cmd *cobra.Command, configPath, actor, manager string, filters project.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if filters.ManagerID, err = userIDFor(gormDB, manager); err != nil {
		return err
	}
	if actor != "" {
		me, err := actorFor(gormDB, actor)
		if err != nil {
			return err
		}
		switch me.Role {
		case models.RoleProjectManager:
			filters.ManagerID = me.ID
		case models.RoleTeamMember:
			filters.MemberID = me.ID
		}
	}

	page, err := project.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(page.Projects) == 0 {
		fmt.Fprintln(out, "No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tNAME\tSTATUS\tSTART\tEND\tTYPE")
	for _, p := range page.Projects {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.ProjectID, truncate(p.Name, 40), p.Status.Label(),
			formatDate(p.StartDate), formatDate(p.EndDate), p.Type.Label())
	}
	w.Flush()
	fmt.Fprintf(out, "\nPage %d of %d (%d projects)\n", page.Page, page.Pages(), page.Total)
	return nil
}

func newProjectShowCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "show <project>",
		Short: "Show project details",
		Long:  "Displays a project with its version history and attachments. <project> is the five digit identifier or the numeric id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectShow(cmd, configPath, actor, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&actor, "as", "", "check visibility for this user")
	return cmd
}

func runProjectShow(cmd *cobra.Command, configPath, actor, ref string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	if actor != "" {
		me, err := actorFor(gormDB, actor)
		if err != nil {
			return err
		}
		if !user.CanViewProject(me, p) {
			return denied(me, "view project "+p.ProjectID)
		}
	}
	d, err := project.GetDetail(gormDB, p.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project:     %s (id %d)\n", d.Project.ProjectID, d.Project.ID)
	fmt.Fprintf(out, "Name:        %s\n", d.Project.Name)
	fmt.Fprintf(out, "Status:      %s\n", d.Project.Status.Label())
	fmt.Fprintf(out, "Type:        %s\n", d.Project.Type.Label())
	fmt.Fprintf(out, "Dates:       %s to %s\n", formatDate(d.Project.StartDate), formatDate(d.Project.EndDate))
	fmt.Fprintf(out, "Manager:     %s\n", d.ManagerName)
	switch d.Project.Type {
	case models.ProjectFixedPrice:
		fmt.Fprintf(out, "Total:       %s\n", formatAmount(d.Project.TotalAmount))
	case models.ProjectTimeAndMaterials:
		fmt.Fprintf(out, "Monthly:     %s\n", formatAmount(d.Project.MonthlyBilling))
	}
	fmt.Fprintf(out, "PO number:   %s\n", orDash(d.Project.CustomerPONumber))
	if d.Project.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n  %s\n", d.Project.Description)
	}

	if len(d.Versions) > 0 {
		fmt.Fprintf(out, "\nVersions:\n")
		for _, v := range d.Versions {
			fmt.Fprintf(out, "  %s  %s  %s\n", v.Version, formatTimestamp(v.CreatedAt), v.Changes)
		}
	}
	if len(d.Attachments) > 0 {
		fmt.Fprintf(out, "\nAttachments:\n")
		for _, a := range d.Attachments {
			fmt.Fprintf(out, "  [%s] %s (%s)\n", a.Kind, a.Filename, a.FilePath)
		}
	}
	return nil
}

func newProjectUpdateCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		flags      projectFlags
	)

	cmd := &cobra.Command{
		Use:   "update <project>",
		Short: "Update project fields",
		Long:  "Updates the given fields. Changes to name, dates, status or manager record a new project version.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectUpdate(cmd, configPath, actor, args[0], &flags)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	flags.register(cmd)
	return cmd
}

func runProjectUpdate(cmd *cobra.Command, configPath, actor, ref string, flags *projectFlags) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	if !user.CanEditProject(me, p) {
		return denied(me, "edit project "+p.ProjectID)
	}
	opts, err := flags.updateOpts(cmd, gormDB)
	if err != nil {
		return err
	}
	if opts.ManagerID != nil && *opts.ManagerID != p.ManagerID && me.Role != models.RoleAdmin {
		return denied(me, "change the project manager")
	}

	p, pv, err := project.Update(gormDB, p.ID, opts, me.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Updated project %s\n", p.ProjectID)
	if pv != nil {
		fmt.Fprintf(out, "New version %s:\n%s\n", pv.Version, pv.Changes)
	}
	return nil
}

func newProjectVersionCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		changes    string
	)

	cmd := &cobra.Command{
		Use:   "version <project>",
		Short: "Record a project version manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectVersion(cmd, configPath, actor, args[0], changes)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	cmd.Flags().StringVar(&changes, "changes", "", "description of the changes (required)")
	cmd.MarkFlagRequired("changes")
	return cmd
}

func runProjectVersion(cmd *cobra.Command, configPath, actor, ref, changes string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	if !user.CanEditProject(me, p) {
		return denied(me, "version project "+p.ProjectID)
	}

	pv, err := project.NewVersion(gormDB, p.ID, changes, me.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Project %s is now version %s\n", p.ProjectID, pv.Version)
	return nil
}

func newProjectVersionsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "versions <project>",
		Short: "List a project's versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectVersions(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runProjectVersions(cmd *cobra.Command, configPath, ref string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	versions, err := project.Versions(gormDB, p.ID)
	if err != nil {
		return err
	}
	ids := make([]uint, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.CreatedBy)
	}
	names, err := user.Names(gormDB, ids)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tCREATED\tBY\tCHANGES")
	for _, v := range versions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Version, formatTimestamp(v.CreatedAt), orDash(names[v.CreatedBy]), truncate(v.Changes, 60))
	}
	w.Flush()
	return nil
}

func newProjectAttachCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		kind       string
		filename   string
		filePath   string
	)

	cmd := &cobra.Command{
		Use:   "attach <project>",
		Short: "Record a PO or SOW document for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectAttach(cmd, configPath, actor, args[0], project.AttachmentOpts{
				Kind:     models.AttachmentKind(kind),
				Filename: filename,
				FilePath: filePath,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	cmd.Flags().StringVar(&kind, "kind", string(models.AttachmentPO), "attachment kind (po, sow)")
	cmd.Flags().StringVar(&filename, "filename", "", "original file name (required)")
	cmd.Flags().StringVar(&filePath, "path", "", "stored file path (required)")
	cmd.MarkFlagRequired("filename")
	cmd.MarkFlagRequired("path")
	return cmd
}

func runProjectAttach(cmd *cobra.Command, configPath, actor, ref string, opts project.AttachmentOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	if !user.CanEditProject(me, p) {
		return denied(me, "attach documents to project "+p.ProjectID)
	}
	opts.ProjectID = p.ID
	opts.UploadedBy = me.ID

	a, err := project.AddAttachment(gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Attached %s to project %s (id %d)\n", a.Filename, p.ProjectID, a.ID)
	return nil
}

func newProjectDeleteCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "delete <project>",
		Short: "Delete a project with its tasks and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectDelete(cmd, configPath, actor, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	return cmd
}

func runProjectDelete(cmd *cobra.Command, configPath, actor, ref string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return err
	}
	if !user.CanDeleteProject(me) {
		return denied(me, "delete projects")
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	if err := project.Delete(gormDB, p.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", p.ProjectID)
	return nil
}
