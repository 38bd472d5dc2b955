package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/project"
	"github.com/zulandar/planyard/internal/schedule"
	"github.com/zulandar/planyard/internal/task"
	"github.com/zulandar/planyard/internal/user"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskTreeCmd())
	cmd.AddCommand(newTaskAssignCmd())
	cmd.AddCommand(newTaskUnassignCmd())
	cmd.AddCommand(newTaskCommentCmd())
	cmd.AddCommand(newTaskGanttCmd())
	return cmd
}

func parseID(what, s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, perrors.Validation("invalid %s id %q", what, s)
	}
	return uint(id), nil
}

// taskContext loads a task, its project and the acting user.
func taskContext(gormDB *gorm.DB, idArg, actor string) (*models.Task, *models.Project, *models.User, error) {
	id, err := parseID("task", idArg)
	if err != nil {
		return nil, nil, nil, err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return nil, nil, nil, err
	}
	t, err := task.Get(gormDB, id)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := project.Get(gormDB, t.ProjectID)
	if err != nil {
		return nil, nil, nil, err
	}
	return t, p, me, nil
}

// taskFlags are the editable task fields shared by create and update.
type taskFlags struct {
	name           string
	description    string
	start          string
	end            string
	dependencyDays int
	milestone      bool
	active         bool
	status         string
	parent         uint
	topLevel       bool
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "task name")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.dependencyDays, "dependency-days", 0, "days of lag after the parent")
	cmd.Flags().BoolVar(&f.milestone, "milestone", false, "mark the task as a milestone")
	cmd.Flags().BoolVar(&f.active, "active", true, "whether the task is active")
	cmd.Flags().StringVar(&f.status, "status", "", "status (not_started, in_progress, completed, pending)")
	cmd.Flags().UintVar(&f.parent, "parent", 0, "parent task id")
}

// updateOpts converts only the flags set on the command line.
func (f *taskFlags) updateOpts(cmd *cobra.Command) (task.UpdateOpts, error) {
	var opts task.UpdateOpts
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
	if set("dependency-days") {
		opts.DependencyDays = &f.dependencyDays
	}
	if set("milestone") {
		opts.IsMilestone = &f.milestone
	}
	if set("active") {
		opts.IsActive = &f.active
	}
	if set("status") {
		s := models.TaskStatus(f.status)
		opts.Status = &s
	}
	if set("parent") {
		opts.ParentID = &f.parent
	}
	opts.ClearParent = f.topLevel
	return opts, nil
}

func newTaskCreateCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		projectRef string
		flags      taskFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task in a project",
		Long:  "Creates a task. Dates default to the project's dates. The first task of a project starts schedule version 1.0.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskCreate(cmd, configPath, actor, projectRef, &flags)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	cmd.Flags().StringVar(&projectRef, "project", "", "project identifier or id (required)")
	flags.register(cmd)
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runTaskCreate(cmd *cobra.Command, configPath, actor, projectRef string, flags *taskFlags) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, projectRef)
	if err != nil {
		return err
	}
	if !user.CanManageTasks(me, p) {
		return denied(me, "manage tasks of project "+p.ProjectID)
	}

	opts := task.CreateOpts{
		ProjectID:      p.ID,
		Name:           flags.name,
		Description:    flags.description,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		DependencyDays: flags.dependencyDays,
		IsMilestone:    flags.milestone,
		IsActive:       &flags.active,
		Status:         models.TaskStatus(flags.status),
		CreatedBy:      me.ID,
	}
	if flags.start != "" {
		if opts.StartDate, err = parseDateFlag("start", flags.start); err != nil {
			return err
		}
	}
	if flags.end != "" {
		if opts.EndDate, err = parseDateFlag("end", flags.end); err != nil {
			return err
		}
	}
	if flags.parent != 0 {
		opts.ParentID = &flags.parent
	}

	t, err := task.Create(gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task %d %q (%d hours)\n", t.ID, t.Name, t.Hours)
	return nil
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		projectRef string
		status     string
		resource   string
		milestones bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's top-level tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskList(cmd, configPath, projectRef, resource, task.ListFilters{
				Status:        models.TaskStatus(status),
				MilestoneOnly: milestones,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&projectRef, "project", "", "project identifier or id (required)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&resource, "resource", "", "filter by assigned username")
	cmd.Flags().BoolVar(&milestones, "milestones", false, "only milestones")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runTaskList(cmd *cobra.Command, configPath, projectRef, resource string, filters task.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, projectRef)
	if err != nil {
		return err
	}
	if filters.ResourceID, err = userIDFor(gormDB, resource); err != nil {
		return err
	}

	tasks, err := task.List(gormDB, p.ID, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTART\tEND\tHOURS\tSUBTASKS")
	for _, t := range tasks {
		name := truncate(t.Name, 40)
		if t.IsMilestone {
			name = "◆ " + name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
			t.ID, name, t.Status.Label(), formatDate(t.StartDate), formatDate(t.EndDate), t.Hours, len(t.Children))
	}
	w.Flush()
	return nil
}

func newTaskShowCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Long:  "Displays a task with its subtasks, resources, comments and schedule history. Viewing marks the comments read.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskShow(cmd, configPath, actor, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	return cmd
}

func runTaskShow(cmd *cobra.Command, configPath, actor, idArg string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	t, p, me, err := taskContext(gormDB, idArg, actor)
	if err != nil {
		return err
	}
	if !user.CanViewProject(me, p) {
		return denied(me, "view project "+p.ProjectID)
	}
	if err := task.MarkRead(gormDB, t.ID); err != nil {
		return err
	}

	children, err := task.Children(gormDB, t.ID)
	if err != nil {
		return err
	}
	resources, err := task.Resources(gormDB, t.ID)
	if err != nil {
		return err
	}
	comments, err := task.Comments(gormDB, t.ID)
	if err != nil {
		return err
	}
	history, err := schedule.History(gormDB, t.ID)
	if err != nil {
		return err
	}
	versions, err := schedule.List(gormDB, p.ID)
	if err != nil {
		return err
	}
	versionNames := make(map[uint]string, len(versions))
	for _, v := range versions {
		versionNames[v.ID] = v.Version.String()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Task:        %d\n", t.ID)
	fmt.Fprintf(out, "Name:        %s\n", t.Name)
	fmt.Fprintf(out, "Project:     %s %s\n", p.ProjectID, p.Name)
	fmt.Fprintf(out, "Status:      %s\n", t.Status.Label())
	fmt.Fprintf(out, "Dates:       %s to %s (%d hours)\n", formatDate(t.StartDate), formatDate(t.EndDate), t.Hours)
	if t.ParentID != nil {
		fmt.Fprintf(out, "Parent:      %d\n", *t.ParentID)
	}
	fmt.Fprintf(out, "Milestone:   %s\n", yesNo(t.IsMilestone))
	fmt.Fprintf(out, "Active:      %s\n", yesNo(t.IsActive))
	if t.DependencyDays > 0 {
		fmt.Fprintf(out, "Lag:         %d days\n", t.DependencyDays)
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n  %s\n", t.Description)
	}

	if len(children) > 0 {
		fmt.Fprintf(out, "\nSubtasks:\n")
		for _, c := range children {
			fmt.Fprintf(out, "  %d  %s [%s]\n", c.ID, c.Name, c.Status.Label())
		}
	}
	if len(resources) > 0 {
		fmt.Fprintf(out, "\nResources:\n")
		for _, r := range resources {
			fmt.Fprintf(out, "  %d  %s (%s) %s %s\n", r.ID, r.Name, r.Username, orDash(r.Designation), orDash(r.Grade))
		}
	}
	if len(comments) > 0 {
		fmt.Fprintf(out, "\nComments:\n")
		for _, c := range comments {
			fmt.Fprintf(out, "  [%s] %s: %s\n", formatTimestamp(c.CreatedAt), c.Author, c.Content)
		}
	}
	if len(history) > 0 {
		fmt.Fprintf(out, "\nSchedule history:\n")
		for _, h := range history {
			fmt.Fprintf(out, "  %-6s %s to %s  %s\n", orDash(versionNames[h.ScheduleVersionID]), formatDate(h.StartDate), formatDate(h.EndDate), h.Status.Label())
		}
	}
	return nil
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		flags      taskFlags
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Long:  "Updates the given fields. Any substantive change advances the project's schedule version and records a change report.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskUpdate(cmd, configPath, actor, args[0], &flags)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.topLevel, "top-level", false, "move the task to the top level")
	return cmd
}

func runTaskUpdate(cmd *cobra.Command, configPath, actor, idArg string, flags *taskFlags) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	t, p, me, err := taskContext(gormDB, idArg, actor)
	if err != nil {
		return err
	}
	if !user.CanManageTasks(me, p) {
		return denied(me, "manage tasks of project "+p.ProjectID)
	}
	opts, err := flags.updateOpts(cmd)
	if err != nil {
		return err
	}

	updated, res, err := task.Update(gormDB, t.ID, opts, me.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Updated task %d %q\n", updated.ID, updated.Name)
	if res == nil {
		fmt.Fprintln(out, "No changes; schedule version unchanged.")
		return nil
	}
	fmt.Fprintf(out, "Schedule %s -> %s\n", res.Previous.Version, res.Version.Version)
	fmt.Fprintln(out, res.Report.ChangeSummary)
	return nil
}

func newTaskDeleteCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and all of its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskDelete(cmd, configPath, actor, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	return cmd
}

func runTaskDelete(cmd *cobra.Command, configPath, actor, idArg string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	t, p, me, err := taskContext(gormDB, idArg, actor)
	if err != nil {
		return err
	}
	if !user.CanManageTasks(me, p) {
		return denied(me, "manage tasks of project "+p.ProjectID)
	}
	desc, err := task.Descendants(gormDB, t.ID)
	if err != nil {
		return err
	}
	if err := task.Delete(gormDB, t.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d and %d subtask(s)\n", t.ID, len(desc))
	return nil
}

func newTaskTreeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tree <id>",
		Short: "Print a task and its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskTree(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runTaskTree(cmd *cobra.Command, configPath, idArg string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	id, err := parseID("task", idArg)
	if err != nil {
		return err
	}
	root, err := task.Get(gormDB, id)
	if err != nil {
		return err
	}
	desc, err := task.Descendants(gormDB, id)
	if err != nil {
		return err
	}

	children := make(map[uint][]models.Task)
	for _, t := range desc {
		if t.ParentID != nil {
			children[*t.ParentID] = append(children[*t.ParentID], t)
		}
	}
	printTree(cmd.OutOrStdout(), *root, children, "", map[uint]bool{})
	return nil
}

// printTree writes t and its subtree, one task per line, indented by depth.
func printTree(out io.Writer, t models.Task, children map[uint][]models.Task, indent string, seen map[uint]bool) {
	if seen[t.ID] {
		return
	}
	seen[t.ID] = true
	fmt.Fprintf(out, "%s%d %s [%s] %s..%s\n", indent, t.ID, t.Name, t.Status.Label(), formatDate(t.StartDate), formatDate(t.EndDate))
	for _, c := range children[t.ID] {
		printTree(out, c, children, indent+"  ", seen)
	}
}

func newTaskAssignCmd() *cobra.Command {
	var (
		configPath  string
		actor       string
		username    string
		designation string
		grade       string
	)

	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign a user to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskAssign(cmd, configPath, actor, args[0], username, task.AssignOpts{
				Designation: designation,
				Grade:       grade,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	cmd.Flags().StringVar(&username, "user", "", "username to assign (required)")
	cmd.Flags().StringVar(&designation, "designation", "", "role on the task")
	cmd.Flags().StringVar(&grade, "grade", "", "grade")
	cmd.MarkFlagRequired("user")
	return cmd
}

func runTaskAssign(cmd *cobra.Command, configPath, actor, idArg, username string, opts task.AssignOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	t, p, me, err := taskContext(gormDB, idArg, actor)
	if err != nil {
		return err
	}
	if !user.CanManageTasks(me, p) {
		return denied(me, "manage tasks of project "+p.ProjectID)
	}
	assignee, err := user.GetByUsername(gormDB, username)
	if err != nil {
		return err
	}
	opts.TaskID = t.ID
	opts.UserID = assignee.ID

	r, err := task.Assign(gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to task %d (resource %d)\n", assignee.Username, t.ID, r.ID)
	return nil
}

func newTaskUnassignCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "unassign <resource-id>",
		Short: "Remove a resource assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskUnassign(cmd, configPath, actor, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	return cmd
}

func runTaskUnassign(cmd *cobra.Command, configPath, actor, idArg string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	id, err := parseID("resource", idArg)
	if err != nil {
		return err
	}
	me, err := actorFor(gormDB, actor)
	if err != nil {
		return err
	}
	var r models.TaskResource
	if err := gormDB.First(&r, id).Error; err != nil {
		return perrors.Persistence(err, "resource %d", id)
	}
	t, err := task.Get(gormDB, r.TaskID)
	if err != nil {
		return err
	}
	p, err := project.Get(gormDB, t.ProjectID)
	if err != nil {
		return err
	}
	if !user.CanManageTasks(me, p) {
		return denied(me, "manage tasks of project "+p.ProjectID)
	}

	if err := task.Unassign(gormDB, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed resource %d from task %d\n", id, t.ID)
	return nil
}

func newTaskCommentCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "comment <id> <text>",
		Short: "Comment on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskComment(cmd, configPath, actor, args[0], args[1])
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	return cmd
}

func runTaskComment(cmd *cobra.Command, configPath, actor, idArg, content string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	t, p, me, err := taskContext(gormDB, idArg, actor)
	if err != nil {
		return err
	}
	if !user.CanComment(me, p) {
		return denied(me, "comment on project "+p.ProjectID)
	}

	c, err := task.AddComment(gormDB, t.ID, me.ID, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added comment %d to task %d\n", c.ID, t.ID)
	return nil
}

func newTaskGanttCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "gantt <project>",
		Short: "Print a project's tasks as Gantt rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskGantt(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runTaskGantt(cmd *cobra.Command, configPath, ref string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	p, err := project.Resolve(gormDB, ref)
	if err != nil {
		return err
	}
	rows, err := task.Gantt(gormDB, p.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tPROGRESS\tDEPENDS ON\tRESOURCES")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			r.ID, truncate(r.Name, 40), r.Start, r.End, r.Progress, orDash(r.Dependencies), orDash(r.Resources))
	}
	w.Flush()
	return nil
}
