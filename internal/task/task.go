// Package task provides the task tree: creation and editing with schedule
// versioning, hierarchy queries, resource assignment, comments and Gantt
// rows.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/project"
	"github.com/zulandar/planyard/internal/schedule"
)

// HoursPerDay is the working hours credited for each calendar day a task
// spans.
const HoursPerDay = 8

// CreateOpts holds parameters for creating a task.
type CreateOpts struct {
	ProjectID      uint
	ParentID       *uint
	Name           string
	Description    string
	StartDate      time.Time
	EndDate        time.Time
	DependencyDays int
	IsMilestone    bool
	IsActive       *bool             // defaults to true
	Status         models.TaskStatus // defaults to not_started
	CreatedBy      uint
}

// UpdateOpts holds the fields to change. Nil fields keep their value.
// ClearParent moves the task to the top level.
type UpdateOpts struct {
	Name           *string
	Description    *string
	StartDate      *time.Time
	EndDate        *time.Time
	DependencyDays *int
	IsMilestone    *bool
	IsActive       *bool
	Status         *models.TaskStatus
	ParentID       *uint
	ClearParent    bool
}

// UpdateResult describes the schedule version created by a substantive
// task edit.
type UpdateResult struct {
	Previous *models.ScheduleVersion     `json:"previous"`
	Version  *models.ScheduleVersion     `json:"version"`
	History  *models.TaskVersionHistory  `json:"history"`
	Report   *models.VersionChangeReport `json:"report"`
}

// ListFilters holds optional filters for listing a project's tasks.
type ListFilters struct {
	Status        models.TaskStatus
	ResourceID    uint
	MilestoneOnly bool
}

// Hours returns the working hours of a task spanning start to end
// inclusive.
func Hours(start, end time.Time) int {
	return (models.DaysBetween(start, end) + 1) * HoursPerDay
}

// Create validates opts, persists the task and records its snapshot under
// the project's latest schedule version, creating "1.0" if the project has
// none yet.
func Create(db *gorm.DB, opts CreateOpts) (*models.Task, error) {
	if opts.Status == "" {
		opts.Status = models.TaskNotStarted
	}
	active := true
	if opts.IsActive != nil {
		active = *opts.IsActive
	}
	t := models.Task{
		ProjectID:      opts.ProjectID,
		ParentID:       opts.ParentID,
		Name:           strings.TrimSpace(opts.Name),
		Description:    opts.Description,
		StartDate:      models.DateOnly(opts.StartDate),
		EndDate:        models.DateOnly(opts.EndDate),
		DependencyDays: opts.DependencyDays,
		IsMilestone:    opts.IsMilestone,
		IsActive:       active,
		Status:         opts.Status,
	}
	if err := validate(&t); err != nil {
		return nil, err
	}
	t.Hours = Hours(t.StartDate, t.EndDate)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := schedule.LockProject(tx, t.ProjectID); err != nil {
			return err
		}
		if _, err := project.Get(tx, t.ProjectID); err != nil {
			return err
		}
		if t.ParentID != nil {
			if err := checkParent(tx, &t, *t.ParentID); err != nil {
				return err
			}
		}
		if err := tx.Omit("Children").Create(&t).Error; err != nil {
			return perrors.Persistence(err, "task: create %q", t.Name)
		}
		sv, _, err := schedule.Ensure(tx, t.ProjectID, opts.CreatedBy)
		if err != nil {
			return err
		}
		_, err = schedule.RecordSnapshot(tx, &t, sv.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Get retrieves a task by ID.
func Get(db *gorm.DB, id uint) (*models.Task, error) {
	var t models.Task
	if err := db.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, perrors.NotFound("task: not found: %d", id)
		}
		return nil, perrors.Persistence(err, "task: get %d", id)
	}
	return &t, nil
}

// List returns a project's top-level tasks ordered by start date, each
// with its direct children attached.
func List(db *gorm.DB, projectID uint, filters ListFilters) ([]models.Task, error) {
	q := db.Where("project_id = ? AND parent_id IS NULL", projectID)
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.ResourceID != 0 {
		q = q.Where("id IN (?)", db.Model(&models.TaskResource{}).Select("task_id").Where("user_id = ?", filters.ResourceID))
	}
	if filters.MilestoneOnly {
		q = q.Where("is_milestone = ?", true)
	}
	var tasks []models.Task
	err := q.Preload("Children", func(db *gorm.DB) *gorm.DB {
		return db.Order("start_date ASC, id ASC")
	}).Order("start_date ASC, id ASC").Find(&tasks).Error
	if err != nil {
		return nil, perrors.Persistence(err, "task: list project %d", projectID)
	}
	return tasks, nil
}

// Update applies opts. When any mutable field changed, the project's
// schedule advances one version, the task is snapshotted under it and a
// change report links it to the previous version. The result is nil when
// nothing changed.
func Update(db *gorm.DB, id uint, opts UpdateOpts, author uint) (*models.Task, *UpdateResult, error) {
	var (
		t   models.Task
		res *UpdateResult
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		current, err := Get(tx, id)
		if err != nil {
			return err
		}
		if err := schedule.LockProject(tx, current.ProjectID); err != nil {
			return err
		}
		old := *current
		t = *current
		apply(&t, opts)
		if err := validate(&t); err != nil {
			return err
		}
		if t.ParentID != nil && !sameParent(old.ParentID, t.ParentID) {
			if err := checkParent(tx, &t, *t.ParentID); err != nil {
				return err
			}
		}
		t.Hours = Hours(t.StartDate, t.EndDate)

		if err := tx.Omit("Children").Save(&t).Error; err != nil {
			return perrors.Persistence(err, "task: update %d", id)
		}
		if !changed(&old, &t) {
			return nil
		}

		prev, next, err := schedule.Bump(tx, t.ProjectID, author, schedule.TaskUpdatedNotes(t.Name))
		if err != nil {
			return err
		}
		hist, err := schedule.RecordSnapshot(tx, &t, next.ID)
		if err != nil {
			return err
		}
		report, err := schedule.RecordChangeReport(tx, next.ID, &prev.ID, summarize(&old, &t), author)
		if err != nil {
			return err
		}
		res = &UpdateResult{Previous: prev, Version: next, History: hist, Report: report}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("task: update %d: %w", id, err)
	}
	return &t, res, nil
}

// Delete removes a task and all of its descendants together with their
// resources, comments and snapshots.
func Delete(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		t, err := Get(tx, id)
		if err != nil {
			return err
		}
		desc, err := Descendants(tx, id)
		if err != nil {
			return err
		}
		ids := []uint{t.ID}
		for _, d := range desc {
			ids = append(ids, d.ID)
		}
		for _, m := range []interface{}{&models.TaskResource{}, &models.TaskComment{}, &models.TaskVersionHistory{}} {
			if err := tx.Where("task_id IN ?", ids).Delete(m).Error; err != nil {
				return perrors.Persistence(err, "task: delete dependents of %d", id)
			}
		}
		if err := tx.Model(&models.Task{}).Where("id IN ?", ids).Update("parent_id", nil).Error; err != nil {
			return perrors.Persistence(err, "task: detach %d", id)
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Task{}).Error; err != nil {
			return perrors.Persistence(err, "task: delete %d", id)
		}
		return nil
	})
}

func apply(t *models.Task, opts UpdateOpts) {
	if opts.Name != nil {
		t.Name = strings.TrimSpace(*opts.Name)
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.StartDate != nil {
		t.StartDate = *opts.StartDate
	}
	if opts.EndDate != nil {
		t.EndDate = *opts.EndDate
	}
	if opts.DependencyDays != nil {
		t.DependencyDays = *opts.DependencyDays
	}
	if opts.IsMilestone != nil {
		t.IsMilestone = *opts.IsMilestone
	}
	if opts.IsActive != nil {
		t.IsActive = *opts.IsActive
	}
	if opts.Status != nil {
		t.Status = *opts.Status
	}
	if opts.ClearParent {
		t.ParentID = nil
	} else if opts.ParentID != nil {
		pid := *opts.ParentID
		t.ParentID = &pid
	}
	t.StartDate = models.DateOnly(t.StartDate)
	t.EndDate = models.DateOnly(t.EndDate)
}

func validate(t *models.Task) error {
	var errs []string
	if t.Name == "" || len(t.Name) > 100 {
		errs = append(errs, "name must be 1 to 100 characters")
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		errs = append(errs, "start and end dates are required")
	} else if t.EndDate.Before(t.StartDate) {
		errs = append(errs, fmt.Sprintf("end date %s precedes start date %s",
			models.FormatDate(t.EndDate), models.FormatDate(t.StartDate)))
	}
	if t.DependencyDays < 0 {
		errs = append(errs, "dependency days must not be negative")
	}
	if !t.Status.Valid() {
		errs = append(errs, fmt.Sprintf("unknown status %q", t.Status))
	}
	if t.ProjectID == 0 {
		errs = append(errs, "project is required")
	}
	if len(errs) > 0 {
		return perrors.Validation("task: %s", strings.Join(errs, "; "))
	}
	return nil
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// changed reports whether any mutable field differs.
func changed(old, cur *models.Task) bool {
	return old.Name != cur.Name ||
		old.Description != cur.Description ||
		!old.StartDate.Equal(cur.StartDate) ||
		!old.EndDate.Equal(cur.EndDate) ||
		old.DependencyDays != cur.DependencyDays ||
		old.IsMilestone != cur.IsMilestone ||
		old.IsActive != cur.IsActive ||
		old.Status != cur.Status ||
		!sameParent(old.ParentID, cur.ParentID)
}

// summarize lists the reportable changes: name, dates and status.
func summarize(old, cur *models.Task) string {
	var lines []string
	if old.Name != cur.Name {
		lines = append(lines, fmt.Sprintf("Name changed from '%s' to '%s'", old.Name, cur.Name))
	}
	if !old.StartDate.Equal(cur.StartDate) {
		lines = append(lines, fmt.Sprintf("Start date changed from %s to %s",
			models.FormatDate(old.StartDate), models.FormatDate(cur.StartDate)))
	}
	if !old.EndDate.Equal(cur.EndDate) {
		lines = append(lines, fmt.Sprintf("End date changed from %s to %s",
			models.FormatDate(old.EndDate), models.FormatDate(cur.EndDate)))
	}
	if old.Status != cur.Status {
		lines = append(lines, fmt.Sprintf("Status changed from %s to %s", old.Status.Label(), cur.Status.Label()))
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Task '%s' details updated", cur.Name)
	}
	return strings.Join(lines, "\n")
}
