// Package schedule maintains the per-project schedule version lineage, the
// task snapshots recorded under each version and the change reports that
// link consecutive versions.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/version"
)

// InitialNotes labels the "1.0" version created for a project's first task.
const InitialNotes = "Initial schedule creation"

// TaskUpdatedNotes is the note attached to a version bump caused by an
// edit of the named task.
func TaskUpdatedNotes(taskName string) string {
	return fmt.Sprintf("Task '%s' updated", taskName)
}

// LockProject takes a row lock on the project so concurrent version bumps
// for it serialize. SQLite serializes writers itself and has no FOR UPDATE.
func LockProject(tx *gorm.DB, projectID uint) error {
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	var p models.Project
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&p, projectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return perrors.NotFound("schedule: project not found: %d", projectID)
		}
		return perrors.Persistence(err, "schedule: lock project %d", projectID)
	}
	return nil
}

// Latest returns the highest schedule version of projectID by numeric
// order, or nil when the project has none.
func Latest(db *gorm.DB, projectID uint) (*models.ScheduleVersion, error) {
	var rows []models.ScheduleVersion
	if err := db.Where("project_id = ?", projectID).Find(&rows).Error; err != nil {
		return nil, perrors.Persistence(err, "schedule: load versions for project %d", projectID)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	best := 0
	for i := 1; i < len(rows); i++ {
		if rows[best].Version.Less(rows[i].Version) {
			best = i
		}
	}
	return &rows[best], nil
}

// Ensure returns the latest schedule version of projectID, creating "1.0"
// when none exists. created reports whether a row was inserted.
func Ensure(db *gorm.DB, projectID, author uint) (sv *models.ScheduleVersion, created bool, err error) {
	latest, err := Latest(db, projectID)
	if err != nil {
		return nil, false, err
	}
	if latest != nil {
		return latest, false, nil
	}
	sv = &models.ScheduleVersion{
		ProjectID: projectID,
		Version:   version.Initial,
		Notes:     InitialNotes,
		CreatedBy: author,
	}
	if err := db.Create(sv).Error; err != nil {
		return nil, false, perrors.Persistence(err, "schedule: create initial version for project %d", projectID)
	}
	return sv, true, nil
}

// Bump appends the successor of the latest schedule version. A project
// without versions first receives "1.0". It returns the previous latest
// and the new version.
func Bump(db *gorm.DB, projectID, author uint, notes string) (prev, next *models.ScheduleVersion, err error) {
	prev, _, err = Ensure(db, projectID, author)
	if err != nil {
		return nil, nil, err
	}
	next = &models.ScheduleVersion{
		ProjectID: projectID,
		Version:   prev.Version.Next(),
		Notes:     notes,
		CreatedBy: author,
	}
	if err := db.Create(next).Error; err != nil {
		return nil, nil, perrors.Persistence(err, "schedule: create version %s for project %d", next.Version, projectID)
	}
	return prev, next, nil
}

// RecordSnapshot stores the task's current dates and status under the
// given schedule version.
func RecordSnapshot(db *gorm.DB, task *models.Task, scheduleVersionID uint) (*models.TaskVersionHistory, error) {
	h := models.TaskVersionHistory{
		TaskID:            task.ID,
		ScheduleVersionID: scheduleVersionID,
		StartDate:         task.StartDate,
		EndDate:           task.EndDate,
		Status:            task.Status,
	}
	if err := db.Create(&h).Error; err != nil {
		return nil, perrors.Persistence(err, "schedule: snapshot task %d", task.ID)
	}
	return &h, nil
}

// RecordChangeReport links two schedule versions with a summary.
func RecordChangeReport(db *gorm.DB, scheduleVersionID uint, previousVersionID *uint, summary string, author uint) (*models.VersionChangeReport, error) {
	r := models.VersionChangeReport{
		ScheduleVersionID: scheduleVersionID,
		PreviousVersionID: previousVersionID,
		ChangeSummary:     summary,
		CreatedBy:         author,
	}
	if err := db.Create(&r).Error; err != nil {
		return nil, perrors.Persistence(err, "schedule: change report for version %d", scheduleVersionID)
	}
	return &r, nil
}

// List returns the schedule versions of projectID, newest first.
func List(db *gorm.DB, projectID uint) ([]models.ScheduleVersion, error) {
	var rows []models.ScheduleVersion
	if err := db.Where("project_id = ?", projectID).Find(&rows).Error; err != nil {
		return nil, perrors.Persistence(err, "schedule: list project %d", projectID)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[j].Version.Less(rows[i].Version) })
	return rows, nil
}

// Get retrieves a schedule version by ID.
func Get(db *gorm.DB, id uint) (*models.ScheduleVersion, error) {
	var sv models.ScheduleVersion
	if err := db.First(&sv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, perrors.NotFound("schedule: version not found: %d", id)
		}
		return nil, perrors.Persistence(err, "schedule: get version %d", id)
	}
	return &sv, nil
}

// Reports returns the change reports recorded for a schedule version.
func Reports(db *gorm.DB, scheduleVersionID uint) ([]models.VersionChangeReport, error) {
	var rows []models.VersionChangeReport
	err := db.Where("schedule_version_id = ?", scheduleVersionID).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, perrors.Persistence(err, "schedule: reports for version %d", scheduleVersionID)
	}
	return rows, nil
}

// History returns every snapshot of a task, oldest first.
func History(db *gorm.DB, taskID uint) ([]models.TaskVersionHistory, error) {
	var rows []models.TaskVersionHistory
	if err := db.Where("task_id = ?", taskID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, perrors.Persistence(err, "schedule: history for task %d", taskID)
	}
	return rows, nil
}

// Since returns the schedule versions created at or after t, oldest first.
func Since(db *gorm.DB, t time.Time) ([]models.ScheduleVersion, error) {
	var rows []models.ScheduleVersion
	if err := db.Where("created_at >= ?", t).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, perrors.Persistence(err, "schedule: versions since %s", t.Format(time.RFC3339))
	}
	return rows, nil
}

// DeleteForProject removes every schedule version of projectID together
// with its change reports and task snapshots.
func DeleteForProject(db *gorm.DB, projectID uint) error {
	ids := db.Model(&models.ScheduleVersion{}).Select("id").Where("project_id = ?", projectID)
	if err := db.Where("schedule_version_id IN (?)", ids).Delete(&models.VersionChangeReport{}).Error; err != nil {
		return perrors.Persistence(err, "schedule: delete reports for project %d", projectID)
	}
	if err := db.Where("schedule_version_id IN (?)", ids).Delete(&models.TaskVersionHistory{}).Error; err != nil {
		return perrors.Persistence(err, "schedule: delete snapshots for project %d", projectID)
	}
	if err := db.Where("project_id = ?", projectID).Delete(&models.ScheduleVersion{}).Error; err != nil {
		return perrors.Persistence(err, "schedule: delete versions for project %d", projectID)
	}
	return nil
}
