package project

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/schedule"
	"github.com/zulandar/planyard/internal/user"
	"github.com/zulandar/planyard/internal/version"
)

// describeChanges returns one line per tracked field that differs between
// old and cur. Amounts and the PO number are not tracked.
func describeChanges(db *gorm.DB, old, cur *models.Project) ([]string, error) {
	var changes []string
	if old.Name != cur.Name {
		changes = append(changes, fmt.Sprintf("Name changed from '%s' to '%s'", old.Name, cur.Name))
	}
	if old.Description != cur.Description {
		changes = append(changes, "Description updated")
	}
	if !models.DateOnly(old.StartDate).Equal(models.DateOnly(cur.StartDate)) {
		changes = append(changes, fmt.Sprintf("Start date changed from %s to %s",
			models.FormatDate(old.StartDate), models.FormatDate(cur.StartDate)))
	}
	if !models.DateOnly(old.EndDate).Equal(models.DateOnly(cur.EndDate)) {
		changes = append(changes, fmt.Sprintf("End date changed from %s to %s",
			models.FormatDate(old.EndDate), models.FormatDate(cur.EndDate)))
	}
	if old.Type != cur.Type {
		changes = append(changes, fmt.Sprintf("Project type changed from %s to %s", old.Type.Label(), cur.Type.Label()))
	}
	if old.Status != cur.Status {
		changes = append(changes, fmt.Sprintf("Status changed from %s to %s", old.Status.Label(), cur.Status.Label()))
	}
	if old.ManagerID != cur.ManagerID {
		names, err := user.Names(db, []uint{old.ManagerID, cur.ManagerID})
		if err != nil {
			return nil, err
		}
		changes = append(changes, fmt.Sprintf("Project manager changed from %s to %s",
			nameOr(names, old.ManagerID), nameOr(names, cur.ManagerID)))
	}
	return changes, nil
}

func nameOr(names map[uint]string, id uint) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("user #%d", id)
}

// appendVersion records the successor of the project's latest version.
// The caller holds the project lock.
func appendVersion(tx *gorm.DB, projectID uint, changes string, author uint) (*models.ProjectVersion, error) {
	latest, err := LatestVersion(tx, projectID)
	if err != nil {
		return nil, err
	}
	next := version.Initial
	if latest != nil {
		next = latest.Version.Next()
	}
	pv := models.ProjectVersion{
		ProjectID: projectID,
		Version:   next,
		Changes:   changes,
		CreatedBy: author,
	}
	if err := tx.Create(&pv).Error; err != nil {
		return nil, perrors.Persistence(err, "project: create version %s for %d", next, projectID)
	}
	return &pv, nil
}

// NewVersion records a manual version bump with free-text changes.
func NewVersion(db *gorm.DB, projectID uint, changes string, author uint) (*models.ProjectVersion, error) {
	changes = strings.TrimSpace(changes)
	if changes == "" {
		return nil, perrors.Validation("project: version changes are required")
	}
	var pv *models.ProjectVersion
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := schedule.LockProject(tx, projectID); err != nil {
			return err
		}
		if _, err := Get(tx, projectID); err != nil {
			return err
		}
		var err error
		pv, err = appendVersion(tx, projectID, changes, author)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pv, nil
}

// Versions returns every version of a project, newest first.
func Versions(db *gorm.DB, projectID uint) ([]models.ProjectVersion, error) {
	var rows []models.ProjectVersion
	if err := db.Where("project_id = ?", projectID).Find(&rows).Error; err != nil {
		return nil, perrors.Persistence(err, "project: versions of %d", projectID)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[j].Version.Less(rows[i].Version) })
	return rows, nil
}

// LatestVersion returns the highest version of a project by numeric order,
// or nil when it has none.
func LatestVersion(db *gorm.DB, projectID uint) (*models.ProjectVersion, error) {
	rows, err := Versions(db, projectID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Detail is a project with the records shown alongside it.
type Detail struct {
	Project     models.Project          `json:"project"`
	ManagerName string                  `json:"manager_name"`
	Versions    []models.ProjectVersion `json:"versions"`
	Attachments []models.Attachment     `json:"attachments"`
}

// GetDetail loads a project with its manager name, versions and
// attachments.
func GetDetail(db *gorm.DB, id uint) (*Detail, error) {
	p, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	d := Detail{Project: *p}
	names, err := user.Names(db, []uint{p.ManagerID})
	if err != nil {
		return nil, err
	}
	d.ManagerName = nameOr(names, p.ManagerID)
	if d.Versions, err = Versions(db, id); err != nil {
		return nil, err
	}
	if d.Attachments, err = Attachments(db, id); err != nil {
		return nil, err
	}
	return &d, nil
}
