package task

import (
	"errors"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
)

// Children returns the direct children of a task ordered by start date.
func Children(db *gorm.DB, taskID uint) ([]models.Task, error) {
	var children []models.Task
	if err := db.Where("parent_id = ?", taskID).Order("start_date ASC, id ASC").Find(&children).Error; err != nil {
		return nil, perrors.Persistence(err, "task: children of %d", taskID)
	}
	return children, nil
}

// Descendants returns every task nested under taskID in depth-first
// order. A leaf yields an empty slice. Tasks already visited are skipped,
// so corrupted cyclic links terminate.
func Descendants(db *gorm.DB, taskID uint) ([]models.Task, error) {
	if _, err := Get(db, taskID); err != nil {
		return nil, err
	}
	out := []models.Task{}
	visited := map[uint]bool{taskID: true}
	if err := collect(db, taskID, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collect(db *gorm.DB, id uint, visited map[uint]bool, out *[]models.Task) error {
	children, err := Children(db, id)
	if err != nil {
		return err
	}
	for _, c := range children {
		if visited[c.ID] {
			continue
		}
		visited[c.ID] = true
		*out = append(*out, c)
		if err := collect(db, c.ID, visited, out); err != nil {
			return err
		}
	}
	return nil
}

// checkParent validates parentID as the parent of t: it must exist, belong
// to the same project and must not be t or any of t's descendants. The
// proposed parent's ancestor chain is walked looking for t.
func checkParent(db *gorm.DB, t *models.Task, parentID uint) error {
	if t.ID != 0 && parentID == t.ID {
		return perrors.Validation("task: a task cannot be its own parent")
	}
	var parent models.Task
	if err := db.First(&parent, parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return perrors.NotFound("task: parent not found: %d", parentID)
		}
		return perrors.Persistence(err, "task: load parent %d", parentID)
	}
	if parent.ProjectID != t.ProjectID {
		return perrors.Validation("task: parent %d belongs to another project", parentID)
	}
	if t.ID == 0 {
		return nil
	}

	visited := map[uint]bool{}
	cur := &parent
	for cur.ParentID != nil {
		if visited[cur.ID] {
			break
		}
		visited[cur.ID] = true
		if *cur.ParentID == t.ID {
			return perrors.Validation("task: parent %d is a descendant of task %d", parentID, t.ID)
		}
		var next models.Task
		if err := db.First(&next, *cur.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return perrors.Persistence(err, "task: walk ancestors of %d", parentID)
		}
		cur = &next
	}
	return nil
}
