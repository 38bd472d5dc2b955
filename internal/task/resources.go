package task

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/user"
)

// AssignOpts holds parameters for assigning a user to a task.
type AssignOpts struct {
	TaskID      uint
	UserID      uint
	Designation string
	Grade       string
}

// Resource is an assignment joined with the assignee's display name.
type Resource struct {
	models.TaskResource
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Assign adds a user to a task. A second assignment of the same user
// fails with DuplicateAssignment and leaves the existing row untouched.
func Assign(db *gorm.DB, opts AssignOpts) (*models.TaskResource, error) {
	var r models.TaskResource
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, opts.TaskID); err != nil {
			return err
		}
		u, err := user.Get(tx, opts.UserID)
		if err != nil {
			return err
		}
		if !user.CanBeResource(u) {
			return perrors.Validation("task: %s cannot be assigned to tasks", u.Username)
		}

		var n int64
		if err := tx.Model(&models.TaskResource{}).
			Where("task_id = ? AND user_id = ?", opts.TaskID, opts.UserID).
			Count(&n).Error; err != nil {
			return perrors.Persistence(err, "task: check assignment")
		}
		if n > 0 {
			return duplicate(u, opts.TaskID)
		}

		r = models.TaskResource{
			TaskID:      opts.TaskID,
			UserID:      opts.UserID,
			Designation: strings.TrimSpace(opts.Designation),
			Grade:       strings.TrimSpace(opts.Grade),
		}
		if err := tx.Create(&r).Error; err != nil {
			// Lost a race with a concurrent assignment.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicate(u, opts.TaskID)
			}
			return perrors.Persistence(err, "task: assign user %d to task %d", opts.UserID, opts.TaskID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func duplicate(u *models.User, taskID uint) error {
	return perrors.New(perrors.ErrDuplicateAssignment, "task: %s is already assigned to task %d", u.Username, taskID)
}

// Unassign removes a resource assignment by its ID.
func Unassign(db *gorm.DB, resourceID uint) error {
	res := db.Delete(&models.TaskResource{}, resourceID)
	if res.Error != nil {
		return perrors.Persistence(res.Error, "task: unassign %d", resourceID)
	}
	if res.RowsAffected == 0 {
		return perrors.NotFound("task: resource not found: %d", resourceID)
	}
	return nil
}

// Resources lists a task's assignees in assignment order.
func Resources(db *gorm.DB, taskID uint) ([]Resource, error) {
	var rows []models.TaskResource
	if err := db.Where("task_id = ?", taskID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, perrors.Persistence(err, "task: resources of %d", taskID)
	}
	return withNames(db, rows)
}

func withNames(db *gorm.DB, rows []models.TaskResource) ([]Resource, error) {
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	var users []models.User
	if len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, perrors.Persistence(err, "task: resource users")
		}
	}
	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]Resource, 0, len(rows))
	for _, r := range rows {
		u := byID[r.UserID]
		out = append(out, Resource{TaskResource: r, Name: u.FullName(), Username: u.Username})
	}
	return out, nil
}
