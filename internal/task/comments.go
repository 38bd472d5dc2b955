package task

import (
	"strings"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
)

// Comment is a task comment joined with its author's name.
type Comment struct {
	models.TaskComment
	Author string `json:"author"`
}

// AddComment stores a comment and flags the task as having unread comments.
func AddComment(db *gorm.DB, taskID, userID uint, content string) (*models.TaskComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, perrors.Validation("task: comment content is required")
	}
	c := models.TaskComment{TaskID: taskID, UserID: userID, Content: content}
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, taskID); err != nil {
			return err
		}
		if err := tx.Create(&c).Error; err != nil {
			return perrors.Persistence(err, "task: comment on %d", taskID)
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", taskID).
			Update("has_unread_comments", true).Error; err != nil {
			return perrors.Persistence(err, "task: flag unread on %d", taskID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkRead clears the unread-comments flag. Viewing a task calls this.
func MarkRead(db *gorm.DB, taskID uint) error {
	if err := db.Model(&models.Task{}).Where("id = ?", taskID).
		Update("has_unread_comments", false).Error; err != nil {
		return perrors.Persistence(err, "task: mark read %d", taskID)
	}
	return nil
}

// Comments returns a task's comments oldest first.
func Comments(db *gorm.DB, taskID uint) ([]Comment, error) {
	var rows []models.TaskComment
	if err := db.Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, perrors.Persistence(err, "task: comments of %d", taskID)
	}
	ids := make([]uint, 0, len(rows))
	for _, c := range rows {
		ids = append(ids, c.UserID)
	}
	var users []models.User
	if len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, perrors.Persistence(err, "task: comment authors")
		}
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName()
	}
	out := make([]Comment, 0, len(rows))
	for _, c := range rows {
		out = append(out, Comment{TaskComment: c, Author: names[c.UserID]})
	}
	return out, nil
}
