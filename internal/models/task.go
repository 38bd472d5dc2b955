package models

import "time"

// Task is a unit of work inside a project. Tasks nest through ParentID.
type Task struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID         uint       `gorm:"column:project_id;not null;index" json:"project_id"`
	ParentID          *uint      `gorm:"index" json:"parent_id"`
	Name              string     `gorm:"size:100;not null" json:"name"`
	Description       string     `gorm:"type:text" json:"description"`
	StartDate         time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate           time.Time  `gorm:"type:date;not null;index" json:"end_date"`
	DependencyDays    int        `gorm:"not null" json:"dependency_days"`
	Hours             int        `gorm:"not null" json:"hours"`
	IsMilestone       bool       `gorm:"not null" json:"is_milestone"`
	IsActive          bool       `gorm:"not null" json:"is_active"`
	Status            TaskStatus `gorm:"size:32;not null;default:not_started;index" json:"status"`
	HasUnreadComments bool       `gorm:"not null" json:"has_unread_comments"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Children []Task `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// TaskResource assigns a user to a task.
type TaskResource struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID      uint      `gorm:"not null;uniqueIndex:idx_task_user" json:"task_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_task_user;index" json:"user_id"`
	Designation string    `gorm:"size:100" json:"designation"`
	Grade       string    `gorm:"size:50" json:"grade"`
	AssignedAt  time.Time `gorm:"autoCreateTime" json:"assigned_at"`
}

// TaskComment is a note left on a task.
type TaskComment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
