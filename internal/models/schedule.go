package models

import (
	"time"

	"github.com/zulandar/planyard/internal/version"
)

// ScheduleVersion is one entry in a project's schedule lineage.
type ScheduleVersion struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint            `gorm:"column:project_id;not null;uniqueIndex:idx_schedule_version" json:"project_id"`
	Version   version.Version `gorm:"size:10;not null;uniqueIndex:idx_schedule_version" json:"version"`
	Notes     string          `gorm:"type:text" json:"notes"`
	CreatedBy uint            `gorm:"not null" json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// TaskVersionHistory is an immutable snapshot of a task's dates and status
// under a schedule version.
type TaskVersionHistory struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID            uint       `gorm:"not null;index" json:"task_id"`
	ScheduleVersionID uint       `gorm:"not null;index" json:"schedule_version_id"`
	StartDate         time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate           time.Time  `gorm:"type:date;not null" json:"end_date"`
	Status            TaskStatus `gorm:"size:32;not null" json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}

// VersionChangeReport summarizes what moved a schedule from one version to
// the next.
type VersionChangeReport struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ScheduleVersionID uint      `gorm:"not null;index" json:"schedule_version_id"`
	PreviousVersionID *uint     `json:"previous_version_id"`
	ChangeSummary     string    `gorm:"type:text" json:"change_summary"`
	CreatedBy         uint      `gorm:"not null" json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}
