package task

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
)

// GanttRow is one bar of a project's Gantt chart.
type GanttRow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Progress     int    `json:"progress"`
	Dependencies string `json:"dependencies"`
	Resources    string `json:"resources"`
	Status       string `json:"status"`
	IsMilestone  bool   `json:"is_milestone"`
}

// Progress maps a task status to a completion percentage.
func Progress(s models.TaskStatus) int {
	switch s {
	case models.TaskCompleted:
		return 100
	case models.TaskInProgress:
		return 50
	}
	return 0
}

// Gantt returns one row per task in the project ordered by start date.
// Dependencies names the parent task; Resources joins assignee names.
func Gantt(db *gorm.DB, projectID uint) ([]GanttRow, error) {
	var tasks []models.Task
	if err := db.Where("project_id = ?", projectID).Order("start_date ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, perrors.Persistence(err, "task: gantt for project %d", projectID)
	}
	names := make(map[uint]string, len(tasks))
	ids := make([]uint, 0, len(tasks))
	for _, t := range tasks {
		names[t.ID] = t.Name
		ids = append(ids, t.ID)
	}

	assignees := map[uint][]string{}
	if len(ids) > 0 {
		var rows []models.TaskResource
		if err := db.Where("task_id IN ?", ids).Order("id ASC").Find(&rows).Error; err != nil {
			return nil, perrors.Persistence(err, "task: gantt resources")
		}
		resolved, err := withNames(db, rows)
		if err != nil {
			return nil, err
		}
		for _, r := range resolved {
			assignees[r.TaskID] = append(assignees[r.TaskID], r.Name)
		}
	}

	out := make([]GanttRow, 0, len(tasks))
	for _, t := range tasks {
		row := GanttRow{
			ID:          strconv.FormatUint(uint64(t.ID), 10),
			Name:        t.Name,
			Start:       models.FormatDate(t.StartDate),
			End:         models.FormatDate(t.EndDate),
			Progress:    Progress(t.Status),
			Resources:   strings.Join(assignees[t.ID], ", "),
			Status:      t.Status.Label(),
			IsMilestone: t.IsMilestone,
		}
		if t.ParentID != nil {
			row.Dependencies = names[*t.ParentID]
		}
		out = append(out, row)
	}
	return out, nil
}
