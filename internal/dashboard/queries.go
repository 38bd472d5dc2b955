package dashboard

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
)

// Dashboard limits.
const (
	recentProjectLimit = 5
	dueSoonDays        = 7
)

// Stats is the role-scoped landing page summary.
type Stats struct {
	ActiveProjects int64                          `json:"active_projects"`
	RecentActive   []models.Project               `json:"recent_active"`
	DueSoon        []models.Task                  `json:"due_soon"`
	Unread         []models.Task                  `json:"unread_comments"`
	StatusCounts   map[models.ProjectStatus]int64 `json:"status_counts"`
}

// projectScope restricts a projects query to those visible to u.
func projectScope(db *gorm.DB, u *models.User) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		switch u.Role {
		case models.RoleProjectManager:
			return q.Where("projects.project_manager_id = ?", u.ID)
		case models.RoleTeamMember:
			return q.Where("projects.id IN (?)", assignedTasks(db, u.ID).Select("tasks.project_id"))
		}
		return q
	}
}

// taskScope restricts a tasks query: team members see the tasks they are
// assigned to, managers the tasks of their projects.
func taskScope(db *gorm.DB, u *models.User) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		switch u.Role {
		case models.RoleProjectManager:
			return q.Where("tasks.project_id IN (?)",
				db.Model(&models.Project{}).Select("id").Where("project_manager_id = ?", u.ID))
		case models.RoleTeamMember:
			return q.Where("tasks.id IN (?)", assignedTasks(db, u.ID).Select("tasks.id"))
		}
		return q
	}
}

func assignedTasks(db *gorm.DB, userID uint) *gorm.DB {
	return db.Model(&models.Task{}).
		Joins("JOIN task_resources ON task_resources.task_id = tasks.id").
		Where("task_resources.user_id = ?", userID)
}

// DashboardStats computes the summary for u as of now.
func DashboardStats(db *gorm.DB, u *models.User, now time.Time) (*Stats, error) {
	st := &Stats{StatusCounts: make(map[models.ProjectStatus]int64, len(models.ProjectStatuses))}
	projects := projectScope(db, u)
	tasks := taskScope(db, u)

	active := db.Model(&models.Project{}).Scopes(projects).Where("projects.status = ?", models.ProjectApprovedActive)
	if err := active.Count(&st.ActiveProjects).Error; err != nil {
		return nil, fmt.Errorf("dashboard: count active projects: %w", err)
	}
	if err := db.Scopes(projects).Where("projects.status = ?", models.ProjectApprovedActive).
		Order("created_at DESC, id DESC").Limit(recentProjectLimit).
		Find(&st.RecentActive).Error; err != nil {
		return nil, fmt.Errorf("dashboard: recent projects: %w", err)
	}

	today := models.DateOnly(now)
	until := today.AddDate(0, 0, dueSoonDays)
	if err := db.Scopes(tasks).
		Where("tasks.status <> ? AND tasks.end_date >= ? AND tasks.end_date <= ?", models.TaskCompleted, today, until).
		Order("tasks.end_date ASC, tasks.id ASC").Find(&st.DueSoon).Error; err != nil {
		return nil, fmt.Errorf("dashboard: due tasks: %w", err)
	}
	if err := db.Scopes(tasks).Where("tasks.has_unread_comments = ?", true).
		Order("tasks.updated_at DESC, tasks.id DESC").Find(&st.Unread).Error; err != nil {
		return nil, fmt.Errorf("dashboard: unread tasks: %w", err)
	}

	type statusCount struct {
		Status models.ProjectStatus
		N      int64
	}
	var counts []statusCount
	if err := db.Model(&models.Project{}).Scopes(projects).
		Select("projects.status AS status, COUNT(*) AS n").
		Group("projects.status").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("dashboard: status counts: %w", err)
	}
	for _, s := range models.ProjectStatuses {
		st.StatusCounts[s] = 0
	}
	for _, c := range counts {
		st.StatusCounts[c.Status] = c.N
	}
	return st, nil
}
