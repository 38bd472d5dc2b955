package notify

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/metrics"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/schedule"
	"github.com/zulandar/planyard/internal/version"
)

// Digest windows.
const (
	DueWindowDays  = 7
	VersionsWindow = 24 * time.Hour
)

// Digest summarizes what needs attention across all projects.
type Digest struct {
	Generated time.Time
	Until     time.Time // end of the due-soon window
	DueSoon   []DigestTask
	Unread    []DigestTask
	Versions  []DigestVersion
}

// DigestTask is a task line in the digest.
type DigestTask struct {
	ID        uint
	ProjectID string
	Name      string
	Status    models.TaskStatus
	EndDate   time.Time
}

// DigestVersion is a project or schedule version created recently.
type DigestVersion struct {
	ProjectID   string
	ProjectName string
	Kind        string // "project" or "schedule"
	Version     version.Version
	CreatedAt   time.Time
}

// Empty reports whether the digest has nothing to say.
func (d *Digest) Empty() bool {
	return len(d.DueSoon) == 0 && len(d.Unread) == 0 && len(d.Versions) == 0
}

// BuildDigest collects incomplete tasks due within DueWindowDays of now,
// tasks with unread comments and versions created in the last
// VersionsWindow. It returns nil when there is no activity.
func BuildDigest(db *gorm.DB, now time.Time) (*Digest, error) {
	today := models.DateOnly(now)
	d := &Digest{Generated: now, Until: today.AddDate(0, 0, DueWindowDays)}

	var due []models.Task
	if err := db.Where("status <> ? AND end_date >= ? AND end_date <= ?", models.TaskCompleted, today, d.Until).
		Order("end_date ASC, id ASC").Find(&due).Error; err != nil {
		return nil, fmt.Errorf("notify: digest due tasks: %w", err)
	}
	var unread []models.Task
	if err := db.Where("has_unread_comments = ?", true).Order("id ASC").Find(&unread).Error; err != nil {
		return nil, fmt.Errorf("notify: digest unread tasks: %w", err)
	}

	since := now.Add(-VersionsWindow)
	svs, err := schedule.Since(db, since)
	if err != nil {
		return nil, fmt.Errorf("notify: digest schedule versions: %w", err)
	}
	var pvs []models.ProjectVersion
	if err := db.Where("created_at >= ?", since).Order("created_at ASC, id ASC").Find(&pvs).Error; err != nil {
		return nil, fmt.Errorf("notify: digest project versions: %w", err)
	}

	projectIDs := map[uint]bool{}
	for _, t := range append(append([]models.Task{}, due...), unread...) {
		projectIDs[t.ProjectID] = true
	}
	for _, sv := range svs {
		projectIDs[sv.ProjectID] = true
	}
	for _, pv := range pvs {
		projectIDs[pv.ProjectID] = true
	}
	projects, err := loadProjects(db, projectIDs)
	if err != nil {
		return nil, err
	}

	for _, t := range due {
		d.DueSoon = append(d.DueSoon, digestTask(t, projects))
	}
	for _, t := range unread {
		d.Unread = append(d.Unread, digestTask(t, projects))
	}
	for _, pv := range pvs {
		p := projects[pv.ProjectID]
		d.Versions = append(d.Versions, DigestVersion{
			ProjectID: p.ProjectID, ProjectName: p.Name,
			Kind: "project", Version: pv.Version, CreatedAt: pv.CreatedAt,
		})
	}
	for _, sv := range svs {
		p := projects[sv.ProjectID]
		d.Versions = append(d.Versions, DigestVersion{
			ProjectID: p.ProjectID, ProjectName: p.Name,
			Kind: "schedule", Version: sv.Version, CreatedAt: sv.CreatedAt,
		})
	}
	sort.SliceStable(d.Versions, func(i, j int) bool {
		return d.Versions[i].CreatedAt.Before(d.Versions[j].CreatedAt)
	})

	if d.Empty() {
		return nil, nil
	}
	return d, nil
}

func loadProjects(db *gorm.DB, ids map[uint]bool) (map[uint]models.Project, error) {
	out := make(map[uint]models.Project, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]uint, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}
	var rows []models.Project
	if err := db.Where("id IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notify: digest projects: %w", err)
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func digestTask(t models.Task, projects map[uint]models.Project) DigestTask {
	return DigestTask{
		ID:        t.ID,
		ProjectID: projects[t.ProjectID].ProjectID,
		Name:      t.Name,
		Status:    t.Status,
		EndDate:   t.EndDate,
	}
}

// SendDigest builds the digest for now and sends it through d. It reports
// whether a message went out; an empty digest is suppressed.
func SendDigest(ctx context.Context, db *gorm.DB, d *Dispatcher, now time.Time) (bool, error) {
	digest, err := BuildDigest(db, now)
	if err != nil {
		metrics.IncrementDigestRun("error")
		return false, err
	}
	if digest == nil {
		metrics.IncrementDigestRun("empty")
		return false, nil
	}
	d.Send(ctx, FormatDigest(digest))
	metrics.IncrementDigestRun("sent")
	return true, nil
}
