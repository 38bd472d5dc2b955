package dashboard

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/planyard/internal/metrics"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/project"
	"github.com/zulandar/planyard/internal/schedule"
	"github.com/zulandar/planyard/internal/task"
	"github.com/zulandar/planyard/internal/user"
)

type taskRequest struct {
	Name           *string            `json:"name"`
	Description    *string            `json:"description"`
	StartDate      *string            `json:"start_date"`
	EndDate        *string            `json:"end_date"`
	DependencyDays *int               `json:"dependency_days"`
	IsMilestone    *bool              `json:"is_milestone"`
	IsActive       *bool              `json:"is_active"`
	Status         *models.TaskStatus `json:"status"`
	ParentID       *uint              `json:"parent_id"`
	ClearParent    bool               `json:"clear_parent"`
}

func (r taskRequest) updateOpts() (task.UpdateOpts, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return task.UpdateOpts{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return task.UpdateOpts{}, err
	}
	return task.UpdateOpts{
		Name:           r.Name,
		Description:    r.Description,
		StartDate:      start,
		EndDate:        end,
		DependencyDays: r.DependencyDays,
		IsMilestone:    r.IsMilestone,
		IsActive:       r.IsActive,
		Status:         r.Status,
		ParentID:       r.ParentID,
		ClearParent:    r.ClearParent,
	}, nil
}

// loadTask resolves :id to a task and its project and checks the caller
// may view the project.
func (s *server) loadTask(c *gin.Context) (*models.Task, *models.Project, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, nil, false
	}
	t, err := task.Get(s.db, id)
	if err != nil {
		abort(c, err)
		return nil, nil, false
	}
	p, err := project.Get(s.db, t.ProjectID)
	if err != nil {
		abort(c, err)
		return nil, nil, false
	}
	if !user.CanViewProject(currentUser(c), p) {
		deny(c, "you do not have access to project %s", p.ProjectID)
		return nil, nil, false
	}
	return t, p, true
}

func (s *server) handleTaskList() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		filters := task.ListFilters{
			Status:        models.TaskStatus(c.Query("status")),
			MilestoneOnly: c.Query("milestone") == "true",
		}
		if v := c.Query("resource"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				abort(c, perrors.Validation("invalid resource %q", v))
				return
			}
			filters.ResourceID = uint(id)
		}
		tasks, err := task.List(s.db, p.ID, filters)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

// handleTaskCreate adds a task. Missing dates default to the project's.
func (s *server) handleTaskCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		u := currentUser(c)
		if !user.CanManageTasks(u, p) {
			deny(c, "you cannot manage tasks of project %s", p.ProjectID)
			return
		}
		var req taskRequest
		if !bindJSON(c, &req) {
			return
		}
		opts, err := req.updateOpts()
		if err != nil {
			abort(c, err)
			return
		}
		start, end := p.StartDate, p.EndDate
		if opts.StartDate != nil {
			start = *opts.StartDate
		}
		if opts.EndDate != nil {
			end = *opts.EndDate
		}
		t, err := task.Create(s.db, task.CreateOpts{
			ProjectID:      p.ID,
			ParentID:       opts.ParentID,
			Name:           deref(opts.Name),
			Description:    deref(opts.Description),
			StartDate:      start,
			EndDate:        end,
			DependencyDays: deref(opts.DependencyDays),
			IsMilestone:    deref(opts.IsMilestone),
			IsActive:       opts.IsActive,
			Status:         deref(opts.Status),
			CreatedBy:      u.ID,
		})
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

type taskDetailResponse struct {
	Task      *models.Task    `json:"task"`
	Project   *models.Project `json:"project"`
	Children  []models.Task   `json:"children"`
	Resources []task.Resource `json:"resources"`
	Comments  []task.Comment  `json:"comments"`
}

// handleTaskDetail returns a task with its children, resources and
// comments. Viewing clears the unread-comments flag.
func (s *server) handleTaskDetail() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, p, ok := s.loadTask(c)
		if !ok {
			return
		}
		if err := task.MarkRead(s.db, t.ID); err != nil {
			abort(c, err)
			return
		}
		t.HasUnreadComments = false

		resp := taskDetailResponse{Task: t, Project: p}
		var err error
		if resp.Children, err = task.Children(s.db, t.ID); err != nil {
			abort(c, err)
			return
		}
		if resp.Resources, err = task.Resources(s.db, t.ID); err != nil {
			abort(c, err)
			return
		}
		if resp.Comments, err = task.Comments(s.db, t.ID); err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

type taskUpdateResponse struct {
	Task   *models.Task       `json:"task"`
	Result *task.UpdateResult `json:"schedule,omitempty"`
}

func (s *server) handleTaskUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, p, ok := s.loadTask(c)
		if !ok {
			return
		}
		u := currentUser(c)
		if !user.CanManageTasks(u, p) {
			deny(c, "you cannot manage tasks of project %s", p.ProjectID)
			return
		}
		var req taskRequest
		if !bindJSON(c, &req) {
			return
		}
		opts, err := req.updateOpts()
		if err != nil {
			abort(c, err)
			return
		}
		updated, res, err := task.Update(s.db, t.ID, opts, u.ID)
		if err != nil {
			abort(c, err)
			return
		}
		if res != nil {
			metrics.IncrementVersionCreated("schedule")
			name := u.FullName()
			s.announce(c, func(ctx context.Context) {
				s.notifier.ScheduleVersionCreated(ctx, p, res.Version, res.Report, name)
			})
		}
		c.JSON(http.StatusOK, taskUpdateResponse{Task: updated, Result: res})
	}
}

func (s *server) handleTaskDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, p, ok := s.loadTask(c)
		if !ok {
			return
		}
		if !user.CanManageTasks(currentUser(c), p) {
			deny(c, "you cannot manage tasks of project %s", p.ProjectID)
			return
		}
		if err := task.Delete(s.db, t.ID); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *server) handleTaskDescendants() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, _, ok := s.loadTask(c)
		if !ok {
			return
		}
		desc, err := task.Descendants(s.db, t.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, desc)
	}
}

func (s *server) handleTaskHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, _, ok := s.loadTask(c)
		if !ok {
			return
		}
		hist, err := schedule.History(s.db, t.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, hist)
	}
}

func (s *server) handleResourceList() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, _, ok := s.loadTask(c)
		if !ok {
			return
		}
		res, err := task.Resources(s.db, t.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type resourceRequest struct {
	UserID      uint   `json:"user_id" binding:"required"`
	Designation string `json:"designation"`
	Grade       string `json:"grade"`
}

func (s *server) handleResourceCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, p, ok := s.loadTask(c)
		if !ok {
			return
		}
		if !user.CanManageTasks(currentUser(c), p) {
			deny(c, "you cannot manage tasks of project %s", p.ProjectID)
			return
		}
		var req resourceRequest
		if !bindJSON(c, &req) {
			return
		}
		r, err := task.Assign(s.db, task.AssignOpts{
			TaskID:      t.ID,
			UserID:      req.UserID,
			Designation: req.Designation,
			Grade:       req.Grade,
		})
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func (s *server) handleResourceDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var r models.TaskResource
		if err := s.db.First(&r, id).Error; err != nil {
			abort(c, perrors.Persistence(err, "resource %d", id))
			return
		}
		t, err := task.Get(s.db, r.TaskID)
		if err != nil {
			abort(c, err)
			return
		}
		p, err := project.Get(s.db, t.ProjectID)
		if err != nil {
			abort(c, err)
			return
		}
		if !user.CanManageTasks(currentUser(c), p) {
			deny(c, "you cannot manage tasks of project %s", p.ProjectID)
			return
		}
		if err := task.Unassign(s.db, id); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *server) handleCommentList() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, _, ok := s.loadTask(c)
		if !ok {
			return
		}
		comments, err := task.Comments(s.db, t.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, comments)
	}
}

type commentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *server) handleCommentCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, p, ok := s.loadTask(c)
		if !ok {
			return
		}
		u := currentUser(c)
		if !user.CanComment(u, p) {
			deny(c, "you cannot comment on project %s", p.ProjectID)
			return
		}
		var req commentRequest
		if !bindJSON(c, &req) {
			return
		}
		cm, err := task.AddComment(s.db, t.ID, u.ID, req.Content)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, cm)
	}
}

func (s *server) handleGantt() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		rows, err := task.Gantt(s.db, p.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func (s *server) handleScheduleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		versions, err := schedule.List(s.db, p.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, versions)
	}
}

func (s *server) handleScheduleReports() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "versionID")
		if !ok {
			return
		}
		sv, err := schedule.Get(s.db, id)
		if err != nil {
			abort(c, err)
			return
		}
		p, err := project.Get(s.db, sv.ProjectID)
		if err != nil {
			abort(c, err)
			return
		}
		if !user.CanViewProject(currentUser(c), p) {
			deny(c, "you do not have access to project %s", p.ProjectID)
			return
		}
		reports, err := schedule.Reports(s.db, sv.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": sv, "reports": reports})
	}
}
