package dashboard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/zulandar/planyard/internal/metrics"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/project"
	"github.com/zulandar/planyard/internal/user"
)

// projectRequest is the body of project create and update. Dates are
// YYYY-MM-DD strings; omitted fields keep their value on update.
type projectRequest struct {
	Name             *string               `json:"name"`
	Description      *string               `json:"description"`
	StartDate        *string               `json:"start_date"`
	EndDate          *string               `json:"end_date"`
	Type             *models.ProjectType   `json:"project_type"`
	TotalAmount      *decimal.Decimal      `json:"total_amount"`
	MonthlyBilling   *decimal.Decimal      `json:"monthly_billing"`
	ManagerID        *uint                 `json:"project_manager_id"`
	CustomerPONumber *string               `json:"customer_po_number"`
	Status           *models.ProjectStatus `json:"status"`
}

func (r projectRequest) updateOpts() (project.UpdateOpts, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return project.UpdateOpts{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return project.UpdateOpts{}, err
	}
	return project.UpdateOpts{
		Name:             r.Name,
		Description:      r.Description,
		StartDate:        start,
		EndDate:          end,
		Type:             r.Type,
		TotalAmount:      r.TotalAmount,
		MonthlyBilling:   r.MonthlyBilling,
		ManagerID:        r.ManagerID,
		CustomerPONumber: r.CustomerPONumber,
		Status:           r.Status,
	}, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// loadProject resolves :id and checks the caller may view it.
func (s *server) loadProject(c *gin.Context) (*models.Project, bool) {
	id, ok := uintParam(c, "id")
	if !ok {
		return nil, false
	}
	p, err := project.Get(s.db, id)
	if err != nil {
		abort(c, err)
		return nil, false
	}
	if !user.CanViewProject(currentUser(c), p) {
		deny(c, "you do not have access to project %s", p.ProjectID)
		return nil, false
	}
	return p, true
}

type projectListResponse struct {
	Projects []models.Project `json:"projects"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PerPage  int              `json:"per_page"`
	Pages    int              `json:"pages"`
}

// handleProjectList lists projects visible to the caller: administrators
// see all, project managers their own, team members those they are
// assigned to.
func (s *server) handleProjectList() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := project.ListFilters{
			ProjectID: c.Query("project_id"),
			Name:      c.Query("name"),
			Status:    models.ProjectStatus(c.Query("status")),
		}
		filters.Page, _ = strconv.Atoi(c.Query("page"))
		filters.PerPage, _ = strconv.Atoi(c.Query("per_page"))
		for field, dst := range map[string]*time.Time{"start_from": &filters.StartFrom, "start_to": &filters.StartTo} {
			if v := c.Query(field); v != "" {
				d, err := parseDate(field, &v)
				if err != nil {
					abort(c, err)
					return
				}
				*dst = *d
			}
		}

		u := currentUser(c)
		switch u.Role {
		case models.RoleProjectManager:
			filters.ManagerID = u.ID
		case models.RoleTeamMember:
			filters.MemberID = u.ID
		}

		page, err := project.List(s.db, filters)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, projectListResponse{
			Projects: page.Projects,
			Total:    page.Total,
			Page:     page.Page,
			PerPage:  page.PerPage,
			Pages:    page.Pages(),
		})
	}
}

func (s *server) handleProjectCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		if !user.CanCreateProject(u) {
			deny(c, "only administrators and project managers can create projects")
			return
		}
		var req projectRequest
		if !bindJSON(c, &req) {
			return
		}
		opts, err := req.updateOpts()
		if err != nil {
			abort(c, err)
			return
		}
		managerID := deref(opts.ManagerID)
		if managerID == 0 && u.Role == models.RoleProjectManager {
			managerID = u.ID
		}
		p, err := project.Create(s.db, project.CreateOpts{
			Name:             deref(opts.Name),
			Description:      deref(opts.Description),
			StartDate:        deref(opts.StartDate),
			EndDate:          deref(opts.EndDate),
			Type:             deref(opts.Type),
			TotalAmount:      opts.TotalAmount,
			MonthlyBilling:   opts.MonthlyBilling,
			ManagerID:        managerID,
			CustomerPONumber: deref(opts.CustomerPONumber),
			Status:           deref(opts.Status),
			CreatedBy:        u.ID,
		})
		if err != nil {
			abort(c, err)
			return
		}
		metrics.IncrementVersionCreated("project")
		c.JSON(http.StatusCreated, p)
	}
}

func (s *server) handleProjectDetail() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		d, err := project.GetDetail(s.db, p.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

type projectUpdateResponse struct {
	Project *models.Project        `json:"project"`
	Version *models.ProjectVersion `json:"version,omitempty"`
}

// handleProjectUpdate edits a project. Only administrators may reassign
// the project manager.
func (s *server) handleProjectUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		u := currentUser(c)
		if !user.CanEditProject(u, p) {
			deny(c, "you cannot edit project %s", p.ProjectID)
			return
		}
		var req projectRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.ManagerID != nil && *req.ManagerID != p.ManagerID && u.Role != models.RoleAdmin {
			deny(c, "only administrators can change the project manager")
			return
		}
		opts, err := req.updateOpts()
		if err != nil {
			abort(c, err)
			return
		}
		updated, pv, err := project.Update(s.db, p.ID, opts, u.ID)
		if err != nil {
			abort(c, err)
			return
		}
		s.announceProjectVersion(c, updated, pv, u)
		c.JSON(http.StatusOK, projectUpdateResponse{Project: updated, Version: pv})
	}
}

func (s *server) handleProjectDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !user.CanDeleteProject(currentUser(c)) {
			deny(c, "only administrators can delete projects")
			return
		}
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		if err := project.Delete(s.db, p.ID); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *server) handleProjectVersions() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		versions, err := project.Versions(s.db, p.ID)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, versions)
	}
}

type versionRequest struct {
	Changes string `json:"changes" binding:"required"`
}

// handleProjectVersionCreate records a manual project version.
func (s *server) handleProjectVersionCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		u := currentUser(c)
		if !user.CanEditProject(u, p) {
			deny(c, "you cannot version project %s", p.ProjectID)
			return
		}
		var req versionRequest
		if !bindJSON(c, &req) {
			return
		}
		pv, err := project.NewVersion(s.db, p.ID, req.Changes, u.ID)
		if err != nil {
			abort(c, err)
			return
		}
		s.announceProjectVersion(c, p, pv, u)
		c.JSON(http.StatusCreated, pv)
	}
}

type attachmentRequest struct {
	Kind     models.AttachmentKind `json:"kind" binding:"required"`
	Filename string                `json:"filename" binding:"required"`
	FilePath string                `json:"file_path"`
}

func (s *server) handleAttachmentCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := s.loadProject(c)
		if !ok {
			return
		}
		u := currentUser(c)
		if !user.CanEditProject(u, p) {
			deny(c, "you cannot add attachments to project %s", p.ProjectID)
			return
		}
		var req attachmentRequest
		if !bindJSON(c, &req) {
			return
		}
		a, err := project.AddAttachment(s.db, project.AttachmentOpts{
			ProjectID:  p.ID,
			Kind:       req.Kind,
			Filename:   req.Filename,
			FilePath:   req.FilePath,
			UploadedBy: u.ID,
		})
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

// announceProjectVersion counts and broadcasts a committed project version.
func (s *server) announceProjectVersion(c *gin.Context, p *models.Project, pv *models.ProjectVersion, author *models.User) {
	if pv == nil {
		return
	}
	metrics.IncrementVersionCreated("project")
	name := author.FullName()
	s.announce(c, func(ctx context.Context) {
		s.notifier.ProjectVersionCreated(ctx, p, pv, name)
	})
}
