// Package project provides the project registry: creation with unique
// five digit identifiers, tracked-field versioning and cascade deletion.
package project

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/schedule"
	"github.com/zulandar/planyard/internal/user"
	"github.com/zulandar/planyard/internal/version"
)

const (
	ProjectIDMin = 10000
	ProjectIDMax = 99999

	// maxIDAttempts bounds the collision retries in GenerateID.
	maxIDAttempts = 10

	DefaultPerPage = 10
)

// InitialChanges is the change text of every project's "1.0" version.
const InitialChanges = "Initial project creation"

// CreateOpts holds parameters for creating a project.
type CreateOpts struct {
	Name             string
	Description      string
	StartDate        time.Time
	EndDate          time.Time
	Type             models.ProjectType
	TotalAmount      *decimal.Decimal
	MonthlyBilling   *decimal.Decimal
	ManagerID        uint
	CustomerPONumber string
	Status           models.ProjectStatus // defaults to entered
	CreatedBy        uint
}

// UpdateOpts holds the fields to change. Nil fields keep their value.
type UpdateOpts struct {
	Name             *string
	Description      *string
	StartDate        *time.Time
	EndDate          *time.Time
	Type             *models.ProjectType
	TotalAmount      *decimal.Decimal
	MonthlyBilling   *decimal.Decimal
	ManagerID        *uint
	CustomerPONumber *string
	Status           *models.ProjectStatus
}

// ListFilters holds optional filters for listing projects.
type ListFilters struct {
	ProjectID string // substring of the external id
	Name      string // substring of the name
	Status    models.ProjectStatus
	ManagerID uint
	MemberID  uint // only projects with a task assigned to this user
	StartFrom time.Time
	StartTo   time.Time
	Page      int
	PerPage   int
}

// Page is one page of a project listing.
type Page struct {
	Projects []models.Project
	Total    int64
	Page     int
	PerPage  int
}

// Pages returns the number of pages needed for Total rows.
func (p Page) Pages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// randomProjectID returns a uniformly random id in [ProjectIDMin, ProjectIDMax].
var randomProjectID = func() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(ProjectIDMax-ProjectIDMin+1))
	if err != nil {
		return "", fmt.Errorf("project: generate ID: %w", err)
	}
	return strconv.FormatInt(n.Int64()+ProjectIDMin, 10), nil
}

// GenerateID returns a five digit identifier not yet used by any project.
// It gives up with UniquenessConflict after maxIDAttempts collisions.
func GenerateID(db *gorm.DB) (string, error) {
	for range maxIDAttempts {
		id, err := randomProjectID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Project{}).Where("project_id = ?", id).Count(&count).Error; err != nil {
			return "", perrors.Persistence(err, "project: check ID uniqueness")
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", perrors.New(perrors.ErrUniquenessConflict, "project: failed to generate unique ID after %d attempts", maxIDAttempts)
}

// insertWithUniqueID inserts p under a freshly generated identifier. An
// insert that loses a race for the same identifier is rolled back to a
// savepoint and retried with another one.
func insertWithUniqueID(tx *gorm.DB, p *models.Project) error {
	for range maxIDAttempts {
		id, err := GenerateID(tx)
		if err != nil {
			return err
		}
		p.ID = 0
		p.ProjectID = id
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(p).Error
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return perrors.Persistence(err, "project: create %q", p.Name)
		}
	}
	return perrors.New(perrors.ErrUniquenessConflict, "project: failed to insert with a unique ID after %d attempts", maxIDAttempts)
}

// Create validates opts, assigns a unique identifier, persists the project
// and records version "1.0".
func Create(db *gorm.DB, opts CreateOpts) (*models.Project, error) {
	if opts.Status == "" {
		opts.Status = models.ProjectEntered
	}
	p := models.Project{
		Name:             strings.TrimSpace(opts.Name),
		Description:      opts.Description,
		StartDate:        models.DateOnly(opts.StartDate),
		EndDate:          models.DateOnly(opts.EndDate),
		Type:             opts.Type,
		TotalAmount:      nullDecimal(opts.TotalAmount),
		MonthlyBilling:   nullDecimal(opts.MonthlyBilling),
		ManagerID:        opts.ManagerID,
		CustomerPONumber: strings.TrimSpace(opts.CustomerPONumber),
		Status:           opts.Status,
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	normalizeAmounts(&p)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := checkManager(tx, p.ManagerID); err != nil {
			return err
		}
		if err := insertWithUniqueID(tx, &p); err != nil {
			return err
		}
		pv := models.ProjectVersion{
			ProjectID: p.ID,
			Version:   version.Initial,
			Changes:   InitialChanges,
			CreatedBy: opts.CreatedBy,
		}
		if err := tx.Create(&pv).Error; err != nil {
			return perrors.Persistence(err, "project: create initial version for %s", p.ProjectID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get retrieves a project by its primary key.
func Get(db *gorm.DB, id uint) (*models.Project, error) {
	var p models.Project
	if err := db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, perrors.NotFound("project: not found: %d", id)
		}
		return nil, perrors.Persistence(err, "project: get %d", id)
	}
	return &p, nil
}

// GetByExternalID retrieves a project by its five digit identifier.
func GetByExternalID(db *gorm.DB, projectID string) (*models.Project, error) {
	var p models.Project
	if err := db.Where("project_id = ?", projectID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, perrors.NotFound("project: not found: %s", projectID)
		}
		return nil, perrors.Persistence(err, "project: get %s", projectID)
	}
	return &p, nil
}

// Resolve looks a project up by external identifier when ref is five
// digits long and by primary key otherwise.
func Resolve(db *gorm.DB, ref string) (*models.Project, error) {
	ref = strings.TrimSpace(ref)
	if len(ref) == 5 {
		if p, err := GetByExternalID(db, ref); err == nil || !errors.Is(err, perrors.ErrNotFound) {
			return p, err
		}
	}
	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil {
		return nil, perrors.Validation("project: invalid project reference %q", ref)
	}
	return Get(db, uint(id))
}

// List returns one page of projects matching filters, newest first.
func List(db *gorm.DB, filters ListFilters) (*Page, error) {
	q := db.Model(&models.Project{})

	if filters.ProjectID != "" {
		q = q.Where("project_id LIKE ?", "%"+filters.ProjectID+"%")
	}
	if filters.Name != "" {
		q = q.Where("name LIKE ?", "%"+filters.Name+"%")
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.ManagerID != 0 {
		q = q.Where("project_manager_id = ?", filters.ManagerID)
	}
	if filters.MemberID != 0 {
		assigned := db.Model(&models.Task{}).Select("tasks.project_id").
			Joins("JOIN task_resources ON task_resources.task_id = tasks.id").
			Where("task_resources.user_id = ?", filters.MemberID)
		q = q.Where("id IN (?)", assigned)
	}
	if !filters.StartFrom.IsZero() {
		q = q.Where("start_date >= ?", models.DateOnly(filters.StartFrom))
	}
	if !filters.StartTo.IsZero() {
		q = q.Where("start_date <= ?", models.DateOnly(filters.StartTo))
	}

	page := Page{Page: filters.Page, PerPage: filters.PerPage}
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage < 1 {
		page.PerPage = DefaultPerPage
	}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, perrors.Persistence(err, "project: count")
	}
	err := q.Order("created_at DESC, id DESC").
		Offset((page.Page - 1) * page.PerPage).
		Limit(page.PerPage).
		Find(&page.Projects).Error
	if err != nil {
		return nil, perrors.Persistence(err, "project: list")
	}
	return &page, nil
}

// Update applies opts to the project. When a tracked field changed, a new
// ProjectVersion describing the changes is appended and returned.
// Untracked fields (amounts, PO number) persist without a version.
func Update(db *gorm.DB, id uint, opts UpdateOpts, author uint) (*models.Project, *models.ProjectVersion, error) {
	var (
		p  models.Project
		pv *models.ProjectVersion
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := schedule.LockProject(tx, id); err != nil {
			return err
		}
		current, err := Get(tx, id)
		if err != nil {
			return err
		}
		old := *current
		p = *current
		apply(&p, opts)
		if err := validate(&p); err != nil {
			return err
		}
		if p.ManagerID != old.ManagerID {
			if err := checkManager(tx, p.ManagerID); err != nil {
				return err
			}
		}
		normalizeAmounts(&p)

		if err := tx.Save(&p).Error; err != nil {
			return perrors.Persistence(err, "project: update %d", id)
		}

		changes, err := describeChanges(tx, &old, &p)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}
		pv, err = appendVersion(tx, p.ID, strings.Join(changes, "\n"), author)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("project: update %d: %w", id, err)
	}
	return &p, pv, nil
}

// Delete removes a project and everything that hangs off it: tasks with
// their resources, comments and snapshots, schedule versions with their
// change reports, project versions and attachment metadata.
func Delete(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := schedule.LockProject(tx, id); err != nil {
			return err
		}
		if _, err := Get(tx, id); err != nil {
			return err
		}
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("project_id = ?", id)
		for _, m := range []interface{}{&models.TaskResource{}, &models.TaskComment{}, &models.TaskVersionHistory{}} {
			if err := tx.Where("task_id IN (?)", taskIDs).Delete(m).Error; err != nil {
				return perrors.Persistence(err, "project: delete task dependents of %d", id)
			}
		}
		if err := schedule.DeleteForProject(tx, id); err != nil {
			return err
		}
		// Detach the hierarchy first so the self-referencing key never
		// blocks the bulk delete.
		if err := tx.Model(&models.Task{}).Where("project_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return perrors.Persistence(err, "project: detach tasks of %d", id)
		}
		for _, m := range []interface{}{&models.Task{}, &models.ProjectVersion{}, &models.Attachment{}} {
			if err := tx.Where("project_id = ?", id).Delete(m).Error; err != nil {
				return perrors.Persistence(err, "project: delete dependents of %d", id)
			}
		}
		if err := tx.Delete(&models.Project{}, id).Error; err != nil {
			return perrors.Persistence(err, "project: delete %d", id)
		}
		return nil
	})
}

func apply(p *models.Project, opts UpdateOpts) {
	if opts.Name != nil {
		p.Name = strings.TrimSpace(*opts.Name)
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.StartDate != nil {
		p.StartDate = *opts.StartDate
	}
	if opts.EndDate != nil {
		p.EndDate = *opts.EndDate
	}
	if opts.Type != nil {
		p.Type = *opts.Type
	}
	if opts.TotalAmount != nil {
		p.TotalAmount = nullDecimal(opts.TotalAmount)
	}
	if opts.MonthlyBilling != nil {
		p.MonthlyBilling = nullDecimal(opts.MonthlyBilling)
	}
	if opts.ManagerID != nil {
		p.ManagerID = *opts.ManagerID
	}
	if opts.CustomerPONumber != nil {
		p.CustomerPONumber = strings.TrimSpace(*opts.CustomerPONumber)
	}
	if opts.Status != nil {
		p.Status = *opts.Status
	}
	p.StartDate = models.DateOnly(p.StartDate)
	p.EndDate = models.DateOnly(p.EndDate)
}

func validate(p *models.Project) error {
	var errs []string
	if p.Name == "" || len(p.Name) > 100 {
		errs = append(errs, "name must be 1 to 100 characters")
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		errs = append(errs, "start and end dates are required")
	} else if p.EndDate.Before(p.StartDate) {
		errs = append(errs, fmt.Sprintf("end date %s precedes start date %s",
			models.FormatDate(p.EndDate), models.FormatDate(p.StartDate)))
	}
	if !p.Type.Valid() {
		errs = append(errs, fmt.Sprintf("unknown project type %q", p.Type))
	}
	if !p.Status.Valid() {
		errs = append(errs, fmt.Sprintf("unknown status %q", p.Status))
	}
	if len(p.CustomerPONumber) > 50 {
		errs = append(errs, "customer PO number exceeds 50 characters")
	}
	for _, amt := range []decimal.NullDecimal{p.TotalAmount, p.MonthlyBilling} {
		if amt.Valid && amt.Decimal.IsNegative() {
			errs = append(errs, "amounts must not be negative")
			break
		}
	}
	if p.ManagerID == 0 {
		errs = append(errs, "project manager is required")
	}
	if len(errs) > 0 {
		return perrors.Validation("project: %s", strings.Join(errs, "; "))
	}
	return nil
}

// checkManager requires an existing user allowed to manage projects.
func checkManager(db *gorm.DB, managerID uint) error {
	m, err := user.Get(db, managerID)
	if err != nil {
		return err
	}
	if m.Role != models.RoleProjectManager && m.Role != models.RoleAdmin {
		return perrors.Validation("project: user %s is not a project manager", m.Username)
	}
	return nil
}

// normalizeAmounts keeps only the amount matching the billing type.
func normalizeAmounts(p *models.Project) {
	switch p.Type {
	case models.ProjectFixedPrice:
		p.MonthlyBilling = decimal.NullDecimal{}
	case models.ProjectTimeAndMaterials:
		p.TotalAmount = decimal.NullDecimal{}
	}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Round(2))
}
