package models

import (
	"database/sql/driver"

	"github.com/zulandar/planyard/internal/perrors"
)

// Role is a user's permission level.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleTeamMember     Role = "team_member"
)

var roleLabels = map[Role]string{
	RoleAdmin:          "Administrator",
	RoleProjectManager: "Project Manager",
	RoleTeamMember:     "Team Member",
}

func (r Role) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

func (r Role) Label() string {
	return label(roleLabels, r)
}

func (Role) GormDataType() string {
	return "string"
}

func (r Role) Value() (driver.Value, error) {
	return enumValue("role", r, r.Valid())
}

func (r *Role) Scan(src any) error {
	s, err := scanEnum("role", src)
	if err != nil {
		return err
	}
	if !Role(s).Valid() {
		return perrors.New(perrors.ErrDataCorruption, "models: unknown role %q", s)
	}
	*r = Role(s)
	return nil
}

// ProjectType selects which billing amount a project carries.
type ProjectType string

const (
	ProjectFixedPrice       ProjectType = "fixed_price"
	ProjectTimeAndMaterials ProjectType = "time_and_materials"
)

var projectTypeLabels = map[ProjectType]string{
	ProjectFixedPrice:       "Fixed Price",
	ProjectTimeAndMaterials: "T&M Price",
}

func (p ProjectType) Valid() bool {
	_, ok := projectTypeLabels[p]
	return ok
}

func (p ProjectType) Label() string {
	return label(projectTypeLabels, p)
}

func (ProjectType) GormDataType() string {
	return "string"
}

func (p ProjectType) Value() (driver.Value, error) {
	return enumValue("project type", p, p.Valid())
}

func (p *ProjectType) Scan(src any) error {
	s, err := scanEnum("project type", src)
	if err != nil {
		return err
	}
	if !ProjectType(s).Valid() {
		return perrors.New(perrors.ErrDataCorruption, "models: unknown project type %q", s)
	}
	*p = ProjectType(s)
	return nil
}

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectEntered        ProjectStatus = "entered"
	ProjectApprovedActive ProjectStatus = "approved_active"
	ProjectCanceled       ProjectStatus = "canceled"
	ProjectCompleted      ProjectStatus = "completed"
)

var projectStatusLabels = map[ProjectStatus]string{
	ProjectEntered:        "Entered",
	ProjectApprovedActive: "Approved & Active",
	ProjectCanceled:       "Canceled",
	ProjectCompleted:      "Completed",
}

// ProjectStatuses lists every status in display order.
var ProjectStatuses = []ProjectStatus{ProjectEntered, ProjectApprovedActive, ProjectCanceled, ProjectCompleted}

func (s ProjectStatus) Valid() bool {
	_, ok := projectStatusLabels[s]
	return ok
}

func (s ProjectStatus) Label() string {
	return label(projectStatusLabels, s)
}

func (ProjectStatus) GormDataType() string {
	return "string"
}

func (s ProjectStatus) Value() (driver.Value, error) {
	return enumValue("project status", s, s.Valid())
}

func (s *ProjectStatus) Scan(src any) error {
	v, err := scanEnum("project status", src)
	if err != nil {
		return err
	}
	if !ProjectStatus(v).Valid() {
		return perrors.New(perrors.ErrDataCorruption, "models: unknown project status %q", v)
	}
	*s = ProjectStatus(v)
	return nil
}

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskPending    TaskStatus = "pending"
)

var taskStatusLabels = map[TaskStatus]string{
	TaskNotStarted: "Not Started",
	TaskInProgress: "In Progress",
	TaskCompleted:  "Completed",
	TaskPending:    "Pending",
}

func (s TaskStatus) Valid() bool {
	_, ok := taskStatusLabels[s]
	return ok
}

func (s TaskStatus) Label() string {
	return label(taskStatusLabels, s)
}

func (TaskStatus) GormDataType() string {
	return "string"
}

func (s TaskStatus) Value() (driver.Value, error) {
	return enumValue("task status", s, s.Valid())
}

func (s *TaskStatus) Scan(src any) error {
	v, err := scanEnum("task status", src)
	if err != nil {
		return err
	}
	if !TaskStatus(v).Valid() {
		return perrors.New(perrors.ErrDataCorruption, "models: unknown task status %q", v)
	}
	*s = TaskStatus(v)
	return nil
}

// AttachmentKind distinguishes purchase orders from statements of work.
type AttachmentKind string

const (
	AttachmentPO  AttachmentKind = "po"
	AttachmentSOW AttachmentKind = "sow"
)

func (k AttachmentKind) Valid() bool {
	return k == AttachmentPO || k == AttachmentSOW
}

func label[T ~string](labels map[T]string, v T) string {
	if l, ok := labels[v]; ok {
		return l
	}
	return string(v)
}

func enumValue[T ~string](what string, v T, valid bool) (driver.Value, error) {
	if !valid {
		return nil, perrors.Validation("models: invalid %s %q", what, string(v))
	}
	return string(v), nil
}

func scanEnum(what string, src any) (string, error) {
	switch t := src.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case nil:
		return "", perrors.New(perrors.ErrDataCorruption, "models: null %s", what)
	}
	return "", perrors.New(perrors.ErrDataCorruption, "models: unsupported %s type %T", what, src)
}
