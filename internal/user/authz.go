package user

import "github.com/zulandar/planyard/internal/models"

// Authorization predicates. They are pure: callers load the records and
// decide how to report a denial.

// IsManagerOf reports whether u manages p.
func IsManagerOf(u *models.User, p *models.Project) bool {
	return u.Role == models.RoleProjectManager && p.ManagerID == u.ID
}

// CanCreateProject reports whether u may register new projects.
func CanCreateProject(u *models.User) bool {
	return u.Role == models.RoleAdmin || u.Role == models.RoleProjectManager
}

// CanViewProject hides other managers' projects from a project manager.
// Team members see any project they reach through their tasks.
func CanViewProject(u *models.User, p *models.Project) bool {
	if u.Role == models.RoleProjectManager {
		return p.ManagerID == u.ID
	}
	return u.Role.Valid()
}

// CanEditProject reports whether u may change p's fields or record a version.
func CanEditProject(u *models.User, p *models.Project) bool {
	return u.Role == models.RoleAdmin || IsManagerOf(u, p)
}

// CanDeleteProject reports whether u may delete projects.
func CanDeleteProject(u *models.User) bool {
	return u.Role == models.RoleAdmin
}

// CanManageTasks covers task create/edit/delete and resource assignment.
func CanManageTasks(u *models.User, p *models.Project) bool {
	return u.Role == models.RoleAdmin || IsManagerOf(u, p)
}

// CanManageUsers reports whether u may create accounts and issue reset tokens.
func CanManageUsers(u *models.User) bool {
	return u.Role == models.RoleAdmin
}

// CanComment reports whether u may comment on p's tasks.
func CanComment(u *models.User, p *models.Project) bool {
	return CanViewProject(u, p)
}

// CanBeResource reports whether u may be assigned to tasks.
func CanBeResource(u *models.User) bool {
	return u.Role != models.RoleAdmin
}
