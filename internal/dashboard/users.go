package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/user"
)

type userRequest struct {
	Username  string      `json:"username" binding:"required"`
	Email     string      `json:"email" binding:"required"`
	Password  string      `json:"password" binding:"required"`
	Role      models.Role `json:"role"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
}

func (s *server) handleUserCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !user.CanManageUsers(currentUser(c)) {
			deny(c, "only administrators can create users")
			return
		}
		var req userRequest
		if !bindJSON(c, &req) {
			return
		}
		u, err := user.Create(s.db, user.CreateOpts{
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
			Role:      req.Role,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// handleUserList lists users. ?resources=true drops administrators, giving
// the set of users assignable to tasks.
func (s *server) handleUserList() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := user.ListFilters{
			Role:          models.Role(c.Query("role")),
			ExcludeAdmins: c.Query("resources") == "true",
		}
		users, err := user.List(s.db, filters)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// handleResetToken issues a reset token for a user so an administrator can
// hand it over out of band.
func (s *server) handleResetToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !user.CanManageUsers(currentUser(c)) {
			deny(c, "only administrators can issue reset tokens")
			return
		}
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		u, err := user.Get(s.db, id)
		if err != nil {
			abort(c, err)
			return
		}
		tok, err := user.RequestReset(s.db, u.Email, s.now())
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"token": tok.Token, "expires_at": tok.ExpiresAt})
	}
}
