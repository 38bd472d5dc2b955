package dashboard

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zulandar/planyard/internal/logging"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/user"
)

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	// MustChangePassword is set until the first password change.
	MustChangePassword bool `json:"must_change_password"`
}

func (s *server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if !bindJSON(c, &req) {
			return
		}
		u, err := user.Authenticate(s.db, req.Login, req.Password)
		if err != nil {
			abort(c, err)
			return
		}
		token, exp, err := s.issuer.Issue(u)
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: exp, User: u, MustChangePassword: u.IsFirstLogin})
	}
}

func (s *server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, currentUser(c))
	}
}

type changePasswordRequest struct {
	Current string `json:"current_password" binding:"required"`
	New     string `json:"new_password" binding:"required"`
}

func (s *server) handleChangePassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := user.ChangePassword(s.db, currentUser(c).ID, req.Current, req.New); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

// handleResetRequest always answers 202 so callers cannot discover which
// addresses have accounts. Tokens are delivered out of band; see
// handleResetToken.
func (s *server) handleResetRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetRequest
		if !bindJSON(c, &req) {
			return
		}
		tok, err := user.RequestReset(s.db, req.Email, s.now())
		log := logging.FromContext(c.Request.Context(), s.logger)
		switch {
		case err == nil:
			log.Info("password reset requested", zap.Uint("user_id", tok.UserID))
		case errors.Is(err, perrors.ErrNotFound):
			log.Info("password reset requested for unknown email")
		default:
			abort(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "If the address is registered, a reset link will be sent."})
	}
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *server) handleReset() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetPasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := user.ResetPassword(s.db, req.Token, req.Password, s.now()); err != nil {
			abort(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
