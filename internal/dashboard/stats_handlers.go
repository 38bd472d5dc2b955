package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *server) handleDashboard() gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := DashboardStats(s.db, currentUser(c), s.now())
		if err != nil {
			abort(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
