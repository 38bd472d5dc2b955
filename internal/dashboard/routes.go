package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, s *server) {
	router.GET("/healthz", s.handleHealth())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := router.Group("/api/auth")
	public.POST("/login", s.handleLogin())
	public.POST("/reset-request", s.handleResetRequest())
	public.POST("/reset", s.handleReset())

	api := router.Group("/api", s.authRequired())
	api.GET("/auth/me", s.handleMe())
	api.POST("/auth/password", s.handleChangePassword())

	api.GET("/dashboard", s.handleDashboard())

	api.GET("/users", s.handleUserList())
	api.POST("/users", s.handleUserCreate())
	api.POST("/users/:id/reset-token", s.handleResetToken())

	api.GET("/projects", s.handleProjectList())
	api.POST("/projects", s.handleProjectCreate())
	api.GET("/projects/:id", s.handleProjectDetail())
	api.PUT("/projects/:id", s.handleProjectUpdate())
	api.DELETE("/projects/:id", s.handleProjectDelete())
	api.GET("/projects/:id/versions", s.handleProjectVersions())
	api.POST("/projects/:id/versions", s.handleProjectVersionCreate())
	api.POST("/projects/:id/attachments", s.handleAttachmentCreate())

	api.GET("/projects/:id/tasks", s.handleTaskList())
	api.POST("/projects/:id/tasks", s.handleTaskCreate())
	api.GET("/projects/:id/gantt", s.handleGantt())
	api.GET("/projects/:id/schedule", s.handleScheduleList())
	api.GET("/schedule/:versionID/reports", s.handleScheduleReports())

	api.GET("/tasks/:id", s.handleTaskDetail())
	api.PUT("/tasks/:id", s.handleTaskUpdate())
	api.DELETE("/tasks/:id", s.handleTaskDelete())
	api.GET("/tasks/:id/descendants", s.handleTaskDescendants())
	api.GET("/tasks/:id/history", s.handleTaskHistory())
	api.GET("/tasks/:id/resources", s.handleResourceList())
	api.POST("/tasks/:id/resources", s.handleResourceCreate())
	api.DELETE("/resources/:id", s.handleResourceDelete())
	api.GET("/tasks/:id/comments", s.handleCommentList())
	api.POST("/tasks/:id/comments", s.handleCommentCreate())
}

func (s *server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
