package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zulandar/planyard/internal/logging"
	"github.com/zulandar/planyard/internal/metrics"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/perrors"
	"github.com/zulandar/planyard/internal/user"
)

const (
	requestIDHeader = "X-Request-ID"
	userKey         = "planyard.user"
)

// requestID propagates the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		log := logging.FromContext(c.Request.Context(), logger)
		if len(c.Errors) > 0 {
			log.Warn("request failed", append(fields, zap.String("error", c.Errors.String()))...)
			return
		}
		log.Info("request", fields...)
	}
}

// recordMetrics observes request latency labelled by route template.
func recordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// authRequired validates the bearer token and loads the caller.
func (s *server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abort(c, perrors.New(perrors.ErrUnauthorized, "missing bearer token"))
			return
		}
		claims, err := s.issuer.Validate(token)
		if err != nil {
			abort(c, err)
			return
		}
		u, err := user.Get(s.db, claims.UserID)
		if err != nil {
			if errors.Is(err, perrors.ErrNotFound) {
				err = perrors.New(perrors.ErrUnauthorized, "token user no longer exists")
			}
			abort(c, err)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// abort writes err with the status of its kind and stops the chain.
func abort(c *gin.Context, err error) {
	kind := perrors.KindOf(err)
	c.Error(err)
	msg := err.Error()
	if kind.Status >= http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(kind.Status, errorBody{Error: msg, Code: kind.Code})
}

func deny(c *gin.Context, format string, args ...any) {
	abort(c, perrors.PermissionDenied(format, args...))
}

// bindJSON decodes the request body, reporting malformed input as a
// validation error.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		abort(c, perrors.Validation("invalid request body: %v", err))
		return false
	}
	return true
}

// uintParam parses a positive integer path parameter.
func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		abort(c, perrors.Validation("invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return uint(n), true
}

// parseDate parses an optional YYYY-MM-DD field.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	d, err := models.ParseDate(*s)
	if err != nil {
		return nil, perrors.Validation("%s: expected YYYY-MM-DD, got %q", field, *s)
	}
	return &d, nil
}
