// Package dashboard serves the Planyard JSON API.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zulandar/planyard/internal/auth"
	"github.com/zulandar/planyard/internal/notify"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB          *gorm.DB
	Port        int
	Out         io.Writer
	Logger      *zap.Logger
	Issuer      *auth.Issuer
	Dispatcher  *notify.Dispatcher // optional
	CORSOrigins []string
	// Now overrides the clock for dashboard stats and password resets.
	Now func() time.Time
	// NotifyTimeout bounds each background notification. Defaults to 30s.
	NotifyTimeout time.Duration
}

// server carries the dependencies shared by every handler.
type server struct {
	db       *gorm.DB
	logger   *zap.Logger
	issuer   *auth.Issuer
	notifier *notify.Dispatcher
	now      func() time.Time

	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

// NewRouter builds the gin engine with middleware and routes registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	_, router, err := newServer(opts)
	return router, err
}

func newServer(opts StartOpts) (*server, *gin.Engine, error) {
	if opts.DB == nil {
		return nil, nil, fmt.Errorf("dashboard: db is required")
	}
	if opts.Issuer == nil {
		return nil, nil, fmt.Errorf("dashboard: token issuer is required")
	}
	s := &server{
		db:            opts.DB,
		logger:        opts.Logger,
		issuer:        opts.Issuer,
		notifier:      opts.Dispatcher,
		now:           opts.Now,
		notifyTimeout: opts.NotifyTimeout,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 30 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(s.logger), recordMetrics())
	if len(opts.CORSOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = opts.CORSOrigins
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", requestIDHeader)
		cfg.ExposeHeaders = []string{requestIDHeader}
		router.Use(cors.New(cfg))
	}

	registerRoutes(router, s)
	return s, router, nil
}

// announce runs send in the background so chat rate limits never hold up
// the response. The context keeps the request's values but not its
// cancellation, and is bounded by notifyTimeout.
func (s *server) announce(c *gin.Context, send func(ctx context.Context)) {
	if s.notifier.Len() == 0 {
		return
	}
	base := context.WithoutCancel(c.Request.Context())
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(base, s.notifyTimeout)
		defer cancel()
		send(ctx)
	}()
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	s, router, err := newServer(opts)
	if err != nil {
		return err
	}
	defer s.pending.Wait()
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Planyard API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
