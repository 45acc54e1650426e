package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/rfcontrol-core/internal/audit"
	"github.com/nerrad567/rfcontrol-core/internal/control"
	"github.com/nerrad567/rfcontrol-core/internal/device"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/config"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/database"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by infrastructure clients that can report
// their own health (database, MQTT, InfluxDB).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SchemaReporter reports how far the database schema has been migrated.
type SchemaReporter interface {
	SchemaStatus(ctx context.Context) (database.SchemaStatus, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Registry   *device.Registry
	Dispatcher *control.Dispatcher
	Version    string

	// Optional. Audit entries are dropped when AuditRepo is nil. Checks
	// and Schema are reported by /api/v1/health. Metrics defaults to
	// promhttp.Handler().
	AuditRepo audit.Repository
	Checks    map[string]HealthChecker
	Schema    SchemaReporter
	Metrics   http.Handler
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and the async audit
// writer. The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	registry   *device.Registry
	dispatcher *control.Dispatcher
	auditRepo  audit.Repository
	auditCh    chan *audit.AuditLog
	auditDone  chan struct{}
	checks     map[string]HealthChecker
	schema     SchemaReporter
	metrics    http.Handler
	version    string
	server     *http.Server
	cancel     context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("control dispatcher is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:        deps.Config,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		auditRepo:  deps.AuditRepo,
		checks:     deps.Checks,
		schema:     deps.Schema,
		metrics:    deps.Metrics,
		version:    deps.Version,
	}
	if s.metrics == nil {
		s.metrics = promhttp.Handler()
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	return s, nil
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
//
// The audit writer keeps ctx's values but not its cancellation: it runs
// until Close has drained in-flight requests, so entries queued during
// the shutdown grace period are still written.
func (s *Server) Start(ctx context.Context) error {
	var auditCtx context.Context
	auditCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if s.auditCh != nil {
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.drainAuditLog(auditCtx)
		}()
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server. The audit writer is stopped
// only after Shutdown returns, then flushes what is still queued.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.auditDone != nil {
		<-s.auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
