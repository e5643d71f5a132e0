package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/harvester/internal/archive"
	"github.com/danpasecinic/harvester/internal/types"
)

// Engine is the orchestrator surface served over HTTP.
type Engine interface {
	StartJob(jobType, requesterID string, config map[string]any, priority types.Priority) (string, error)
	StartAllRegisteredJobs(requesterID string, config map[string]any, priority types.Priority) []string
	GetSessionStatus(sessionID string) (types.SessionView, error)
	CancelSession(sessionID string) bool
	ListSessions(filter types.SessionFilter) []types.SessionSummary
	GetHealthSummary() types.HealthStatus
	GetHealthReport() types.HealthReport
	GetMetrics() types.MetricsReport
	Jobs() []types.JobInfo
	ReloadJobs() []types.JobInfo
	ListHistory(ctx context.Context, q archive.Query) ([]types.ArchivedSession, error)
	Prune(ctx context.Context, all bool) types.CleanupResult
	MetricsHandler() http.Handler
}

// Server handles HTTP requests for the orchestrator API.
type Server struct {
	engine Engine
}

// NewServer creates a new API server backed by engine.
func NewServer(engine Engine) *Server {
	return &Server{engine: engine}
}

// RegisterRoutes registers all API endpoints with the Echo router.
// Routes are grouped under /api/v1 for versioning.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Liveness)
	e.GET("/metrics", echo.WrapHandler(s.engine.MetricsHandler()))

	v1 := e.Group("/api/v1")

	// Session routes
	v1.POST("/sessions", s.CreateSession)
	v1.GET("/sessions", s.ListSessions)
	v1.GET("/sessions/:id", s.GetSession)
	v1.POST("/sessions/:id/cancel", s.CancelSession)

	// Job routes
	v1.GET("/jobs", s.ListJobs)
	v1.POST("/jobs/start-all", s.StartAllJobs)
	v1.POST("/jobs/reload", s.ReloadJobs)

	// Observability routes
	v1.GET("/health", s.HealthSummary)
	v1.GET("/health/report", s.HealthReport)
	v1.GET("/metrics", s.Metrics)

	// Maintenance routes
	v1.GET("/history", s.ListHistory)
	v1.POST("/prune", s.Prune)
}

// Liveness handles GET /health.
func (s *Server) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
