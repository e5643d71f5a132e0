package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/harvester/internal/types"
)

// HealthSummary handles GET /api/v1/health.
// Responds 503 when the verdict is unhealthy.
func (s *Server) HealthSummary(c echo.Context) error {
	status := s.engine.GetHealthSummary()

	code := http.StatusOK
	if status.Status == types.VerdictUnhealthy {
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, status)
}

// HealthReport handles GET /api/v1/health/report.
func (s *Server) HealthReport(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.GetHealthReport())
}

// Metrics handles GET /api/v1/metrics.
func (s *Server) Metrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.GetMetrics())
}
