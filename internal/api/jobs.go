package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/harvester/internal/types"
)

// StartAllRequest represents a request to start every available job type.
type StartAllRequest struct {
	RequesterID string         `json:"requesterId"`
	Config      map[string]any `json:"config"`
	Priority    string         `json:"priority"`
}

// StartAllResponse lists the sessions that were started.
type StartAllResponse struct {
	SessionIDs []string `json:"sessionIds"`
}

// ListJobs handles GET /api/v1/jobs.
func (s *Server) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Jobs())
}

// StartAllJobs handles POST /api/v1/jobs/start-all.
func (s *Server) StartAllJobs(c echo.Context) error {
	var req StartAllRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if req.RequesterID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "requesterId is required"})
	}

	priority, err := types.ParsePriority(req.Priority)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	ids := s.engine.StartAllRegisteredJobs(req.RequesterID, req.Config, priority)
	if ids == nil {
		ids = []string{}
	}

	return c.JSON(http.StatusCreated, StartAllResponse{SessionIDs: ids})
}

// ReloadJobs handles POST /api/v1/jobs/reload.
// Rebinds job implementations and returns the resulting catalog.
func (s *Server) ReloadJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.ReloadJobs())
}
