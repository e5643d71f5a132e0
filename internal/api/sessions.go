package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/harvester/internal/registry"
	"github.com/danpasecinic/harvester/internal/sessions"
	"github.com/danpasecinic/harvester/internal/types"
)

// CreateSessionRequest represents a request to start a job.
type CreateSessionRequest struct {
	JobType     string         `json:"jobType"`
	RequesterID string         `json:"requesterId"`
	Config      map[string]any `json:"config"`
	Priority    string         `json:"priority"`
}

// CreateSessionResponse is returned when a session was started.
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CreateSession handles POST /api/v1/sessions.
// Creates a session for the job type and submits it.
func (s *Server) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if req.JobType == "" || req.RequesterID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "jobType and requesterId are required"})
	}

	priority, err := types.ParsePriority(req.Priority)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	sessionID, err := s.engine.StartJob(req.JobType, req.RequesterID, req.Config, priority)
	switch {
	case errors.Is(err, registry.ErrJobNotFound):
		return c.JSON(
			http.StatusNotFound,
			map[string]string{"error": fmt.Sprintf("job type %s not found", req.JobType)},
		)
	case err != nil:
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, CreateSessionResponse{SessionID: sessionID})
}

// ListSessions handles GET /api/v1/sessions.
// Supports the requester, job_type and status query filters.
func (s *Server) ListSessions(c echo.Context) error {
	filter := types.SessionFilter{
		RequesterID: c.QueryParam("requester"),
		JobType:     c.QueryParam("job_type"),
		Status:      types.TaskStatus(c.QueryParam("status")),
	}

	return c.JSON(http.StatusOK, s.engine.ListSessions(filter))
}

// GetSession handles GET /api/v1/sessions/:id.
func (s *Server) GetSession(c echo.Context) error {
	view, err := s.engine.GetSessionStatus(c.Param("id"))
	if errors.Is(err, sessions.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, view)
}

// CancelSession handles POST /api/v1/sessions/:id/cancel.
// Returns 409 when the session is unknown or already finished. When the
// cancelled session can no longer be read back, a minimal body is returned.
func (s *Server) CancelSession(c echo.Context) error {
	sessionID := c.Param("id")

	if !s.engine.CancelSession(sessionID) {
		return c.JSON(
			http.StatusConflict,
			map[string]string{"error": "session not found or already finished"},
		)
	}

	view, err := s.engine.GetSessionStatus(sessionID)
	if err != nil {
		log.Printf("[api] session=%s cancelled but not readable: %v", sessionID, err)
		return c.JSON(
			http.StatusOK, map[string]string{
				"sessionId": sessionID,
				"status":    string(types.TaskCancelled),
			},
		)
	}
	return c.JSON(http.StatusOK, view)
}
