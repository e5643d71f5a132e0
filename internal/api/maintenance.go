package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/danpasecinic/harvester/internal/archive"
)

// ListHistory handles GET /api/v1/history.
// Supports the requester, job_type and limit query parameters.
func (s *Server) ListHistory(c echo.Context) error {
	q := archive.Query{
		RequesterID: c.QueryParam("requester"),
		JobType:     c.QueryParam("job_type"),
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		}
		q.Limit = limit
	}

	history, err := s.engine.ListHistory(c.Request().Context(), q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, history)
}

// Prune handles POST /api/v1/prune
// Removes finished tasks and sessions past their retention, or all of them
// with ?all=true.
func (s *Server) Prune(c echo.Context) error {
	all := c.QueryParam("all") == "true"

	result := s.engine.Prune(c.Request().Context(), all)

	log.Printf(
		"[api] prune completed all=%v tasks=%d sessions=%d archived=%d",
		all, result.TasksRemoved, result.SessionsRemoved, result.Archived,
	)

	return c.JSON(http.StatusOK, result)
}
