package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/nabusboi/smart-support-routing/pkg/routing"
)

// registerAgentHandler handles POST /api/v1/agents.
func (s *Server) registerAgentHandler(c *echo.Context) error {
	var req RegisterAgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	info, err := s.deps.Registry.Register(req.Name, req.Skills, req.Capacity)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// A new agent may be able to take queued work immediately.
	s.deps.Pipeline.ApplyEvents(s.deps.Coordinator.Sweep())

	return c.JSON(http.StatusCreated, info)
}

// listAgentsHandler handles GET /api/v1/agents.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Registry.List())
}

// getAgentHandler handles GET /api/v1/agents/:id.
func (s *Server) getAgentHandler(c *echo.Context) error {
	info, err := s.deps.Registry.Get(c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// updateAgentStatusHandler handles PUT /api/v1/agents/:id/status. Bringing an
// agent back online immediately drains the queue into its capacity.
func (s *Server) updateAgentStatusHandler(c *echo.Context) error {
	var req UpdateAgentStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	status := routing.AgentStatus(req.Status)
	if !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if err := s.deps.Registry.UpdateStatus(c.Param("id"), status); err != nil {
		return mapServiceError(err)
	}
	if status != routing.AgentOffline {
		s.deps.Pipeline.ApplyEvents(s.deps.Coordinator.Sweep())
	}
	return c.JSON(http.StatusOK, &MessageResponse{Message: "status updated"})
}

// agentHistoryHandler handles GET /api/v1/agents/:id/history.
func (s *Server) agentHistoryHandler(c *echo.Context) error {
	recs, err := s.deps.Registry.AgentHistory(c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	if recs == nil {
		recs = []routing.AssignmentRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

// assignmentHistoryHandler handles GET /api/v1/agents/history, the global
// audit trail across all agents.
func (s *Server) assignmentHistoryHandler(c *echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	recs := s.deps.Registry.History(limit)
	if recs == nil {
		recs = []routing.AssignmentRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}

// agentStatsHandler handles GET /api/v1/agents/stats.
func (s *Server) agentStatsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Registry.Stats())
}

// preemptionHistoryHandler handles GET /api/v1/preemption/history with an
// optional limit parameter.
func (s *Server) preemptionHistoryHandler(c *echo.Context) error {
	recs := s.deps.Coordinator.Preemptions()
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		if limit < len(recs) {
			recs = recs[len(recs)-limit:]
		}
	}
	if recs == nil {
		recs = []routing.PreemptionRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}
