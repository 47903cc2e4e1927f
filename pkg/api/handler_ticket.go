package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// submitTicketHandler handles POST /api/v1/tickets. The ticket runs the full
// classify-dedup-route pipeline synchronously and the outcome is returned.
func (s *Server) submitTicketHandler(c *echo.Context) error {
	var req SubmitTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Subject) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject field is required")
	}

	created, err := s.deps.Store.Create(req.Subject, req.Description, req.CustomerID, req.RequiredSkills...)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out, err := s.deps.Pipeline.Process(c.Request().Context(), created.ID)
	if err != nil {
		return mapServiceError(err)
	}

	stored, err := s.deps.Store.Get(created.ID)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusAccepted, &SubmitTicketResponse{
		TicketID:         out.TicketID,
		Status:           string(stored.Status),
		Category:         out.Category,
		Urgency:          out.Urgency,
		Model:            out.Model,
		EtaSeconds:       out.EtaSeconds,
		AssignedAgent:    out.AgentID,
		PreemptedTicket:  out.PreemptedTicket,
		IsMasterIncident: out.IsMasterIncident,
		MasterIncidentID: out.MasterIncidentID,
		NotificationSent: out.NotificationSent,
	})
}

// listTicketsHandler handles GET /api/v1/tickets with an optional status
// filter. Results are sorted by urgency, most urgent first.
func (s *Server) listTicketsHandler(c *echo.Context) error {
	status := models.TicketStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	list := s.deps.Store.List(status)
	return c.JSON(http.StatusOK, &TicketListResponse{Tickets: list, Total: len(list)})
}

// getTicketHandler handles GET /api/v1/tickets/:id.
func (s *Server) getTicketHandler(c *echo.Context) error {
	t, err := s.deps.Store.Get(c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, t)
}

// cancelTicketHandler handles DELETE /api/v1/tickets/:id. Queued tickets are
// also removed from the priority queue.
func (s *Server) cancelTicketHandler(c *echo.Context) error {
	id := c.Param("id")
	if err := s.deps.Store.Cancel(id); err != nil {
		return mapServiceError(err)
	}
	s.deps.Queue.Remove(id)
	return c.JSON(http.StatusOK, &MessageResponse{Message: "ticket cancelled"})
}

// completeTicketHandler handles POST /api/v1/tickets/:id/complete. Completing
// a ticket may resume paused work and pull queued tickets onto the agent.
func (s *Server) completeTicketHandler(c *echo.Context) error {
	var req CompleteTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.AgentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "agent_id field is required")
	}

	events, err := s.deps.Coordinator.Complete(req.AgentID, c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	s.deps.Pipeline.ApplyEvents(events)
	return c.JSON(http.StatusOK, &MessageResponse{Message: "ticket completed"})
}

// updatePriorityHandler handles PUT /api/v1/tickets/:id/priority. The new
// urgency is applied to the stored ticket and rekeys the queue entry when the
// ticket is still queued.
func (s *Server) updatePriorityHandler(c *echo.Context) error {
	var req UpdatePriorityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Urgency == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "urgency field is required")
	}
	if *req.Urgency < 0 || *req.Urgency > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "urgency must be in [0,1]")
	}

	id := c.Param("id")
	if err := s.deps.Store.SetUrgency(id, *req.Urgency); err != nil {
		return mapServiceError(err)
	}
	s.deps.Queue.UpdatePriority(id, *req.Urgency)
	return c.JSON(http.StatusOK, &MessageResponse{Message: "priority updated"})
}
