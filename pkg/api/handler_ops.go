package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nabusboi/smart-support-routing/pkg/dedup"
	"github.com/nabusboi/smart-support-routing/pkg/version"
)

// listIncidentsHandler handles GET /api/v1/incidents.
func (s *Server) listIncidentsHandler(c *echo.Context) error {
	incidents := s.deps.Dedup.Incidents()
	if incidents == nil {
		incidents = []*dedup.MasterIncident{}
	}
	return c.JSON(http.StatusOK, incidents)
}

// getIncidentHandler handles GET /api/v1/incidents/:id.
func (s *Server) getIncidentHandler(c *echo.Context) error {
	inc := s.deps.Dedup.Incident(c.Param("id"))
	if inc == nil {
		return echo.NewHTTPError(http.StatusNotFound, "incident not found")
	}
	return c.JSON(http.StatusOK, inc)
}

// dedupStatsHandler handles GET /api/v1/dedup/stats.
func (s *Server) dedupStatsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Dedup.Stats())
}

// queueStatsHandler handles GET /api/v1/queue/stats.
func (s *Server) queueStatsHandler(c *echo.Context) error {
	tickets := s.deps.Store.List("")
	queued := tickets[:0:0]
	for _, t := range tickets {
		if s.deps.Queue.GetByID(t.ID) != nil {
			queued = append(queued, t)
		}
	}
	return c.JSON(http.StatusOK, &QueueStatsResponse{
		Size:    s.deps.Queue.Size(),
		Tickets: queued,
	})
}

// brokerStatsHandler handles GET /api/v1/broker/stats.
func (s *Server) brokerStatsHandler(c *echo.Context) error {
	stats, err := s.deps.Broker.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "broker unavailable")
	}
	return c.JSON(http.StatusOK, stats)
}

// workerStatsHandler handles GET /api/v1/workers/stats.
func (s *Server) workerStatsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Pool.Stats())
}

// breakerStatsHandler handles GET /api/v1/circuit-breaker/stats.
func (s *Server) breakerStatsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Classifier.Breaker().Stats())
}

// breakerToggleHandler handles POST /api/v1/ml/circuit-breaker/toggle. Used
// to force the classifier onto the keyword fallback during model incidents.
func (s *Server) breakerToggleHandler(c *echo.Context) error {
	var req BreakerToggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	switch req.Action {
	case "trip":
		s.deps.Classifier.Breaker().Trip()
	case "reset":
		s.deps.Classifier.Breaker().Reset()
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "action must be \"trip\" or \"reset\"")
	}
	return c.JSON(http.StatusOK, s.deps.Classifier.Breaker().Stats())
}

// classifyHandler handles POST /api/v1/ml/classify, exposing the classifier
// directly for dry runs.
func (s *Server) classifyHandler(c *echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Subject == "" && req.Description == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "subject or description is required")
	}

	result, err := s.deps.Classifier.Classify(req.Subject, req.Description)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *echo.Context) error {
	resp := &HealthResponse{
		Status:  "healthy",
		Version: version.Full(),
	}
	if s.deps.Pool != nil {
		stats := s.deps.Pool.Stats()
		resp.Workers = map[string]any{
			"running":   stats.Running,
			"count":     stats.Workers,
			"processed": stats.Processed,
			"failed":    stats.Failed,
		}
	}
	return c.JSON(http.StatusOK, resp)
}
