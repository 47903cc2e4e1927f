// Package api exposes the routing engine over HTTP. Handlers are a thin
// adapter: bind, validate, call the engine, map errors. No routing logic
// lives here.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nabusboi/smart-support-routing/pkg/broker"
	"github.com/nabusboi/smart-support-routing/pkg/classifier"
	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/dedup"
	"github.com/nabusboi/smart-support-routing/pkg/pqueue"
	"github.com/nabusboi/smart-support-routing/pkg/routing"
	"github.com/nabusboi/smart-support-routing/pkg/tickets"
	"github.com/nabusboi/smart-support-routing/pkg/worker"
)

// Deps are the engine components the server fronts.
type Deps struct {
	Config      *config.Config
	Store       *tickets.Store
	Pipeline    *worker.Pipeline
	Registry    *routing.Registry
	Coordinator *routing.Coordinator
	Queue       *pqueue.Queue
	Dedup       *dedup.Deduplicator
	Classifier  *classifier.Failover
	Broker      broker.Broker
	Pool        *worker.Pool
}

// Server is the HTTP front end.
type Server struct {
	echo *echo.Echo
	srv  *http.Server
	deps Deps
}

// NewServer builds the server and registers all routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		echo: echo.New(),
		deps: deps,
	}
	s.echo.Use(requestLogger(), securityHeaders())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.healthHandler)

	g := s.echo.Group("/api/v1")

	g.POST("/tickets", s.submitTicketHandler)
	g.GET("/tickets", s.listTicketsHandler)
	g.GET("/tickets/:id", s.getTicketHandler)
	g.DELETE("/tickets/:id", s.cancelTicketHandler)
	g.POST("/tickets/:id/complete", s.completeTicketHandler)
	g.PUT("/tickets/:id/priority", s.updatePriorityHandler)

	g.POST("/agents", s.registerAgentHandler)
	g.POST("/agents/register", s.registerAgentHandler)
	g.GET("/agents", s.listAgentsHandler)
	g.GET("/agents/stats", s.agentStatsHandler)
	g.GET("/agents/history", s.assignmentHistoryHandler)
	g.GET("/agents/:id", s.getAgentHandler)
	g.PUT("/agents/:id/status", s.updateAgentStatusHandler)
	g.GET("/agents/:id/history", s.agentHistoryHandler)

	g.GET("/preemption/history", s.preemptionHistoryHandler)

	g.GET("/incidents", s.listIncidentsHandler)
	g.GET("/incidents/:id", s.getIncidentHandler)
	g.GET("/dedup/stats", s.dedupStatsHandler)

	g.GET("/queue/stats", s.queueStatsHandler)
	g.GET("/broker/stats", s.brokerStatsHandler)
	g.GET("/workers/stats", s.workerStatsHandler)

	g.GET("/circuit-breaker/stats", s.breakerStatsHandler)
	g.POST("/ml/circuit-breaker/toggle", s.breakerToggleHandler)
	g.POST("/ml/classify", s.classifyHandler)
}

// Start begins serving on the configured port. Blocks until shutdown.
func (s *Server) Start() error {
	s.srv = &http.Server{Addr: ":" + s.deps.Config.HTTP.Port, Handler: s.echo}
	return s.srv.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
