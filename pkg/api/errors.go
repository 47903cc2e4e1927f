package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/nabusboi/smart-support-routing/pkg/routing"
	"github.com/nabusboi/smart-support-routing/pkg/tickets"
)

// mapServiceError maps engine errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	if errors.Is(err, tickets.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "ticket not found")
	}
	if errors.Is(err, routing.ErrAgentNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}
	if errors.Is(err, routing.ErrAssignmentNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "assignment not found")
	}
	if errors.Is(err, tickets.ErrTerminal) {
		return echo.NewHTTPError(http.StatusConflict, "ticket is in a terminal state")
	}
	if errors.Is(err, routing.ErrAgentAtCapacity) {
		return echo.NewHTTPError(http.StatusConflict, "agent is at capacity")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
