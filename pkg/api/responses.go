package api

import (
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// SubmitTicketResponse is returned by POST /api/v1/tickets.
type SubmitTicketResponse struct {
	TicketID         string  `json:"ticket_id"`
	Status           string  `json:"status"`
	Category         string  `json:"category"`
	Urgency          float64 `json:"urgency"`
	Model            string  `json:"model"`
	EtaSeconds       float64 `json:"eta_seconds,omitempty"`
	AssignedAgent    string  `json:"assigned_agent,omitempty"`
	PreemptedTicket  string  `json:"preempted_ticket,omitempty"`
	IsMasterIncident bool    `json:"is_master_incident"`
	MasterIncidentID string  `json:"master_incident_id,omitempty"`
	NotificationSent bool    `json:"notification_sent"`
}

// TicketListResponse is returned by GET /api/v1/tickets.
type TicketListResponse struct {
	Tickets []models.Ticket `json:"tickets"`
	Total   int             `json:"total"`
}

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// QueueStatsResponse is returned by GET /api/v1/queue/stats.
type QueueStatsResponse struct {
	Size    int             `json:"size"`
	Tickets []models.Ticket `json:"tickets"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Workers map[string]any `json:"workers,omitempty"`
}
