// Package models holds the domain types shared across the engine.
package models

import "time"

// TicketStatus represents the lifecycle state of a ticket.
type TicketStatus string

// Ticket lifecycle states.
const (
	StatusPending   TicketStatus = "pending"
	StatusQueued    TicketStatus = "queued"
	StatusAssigned  TicketStatus = "assigned"
	StatusPaused    TicketStatus = "paused"
	StatusCompleted TicketStatus = "completed"
	StatusCancelled TicketStatus = "cancelled"
	StatusFailed    TicketStatus = "failed"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusAssigned, StatusPaused,
		StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s TicketStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Ticket categories. The set is closed for classification purposes but
// category is carried as a string so operators can extend it via tagging.
const (
	CategoryBilling   = "Billing"
	CategoryTechnical = "Technical"
	CategoryLegal     = "Legal"
	CategoryGeneral   = "General"
)

// Categories lists the known categories in their stable tie-break order.
func Categories() []string {
	return []string{CategoryBilling, CategoryTechnical, CategoryLegal, CategoryGeneral}
}

// Ticket is a support ticket as tracked by the engine.
type Ticket struct {
	ID          string       `json:"ticket_id"`
	Subject     string       `json:"subject"`
	Description string       `json:"description"`
	CustomerID  string       `json:"customer_id"`
	Category    string       `json:"category"`
	Urgency     float64      `json:"urgency"`
	Status      TicketStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`

	// RequiredSkills, when non-empty, overrides category-based skill
	// matching: agents are scored by their mean proficiency across these.
	RequiredSkills []string `json:"required_skills,omitempty"`

	// AgentID is set while an agent owns the ticket.
	AgentID string `json:"assigned_agent,omitempty"`

	// MasterIncidentID links the ticket to a Master Incident when the
	// deduplicator folded it into one.
	MasterIncidentID string `json:"master_incident_id,omitempty"`

	// EtaSeconds is the estimated service time assigned at routing.
	EtaSeconds float64 `json:"eta_seconds,omitempty"`
}
