package api

// SubmitTicketRequest is the body of POST /api/v1/tickets.
type SubmitTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	CustomerID  string `json:"customer_id"`

	// RequiredSkills optionally pins routing to specific agent skills
	// instead of the classified category.
	RequiredSkills []string `json:"required_skills"`
}

// CompleteTicketRequest is the body of POST /api/v1/tickets/:id/complete.
type CompleteTicketRequest struct {
	AgentID string `json:"agent_id"`
}

// UpdatePriorityRequest is the body of PUT /api/v1/tickets/:id/priority.
type UpdatePriorityRequest struct {
	Urgency *float64 `json:"urgency"`
}

// RegisterAgentRequest is the body of POST /api/v1/agents.
type RegisterAgentRequest struct {
	Name     string             `json:"name"`
	Skills   map[string]float64 `json:"skills"`
	Capacity int                `json:"capacity"`
}

// UpdateAgentStatusRequest is the body of PUT /api/v1/agents/:id/status.
type UpdateAgentStatusRequest struct {
	Status string `json:"status"`
}

// BreakerToggleRequest is the body of POST /api/v1/ml/circuit-breaker/toggle.
type BreakerToggleRequest struct {
	Action string `json:"action"` // "trip" or "reset"
}

// ClassifyRequest is the body of POST /api/v1/ml/classify.
type ClassifyRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}
