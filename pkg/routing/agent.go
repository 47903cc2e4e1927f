// Package routing owns agent state and the ticket-to-agent assignment logic:
// the agent registry, skill-and-load scoring, urgency preemption with
// pause/resume accounting, and ETA-driven auto-completion.
package routing

import (
	"time"
)

// AgentStatus is the availability state of an agent.
type AgentStatus string

// Agent states. Busy is derived from load reaching capacity; offline is set
// explicitly and sticky until cleared.
const (
	AgentAvailable AgentStatus = "available"
	AgentBusy      AgentStatus = "busy"
	AgentOffline   AgentStatus = "offline"
)

// Valid reports whether s is a known agent status.
func (s AgentStatus) Valid() bool {
	return s == AgentAvailable || s == AgentBusy || s == AgentOffline
}

// AssignmentState is the lifecycle state of one ticket on one agent.
type AssignmentState string

// Assignment states.
const (
	AssignmentActive    AssignmentState = "active"
	AssignmentPaused    AssignmentState = "paused"
	AssignmentCompleted AssignmentState = "completed"
)

// AssignedTicket is one ticket held by an agent. Elapsed work time is split
// into the closed segments accumulated before the last pause plus the open
// segment since StartedAt, so pause and resume never lose progress.
type AssignedTicket struct {
	TicketID string
	AgentID  string
	Category string
	Urgency  float64
	Eta      time.Duration

	State     AssignmentState
	StartedAt time.Time

	PausedAt           time.Time
	ElapsedBeforePause time.Duration

	CompletedAt time.Time
}

// Elapsed returns total work time spent on the assignment as of now.
func (a *AssignedTicket) Elapsed(now time.Time) time.Duration {
	if a.State == AssignmentActive {
		return a.ElapsedBeforePause + now.Sub(a.StartedAt)
	}
	return a.ElapsedBeforePause
}

// Remaining returns the ETA time left, never negative.
func (a *AssignedTicket) Remaining(now time.Time) time.Duration {
	if rem := a.Eta - a.Elapsed(now); rem > 0 {
		return rem
	}
	return 0
}

// Agent is the registry's internal agent record. Access is guarded by the
// registry lock; callers outside the package see AgentInfo snapshots.
type Agent struct {
	ID       string
	Name     string
	Skills   map[string]float64
	Capacity int
	Load     int
	Status   AgentStatus

	RegisteredAt time.Time
	seq          int

	assignments map[string]*AssignedTicket
}

// recomputeStatus derives available/busy from load. Offline is sticky.
func (a *Agent) recomputeStatus() {
	if a.Status == AgentOffline {
		return
	}
	if a.Load >= a.Capacity {
		a.Status = AgentBusy
	} else {
		a.Status = AgentAvailable
	}
}

// AgentInfo is the external snapshot of an agent.
type AgentInfo struct {
	ID           string             `json:"agent_id"`
	Name         string             `json:"name"`
	Skills       map[string]float64 `json:"skills"`
	Capacity     int                `json:"capacity"`
	Load         int                `json:"current_load"`
	Status       AgentStatus        `json:"status"`
	RegisteredAt time.Time          `json:"registered_at"`
	Assignments  []AssignmentInfo   `json:"assigned_tickets,omitempty"`
}

// AssignmentInfo is the external snapshot of one assignment.
type AssignmentInfo struct {
	TicketID         string          `json:"ticket_id"`
	Category         string          `json:"category"`
	Urgency          float64         `json:"urgency"`
	State            AssignmentState `json:"state"`
	EtaSeconds       float64         `json:"eta_seconds"`
	ElapsedSeconds   float64         `json:"elapsed_seconds"`
	RemainingSeconds float64         `json:"remaining_seconds"`
	StartedAt        time.Time       `json:"started_at"`
}
