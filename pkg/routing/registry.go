package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabusboi/smart-support-routing/pkg/clock"
)

// Registry errors.
var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAgentAtCapacity    = errors.New("agent at capacity")
)

// AssignmentRecord is one entry of the assignment audit trail.
type AssignmentRecord struct {
	AgentID   string    `json:"agent_id"`
	TicketID  string    `json:"ticket_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Audit trail actions.
const (
	ActionAssigned      = "assigned"
	ActionPaused        = "paused"
	ActionResumed       = "resumed"
	ActionCompleted     = "completed"
	ActionAutoCompleted = "auto_completed"
	ActionPreempted     = "preempted"
)

// historyCap bounds the in-memory audit trail.
const historyCap = 1000

// Registry tracks agents and their assignments. The single lock also covers
// the coordinator's compound operations, which keeps score-then-assign and
// preempt-and-accept atomic.
type Registry struct {
	clock clock.Clock

	mu      sync.Mutex
	agents  map[string]*Agent
	order   []string
	nextSeq int
	history []AssignmentRecord
}

// NewRegistry creates an empty registry.
func NewRegistry(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.System()
	}
	return &Registry{
		clock:  clk,
		agents: make(map[string]*Agent),
	}
}

// Register adds a new agent. Skill proficiencies must be in [0,1] and
// capacity positive.
func (r *Registry) Register(name string, skills map[string]float64, capacity int) (AgentInfo, error) {
	if strings.TrimSpace(name) == "" {
		return AgentInfo{}, fmt.Errorf("agent name is required")
	}
	if capacity < 1 {
		return AgentInfo{}, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	for skill, level := range skills {
		if level < 0 || level > 1 {
			return AgentInfo{}, fmt.Errorf("skill %q proficiency must be in [0,1], got %v", skill, level)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	agent := &Agent{
		ID:           "AGENT-" + strings.ToUpper(uuid.NewString()[:8]),
		Name:         name,
		Skills:       copySkills(skills),
		Capacity:     capacity,
		Status:       AgentAvailable,
		RegisteredAt: r.clock.Now(),
		seq:          r.nextSeq,
		assignments:  make(map[string]*AssignedTicket),
	}
	r.nextSeq++
	r.agents[agent.ID] = agent
	r.order = append(r.order, agent.ID)

	slog.Info("Agent registered",
		"agent_id", agent.ID,
		"name", name,
		"capacity", capacity,
		"skills", len(skills))

	return r.snapshotLocked(agent), nil
}

// UpdateStatus sets an agent's status. Clearing offline re-derives
// available/busy from the current load.
func (r *Registry) UpdateStatus(agentID string, status AgentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown agent status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	agent.Status = status
	if status != AgentOffline {
		agent.recomputeStatus()
	}
	slog.Info("Agent status updated", "agent_id", agentID, "status", agent.Status)
	return nil
}

// Get returns a snapshot of one agent.
func (r *Registry) Get(agentID string) (AgentInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return AgentInfo{}, ErrAgentNotFound
	}
	return r.snapshotLocked(agent), nil
}

// List returns all agents in registration order.
func (r *Registry) List() []AgentInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AgentInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.snapshotLocked(r.agents[id]))
	}
	return out
}

// Accept assigns a ticket to the agent, enforcing capacity.
func (r *Registry) Accept(agentID, ticketID, category string, urgency float64, eta time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	if agent.Load >= agent.Capacity {
		return ErrAgentAtCapacity
	}
	r.acceptLocked(agent, ticketID, category, urgency, eta)
	return nil
}

// acceptLocked adds an active assignment without a capacity check. SwapIn
// relies on that to hold the paused victim and the new ticket at once.
func (r *Registry) acceptLocked(agent *Agent, ticketID, category string, urgency float64, eta time.Duration) {
	now := r.clock.Now()
	agent.assignments[ticketID] = &AssignedTicket{
		TicketID:  ticketID,
		AgentID:   agent.ID,
		Category:  category,
		Urgency:   urgency,
		Eta:       eta,
		State:     AssignmentActive,
		StartedAt: now,
	}
	agent.Load++
	agent.recomputeStatus()
	r.recordLocked(agent.ID, ticketID, ActionAssigned)
}

// Pause suspends an active assignment, banking its elapsed work time.
func (r *Registry) Pause(agentID, ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	return r.pauseLocked(agent, ticketID)
}

func (r *Registry) pauseLocked(agent *Agent, ticketID string) error {
	a, ok := agent.assignments[ticketID]
	if !ok || a.State != AssignmentActive {
		return ErrAssignmentNotFound
	}
	now := r.clock.Now()
	a.ElapsedBeforePause += now.Sub(a.StartedAt)
	a.State = AssignmentPaused
	a.PausedAt = now
	r.recordLocked(agent.ID, ticketID, ActionPaused)
	return nil
}

// Resume reactivates a paused assignment. The ETA clock restarts from the
// banked elapsed time, not from zero.
func (r *Registry) Resume(agentID, ticketID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	return r.resumeLocked(agent, ticketID)
}

func (r *Registry) resumeLocked(agent *Agent, ticketID string) error {
	a, ok := agent.assignments[ticketID]
	if !ok || a.State != AssignmentPaused {
		return ErrAssignmentNotFound
	}
	a.State = AssignmentActive
	a.StartedAt = r.clock.Now()
	a.PausedAt = time.Time{}
	r.recordLocked(agent.ID, ticketID, ActionResumed)
	return nil
}

// Release finishes a non-completed assignment and frees the agent slot.
// action distinguishes explicit completion from the ETA sweep.
func (r *Registry) Release(agentID, ticketID, action string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	return r.releaseLocked(agent, ticketID, action)
}

func (r *Registry) releaseLocked(agent *Agent, ticketID, action string) error {
	a, ok := agent.assignments[ticketID]
	if !ok || a.State == AssignmentCompleted {
		return ErrAssignmentNotFound
	}
	a.State = AssignmentCompleted
	a.CompletedAt = r.clock.Now()
	delete(agent.assignments, ticketID)
	agent.Load--
	agent.recomputeStatus()
	r.recordLocked(agent.ID, ticketID, action)
	return nil
}

// SwapIn atomically pauses the victim assignment and accepts the new ticket
// on the same agent. Either both happen or neither does.
func (r *Registry) SwapIn(agentID, victimTicketID, ticketID, category string, urgency float64, eta time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	return r.swapInLocked(agent, victimTicketID, ticketID, category, urgency, eta)
}

func (r *Registry) swapInLocked(agent *Agent, victimTicketID, ticketID, category string, urgency float64, eta time.Duration) error {
	if err := r.pauseLocked(agent, victimTicketID); err != nil {
		return err
	}
	r.recordLocked(agent.ID, victimTicketID, ActionPreempted)
	r.acceptLocked(agent, ticketID, category, urgency, eta)
	return nil
}

// History returns the most recent audit records, newest last.
func (r *Registry) History(limit int) []AssignmentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.history) {
		limit = len(r.history)
	}
	out := make([]AssignmentRecord, limit)
	copy(out, r.history[len(r.history)-limit:])
	return out
}

// AgentHistory returns the audit records of one agent, newest last.
func (r *Registry) AgentHistory(agentID string) ([]AssignmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agentID]; !ok {
		return nil, ErrAgentNotFound
	}
	var out []AssignmentRecord
	for _, rec := range r.history {
		if rec.AgentID == agentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// RegistryStats summarizes the registry for the stats endpoint.
type RegistryStats struct {
	TotalAgents       int `json:"total_agents"`
	Available         int `json:"available"`
	Busy              int `json:"busy"`
	Offline           int `json:"offline"`
	TotalCapacity     int `json:"total_capacity"`
	TotalLoad         int `json:"total_load"`
	ActiveAssignments int `json:"active_assignments"`
	PausedAssignments int `json:"paused_assignments"`
}

// Stats returns aggregate counters across all agents.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s RegistryStats
	s.TotalAgents = len(r.agents)
	for _, agent := range r.agents {
		switch agent.Status {
		case AgentAvailable:
			s.Available++
		case AgentBusy:
			s.Busy++
		case AgentOffline:
			s.Offline++
		}
		s.TotalCapacity += agent.Capacity
		s.TotalLoad += agent.Load
		for _, a := range agent.assignments {
			switch a.State {
			case AssignmentActive:
				s.ActiveAssignments++
			case AssignmentPaused:
				s.PausedAssignments++
			}
		}
	}
	return s
}

func (r *Registry) recordLocked(agentID, ticketID, action string) {
	r.history = append(r.history, AssignmentRecord{
		AgentID:   agentID,
		TicketID:  ticketID,
		Action:    action,
		Timestamp: r.clock.Now(),
	})
	if len(r.history) > historyCap {
		r.history = r.history[len(r.history)-historyCap:]
	}
}

func (r *Registry) snapshotLocked(agent *Agent) AgentInfo {
	now := r.clock.Now()
	info := AgentInfo{
		ID:           agent.ID,
		Name:         agent.Name,
		Skills:       copySkills(agent.Skills),
		Capacity:     agent.Capacity,
		Load:         agent.Load,
		Status:       agent.Status,
		RegisteredAt: agent.RegisteredAt,
	}
	for _, a := range agent.assignments {
		info.Assignments = append(info.Assignments, AssignmentInfo{
			TicketID:         a.TicketID,
			Category:         a.Category,
			Urgency:          a.Urgency,
			State:            a.State,
			EtaSeconds:       a.Eta.Seconds(),
			ElapsedSeconds:   a.Elapsed(now).Seconds(),
			RemainingSeconds: a.Remaining(now).Seconds(),
			StartedAt:        a.StartedAt,
		})
	}
	return info
}

func copySkills(skills map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(skills))
	for k, v := range skills {
		out[k] = v
	}
	return out
}
