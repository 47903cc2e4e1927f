package routing

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/models"
	"github.com/nabusboi/smart-support-routing/pkg/pqueue"
)

// EventType labels a routing side effect.
type EventType string

// Routing side effects reported to the caller so ticket records can be kept
// in step with agent state.
const (
	EventAssigned      EventType = "assigned"
	EventCompleted     EventType = "completed"
	EventQueued        EventType = "queued"
	EventPreempted     EventType = "preempted"
	EventResumed       EventType = "resumed"
	EventAutoCompleted EventType = "auto_completed"
)

// Event is one routing side effect on one ticket.
type Event struct {
	Type     EventType
	TicketID string
	AgentID  string
	Eta      time.Duration
}

// RouteOutcome is the result of routing one ticket.
type RouteOutcome struct {
	Assigned          bool
	AgentID           string
	Eta               time.Duration
	PreemptedTicketID string
	Queued            bool

	// Events lists every side effect of the call, including effects on
	// tickets other than the one being routed.
	Events []Event
}

// PreemptionRecord is one entry of the preemption audit trail.
type PreemptionRecord struct {
	AgentID           string    `json:"agent_id"`
	PreemptedTicketID string    `json:"preempted_ticket_id"`
	ByTicketID        string    `json:"by_ticket_id"`
	PreemptedUrgency  float64   `json:"preempted_urgency"`
	ByUrgency         float64   `json:"by_urgency"`
	Timestamp         time.Time `json:"timestamp"`
}

// Coordinator routes tickets to agents. It scores available agents by skill
// match and load, preempts lower-urgency work for critical tickets, queues
// what cannot be placed, and auto-completes assignments whose ETA elapsed.
//
// All compound operations run under the registry lock, so scoring and the
// resulting assignment are atomic with respect to concurrent routing.
type Coordinator struct {
	cfg      *config.RoutingConfig
	registry *Registry
	queue    *pqueue.Queue

	pmu         sync.Mutex
	preemptions []PreemptionRecord
}

// NewCoordinator creates a coordinator over the given registry and queue.
func NewCoordinator(cfg *config.RoutingConfig, registry *Registry, queue *pqueue.Queue) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		registry: registry,
		queue:    queue,
	}
}

// ComputeEta maps urgency to an estimated service time, decreasing linearly
// from EtaBase at urgency 0 down to EtaMin at urgency 1.
func (c *Coordinator) ComputeEta(urgency float64) time.Duration {
	if urgency < 0 {
		urgency = 0
	}
	if urgency > 1 {
		urgency = 1
	}
	eta := c.cfg.EtaBase - time.Duration(float64(c.cfg.EtaBase-c.cfg.EtaMin)*urgency)
	if eta < c.cfg.EtaMin {
		eta = c.cfg.EtaMin
	}
	return eta
}

// score rates an agent for a ticket. Urgent tickets weight skill match more
// heavily; calm tickets favor load balancing.
func (c *Coordinator) score(agent *Agent, t *models.Ticket) float64 {
	skill := c.skillMatch(agent, t)
	loadFactor := 1 - float64(agent.Load)/float64(agent.Capacity)
	w := 0.7 + 0.3*t.Urgency
	return w*skill + (1-w)*loadFactor
}

// skillMatch is the mean proficiency over the ticket's required skills when
// given (absent skills count zero), otherwise the proficiency in the ticket's
// category with 0.5 for unlisted categories. Generalists never score below
// the generalist threshold.
func (c *Coordinator) skillMatch(agent *Agent, t *models.Ticket) float64 {
	var skill float64
	if len(t.RequiredSkills) > 0 {
		for _, s := range t.RequiredSkills {
			skill += agent.Skills[s]
		}
		skill /= float64(len(t.RequiredSkills))
	} else if v, ok := agent.Skills[t.Category]; ok {
		skill = v
	} else {
		skill = 0.5
	}
	if g := c.cfg.GeneralistThreshold; skill < g && isGeneralist(agent, g) {
		skill = g
	}
	return skill
}

// isGeneralist reports whether the agent holds at least g proficiency in
// every known category.
func isGeneralist(agent *Agent, g float64) bool {
	for _, cat := range models.Categories() {
		if agent.Skills[cat] < g {
			return false
		}
	}
	return true
}

// Route places a ticket: auto-complete sweep, then best-score assignment,
// then preemption for critical urgency, then the queue.
func (c *Coordinator) Route(t *models.Ticket) RouteOutcome {
	r := c.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	var out RouteOutcome
	out.Events = c.sweepLocked()

	if agent := c.bestAgentLocked(t); agent != nil {
		eta := c.ComputeEta(t.Urgency)
		r.acceptLocked(agent, t.ID, t.Category, t.Urgency, eta)
		out.Assigned = true
		out.AgentID = agent.ID
		out.Eta = eta
		out.Events = append(out.Events, Event{Type: EventAssigned, TicketID: t.ID, AgentID: agent.ID, Eta: eta})
		slog.Info("Ticket assigned", "ticket_id", t.ID, "agent_id", agent.ID, "urgency", t.Urgency)
		return out
	}

	if t.Urgency >= c.cfg.PreemptionThreshold {
		if agent, victim := c.victimLocked(t.Urgency); victim != nil {
			eta := c.ComputeEta(t.Urgency)
			r.swapInLocked(agent, victim.TicketID, t.ID, t.Category, t.Urgency, eta)
			c.recordPreemption(agent.ID, victim, t)

			out.Assigned = true
			out.AgentID = agent.ID
			out.Eta = eta
			out.PreemptedTicketID = victim.TicketID
			out.Events = append(out.Events,
				Event{Type: EventPreempted, TicketID: victim.TicketID, AgentID: agent.ID},
				Event{Type: EventAssigned, TicketID: t.ID, AgentID: agent.ID, Eta: eta})
			slog.Warn("Ticket preempted",
				"ticket_id", victim.TicketID,
				"by_ticket", t.ID,
				"agent_id", agent.ID,
				"victim_urgency", victim.Urgency,
				"new_urgency", t.Urgency)
			return out
		}
	}

	c.queue.Enqueue(t)
	out.Queued = true
	out.Events = append(out.Events, Event{Type: EventQueued, TicketID: t.ID})
	slog.Info("Ticket queued, no agent available", "ticket_id", t.ID, "urgency", t.Urgency)
	return out
}

// Complete finishes an assignment, resumes the agent's most urgent paused
// ticket if one exists, then drains the queue into any freed capacity.
func (c *Coordinator) Complete(agentID, ticketID string) ([]Event, error) {
	r := c.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return nil, ErrAgentNotFound
	}
	if err := r.releaseLocked(agent, ticketID, ActionCompleted); err != nil {
		return nil, err
	}
	events := []Event{{Type: EventCompleted, TicketID: ticketID, AgentID: agentID}}

	if resumed := c.resumeBestLocked(agent); resumed != "" {
		events = append(events, Event{Type: EventResumed, TicketID: resumed, AgentID: agentID})
	}
	events = append(events, c.drainQueueLocked()...)
	return events, nil
}

// Sweep auto-completes every active assignment whose ETA has fully elapsed.
func (c *Coordinator) Sweep() []Event {
	c.registry.mu.Lock()
	defer c.registry.mu.Unlock()
	events := c.sweepLocked()
	return append(events, c.drainQueueLocked()...)
}

// sweepLocked releases assignments past their ETA and resumes paused work.
func (c *Coordinator) sweepLocked() []Event {
	r := c.registry
	now := r.clock.Now()

	var events []Event
	for _, id := range r.order {
		agent := r.agents[id]
		var done []string
		for _, a := range agent.assignments {
			if a.State == AssignmentActive && a.Remaining(now) == 0 {
				done = append(done, a.TicketID)
			}
		}
		for _, ticketID := range done {
			r.releaseLocked(agent, ticketID, ActionAutoCompleted)
			events = append(events, Event{Type: EventAutoCompleted, TicketID: ticketID, AgentID: agent.ID})
			slog.Info("Assignment auto-completed", "ticket_id", ticketID, "agent_id", agent.ID)
			if resumed := c.resumeBestLocked(agent); resumed != "" {
				events = append(events, Event{Type: EventResumed, TicketID: resumed, AgentID: agent.ID})
			}
		}
	}
	return events
}

// drainQueueLocked assigns queued tickets into freed capacity, most urgent
// first, stopping at the first ticket no agent can take.
func (c *Coordinator) drainQueueLocked() []Event {
	var events []Event
	for {
		t := c.queue.Peek()
		if t == nil {
			break
		}
		agent := c.bestAgentLocked(t)
		if agent == nil {
			break
		}
		c.queue.Dequeue()
		eta := c.ComputeEta(t.Urgency)
		c.registry.acceptLocked(agent, t.ID, t.Category, t.Urgency, eta)
		events = append(events, Event{Type: EventAssigned, TicketID: t.ID, AgentID: agent.ID, Eta: eta})
		slog.Info("Queued ticket assigned", "ticket_id", t.ID, "agent_id", agent.ID)
	}
	return events
}

// bestAgentLocked returns the highest-scoring agent with free capacity, or
// nil. Ties go to the earlier-registered agent.
func (c *Coordinator) bestAgentLocked(t *models.Ticket) *Agent {
	var best *Agent
	var bestScore float64
	for _, id := range c.registry.order {
		agent := c.registry.agents[id]
		if agent.Status == AgentOffline || agent.Load >= agent.Capacity {
			continue
		}
		s := c.score(agent, t)
		if best == nil || s > bestScore {
			best = agent
			bestScore = s
		}
	}
	return best
}

// victimLocked finds the preemption victim: across all agents, the active
// assignment with the globally minimum urgency, strictly below the incoming
// urgency. Ties go to the assignment started earliest.
func (c *Coordinator) victimLocked(urgency float64) (*Agent, *AssignedTicket) {
	var victimAgent *Agent
	var victim *AssignedTicket
	for _, id := range c.registry.order {
		agent := c.registry.agents[id]
		if agent.Status == AgentOffline {
			continue
		}
		for _, a := range agent.assignments {
			if a.State != AssignmentActive || a.Urgency >= urgency {
				continue
			}
			if victim == nil ||
				a.Urgency < victim.Urgency ||
				(a.Urgency == victim.Urgency && a.StartedAt.Before(victim.StartedAt)) {
				victim = a
				victimAgent = agent
			}
		}
	}
	return victimAgent, victim
}

// resumeBestLocked resumes the agent's highest-urgency paused assignment,
// returning its ticket id or empty. Ties go to the earliest paused.
func (c *Coordinator) resumeBestLocked(agent *Agent) string {
	var best *AssignedTicket
	for _, a := range agent.assignments {
		if a.State != AssignmentPaused {
			continue
		}
		if best == nil ||
			a.Urgency > best.Urgency ||
			(a.Urgency == best.Urgency && a.PausedAt.Before(best.PausedAt)) {
			best = a
		}
	}
	if best == nil {
		return ""
	}
	c.registry.resumeLocked(agent, best.TicketID)
	return best.TicketID
}

func (c *Coordinator) recordPreemption(agentID string, victim *AssignedTicket, t *models.Ticket) {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	c.preemptions = append(c.preemptions, PreemptionRecord{
		AgentID:           agentID,
		PreemptedTicketID: victim.TicketID,
		ByTicketID:        t.ID,
		PreemptedUrgency:  victim.Urgency,
		ByUrgency:         t.Urgency,
		Timestamp:         c.registry.clock.Now(),
	})
	if len(c.preemptions) > historyCap {
		c.preemptions = c.preemptions[len(c.preemptions)-historyCap:]
	}
}

// Preemptions returns the preemption audit trail, newest last.
func (c *Coordinator) Preemptions() []PreemptionRecord {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	out := make([]PreemptionRecord, len(c.preemptions))
	copy(out, c.preemptions)
	return out
}
