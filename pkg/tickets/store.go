// Package tickets is the in-memory system of record for ticket lifecycle
// state. Agent ownership lives in the routing registry; this store mirrors
// the outcome onto the ticket records the API serves.
package tickets

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabusboi/smart-support-routing/pkg/clock"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// Store errors.
var (
	ErrNotFound = errors.New("ticket not found")
	ErrTerminal = errors.New("ticket is in a terminal state")
)

// Store holds all tickets by id.
type Store struct {
	clock clock.Clock

	mu      sync.RWMutex
	tickets map[string]*models.Ticket
	order   []string
}

// NewStore creates an empty store.
func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.System()
	}
	return &Store{
		clock:   clk,
		tickets: make(map[string]*models.Ticket),
	}
}

// Create registers a new pending ticket and returns a snapshot of it. Any
// requiredSkills are carried through to routing.
func (s *Store) Create(subject, description, customerID string, requiredSkills ...string) (models.Ticket, error) {
	if strings.TrimSpace(subject) == "" {
		return models.Ticket{}, fmt.Errorf("subject is required")
	}

	t := &models.Ticket{
		ID:             "TKT-" + strings.ToUpper(uuid.NewString()[:8]),
		Subject:        subject,
		Description:    description,
		CustomerID:     customerID,
		Status:         models.StatusPending,
		CreatedAt:      s.clock.Now(),
		RequiredSkills: requiredSkills,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = t
	s.order = append(s.order, t.ID)
	return *t, nil
}

// CreateWithID registers a pending ticket under a producer-supplied id, or a
// generated one when id is empty. Fails if the id is already taken.
func (s *Store) CreateWithID(id, subject, description, customerID string) (models.Ticket, error) {
	if strings.TrimSpace(subject) == "" {
		return models.Ticket{}, fmt.Errorf("subject is required")
	}
	if id == "" {
		return s.Create(subject, description, customerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; ok {
		return models.Ticket{}, fmt.Errorf("ticket %s already exists", id)
	}
	t := &models.Ticket{
		ID:          id,
		Subject:     subject,
		Description: description,
		CustomerID:  customerID,
		Status:      models.StatusPending,
		CreatedAt:   s.clock.Now(),
	}
	s.tickets[id] = t
	s.order = append(s.order, id)
	return *t, nil
}

// Get returns a snapshot of the ticket with the given id.
func (s *Store) Get(id string) (models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, ErrNotFound
	}
	return *t, nil
}

// List returns snapshots of all tickets, optionally filtered by status,
// sorted by urgency descending with creation time breaking ties.
func (s *Store) List(status models.TicketStatus) []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Ticket, 0, len(s.order))
	for _, id := range s.order {
		t := s.tickets[id]
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, *t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Urgency != out[j].Urgency {
			return out[i].Urgency > out[j].Urgency
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// update mutates a ticket under the lock.
func (s *Store) update(id string, fn func(*models.Ticket) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return ErrNotFound
	}
	return fn(t)
}

// SetClassification records the classifier outcome.
func (s *Store) SetClassification(id, category string, urgency float64) error {
	return s.update(id, func(t *models.Ticket) error {
		t.Category = category
		t.Urgency = urgency
		return nil
	})
}

// SetMasterIncident links the ticket to a Master Incident.
func (s *Store) SetMasterIncident(id, masterID string) error {
	return s.update(id, func(t *models.Ticket) error {
		t.MasterIncidentID = masterID
		return nil
	})
}

// SetUrgency overrides the urgency of a non-terminal ticket.
func (s *Store) SetUrgency(id string, urgency float64) error {
	return s.update(id, func(t *models.Ticket) error {
		if t.Status.Terminal() {
			return ErrTerminal
		}
		t.Urgency = urgency
		return nil
	})
}

// MarkAssigned moves the ticket to an agent.
func (s *Store) MarkAssigned(id, agentID string, eta time.Duration) error {
	return s.update(id, func(t *models.Ticket) error {
		t.Status = models.StatusAssigned
		t.AgentID = agentID
		t.EtaSeconds = eta.Seconds()
		return nil
	})
}

// MarkQueued parks the ticket in the priority queue.
func (s *Store) MarkQueued(id string) error {
	return s.update(id, func(t *models.Ticket) error {
		t.Status = models.StatusQueued
		t.AgentID = ""
		return nil
	})
}

// MarkPaused suspends an assigned ticket, keeping its agent.
func (s *Store) MarkPaused(id string) error {
	return s.update(id, func(t *models.Ticket) error {
		t.Status = models.StatusPaused
		return nil
	})
}

// MarkResumed reactivates a paused ticket.
func (s *Store) MarkResumed(id string) error {
	return s.update(id, func(t *models.Ticket) error {
		t.Status = models.StatusAssigned
		return nil
	})
}

// MarkCompleted finishes the ticket.
func (s *Store) MarkCompleted(id string) error {
	return s.update(id, func(t *models.Ticket) error {
		t.Status = models.StatusCompleted
		return nil
	})
}

// MarkFailed parks the ticket as failed after a pipeline error.
func (s *Store) MarkFailed(id string) error {
	return s.update(id, func(t *models.Ticket) error {
		t.Status = models.StatusFailed
		return nil
	})
}

// Cancel aborts a ticket that has not reached an agent. Assigned and paused
// tickets must be completed through their agent instead.
func (s *Store) Cancel(id string) error {
	return s.update(id, func(t *models.Ticket) error {
		if t.Status.Terminal() {
			return ErrTerminal
		}
		if t.Status == models.StatusAssigned || t.Status == models.StatusPaused {
			return fmt.Errorf("ticket %s is held by agent %s", t.ID, t.AgentID)
		}
		t.Status = models.StatusCancelled
		return nil
	})
}

// Stats counts tickets per status.
func (s *Store) Stats() map[models.TicketStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.TicketStatus]int)
	for _, t := range s.tickets {
		out[t.Status]++
	}
	return out
}
