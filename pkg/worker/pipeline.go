// Package worker runs the ticket processing pipeline: classify, deduplicate,
// route, notify. The HTTP submit path calls the pipeline synchronously; the
// worker pool feeds it from the broker.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nabusboi/smart-support-routing/pkg/classifier"
	"github.com/nabusboi/smart-support-routing/pkg/dedup"
	"github.com/nabusboi/smart-support-routing/pkg/models"
	"github.com/nabusboi/smart-support-routing/pkg/notify"
	"github.com/nabusboi/smart-support-routing/pkg/routing"
	"github.com/nabusboi/smart-support-routing/pkg/tickets"
)

// Outcome summarizes one pipeline run for the submit response.
type Outcome struct {
	TicketID         string
	Category         string
	Urgency          float64
	Model            string
	IsMasterIncident bool
	MasterIncidentID string
	Assigned         bool
	AgentID          string
	EtaSeconds       float64
	PreemptedTicket  string
	Queued           bool
	NotificationSent bool
}

// Pipeline is the classify-dedup-route-notify chain over the shared engine
// components.
type Pipeline struct {
	store       *tickets.Store
	classifier  *classifier.Failover
	dedup       *dedup.Deduplicator
	coordinator *routing.Coordinator
	dispatcher  *notify.Dispatcher
}

// NewPipeline wires the pipeline stages.
func NewPipeline(
	store *tickets.Store,
	cls *classifier.Failover,
	dd *dedup.Deduplicator,
	coord *routing.Coordinator,
	dispatcher *notify.Dispatcher,
) *Pipeline {
	return &Pipeline{
		store:       store,
		classifier:  cls,
		dedup:       dd,
		coordinator: coord,
		dispatcher:  dispatcher,
	}
}

// Process runs the full pipeline for a ticket already present in the store.
//
// Tickets folded into a Master Incident are linked and left unrouted; the
// incident stands in for them. Notification failures are logged, not
// returned, so alerting trouble never fails ticket intake.
func (p *Pipeline) Process(ctx context.Context, ticketID string) (Outcome, error) {
	t, err := p.store.Get(ticketID)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{TicketID: t.ID}

	cls, err := p.classifier.Classify(t.Subject, t.Description)
	if err != nil {
		return out, fmt.Errorf("classifying ticket %s: %w", t.ID, err)
	}
	// A producer-supplied urgency wins over the classifier score.
	if t.Urgency > 0 {
		cls.Urgency = t.Urgency
	}
	if err := p.store.SetClassification(t.ID, cls.Category, cls.Urgency); err != nil {
		return out, err
	}
	out.Category = cls.Category
	out.Urgency = cls.Urgency
	out.Model = cls.Model
	t.Category = cls.Category
	t.Urgency = cls.Urgency

	if res := p.dedup.AddTicket(t.ID, t.Subject, t.Description); res.IsDuplicate {
		out.IsMasterIncident = true
		out.MasterIncidentID = res.MasterID
		if err := p.store.SetMasterIncident(t.ID, res.MasterID); err != nil {
			return out, err
		}
		slog.Info("Ticket folded into master incident",
			"ticket_id", t.ID, "master_id", res.MasterID)
		return out, nil
	}

	route := p.coordinator.Route(&t)
	p.ApplyEvents(route.Events)
	out.Assigned = route.Assigned
	out.AgentID = route.AgentID
	out.EtaSeconds = route.Eta.Seconds()
	out.PreemptedTicket = route.PreemptedTicketID
	out.Queued = route.Queued

	if p.dispatcher != nil {
		sent, err := p.dispatcher.Dispatch(ctx, &t)
		if err != nil {
			slog.Error("Notification dispatch failed", "ticket_id", t.ID, "error", err)
		}
		out.NotificationSent = sent
	}
	return out, nil
}

// ApplyEvents mirrors routing side effects onto the ticket store.
func (p *Pipeline) ApplyEvents(events []routing.Event) {
	for _, e := range events {
		var err error
		switch e.Type {
		case routing.EventAssigned:
			err = p.store.MarkAssigned(e.TicketID, e.AgentID, e.Eta)
		case routing.EventQueued:
			err = p.store.MarkQueued(e.TicketID)
		case routing.EventPreempted:
			err = p.store.MarkPaused(e.TicketID)
		case routing.EventResumed:
			err = p.store.MarkResumed(e.TicketID)
		case routing.EventCompleted, routing.EventAutoCompleted:
			err = p.store.MarkCompleted(e.TicketID)
		}
		if err != nil && err != tickets.ErrNotFound {
			slog.Error("Failed to apply routing event",
				"event", string(e.Type), "ticket_id", e.TicketID, "error", err)
		}
	}
}

// Sweep auto-completes overdue assignments and syncs the ticket store.
func (p *Pipeline) Sweep() {
	p.ApplyEvents(p.coordinator.Sweep())
}

// Import records a broker message as a ticket if the store does not already
// know it, returning the store ticket id.
func (p *Pipeline) Import(msg *models.TicketMessage) (string, error) {
	if msg.TicketID != "" {
		if _, err := p.store.Get(msg.TicketID); err == nil {
			return msg.TicketID, nil
		}
	}
	t, err := p.store.CreateWithID(msg.TicketID, msg.Subject, msg.Description, msg.CustomerID())
	if err != nil {
		return "", err
	}
	if msg.Urgency > 0 {
		p.store.SetClassification(t.ID, msg.Category, msg.Urgency)
	}
	return t.ID, nil
}
