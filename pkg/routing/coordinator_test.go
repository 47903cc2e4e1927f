package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabusboi/smart-support-routing/pkg/clock"
	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/models"
	"github.com/nabusboi/smart-support-routing/pkg/pqueue"
)

func testRoutingConfig() *config.RoutingConfig {
	return &config.RoutingConfig{
		HighUrgencyThreshold: 0.8,
		PreemptionThreshold:  0.85,
		GeneralistThreshold:  0.5,
		EtaBase:              60 * time.Second,
		EtaMin:               15 * time.Second,
	}
}

func newTestCoordinator() (*Coordinator, *Registry, *pqueue.Queue, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	r := NewRegistry(clk)
	q := pqueue.New()
	return NewCoordinator(testRoutingConfig(), r, q), r, q, clk
}

func ticket(id, category string, urgency float64) *models.Ticket {
	return &models.Ticket{ID: id, Category: category, Urgency: urgency}
}

func TestComputeEta(t *testing.T) {
	c, _, _, _ := newTestCoordinator()

	tests := []struct {
		urgency float64
		want    time.Duration
	}{
		{0, 60 * time.Second},
		{1, 15 * time.Second},
		{0.5, 37500 * time.Millisecond},
		{-1, 60 * time.Second},
		{2, 15 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.ComputeEta(tt.urgency), "urgency %v", tt.urgency)
	}
}

func TestRouteFavorsSkillMatch(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	billing, _ := r.Register("billing-pro", map[string]float64{models.CategoryBilling: 0.9}, 3)
	_, err := r.Register("tech-pro", map[string]float64{models.CategoryTechnical: 0.9}, 3)
	require.NoError(t, err)

	out := c.Route(ticket("TKT-1", models.CategoryBilling, 0.5))
	require.True(t, out.Assigned)
	assert.Equal(t, billing.ID, out.AgentID)
	assert.False(t, out.Queued)
	assert.Empty(t, out.PreemptedTicketID)
}

func TestRouteBalancesLoadAtEqualSkill(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	skills := map[string]float64{models.CategoryBilling: 0.8}
	alice, _ := r.Register("alice", skills, 2)
	bob, _ := r.Register("bob", skills, 2)
	require.NoError(t, r.Accept(alice.ID, "TKT-0", models.CategoryBilling, 0.5, time.Minute))

	out := c.Route(ticket("TKT-1", models.CategoryBilling, 0.5))
	require.True(t, out.Assigned)
	assert.Equal(t, bob.ID, out.AgentID)
}

func TestRouteUnlistedCategoryScoresDefault(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	r := NewRegistry(clk)
	cfg := testRoutingConfig()
	cfg.GeneralistThreshold = 0.7
	c := NewCoordinator(cfg, r, pqueue.New())

	// An agent with no skills listed scores the 0.5 default for any
	// category, not the generalist threshold.
	listed, _ := r.Register("listed", map[string]float64{models.CategoryBilling: 0.6}, 2)
	_, err := r.Register("unlisted", nil, 2)
	require.NoError(t, err)

	out := c.Route(ticket("TKT-1", models.CategoryBilling, 0.9))
	require.True(t, out.Assigned)
	assert.Equal(t, listed.ID, out.AgentID)
}

func TestRouteGeneralistOverride(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	r := NewRegistry(clk)
	cfg := testRoutingConfig()
	cfg.GeneralistThreshold = 0.7
	c := NewCoordinator(cfg, r, pqueue.New())

	allSkills := map[string]float64{}
	for _, cat := range models.Categories() {
		allSkills[cat] = 0.7
	}
	r.Register("specialist", map[string]float64{models.CategoryBilling: 0.6}, 2)
	generalist, _ := r.Register("generalist", allSkills, 2)

	// Neither agent lists the operator-extended category. The specialist
	// scores the 0.5 default; the generalist is raised to the threshold.
	out := c.Route(ticket("TKT-1", "Security", 0.9))
	require.True(t, out.Assigned)
	assert.Equal(t, generalist.ID, out.AgentID)
}

func TestRouteRequiredSkillsAverage(t *testing.T) {
	c, r, _, _ := newTestCoordinator()

	// Mean over required skills with absent skills counting zero: a strong
	// single skill loses to balanced coverage.
	r.Register("billing-only", map[string]float64{models.CategoryBilling: 0.9}, 2)
	balanced, _ := r.Register("balanced", map[string]float64{
		models.CategoryBilling: 0.5,
		models.CategoryLegal:   0.5,
	}, 2)

	tk := ticket("TKT-1", models.CategoryBilling, 0.5)
	tk.RequiredSkills = []string{models.CategoryBilling, models.CategoryLegal}

	out := c.Route(tk)
	require.True(t, out.Assigned)
	assert.Equal(t, balanced.ID, out.AgentID)
}

func TestRouteTieGoesToEarlierRegistered(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	skills := map[string]float64{models.CategoryGeneral: 0.7}
	alice, _ := r.Register("alice", skills, 2)
	_, err := r.Register("bob", skills, 2)
	require.NoError(t, err)

	out := c.Route(ticket("TKT-1", models.CategoryGeneral, 0.5))
	require.True(t, out.Assigned)
	assert.Equal(t, alice.ID, out.AgentID)
}

func TestRouteQueuesWhenNoCapacity(t *testing.T) {
	c, r, q, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)
	require.NoError(t, r.Accept(alice.ID, "TKT-0", models.CategoryGeneral, 0.5, time.Minute))

	out := c.Route(ticket("TKT-1", models.CategoryGeneral, 0.5))
	assert.False(t, out.Assigned)
	assert.True(t, out.Queued)
	assert.Equal(t, 1, q.Size())
}

func TestRouteSkipsOfflineAgents(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 2)
	require.NoError(t, r.UpdateStatus(alice.ID, AgentOffline))

	out := c.Route(ticket("TKT-1", models.CategoryGeneral, 0.5))
	assert.True(t, out.Queued)
}

func TestPreemptionPicksGlobalMinimumUrgency(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)
	bob, _ := r.Register("bob", nil, 1)
	require.NoError(t, r.Accept(alice.ID, "TKT-LOW", models.CategoryGeneral, 0.3, time.Hour))
	require.NoError(t, r.Accept(bob.ID, "TKT-MID", models.CategoryGeneral, 0.6, time.Hour))

	out := c.Route(ticket("TKT-HOT", models.CategoryGeneral, 0.9))
	require.True(t, out.Assigned)
	assert.Equal(t, alice.ID, out.AgentID)
	assert.Equal(t, "TKT-LOW", out.PreemptedTicketID)

	got, _ := r.Get(alice.ID)
	states := map[string]AssignmentState{}
	for _, a := range got.Assignments {
		states[a.TicketID] = a.State
	}
	assert.Equal(t, AssignmentPaused, states["TKT-LOW"])
	assert.Equal(t, AssignmentActive, states["TKT-HOT"])

	recs := c.Preemptions()
	require.Len(t, recs, 1)
	assert.Equal(t, "TKT-LOW", recs[0].PreemptedTicketID)
	assert.Equal(t, "TKT-HOT", recs[0].ByTicketID)
	assert.Equal(t, 0.3, recs[0].PreemptedUrgency)
}

func TestPreemptionTieBreaksOnEarliestStart(t *testing.T) {
	c, r, _, clk := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)
	bob, _ := r.Register("bob", nil, 1)
	require.NoError(t, r.Accept(alice.ID, "TKT-OLD", models.CategoryGeneral, 0.3, time.Hour))
	clk.Advance(10 * time.Second)
	require.NoError(t, r.Accept(bob.ID, "TKT-NEW", models.CategoryGeneral, 0.3, time.Hour))

	out := c.Route(ticket("TKT-HOT", models.CategoryGeneral, 0.9))
	require.True(t, out.Assigned)
	assert.Equal(t, "TKT-OLD", out.PreemptedTicketID)
}

func TestNoPreemptionWithoutStrictlyLowerUrgency(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)
	require.NoError(t, r.Accept(alice.ID, "TKT-0", models.CategoryGeneral, 0.9, time.Hour))

	out := c.Route(ticket("TKT-1", models.CategoryGeneral, 0.9))
	assert.True(t, out.Queued)
	assert.Empty(t, out.PreemptedTicketID)
}

func TestNoPreemptionBelowThreshold(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)
	require.NoError(t, r.Accept(alice.ID, "TKT-0", models.CategoryGeneral, 0.2, time.Hour))

	out := c.Route(ticket("TKT-1", models.CategoryGeneral, 0.84))
	assert.True(t, out.Queued)
}

func TestCompleteResumesPreemptedTicket(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)
	require.NoError(t, r.Accept(alice.ID, "TKT-LOW", models.CategoryGeneral, 0.3, time.Hour))
	out := c.Route(ticket("TKT-HOT", models.CategoryGeneral, 0.9))
	require.Equal(t, "TKT-LOW", out.PreemptedTicketID)

	events, err := c.Complete(alice.ID, "TKT-HOT")
	require.NoError(t, err)

	var resumed []string
	for _, e := range events {
		if e.Type == EventResumed {
			resumed = append(resumed, e.TicketID)
		}
	}
	assert.Equal(t, []string{"TKT-LOW"}, resumed)

	got, _ := r.Get(alice.ID)
	require.Len(t, got.Assignments, 1)
	assert.Equal(t, AssignmentActive, got.Assignments[0].State)
}

func TestCompleteResumesHighestUrgencyPaused(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 3)
	require.NoError(t, r.Accept(alice.ID, "TKT-1", models.CategoryGeneral, 0.3, time.Hour))
	require.NoError(t, r.Accept(alice.ID, "TKT-2", models.CategoryGeneral, 0.6, time.Hour))
	require.NoError(t, r.Accept(alice.ID, "TKT-3", models.CategoryGeneral, 0.9, time.Hour))
	require.NoError(t, r.Pause(alice.ID, "TKT-1"))
	require.NoError(t, r.Pause(alice.ID, "TKT-2"))

	events, err := c.Complete(alice.ID, "TKT-3")
	require.NoError(t, err)

	var resumed string
	for _, e := range events {
		if e.Type == EventResumed {
			resumed = e.TicketID
		}
	}
	assert.Equal(t, "TKT-2", resumed)
}

func TestCompleteDrainsQueue(t *testing.T) {
	c, r, q, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)
	require.NoError(t, r.Accept(alice.ID, "TKT-0", models.CategoryGeneral, 0.5, time.Hour))
	c.Route(ticket("TKT-1", models.CategoryGeneral, 0.4))
	require.Equal(t, 1, q.Size())

	events, err := c.Complete(alice.ID, "TKT-0")
	require.NoError(t, err)

	var assigned []string
	for _, e := range events {
		if e.Type == EventAssigned {
			assigned = append(assigned, e.TicketID)
		}
	}
	assert.Equal(t, []string{"TKT-1"}, assigned)
	assert.Zero(t, q.Size())
}

func TestRouteSweepsExpiredAssignments(t *testing.T) {
	c, r, _, clk := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)

	out := c.Route(ticket("TKT-FAST", models.CategoryGeneral, 1.0))
	require.True(t, out.Assigned)
	assert.Equal(t, 15*time.Second, out.Eta)

	clk.Advance(15 * time.Second)
	out = c.Route(ticket("TKT-NEXT", models.CategoryGeneral, 0.5))
	require.True(t, out.Assigned)
	assert.Equal(t, alice.ID, out.AgentID)

	var autoCompleted []string
	for _, e := range out.Events {
		if e.Type == EventAutoCompleted {
			autoCompleted = append(autoCompleted, e.TicketID)
		}
	}
	assert.Equal(t, []string{"TKT-FAST"}, autoCompleted)
}

func TestSweepDrainsQueueIntoFreedCapacity(t *testing.T) {
	c, r, q, clk := newTestCoordinator()
	_, err := r.Register("alice", nil, 1)
	require.NoError(t, err)

	c.Route(ticket("TKT-0", models.CategoryGeneral, 1.0))
	c.Route(ticket("TKT-1", models.CategoryGeneral, 0.2))
	require.Equal(t, 1, q.Size())

	clk.Advance(15 * time.Second)
	events := c.Sweep()

	types := map[EventType][]string{}
	for _, e := range events {
		types[e.Type] = append(types[e.Type], e.TicketID)
	}
	assert.Equal(t, []string{"TKT-0"}, types[EventAutoCompleted])
	assert.Equal(t, []string{"TKT-1"}, types[EventAssigned])
	assert.Zero(t, q.Size())
}

func TestCompleteUnknownAgentOrTicket(t *testing.T) {
	c, r, _, _ := newTestCoordinator()
	alice, _ := r.Register("alice", nil, 1)

	_, err := c.Complete("AGENT-MISSING", "TKT-1")
	assert.ErrorIs(t, err, ErrAgentNotFound)

	_, err = c.Complete(alice.ID, "TKT-MISSING")
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}
