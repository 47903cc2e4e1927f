package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabusboi/smart-support-routing/pkg/clock"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

func newTestRegistry() (*Registry, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewRegistry(clk), clk
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newTestRegistry()

	tests := []struct {
		name     string
		agent    string
		skills   map[string]float64
		capacity int
	}{
		{"empty name", "  ", nil, 3},
		{"zero capacity", "alice", nil, 0},
		{"skill over one", "alice", map[string]float64{models.CategoryBilling: 1.2}, 3},
		{"negative skill", "alice", map[string]float64{models.CategoryBilling: -0.1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(tt.agent, tt.skills, tt.capacity)
			assert.Error(t, err)
		})
	}
}

func TestRegisterAndGet(t *testing.T) {
	r, _ := newTestRegistry()

	info, err := r.Register("alice", map[string]float64{models.CategoryBilling: 0.9}, 3)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, AgentAvailable, info.Status)
	assert.Zero(t, info.Load)

	got, err := r.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)

	_, err = r.Get("AGENT-MISSING")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestStatusDerivedFromLoad(t *testing.T) {
	r, _ := newTestRegistry()
	info, err := r.Register("alice", nil, 2)
	require.NoError(t, err)

	require.NoError(t, r.Accept(info.ID, "TKT-1", models.CategoryGeneral, 0.5, time.Minute))
	got, _ := r.Get(info.ID)
	assert.Equal(t, AgentAvailable, got.Status)

	require.NoError(t, r.Accept(info.ID, "TKT-2", models.CategoryGeneral, 0.5, time.Minute))
	got, _ = r.Get(info.ID)
	assert.Equal(t, AgentBusy, got.Status)

	assert.ErrorIs(t, r.Accept(info.ID, "TKT-3", models.CategoryGeneral, 0.5, time.Minute), ErrAgentAtCapacity)

	require.NoError(t, r.Release(info.ID, "TKT-1", ActionCompleted))
	got, _ = r.Get(info.ID)
	assert.Equal(t, AgentAvailable, got.Status)
	assert.Equal(t, 1, got.Load)
}

func TestOfflineIsSticky(t *testing.T) {
	r, _ := newTestRegistry()
	info, err := r.Register("alice", nil, 2)
	require.NoError(t, err)

	require.NoError(t, r.UpdateStatus(info.ID, AgentOffline))
	require.NoError(t, r.Accept(info.ID, "TKT-1", models.CategoryGeneral, 0.5, time.Minute))
	require.NoError(t, r.Release(info.ID, "TKT-1", ActionCompleted))

	got, _ := r.Get(info.ID)
	assert.Equal(t, AgentOffline, got.Status, "load changes must not clear offline")

	require.NoError(t, r.UpdateStatus(info.ID, AgentAvailable))
	got, _ = r.Get(info.ID)
	assert.Equal(t, AgentAvailable, got.Status)
}

func TestPauseResumePreservesElapsed(t *testing.T) {
	r, clk := newTestRegistry()
	info, err := r.Register("alice", nil, 2)
	require.NoError(t, err)
	require.NoError(t, r.Accept(info.ID, "TKT-1", models.CategoryGeneral, 0.5, 60*time.Second))

	clk.Advance(20 * time.Second)
	require.NoError(t, r.Pause(info.ID, "TKT-1"))

	// Time spent paused does not count as work.
	clk.Advance(100 * time.Second)
	require.NoError(t, r.Resume(info.ID, "TKT-1"))

	clk.Advance(10 * time.Second)
	got, _ := r.Get(info.ID)
	require.Len(t, got.Assignments, 1)
	assert.InDelta(t, 30, got.Assignments[0].ElapsedSeconds, 1e-9)
	assert.InDelta(t, 30, got.Assignments[0].RemainingSeconds, 1e-9)
}

func TestPauseResumeStateGuards(t *testing.T) {
	r, _ := newTestRegistry()
	info, err := r.Register("alice", nil, 2)
	require.NoError(t, err)
	require.NoError(t, r.Accept(info.ID, "TKT-1", models.CategoryGeneral, 0.5, time.Minute))

	assert.ErrorIs(t, r.Resume(info.ID, "TKT-1"), ErrAssignmentNotFound)
	require.NoError(t, r.Pause(info.ID, "TKT-1"))
	assert.ErrorIs(t, r.Pause(info.ID, "TKT-1"), ErrAssignmentNotFound)
	require.NoError(t, r.Resume(info.ID, "TKT-1"))
}

func TestSwapInIsAtomic(t *testing.T) {
	r, _ := newTestRegistry()
	info, err := r.Register("alice", nil, 1)
	require.NoError(t, err)
	require.NoError(t, r.Accept(info.ID, "TKT-1", models.CategoryGeneral, 0.5, time.Minute))

	// Bad victim: nothing changes.
	err = r.SwapIn(info.ID, "TKT-MISSING", "TKT-2", models.CategoryGeneral, 0.9, time.Minute)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
	got, _ := r.Get(info.ID)
	assert.Equal(t, 1, got.Load)
	require.Len(t, got.Assignments, 1)
	assert.Equal(t, AssignmentActive, got.Assignments[0].State)

	// Good victim: paused victim and the new ticket coexist past capacity.
	require.NoError(t, r.SwapIn(info.ID, "TKT-1", "TKT-2", models.CategoryGeneral, 0.9, time.Minute))
	got, _ = r.Get(info.ID)
	assert.Equal(t, 2, got.Load)
	states := map[string]AssignmentState{}
	for _, a := range got.Assignments {
		states[a.TicketID] = a.State
	}
	assert.Equal(t, AssignmentPaused, states["TKT-1"])
	assert.Equal(t, AssignmentActive, states["TKT-2"])
}

func TestHistoryTrail(t *testing.T) {
	r, _ := newTestRegistry()
	info, err := r.Register("alice", nil, 2)
	require.NoError(t, err)

	require.NoError(t, r.Accept(info.ID, "TKT-1", models.CategoryGeneral, 0.5, time.Minute))
	require.NoError(t, r.Pause(info.ID, "TKT-1"))
	require.NoError(t, r.Resume(info.ID, "TKT-1"))
	require.NoError(t, r.Release(info.ID, "TKT-1", ActionCompleted))

	recs, err := r.AgentHistory(info.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(recs))
	for _, rec := range recs {
		actions = append(actions, rec.Action)
	}
	assert.Equal(t, []string{ActionAssigned, ActionPaused, ActionResumed, ActionCompleted}, actions)

	assert.Len(t, r.History(2), 2)

	_, err = r.AgentHistory("AGENT-MISSING")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestRegistryStats(t *testing.T) {
	r, _ := newTestRegistry()
	a, _ := r.Register("alice", nil, 2)
	b, _ := r.Register("bob", nil, 1)
	c, _ := r.Register("carol", nil, 1)

	require.NoError(t, r.Accept(a.ID, "TKT-1", models.CategoryGeneral, 0.5, time.Minute))
	require.NoError(t, r.Accept(b.ID, "TKT-2", models.CategoryGeneral, 0.5, time.Minute))
	require.NoError(t, r.Pause(b.ID, "TKT-2"))
	require.NoError(t, r.UpdateStatus(c.ID, AgentOffline))

	s := r.Stats()
	assert.Equal(t, 3, s.TotalAgents)
	assert.Equal(t, 1, s.Available)
	assert.Equal(t, 1, s.Busy)
	assert.Equal(t, 1, s.Offline)
	assert.Equal(t, 4, s.TotalCapacity)
	assert.Equal(t, 2, s.TotalLoad)
	assert.Equal(t, 1, s.ActiveAssignments)
	assert.Equal(t, 1, s.PausedAssignments)
}
