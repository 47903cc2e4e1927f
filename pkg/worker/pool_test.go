package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabusboi/smart-support-routing/pkg/broker"
	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

func testWorkerConfig() *config.WorkerConfig {
	return &config.WorkerConfig{
		Count:                   2,
		ConsumeTimeout:          50 * time.Millisecond,
		GracefulShutdownTimeout: 2 * time.Second,
	}
}

func TestPoolProcessesPublishedTickets(t *testing.T) {
	e := newTestEngine(t)
	e.registry.Register("alice", nil, 10)

	b := broker.NewMemoryBroker(32)
	pool := NewPool(b, e.pipeline, testWorkerConfig())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(ctx, &models.TicketMessage{
			TicketID:    fmt.Sprintf("TKT-EXT-%d", i),
			Subject:     fmt.Sprintf("Question number %d", i),
			Description: fmt.Sprintf("completely distinct topic %d", i),
		}))
	}

	pool.Start()
	defer pool.Stop()

	require.Eventually(t, func() bool {
		return pool.Stats().Processed == 5
	}, 2*time.Second, 10*time.Millisecond)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Queued)
	assert.Zero(t, stats.Processing)
	assert.Equal(t, int64(5), stats.Completed)

	for i := 0; i < 5; i++ {
		got, err := e.store.Get(fmt.Sprintf("TKT-EXT-%d", i))
		require.NoError(t, err)
		assert.Equal(t, models.StatusAssigned, got.Status)
	}
}

func TestPoolDeadLettersBadMessages(t *testing.T) {
	e := newTestEngine(t)

	b := broker.NewMemoryBroker(32)
	pool := NewPool(b, e.pipeline, testWorkerConfig())

	// No subject: import fails and the message is dead-lettered.
	require.NoError(t, b.Publish(context.Background(), &models.TicketMessage{
		TicketID: "TKT-BAD",
	}))

	pool.Start()
	defer pool.Stop()

	require.Eventually(t, func() bool {
		return pool.Stats().Failed == 1
	}, 2*time.Second, 10*time.Millisecond)

	dls := b.DeadLetters()
	require.Len(t, dls, 1)
	assert.Equal(t, "TKT-BAD", dls[0].Message.TicketID)
}

func TestPoolStopIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	pool := NewPool(broker.NewMemoryBroker(8), e.pipeline, testWorkerConfig())

	pool.Start()
	assert.True(t, pool.Stats().Running)
	pool.Stop()
	pool.Stop()
	assert.False(t, pool.Stats().Running)
}
