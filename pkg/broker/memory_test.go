package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublishConsumeAck(t *testing.T) {
	b := NewMemoryBroker(8)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, testMessage("TKT-1")))
	msg, err := b.Consume(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "TKT-1", msg.TicketID)

	stats, _ := b.Stats(ctx)
	assert.Equal(t, int64(1), stats.Processing)

	require.NoError(t, b.Ack(ctx, "TKT-1"))
	assert.ErrorIs(t, b.Ack(ctx, "TKT-1"), ErrNotProcessing)

	stats, _ = b.Stats(ctx)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestMemoryConsumeTimeout(t *testing.T) {
	b := NewMemoryBroker(8)
	_, err := b.Consume(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemoryConsumeHonorsContext(t *testing.T) {
	b := NewMemoryBroker(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Consume(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryFailKeepsReason(t *testing.T) {
	b := NewMemoryBroker(8)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, testMessage("TKT-1")))
	_, err := b.Consume(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, b.Fail(ctx, "TKT-1", errors.New("no route")))

	dls := b.DeadLetters()
	require.Len(t, dls, 1)
	assert.Equal(t, "TKT-1", dls[0].Message.TicketID)
	assert.Equal(t, "no route", dls[0].Reason)
}
