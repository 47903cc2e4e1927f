// Package broker decouples ticket ingestion from the routing pipeline. The
// contract is a durable work queue with explicit acknowledgement: consumed
// messages stay in a processing set until acked or failed to the dead letter
// queue, so a crashed worker never silently drops a ticket.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// Broker errors.
var (
	// ErrEmpty is returned by Consume when no message arrived within the
	// timeout. It is the normal idle-poll outcome, not a failure.
	ErrEmpty = errors.New("no message available")

	// ErrNotProcessing is returned by Ack and Fail when the ticket is not in
	// the processing set.
	ErrNotProcessing = errors.New("ticket not in processing set")
)

// Stats is a broker counters snapshot.
type Stats struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	DeadLetter int64 `json:"dead_letter"`
}

// Broker is the ticket transport between producers and the worker pool.
type Broker interface {
	// Publish enqueues a ticket message.
	Publish(ctx context.Context, msg *models.TicketMessage) error

	// Consume blocks up to timeout for the next message and moves it to the
	// processing set. Returns ErrEmpty on timeout.
	Consume(ctx context.Context, timeout time.Duration) (*models.TicketMessage, error)

	// Ack marks a consumed message fully processed.
	Ack(ctx context.Context, ticketID string) error

	// Fail moves a consumed message to the dead letter queue with the reason.
	Fail(ctx context.Context, ticketID string, reason error) error

	// Stats returns the broker counters.
	Stats(ctx context.Context) (Stats, error)

	// Close releases broker resources.
	Close() error
}
