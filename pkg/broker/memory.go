package broker

import (
	"context"
	"sync"
	"time"

	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// DeadLetterEntry is one failed message kept by the memory broker.
type DeadLetterEntry struct {
	Message *models.TicketMessage
	Reason  string
}

// MemoryBroker is a process-local Broker used in tests and single-node
// deployments without Redis. Semantics mirror RedisBroker: consumed messages
// sit in a processing set until acked or failed.
type MemoryBroker struct {
	queue chan *models.TicketMessage

	mu         sync.Mutex
	processing map[string]*models.TicketMessage
	completed  int64
	deadLetter []DeadLetterEntry
}

// NewMemoryBroker creates a memory broker with the given queue capacity.
func NewMemoryBroker(capacity int) *MemoryBroker {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryBroker{
		queue:      make(chan *models.TicketMessage, capacity),
		processing: make(map[string]*models.TicketMessage),
	}
}

// Publish enqueues the message, blocking if the queue is full.
func (b *MemoryBroker) Publish(ctx context.Context, msg *models.TicketMessage) error {
	select {
	case b.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume waits up to timeout for the next message.
func (b *MemoryBroker) Consume(ctx context.Context, timeout time.Duration) (*models.TicketMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-b.queue:
		b.mu.Lock()
		b.processing[msg.TicketID] = msg
		b.mu.Unlock()
		return msg, nil
	case <-timer.C:
		return nil, ErrEmpty
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack marks the message done.
func (b *MemoryBroker) Ack(ctx context.Context, ticketID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.processing[ticketID]; !ok {
		return ErrNotProcessing
	}
	delete(b.processing, ticketID)
	b.completed++
	return nil
}

// Fail dead-letters the message.
func (b *MemoryBroker) Fail(ctx context.Context, ticketID string, reason error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg, ok := b.processing[ticketID]
	if !ok {
		return ErrNotProcessing
	}
	delete(b.processing, ticketID)
	b.deadLetter = append(b.deadLetter, DeadLetterEntry{Message: msg, Reason: reason.Error()})
	return nil
}

// Stats returns the broker counters.
func (b *MemoryBroker) Stats(ctx context.Context) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Queued:     int64(len(b.queue)),
		Processing: int64(len(b.processing)),
		Completed:  b.completed,
		DeadLetter: int64(len(b.deadLetter)),
	}, nil
}

// DeadLetters returns a snapshot of the dead letter queue.
func (b *MemoryBroker) DeadLetters() []DeadLetterEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DeadLetterEntry, len(b.deadLetter))
	copy(out, b.deadLetter)
	return out
}

// Close is a no-op for the memory broker.
func (b *MemoryBroker) Close() error {
	return nil
}
