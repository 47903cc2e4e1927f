package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// Redis key layout.
const (
	keyQueue      = "tickets:queue"
	keyProcessing = "tickets:processing"
	keyCompleted  = "tickets:completed"
	keyDeadLetter = "tickets:dead_letter"
)

// deadLetter is the payload stored on the dead letter queue.
type deadLetter struct {
	TicketID  string `json:"ticket_id"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// RedisBroker is the production broker on Redis lists. Consume moves the raw
// payload from the queue to the processing list in one server-side step, so
// a worker crash leaves the message recoverable from tickets:processing.
type RedisBroker struct {
	client *redis.Client

	// inflight maps ticket id to the raw payload currently on the
	// processing list, needed to LREM it on ack or fail.
	mu       sync.Mutex
	inflight map[string]string
}

// NewRedisBroker connects to Redis and verifies the connection.
func NewRedisBroker(ctx context.Context, cfg *config.RedisConfig) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &RedisBroker{
		client:   client,
		inflight: make(map[string]string),
	}, nil
}

// Publish enqueues the message as JSON.
func (b *RedisBroker) Publish(ctx context.Context, msg *models.TicketMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding ticket %s: %w", msg.TicketID, err)
	}
	if err := b.client.LPush(ctx, keyQueue, payload).Err(); err != nil {
		return fmt.Errorf("publishing ticket %s: %w", msg.TicketID, err)
	}
	slog.Debug("Ticket published", "ticket_id", msg.TicketID)
	return nil
}

// Consume blocks up to timeout for the next message, atomically moving it to
// the processing list.
func (b *RedisBroker) Consume(ctx context.Context, timeout time.Duration) (*models.TicketMessage, error) {
	payload, err := b.client.BRPopLPush(ctx, keyQueue, keyProcessing, timeout).Result()
	if err == redis.Nil {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("consuming from %s: %w", keyQueue, err)
	}

	var msg models.TicketMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		// Poison payload: move it straight to the dead letter queue.
		b.removeProcessing(ctx, payload)
		b.pushDeadLetter(ctx, deadLetter{
			TicketID:  "unknown",
			Error:     fmt.Sprintf("malformed payload: %v", err),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return nil, fmt.Errorf("decoding queued payload: %w", err)
	}

	b.mu.Lock()
	b.inflight[msg.TicketID] = payload
	b.mu.Unlock()
	return &msg, nil
}

// Ack removes the message from processing and records the completion.
func (b *RedisBroker) Ack(ctx context.Context, ticketID string) error {
	payload, ok := b.takeInflight(ticketID)
	if !ok {
		return ErrNotProcessing
	}

	pipe := b.client.TxPipeline()
	pipe.LRem(ctx, keyProcessing, 1, payload)
	pipe.SAdd(ctx, keyCompleted, ticketID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("acking ticket %s: %w", ticketID, err)
	}
	return nil
}

// Fail removes the message from processing and dead-letters it.
func (b *RedisBroker) Fail(ctx context.Context, ticketID string, reason error) error {
	payload, ok := b.takeInflight(ticketID)
	if !ok {
		return ErrNotProcessing
	}

	dl, err := json.Marshal(deadLetter{
		TicketID:  ticketID,
		Error:     reason.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding dead letter for %s: %w", ticketID, err)
	}

	pipe := b.client.TxPipeline()
	pipe.LRem(ctx, keyProcessing, 1, payload)
	pipe.LPush(ctx, keyDeadLetter, dl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dead-lettering ticket %s: %w", ticketID, err)
	}
	slog.Warn("Ticket dead-lettered", "ticket_id", ticketID, "reason", reason)
	return nil
}

// Stats reads the broker counters.
func (b *RedisBroker) Stats(ctx context.Context) (Stats, error) {
	pipe := b.client.Pipeline()
	queued := pipe.LLen(ctx, keyQueue)
	processing := pipe.LLen(ctx, keyProcessing)
	completed := pipe.SCard(ctx, keyCompleted)
	dead := pipe.LLen(ctx, keyDeadLetter)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("reading broker stats: %w", err)
	}
	return Stats{
		Queued:     queued.Val(),
		Processing: processing.Val(),
		Completed:  completed.Val(),
		DeadLetter: dead.Val(),
	}, nil
}

// Close closes the Redis connection.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func (b *RedisBroker) takeInflight(ticketID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	payload, ok := b.inflight[ticketID]
	if ok {
		delete(b.inflight, ticketID)
	}
	return payload, ok
}

func (b *RedisBroker) removeProcessing(ctx context.Context, payload string) {
	if err := b.client.LRem(ctx, keyProcessing, 1, payload).Err(); err != nil {
		slog.Error("Failed to remove payload from processing list", "error", err)
	}
}

func (b *RedisBroker) pushDeadLetter(ctx context.Context, dl deadLetter) {
	payload, err := json.Marshal(dl)
	if err != nil {
		return
	}
	if err := b.client.LPush(ctx, keyDeadLetter, payload).Err(); err != nil {
		slog.Error("Failed to push dead letter", "error", err)
	}
}
