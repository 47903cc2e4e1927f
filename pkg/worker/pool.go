package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabusboi/smart-support-routing/pkg/broker"
	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// sweepInterval is how often the pool runs the ETA auto-complete sweep.
const sweepInterval = time.Second

// Pool consumes the broker with a fixed set of workers and keeps the ETA
// sweep running. Stop drains in-flight work within the configured grace
// period.
type Pool struct {
	broker   broker.Broker
	pipeline *Pipeline
	cfg      *config.WorkerConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	running   atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a worker pool.
func NewPool(b broker.Broker, pipeline *Pipeline, cfg *config.WorkerConfig) *Pool {
	return &Pool{
		broker:   b,
		pipeline: pipeline,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the workers and the sweeper.
func (p *Pool) Start() {
	p.running.Store(true)
	for i := 0; i < p.cfg.Count; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	p.wg.Add(1)
	go p.runSweeper()
	slog.Info("Worker pool started", "workers", p.cfg.Count)
}

// Stop shuts the pool down, waiting up to the graceful shutdown timeout for
// in-flight tickets.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("Worker pool stopped")
	case <-time.After(p.cfg.GracefulShutdownTimeout):
		slog.Warn("Worker pool stop timed out", "timeout", p.cfg.GracefulShutdownTimeout)
	}
	p.running.Store(false)
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	log := slog.With("worker_id", id)
	log.Info("Worker started")

	for {
		select {
		case <-p.stopCh:
			log.Info("Worker stopping")
			return
		default:
		}

		msg, err := p.broker.Consume(context.Background(), p.cfg.ConsumeTimeout)
		if errors.Is(err, broker.ErrEmpty) {
			continue
		}
		if err != nil {
			log.Error("Broker consume failed", "error", err)
			select {
			case <-p.stopCh:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		p.handle(log, msg)
	}
}

// handle runs one message through the pipeline and settles it with the
// broker.
func (p *Pool) handle(log *slog.Logger, msg *models.TicketMessage) {
	ctx := context.Background()

	ticketID, err := p.pipeline.Import(msg)
	if err != nil {
		log.Error("Ticket import failed", "ticket_id", msg.TicketID, "error", err)
		p.failed.Add(1)
		p.settleFail(ctx, log, msg.TicketID, err)
		return
	}

	if _, err := p.pipeline.Process(ctx, ticketID); err != nil {
		log.Error("Pipeline failed", "ticket_id", ticketID, "error", err)
		p.failed.Add(1)
		p.pipeline.store.MarkFailed(ticketID)
		p.settleFail(ctx, log, msg.TicketID, err)
		return
	}

	if err := p.broker.Ack(ctx, msg.TicketID); err != nil {
		log.Error("Broker ack failed", "ticket_id", msg.TicketID, "error", err)
	}
	p.processed.Add(1)
}

func (p *Pool) settleFail(ctx context.Context, log *slog.Logger, ticketID string, reason error) {
	if err := p.broker.Fail(ctx, ticketID, reason); err != nil {
		log.Error("Broker fail failed", "ticket_id", ticketID, "error", err)
	}
}

// runSweeper periodically auto-completes assignments past their ETA.
func (p *Pool) runSweeper() {
	defer p.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pipeline.Sweep()
		}
	}
}

// Stats is a worker pool counters snapshot.
type Stats struct {
	Workers   int   `json:"workers"`
	Running   bool  `json:"running"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Stats returns the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.cfg.Count,
		Running:   p.running.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}
