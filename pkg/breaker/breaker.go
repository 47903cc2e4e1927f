// Package breaker implements a three-state circuit breaker governed by both
// consecutive failures and a rolling latency window. It guards the primary
// classifier so a slow-but-alive model still trips over to the fallback.
package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nabusboi/smart-support-routing/pkg/clock"
	"github.com/nabusboi/smart-support-routing/pkg/config"
)

// State of the breaker.
type State string

// Breaker states.
const (
	StateClosed   State = "closed"    // normal operation
	StateOpen     State = "open"      // failing, rejecting calls
	StateHalfOpen State = "half_open" // probing for recovery
)

// ErrCircuitOpen is returned by Execute when the breaker rejects the call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ringCapacity bounds the latency history.
const ringCapacity = 100

// minLatencySamples is the sample count required before the ring's moving
// average may trip the breaker.
const minLatencySamples = 10

// Breaker is a latency-aware circuit breaker. All methods are safe for
// concurrent use; Execute runs its function outside the internal lock.
type Breaker struct {
	name  string
	cfg   *config.BreakerConfig
	clock clock.Clock

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int // meaningful in half-open only
	lastFailure  time.Time
	latencies    []time.Duration // ring, oldest first
}

// New creates a closed breaker with the given name and configuration.
func New(name string, cfg *config.BreakerConfig, clk clock.Clock) *Breaker {
	if clk == nil {
		clk = clock.System()
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		clock: clk,
		state: StateClosed,
	}
}

// State returns the current state, performing the lazy open→half-open
// transition once the reset timeout has elapsed since the last failure.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.clock.Now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		b.state = StateHalfOpen
		b.successCount = 0
		slog.Info("Circuit half-open, probing for recovery", "breaker", b.name)
	}
	return b.state
}

// IsAvailable reports whether the breaker currently admits calls.
func (b *Breaker) IsAvailable() bool {
	return b.State() != StateOpen
}

// RecordSuccess notes a successful call. In half-open state it counts toward
// closing; in closed state it clears the consecutive-failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stateLocked() == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			slog.Info("Circuit closed, recovered", "breaker", b.name)
		}
		return
	}
	b.failureCount = 0
}

// RecordFailure notes a failed call. latency may be zero when unknown. The
// breaker trips when consecutive failures reach the threshold, when the
// reported latency breaches the limit, or on any failure while half-open.
func (b *Breaker) RecordFailure(latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordFailureLocked(latency)
}

func (b *Breaker) recordFailureLocked(latency time.Duration) {
	b.failureCount++
	b.lastFailure = b.clock.Now()

	if b.stateLocked() == StateHalfOpen {
		b.tripLocked("failure while half-open")
		return
	}
	if latency > b.cfg.LatencyThreshold {
		b.tripLocked("latency over threshold")
		return
	}
	if b.failureCount >= b.cfg.FailureThreshold {
		b.tripLocked("consecutive failures")
	}
}

// RecordLatency appends a latency sample to the ring. A single sample over
// the threshold, or a ≥10-sample moving average over the threshold, counts
// as a failure with that latency.
func (b *Breaker) RecordLatency(latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latencies = append(b.latencies, latency)
	if len(b.latencies) > ringCapacity {
		b.latencies = b.latencies[1:]
	}

	if latency > b.cfg.LatencyThreshold {
		b.recordFailureLocked(latency)
		return
	}
	if len(b.latencies) >= minLatencySamples {
		if mean := b.meanLatencyLocked(); mean > b.cfg.LatencyThreshold {
			b.recordFailureLocked(mean)
		}
	}
}

func (b *Breaker) meanLatencyLocked() time.Duration {
	if len(b.latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range b.latencies {
		sum += l
	}
	return sum / time.Duration(len(b.latencies))
}

func (b *Breaker) tripLocked(reason string) {
	if b.state != StateOpen {
		b.state = StateOpen
		slog.Warn("Circuit opened", "breaker", b.name, "reason", reason)
	}
}

// Execute gates fn through the breaker: fail fast when open, otherwise time
// the call and classify the outcome. fn runs outside the breaker lock.
func (b *Breaker) Execute(fn func() error) error {
	if !b.IsAvailable() {
		return ErrCircuitOpen
	}

	start := b.clock.Now()
	err := fn()
	elapsed := b.clock.Now().Sub(start)

	if err != nil {
		b.RecordFailure(elapsed)
		return err
	}
	b.RecordLatency(elapsed)
	b.RecordSuccess()
	return nil
}

// Reset forces the breaker closed and clears counters and the latency ring.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	b.latencies = nil
	slog.Info("Circuit reset", "breaker", b.name)
}

// Trip forces the breaker open, used by the manual toggle endpoint.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailure = b.clock.Now()
	b.tripLocked("manual trip")
}

// Stats is a point-in-time snapshot for the stats endpoint.
type Stats struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LatencySamples  int       `json:"latency_samples"`
	MeanLatencyMs   float64   `json:"mean_latency_ms"`
	LastFailureTime time.Time `json:"last_failure_time,omitzero"`
}

// Stats returns a snapshot of the breaker state.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:            b.name,
		State:           b.stateLocked(),
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LatencySamples:  len(b.latencies),
		MeanLatencyMs:   float64(b.meanLatencyLocked()) / float64(time.Millisecond),
		LastFailureTime: b.lastFailure,
	}
}
