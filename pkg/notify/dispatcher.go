package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nabusboi/smart-support-routing/pkg/clock"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// fingerprint hashes the normalized ticket text so retries and near-verbatim
// storm duplicates collapse to one alert key.
func fingerprint(t *models.Ticket) string {
	normalized := normalizeText(t.Subject + " " + t.Description)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:8])
}

func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Dispatcher gates alerts on urgency and deduplicates them by fingerprint
// within a suppression window, so a ticket storm produces one alert instead
// of one per ticket.
type Dispatcher struct {
	notifier  Notifier
	threshold float64
	window    time.Duration
	clock     clock.Clock

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDispatcher wires the urgency gate and suppression window around a
// notifier.
func NewDispatcher(notifier Notifier, threshold float64, window time.Duration, clk clock.Clock) *Dispatcher {
	if clk == nil {
		clk = clock.System()
	}
	return &Dispatcher{
		notifier:  notifier,
		threshold: threshold,
		window:    window,
		clock:     clk,
		seen:      make(map[string]time.Time),
	}
}

// Dispatch sends an alert when the ticket is above the urgency threshold and
// no alert with the same fingerprint fired within the window. Returns whether
// an alert was sent.
func (d *Dispatcher) Dispatch(ctx context.Context, t *models.Ticket) (bool, error) {
	if t.Urgency <= d.threshold {
		return false, nil
	}

	fp := fingerprint(t)
	now := d.clock.Now()

	d.mu.Lock()
	if last, ok := d.seen[fp]; ok && now.Sub(last) < d.window {
		d.mu.Unlock()
		slog.Debug("Alert suppressed by fingerprint", "ticket_id", t.ID, "fingerprint", fp)
		return false, nil
	}
	d.seen[fp] = now
	for key, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, key)
		}
	}
	d.mu.Unlock()

	if err := d.notifier.Notify(ctx, t); err != nil {
		return false, err
	}
	slog.Info("High urgency alert sent", "ticket_id", t.ID, "urgency", t.Urgency)
	return true, nil
}
