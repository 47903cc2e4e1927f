// Package dedup detects ticket storms. It keeps a sliding time window of
// ticket embeddings and, once enough near-identical tickets arrive, folds the
// cluster into a single Master Incident that suppresses duplicate handling.
package dedup

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabusboi/smart-support-routing/pkg/clock"
	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/embeddings"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// entry is one ticket tracked by the similarity index.
type entry struct {
	ticketID  string
	subject   string
	desc      string
	vector    []float64
	createdAt time.Time

	// processed marks entries folded into a Master Incident. Processed
	// entries no longer count toward cluster creation but remain findable
	// so later arrivals can join the incident.
	processed bool
	masterID  string
}

// MasterIncident is a materialized cluster of highly similar tickets.
type MasterIncident struct {
	ID              string    `json:"master_id"`
	TicketIDs       []string  `json:"ticket_ids"`
	SimilarityScore float64   `json:"similarity_score"`
	Category        string    `json:"category"`
	CreatedAt       time.Time `json:"created_at"`
	SuppressedCount int       `json:"suppressed_count"`
}

// Result of a dedup check.
type Result struct {
	IsDuplicate bool
	MasterID    string
}

// Deduplicator clusters near-identical tickets over a sliding window.
// Creation of a Master Incident is serialized under the internal lock, so a
// given cluster is never materialized twice: when two submissions race at
// the threshold, the second finds the first's incident and joins it.
type Deduplicator struct {
	embedder embeddings.Embedder
	cfg      *config.DedupConfig
	clock    clock.Clock

	mu        sync.Mutex
	entries   []*entry
	incidents map[string]*MasterIncident
}

// New creates a Deduplicator.
func New(embedder embeddings.Embedder, cfg *config.DedupConfig, clk clock.Clock) *Deduplicator {
	if clk == nil {
		clk = clock.System()
	}
	return &Deduplicator{
		embedder:  embedder,
		cfg:       cfg,
		clock:     clk,
		incidents: make(map[string]*MasterIncident),
	}
}

// AddTicket runs the dedup check for one ticket.
//
// Matches are the unfolded entries of the last window whose similarity
// exceeds the threshold. When matches plus the new ticket reach the count
// threshold, a Master Incident is created containing all of them. Otherwise,
// if a similar folded entry already belongs to an incident, the ticket joins
// it. Entries older than twice the window are evicted on every call.
func (d *Deduplicator) AddTicket(ticketID, subject, description string) Result {
	// Embedding is pure CPU work; keep it outside the lock.
	vec := d.embedder.Embed(subject + " " + description)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-d.cfg.TimeWindow)

	var matches []*entry
	var linked *entry
	for _, e := range d.entries {
		if e.createdAt.Before(cutoff) {
			continue
		}
		sim := embeddings.Cosine(vec, e.vector)
		if sim <= d.cfg.SimilarityThreshold {
			continue
		}
		if e.processed {
			if linked == nil && e.masterID != "" {
				linked = e
			}
			continue
		}
		matches = append(matches, e)
	}

	newEntry := &entry{
		ticketID:  ticketID,
		subject:   subject,
		desc:      description,
		vector:    vec,
		createdAt: now,
	}

	var res Result
	switch {
	case len(matches)+1 >= d.cfg.CountThreshold:
		res = Result{IsDuplicate: true, MasterID: d.createIncident(newEntry, matches, now)}
	case linked != nil:
		incident := d.incidents[linked.masterID]
		incident.TicketIDs = append(incident.TicketIDs, ticketID)
		incident.SuppressedCount = len(incident.TicketIDs) - 1
		newEntry.processed = true
		newEntry.masterID = incident.ID
		res = Result{IsDuplicate: true, MasterID: incident.ID}
	}

	d.entries = append(d.entries, newEntry)
	d.evict(now)
	return res
}

// createIncident folds the matches plus the new entry into a fresh incident.
func (d *Deduplicator) createIncident(newEntry *entry, matches []*entry, now time.Time) string {
	masterID := "MASTER-" + strings.ToUpper(uuid.NewString()[:8])

	var sum float64
	ids := make([]string, 0, len(matches)+1)
	members := make([]*entry, 0, len(matches)+1)
	for _, m := range matches {
		sum += embeddings.Cosine(newEntry.vector, m.vector)
		ids = append(ids, m.ticketID)
		members = append(members, m)
		m.processed = true
		m.masterID = masterID
	}
	ids = append(ids, newEntry.ticketID)
	members = append(members, newEntry)
	newEntry.processed = true
	newEntry.masterID = masterID

	avg := 0.0
	if len(matches) > 0 {
		avg = sum / float64(len(matches))
	}

	incident := &MasterIncident{
		ID:              masterID,
		TicketIDs:       ids,
		SimilarityScore: avg,
		Category:        inferCategory(members),
		CreatedAt:       now,
		SuppressedCount: len(ids) - 1,
	}
	d.incidents[masterID] = incident

	slog.Info("Master incident created",
		"master_id", masterID,
		"members", len(ids),
		"suppressed", incident.SuppressedCount,
		"avg_similarity", avg)

	return masterID
}

// evict drops entries older than twice the window.
func (d *Deduplicator) evict(now time.Time) {
	cutoff := now.Add(-2 * d.cfg.TimeWindow)
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.createdAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	// Release the tail so evicted entries can be collected.
	for i := len(kept); i < len(d.entries); i++ {
		d.entries[i] = nil
	}
	d.entries = kept
}

// categoryKeywords drives incident category inference by majority vote.
var categoryKeywords = map[string][]string{
	models.CategoryBilling:   {"invoice", "payment", "bill", "charge", "refund"},
	models.CategoryTechnical: {"error", "bug", "crash", "broken", "api", "server"},
	models.CategoryLegal:     {"legal", "compliance", "gdpr", "privacy", "contract"},
}

// inferCategory votes keyword categories across member texts. Ties break in
// the stable order of models.Categories.
func inferCategory(members []*entry) string {
	counts := make(map[string]int)
	for _, m := range members {
		text := strings.ToLower(m.subject + " " + m.desc)
		for category, keywords := range categoryKeywords {
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					counts[category]++
					break
				}
			}
		}
	}

	best := models.CategoryGeneral
	bestCount := 0
	for _, category := range models.Categories() {
		if counts[category] > bestCount {
			best = category
			bestCount = counts[category]
		}
	}
	return best
}

// Incident returns the incident with the given id, or nil.
func (d *Deduplicator) Incident(masterID string) *MasterIncident {
	d.mu.Lock()
	defer d.mu.Unlock()
	if inc, ok := d.incidents[masterID]; ok {
		snapshot := *inc
		snapshot.TicketIDs = append([]string(nil), inc.TicketIDs...)
		return &snapshot
	}
	return nil
}

// Incidents returns a snapshot of all incidents.
func (d *Deduplicator) Incidents() []*MasterIncident {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MasterIncident, 0, len(d.incidents))
	for _, inc := range d.incidents {
		snapshot := *inc
		snapshot.TicketIDs = append([]string(nil), inc.TicketIDs...)
		out = append(out, &snapshot)
	}
	return out
}

// Stats is the dedup statistics snapshot.
type Stats struct {
	TrackedTickets      int     `json:"tracked_tickets"`
	MasterIncidents     int     `json:"master_incidents"`
	TotalSuppressed     int     `json:"total_suppressed"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TimeWindowMinutes   float64 `json:"time_window_minutes"`
	CountThreshold      int     `json:"count_threshold"`
}

// Stats returns current counters.
func (d *Deduplicator) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	suppressed := 0
	for _, inc := range d.incidents {
		suppressed += inc.SuppressedCount
	}
	return Stats{
		TrackedTickets:      len(d.entries),
		MasterIncidents:     len(d.incidents),
		TotalSuppressed:     suppressed,
		SimilarityThreshold: d.cfg.SimilarityThreshold,
		TimeWindowMinutes:   d.cfg.TimeWindow.Minutes(),
		CountThreshold:      d.cfg.CountThreshold,
	}
}
