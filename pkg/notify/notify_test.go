package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabusboi/smart-support-routing/pkg/clock"
	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

func highTicket(id string) *models.Ticket {
	return &models.Ticket{
		ID:       id,
		Subject:  "Server down",
		Category: models.CategoryTechnical,
		Urgency:  0.9,
	}
}

func TestSeverityTiers(t *testing.T) {
	assert.Equal(t, "CRITICAL", severityFor(0.95).label)
	assert.Equal(t, "HIGH", severityFor(0.9).label)
	assert.Equal(t, "MEDIUM", severityFor(0.85).label)
}

func TestWebhookPostsSlackBlockKit(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(&config.WebhookConfig{SlackURL: srv.URL})
	require.NoError(t, w.Notify(context.Background(), highTicket("TKT-1")))

	payload := string(body)
	assert.Contains(t, payload, "HIGH ticket: Server down")
	assert.Contains(t, payload, "TKT-1")
	assert.Contains(t, payload, `"blocks"`)
}

func TestWebhookPostsDiscordEmbed(t *testing.T) {
	var got struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ticket := highTicket("TKT-1")
	ticket.Urgency = 0.97
	w := NewWebhook(&config.WebhookConfig{DiscordURL: srv.URL})
	require.NoError(t, w.Notify(context.Background(), ticket))

	require.Len(t, got.Embeds, 1)
	assert.True(t, strings.HasPrefix(got.Embeds[0].Title, "CRITICAL"))
	assert.Equal(t, 0xE74C3C, got.Embeds[0].Color)
	require.NotEmpty(t, got.Embeds[0].Fields)
	assert.Equal(t, "TKT-1", got.Embeds[0].Fields[0].Value)
}

func TestWebhookReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(&config.WebhookConfig{DiscordURL: srv.URL})
	assert.Error(t, w.Notify(context.Background(), highTicket("TKT-1")))
}

func TestWebhookNoChannelsConfigured(t *testing.T) {
	w := NewWebhook(&config.WebhookConfig{})
	assert.NoError(t, w.Notify(context.Background(), highTicket("TKT-1")))
}

type countingNotifier struct{ calls int }

func (c *countingNotifier) Notify(ctx context.Context, t *models.Ticket) error {
	c.calls++
	return nil
}

func newTestDispatcher(n Notifier) (*Dispatcher, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewDispatcher(n, 0.8, 5*time.Minute, clk), clk
}

func TestDispatcherGatesOnUrgency(t *testing.T) {
	n := &countingNotifier{}
	d, _ := newTestDispatcher(n)

	ticket := highTicket("TKT-1")
	ticket.Urgency = 0.8
	sent, err := d.Dispatch(context.Background(), ticket)
	require.NoError(t, err)
	assert.False(t, sent, "urgency must be strictly above the threshold")
	assert.Zero(t, n.calls)
}

func TestDispatcherSuppressesRepeatedAlerts(t *testing.T) {
	n := &countingNotifier{}
	d, _ := newTestDispatcher(n)

	// A storm of identical tickets produces exactly one alert.
	for i := 0; i < 10; i++ {
		_, err := d.Dispatch(context.Background(), highTicket("TKT-" + string(rune('0'+i))))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, n.calls)
}

func TestDispatcherNormalizesFingerprint(t *testing.T) {
	n := &countingNotifier{}
	d, _ := newTestDispatcher(n)

	a := highTicket("TKT-1")
	b := highTicket("TKT-2")
	b.Subject = "  SERVER   Down "

	d.Dispatch(context.Background(), a)
	d.Dispatch(context.Background(), b)
	assert.Equal(t, 1, n.calls, "case and whitespace variants share a fingerprint")
}

func TestDispatcherWindowExpires(t *testing.T) {
	n := &countingNotifier{}
	d, clk := newTestDispatcher(n)

	d.Dispatch(context.Background(), highTicket("TKT-1"))
	clk.Advance(5 * time.Minute)
	sent, err := d.Dispatch(context.Background(), highTicket("TKT-2"))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 2, n.calls)
}

func TestDispatcherDistinctTicketsBothAlert(t *testing.T) {
	n := &countingNotifier{}
	d, _ := newTestDispatcher(n)

	a := highTicket("TKT-1")
	b := highTicket("TKT-2")
	b.Subject = "Database unreachable"

	d.Dispatch(context.Background(), a)
	d.Dispatch(context.Background(), b)
	assert.Equal(t, 2, n.calls)
}
