// Package notify pushes high-urgency ticket alerts to Slack and Discord
// webhooks. Delivery is best effort and never blocks the routing pipeline;
// repeated alerts for near-identical tickets are suppressed by fingerprint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/nabusboi/smart-support-routing/pkg/config"
	"github.com/nabusboi/smart-support-routing/pkg/models"
)

// Notifier delivers one ticket alert.
type Notifier interface {
	Notify(ctx context.Context, t *models.Ticket) error
}

// severity tiers by urgency.
type severity struct {
	label string
	color string // slack attachment color
	embed int    // discord embed color
}

func severityFor(urgency float64) severity {
	switch {
	case urgency >= 0.95:
		return severity{label: "CRITICAL", color: "danger", embed: 0xE74C3C}
	case urgency >= 0.9:
		return severity{label: "HIGH", color: "danger", embed: 0xE67E22}
	default:
		return severity{label: "MEDIUM", color: "warning", embed: 0xF1C40F}
	}
}

// Webhook posts alerts to the configured Slack and Discord webhooks. Either
// URL may be empty to disable that channel.
type Webhook struct {
	cfg    *config.WebhookConfig
	client *http.Client
}

// NewWebhook creates a webhook notifier.
func NewWebhook(cfg *config.WebhookConfig) *Webhook {
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts to every configured channel and returns the first error.
func (w *Webhook) Notify(ctx context.Context, t *models.Ticket) error {
	var firstErr error
	if w.cfg.SlackURL != "" {
		if err := w.postSlack(ctx, t); err != nil {
			slog.Error("Slack notification failed", "ticket_id", t.ID, "error", err)
			firstErr = err
		}
	}
	if w.cfg.DiscordURL != "" {
		if err := w.postDiscord(ctx, t); err != nil {
			slog.Error("Discord notification failed", "ticket_id", t.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (w *Webhook) postSlack(ctx context.Context, t *models.Ticket) error {
	sev := severityFor(t.Urgency)

	header := slack.NewHeaderBlock(slack.NewTextBlockObject(
		slack.PlainTextType,
		fmt.Sprintf("%s ticket: %s", sev.label, t.Subject),
		false, false,
	))
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Ticket:*\n%s", t.ID), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Urgency:*\n%.2f", t.Urgency), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Category:*\n%s", t.Category), false, false),
	}
	if t.AgentID != "" {
		fields = append(fields, slack.NewTextBlockObject(
			slack.MarkdownType, fmt.Sprintf("*Agent:*\n%s", t.AgentID), false, false))
	}
	section := slack.NewSectionBlock(nil, fields, nil)

	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{{
			Color: sev.color,
			Blocks: slack.Blocks{
				BlockSet: []slack.Block{header, section},
			},
		}},
	}
	return slack.PostWebhookCustomHTTPContext(ctx, w.cfg.SlackURL, w.client, msg)
}

// discordEmbed is the Discord webhook payload shape.
type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color"`
	Fields      []discordEmbedField `json:"fields"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (w *Webhook) postDiscord(ctx context.Context, t *models.Ticket) error {
	sev := severityFor(t.Urgency)

	embed := discordEmbed{
		Title:       fmt.Sprintf("%s ticket: %s", sev.label, t.Subject),
		Description: t.Description,
		Color:       sev.embed,
		Fields: []discordEmbedField{
			{Name: "Ticket", Value: t.ID, Inline: true},
			{Name: "Urgency", Value: fmt.Sprintf("%.2f", t.Urgency), Inline: true},
			{Name: "Category", Value: t.Category, Inline: true},
		},
	}
	body, err := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.DiscordURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned %d", resp.StatusCode)
	}
	return nil
}
