package models

// TicketMessage is the broker wire format for one queued ticket.
// Field names match the queue payload produced by ticket producers.
type TicketMessage struct {
	TicketID       string         `json:"ticket_id"`
	Subject        string         `json:"subject"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	Urgency        float64        `json:"urgency"`
	SentimentScore float64        `json:"sentiment_score"`
	CreatedAt      string         `json:"created_at"` // ISO-8601 UTC
	Metadata       map[string]any `json:"metadata"`
}

// CustomerID extracts the customer identifier from message metadata.
func (m *TicketMessage) CustomerID() string {
	if m.Metadata == nil {
		return ""
	}
	if id, ok := m.Metadata["customer_id"].(string); ok {
		return id
	}
	return ""
}
