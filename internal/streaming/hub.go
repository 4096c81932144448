package streaming

import "context"

// StreamEvent is a real-time notification about a document or catalogue change.
type StreamEvent struct {
	TenantID   string `json:"tenant_id"`
	DocumentID string `json:"document_id,omitempty"`
	EventType  string `json:"event_type"`
	Payload    any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
// Subscribers outside an administrative context always set TenantID.
type EventFilter struct {
	TenantID   string   `json:"tenant_id,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for real-time document events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
