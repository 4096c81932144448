package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/procdoc/internal/streaming"
)

// EventNotifier pushes document events to connected MCP clients.
type EventNotifier interface {
	Notify(ctx context.Context, event streaming.StreamEvent) error
}

// MCPNotifier implements EventNotifier with MCP log notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes to the sessions watching a tenant.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends the event to every session watching its tenant.
// Best-effort: sessions that went away are dropped and not reported.
func (n *MCPNotifier) Notify(_ context.Context, event streaming.StreamEvent) error {
	params := map[string]any{
		"level":  "info",
		"logger": "procdoc",
		"data":   event,
	}
	var errs []error
	for _, sessionID := range n.sessions.SessionsFor(event.TenantID) {
		err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", params)
		if errors.Is(err, server.ErrSessionNotFound) {
			n.sessions.Remove(sessionID)
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
