package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/procdoc/internal/reports"
	"github.com/rendis/procdoc/internal/service"
	"github.com/rendis/procdoc/internal/streaming"
)

// ProcdocServerDeps holds the dependencies for creating a ProcdocServer.
type ProcdocServerDeps struct {
	Service *service.Service
	Reports *reports.Runner
	Hub     streaming.EventHub
	Logger  *slog.Logger
	Version string
}

// ProcdocServer wraps an MCP server with procdoc tool handlers.
type ProcdocServer struct {
	service   *service.Service
	reports   *reports.Runner
	hub       streaming.EventHub
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  *MCPNotifier
	mcpServer *server.MCPServer
}

// NewProcdocServer creates a new ProcdocServer with all tools registered.
func NewProcdocServer(deps ProcdocServerDeps) *ProcdocServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &ProcdocServer{
		service:  deps.Service,
		reports:  deps.Reports,
		hub:      deps.Hub,
		logger:   logger,
		sessions: NewSessionRegistry(),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.sessions.Remove(session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"procdoc",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions("procdoc manages process documentation. Use procdoc.convert to turn BPMN XML into a LaTeX document, procdoc.documents to list a tenant's documents, procdoc.report to run reports or jq queries, procdoc.diagram to preview a process diagram, and procdoc.watch to receive document events as notifications."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
// Hub events are forwarded to watching sessions while serving.
func (s *ProcdocServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.hub != nil {
		go s.forwardEvents(ctx)
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *ProcdocServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// forwardEvents pushes every hub event to the sessions watching its tenant.
func (s *ProcdocServer) forwardEvents(ctx context.Context) {
	ch, cancel, err := s.hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		s.logger.Error("mcp event subscription failed", slog.String("error", err.Error()))
		return
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := s.notifier.Notify(ctx, ev); err != nil {
				s.logger.Warn("mcp notification failed",
					slog.String("tenant_id", ev.TenantID),
					slog.String("event_type", ev.EventType),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (s *ProcdocServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: convertTool(), Handler: s.handleConvert},
		{Tool: documentsTool(), Handler: s.handleDocuments},
		{Tool: reportTool(), Handler: s.handleReport},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: watchTool(), Handler: s.handleWatch},
	}
}

// --- Tool definitions ---

func convertTool() mcp.Tool {
	return mcp.NewTool("procdoc.convert",
		mcp.WithDescription("Convert BPMN 2.0 XML into a LaTeX process document"),
		mcp.WithString("xml", mcp.Required(), mcp.Description("BPMN 2.0 XML source")),
		mcp.WithString("file_name", mcp.Description("Original file name, used as the process name fallback")),
		mcp.WithObject("metadata", mcp.Description("Document metadata (process, advanced, standard_ids, kpi_ids, sign_offs, history, triggers)")),
		mcp.WithObject("sections", mcp.Description("Optional section toggles, e.g. {\"kpi_table\": true}")),
		mcp.WithString("tenant_id", mcp.Description("Tenant whose standards and KPI catalogues resolve metadata references")),
	)
}

func documentsTool() mcp.Tool {
	return mcp.NewTool("procdoc.documents",
		mcp.WithDescription("List the documents of a tenant"),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant ID")),
		mcp.WithString("kind", mcp.Enum("bpmn", "latex"), mcp.Description("Only documents of this kind")),
		mcp.WithString("folder_id", mcp.Description("Only documents in this folder")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of documents (default 100)")),
	)
}

func reportTool() mcp.Tool {
	return mcp.NewTool("procdoc.report",
		mcp.WithDescription("Run a built-in report or an ad-hoc jq query over a tenant snapshot"),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant ID")),
		mcp.WithString("name", mcp.Description("Built-in report name: "+builtinList())),
		mcp.WithString("query", mcp.Description("jq expression over {generated_at, documents, standards, kpis, measurements}")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("procdoc.diagram",
		mcp.WithDescription("Render a BPMN process diagram. Returns Mermaid or ASCII text, an SVG document, or a PNG image"),
		mcp.WithString("tenant_id", mcp.Description("Tenant ID (required with document_id)")),
		mcp.WithString("document_id", mcp.Description("Stored BPMN document to render")),
		mcp.WithString("xml", mcp.Description("BPMN 2.0 XML to render instead of a stored document")),
		mcp.WithString("format",
			mcp.Enum("mermaid", "ascii", "png", "svg"),
			mcp.Description("Output format (default mermaid)"),
		),
	)
}

func watchTool() mcp.Tool {
	return mcp.NewTool("procdoc.watch",
		mcp.WithDescription("Receive a tenant's document events (reviews due, exports, edits) as MCP log notifications"),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant ID")),
		mcp.WithBoolean("stop", mcp.Description("Stop watching the tenant")),
	)
}
