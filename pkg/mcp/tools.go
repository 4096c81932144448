package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/diagram"
	"github.com/rendis/procdoc/internal/logging"
	"github.com/rendis/procdoc/internal/reports"
	"github.com/rendis/procdoc/internal/service"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

// mcpUserID identifies MCP callers in activity entries. The stdio transport is
// local and trusted, so tools act with admin rights inside the named tenant.
const mcpUserID = "mcp"

// handleConvert converts BPMN XML to LaTeX without storing anything.
func (s *ProcdocServer) handleConvert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	xmlText, err := req.RequireString("xml")
	if err != nil || strings.TrimSpace(xmlText) == "" {
		return mcp.NewToolResultError("xml is required"), nil
	}
	in := service.ConvertInput{
		XML:      xmlText,
		FileName: req.GetString("file_name", ""),
	}

	if raw := mcp.ParseStringMap(req, "metadata", nil); raw != nil {
		meta := &schema.DocumentMetadata{}
		if decodeErr := decodeArgument(raw, meta); decodeErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid metadata: %v", decodeErr)), nil
		}
		in.Metadata = meta
	}
	if raw := mcp.ParseStringMap(req, "sections", nil); raw != nil {
		sections := &schema.SectionToggles{}
		if decodeErr := decodeArgument(raw, sections); decodeErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid sections: %v", decodeErr)), nil
		}
		if in.Metadata == nil {
			in.Metadata = &schema.DocumentMetadata{}
		}
		in.Metadata.Sections = sections
	}

	tenantID := req.GetString("tenant_id", "")
	if tenantID != "" {
		if res := s.checkTenant(ctx, tenantID); res != nil {
			return res, nil
		}
		ctx = logging.WithIDs(ctx, tenantID, mcpUserID)
	}

	out, convErr := s.service.Convert(ctx, tenantID, in)
	if convErr != nil {
		return toolError("conversion failed", convErr), nil
	}
	return mcp.NewToolResultText(out), nil
}

// handleDocuments lists the documents of a tenant, without their content.
func (s *ProcdocServer) handleDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := req.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}
	if res := s.checkTenant(ctx, tenantID); res != nil {
		return res, nil
	}

	filter := store.DocumentFilter{
		Kind:  schema.DocumentKind(req.GetString("kind", "")),
		Limit: req.GetInt("limit", 100),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown document kind: %s", filter.Kind)), nil
	}
	if folderID := req.GetString("folder_id", ""); folderID != "" {
		filter.FolderID = &folderID
	}

	docs, listErr := s.service.ListDocuments(ctx, principalFor(tenantID), filter)
	if listErr != nil {
		return toolError("query failed", listErr), nil
	}
	if docs == nil {
		docs = []*store.Document{}
	}
	return marshalResult(map[string]any{"documents": docs})
}

// handleReport runs a built-in report or an ad-hoc jq query.
func (s *ProcdocServer) handleReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := req.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}
	name := req.GetString("name", "")
	query := req.GetString("query", "")
	switch {
	case name == "" && query == "":
		return mcp.NewToolResultError("one of name or query is required (reports: " + builtinList() + ")"), nil
	case name != "" && query != "":
		return mcp.NewToolResultError("name and query are mutually exclusive"), nil
	}
	if res := s.checkTenant(ctx, tenantID); res != nil {
		return res, nil
	}

	var (
		out    any
		runErr error
	)
	if name != "" {
		out, runErr = s.reports.Run(ctx, tenantID, name)
	} else {
		out, runErr = s.reports.Query(ctx, tenantID, query)
	}
	if runErr != nil {
		return toolError("report failed", runErr), nil
	}
	result := map[string]any{"result": out}
	if name != "" {
		result["report"] = name
	}
	return marshalResult(result)
}

// handleDiagram renders a stored document or inline XML as a diagram preview.
func (s *ProcdocServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := diagram.Format(req.GetString("format", string(diagram.FormatMermaid)))
	documentID := req.GetString("document_id", "")
	xmlText := req.GetString("xml", "")

	var (
		preview *diagram.Preview
		err     error
	)
	switch {
	case documentID != "" && xmlText != "":
		return mcp.NewToolResultError("document_id and xml are mutually exclusive"), nil
	case documentID != "":
		tenantID := req.GetString("tenant_id", "")
		if tenantID == "" {
			return mcp.NewToolResultError("tenant_id is required with document_id"), nil
		}
		preview, err = s.service.Preview(ctx, principalFor(tenantID), documentID, format)
	case xmlText != "":
		preview, err = diagram.RenderPreview(ctx, xmlText, "", format)
	default:
		return mcp.NewToolResultError("one of document_id or xml is required"), nil
	}
	if err != nil {
		return toolError("diagram render failed", err), nil
	}

	if format == diagram.FormatPNG {
		encoded := base64.StdEncoding.EncodeToString(preview.Data)
		return mcp.NewToolResultImage("process diagram", encoded, preview.ContentType), nil
	}
	return mcp.NewToolResultText(string(preview.Data)), nil
}

// handleWatch subscribes the calling session to a tenant's events.
func (s *ProcdocServer) handleWatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := req.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError("tenant_id is required"), nil
	}
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return mcp.NewToolResultError("watch requires a client session"), nil
	}

	if req.GetBool("stop", false) {
		s.sessions.Unregister(tenantID, session.SessionID())
		return marshalResult(map[string]any{"ok": true, "tenant_id": tenantID, "watching": false})
	}
	if res := s.checkTenant(ctx, tenantID); res != nil {
		return res, nil
	}
	s.sessions.Register(tenantID, session.SessionID())
	return marshalResult(map[string]any{"ok": true, "tenant_id": tenantID, "watching": true})
}

// --- Internal helpers ---

// checkTenant returns a tool error result when the tenant does not exist.
func (s *ProcdocServer) checkTenant(ctx context.Context, tenantID string) *mcp.CallToolResult {
	if _, err := s.service.Store().GetTenant(ctx, tenantID); err != nil {
		return toolError("tenant lookup failed", err)
	}
	return nil
}

func principalFor(tenantID string) auth.Principal {
	return auth.Principal{UserID: mcpUserID, TenantID: tenantID, Role: schema.RoleAdmin}
}

// decodeArgument re-decodes a JSON object argument into a typed value,
// rejecting unknown fields.
func decodeArgument(raw map[string]any, v any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func builtinList() string {
	return strings.Join(reports.Builtins(), ", ")
}

// toolError renders err with its error code so agents can branch on it.
func toolError(prefix string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
