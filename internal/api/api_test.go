package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/export"
	"github.com/rendis/procdoc/internal/expressions"
	"github.com/rendis/procdoc/internal/kpi"
	"github.com/rendis/procdoc/internal/reports"
	"github.com/rendis/procdoc/internal/review"
	"github.com/rendis/procdoc/internal/service"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/internal/streaming"
	"github.com/rendis/procdoc/internal/validation"
	"github.com/rendis/procdoc/pkg/schema"
)

const tinyBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL"
    xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI"
    xmlns:dc="http://www.omg.org/spec/DD/20100524/DC" id="Definitions_1">
  <bpmn:process id="Process_1">
    <bpmn:laneSet id="LaneSet_1">
      <bpmn:lane id="Lane_1" name="Actor"><bpmn:flowNodeRef>Task_1</bpmn:flowNodeRef></bpmn:lane>
    </bpmn:laneSet>
    <bpmn:task id="Task_1" name="Review Request" />
  </bpmn:process>
  <bpmndi:BPMNDiagram id="BPMNDiagram_1">
    <bpmndi:BPMNPlane id="BPMNPlane_1" bpmnElement="Process_1">
      <bpmndi:BPMNShape id="Lane_1_di" bpmnElement="Lane_1"><dc:Bounds x="0" y="0" width="500" height="200" /></bpmndi:BPMNShape>
      <bpmndi:BPMNShape id="Task_1_di" bpmnElement="Task_1"><dc:Bounds x="100" y="50" width="100" height="80" /></bpmndi:BPMNShape>
    </bpmndi:BPMNPlane>
  </bpmndi:BPMNDiagram>
</bpmn:definitions>`

type testEnv struct {
	srv      *httptest.Server
	accounts *auth.Accounts
}

func newTestEnv(t *testing.T, compilerURL string) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })

	tokens, err := auth.NewTokenIssuer("api-test-secret", time.Hour)
	require.NoError(t, err)
	cel, err := expressions.NewCELEngine()
	require.NoError(t, err)
	policy, err := auth.NewPolicy(cel, nil)
	require.NoError(t, err)
	validator, err := validation.NewMetadataValidator()
	require.NoError(t, err)
	compiler, err := export.NewCompiler(export.CompilerConfig{URL: compilerURL})
	require.NoError(t, err)

	hub := streaming.NewMemoryHub()
	tracker := kpi.NewTracker(s, expressions.NewExprEngine(), logger)
	svc, err := service.New(service.Deps{
		Store:     s,
		Hub:       hub,
		Validator: validator,
		Reviews:   review.NewScheduler(s, hub, logger, time.Minute),
		KPIs:      tracker,
		Compiler:  compiler,
		Logger:    logger,
	})
	require.NoError(t, err)

	accounts := auth.NewAccounts(s, tokens, logger)
	server := NewServer(Deps{
		Service:  svc,
		Accounts: accounts,
		Tokens:   tokens,
		Policy:   policy,
		Reports:  reports.NewRunner(s, expressions.NewGoJQEngine(), tracker),
		Hub:      hub,
		Logger:   logger,
	})

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, accounts: accounts}
}

// client carries a bearer token or a cookie jar-less session cookie.
type client struct {
	t      *testing.T
	base   string
	token  string
	cookie *http.Cookie
}

func (e *testEnv) anonymous(t *testing.T) *client {
	return &client{t: t, base: e.srv.URL}
}

func (e *testEnv) register(t *testing.T, email string) *client {
	t.Helper()
	c := e.anonymous(t)
	resp := c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"tenant_name": "Acme " + email, "email": email, "name": "Admin", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	for _, ck := range resp.Cookies() {
		if ck.Name == defaultCookieName {
			c.cookie = ck
		}
	}
	require.NotNil(t, c.cookie, "session cookie not set")
	resp.Body.Close()
	return c
}

func (c *client) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	return resp
}

func (c *client) json(method, path string, body any, wantStatus int, out any) {
	c.t.Helper()
	resp := c.do(method, path, body)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	require.Equal(c.t, wantStatus, resp.StatusCode, string(data))
	if out != nil {
		require.NoError(c.t, json.Unmarshal(data, out))
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "")
	var body map[string]string
	env.anonymous(t).json(http.MethodGet, "/healthz", nil, http.StatusOK, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.register(t, "ada@acme.io")

	var me store.User
	admin.json(http.MethodGet, "/api/auth/me", nil, http.StatusOK, &me)
	assert.Equal(t, "ada@acme.io", me.Email)
	assert.Equal(t, schema.RoleAdmin, me.Role)

	var errBody errorBody
	env.anonymous(t).json(http.MethodGet, "/api/auth/me", nil, http.StatusUnauthorized, &errBody)
	assert.Equal(t, schema.ErrCodeUnauthorized, errBody.Code)

	var sess auth.Session
	env.anonymous(t).json(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@acme.io", "password": "correct-horse"}, http.StatusOK, &sess)
	bearer := &client{t: t, base: env.srv.URL, token: sess.Token}
	bearer.json(http.MethodGet, "/api/auth/me", nil, http.StatusOK, nil)

	env.anonymous(t).json(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@acme.io", "password": "wrong-horse"}, http.StatusUnauthorized, nil)

	resp := admin.do(http.MethodPost, "/api/auth/logout", nil)
	resp.Body.Close()
	var cleared *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == defaultCookieName {
			cleared = ck
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestUserManagementAndRoles(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.register(t, "ada@acme.io")

	var viewerUser store.User
	admin.json(http.MethodPost, "/api/users", map[string]string{
		"email": "vic@acme.io", "name": "Vic", "password": "viewer-pass",
	}, http.StatusCreated, &viewerUser)
	assert.Equal(t, schema.RoleViewer, viewerUser.Role)

	var sess auth.Session
	env.anonymous(t).json(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "vic@acme.io", "password": "viewer-pass"}, http.StatusOK, &sess)
	viewer := &client{t: t, base: env.srv.URL, token: sess.Token}

	viewer.json(http.MethodGet, "/api/documents", nil, http.StatusOK, nil)
	viewer.json(http.MethodPost, "/api/documents", map[string]string{"kind": "latex", "name": "x"}, http.StatusForbidden, nil)
	viewer.json(http.MethodGet, "/api/users", nil, http.StatusForbidden, nil)

	// Promotion applies to the existing token.
	admin.json(http.MethodPut, "/api/users/"+viewerUser.ID+"/role", map[string]string{"role": "editor"}, http.StatusOK, nil)
	viewer.json(http.MethodPost, "/api/documents", map[string]string{"kind": "latex", "name": "x"}, http.StatusCreated, nil)

	admin.json(http.MethodPut, "/api/users/"+viewerUser.ID+"/role", map[string]string{"role": "owner"}, http.StatusBadRequest, nil)

	var users struct {
		Users []store.User `json:"users"`
	}
	admin.json(http.MethodGet, "/api/users", nil, http.StatusOK, &users)
	assert.Len(t, users.Users, 2)

	admin.json(http.MethodDelete, "/api/users/"+viewerUser.ID, nil, http.StatusOK, nil)
	viewer.json(http.MethodGet, "/api/documents", nil, http.StatusUnauthorized, nil)
}

func TestDocumentRoutes(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.register(t, "ada@acme.io")

	var folder store.Folder
	admin.json(http.MethodPost, "/api/folders", map[string]string{"name": "Processes"}, http.StatusCreated, &folder)

	var doc store.Document
	admin.json(http.MethodPost, "/api/documents", map[string]string{
		"kind": "bpmn", "name": "Intake.bpmn", "content": tinyBPMN, "folder_id": folder.ID,
	}, http.StatusCreated, &doc)

	var list struct {
		Documents []store.Document `json:"documents"`
	}
	admin.json(http.MethodGet, "/api/documents?folder_id="+folder.ID, nil, http.StatusOK, &list)
	require.Len(t, list.Documents, 1)
	assert.Empty(t, list.Documents[0].Content)

	admin.json(http.MethodGet, "/api/documents?folder_id=", nil, http.StatusOK, &list)
	assert.Empty(t, list.Documents)

	admin.json(http.MethodPut, "/api/documents/"+doc.ID+"/metadata",
		`{"process":{"process_owner":"Ops"},"sections":{"process_table":true,"process_details_table":true},"advanced":{"purpose":"Triage"}}`,
		http.StatusOK, nil)
	admin.json(http.MethodPut, "/api/documents/"+doc.ID+"/metadata", `{"bogus":1}`, http.StatusBadRequest, nil)

	resp := admin.do(http.MethodGet, "/api/documents/"+doc.ID+"/latex", nil)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="Intake.tex"`)
	assert.Contains(t, string(body), "Review Request")
	assert.Contains(t, string(body), "Triage")

	resp = admin.do(http.MethodGet, "/api/documents/"+doc.ID+"/preview?format=ascii", nil)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Review Request")

	admin.json(http.MethodGet, "/api/documents/"+doc.ID+"/pdf", nil, http.StatusBadGateway, nil)

	admin.json(http.MethodDelete, "/api/folders/"+folder.ID, nil, http.StatusConflict, nil)
	admin.json(http.MethodDelete, "/api/documents/"+doc.ID, nil, http.StatusOK, nil)
	admin.json(http.MethodGet, "/api/documents/"+doc.ID, nil, http.StatusNotFound, nil)
	admin.json(http.MethodDelete, "/api/folders/"+folder.ID, nil, http.StatusOK, nil)

	var activity struct {
		Activity []store.Activity `json:"activity"`
	}
	admin.json(http.MethodGet, "/api/activity?type=document_exported", nil, http.StatusOK, &activity)
	assert.Len(t, activity.Activity, 1)
}

func TestTenantIsolation(t *testing.T) {
	env := newTestEnv(t, "")
	alice := env.register(t, "alice@one.io")
	bob := env.register(t, "bob@two.io")

	var doc store.Document
	alice.json(http.MethodPost, "/api/documents", map[string]string{"kind": "latex", "name": "secret"}, http.StatusCreated, &doc)

	bob.json(http.MethodGet, "/api/documents/"+doc.ID, nil, http.StatusNotFound, nil)
	bob.json(http.MethodDelete, "/api/documents/"+doc.ID, nil, http.StatusNotFound, nil)

	var list struct {
		Documents []store.Document `json:"documents"`
	}
	bob.json(http.MethodGet, "/api/documents", nil, http.StatusOK, &list)
	assert.Empty(t, list.Documents)
}

func TestConvertEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.register(t, "ada@acme.io")

	resp := admin.do(http.MethodPost, "/api/convert", map[string]string{"xml": tinyBPMN, "file_name": "tiny.bpmn"})
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "1.1")
	assert.Contains(t, string(body), "Actor")

	admin.json(http.MethodPost, "/api/convert", map[string]string{"file_name": "x"}, http.StatusBadRequest, nil)
}

func TestCatalogueAndReports(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.register(t, "ada@acme.io")

	resp := admin.do(http.MethodPost, "/api/standards/import", "standards:\n  - id: iso\n    name: ISO 9001\nkpis:\n  - id: sla\n    name: SLA\n    target: 90\n")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	admin.json(http.MethodPost, "/api/kpis", map[string]any{"id": "bad", "name": "Bad", "formula": "value >>"}, http.StatusBadRequest, nil)

	var rec struct {
		Status kpi.Status `json:"status"`
	}
	admin.json(http.MethodPost, "/api/kpis/sla/measurements", map[string]any{"value": 92.5}, http.StatusCreated, &rec)
	assert.Equal(t, kpi.StatusMet, rec.Status)

	var ms struct {
		Measurements []store.Measurement `json:"measurements"`
	}
	admin.json(http.MethodGet, "/api/kpis/sla/measurements", nil, http.StatusOK, &ms)
	assert.Len(t, ms.Measurements, 1)
	admin.json(http.MethodGet, "/api/kpis/sla/measurements?since=yesterday", nil, http.StatusBadRequest, nil)

	var summary struct {
		Summaries []kpi.Summary `json:"summaries"`
	}
	admin.json(http.MethodGet, "/api/kpis/summary", nil, http.StatusOK, &summary)
	require.Len(t, summary.Summaries, 1)
	assert.Equal(t, kpi.StatusMet, summary.Summaries[0].Status)

	var report struct {
		Result any `json:"result"`
	}
	admin.json(http.MethodGet, "/api/reports/kpi_status", nil, http.StatusOK, &report)
	assert.NotNil(t, report.Result)
	admin.json(http.MethodGet, "/api/reports/unknown", nil, http.StatusNotFound, nil)

	admin.json(http.MethodPost, "/api/reports/query", map[string]string{"query": "[.standards[].id]"}, http.StatusOK, &report)
	assert.Equal(t, []any{"iso"}, report.Result)
	admin.json(http.MethodPost, "/api/reports/query", map[string]string{"query": ".["}, http.StatusBadRequest, nil)

	admin.json(http.MethodDelete, "/api/standards/iso", nil, http.StatusOK, nil)
	admin.json(http.MethodDelete, "/api/kpis/sla", nil, http.StatusOK, nil)
}

func TestPDFExport(t *testing.T) {
	compiler := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.5 ok"))
	}))
	defer compiler.Close()

	env := newTestEnv(t, compiler.URL)
	admin := env.register(t, "ada@acme.io")

	var doc store.Document
	admin.json(http.MethodPost, "/api/documents", map[string]string{
		"kind": "latex", "name": "Handbook", "content": `\documentclass{article}`,
	}, http.StatusCreated, &doc)

	resp := admin.do(http.MethodGet, "/api/documents/"+doc.ID+"/pdf", nil)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "%PDF-1.5 ok", string(body))

	resp = admin.do(http.MethodGet, "/api/documents/"+doc.ID+"/zip?include_pdf=true", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
}

func TestSSE(t *testing.T) {
	env := newTestEnv(t, "")
	admin := env.register(t, "ada@acme.io")
	other := env.register(t, "eve@other.io")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/sse/events", nil)
	require.NoError(t, err)
	req.AddCookie(admin.cookie)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	other.json(http.MethodPost, "/api/documents", map[string]string{"kind": "latex", "name": "theirs"}, http.StatusCreated, nil)
	admin.json(http.MethodPost, "/api/documents", map[string]string{"kind": "latex", "name": "mine"}, http.StatusCreated, nil)

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, store.ActivityDocumentCreated, eventLine)
	assert.Contains(t, dataLine, `"name":"mine"`)
	assert.NotContains(t, dataLine, "theirs")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(schema.ErrCodeCompile))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(schema.ErrCodeConversion))
	assert.Equal(t, http.StatusInternalServerError, statusFor(schema.ErrCodeStore))
	assert.Equal(t, http.StatusInternalServerError, statusFor("whatever"))
}
