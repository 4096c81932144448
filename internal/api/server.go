// Package api serves the procdoc JSON API over net/http.
package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/reports"
	"github.com/rendis/procdoc/internal/service"
	"github.com/rendis/procdoc/internal/streaming"
)

const (
	defaultCookieName   = "procdoc_session"
	defaultMaxBodyBytes = 10 << 20 // 10MB
)

// Deps holds the dependencies for the API server.
type Deps struct {
	Service      *service.Service
	Accounts     *auth.Accounts
	Tokens       *auth.TokenIssuer
	Policy       *auth.Policy
	Reports      *reports.Runner
	Hub          streaming.EventHub
	Logger       *slog.Logger
	CookieName   string
	CookieSecure bool
	MaxBodyBytes int64
}

// Server routes API requests to the service layer.
type Server struct {
	deps Deps
}

// NewServer creates a new Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if deps.CookieName == "" {
		deps.CookieName = defaultCookieName
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Accounts.
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("GET /api/auth/me", s.authenticated("", s.handleMe))

	mux.Handle("GET /api/users", s.authenticated(auth.ActionUsersManage, s.handleListUsers))
	mux.Handle("POST /api/users", s.authenticated(auth.ActionUsersManage, s.handleCreateUser))
	mux.Handle("PUT /api/users/{id}/role", s.authenticated(auth.ActionUsersManage, s.handleUpdateUserRole))
	mux.Handle("DELETE /api/users/{id}", s.authenticated(auth.ActionUsersManage, s.handleDeleteUser))

	// Folders.
	mux.Handle("GET /api/folders", s.authenticated(auth.ActionDocumentsRead, s.handleListFolders))
	mux.Handle("POST /api/folders", s.authenticated(auth.ActionDocumentsWrite, s.handleCreateFolder))
	mux.Handle("PUT /api/folders/{id}", s.authenticated(auth.ActionDocumentsWrite, s.handleUpdateFolder))
	mux.Handle("DELETE /api/folders/{id}", s.authenticated(auth.ActionDocumentsDelete, s.handleDeleteFolder))

	// Documents.
	mux.Handle("GET /api/documents", s.authenticated(auth.ActionDocumentsRead, s.handleListDocuments))
	mux.Handle("POST /api/documents", s.authenticated(auth.ActionDocumentsWrite, s.handleCreateDocument))
	mux.Handle("GET /api/documents/{id}", s.authenticated(auth.ActionDocumentsRead, s.handleGetDocument))
	mux.Handle("PUT /api/documents/{id}", s.authenticated(auth.ActionDocumentsWrite, s.handleUpdateDocument))
	mux.Handle("DELETE /api/documents/{id}", s.authenticated(auth.ActionDocumentsDelete, s.handleDeleteDocument))
	mux.Handle("GET /api/documents/{id}/metadata", s.authenticated(auth.ActionDocumentsRead, s.handleGetMetadata))
	mux.Handle("PUT /api/documents/{id}/metadata", s.authenticated(auth.ActionDocumentsWrite, s.handlePutMetadata))
	mux.Handle("GET /api/documents/{id}/latex", s.authenticated(auth.ActionDocumentsRead, s.handleExportLaTeX))
	mux.Handle("GET /api/documents/{id}/pdf", s.authenticated(auth.ActionDocumentsRead, s.handleExportPDF))
	mux.Handle("GET /api/documents/{id}/zip", s.authenticated(auth.ActionDocumentsRead, s.handleExportZIP))
	mux.Handle("GET /api/documents/{id}/preview", s.authenticated(auth.ActionDocumentsRead, s.handlePreview))
	mux.Handle("POST /api/convert", s.authenticated(auth.ActionDocumentsRead, s.handleConvert))

	// Catalogues.
	mux.Handle("GET /api/standards", s.authenticated(auth.ActionDocumentsRead, s.handleListStandards))
	mux.Handle("POST /api/standards", s.authenticated(auth.ActionCatalogueWrite, s.handleUpsertStandard))
	mux.Handle("DELETE /api/standards/{id}", s.authenticated(auth.ActionCatalogueWrite, s.handleDeleteStandard))
	mux.Handle("POST /api/standards/import", s.authenticated(auth.ActionCatalogueWrite, s.handleImportCatalogue))
	mux.Handle("GET /api/kpis", s.authenticated(auth.ActionDocumentsRead, s.handleListKPIs))
	mux.Handle("POST /api/kpis", s.authenticated(auth.ActionCatalogueWrite, s.handleUpsertKPI))
	mux.Handle("GET /api/kpis/summary", s.authenticated(auth.ActionReportsRun, s.handleKPISummary))
	mux.Handle("DELETE /api/kpis/{id}", s.authenticated(auth.ActionCatalogueWrite, s.handleDeleteKPI))
	mux.Handle("GET /api/kpis/{id}/measurements", s.authenticated(auth.ActionDocumentsRead, s.handleListMeasurements))
	mux.Handle("POST /api/kpis/{id}/measurements", s.authenticated(auth.ActionDocumentsWrite, s.handleRecordMeasurement))

	// Reports & activity.
	mux.Handle("GET /api/reports", s.authenticated(auth.ActionReportsRun, s.handleListReports))
	mux.Handle("GET /api/reports/{name}", s.authenticated(auth.ActionReportsRun, s.handleRunReport))
	mux.Handle("POST /api/reports/query", s.authenticated(auth.ActionReportsRun, s.handleQueryReport))
	mux.Handle("GET /api/activity", s.authenticated(auth.ActionDocumentsRead, s.handleListActivity))

	// SSE stream.
	mux.Handle("GET /sse/events", s.authenticated(auth.ActionDocumentsRead, s.handleSSE))

	return s.recoverer(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
