package api

import (
	"net/http"

	"github.com/rendis/procdoc/internal/reports"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports.Builtins()})
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	out, err := s.deps.Reports.Run(r.Context(), principal(r).TenantID, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": name, "result": out})
}

// handleQueryReport evaluates a custom jq expression against the tenant snapshot.
func (s *Server) handleQueryReport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Query == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "query is required").WithField("query"))
		return
	}
	out, err := s.deps.Reports.Query(r.Context(), principal(r).TenantID, body.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": out})
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	entries, err := s.deps.Service.ListActivity(r.Context(), principal(r), store.ActivityFilter{
		DocumentID: q.Get("document_id"),
		Type:       q.Get("type"),
		Since:      since,
		AfterSeq:   int64(queryInt(r, "after_seq", 0)),
		Limit:      queryInt(r, "limit", 100),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*store.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
