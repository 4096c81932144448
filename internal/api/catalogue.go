package api

import (
	"net/http"

	"github.com/rendis/procdoc/internal/service"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

func (s *Server) handleListStandards(w http.ResponseWriter, r *http.Request) {
	standards, err := s.deps.Service.ListStandards(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if standards == nil {
		standards = []schema.Standard{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"standards": standards})
}

func (s *Server) handleUpsertStandard(w http.ResponseWriter, r *http.Request) {
	var body schema.Standard
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	std, err := s.deps.Service.UpsertStandard(r.Context(), principal(r), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, std)
}

func (s *Server) handleDeleteStandard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Service.DeleteStandard(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "standard_id": id})
}

// handleImportCatalogue accepts a YAML catalogue file with standards and KPIs.
func (s *Server) handleImportCatalogue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxBodyBytes)
	res, err := s.deps.Service.ImportCatalogue(r.Context(), principal(r), r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := s.deps.Service.ListKPIs(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if kpis == nil {
		kpis = []schema.KPI{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"kpis": kpis})
}

func (s *Server) handleUpsertKPI(w http.ResponseWriter, r *http.Request) {
	var body schema.KPI
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	k, err := s.deps.Service.UpsertKPI(r.Context(), principal(r), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, k)
}

func (s *Server) handleDeleteKPI(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Service.DeleteKPI(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "kpi_id": id})
}

func (s *Server) handleKPISummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.deps.Service.KPISummaries(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}

func (s *Server) handleRecordMeasurement(w http.ResponseWriter, r *http.Request) {
	var body service.MeasurementInput
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	m, err := s.deps.Service.RecordMeasurement(r.Context(), principal(r), r.PathValue("id"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	ms, err := s.deps.Service.ListMeasurements(r.Context(), principal(r), r.PathValue("id"), since, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	if ms == nil {
		ms = []*store.Measurement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"measurements": ms})
}
