package api

import (
	"net/http"

	"github.com/rendis/procdoc/internal/diagram"
	"github.com/rendis/procdoc/internal/service"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

// --- Folders ---

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("view") == "flat" {
		folders, err := s.deps.Service.ListFolders(r.Context(), principal(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
		return
	}
	tree, err := s.deps.Service.FolderTree(r.Context(), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": tree})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		ParentID string `json:"parent_id"`
	}
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	f, err := s.deps.Service.CreateFolder(r.Context(), principal(r), body.Name, body.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     *string `json:"name"`
		ParentID *string `json:"parent_id"`
	}
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	f, err := s.deps.Service.UpdateFolder(r.Context(), principal(r), r.PathValue("id"),
		store.FolderUpdate{Name: body.Name, ParentID: body.ParentID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Service.DeleteFolder(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "folder_id": id})
}

// --- Documents ---

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DocumentFilter{
		Kind:   schema.DocumentKind(q.Get("kind")),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	if q.Has("folder_id") {
		folderID := q.Get("folder_id")
		filter.FolderID = &folderID
	}
	docs, err := s.deps.Service.ListDocuments(r.Context(), principal(r), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []*store.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var body service.CreateDocumentInput
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.deps.Service.CreateDocument(r.Context(), principal(r), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Service.GetDocument(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	var body service.UpdateDocumentInput
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.deps.Service.UpdateDocument(r.Context(), principal(r), r.PathValue("id"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Service.DeleteDocument(r.Context(), principal(r), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "document_id": id})
}

// --- Metadata ---

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.deps.Service.GetMetadata(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handlePutMetadata(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readBody(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.deps.Service.PutMetadata(r.Context(), principal(r), r.PathValue("id"), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "warnings": result.Warnings})
}

// --- Export ---

func (s *Server) handleExportLaTeX(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Service.ExportLaTeX(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeFile(w, f)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Service.ExportPDF(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeFile(w, f)
}

func (s *Server) handleExportZIP(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Service.ExportZIP(r.Context(), principal(r), r.PathValue("id"), queryBool(r, "include_pdf"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeFile(w, f)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	format := diagram.Format(r.URL.Query().Get("format"))
	p, err := s.deps.Service.Preview(r.Context(), principal(r), r.PathValue("id"), format)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", p.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(p.Data)
}

// handleConvert converts BPMN XML without storing anything.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body service.ConvertInput
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.XML == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "xml is required").WithField("xml"))
		return
	}
	out, err := s.deps.Service.Convert(r.Context(), principal(r).TenantID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-tex; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}
