package service

import (
	"context"
	"log/slog"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/diagram"
	"github.com/rendis/procdoc/internal/export"
	"github.com/rendis/procdoc/internal/latex"
	"github.com/rendis/procdoc/internal/logging"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

// ConvertInput is a stateless BPMN conversion request.
type ConvertInput struct {
	XML      string                   `json:"xml"`
	FileName string                   `json:"file_name"`
	Metadata *schema.DocumentMetadata `json:"metadata,omitempty"`
}

// File is a generated download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Convert renders BPMN XML to LaTeX using the tenant catalogues. tenantID may
// be empty, in which case the standards and KPI sections stay empty.
func (s *Service) Convert(ctx context.Context, tenantID string, in ConvertInput) (string, error) {
	req := latex.Request{XML: in.XML, FileName: in.FileName}
	if in.Metadata != nil {
		if err := s.deps.Validator.Validate(in.Metadata, nil).ToError(); err != nil {
			return "", err
		}
		req.Metadata = *in.Metadata
	}
	if tenantID != "" {
		var err error
		if req.Standards, err = s.deps.Store.ListStandards(ctx, tenantID); err != nil {
			return "", err
		}
		if req.KPIs, err = s.deps.Store.ListKPIs(ctx, tenantID); err != nil {
			return "", err
		}
	}

	out, convErr := latex.ConvertDetailed(req)
	if convErr != nil {
		s.deps.Logger.WarnContext(ctx, "bpmn conversion fell back",
			slog.String("file_name", in.FileName),
			slog.String("error", convErr.Error()),
		)
	}
	return out, nil
}

// RenderLaTeX returns the LaTeX text of a document: BPMN diagrams are
// converted with their stored metadata, LaTeX documents are returned as is.
func (s *Service) RenderLaTeX(ctx context.Context, p auth.Principal, documentID string) (string, *store.Document, error) {
	doc, err := s.deps.Store.GetDocument(ctx, p.TenantID, documentID)
	if err != nil {
		return "", nil, err
	}
	if doc.Kind == schema.DocumentKindLatex {
		return doc.Content, doc, nil
	}

	meta, err := s.deps.Store.GetDocumentMetadata(ctx, p.TenantID, documentID)
	if err != nil {
		return "", nil, err
	}
	ctx = logging.WithDocumentID(ctx, documentID)
	out, err := s.Convert(ctx, p.TenantID, ConvertInput{XML: doc.Content, FileName: doc.Name, Metadata: meta})
	if err != nil {
		return "", nil, err
	}
	return out, doc, nil
}

// ExportLaTeX returns the document as a .tex download.
func (s *Service) ExportLaTeX(ctx context.Context, p auth.Principal, documentID string) (*File, error) {
	out, doc, err := s.RenderLaTeX(ctx, p, documentID)
	if err != nil {
		return nil, err
	}
	s.recordExport(ctx, p, doc, "latex")
	return &File{
		Name:        export.BaseName(doc.Name) + ".tex",
		ContentType: "application/x-tex; charset=utf-8",
		Data:        []byte(out),
	}, nil
}

// ExportPDF compiles the document through the external compiler.
func (s *Service) ExportPDF(ctx context.Context, p auth.Principal, documentID string) (*File, error) {
	out, doc, err := s.RenderLaTeX(ctx, p, documentID)
	if err != nil {
		return nil, err
	}
	pdf, err := s.compile(ctx, out)
	if err != nil {
		return nil, err
	}
	s.recordExport(ctx, p, doc, "pdf")
	return &File{
		Name:        export.BaseName(doc.Name) + ".pdf",
		ContentType: "application/pdf",
		Data:        pdf,
	}, nil
}

// ExportZIP bundles the LaTeX output, the BPMN source, the metadata and
// optionally the compiled PDF.
func (s *Service) ExportZIP(ctx context.Context, p auth.Principal, documentID string, includePDF bool) (*File, error) {
	out, doc, err := s.RenderLaTeX(ctx, p, documentID)
	if err != nil {
		return nil, err
	}

	b := &export.Bundle{
		Name:     doc.Name,
		LaTeX:    out,
		Source:   doc.Content,
		Kind:     doc.Kind,
		Modified: doc.UpdatedAt,
	}
	if doc.Kind == schema.DocumentKindBPMN {
		if b.Metadata, err = s.deps.Store.GetDocumentMetadata(ctx, p.TenantID, documentID); err != nil {
			return nil, err
		}
	}
	if includePDF {
		if b.PDF, err = s.compile(ctx, out); err != nil {
			return nil, err
		}
	}

	data, err := b.Zip()
	if err != nil {
		return nil, err
	}
	s.recordExport(ctx, p, doc, "zip")
	return &File{
		Name:        export.BaseName(doc.Name) + ".zip",
		ContentType: "application/zip",
		Data:        data,
	}, nil
}

// Preview renders a BPMN document as a diagram.
func (s *Service) Preview(ctx context.Context, p auth.Principal, documentID string, format diagram.Format) (*diagram.Preview, error) {
	doc, err := s.deps.Store.GetDocument(ctx, p.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Kind != schema.DocumentKindBPMN {
		return nil, schema.NewError(schema.ErrCodeValidation, "preview is available for BPMN documents only")
	}
	return diagram.RenderPreview(ctx, doc.Content, "", format)
}

func (s *Service) compile(ctx context.Context, source string) ([]byte, error) {
	if s.deps.Compiler == nil {
		return nil, schema.NewError(schema.ErrCodeCompile, "no PDF compiler configured")
	}
	pdf, err := s.deps.Compiler.Compile(ctx, source)
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "pdf compilation failed", slog.String("error", err.Error()))
		return nil, err
	}
	return pdf, nil
}

func (s *Service) recordExport(ctx context.Context, p auth.Principal, doc *store.Document, format string) {
	s.record(ctx, p, doc.ID, store.ActivityDocumentExported, map[string]any{
		"name":   doc.Name,
		"format": format,
	})
}
