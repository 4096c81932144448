package service

import (
	"context"
	"encoding/json"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/internal/validation"
	"github.com/rendis/procdoc/pkg/schema"
)

// GetMetadata returns a document's metadata, empty when none was saved.
func (s *Service) GetMetadata(ctx context.Context, p auth.Principal, documentID string) (*schema.DocumentMetadata, error) {
	return s.deps.Store.GetDocumentMetadata(ctx, p.TenantID, documentID)
}

// PutMetadata validates a raw metadata body against the schema and the
// tenant catalogues, then stores it. The returned result carries warnings
// such as unknown catalogue ids.
func (s *Service) PutMetadata(ctx context.Context, p auth.Principal, documentID string, raw []byte) (*schema.ValidationResult, error) {
	doc, err := s.deps.Store.GetDocument(ctx, p.TenantID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Kind != schema.DocumentKindBPMN {
		return nil, schema.NewError(schema.ErrCodeValidation, "metadata applies to BPMN documents only").
			WithDetails(map[string]any{"kind": doc.Kind})
	}

	if err := s.deps.Validator.ValidateRaw(raw); err != nil {
		return nil, err
	}
	meta := &schema.DocumentMetadata{}
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid metadata JSON").WithCause(err)
	}

	cat, err := s.catalogueIDs(ctx, p.TenantID)
	if err != nil {
		return nil, err
	}
	result := s.deps.Validator.Validate(meta, cat)
	if err := result.ToError(); err != nil {
		return result, err
	}

	if err := s.deps.Store.PutDocumentMetadata(ctx, p.TenantID, documentID, meta); err != nil {
		return nil, err
	}
	s.record(ctx, p, documentID, store.ActivityMetadataUpdated, map[string]any{
		"warnings": len(result.Warnings),
	})
	return result, nil
}

func (s *Service) catalogueIDs(ctx context.Context, tenantID string) (*validation.CatalogueIDs, error) {
	standards, err := s.deps.Store.ListStandards(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	kpis, err := s.deps.Store.ListKPIs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return validation.NewCatalogueIDs(standards, kpis), nil
}
