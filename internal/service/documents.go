package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/bpmn"
	"github.com/rendis/procdoc/internal/logging"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

// CreateDocumentInput holds the fields of a new document.
type CreateDocumentInput struct {
	FolderID   string              `json:"folder_id,omitempty"`
	Kind       schema.DocumentKind `json:"kind"`
	Name       string              `json:"name"`
	Content    string              `json:"content,omitempty"`
	ReviewCron string              `json:"review_cron,omitempty"`
}

// UpdateDocumentInput holds the document fields to change. Nil fields are
// left untouched; an empty ReviewCron clears the review schedule and an
// empty FolderID moves the document to the root.
type UpdateDocumentInput struct {
	Name       *string `json:"name,omitempty"`
	Content    *string `json:"content,omitempty"`
	FolderID   *string `json:"folder_id,omitempty"`
	ReviewCron *string `json:"review_cron,omitempty"`
}

// checkContent rejects BPMN content that does not parse. Empty content is a
// blank diagram.
func checkContent(kind schema.DocumentKind, content string) error {
	if kind != schema.DocumentKindBPMN || strings.TrimSpace(content) == "" {
		return nil
	}
	if _, err := bpmn.Parse(content); err != nil {
		return schema.NewError(schema.ErrCodeValidation, "content is not a BPMN diagram").
			WithField("content").
			WithCause(err)
	}
	return nil
}

// CreateDocument stores a new document owned by the caller.
func (s *Service) CreateDocument(ctx context.Context, p auth.Principal, in CreateDocumentInput) (*store.Document, error) {
	if !in.Kind.Valid() {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid document kind %q", in.Kind).WithField("kind")
	}
	if err := checkContent(in.Kind, in.Content); err != nil {
		return nil, err
	}

	doc := &store.Document{
		ID:       uuid.New().String(),
		TenantID: p.TenantID,
		FolderID: in.FolderID,
		Kind:     in.Kind,
		Name:     strings.TrimSpace(in.Name),
		Content:  in.Content,
		OwnerID:  p.UserID,
	}
	if in.ReviewCron != "" {
		plan, err := s.deps.Reviews.Plan(in.ReviewCron)
		if err != nil {
			return nil, err
		}
		doc.ReviewCron = in.ReviewCron
		doc.NextReviewAt = plan.NextReviewAt
	}
	if err := s.deps.Store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	ctx = logging.WithDocumentID(ctx, doc.ID)
	s.deps.Logger.InfoContext(ctx, "document created", slog.String("kind", string(doc.Kind)))
	s.record(ctx, p, doc.ID, store.ActivityDocumentCreated, map[string]any{
		"name": doc.Name,
		"kind": doc.Kind,
	})
	return doc, nil
}

// GetDocument returns one document with its content.
func (s *Service) GetDocument(ctx context.Context, p auth.Principal, id string) (*store.Document, error) {
	return s.deps.Store.GetDocument(ctx, p.TenantID, id)
}

// ListDocuments lists the caller's tenant documents without their content.
func (s *Service) ListDocuments(ctx context.Context, p auth.Principal, filter store.DocumentFilter) ([]*store.Document, error) {
	filter.TenantID = p.TenantID
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid document kind %q", filter.Kind).WithField("kind")
	}
	docs, err := s.deps.Store.ListDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		d.Content = ""
	}
	return docs, nil
}

// UpdateDocument applies in and returns the updated document.
func (s *Service) UpdateDocument(ctx context.Context, p auth.Principal, id string, in UpdateDocumentInput) (*store.Document, error) {
	current, err := s.deps.Store.GetDocument(ctx, p.TenantID, id)
	if err != nil {
		return nil, err
	}

	update := store.DocumentUpdate{Content: in.Content, FolderID: in.FolderID}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		update.Name = &name
	}
	if in.Content != nil {
		if err := checkContent(current.Kind, *in.Content); err != nil {
			return nil, err
		}
	}
	if in.ReviewCron != nil {
		plan, err := s.deps.Reviews.Plan(strings.TrimSpace(*in.ReviewCron))
		if err != nil {
			return nil, err
		}
		update.ReviewCron = plan.ReviewCron
		update.NextReviewAt = plan.NextReviewAt
		update.ClearReview = plan.ClearReview
	}

	if err := s.deps.Store.UpdateDocument(ctx, p.TenantID, id, update); err != nil {
		return nil, err
	}
	doc, err := s.deps.Store.GetDocument(ctx, p.TenantID, id)
	if err != nil {
		return nil, err
	}

	s.record(ctx, p, doc.ID, store.ActivityDocumentUpdated, map[string]any{
		"name":    doc.Name,
		"changed": changedFields(in),
	})
	return doc, nil
}

func changedFields(in UpdateDocumentInput) []string {
	var out []string
	if in.Name != nil {
		out = append(out, "name")
	}
	if in.Content != nil {
		out = append(out, "content")
	}
	if in.FolderID != nil {
		out = append(out, "folder_id")
	}
	if in.ReviewCron != nil {
		out = append(out, "review_cron")
	}
	return out
}

// DeleteDocument removes a document and its metadata.
func (s *Service) DeleteDocument(ctx context.Context, p auth.Principal, id string) error {
	doc, err := s.deps.Store.GetDocument(ctx, p.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.deps.Store.DeleteDocument(ctx, p.TenantID, id); err != nil {
		return err
	}
	s.record(ctx, p, id, store.ActivityDocumentDeleted, map[string]any{"name": doc.Name})
	return nil
}
