// Package service implements the document-management operations shared by
// the HTTP API and the MCP server. Every mutation is recorded in the
// tenant's activity log and published to the event hub.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/export"
	"github.com/rendis/procdoc/internal/kpi"
	"github.com/rendis/procdoc/internal/review"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/internal/streaming"
	"github.com/rendis/procdoc/internal/validation"
)

// Deps holds the collaborators of a Service. Hub and Compiler may be nil.
type Deps struct {
	Store     store.Store
	Hub       streaming.EventHub
	Validator *validation.MetadataValidator
	Reviews   *review.Scheduler
	KPIs      *kpi.Tracker
	Compiler  *export.Compiler
	Logger    *slog.Logger
}

// Service coordinates store writes with activity and event publication.
type Service struct {
	deps Deps
	now  func() time.Time
}

// New creates a Service.
func New(deps Deps) (*Service, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("service: store is required")
	case deps.Validator == nil:
		return nil, fmt.Errorf("service: metadata validator is required")
	case deps.Reviews == nil:
		return nil, fmt.Errorf("service: review scheduler is required")
	case deps.KPIs == nil:
		return nil, fmt.Errorf("service: kpi tracker is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Store exposes the underlying store for read-only callers.
func (s *Service) Store() store.Store { return s.deps.Store }

// record appends an activity entry and publishes the matching stream event.
// Failures are logged; the mutation itself already succeeded.
func (s *Service) record(ctx context.Context, p auth.Principal, documentID, activityType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.deps.Logger.ErrorContext(ctx, "failed to encode activity payload",
			slog.String("type", activityType),
			slog.String("error", err.Error()),
		)
		return
	}

	entry := &store.Activity{
		TenantID:   p.TenantID,
		DocumentID: documentID,
		UserID:     p.UserID,
		Type:       activityType,
		Payload:    data,
		Timestamp:  s.now(),
	}
	if err := s.deps.Store.AppendActivity(ctx, entry); err != nil {
		s.deps.Logger.ErrorContext(ctx, "failed to append activity",
			slog.String("type", activityType),
			slog.String("error", err.Error()),
		)
	}

	if s.deps.Hub != nil {
		_ = s.deps.Hub.Publish(ctx, streaming.StreamEvent{
			TenantID:   p.TenantID,
			DocumentID: documentID,
			EventType:  activityType,
			Payload:    json.RawMessage(data),
		})
	}
}

// ListActivity returns the caller's tenant activity log.
func (s *Service) ListActivity(ctx context.Context, p auth.Principal, filter store.ActivityFilter) ([]*store.Activity, error) {
	filter.TenantID = p.TenantID
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.deps.Store.ListActivity(ctx, filter)
}
