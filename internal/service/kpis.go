package service

import (
	"context"
	"time"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/kpi"
	"github.com/rendis/procdoc/internal/store"
)

// MeasurementInput is one value to record against a KPI.
type MeasurementInput struct {
	Value      float64    `json:"value"`
	Period     string     `json:"period,omitempty"`
	DocumentID string     `json:"document_id,omitempty"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
}

// RecordedMeasurement is a stored measurement with its evaluated status.
type RecordedMeasurement struct {
	*store.Measurement
	Status kpi.Status `json:"status"`
}

// RecordMeasurement stores a value for kpiID. A referenced document must exist.
func (s *Service) RecordMeasurement(ctx context.Context, p auth.Principal, kpiID string, in MeasurementInput) (*RecordedMeasurement, error) {
	if in.DocumentID != "" {
		if _, err := s.deps.Store.GetDocument(ctx, p.TenantID, in.DocumentID); err != nil {
			return nil, err
		}
	}
	m := &store.Measurement{
		KPIID:      kpiID,
		DocumentID: in.DocumentID,
		Value:      in.Value,
		Period:     in.Period,
	}
	if in.RecordedAt != nil {
		m.RecordedAt = in.RecordedAt.UTC()
	}

	status, err := s.deps.KPIs.Record(ctx, p.TenantID, m)
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, in.DocumentID, store.ActivityMeasurementRecorded, map[string]any{
		"kpi_id": kpiID,
		"value":  m.Value,
		"status": status,
	})
	return &RecordedMeasurement{Measurement: m, Status: status}, nil
}

// ListMeasurements returns a KPI's measurements, oldest first.
func (s *Service) ListMeasurements(ctx context.Context, p auth.Principal, kpiID string, since *time.Time, limit int) ([]*store.Measurement, error) {
	if _, err := s.deps.Store.GetKPI(ctx, p.TenantID, kpiID); err != nil {
		return nil, err
	}
	return s.deps.Store.ListMeasurements(ctx, store.MeasurementFilter{
		TenantID: p.TenantID,
		KPIID:    kpiID,
		Since:    since,
		Limit:    limit,
	})
}

// KPISummaries returns one summary per catalogue KPI.
func (s *Service) KPISummaries(ctx context.Context, p auth.Principal) ([]kpi.Summary, error) {
	return s.deps.KPIs.Summaries(ctx, p.TenantID)
}
