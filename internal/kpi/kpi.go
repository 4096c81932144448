// Package kpi evaluates KPI measurements against their catalogue targets.
package kpi

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/procdoc/internal/expressions"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

// Status is the outcome of evaluating a measurement.
type Status string

const (
	StatusMet     Status = "met"
	StatusMissed  Status = "missed"
	StatusUnknown Status = "unknown"
)

// DefaultFormula applies when a KPI has no formula of its own.
const DefaultFormula = "value >= target"

// Summary describes one KPI's latest state.
type Summary struct {
	KPI    schema.KPI         `json:"kpi"`
	Count  int                `json:"count"`
	Latest *store.Measurement `json:"latest,omitempty"`
	Status Status             `json:"status"`
}

// Tracker records measurements and evaluates KPI status.
type Tracker struct {
	store  store.Store
	engine *expressions.ExprEngine
	logger *slog.Logger
}

// NewTracker creates a Tracker.
func NewTracker(s store.Store, engine *expressions.ExprEngine, logger *slog.Logger) *Tracker {
	return &Tracker{store: s, engine: engine, logger: logger}
}

func formulaOf(k schema.KPI) string {
	if f := strings.TrimSpace(k.Formula); f != "" {
		return f
	}
	return DefaultFormula
}

func env(value, target float64) map[string]any {
	return map[string]any{"value": value, "target": target}
}

// ValidateFormula compiles a formula against the KPI environment.
// An empty formula is valid and means DefaultFormula.
func (t *Tracker) ValidateFormula(formula string) error {
	if strings.TrimSpace(formula) == "" {
		return nil
	}
	if err := t.engine.Check(formula, env(0, 0)); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid kpi formula %q", formula).
			WithField("formula").
			WithCause(err)
	}
	return nil
}

// Evaluate returns the status of value for k. A KPI without a target, or a
// formula that fails or does not return a bool, yields StatusUnknown.
func (t *Tracker) Evaluate(ctx context.Context, k schema.KPI, value float64) Status {
	if k.Target == nil {
		return StatusUnknown
	}
	ok, err := t.engine.EvaluateBool(ctx, formulaOf(k), env(value, *k.Target))
	if err != nil {
		t.logger.Warn("kpi formula evaluation failed",
			slog.String("kpi_id", k.ID),
			slog.String("error", err.Error()),
		)
		return StatusUnknown
	}
	if ok {
		return StatusMet
	}
	return StatusMissed
}

// Record stores a measurement for kpiID and returns it with its evaluated status.
func (t *Tracker) Record(ctx context.Context, tenantID string, m *store.Measurement) (Status, error) {
	k, err := t.store.GetKPI(ctx, tenantID, m.KPIID)
	if err != nil {
		return StatusUnknown, err
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.TenantID = tenantID
	if err := t.store.RecordMeasurement(ctx, m); err != nil {
		return StatusUnknown, err
	}
	return t.Evaluate(ctx, *k, m.Value), nil
}

// Summaries returns one Summary per catalogue KPI, in catalogue order.
func (t *Tracker) Summaries(ctx context.Context, tenantID string) ([]Summary, error) {
	kpis, err := t.store.ListKPIs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	ms, err := t.store.ListMeasurements(ctx, store.MeasurementFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	return t.Summarize(ctx, kpis, ms), nil
}

// Summarize folds measurements (oldest first) into per-KPI summaries.
func (t *Tracker) Summarize(ctx context.Context, kpis []schema.KPI, ms []*store.Measurement) []Summary {
	counts := make(map[string]int, len(kpis))
	latest := make(map[string]*store.Measurement, len(kpis))
	for _, m := range ms {
		counts[m.KPIID]++
		latest[m.KPIID] = m
	}

	out := make([]Summary, 0, len(kpis))
	for _, k := range kpis {
		s := Summary{KPI: k, Count: counts[k.ID], Latest: latest[k.ID], Status: StatusUnknown}
		if s.Latest != nil {
			s.Status = t.Evaluate(ctx, k, s.Latest.Value)
		}
		out = append(out, s)
	}
	return out
}
