// Package reports runs built-in and ad-hoc jq reports over a tenant snapshot.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/rendis/procdoc/internal/expressions"
	"github.com/rendis/procdoc/internal/kpi"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

// Built-in report names.
const (
	ReportDocumentsByKind = "documents_by_kind"
	ReportKPIStatus       = "kpi_status"
	ReportReviewsDue      = "reviews_due"
)

const timeLayout = "2006-01-02T15:04:05Z"

// builtinQueries are the built-in reports expressible as plain jq.
var builtinQueries = map[string]string{
	ReportDocumentsByKind: `.documents | group_by(.kind) | map({kind: .[0].kind, count: length})`,
	ReportReviewsDue: `. as $s | [.documents[]
		| select(.next_review_at != null and .next_review_at <= $s.generated_at)
		| {id, name, review_cron, next_review_at}] | sort_by(.next_review_at)`,
}

// Runner evaluates reports for one tenant at a time.
type Runner struct {
	store store.Store
	jq    *expressions.GoJQEngine
	kpis  *kpi.Tracker
	now   func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(s store.Store, jq *expressions.GoJQEngine, kpis *kpi.Tracker) *Runner {
	return &Runner{store: s, jq: jq, kpis: kpis, now: func() time.Time { return time.Now().UTC() }}
}

// Builtins lists the built-in report names.
func Builtins() []string {
	names := []string{ReportKPIStatus}
	for name := range builtinQueries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a built-in report by name.
func (r *Runner) Run(ctx context.Context, tenantID, name string) (any, error) {
	if name == ReportKPIStatus {
		return r.kpis.Summaries(ctx, tenantID)
	}
	query, ok := builtinQueries[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "report %q not found", name).
			WithDetails(map[string]any{"available": Builtins()})
	}
	return r.Query(ctx, tenantID, query)
}

// Query evaluates a jq expression against the tenant snapshot.
func (r *Runner) Query(ctx context.Context, tenantID, expression string) (any, error) {
	snap, err := r.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out, err := r.jq.Evaluate(ctx, expression, snap)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return []any{}, nil
	}
	return out, nil
}

// Snapshot builds the jq input: {generated_at, documents, standards, kpis, measurements}.
// Document content is omitted.
func (r *Runner) Snapshot(ctx context.Context, tenantID string) (map[string]any, error) {
	docs, err := r.store.ListDocuments(ctx, store.DocumentFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}
	standards, err := r.store.ListStandards(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	kpis, err := r.store.ListKPIs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	ms, err := r.store.ListMeasurements(ctx, store.MeasurementFilter{TenantID: tenantID})
	if err != nil {
		return nil, err
	}

	docList := make([]any, 0, len(docs))
	for _, d := range docs {
		docList = append(docList, map[string]any{
			"id":             d.ID,
			"name":           d.Name,
			"kind":           string(d.Kind),
			"folder_id":      nullable(d.FolderID),
			"owner_id":       d.OwnerID,
			"review_cron":    nullable(d.ReviewCron),
			"next_review_at": formatTime(d.NextReviewAt),
			"created_at":     d.CreatedAt.UTC().Format(timeLayout),
			"updated_at":     d.UpdatedAt.UTC().Format(timeLayout),
		})
	}

	stdList := make([]any, 0, len(standards))
	for _, s := range standards {
		stdList = append(stdList, map[string]any{
			"id": s.ID, "code": s.Code, "name": s.Name, "category": s.Category,
		})
	}

	kpiList := make([]any, 0, len(kpis))
	for _, k := range kpis {
		var target any
		if k.Target != nil {
			target = *k.Target
		}
		kpiList = append(kpiList, map[string]any{
			"id": k.ID, "name": k.Name, "unit": k.Unit, "target": target, "frequency": k.Frequency,
		})
	}

	msList := make([]any, 0, len(ms))
	for _, m := range ms {
		msList = append(msList, map[string]any{
			"kpi_id":      m.KPIID,
			"document_id": nullable(m.DocumentID),
			"value":       m.Value,
			"period":      m.Period,
			"recorded_at": m.RecordedAt.UTC().Format(timeLayout),
		})
	}

	return map[string]any{
		"generated_at": r.now().UTC().Format(timeLayout),
		"documents":    docList,
		"standards":    stdList,
		"kpis":         kpiList,
		"measurements": msList,
	}, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
