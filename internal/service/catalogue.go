package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/internal/store"
	"github.com/rendis/procdoc/pkg/schema"
)

// CatalogueFile is the YAML layout accepted by ImportCatalogue and the seed
// command.
type CatalogueFile struct {
	Standards []schema.Standard `yaml:"standards"`
	KPIs      []schema.KPI      `yaml:"kpis"`
}

// ImportResult counts the upserted catalogue entries.
type ImportResult struct {
	Standards int `json:"standards"`
	KPIs      int `json:"kpis"`
}

// ParseCatalogue decodes a YAML catalogue file. Unknown keys are rejected.
func ParseCatalogue(r io.Reader) (*CatalogueFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f CatalogueFile
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid catalogue YAML: %v", err).WithCause(err)
	}
	return &f, nil
}

// UpsertStandard creates or replaces a standard. A missing id is generated.
func (s *Service) UpsertStandard(ctx context.Context, p auth.Principal, std schema.Standard) (*schema.Standard, error) {
	if strings.TrimSpace(std.ID) == "" {
		std.ID = uuid.New().String()
	}
	if err := s.deps.Store.UpsertStandard(ctx, p.TenantID, &std); err != nil {
		return nil, err
	}
	s.record(ctx, p, "", store.ActivityCatalogueUpdated, map[string]any{"standard_id": std.ID})
	return &std, nil
}

// ListStandards returns the tenant's standards in catalogue order.
func (s *Service) ListStandards(ctx context.Context, p auth.Principal) ([]schema.Standard, error) {
	return s.deps.Store.ListStandards(ctx, p.TenantID)
}

// DeleteStandard removes a standard. Documents selecting it keep the id and
// report it as unknown on the next metadata save.
func (s *Service) DeleteStandard(ctx context.Context, p auth.Principal, id string) error {
	if err := s.deps.Store.DeleteStandard(ctx, p.TenantID, id); err != nil {
		return err
	}
	s.record(ctx, p, "", store.ActivityCatalogueUpdated, map[string]any{"standard_id": id, "deleted": true})
	return nil
}

// UpsertKPI creates or replaces a KPI after compiling its formula.
func (s *Service) UpsertKPI(ctx context.Context, p auth.Principal, k schema.KPI) (*schema.KPI, error) {
	if strings.TrimSpace(k.ID) == "" {
		k.ID = uuid.New().String()
	}
	if err := s.deps.KPIs.ValidateFormula(k.Formula); err != nil {
		return nil, err
	}
	if err := s.deps.Store.UpsertKPI(ctx, p.TenantID, &k); err != nil {
		return nil, err
	}
	s.record(ctx, p, "", store.ActivityCatalogueUpdated, map[string]any{"kpi_id": k.ID})
	return &k, nil
}

// ListKPIs returns the tenant's KPIs in catalogue order.
func (s *Service) ListKPIs(ctx context.Context, p auth.Principal) ([]schema.KPI, error) {
	return s.deps.Store.ListKPIs(ctx, p.TenantID)
}

// DeleteKPI removes a KPI.
func (s *Service) DeleteKPI(ctx context.Context, p auth.Principal, id string) error {
	if err := s.deps.Store.DeleteKPI(ctx, p.TenantID, id); err != nil {
		return err
	}
	s.record(ctx, p, "", store.ActivityCatalogueUpdated, map[string]any{"kpi_id": id, "deleted": true})
	return nil
}

// ImportCatalogue upserts every entry of a YAML catalogue file. Entries are
// checked before anything is written; ids are required in import files.
func (s *Service) ImportCatalogue(ctx context.Context, p auth.Principal, r io.Reader) (*ImportResult, error) {
	f, err := ParseCatalogue(r)
	if err != nil {
		return nil, err
	}

	for i, std := range f.Standards {
		if strings.TrimSpace(std.ID) == "" || strings.TrimSpace(std.Name) == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "standards[%d]: id and name are required", i).
				WithField(fmt.Sprintf("standards[%d]", i))
		}
	}
	for i, k := range f.KPIs {
		if strings.TrimSpace(k.ID) == "" || strings.TrimSpace(k.Name) == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "kpis[%d]: id and name are required", i).
				WithField(fmt.Sprintf("kpis[%d]", i))
		}
		if err := s.deps.KPIs.ValidateFormula(k.Formula); err != nil {
			return nil, err
		}
	}

	for i := range f.Standards {
		if err := s.deps.Store.UpsertStandard(ctx, p.TenantID, &f.Standards[i]); err != nil {
			return nil, err
		}
	}
	for i := range f.KPIs {
		if err := s.deps.Store.UpsertKPI(ctx, p.TenantID, &f.KPIs[i]); err != nil {
			return nil, err
		}
	}

	res := &ImportResult{Standards: len(f.Standards), KPIs: len(f.KPIs)}
	s.record(ctx, p, "", store.ActivityCatalogueUpdated, map[string]any{
		"imported_standards": res.Standards,
		"imported_kpis":      res.KPIs,
	})
	return res, nil
}
