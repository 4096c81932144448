package validation

import (
	"fmt"

	"github.com/rendis/procdoc/pkg/schema"
)

// Catalogue answers whether a standard or KPI id exists in the tenant's catalogues.
type Catalogue interface {
	HasStandard(id string) bool
	HasKPI(id string) bool
}

// CatalogueIDs is a Catalogue backed by id sets.
type CatalogueIDs struct {
	Standards map[string]bool
	KPIs      map[string]bool
}

// NewCatalogueIDs indexes the given catalogue entries.
func NewCatalogueIDs(standards []schema.Standard, kpis []schema.KPI) *CatalogueIDs {
	c := &CatalogueIDs{
		Standards: make(map[string]bool, len(standards)),
		KPIs:      make(map[string]bool, len(kpis)),
	}
	for _, s := range standards {
		c.Standards[s.ID] = true
	}
	for _, k := range kpis {
		c.KPIs[k.ID] = true
	}
	return c
}

func (c *CatalogueIDs) HasStandard(id string) bool { return c.Standards[id] }
func (c *CatalogueIDs) HasKPI(id string) bool      { return c.KPIs[id] }

// validateSemantic checks cross-references the schema cannot express.
// Duplicate selections are errors; ids missing from the catalogue are warnings,
// since generation silently skips them.
func validateSemantic(meta *schema.DocumentMetadata, cat Catalogue) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	checkSelection(result, "standard_ids", meta.StandardIDs, func(id string) bool {
		return cat == nil || cat.HasStandard(id)
	})
	checkSelection(result, "kpi_ids", meta.KPIIDs, func(id string) bool {
		return cat == nil || cat.HasKPI(id)
	})

	if meta.Sections != nil && *meta.Sections == (schema.SectionToggles{}) {
		result.AddWarning("sections", schema.IssueNoSections,
			"no sections enabled; the document will contain only the overview")
	}
	return result
}

func checkSelection(result *schema.ValidationResult, field string, ids []string, known func(string) bool) {
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		path := fmt.Sprintf("%s[%d]", field, i)
		if seen[id] {
			result.AddError(path, schema.IssueDuplicate, fmt.Sprintf("duplicate id %q", id))
			continue
		}
		seen[id] = true
		if !known(id) {
			result.AddWarning(path, schema.IssueUnknownRef, fmt.Sprintf("id %q is not in the catalogue", id))
		}
	}
}
