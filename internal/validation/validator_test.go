package validation

import (
	"testing"

	"github.com/rendis/procdoc/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalogue() *CatalogueIDs {
	return NewCatalogueIDs(
		[]schema.Standard{{ID: "iso9001", Name: "ISO 9001"}},
		[]schema.KPI{{ID: "sla", Name: "SLA"}},
	)
}

func TestMetadataValidator_Valid(t *testing.T) {
	mv, err := NewMetadataValidator()
	require.NoError(t, err)

	res := mv.Validate(&schema.DocumentMetadata{
		StandardIDs: []string{"iso9001"},
		KPIIDs:      []string{"sla"},
	}, testCatalogue())
	assert.True(t, res.Valid())
	assert.Empty(t, res.Warnings)
	assert.NoError(t, res.ToError())
}

func TestMetadataValidator_UnknownIDsWarn(t *testing.T) {
	mv, err := NewMetadataValidator()
	require.NoError(t, err)

	res := mv.Validate(&schema.DocumentMetadata{
		StandardIDs: []string{"soc2"},
		KPIIDs:      []string{"sla", "nps"},
	}, testCatalogue())
	assert.True(t, res.Valid())
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "standard_ids[0]", res.Warnings[0].Path)
	assert.Equal(t, "kpi_ids[1]", res.Warnings[1].Path)
	assert.Equal(t, schema.IssueUnknownRef, res.Warnings[1].Code)
}

func TestMetadataValidator_DuplicatesAreErrors(t *testing.T) {
	mv, err := NewMetadataValidator()
	require.NoError(t, err)

	res := mv.Validate(&schema.DocumentMetadata{KPIIDs: []string{"sla", "sla"}}, nil)
	assert.False(t, res.Valid())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "kpi_ids[1]", res.Errors[0].Path)
	assert.Equal(t, schema.IssueDuplicate, res.Errors[0].Code)

	var se *schema.Error
	require.ErrorAs(t, res.ToError(), &se)
	assert.Equal(t, schema.ErrCodeValidation, se.Code)
	assert.Equal(t, "kpi_ids[1]", se.Field)
}

func TestMetadataValidator_StructuralShortCircuits(t *testing.T) {
	mv, err := NewMetadataValidator()
	require.NoError(t, err)

	res := mv.Validate(&schema.DocumentMetadata{
		Process: &schema.ProcessMetadata{EffectiveDate: "soon"},
		KPIIDs:  []string{"sla", "sla"},
	}, testCatalogue())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "/process/effective_date", res.Errors[0].Path)
	assert.Equal(t, schema.IssueSchema, res.Errors[0].Code)
}

func TestMetadataValidator_AllSectionsOffWarns(t *testing.T) {
	mv, err := NewMetadataValidator()
	require.NoError(t, err)

	res := mv.Validate(&schema.DocumentMetadata{Sections: &schema.SectionToggles{}}, nil)
	assert.True(t, res.Valid())
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "sections", res.Warnings[0].Path)
}

func TestMetadataValidator_Nil(t *testing.T) {
	mv, err := NewMetadataValidator()
	require.NoError(t, err)
	assert.False(t, mv.Validate(nil, nil).Valid())
}
