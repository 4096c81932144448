package validation

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rendis/procdoc/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v.metadataSchema)
}

func TestValidateMetadata_Nil(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateMetadata(nil)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestValidateMetadata_Valid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	meta := &schema.DocumentMetadata{
		Process: &schema.ProcessMetadata{
			ProcessName:   "Employee Onboarding",
			ProcessOwner:  "HR",
			EffectiveDate: "2026-03-01",
		},
		StandardIDs: []string{"iso9001"},
		SignOffs:    []schema.SignOff{{Role: "Owner", Name: "Ana", Status: "approved"}},
		Sections:    &schema.SectionToggles{ProcessTable: true, SignOffTable: true},
	}
	assert.NoError(t, v.ValidateMetadata(meta))
	assert.NoError(t, v.ValidateMetadata(&schema.DocumentMetadata{}))
}

func TestValidateMetadata_BadDateAndStatus(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	meta := &schema.DocumentMetadata{
		Process:  &schema.ProcessMetadata{EffectiveDate: "01/03/2026"},
		SignOffs: []schema.SignOff{{Status: "maybe"}},
	}
	err = v.ValidateMetadata(meta)
	require.Error(t, err)

	var se *schema.Error
	require.ErrorAs(t, err, &se)
	violations, ok := se.Details["violations"].([]string)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(violations), 2)
	assert.Contains(t, se.Message, "validation failed")
}

func TestValidateRaw(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"empty object", `{}`, false},
		{"sections", `{"sections":{"kpi_table":true}}`, false},
		{"unknown top-level key", `{"colour":"red"}`, true},
		{"unknown section", `{"sections":{"gantt_table":true}}`, true},
		{"wrong type", `{"standard_ids":"iso9001"}`, true},
		{"empty id", `{"kpi_ids":[""]}`, true},
		{"not json", `{"process":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRaw(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, v.ValidateRaw(nil))
}

func TestValidateRaw_ViolationLocation(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateRaw(json.RawMessage(`{"history":[{"date":"yesterday"}]}`))
	var se *schema.Error
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "/history/0/date")
}

func TestValidateMetadata_Concurrent(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.ValidateMetadata(&schema.DocumentMetadata{KPIIDs: []string{"sla"}}))
		}()
	}
	wg.Wait()
}
