package validation

import (
	"strings"

	"github.com/rendis/procdoc/pkg/schema"
)

// MetadataValidator runs the two-stage metadata pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (catalogue references, duplicate selections)
type MetadataValidator struct {
	jsonSchema *JSONSchemaValidator
}

// NewMetadataValidator creates a MetadataValidator.
func NewMetadataValidator() (*MetadataValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &MetadataValidator{jsonSchema: jsv}, nil
}

// Validate returns the aggregated result. Structural errors short-circuit the
// semantic stage. cat may be nil to skip catalogue checks.
func (mv *MetadataValidator) Validate(meta *schema.DocumentMetadata, cat Catalogue) *schema.ValidationResult {
	if meta == nil {
		r := &schema.ValidationResult{}
		r.AddError("", schema.IssueSchema, "metadata is nil")
		return r
	}

	result := structural(mv.jsonSchema.ValidateMetadata(meta))
	if !result.Valid() {
		return result
	}
	result.Merge(validateSemantic(meta, cat))
	return result
}

// ValidateRaw checks a raw JSON body structurally before it is decoded.
func (mv *MetadataValidator) ValidateRaw(raw []byte) error {
	return mv.jsonSchema.ValidateRaw(raw)
}

func structural(err error) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err == nil {
		return result
	}

	se, ok := err.(*schema.Error)
	if !ok {
		result.AddError("", schema.IssueSchema, err.Error())
		return result
	}
	if violations, ok := se.Details["violations"].([]string); ok {
		for _, v := range violations {
			path, msg, ok := strings.Cut(v, ": ")
			if !ok {
				path, msg = "", v
			}
			if path == "/" {
				path = ""
			}
			result.AddError(path, schema.IssueSchema, msg)
		}
		return result
	}
	result.AddError(se.Field, schema.IssueSchema, se.Message)
	return result
}
