package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/procdoc/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const metadataSchemaURL = "https://procdoc.dev/schemas/document-metadata.json"

// metadataSchemaJSON is the JSON Schema for DocumentMetadata.
const metadataSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://procdoc.dev/schemas/document-metadata.json",
  "type": "object",
  "properties": {
    "process": {
      "type": "object",
      "properties": {
        "process_name": { "$ref": "#/$defs/text" },
        "process_owner": { "$ref": "#/$defs/text" },
        "department": { "$ref": "#/$defs/text" },
        "version": { "type": "string", "maxLength": 32 },
        "effective_date": { "$ref": "#/$defs/date" },
        "author": { "$ref": "#/$defs/text" },
        "description": { "type": "string", "maxLength": 4000 }
      },
      "additionalProperties": false
    },
    "advanced": {
      "type": "object",
      "properties": {
        "purpose": { "$ref": "#/$defs/long_text" },
        "scope": { "$ref": "#/$defs/long_text" },
        "inputs": { "$ref": "#/$defs/long_text" },
        "outputs": { "$ref": "#/$defs/long_text" },
        "frequency": { "$ref": "#/$defs/text" },
        "dependencies": { "$ref": "#/$defs/long_text" },
        "risks": { "$ref": "#/$defs/long_text" }
      },
      "additionalProperties": false
    },
    "standard_ids": { "$ref": "#/$defs/id_list" },
    "kpi_ids": { "$ref": "#/$defs/id_list" },
    "sign_offs": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "role": { "$ref": "#/$defs/text" },
          "name": { "$ref": "#/$defs/text" },
          "date": { "$ref": "#/$defs/date" },
          "status": { "type": "string", "enum": ["", "pending", "approved", "rejected"] }
        },
        "additionalProperties": false
      }
    },
    "history": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "version": { "type": "string", "maxLength": 32 },
          "date": { "$ref": "#/$defs/date" },
          "author": { "$ref": "#/$defs/text" },
          "changes": { "$ref": "#/$defs/long_text" }
        },
        "additionalProperties": false
      }
    },
    "triggers": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": { "$ref": "#/$defs/text" },
          "type": { "$ref": "#/$defs/text" },
          "source": { "$ref": "#/$defs/text" },
          "description": { "$ref": "#/$defs/long_text" }
        },
        "additionalProperties": false
      }
    },
    "sections": {
      "type": "object",
      "properties": {
        "process_table": { "type": "boolean" },
        "process_details_table": { "type": "boolean" },
        "frameworks_table": { "type": "boolean" },
        "kpi_table": { "type": "boolean" },
        "signoff_table": { "type": "boolean" },
        "history_table": { "type": "boolean" },
        "trigger_table": { "type": "boolean" }
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false,
  "$defs": {
    "text": { "type": "string", "maxLength": 256 },
    "long_text": { "type": "string", "maxLength": 4000 },
    "date": { "type": "string", "pattern": "^([0-9]{4}-[0-9]{2}-[0-9]{2})?$" },
    "id_list": {
      "type": "array",
      "items": { "type": "string", "minLength": 1 }
    }
  }
}`

// JSONSchemaValidator validates document metadata against the embedded
// JSON Schema (Draft 2020-12). It is safe for concurrent use.
type JSONSchemaValidator struct {
	metadataSchema *jsonschema.Schema
}

// NewJSONSchemaValidator compiles the metadata schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(metadataSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal metadata schema: %w", err)
	}
	if err := c.AddResource(metadataSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add metadata schema resource: %w", err)
	}
	compiled, err := c.Compile(metadataSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile metadata schema: %w", err)
	}
	return &JSONSchemaValidator{metadataSchema: compiled}, nil
}

// ValidateRaw validates a raw JSON metadata document. Unknown keys are rejected.
func (v *JSONSchemaValidator) ValidateRaw(raw json.RawMessage) error {
	if len(raw) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "metadata is empty")
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "metadata is not valid JSON").WithCause(err)
	}
	if err := v.metadataSchema.Validate(doc); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// ValidateMetadata validates an already decoded metadata value.
func (v *JSONSchemaValidator) ValidateMetadata(meta *schema.DocumentMetadata) error {
	if meta == nil {
		return schema.NewError(schema.ErrCodeValidation, "metadata is nil")
	}
	doc, err := toJSONValue(meta)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize metadata").WithCause(err)
	}
	if err := v.metadataSchema.Validate(doc); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON so that numbers become
// json.Number, as the jsonschema library expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toSchemaError converts a jsonschema.ValidationError into a VALIDATION_ERROR
// whose details list every leaf violation with its instance location.
func toSchemaError(err error) *schema.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
