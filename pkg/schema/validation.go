package schema

import "fmt"

// IssueCode classifies a metadata finding.
type IssueCode string

const (
	IssueSchema     IssueCode = "schema_violation"
	IssueDuplicate  IssueCode = "duplicate_reference"
	IssueUnknownRef IssueCode = "unknown_reference"
	IssueNoSections IssueCode = "no_sections"
)

// Issue is one metadata finding. Path names the offending field, e.g.
// "kpi_ids[2]"; it is empty for findings about the document as a whole.
type Issue struct {
	Path    string    `json:"path,omitempty"`
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

// ValidationResult splits metadata findings into blocking errors and
// warnings. Warnings never prevent a save.
type ValidationResult struct {
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) AddError(path string, code IssueCode, message string) {
	r.Errors = append(r.Errors, Issue{Path: path, Code: code, Message: message})
}

func (r *ValidationResult) AddWarning(path string, code IssueCode, message string) {
	r.Warnings = append(r.Warnings, Issue{Path: path, Code: code, Message: message})
}

// Merge appends the findings of other.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ToError returns nil when there are no errors, otherwise a VALIDATION_ERROR
// carrying every finding in its details. A single error also sets Field.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	var err *Error
	if len(r.Errors) == 1 {
		err = NewError(ErrCodeValidation, r.Errors[0].Message)
		if r.Errors[0].Path != "" {
			err = err.WithField(r.Errors[0].Path)
		}
	} else {
		err = NewError(ErrCodeValidation, fmt.Sprintf("metadata has %d errors", len(r.Errors)))
	}
	return err.WithDetails(map[string]any{
		"error_count":   len(r.Errors),
		"warning_count": len(r.Warnings),
		"errors":        r.Errors,
		"warnings":      r.Warnings,
	})
}
