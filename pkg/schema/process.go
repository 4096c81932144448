package schema

// DocumentKind enumerates the document types a tenant can author.
type DocumentKind string

const (
	DocumentKindLatex DocumentKind = "latex"
	DocumentKindBPMN  DocumentKind = "bpmn"
)

// Valid reports whether k is a known document kind.
func (k DocumentKind) Valid() bool {
	return k == DocumentKindLatex || k == DocumentKindBPMN
}

// Role is a user's role within its tenant.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEditor || r == RoleViewer
}

// ProcessMetadata describes the process a BPMN document models.
type ProcessMetadata struct {
	ProcessName   string `json:"process_name,omitempty" yaml:"process_name,omitempty"`
	ProcessOwner  string `json:"process_owner,omitempty" yaml:"process_owner,omitempty"`
	Department    string `json:"department,omitempty" yaml:"department,omitempty"`
	Version       string `json:"version,omitempty" yaml:"version,omitempty"`
	EffectiveDate string `json:"effective_date,omitempty" yaml:"effective_date,omitempty"`
	Author        string `json:"author,omitempty" yaml:"author,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
}

// AdvancedDetails holds the free-text process-details table.
type AdvancedDetails struct {
	Purpose      string `json:"purpose,omitempty" yaml:"purpose,omitempty"`
	Scope        string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Inputs       string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs      string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Frequency    string `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Dependencies string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Risks        string `json:"risks,omitempty" yaml:"risks,omitempty"`
}

// Standard is one entry of a tenant's frameworks/standards catalogue.
type Standard struct {
	ID          string `json:"id" yaml:"id"`
	Code        string `json:"code,omitempty" yaml:"code,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
}

// KPI is one entry of a tenant's KPI catalogue.
// Formula is an expr expression over value and target; empty means value >= target.
type KPI struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Unit        string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Target      *float64 `json:"target,omitempty" yaml:"target,omitempty"`
	Frequency   string   `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Formula     string   `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// SignOff is one approval row.
type SignOff struct {
	Role   string `json:"role,omitempty"`
	Name   string `json:"name,omitempty"`
	Date   string `json:"date,omitempty"`
	Status string `json:"status,omitempty"`
}

// HistoryEntry is one row of a document's revision history.
type HistoryEntry struct {
	Version string `json:"version,omitempty"`
	Date    string `json:"date,omitempty"`
	Author  string `json:"author,omitempty"`
	Changes string `json:"changes,omitempty"`
}

// Trigger describes an event that starts the process.
type Trigger struct {
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
}

// SectionToggles selects which optional sections a generated document carries.
type SectionToggles struct {
	ProcessTable        bool `json:"process_table,omitempty"`
	ProcessDetailsTable bool `json:"process_details_table,omitempty"`
	FrameworksTable     bool `json:"frameworks_table,omitempty"`
	KPITable            bool `json:"kpi_table,omitempty"`
	SignOffTable        bool `json:"signoff_table,omitempty"`
	HistoryTable        bool `json:"history_table,omitempty"`
	TriggerTable        bool `json:"trigger_table,omitempty"`
}

// DefaultSectionToggles is used when a caller supplies no toggles at all.
func DefaultSectionToggles() SectionToggles {
	return SectionToggles{ProcessTable: true}
}

// AllSections enables every optional section.
func AllSections() SectionToggles {
	return SectionToggles{
		ProcessTable:        true,
		ProcessDetailsTable: true,
		FrameworksTable:     true,
		KPITable:            true,
		SignOffTable:        true,
		HistoryTable:        true,
		TriggerTable:        true,
	}
}

// DocumentMetadata is the metadata stored alongside a BPMN document and fed
// into LaTeX generation.
type DocumentMetadata struct {
	Process     *ProcessMetadata `json:"process,omitempty"`
	Advanced    *AdvancedDetails `json:"advanced,omitempty"`
	StandardIDs []string         `json:"standard_ids,omitempty"`
	KPIIDs      []string         `json:"kpi_ids,omitempty"`
	SignOffs    []SignOff        `json:"sign_offs,omitempty"`
	History     []HistoryEntry   `json:"history,omitempty"`
	Triggers    []Trigger        `json:"triggers,omitempty"`
	Sections    *SectionToggles  `json:"sections,omitempty"`
}
