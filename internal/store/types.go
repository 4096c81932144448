package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/procdoc/pkg/schema"
)

// Tenant is an isolated organisation. Every other row belongs to exactly one tenant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account inside a tenant. Emails are unique across all tenants.
type User struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	Email        string      `json:"email"`
	Name         string      `json:"name,omitempty"`
	Role         schema.Role `json:"role"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Folder is a node of the per-tenant folder tree. An empty ParentID means root.
type Folder struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FolderUpdate holds mutable folder fields. Nil fields are left untouched;
// a non-nil empty ParentID moves the folder to the root.
type FolderUpdate struct {
	Name     *string
	ParentID *string
}

// Document is a stored LaTeX source or BPMN diagram.
type Document struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"tenant_id"`
	FolderID     string              `json:"folder_id,omitempty"`
	Kind         schema.DocumentKind `json:"kind"`
	Name         string              `json:"name"`
	Content      string              `json:"content,omitempty"`
	OwnerID      string              `json:"owner_id"`
	ReviewCron   string              `json:"review_cron,omitempty"`
	NextReviewAt *time.Time          `json:"next_review_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// DocumentUpdate holds mutable document fields.
type DocumentUpdate struct {
	Name         *string
	Content      *string
	FolderID     *string
	ReviewCron   *string
	NextReviewAt *time.Time
	ClearReview  bool
}

// DocumentFilter narrows ListDocuments. TenantID is required.
type DocumentFilter struct {
	TenantID string
	FolderID *string
	Kind     schema.DocumentKind
	Limit    int
	Offset   int
}

// Measurement is one recorded KPI value.
type Measurement struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	KPIID      string    `json:"kpi_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Value      float64   `json:"value"`
	Period     string    `json:"period,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// MeasurementFilter narrows ListMeasurements. Results are ordered oldest first.
type MeasurementFilter struct {
	TenantID string
	KPIID    string
	Since    *time.Time
	Limit    int
}

// Activity types recorded by the document service and the review scheduler.
const (
	ActivityDocumentCreated     = "document_created"
	ActivityDocumentUpdated     = "document_updated"
	ActivityDocumentDeleted     = "document_deleted"
	ActivityMetadataUpdated     = "metadata_updated"
	ActivityDocumentExported    = "document_exported"
	ActivityReviewDue           = "review_due"
	ActivityFolderCreated       = "folder_created"
	ActivityFolderUpdated       = "folder_updated"
	ActivityFolderDeleted       = "folder_deleted"
	ActivityCatalogueUpdated    = "catalogue_updated"
	ActivityMeasurementRecorded = "measurement_recorded"
)

// Activity is an append-only audit entry. Sequence is monotonic per tenant.
type Activity struct {
	ID         int64           `json:"id"`
	TenantID   string          `json:"tenant_id"`
	DocumentID string          `json:"document_id,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Sequence   int64           `json:"sequence"`
}

// ActivityFilter narrows ListActivity. Results are ordered by sequence ascending.
type ActivityFilter struct {
	TenantID   string
	DocumentID string
	Type       string
	Since      *time.Time
	AfterSeq   int64
	Limit      int
}
