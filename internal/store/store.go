package store

import (
	"context"
	"time"

	"github.com/rendis/procdoc/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use. Every tenant-scoped
// lookup takes the tenant ID so that rows of other tenants are never visible.
type Store interface {
	// Tenants & users
	CreateTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, tenantID, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, tenantID string) ([]*User, error)
	UpdateUserRole(ctx context.Context, tenantID, id string, role schema.Role) error
	DeleteUser(ctx context.Context, tenantID, id string) error

	// Folders
	CreateFolder(ctx context.Context, folder *Folder) error
	GetFolder(ctx context.Context, tenantID, id string) (*Folder, error)
	ListFolders(ctx context.Context, tenantID string) ([]*Folder, error)
	UpdateFolder(ctx context.Context, tenantID, id string, update FolderUpdate) error
	DeleteFolder(ctx context.Context, tenantID, id string) error

	// Documents
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, tenantID, id string) (*Document, error)
	UpdateDocument(ctx context.Context, tenantID, id string, update DocumentUpdate) error
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]*Document, error)
	DeleteDocument(ctx context.Context, tenantID, id string) error
	ListDueReviews(ctx context.Context, before time.Time) ([]*Document, error)

	// Document metadata
	GetDocumentMetadata(ctx context.Context, tenantID, documentID string) (*schema.DocumentMetadata, error)
	PutDocumentMetadata(ctx context.Context, tenantID, documentID string, meta *schema.DocumentMetadata) error

	// Catalogues
	UpsertStandard(ctx context.Context, tenantID string, std *schema.Standard) error
	ListStandards(ctx context.Context, tenantID string) ([]schema.Standard, error)
	DeleteStandard(ctx context.Context, tenantID, id string) error
	UpsertKPI(ctx context.Context, tenantID string, kpi *schema.KPI) error
	GetKPI(ctx context.Context, tenantID, id string) (*schema.KPI, error)
	ListKPIs(ctx context.Context, tenantID string) ([]schema.KPI, error)
	DeleteKPI(ctx context.Context, tenantID, id string) error

	// KPI measurements
	RecordMeasurement(ctx context.Context, m *Measurement) error
	ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]*Measurement, error)

	// Activity (append-only)
	AppendActivity(ctx context.Context, a *Activity) error
	ListActivity(ctx context.Context, filter ActivityFilter) ([]*Activity, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
