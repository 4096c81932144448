package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procdoc/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func seedTenant(t *testing.T, s *LibSQLStore) *Tenant {
	t.Helper()
	tn := &Tenant{ID: uuid.New().String(), Name: "acme"}
	require.NoError(t, s.CreateTenant(context.Background(), tn))
	return tn
}

func seedDocument(t *testing.T, s *LibSQLStore, tenantID, folderID, name string) *Document {
	t.Helper()
	d := &Document{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		FolderID: folderID,
		Kind:     schema.DocumentKindBPMN,
		Name:     name,
		Content:  "<definitions/>",
		OwnerID:  "owner-1",
	}
	require.NoError(t, s.CreateDocument(context.Background(), d))
	return d
}

// --- Tenant & User Tests ---

func TestCreateAndGetTenant(t *testing.T) {
	s := newTestStore(t)
	tn := seedTenant(t, s)

	got, err := s.GetTenant(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetTenant_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTenant(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, schema.IsNotFound(err))
}

func TestCreateUser_EmailUniqueAcrossTenants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t1 := seedTenant(t, s)
	t2 := seedTenant(t, s)

	u := &User{ID: uuid.New().String(), TenantID: t1.ID, Email: " Ana@Example.com ", Role: schema.RoleAdmin, PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, "ana@example.com", u.Email)

	dup := &User{ID: uuid.New().String(), TenantID: t2.ID, Email: "ana@example.com", Role: schema.RoleViewer, PasswordHash: "y"}
	err := s.CreateUser(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))

	got, err := s.GetUserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, schema.RoleAdmin, got.Role)
	assert.Equal(t, "x", got.PasswordHash)
}

func TestCreateUser_InvalidRole(t *testing.T) {
	s := newTestStore(t)
	tn := seedTenant(t, s)
	err := s.CreateUser(context.Background(), &User{ID: "u", TenantID: tn.ID, Email: "a@b.c", Role: "root"})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestUsers_TenantScoped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t1 := seedTenant(t, s)
	t2 := seedTenant(t, s)

	u := &User{ID: uuid.New().String(), TenantID: t1.ID, Email: "a@x.io", Role: schema.RoleEditor, PasswordHash: "h"}
	require.NoError(t, s.CreateUser(ctx, u))

	_, err := s.GetUser(ctx, t2.ID, u.ID)
	assert.True(t, schema.IsNotFound(err))

	require.NoError(t, s.UpdateUserRole(ctx, t1.ID, u.ID, schema.RoleViewer))
	got, err := s.GetUser(ctx, t1.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RoleViewer, got.Role)

	assert.True(t, schema.IsNotFound(s.DeleteUser(ctx, t2.ID, u.ID)))
	require.NoError(t, s.DeleteUser(ctx, t1.ID, u.ID))

	list, err := s.ListUsers(ctx, t1.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// --- Folder Tests ---

func TestFolderTree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)

	root := &Folder{ID: "root", TenantID: tn.ID, Name: "Policies"}
	child := &Folder{ID: "child", TenantID: tn.ID, ParentID: "root", Name: "HR"}
	require.NoError(t, s.CreateFolder(ctx, root))
	require.NoError(t, s.CreateFolder(ctx, child))

	folders, err := s.ListFolders(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "HR", folders[0].Name)
	assert.Equal(t, "root", folders[0].ParentID)

	name := "People"
	require.NoError(t, s.UpdateFolder(ctx, tn.ID, "child", FolderUpdate{Name: &name}))
	got, err := s.GetFolder(ctx, tn.ID, "child")
	require.NoError(t, err)
	assert.Equal(t, "People", got.Name)

	toRoot := ""
	require.NoError(t, s.UpdateFolder(ctx, tn.ID, "child", FolderUpdate{ParentID: &toRoot}))
	got, err = s.GetFolder(ctx, tn.ID, "child")
	require.NoError(t, err)
	assert.Empty(t, got.ParentID)
}

func TestCreateFolder_MissingParent(t *testing.T) {
	s := newTestStore(t)
	tn := seedTenant(t, s)
	err := s.CreateFolder(context.Background(), &Folder{ID: "f", TenantID: tn.ID, ParentID: "ghost", Name: "x"})
	assert.True(t, schema.IsNotFound(err))
}

func TestUpdateFolder_RejectsCycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)
	require.NoError(t, s.CreateFolder(ctx, &Folder{ID: "a", TenantID: tn.ID, Name: "A"}))
	require.NoError(t, s.CreateFolder(ctx, &Folder{ID: "b", TenantID: tn.ID, ParentID: "a", Name: "B"}))

	self := "a"
	err := s.UpdateFolder(ctx, tn.ID, "a", FolderUpdate{ParentID: &self})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	descendant := "b"
	err = s.UpdateFolder(ctx, tn.ID, "a", FolderUpdate{ParentID: &descendant})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestDeleteFolder_NotEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)
	require.NoError(t, s.CreateFolder(ctx, &Folder{ID: "a", TenantID: tn.ID, Name: "A"}))
	doc := seedDocument(t, s, tn.ID, "a", "Onboarding")

	err := s.DeleteFolder(ctx, tn.ID, "a")
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))

	require.NoError(t, s.DeleteDocument(ctx, tn.ID, doc.ID))
	require.NoError(t, s.DeleteFolder(ctx, tn.ID, "a"))
	assert.True(t, schema.IsNotFound(s.DeleteFolder(ctx, tn.ID, "a")))
}

// --- Document Tests ---

func TestCreateAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)
	d := seedDocument(t, s, tn.ID, "", "Onboarding")

	got, err := s.GetDocument(ctx, tn.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.DocumentKindBPMN, got.Kind)
	assert.Equal(t, "<definitions/>", got.Content)
	assert.Empty(t, got.FolderID)
	assert.Nil(t, got.NextReviewAt)

	other := seedTenant(t, s)
	_, err = s.GetDocument(ctx, other.ID, d.ID)
	assert.True(t, schema.IsNotFound(err))
}

func TestCreateDocument_Validation(t *testing.T) {
	s := newTestStore(t)
	tn := seedTenant(t, s)
	err := s.CreateDocument(context.Background(), &Document{ID: "d", TenantID: tn.ID, Kind: "docx", Name: "x"})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))

	err = s.CreateDocument(context.Background(), &Document{ID: "d", TenantID: tn.ID, Kind: schema.DocumentKindLatex, Name: "  "})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestUpdateDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)
	d := seedDocument(t, s, tn.ID, "", "Onboarding")

	content := "<definitions id=\"v2\"/>"
	cron := "0 9 1 * *"
	next := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateDocument(ctx, tn.ID, d.ID, DocumentUpdate{
		Content: &content, ReviewCron: &cron, NextReviewAt: &next,
	}))

	got, err := s.GetDocument(ctx, tn.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
	assert.Equal(t, cron, got.ReviewCron)
	require.NotNil(t, got.NextReviewAt)
	assert.True(t, next.Equal(*got.NextReviewAt))

	require.NoError(t, s.UpdateDocument(ctx, tn.ID, d.ID, DocumentUpdate{ClearReview: true}))
	got, err = s.GetDocument(ctx, tn.ID, d.ID)
	require.NoError(t, err)
	assert.Nil(t, got.NextReviewAt)

	assert.True(t, schema.IsNotFound(s.UpdateDocument(ctx, tn.ID, "ghost", DocumentUpdate{Content: &content})))
}

func TestListDocuments_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)
	require.NoError(t, s.CreateFolder(ctx, &Folder{ID: "f", TenantID: tn.ID, Name: "F"}))
	seedDocument(t, s, tn.ID, "", "B root")
	seedDocument(t, s, tn.ID, "f", "A nested")
	require.NoError(t, s.CreateDocument(ctx, &Document{
		ID: "tex", TenantID: tn.ID, Kind: schema.DocumentKindLatex, Name: "C tex", OwnerID: "o",
	}))

	all, err := s.ListDocuments(ctx, DocumentFilter{TenantID: tn.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A nested", all[0].Name)

	root := ""
	atRoot, err := s.ListDocuments(ctx, DocumentFilter{TenantID: tn.ID, FolderID: &root})
	require.NoError(t, err)
	assert.Len(t, atRoot, 2)

	tex, err := s.ListDocuments(ctx, DocumentFilter{TenantID: tn.ID, Kind: schema.DocumentKindLatex})
	require.NoError(t, err)
	require.Len(t, tex, 1)
	assert.Equal(t, "tex", tex[0].ID)

	page, err := s.ListDocuments(ctx, DocumentFilter{TenantID: tn.ID, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "B root", page[0].Name)
}

func TestListDueReviews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)
	due := seedDocument(t, s, tn.ID, "", "due")
	later := seedDocument(t, s, tn.ID, "", "later")
	seedDocument(t, s, tn.ID, "", "never")

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	require.NoError(t, s.UpdateDocument(ctx, tn.ID, due.ID, DocumentUpdate{NextReviewAt: &past}))
	require.NoError(t, s.UpdateDocument(ctx, tn.ID, later.ID, DocumentUpdate{NextReviewAt: &future}))

	docs, err := s.ListDueReviews(ctx, now)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, due.ID, docs[0].ID)
}

func TestDocumentMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)
	d := seedDocument(t, s, tn.ID, "", "Onboarding")

	empty, err := s.GetDocumentMetadata(ctx, tn.ID, d.ID)
	require.NoError(t, err)
	assert.Nil(t, empty.Process)

	meta := &schema.DocumentMetadata{
		Process:     &schema.ProcessMetadata{ProcessName: "Onboarding", ProcessOwner: "HR"},
		StandardIDs: []string{"iso9001"},
		Sections:    &schema.SectionToggles{ProcessTable: true, KPITable: true},
	}
	require.NoError(t, s.PutDocumentMetadata(ctx, tn.ID, d.ID, meta))
	meta.Process.Version = "2"
	require.NoError(t, s.PutDocumentMetadata(ctx, tn.ID, d.ID, meta))

	got, err := s.GetDocumentMetadata(ctx, tn.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", got.Process.Version)
	assert.Equal(t, []string{"iso9001"}, got.StandardIDs)
	assert.True(t, got.Sections.KPITable)

	_, err = s.GetDocumentMetadata(ctx, tn.ID, "ghost")
	assert.True(t, schema.IsNotFound(err))

	require.NoError(t, s.DeleteDocument(ctx, tn.ID, d.ID))
	_, err = s.GetDocumentMetadata(ctx, tn.ID, d.ID)
	assert.True(t, schema.IsNotFound(err))
}

// --- Catalogue Tests ---

func TestStandards_CatalogueOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)

	require.NoError(t, s.UpsertStandard(ctx, tn.ID, &schema.Standard{ID: "z", Name: "Zeta"}))
	require.NoError(t, s.UpsertStandard(ctx, tn.ID, &schema.Standard{ID: "a", Name: "Alpha", Code: "A-1"}))
	require.NoError(t, s.UpsertStandard(ctx, tn.ID, &schema.Standard{ID: "z", Name: "Zeta v2"}))

	list, err := s.ListStandards(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Zeta v2", list[0].Name)
	assert.Equal(t, "A-1", list[1].Code)

	require.NoError(t, s.DeleteStandard(ctx, tn.ID, "z"))
	assert.True(t, schema.IsNotFound(s.DeleteStandard(ctx, tn.ID, "z")))

	err = s.UpsertStandard(ctx, tn.ID, &schema.Standard{ID: "x"})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestKPIs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)

	target := 95.0
	require.NoError(t, s.UpsertKPI(ctx, tn.ID, &schema.KPI{ID: "sla", Name: "SLA", Unit: "%", Target: &target}))
	require.NoError(t, s.UpsertKPI(ctx, tn.ID, &schema.KPI{ID: "cycle", Name: "Cycle time", Formula: "value <= target"}))

	got, err := s.GetKPI(ctx, tn.ID, "sla")
	require.NoError(t, err)
	require.NotNil(t, got.Target)
	assert.InDelta(t, 95.0, *got.Target, 0.001)

	list, err := s.ListKPIs(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sla", list[0].ID)
	assert.Nil(t, list[1].Target)
	assert.Equal(t, "value <= target", list[1].Formula)

	_, err = s.GetKPI(ctx, seedTenant(t, s).ID, "sla")
	assert.True(t, schema.IsNotFound(err))
}

func TestMeasurements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tn := seedTenant(t, s)
	require.NoError(t, s.UpsertKPI(ctx, tn.ID, &schema.KPI{ID: "sla", Name: "SLA"}))

	base := time.Now().UTC().Add(-time.Hour)
	for i, v := range []float64{90, 97} {
		require.NoError(t, s.RecordMeasurement(ctx, &Measurement{
			ID: uuid.New().String(), TenantID: tn.ID, KPIID: "sla", Value: v,
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	err := s.RecordMeasurement(ctx, &Measurement{ID: "m", TenantID: tn.ID, KPIID: "ghost", Value: 1})
	assert.True(t, schema.IsNotFound(err))

	list, err := s.ListMeasurements(ctx, MeasurementFilter{TenantID: tn.ID, KPIID: "sla"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.InDelta(t, 90.0, list[0].Value, 0.001)
	assert.InDelta(t, 97.0, list[1].Value, 0.001)
}

// --- Activity Tests ---

func TestAppendActivity_SequencePerTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t1 := seedTenant(t, s)
	t2 := seedTenant(t, s)

	for i := 0; i < 3; i++ {
		a := &Activity{TenantID: t1.ID, DocumentID: "d1", Type: ActivityDocumentUpdated, Payload: json.RawMessage(`{"n":1}`)}
		require.NoError(t, s.AppendActivity(ctx, a))
		assert.Equal(t, int64(i+1), a.Sequence)
	}
	other := &Activity{TenantID: t2.ID, Type: ActivityDocumentCreated}
	require.NoError(t, s.AppendActivity(ctx, other))
	assert.Equal(t, int64(1), other.Sequence)

	list, err := s.ListActivity(ctx, ActivityFilter{TenantID: t1.ID, AfterSeq: 1})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].Sequence)
	assert.JSONEq(t, `{"n":1}`, string(list[0].Payload))

	byType, err := s.ListActivity(ctx, ActivityFilter{TenantID: t2.ID, Type: ActivityReviewDue})
	require.NoError(t, err)
	assert.Empty(t, byType)
}

// --- Maintenance Tests ---

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Vacuum(context.Background()))
}
