package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/procdoc/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/procdoc.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Tenants ---

func (s *LibSQLStore) CreateTenant(ctx context.Context, tenant *Tenant) error {
	tenant.CreatedAt = timeOrNow(tenant.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		tenant.ID, tenant.Name, tenant.CreatedAt,
	)
	return conflictOr(err, "tenant", tenant.ID)
}

func (s *LibSQLStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	t := &Tenant{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("tenant", id)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// --- Users ---

const userColumns = `id, tenant_id, email, name, role, password_hash, created_at`

func (s *LibSQLStore) CreateUser(ctx context.Context, user *User) error {
	if !user.Role.Valid() {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid role %q", user.Role).WithField("role")
	}
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = timeOrNow(user.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.TenantID, user.Email, nullStr(user.Name), string(user.Role), user.PasswordHash, user.CreatedAt,
	)
	return conflictOr(err, "user", user.Email)
}

func (s *LibSQLStore) GetUser(ctx context.Context, tenantID, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? AND id = ?`, tenantID, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("user", id)
	}
	return u, err
}

func (s *LibSQLStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = normalizeEmail(email)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("user", email)
	}
	return u, err
}

func (s *LibSQLStore) ListUsers(ctx context.Context, tenantID string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = ? ORDER BY created_at, email`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *LibSQLStore) UpdateUserRole(ctx context.Context, tenantID, id string, role schema.Role) error {
	if !role.Valid() {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid role %q", role).WithField("role")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE tenant_id = ? AND id = ?`, string(role), tenantID, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "user", id)
}

func (s *LibSQLStore) DeleteUser(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "user", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var name sql.NullString
	var role string
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &name, &role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Role = schema.Role(role)
	return u, nil
}

// --- Folders ---

func (s *LibSQLStore) CreateFolder(ctx context.Context, folder *Folder) error {
	if strings.TrimSpace(folder.Name) == "" {
		return schema.NewError(schema.ErrCodeValidation, "folder name is required").WithField("name")
	}
	if folder.ParentID != "" {
		if _, err := s.GetFolder(ctx, folder.TenantID, folder.ParentID); err != nil {
			return err
		}
	}
	folder.CreatedAt = timeOrNow(folder.CreatedAt)
	folder.UpdatedAt = folder.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (id, tenant_id, parent_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		folder.ID, folder.TenantID, nullStr(folder.ParentID), folder.Name, folder.CreatedAt, folder.UpdatedAt,
	)
	return err
}

func (s *LibSQLStore) GetFolder(ctx context.Context, tenantID, id string) (*Folder, error) {
	f := &Folder{}
	var parent sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, parent_id, name, created_at, updated_at FROM folders WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	).Scan(&f.ID, &f.TenantID, &parent, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("folder", id)
	}
	if err != nil {
		return nil, err
	}
	f.ParentID = parent.String
	return f, nil
}

func (s *LibSQLStore) ListFolders(ctx context.Context, tenantID string) ([]*Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, parent_id, name, created_at, updated_at FROM folders WHERE tenant_id = ? ORDER BY name, id`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []*Folder
	for rows.Next() {
		f := &Folder{}
		var parent sql.NullString
		if err := rows.Scan(&f.ID, &f.TenantID, &parent, &f.Name, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.ParentID = parent.String
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (s *LibSQLStore) UpdateFolder(ctx context.Context, tenantID, id string, update FolderUpdate) error {
	if _, err := s.GetFolder(ctx, tenantID, id); err != nil {
		return err
	}

	var sets []string
	var args []any
	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return schema.NewError(schema.ErrCodeValidation, "folder name is required").WithField("name")
		}
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.ParentID != nil {
		if err := s.checkFolderMove(ctx, tenantID, id, *update.ParentID); err != nil {
			return err
		}
		sets = append(sets, "parent_id = ?")
		args = append(args, nullStr(*update.ParentID))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), tenantID, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE folders SET `+strings.Join(sets, ", ")+` WHERE tenant_id = ? AND id = ?`, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "folder", id)
}

// checkFolderMove rejects moves that would put a folder inside itself or one of its descendants.
func (s *LibSQLStore) checkFolderMove(ctx context.Context, tenantID, id, newParent string) error {
	for cur := newParent; cur != ""; {
		if cur == id {
			return schema.NewError(schema.ErrCodeValidation, "folder cannot be moved into itself or a descendant").
				WithField("parent_id")
		}
		f, err := s.GetFolder(ctx, tenantID, cur)
		if err != nil {
			return err
		}
		cur = f.ParentID
	}
	return nil
}

// DeleteFolder removes an empty folder. Folders that still hold sub-folders or
// documents are rejected with CONFLICT.
func (s *LibSQLStore) DeleteFolder(ctx context.Context, tenantID, id string) error {
	var children int
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM folders WHERE tenant_id = ? AND parent_id = ?) +
		        (SELECT COUNT(*) FROM documents WHERE tenant_id = ? AND folder_id = ?)`,
		tenantID, id, tenantID, id,
	).Scan(&children)
	if err != nil {
		return err
	}
	if children > 0 {
		return schema.NewErrorf(schema.ErrCodeConflict, "folder %q is not empty", id).
			WithDetails(map[string]any{"children": children})
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "folder", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

// conflictOr maps unique-constraint violations to CONFLICT and passes other errors through.
func conflictOr(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToUpper(err.Error()), "UNIQUE") {
		return schema.NewErrorf(schema.ErrCodeConflict, "%s %q already exists", resource, id).WithCause(err)
	}
	return err
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
