package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rendis/procdoc/pkg/schema"
)

const documentColumns = `id, tenant_id, folder_id, kind, name, content, owner_id, review_cron, next_review_at, created_at, updated_at`

func (s *LibSQLStore) CreateDocument(ctx context.Context, doc *Document) error {
	if !doc.Kind.Valid() {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid document kind %q", doc.Kind).WithField("kind")
	}
	if strings.TrimSpace(doc.Name) == "" {
		return schema.NewError(schema.ErrCodeValidation, "document name is required").WithField("name")
	}
	if doc.FolderID != "" {
		if _, err := s.GetFolder(ctx, doc.TenantID, doc.FolderID); err != nil {
			return err
		}
	}
	doc.CreatedAt = timeOrNow(doc.CreatedAt)
	doc.UpdatedAt = doc.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.TenantID, nullStr(doc.FolderID), string(doc.Kind), doc.Name, doc.Content, doc.OwnerID,
		nullStr(doc.ReviewCron), nullTime(doc.NextReviewAt), doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

func (s *LibSQLStore) GetDocument(ctx context.Context, tenantID, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("document", id)
	}
	return d, err
}

func (s *LibSQLStore) UpdateDocument(ctx context.Context, tenantID, id string, update DocumentUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		if strings.TrimSpace(*update.Name) == "" {
			return schema.NewError(schema.ErrCodeValidation, "document name is required").WithField("name")
		}
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *update.Content)
	}
	if update.FolderID != nil {
		if *update.FolderID != "" {
			if _, err := s.GetFolder(ctx, tenantID, *update.FolderID); err != nil {
				return err
			}
		}
		sets = append(sets, "folder_id = ?")
		args = append(args, nullStr(*update.FolderID))
	}
	if update.ReviewCron != nil {
		sets = append(sets, "review_cron = ?")
		args = append(args, nullStr(*update.ReviewCron))
	}
	switch {
	case update.ClearReview:
		sets = append(sets, "next_review_at = NULL")
	case update.NextReviewAt != nil:
		sets = append(sets, "next_review_at = ?")
		args = append(args, update.NextReviewAt.UTC())
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), tenantID, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET `+strings.Join(sets, ", ")+` WHERE tenant_id = ? AND id = ?`, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "document", id)
}

func (s *LibSQLStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*Document, error) {
	where := []string{"tenant_id = ?"}
	args := []any{filter.TenantID}

	if filter.FolderID != nil {
		if *filter.FolderID == "" {
			where = append(where, "folder_id IS NULL")
		} else {
			where = append(where, "folder_id = ?")
			args = append(args, *filter.FolderID)
		}
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY name, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	return s.queryDocuments(ctx, query, args...)
}

// ListDueReviews returns documents of every tenant whose next review is at or before the given time.
func (s *LibSQLStore) ListDueReviews(ctx context.Context, before time.Time) ([]*Document, error) {
	return s.queryDocuments(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE next_review_at IS NOT NULL AND next_review_at <= ?
		 ORDER BY next_review_at, id`, before.UTC())
}

func (s *LibSQLStore) DeleteDocument(ctx context.Context, tenantID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_metadata WHERE tenant_id = ? AND document_id = ?`, tenantID, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "document", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *LibSQLStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocument(row rowScanner) (*Document, error) {
	d := &Document{}
	var folderID, reviewCron sql.NullString
	var nextReview sql.NullTime
	var kind string
	if err := row.Scan(&d.ID, &d.TenantID, &folderID, &kind, &d.Name, &d.Content, &d.OwnerID,
		&reviewCron, &nextReview, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.FolderID = folderID.String
	d.Kind = schema.DocumentKind(kind)
	d.ReviewCron = reviewCron.String
	if nextReview.Valid {
		d.NextReviewAt = &nextReview.Time
	}
	return d, nil
}

// --- Metadata ---

// GetDocumentMetadata returns the stored metadata, or an empty value when none was saved yet.
func (s *LibSQLStore) GetDocumentMetadata(ctx context.Context, tenantID, documentID string) (*schema.DocumentMetadata, error) {
	if _, err := s.GetDocument(ctx, tenantID, documentID); err != nil {
		return nil, err
	}
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM document_metadata WHERE tenant_id = ? AND document_id = ?`, tenantID, documentID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return &schema.DocumentMetadata{}, nil
	}
	if err != nil {
		return nil, err
	}
	meta := &schema.DocumentMetadata{}
	if err := json.Unmarshal([]byte(raw), meta); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "decode document metadata").WithCause(err)
	}
	return meta, nil
}

func (s *LibSQLStore) PutDocumentMetadata(ctx context.Context, tenantID, documentID string, meta *schema.DocumentMetadata) error {
	if _, err := s.GetDocument(ctx, tenantID, documentID); err != nil {
		return err
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_metadata (document_id, tenant_id, metadata, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET metadata=excluded.metadata, updated_at=excluded.updated_at`,
		documentID, tenantID, string(data), time.Now().UTC(),
	)
	return err
}
