package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AppendActivity appends an activity entry with a monotonically increasing per-tenant sequence.
func (s *LibSQLStore) AppendActivity(ctx context.Context, a *Activity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activity tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM activity WHERE tenant_id = ?`, a.TenantID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	a.Sequence = seq
	a.Timestamp = timeOrNow(a.Timestamp)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO activity (tenant_id, document_id, user_id, activity_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.TenantID, nullStr(a.DocumentID), nullStr(a.UserID), a.Type, nullRaw(a.Payload), a.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activity: %w", err)
	}
	return nil
}

func (s *LibSQLStore) ListActivity(ctx context.Context, filter ActivityFilter) ([]*Activity, error) {
	where := []string{"tenant_id = ?"}
	args := []any{filter.TenantID}

	if filter.DocumentID != "" {
		where = append(where, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if filter.Type != "" {
		where = append(where, "activity_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.AfterSeq > 0 {
		where = append(where, "sequence > ?")
		args = append(args, filter.AfterSeq)
	}

	query := `SELECT id, tenant_id, document_id, user_id, activity_type, payload, timestamp, sequence
		FROM activity WHERE ` + strings.Join(where, " AND ") + ` ORDER BY sequence ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Activity
	for rows.Next() {
		a := &Activity{}
		var docID, userID, payload sql.NullString
		var ts time.Time
		if err := rows.Scan(&a.ID, &a.TenantID, &docID, &userID, &a.Type, &payload, &ts, &a.Sequence); err != nil {
			return nil, err
		}
		a.DocumentID = docID.String
		a.UserID = userID.String
		a.Payload = rawOrNil(payload)
		a.Timestamp = ts
		out = append(out, a)
	}
	return out, rows.Err()
}
