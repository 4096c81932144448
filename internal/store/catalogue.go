package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rendis/procdoc/pkg/schema"
)

// Catalogue rows keep their first-insertion position so that generated
// documents list standards and KPIs in catalogue order.

func (s *LibSQLStore) UpsertStandard(ctx context.Context, tenantID string, std *schema.Standard) error {
	if strings.TrimSpace(std.ID) == "" {
		return schema.NewError(schema.ErrCodeValidation, "standard id is required").WithField("id")
	}
	if strings.TrimSpace(std.Name) == "" {
		return schema.NewError(schema.ErrCodeValidation, "standard name is required").WithField("name")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO standards (tenant_id, id, code, name, description, category, position)
		 VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM standards WHERE tenant_id = ?))
		 ON CONFLICT(tenant_id, id) DO UPDATE SET code=excluded.code, name=excluded.name,
		   description=excluded.description, category=excluded.category`,
		tenantID, std.ID, nullStr(std.Code), std.Name, nullStr(std.Description), nullStr(std.Category), tenantID,
	)
	return err
}

func (s *LibSQLStore) ListStandards(ctx context.Context, tenantID string) ([]schema.Standard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name, description, category FROM standards WHERE tenant_id = ? ORDER BY position`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.Standard
	for rows.Next() {
		var st schema.Standard
		var code, desc, category sql.NullString
		if err := rows.Scan(&st.ID, &code, &st.Name, &desc, &category); err != nil {
			return nil, err
		}
		st.Code = code.String
		st.Description = desc.String
		st.Category = category.String
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteStandard(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM standards WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "standard", id)
}

func (s *LibSQLStore) UpsertKPI(ctx context.Context, tenantID string, kpi *schema.KPI) error {
	if strings.TrimSpace(kpi.ID) == "" {
		return schema.NewError(schema.ErrCodeValidation, "kpi id is required").WithField("id")
	}
	if strings.TrimSpace(kpi.Name) == "" {
		return schema.NewError(schema.ErrCodeValidation, "kpi name is required").WithField("name")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kpis (tenant_id, id, name, description, unit, target, frequency, formula, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM kpis WHERE tenant_id = ?))
		 ON CONFLICT(tenant_id, id) DO UPDATE SET name=excluded.name, description=excluded.description,
		   unit=excluded.unit, target=excluded.target, frequency=excluded.frequency, formula=excluded.formula`,
		tenantID, kpi.ID, kpi.Name, nullStr(kpi.Description), nullStr(kpi.Unit), nullFloat(kpi.Target),
		nullStr(kpi.Frequency), nullStr(kpi.Formula), tenantID,
	)
	return err
}

const kpiColumns = `id, name, description, unit, target, frequency, formula`

func (s *LibSQLStore) GetKPI(ctx context.Context, tenantID, id string) (*schema.KPI, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+kpiColumns+` FROM kpis WHERE tenant_id = ? AND id = ?`, tenantID, id)
	k, err := scanKPI(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("kpi", id)
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *LibSQLStore) ListKPIs(ctx context.Context, tenantID string) ([]schema.KPI, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+kpiColumns+` FROM kpis WHERE tenant_id = ? ORDER BY position`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.KPI
	for rows.Next() {
		k, err := scanKPI(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteKPI(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kpis WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "kpi", id)
}

func scanKPI(row rowScanner) (schema.KPI, error) {
	var k schema.KPI
	var desc, unit, freq, formula sql.NullString
	var target sql.NullFloat64
	if err := row.Scan(&k.ID, &k.Name, &desc, &unit, &target, &freq, &formula); err != nil {
		return k, err
	}
	k.Description = desc.String
	k.Unit = unit.String
	k.Frequency = freq.String
	k.Formula = formula.String
	if target.Valid {
		v := target.Float64
		k.Target = &v
	}
	return k, nil
}

// --- Measurements ---

func (s *LibSQLStore) RecordMeasurement(ctx context.Context, m *Measurement) error {
	if _, err := s.GetKPI(ctx, m.TenantID, m.KPIID); err != nil {
		return err
	}
	m.RecordedAt = timeOrNow(m.RecordedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (id, tenant_id, kpi_id, document_id, value, period, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TenantID, m.KPIID, nullStr(m.DocumentID), m.Value, nullStr(m.Period), m.RecordedAt,
	)
	return err
}

func (s *LibSQLStore) ListMeasurements(ctx context.Context, filter MeasurementFilter) ([]*Measurement, error) {
	where := []string{"tenant_id = ?"}
	args := []any{filter.TenantID}
	if filter.KPIID != "" {
		where = append(where, "kpi_id = ?")
		args = append(args, filter.KPIID)
	}
	if filter.Since != nil {
		where = append(where, "recorded_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT id, tenant_id, kpi_id, document_id, value, period, recorded_at FROM measurements WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY recorded_at, id`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Measurement
	for rows.Next() {
		m := &Measurement{}
		var docID, period sql.NullString
		if err := rows.Scan(&m.ID, &m.TenantID, &m.KPIID, &docID, &m.Value, &period, &m.RecordedAt); err != nil {
			return nil, err
		}
		m.DocumentID = docID.String
		m.Period = period.String
		out = append(out, m)
	}
	return out, rows.Err()
}
