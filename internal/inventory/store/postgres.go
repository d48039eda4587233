package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lifeflow/internal/inventory/models"
	"lifeflow/internal/platform/postgres"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/platform/tx"
)

// PostgresStore persists units in blood_units. Filterable fields live in
// columns; the full unit is kept in the doc column.
type PostgresStore struct {
	db     *sql.DB
	runner *tx.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, runner: tx.NewSQLRunner(db)}
}

func donorColumn(u *models.Unit) any {
	if u.DonorID == nil {
		return nil
	}
	return u.DonorID.UUID
}

func (s *PostgresStore) CreateMany(ctx context.Context, units []*models.Unit) error {
	query := `
		INSERT INTO blood_units (id, serial_number, blood_type, component, status, location,
			donor_id, collection_date, expiration_date, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Executor(ctx, s.db)
		for _, u := range units {
			doc, err := json.Marshal(u)
			if err != nil {
				return fmt.Errorf("marshal unit: %w", err)
			}
			_, err = q.ExecContext(ctx, query,
				u.ID.UUID, u.SerialNumber, string(u.BloodType), string(u.Component), string(u.Status),
				string(u.Location), donorColumn(u), u.CollectionDate, u.ExpirationDate, doc,
				u.CreatedAt, u.UpdatedAt,
			)
			if err != nil {
				if postgres.IsUniqueViolation(err) {
					return sentinel.ErrConflict
				}
				return fmt.Errorf("insert unit: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, unitID id.UnitID) (*models.Unit, error) {
	return s.findByID(ctx, tx.Executor(ctx, s.db), unitID, false)
}

func (s *PostgresStore) findByID(ctx context.Context, q tx.Querier, unitID id.UnitID, forUpdate bool) (*models.Unit, error) {
	query := `SELECT doc FROM blood_units WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var doc []byte
	if err := q.QueryRowContext(ctx, query, unitID.UUID).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find unit: %w", err)
	}
	return decodeUnit(doc)
}

func decodeUnit(doc []byte) (*models.Unit, error) {
	var u models.Unit
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("unmarshal unit: %w", err)
	}
	return &u, nil
}

func scanUnits(rows *sql.Rows) ([]*models.Unit, error) {
	defer rows.Close()
	units := []*models.Unit{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		u, err := decodeUnit(doc)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

func (s *PostgresStore) ListAvailable(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Unit, int, error) {
	q := tx.Executor(ctx, s.db)
	where := `WHERE status = 'available' AND ($1 = '' OR blood_type = $1) AND ($2 = '' OR location = $2)`

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM blood_units `+where,
		string(filter.BloodType), string(filter.Location)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count available units: %w", err)
	}
	rows, err := q.QueryContext(ctx, `SELECT doc FROM blood_units `+where+`
		ORDER BY expiration_date ASC, serial_number ASC
		LIMIT $3 OFFSET $4`,
		string(filter.BloodType), string(filter.Location), page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list available units: %w", err)
	}
	units, err := scanUnits(rows)
	if err != nil {
		return nil, 0, err
	}
	return units, total, nil
}

func (s *PostgresStore) ListExpiring(ctx context.Context, before time.Time) ([]*models.Unit, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT doc FROM blood_units
		WHERE status = 'available' AND expiration_date <= $1
		ORDER BY expiration_date ASC, serial_number ASC
	`, before)
	if err != nil {
		return nil, fmt.Errorf("list expiring units: %w", err)
	}
	return scanUnits(rows)
}

func (s *PostgresStore) SummarizeAvailable(ctx context.Context) ([]models.ComponentCount, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT blood_type, component, COALESCE(SUM((doc->>'units')::int), 0), COUNT(*)
		FROM blood_units
		WHERE status = 'available'
		GROUP BY blood_type, component
		ORDER BY blood_type, component
	`)
	if err != nil {
		return nil, fmt.Errorf("summarize units: %w", err)
	}
	defer rows.Close()
	out := []models.ComponentCount{}
	for rows.Next() {
		var c models.ComponentCount
		var bt, comp string
		if err := rows.Scan(&bt, &comp, &c.Units, &c.Count); err != nil {
			return nil, fmt.Errorf("scan unit summary: %w", err)
		}
		c.BloodType = id.BloodType(bt)
		c.Component = models.Component(comp)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unit summary: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, joining the caller's
// transaction when one is in ctx.
func (s *PostgresStore) Execute(ctx context.Context, unitID id.UnitID, validate func(*models.Unit) error, mutate func(*models.Unit)) (*models.Unit, error) {
	var result *models.Unit
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Executor(ctx, s.db)
		u, err := s.findByID(ctx, q, unitID, true)
		if err != nil {
			return err
		}
		if err := validate(u); err != nil {
			return err
		}
		mutate(u)
		if err := s.update(ctx, q, u); err != nil {
			return err
		}
		result = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) update(ctx context.Context, q tx.Querier, u *models.Unit) error {
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal unit: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE blood_units
		SET status = $2, location = $3, expiration_date = $4, doc = $5, updated_at = $6
		WHERE id = $1
	`, u.ID.UUID, string(u.Status), string(u.Location), u.ExpirationDate, doc, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE blood_units
		SET status = 'expired',
			updated_at = $1,
			doc = jsonb_set(jsonb_set(doc - 'reservedFor', '{status}', '"expired"'), '{updatedAt}', to_jsonb($1::timestamptz))
		WHERE status IN ('available', 'reserved') AND expiration_date < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire overdue units: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire overdue units: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*models.Unit, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT doc FROM blood_units ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent units: %w", err)
	}
	return scanUnits(rows)
}

func (s *PostgresStore) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	var n int
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blood_units WHERE status = $1`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count units by status: %w", err)
	}
	return n, nil
}
