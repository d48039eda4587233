package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lifeflow/internal/platform/postgres"
	"lifeflow/internal/request/models"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/platform/tx"
)

// PostgresStore persists requests in blood_requests. The list filters read
// the key columns; the request itself lives in doc.
type PostgresStore struct {
	db     *sql.DB
	runner *tx.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, runner: tx.NewSQLRunner(db)}
}

func bloodTypesColumn(r *models.Request) any {
	types := r.BloodTypes()
	out := make([]string, len(types))
	for i, bt := range types {
		out[i] = string(bt)
	}
	return pq.Array(out)
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO blood_requests (id, display_id, status, priority, requester_name, blood_types,
			required_by, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID.UUID, r.DisplayID, string(r.Status), string(r.Priority), r.Requester.Name(),
		bloodTypesColumn(r), r.RequiredBy, doc, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func decodeRequest(doc []byte) (*models.Request, error) {
	var r models.Request
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	if r.AssignedUnits == nil {
		r.AssignedUnits = []models.Assignment{}
	}
	return &r, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.Request, error) {
	return s.findByID(ctx, tx.Executor(ctx, s.db), requestID, false)
}

func (s *PostgresStore) findByID(ctx context.Context, q tx.Querier, requestID id.RequestID, forUpdate bool) (*models.Request, error) {
	query := `SELECT doc FROM blood_requests WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var doc []byte
	if err := q.QueryRowContext(ctx, query, requestID.UUID).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	return decodeRequest(doc)
}

func scanRequests(rows *sql.Rows) ([]*models.Request, error) {
	defer rows.Close()
	out := []*models.Request{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		r, err := decodeRequest(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

const listWhere = `
	WHERE ($1 = '' OR status = $1)
	  AND ($2 = '' OR priority = $2)
	  AND ($3 = '' OR $3 = ANY(blood_types))
	  AND ($4 = '' OR display_id ILIKE '%' || $4 || '%' OR requester_name ILIKE '%' || $4 || '%')
`

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Request, int, error) {
	q := tx.Executor(ctx, s.db)
	args := []any{string(filter.Status), string(filter.Priority), string(filter.BloodType), filter.Search}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM blood_requests `+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	rows, err := q.QueryContext(ctx, `SELECT doc FROM blood_requests `+listWhere+`
		ORDER BY created_at DESC, display_id DESC
		LIMIT $5 OFFSET $6`, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

func (s *PostgresStore) ListUrgent(ctx context.Context, now time.Time) ([]*models.Request, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT doc FROM blood_requests
		WHERE status = ANY($1)
		  AND (priority IN ('high', 'critical')
		       OR doc->'bloodRequirements' @> '[{"urgency": "emergency"}]'
		       OR required_by <= $2)
		ORDER BY CASE priority
		             WHEN 'critical' THEN 4
		             WHEN 'high' THEN 3
		             WHEN 'medium' THEN 2
		             ELSE 1
		         END DESC, required_by ASC
	`, pq.Array(statusStrings(models.ActiveStatuses())), now.Add(models.DueSoonWindow))
	if err != nil {
		return nil, fmt.Errorf("list urgent requests: %w", err)
	}
	return scanRequests(rows)
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

// Execute locks the row for the read-modify-write, joining the caller's
// transaction when ctx carries one.
func (s *PostgresStore) Execute(ctx context.Context, requestID id.RequestID, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {
	var result *models.Request
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Executor(ctx, s.db)
		r, err := s.findByID(ctx, q, requestID, true)
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)
		doc, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			UPDATE blood_requests
			SET status = $2, priority = $3, requester_name = $4, blood_types = $5,
			    required_by = $6, doc = $7, updated_at = $8
			WHERE id = $1
		`, r.ID.UUID, string(r.Status), string(r.Priority), r.Requester.Name(),
			bloodTypesColumn(r), r.RequiredBy, doc, r.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) Delete(ctx context.Context, requestID id.RequestID) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `DELETE FROM blood_requests WHERE id = $1`, requestID.UUID)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*models.Request, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT doc FROM blood_requests ORDER BY created_at DESC, display_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent requests: %w", err)
	}
	return scanRequests(rows)
}

func (s *PostgresStore) CountByStatus(ctx context.Context, statuses ...models.Status) (int, error) {
	q := tx.Executor(ctx, s.db)
	var n int
	var err error
	if len(statuses) == 0 {
		err = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM blood_requests`).Scan(&n)
	} else {
		err = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM blood_requests WHERE status = ANY($1)`,
			pq.Array(statusStrings(statuses))).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count requests by status: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID id.UserID) (int, error) {
	var n int
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blood_requests WHERE doc->>'requestedBy' = $1`, userID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count requests by user: %w", err)
	}
	return n, nil
}
