package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lifeflow/internal/donor/models"
	"lifeflow/internal/platform/postgres"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/platform/tx"
)

// PostgresStore persists donors in the donors table. The full donor lives
// in doc; filter columns are kept alongside it.
type PostgresStore struct {
	db     *sql.DB
	runner *tx.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, runner: tx.NewSQLRunner(db)}
}

func (s *PostgresStore) Create(ctx context.Context, d *models.Donor) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal donor: %w", err)
	}
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO donors (id, display_id, user_id, blood_type, eligibility_status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID.UUID, d.DisplayID, d.UserID.UUID, string(d.BloodType), string(d.EligibilityStatus), doc, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert donor: %w", err)
	}
	return nil
}

func decodeDonor(doc []byte) (*models.Donor, error) {
	var d models.Donor
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, fmt.Errorf("unmarshal donor: %w", err)
	}
	if d.DonationHistory == nil {
		d.DonationHistory = []models.Donation{}
	}
	return &d, nil
}

func (s *PostgresStore) findOne(ctx context.Context, q tx.Querier, query string, arg any) (*models.Donor, error) {
	var doc []byte
	if err := q.QueryRowContext(ctx, query, arg).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find donor: %w", err)
	}
	return decodeDonor(doc)
}

func (s *PostgresStore) FindByID(ctx context.Context, donorID id.DonorID) (*models.Donor, error) {
	return s.findOne(ctx, tx.Executor(ctx, s.db), `SELECT doc FROM donors WHERE id = $1`, donorID.UUID)
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID id.UserID) (*models.Donor, error) {
	return s.findOne(ctx, tx.Executor(ctx, s.db), `SELECT doc FROM donors WHERE user_id = $1`, userID.UUID)
}

const listWhere = `
	WHERE ($1 = '' OR blood_type = $1)
	  AND ($2 = '' OR eligibility_status = $2)
	  AND ($3 = '' OR doc->>'firstName' ILIKE '%' || $3 || '%'
	       OR doc->>'lastName' ILIKE '%' || $3 || '%'
	       OR doc->>'email' ILIKE '%' || $3 || '%'
	       OR display_id ILIKE '%' || $3 || '%')
`

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Donor, int, error) {
	q := tx.Executor(ctx, s.db)
	args := []any{string(filter.BloodType), string(filter.Eligibility), filter.Search}

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM donors `+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count donors: %w", err)
	}
	rows, err := q.QueryContext(ctx, `SELECT doc FROM donors `+listWhere+`
		ORDER BY created_at DESC, display_id DESC
		LIMIT $4 OFFSET $5`, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list donors: %w", err)
	}
	defer rows.Close()
	donors := []*models.Donor{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, fmt.Errorf("scan donor: %w", err)
		}
		d, err := decodeDonor(doc)
		if err != nil {
			return nil, 0, err
		}
		donors = append(donors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate donors: %w", err)
	}
	return donors, total, nil
}

// Execute locks the donor row for the read-modify-write, joining the
// caller's transaction when ctx carries one.
func (s *PostgresStore) Execute(ctx context.Context, donorID id.DonorID, validate func(*models.Donor) error, mutate func(*models.Donor)) (*models.Donor, error) {
	var result *models.Donor
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Executor(ctx, s.db)
		d, err := s.findOne(ctx, q, `SELECT doc FROM donors WHERE id = $1 FOR UPDATE`, donorID.UUID)
		if err != nil {
			return err
		}
		if err := validate(d); err != nil {
			return err
		}
		mutate(d)
		doc, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal donor: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			UPDATE donors
			SET blood_type = $2, eligibility_status = $3, doc = $4, updated_at = $5
			WHERE id = $1
		`, d.ID.UUID, string(d.BloodType), string(d.EligibilityStatus), doc, d.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update donor: %w", err)
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) Delete(ctx context.Context, donorID id.DonorID) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `DELETE FROM donors WHERE id = $1`, donorID.UUID)
	if err != nil {
		return fmt.Errorf("delete donor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete donor: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountGroups(ctx context.Context) ([]models.GroupCount, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT blood_type, eligibility_status, COUNT(*)
		FROM donors
		GROUP BY blood_type, eligibility_status
		ORDER BY blood_type, eligibility_status
	`)
	if err != nil {
		return nil, fmt.Errorf("count donor groups: %w", err)
	}
	defer rows.Close()
	out := []models.GroupCount{}
	for rows.Next() {
		var bt, status string
		var n int
		if err := rows.Scan(&bt, &status, &n); err != nil {
			return nil, fmt.Errorf("scan donor group: %w", err)
		}
		out = append(out, models.GroupCount{BloodType: id.BloodType(bt), Eligibility: models.EligibilityStatus(status), Count: n})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate donor groups: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByEligibility(ctx context.Context, status models.EligibilityStatus) (int, error) {
	var n int
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM donors WHERE eligibility_status = $1`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count donors by eligibility: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByUser(ctx context.Context, userID id.UserID) (int, error) {
	var n int
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM donors WHERE doc->>'createdBy' = $1`, userID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count donors by creator: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MonthlyDonations(ctx context.Context, since time.Time) ([]models.MonthlyDonations, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT EXTRACT(YEAR FROM day)::int, EXTRACT(MONTH FROM day)::int, COUNT(*), COALESCE(SUM(units), 0)
		FROM (
			SELECT (h->>'date')::timestamptz AT TIME ZONE 'UTC' AS day, (h->>'units')::int AS units
			FROM donors, jsonb_array_elements(doc->'donationHistory') AS h
		) entries
		WHERE day >= $1 AT TIME ZONE 'UTC'
		GROUP BY 1, 2
		ORDER BY 1, 2
	`, since)
	if err != nil {
		return nil, fmt.Errorf("monthly donations: %w", err)
	}
	defer rows.Close()
	out := []models.MonthlyDonations{}
	for rows.Next() {
		var m models.MonthlyDonations
		if err := rows.Scan(&m.Year, &m.Month, &m.Donations, &m.Units); err != nil {
			return nil, fmt.Errorf("scan monthly donations: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly donations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) TotalDonations(ctx context.Context) (int, error) {
	var n int
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COALESCE(SUM((doc->>'totalDonations')::int), 0) FROM donors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("total donations: %w", err)
	}
	return n, nil
}
