package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"lifeflow/internal/campaign/models"
	"lifeflow/internal/platform/postgres"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/platform/tx"
)

// PostgresStore persists campaigns in the campaigns table; the campaign
// itself lives in doc.
type PostgresStore struct {
	db     *sql.DB
	runner *tx.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, runner: tx.NewSQLRunner(db)}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Campaign) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal campaign: %w", err)
	}
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO campaigns (id, display_id, status, start_date, end_date, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID.UUID, c.DisplayID, string(c.Status), c.StartDate, c.EndDate, doc, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func decodeCampaign(doc []byte) (*models.Campaign, error) {
	var c models.Campaign
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("unmarshal campaign: %w", err)
	}
	if c.Donations == nil {
		c.Donations = []models.Donation{}
	}
	if c.Feedback == nil {
		c.Feedback = []models.Feedback{}
	}
	return &c, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, campaignID id.CampaignID) (*models.Campaign, error) {
	return s.findByID(ctx, tx.Executor(ctx, s.db), campaignID, false)
}

func (s *PostgresStore) findByID(ctx context.Context, q tx.Querier, campaignID id.CampaignID, forUpdate bool) (*models.Campaign, error) {
	query := `SELECT doc FROM campaigns WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var doc []byte
	if err := q.QueryRowContext(ctx, query, campaignID.UUID).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find campaign: %w", err)
	}
	return decodeCampaign(doc)
}

func scanCampaigns(rows *sql.Rows) ([]*models.Campaign, error) {
	defer rows.Close()
	out := []*models.Campaign{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c, err := decodeCampaign(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return out, nil
}

const listWhere = `
	WHERE (cardinality($1::text[]) = 0 OR status = ANY($1))
	  AND ($2 = '' OR doc->'location'->'address'->>'city' ILIKE '%' || $2 || '%')`

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter, page id.Page) ([]*models.Campaign, int, error) {
	q := tx.Executor(ctx, s.db)
	statuses := make([]string, 0, 2)
	for _, st := range filter.Statuses() {
		statuses = append(statuses, string(st))
	}
	city := strings.TrimSpace(filter.City)

	var total int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns`+listWhere, pq.Array(statuses), city).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}
	rows, err := q.QueryContext(ctx, `SELECT doc FROM campaigns`+listWhere+`
		ORDER BY created_at DESC, display_id DESC
		LIMIT $3 OFFSET $4
	`, pq.Array(statuses), city, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	campaigns, err := scanCampaigns(rows)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

const activeWhere = `WHERE status = 'active' AND start_date <= $1 AND end_date >= $1`

func (s *PostgresStore) ListActive(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT doc FROM campaigns `+activeWhere+` ORDER BY end_date ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	return scanCampaigns(rows)
}

func (s *PostgresStore) CountActive(ctx context.Context, now time.Time) (int, error) {
	var n int
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM campaigns `+activeWhere, now).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active campaigns: %w", err)
	}
	return n, nil
}

// Execute locks the row for the read-modify-write, joining the caller's
// transaction when ctx carries one.
func (s *PostgresStore) Execute(ctx context.Context, campaignID id.CampaignID, validate func(*models.Campaign) error, mutate func(*models.Campaign) error) (*models.Campaign, error) {
	var result *models.Campaign
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Executor(ctx, s.db)
		c, err := s.findByID(ctx, q, campaignID, true)
		if err != nil {
			return err
		}
		if err := validate(c); err != nil {
			return err
		}
		if err := mutate(c); err != nil {
			return err
		}
		doc, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal campaign: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			UPDATE campaigns
			SET status = $2, start_date = $3, end_date = $4, doc = $5, updated_at = $6
			WHERE id = $1
		`, c.ID.UUID, string(c.Status), c.StartDate, c.EndDate, doc, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) StatsByStatus(ctx context.Context) ([]models.StatusStats, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT status,
		       COUNT(*),
		       COALESCE(SUM((doc->>'targetUnits')::int), 0),
		       COALESCE(SUM((doc->>'unitsCollected')::int), 0),
		       COALESCE(AVG(CASE WHEN (doc->>'targetUnits')::int > 0
		                         THEN (doc->>'unitsCollected')::float / (doc->>'targetUnits')::float
		                         ELSE 0 END), 0)
		FROM campaigns
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}
	defer rows.Close()
	out := []models.StatusStats{}
	for rows.Next() {
		var row models.StatusStats
		var status string
		if err := rows.Scan(&status, &row.Count, &row.TotalTargetUnits, &row.TotalCollectedUnits, &row.AverageProgress); err != nil {
			return nil, fmt.Errorf("scan campaign stats: %w", err)
		}
		row.Status = models.Status(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign stats: %w", err)
	}
	return out, nil
}
