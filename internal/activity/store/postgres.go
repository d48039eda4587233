package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"lifeflow/internal/activity/models"
	id "lifeflow/pkg/domain"
)

// PostgresStore persists activity entries in the activities table. Writes
// go straight to the pool and never join a unit of work, so a failed insert
// cannot abort the caller's transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry models.Entry) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal activity entry: %w", err)
	}
	var userID any
	if !entry.UserID.IsNil() {
		userID = entry.UserID.UUID
	}
	query := `
		INSERT INTO activities (id, user_id, action, entity_type, entity_id, doc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID.UUID,
		userID,
		string(entry.Action),
		nullString(string(entry.EntityType)),
		nullString(entry.EntityID),
		doc,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, page id.Page) ([]models.Entry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE user_id = $1`, userID.UUID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user activities: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM activities
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID.UUID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list user activities: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *PostgresStore) ListAll(ctx context.Context, page id.Page) ([]models.Entry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc FROM activities
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func scanEntries(rows *sql.Rows) ([]models.Entry, error) {
	defer rows.Close()
	entries := []models.Entry{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		var entry models.Entry
		if err := json.Unmarshal(doc, &entry); err != nil {
			return nil, fmt.Errorf("unmarshal activity entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity entries: %w", err)
	}
	return entries, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
