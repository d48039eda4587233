package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lifeflow/internal/auth/models"
	"lifeflow/internal/platform/postgres"
	id "lifeflow/pkg/domain"
	"lifeflow/pkg/platform/sentinel"
	"lifeflow/pkg/platform/tx"
)

// PostgresUserStore persists identities in the users table. The password
// hash lives only in its own column.
type PostgresUserStore struct {
	db     *sql.DB
	runner *tx.SQLRunner
}

func NewPostgres(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db, runner: tx.NewSQLRunner(db)}
}

func nullableHash(hash string) any {
	if hash == "" {
		return nil
	}
	return hash
}

func (s *PostgresUserStore) Create(ctx context.Context, user *models.User) error {
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, is_active, first_name, last_name, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, user.ID.UUID, user.Email, nullableHash(user.PasswordHash), string(user.Role), user.IsActive,
		user.FirstName, user.LastName, doc, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		doc  []byte
		hash sql.NullString
	)
	if err := row.Scan(&doc, &hash); err != nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	u.PasswordHash = hash.String
	return &u, nil
}

func (s *PostgresUserStore) findOne(ctx context.Context, q tx.Querier, query string, arg any) (*models.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, tx.Executor(ctx, s.db), `SELECT doc, password_hash FROM users WHERE id = $1`, userID.UUID)
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, tx.Executor(ctx, s.db), `SELECT doc, password_hash FROM users WHERE email = $1`, email)
}

func (s *PostgresUserStore) List(ctx context.Context, filter models.UserFilter, page id.Page) ([]*models.User, int, error) {
	q := tx.Executor(ctx, s.db)
	pattern := ""
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern = "%" + term + "%"
	}
	where := `WHERE ($1 = '' OR role = $1)
		AND ($2 = '' OR first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2)`

	var total int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users `+where,
		string(filter.Role), pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := q.QueryContext(ctx, `SELECT doc, password_hash FROM users `+where+`
		ORDER BY created_at DESC, email ASC
		LIMIT $3 OFFSET $4`,
		string(filter.Role), pattern, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

func (s *PostgresUserStore) Execute(ctx context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	var result *models.User
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		q := tx.Executor(ctx, s.db)
		u, err := s.findOne(ctx, q, `SELECT doc, password_hash FROM users WHERE id = $1 FOR UPDATE`, userID.UUID)
		if err != nil {
			return err
		}
		if err := validate(u); err != nil {
			return err
		}
		mutate(u)
		doc, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			UPDATE users
			SET email = $2, password_hash = $3, role = $4, is_active = $5,
				first_name = $6, last_name = $7, doc = $8, updated_at = $9
			WHERE id = $1
		`, u.ID.UUID, u.Email, nullableHash(u.PasswordHash), string(u.Role), u.IsActive,
			u.FirstName, u.LastName, doc, u.UpdatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("update user: %w", err)
		}
		result = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
