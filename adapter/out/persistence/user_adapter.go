package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nittei/core/domain"
	"nittei/core/port/out"
)

// UserAdapter implements out.UserRepository using PostgreSQL.
type UserAdapter struct {
	db *sqlx.DB
}

// NewUserAdapter creates a new UserAdapter.
func NewUserAdapter(db *sqlx.DB) *UserAdapter {
	return &UserAdapter{db: db}
}

type userRow struct {
	ID         uuid.UUID       `db:"id"`
	AccountID  uuid.UUID       `db:"account_id"`
	ExternalID sql.NullString  `db:"external_id"`
	Metadata   json.RawMessage `db:"metadata"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func (r *userRow) toEntity() (*domain.User, error) {
	u := &domain.User{
		ID:        r.ID,
		AccountID: r.AccountID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ExternalID.Valid {
		u.ExternalID = &r.ExternalID.String
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &u.Metadata); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// GetByID fetches a user by id.
func (a *UserAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var row userRow
	if err := a.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity()
}

// GetByExternalID fetches the user an account's own system addresses by
// external_id.
func (a *UserAdapter) GetByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*domain.User, error) {
	var row userRow
	query := `SELECT * FROM users WHERE account_id = $1 AND external_id = $2`
	if err := a.db.GetContext(ctx, &row, query, accountID, externalID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity()
}

// Create inserts a new user.
func (a *UserAdapter) Create(ctx context.Context, user *domain.User) error {
	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO users (id, account_id, external_id, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	return a.db.QueryRowxContext(ctx, query, user.ID, user.AccountID, user.ExternalID, metadata).
		Scan(&user.CreatedAt, &user.UpdatedAt)
}

// Update persists changes to an existing user.
func (a *UserAdapter) Update(ctx context.Context, user *domain.User) error {
	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE users SET external_id = $1, metadata = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	return a.db.QueryRowxContext(ctx, query, user.ExternalID, metadata, user.ID).Scan(&user.UpdatedAt)
}

// Delete removes a user.
func (a *UserAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

var _ out.UserRepository = (*UserAdapter)(nil)
