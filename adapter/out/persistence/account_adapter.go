// Package persistence provides database adapters implementing outbound ports.
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

// AccountAdapter implements out.AccountRepository using PostgreSQL.
type AccountAdapter struct {
	db *sqlx.DB
}

// NewAccountAdapter creates a new AccountAdapter.
func NewAccountAdapter(db *sqlx.DB) *AccountAdapter {
	return &AccountAdapter{db: db}
}

type accountRow struct {
	ID                uuid.UUID       `db:"id"`
	SecretAPIKeyHash  string          `db:"secret_api_key_hash"`
	PublicJWTKey      sql.NullString  `db:"public_jwt_key"`
	WebhookURL        sql.NullString  `db:"webhook_url"`
	WebhookSigningKey sql.NullString  `db:"webhook_signing_key"`
	SettingsTZID      string          `db:"settings_tz_id"`
	ProviderCreds     json.RawMessage `db:"provider_creds"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r *accountRow) toEntity() (*domain.Account, error) {
	a := &domain.Account{
		ID:               r.ID,
		SecretAPIKeyHash: r.SecretAPIKeyHash,
		SettingsTZID:     r.SettingsTZID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.PublicJWTKey.Valid {
		a.PublicJWTKey = &r.PublicJWTKey.String
	}
	if r.WebhookURL.Valid {
		a.WebhookURL = &r.WebhookURL.String
	}
	if r.WebhookSigningKey.Valid {
		a.WebhookSigningKey = &r.WebhookSigningKey.String
	}
	if len(r.ProviderCreds) > 0 {
		if err := json.Unmarshal(r.ProviderCreds, &a.ProviderCreds); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// GetByID fetches an account by id.
func (a *AccountAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT * FROM accounts WHERE id = $1`
	var row accountRow
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity()
}

// GetByAPIKeyHash fetches an account whose SecretAPIKeyHash matches hash,
// the lookup infra/middleware performs on every x-api-key request.
func (a *AccountAdapter) GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Account, error) {
	query := `SELECT * FROM accounts WHERE secret_api_key_hash = $1`
	var row accountRow
	if err := a.db.GetContext(ctx, &row, query, hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toEntity()
}

// Create inserts a new account.
func (a *AccountAdapter) Create(ctx context.Context, account *domain.Account) error {
	creds, err := json.Marshal(account.ProviderCreds)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO accounts (
			id, secret_api_key_hash, public_jwt_key, webhook_url,
			webhook_signing_key, settings_tz_id, provider_creds
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		account.ID, account.SecretAPIKeyHash, account.PublicJWTKey, account.WebhookURL,
		account.WebhookSigningKey, account.SettingsTZID, creds,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
}

// Update persists changes to an existing account.
func (a *AccountAdapter) Update(ctx context.Context, account *domain.Account) error {
	creds, err := json.Marshal(account.ProviderCreds)
	if err != nil {
		return err
	}
	query := `
		UPDATE accounts SET
			public_jwt_key = $1,
			webhook_url = $2,
			webhook_signing_key = $3,
			settings_tz_id = $4,
			provider_creds = $5,
			updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at
	`
	return a.db.QueryRowxContext(ctx, query,
		account.PublicJWTKey, account.WebhookURL, account.WebhookSigningKey,
		account.SettingsTZID, creds, account.ID,
	).Scan(&account.UpdatedAt)
}

// Delete removes an account.
func (a *AccountAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

var _ out.AccountRepository = (*AccountAdapter)(nil)
