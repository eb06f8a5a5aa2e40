// Package accounts implements account and user management: tenant
// bootstrap, API-key/JWT key storage, and the users scoped to an account.
package accounts

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/pkg/apperr"
	"nittei/pkg/crypto"
)

// Service orchestrates account and user lifecycle.
type Service struct {
	accounts out.AccountRepository
	users    out.UserRepository
}

// NewService wires the account/user repositories.
func NewService(accounts out.AccountRepository, users out.UserRepository) *Service {
	return &Service{accounts: accounts, users: users}
}

// CreateAccount provisions a new tenant. PublicJWTKey is optional at
// creation time; an account with no key configured rejects every JWT-
// authenticated request until one is set via UpdateAccount. The raw secret
// API key is returned exactly once — only its SHA-256 hash is persisted,
// and UpdateAccount does not change that stored hash.
func (s *Service) CreateAccount(ctx context.Context, publicJWTKey *string, webhookURL *string, settingsTZID string) (*domain.Account, string, error) {
	if settingsTZID == "" {
		settingsTZID = "UTC"
	}
	if _, err := time.LoadLocation(settingsTZID); err != nil {
		return nil, "", apperr.BadInput("accounts: settings_tz_id is not a recognized timezone")
	}

	rawKey, err := newAPIKey()
	if err != nil {
		return nil, "", apperr.InternalWithError(err)
	}

	account := &domain.Account{
		ID:               uuid.New(),
		SecretAPIKeyHash: crypto.HashAPIKey(rawKey),
		PublicJWTKey:     publicJWTKey,
		WebhookURL:       webhookURL,
		SettingsTZID:     settingsTZID,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, "", apperr.StorageUnavailable("create account", err)
	}
	return account, rawKey, nil
}

// AuthenticateByAPIKey resolves the account whose secret hashes to rawKey,
// the x-api-key admin-route credential of spec.md §6.
func (s *Service) AuthenticateByAPIKey(ctx context.Context, rawKey string) (*domain.Account, error) {
	account, err := s.accounts.GetByAPIKeyHash(ctx, crypto.HashAPIKey(rawKey))
	if err != nil {
		return nil, apperr.StorageUnavailable("lookup account by api key", err)
	}
	if account == nil {
		return nil, apperr.Unauthorized("invalid api key")
	}
	return account, nil
}

func newAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "nittei_" + hex.EncodeToString(buf), nil
}

// GetAccount fetches an account by id.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.StorageUnavailable("get account", err)
	}
	if account == nil {
		return nil, apperr.NotFound("account", id.String())
	}
	return account, nil
}

// UpdateAccount replaces an account's mutable fields.
func (s *Service) UpdateAccount(ctx context.Context, account *domain.Account) error {
	if err := s.accounts.Update(ctx, account); err != nil {
		return apperr.StorageUnavailable("update account", err)
	}
	return nil
}

// CreateUser registers a user under account, optionally with an external id
// the account's own system can use to reference them.
func (s *Service) CreateUser(ctx context.Context, accountID uuid.UUID, externalID *string, metadata domain.Metadata) (*domain.User, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if externalID != nil {
		if existing, _ := s.users.GetByExternalID(ctx, accountID, *externalID); existing != nil {
			return nil, apperr.Conflict("a user with this external_id already exists for this account")
		}
	}

	user := &domain.User{
		ID:         uuid.New(),
		AccountID:  accountID,
		ExternalID: externalID,
		Metadata:   metadata,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperr.StorageUnavailable("create user", err)
	}
	return user, nil
}

// GetUser fetches a user by id, scoped to accountID so one account's
// credentials can never read another's users.
func (s *Service) GetUser(ctx context.Context, accountID, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.StorageUnavailable("get user", err)
	}
	if user == nil || user.AccountID != accountID {
		return nil, apperr.NotFound("user", userID.String())
	}
	return user, nil
}

// GetUserByExternalID fetches a user by the account's own external id
// (spec.md §6 "GET /user/external_id/{ext}").
func (s *Service) GetUserByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*domain.User, error) {
	user, err := s.users.GetByExternalID(ctx, accountID, externalID)
	if err != nil {
		return nil, apperr.StorageUnavailable("get user by external id", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user", externalID)
	}
	return user, nil
}

// DeleteUser removes a user. Callers are responsible for cascading the
// deletion of the user's calendars/events/schedules first (core/service
// mutations never implicitly fan out across aggregates).
func (s *Service) DeleteUser(ctx context.Context, accountID, userID uuid.UUID) error {
	if _, err := s.GetUser(ctx, accountID, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return apperr.StorageUnavailable("delete user", err)
	}
	return nil
}
