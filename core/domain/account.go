package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProviderCredentials holds the refresh/access-token material for one
// external calendar provider integration (spec.md §3 "optional
// provider-integration credentials per provider"). The OAuth handshake that
// produces these is out of scope (spec.md §1); only the refreshed token
// material the provider adapter consumes lives here.
type ProviderCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	RefreshToken string `json:"-"`
}

// Account is the top-level tenant. Every other entity is owned, directly or
// transitively, by exactly one account. SecretAPIKeyHash, never the raw
// key, is what infra/middleware compares an incoming x-api-key header
// against.
type Account struct {
	ID               uuid.UUID                      `json:"id"`
	SecretAPIKeyHash string                          `json:"-"`
	PublicJWTKey     *string                         `json:"public_jwt_key,omitempty"`
	WebhookURL       *string                         `json:"webhook_url,omitempty"`
	WebhookSigningKey *string                        `json:"-"`
	SettingsTZID     string                          `json:"settings_tz_id"`
	ProviderCreds    map[string]ProviderCredentials  `json:"-"` // keyed by provider kind, e.g. "google"
	CreatedAt        time.Time                       `json:"created_at"`
	UpdatedAt        time.Time                       `json:"updated_at"`
}
