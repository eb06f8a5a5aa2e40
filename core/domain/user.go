package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a scheduling participant scoped to one account. ExternalID lets an
// account's own system reference the user without round-tripping Nittei's
// opaque id.
type User struct {
	ID         uuid.UUID `json:"id"`
	AccountID  uuid.UUID `json:"account_id"`
	ExternalID *string   `json:"external_id,omitempty"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Metadata is a free-form JSON object attached to several entities. It is
// mirrored into adapter/out/searchindex so the `metadata` search predicate
// can run deep-equality queries against it.
type Metadata map[string]any
