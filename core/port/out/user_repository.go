package out

import (
	"context"

	"github.com/google/uuid"

	"nittei/core/domain"
)

// UserRepository is the storage port for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}
