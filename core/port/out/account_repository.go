package out

import (
	"context"

	"github.com/google/uuid"

	"nittei/core/domain"
)

// AccountRepository is the storage port for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}
