package out

import (
	"context"

	"github.com/google/uuid"

	"nittei/core/domain"
)

// ServiceRepository is the storage port for bookable services and their
// resources.
type ServiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Service, error)
	Create(ctx context.Context, service *domain.Service) error
	Update(ctx context.Context, service *domain.Service) error
	Delete(ctx context.Context, id uuid.UUID) error

	AddResource(ctx context.Context, serviceID uuid.UUID, resource *domain.ServiceResource) error
	RemoveResource(ctx context.Context, serviceID, userID uuid.UUID) error
}
