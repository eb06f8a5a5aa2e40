package out

import (
	"context"

	"github.com/google/uuid"

	"nittei/core/domain"
)

// ScheduleRepository is the storage port for schedules.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	ForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Schedule, error)
	Create(ctx context.Context, schedule *domain.Schedule) error
	Update(ctx context.Context, schedule *domain.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
}
