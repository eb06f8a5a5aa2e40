package out

import (
	"context"

	"github.com/google/uuid"

	"nittei/core/domain"
)

// CalendarRepository is the storage port for calendars.
type CalendarRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Calendar, error)
	ForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Calendar, error)
	Create(ctx context.Context, calendar *domain.Calendar) error
	Update(ctx context.Context, calendar *domain.Calendar) error
	Delete(ctx context.Context, id uuid.UUID) error
}
