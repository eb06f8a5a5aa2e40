package out

import (
	"context"

	"github.com/google/uuid"

	"nittei/core/domain"
)

// EventRepository is the storage port for calendar events, exposing exactly
// the query predicates spec.md §4.7 names.
type EventRepository interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.CalendarEvent, error)
	GetEventByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*domain.CalendarEvent, error)

	// EventsForCalendar returns every event (masters, singles, and
	// overrides) owned by a calendar that can contribute at least one
	// occurrence inside window: singles/overrides whose own span overlaps
	// window, and recurring masters whose Start is not after window.End and
	// whose Until (if any) is not before window.Start — the adapter leaves
	// the exact occurrence filtering to internal/engine/expand. Ordered by
	// Start.
	EventsForCalendar(ctx context.Context, calendarID uuid.UUID, window domain.TimeSpan) ([]*domain.CalendarEvent, error)

	// EventsForUsers returns the union of EventsForCalendar across every
	// calendar owned by the given users.
	EventsForUsers(ctx context.Context, userIDs []uuid.UUID, window domain.TimeSpan) ([]*domain.CalendarEvent, error)

	// EventsByRecurringEventIDs returns the override events attached to any
	// of the given recurring master ids.
	EventsByRecurringEventIDs(ctx context.Context, recurringEventIDs []uuid.UUID) ([]*domain.CalendarEvent, error)

	// MostRecentServiceEventsPerUser returns, for each user in userIDs, the
	// single most recent event booked against serviceID (spec.md §4.7,
	// used by the round-robin "oldest-assignment" ordering).
	MostRecentServiceEventsPerUser(ctx context.Context, serviceID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]*domain.CalendarEvent, error)

	Create(ctx context.Context, event *domain.CalendarEvent) error
	// CreateBatch inserts events atomically: either all rows are created or
	// none are (spec.md's "no half-written aggregates escape a single
	// request").
	CreateBatch(ctx context.Context, events []*domain.CalendarEvent) error
	Update(ctx context.Context, event *domain.CalendarEvent) error
	Delete(ctx context.Context, id uuid.UUID) error

	// SearchForUser and SearchForAccount answer the §6 search grammar
	// (timespan, status, metadata, calendar-id predicates).
	SearchForUser(ctx context.Context, userID uuid.UUID, filter EventSearchFilter) ([]*domain.CalendarEvent, error)
	SearchForAccount(ctx context.Context, accountID uuid.UUID, filter EventSearchFilter) ([]*domain.CalendarEvent, error)
}

// EventSearchFilter is the predicate set the §6 search endpoints accept.
// MetadataIDs, when non-nil, is the set of event ids adapter/out/searchindex
// already resolved for the Metadata predicate; Postgres intersects against
// it instead of evaluating Metadata itself.
type EventSearchFilter struct {
	Window      *domain.TimeSpan
	CalendarIDs []uuid.UUID
	Statuses    []domain.CalendarEventStatus
	Metadata    domain.Metadata
	MetadataIDs []uuid.UUID
	Limit       int
	Offset      int
}
