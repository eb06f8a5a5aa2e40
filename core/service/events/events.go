// Package events implements calendar and calendar-event management: CRUD,
// recurrence validation, occurrence expansion within a timespan, and the
// metadata-aware search grammar of spec.md §6.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/internal/engine/expand"
	"nittei/pkg/apperr"
	"nittei/pkg/logger"
)

// Service orchestrates calendar and event use cases.
type Service struct {
	calendars   out.CalendarRepository
	eventsRepo  out.EventRepository
	searchIndex out.SearchIndex
	webhooks    out.WebhookOutbox
}

// NewService wires the calendar/event/search-index/webhook ports.
func NewService(calendars out.CalendarRepository, eventsRepo out.EventRepository, searchIndex out.SearchIndex, webhooks out.WebhookOutbox) *Service {
	return &Service{calendars: calendars, eventsRepo: eventsRepo, searchIndex: searchIndex, webhooks: webhooks}
}

// CreateCalendar registers a new calendar for a user.
func (s *Service) CreateCalendar(ctx context.Context, accountID, userID uuid.UUID, settings domain.CalendarSettings, name *string) (*domain.Calendar, error) {
	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		return nil, apperr.BadInput("events: calendar timezone is not recognized")
	}
	cal := &domain.Calendar{
		ID:        uuid.New(),
		AccountID: accountID,
		UserID:    userID,
		Name:      name,
		Settings:  settings,
	}
	if err := s.calendars.Create(ctx, cal); err != nil {
		return nil, apperr.StorageUnavailable("create calendar", err)
	}
	return cal, nil
}

// GetCalendar fetches a calendar scoped to its owning account.
func (s *Service) GetCalendar(ctx context.Context, accountID, calendarID uuid.UUID) (*domain.Calendar, error) {
	cal, err := s.calendars.GetByID(ctx, calendarID)
	if err != nil {
		return nil, apperr.StorageUnavailable("get calendar", err)
	}
	if cal == nil || cal.AccountID != accountID {
		return nil, apperr.NotFound("calendar", calendarID.String())
	}
	return cal, nil
}

// CalendarsForUser lists every calendar owned by userID, scoped to
// accountID so one account's credentials can never list another's.
func (s *Service) CalendarsForUser(ctx context.Context, accountID, userID uuid.UUID) ([]*domain.Calendar, error) {
	cals, err := s.calendars.ForUser(ctx, userID)
	if err != nil {
		return nil, apperr.StorageUnavailable("list calendars for user", err)
	}
	filtered := cals[:0]
	for _, cal := range cals {
		if cal.AccountID == accountID {
			filtered = append(filtered, cal)
		}
	}
	return filtered, nil
}

// DeleteCalendar removes a calendar. Its events must be deleted first by
// the caller (or a future cascading migration) — this mirrors spec.md's
// "no implicit cross-aggregate fan-out" rule.
func (s *Service) DeleteCalendar(ctx context.Context, accountID, calendarID uuid.UUID) error {
	if _, err := s.GetCalendar(ctx, accountID, calendarID); err != nil {
		return err
	}
	if err := s.calendars.Delete(ctx, calendarID); err != nil {
		return apperr.StorageUnavailable("delete calendar", err)
	}
	return nil
}

// GetEvent fetches an event by id, scoped to accountID.
func (s *Service) GetEvent(ctx context.Context, accountID, eventID uuid.UUID) (*domain.CalendarEvent, error) {
	event, err := s.eventsRepo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.StorageUnavailable("get event", err)
	}
	if event == nil || event.AccountID != accountID {
		return nil, apperr.NotFound("event", eventID.String())
	}
	return event, nil
}

// GetEventByExternalID fetches an event by the account's own external id.
func (s *Service) GetEventByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*domain.CalendarEvent, error) {
	event, err := s.eventsRepo.GetEventByExternalID(ctx, accountID, externalID)
	if err != nil {
		return nil, apperr.StorageUnavailable("get event by external id", err)
	}
	if event == nil {
		return nil, apperr.NotFound("event", externalID)
	}
	return event, nil
}

// CreateEvent validates and stores a single event, enqueuing a best-effort
// webhook notification on success.
func (s *Service) CreateEvent(ctx context.Context, accountID uuid.UUID, event *domain.CalendarEvent) (*domain.CalendarEvent, error) {
	if event.Duration <= 0 {
		return nil, apperr.BadInput("events: duration must be positive")
	}
	if event.RecurrenceRule != nil {
		if err := event.RecurrenceRule.Validate(); err != nil {
			return nil, err
		}
	}
	if err := validateReminders(event.Reminders); err != nil {
		return nil, err
	}
	if event.ExternalID != nil {
		if existing, _ := s.eventsRepo.GetEventByExternalID(ctx, accountID, *event.ExternalID); existing != nil {
			return nil, apperr.Conflict("an event with this external_id already exists for this account")
		}
	}

	event.ID = uuid.New()
	event.AccountID = accountID
	if event.Status == "" {
		event.Status = domain.EventStatusConfirmed
	}

	if err := s.eventsRepo.Create(ctx, event); err != nil {
		return nil, apperr.StorageUnavailable("create event", err)
	}
	s.indexMetadata(ctx, accountID, event)
	s.notify(ctx, accountID, out.WebhookEventCreated, event)
	return event, nil
}

// CreateEventsBatch stores every event in a single transaction (spec.md's
// idempotent batch creation): either all succeed or none are persisted.
func (s *Service) CreateEventsBatch(ctx context.Context, accountID uuid.UUID, events []*domain.CalendarEvent) ([]*domain.CalendarEvent, error) {
	for _, e := range events {
		if e.Duration <= 0 {
			return nil, apperr.BadInput("events: duration must be positive")
		}
		if e.RecurrenceRule != nil {
			if err := e.RecurrenceRule.Validate(); err != nil {
				return nil, err
			}
		}
		if err := validateReminders(e.Reminders); err != nil {
			return nil, err
		}
		e.ID = uuid.New()
		e.AccountID = accountID
		if e.Status == "" {
			e.Status = domain.EventStatusConfirmed
		}
	}
	if err := s.eventsRepo.CreateBatch(ctx, events); err != nil {
		return nil, apperr.StorageUnavailable("create events batch", err)
	}
	for _, e := range events {
		s.indexMetadata(ctx, accountID, e)
		s.notify(ctx, accountID, out.WebhookEventCreated, e)
	}
	return events, nil
}

// UpdateEvent persists changes to an existing event.
func (s *Service) UpdateEvent(ctx context.Context, accountID uuid.UUID, event *domain.CalendarEvent) error {
	existing, err := s.eventsRepo.GetEvent(ctx, event.ID)
	if err != nil {
		return apperr.StorageUnavailable("get event", err)
	}
	if existing == nil || existing.AccountID != accountID {
		return apperr.NotFound("event", event.ID.String())
	}
	if event.RecurrenceRule != nil {
		if err := event.RecurrenceRule.Validate(); err != nil {
			return err
		}
	}
	if err := validateReminders(event.Reminders); err != nil {
		return err
	}
	if err := s.eventsRepo.Update(ctx, event); err != nil {
		return apperr.StorageUnavailable("update event", err)
	}
	s.indexMetadata(ctx, accountID, event)
	s.notify(ctx, accountID, out.WebhookEventUpdated, event)
	return nil
}

// DeleteEvent removes an event (and, transitively, its overrides —
// adapter/out/persistence is expected to cascade on recurring_event_id).
func (s *Service) DeleteEvent(ctx context.Context, accountID, eventID uuid.UUID) error {
	existing, err := s.eventsRepo.GetEvent(ctx, eventID)
	if err != nil {
		return apperr.StorageUnavailable("get event", err)
	}
	if existing == nil || existing.AccountID != accountID {
		return apperr.NotFound("event", eventID.String())
	}
	if err := s.eventsRepo.Delete(ctx, eventID); err != nil {
		return apperr.StorageUnavailable("delete event", err)
	}
	if s.searchIndex != nil {
		if err := s.searchIndex.DeleteEvent(ctx, eventID); err != nil {
			logger.WithError(err).Warn("failed to remove event from search index")
		}
	}
	s.notify(ctx, accountID, out.WebhookEventDeleted, existing)
	return nil
}

// InstancesForCalendar returns every concrete occurrence any event on
// calendarID contributes within window.
func (s *Service) InstancesForCalendar(ctx context.Context, calendarID uuid.UUID, window domain.TimeSpan) ([]domain.Instance, error) {
	evs, err := s.eventsRepo.EventsForCalendar(ctx, calendarID, window)
	if err != nil {
		return nil, apperr.StorageUnavailable("list events for calendar", err)
	}
	overrides, err := s.fetchOverrides(ctx, evs)
	if err != nil {
		return nil, err
	}
	return expand.ExpandMany(append(evs, overrides...), window)
}

// InstancesForUsers returns the union of every occurrence across all
// calendars owned by userIDs within window.
func (s *Service) InstancesForUsers(ctx context.Context, userIDs []uuid.UUID, window domain.TimeSpan) ([]domain.Instance, error) {
	evs, err := s.eventsRepo.EventsForUsers(ctx, userIDs, window)
	if err != nil {
		return nil, apperr.StorageUnavailable("list events for users", err)
	}
	overrides, err := s.fetchOverrides(ctx, evs)
	if err != nil {
		return nil, err
	}
	return expand.ExpandMany(append(evs, overrides...), window)
}

func (s *Service) fetchOverrides(ctx context.Context, evs []*domain.CalendarEvent) ([]*domain.CalendarEvent, error) {
	var masterIDs []uuid.UUID
	for _, e := range evs {
		if e.IsRecurringMaster() {
			masterIDs = append(masterIDs, e.ID)
		}
	}
	if len(masterIDs) == 0 {
		return nil, nil
	}
	overrides, err := s.eventsRepo.EventsByRecurringEventIDs(ctx, masterIDs)
	if err != nil {
		return nil, apperr.StorageUnavailable("list event overrides", err)
	}
	return overrides, nil
}

// Search answers the §6 search grammar. When filter.Metadata is set, the
// metadata predicate is resolved against adapter/out/searchindex first and
// intersected with Postgres's other predicates.
func (s *Service) Search(ctx context.Context, accountID uuid.UUID, forUser *uuid.UUID, filter out.EventSearchFilter) ([]*domain.CalendarEvent, error) {
	if filter.Metadata != nil {
		if s.searchIndex == nil {
			return nil, apperr.BadInput("metadata search requires the search index to be configured")
		}
		ids, err := s.searchIndex.MatchEventIDs(ctx, accountID, filter.Metadata)
		if err != nil {
			return nil, apperr.StorageUnavailable("search metadata index", err)
		}
		filter.MetadataIDs = ids
	}
	if forUser != nil {
		evs, err := s.eventsRepo.SearchForUser(ctx, *forUser, filter)
		if err != nil {
			return nil, apperr.StorageUnavailable("search events for user", err)
		}
		return evs, nil
	}
	evs, err := s.eventsRepo.SearchForAccount(ctx, accountID, filter)
	if err != nil {
		return nil, apperr.StorageUnavailable("search events for account", err)
	}
	return evs, nil
}

// validateReminders enforces spec.md §3's "reminder.delta_minutes ∈ [0,
// 525600]" (one year, in minutes).
func validateReminders(reminders []domain.Reminder) error {
	const maxDeltaMinutes = 525600
	for _, r := range reminders {
		if r.MinutesBefore < 0 || r.MinutesBefore > maxDeltaMinutes {
			return apperr.BadInput("events: reminder delta_minutes must be within [0, 525600]")
		}
	}
	return nil
}

// indexMetadata keeps adapter/out/searchindex in sync with an event's
// metadata so Search's metadata predicate can find it; best-effort, since
// Postgres remains the source of truth.
func (s *Service) indexMetadata(ctx context.Context, accountID uuid.UUID, event *domain.CalendarEvent) {
	if s.searchIndex == nil || event.Metadata == nil {
		return
	}
	if err := s.searchIndex.UpsertEvent(ctx, accountID, event.ID, event.Metadata); err != nil {
		logger.WithError(err).Warn("failed to index event metadata")
	}
}

func (s *Service) notify(ctx context.Context, accountID uuid.UUID, kind out.WebhookEventKind, event *domain.CalendarEvent) {
	if s.webhooks == nil {
		return
	}
	payload, err := json.Marshal(struct {
		Kind  out.WebhookEventKind `json:"kind"`
		Event *domain.CalendarEvent `json:"event"`
	}{Kind: kind, Event: event})
	if err != nil {
		return
	}
	// Best-effort: enqueue failures never propagate to the caller.
	_ = s.webhooks.Enqueue(ctx, out.WebhookDelivery{AccountID: accountID, Kind: kind, Payload: payload})
}
