package freebusy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/port/out"
)

type fakeEvents struct {
	events []*domain.CalendarEvent
}

func (f *fakeEvents) GetEvent(context.Context, uuid.UUID) (*domain.CalendarEvent, error) { return nil, nil }
func (f *fakeEvents) GetEventByExternalID(context.Context, uuid.UUID, string) (*domain.CalendarEvent, error) {
	return nil, nil
}
func (f *fakeEvents) EventsForCalendar(context.Context, uuid.UUID, domain.TimeSpan) ([]*domain.CalendarEvent, error) {
	return nil, nil
}
func (f *fakeEvents) EventsForUsers(context.Context, []uuid.UUID, domain.TimeSpan) ([]*domain.CalendarEvent, error) {
	return f.events, nil
}
func (f *fakeEvents) EventsByRecurringEventIDs(context.Context, []uuid.UUID) ([]*domain.CalendarEvent, error) {
	return nil, nil
}
func (f *fakeEvents) MostRecentServiceEventsPerUser(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]*domain.CalendarEvent, error) {
	return nil, nil
}
func (f *fakeEvents) Create(context.Context, *domain.CalendarEvent) error        { return nil }
func (f *fakeEvents) CreateBatch(context.Context, []*domain.CalendarEvent) error { return nil }
func (f *fakeEvents) Update(context.Context, *domain.CalendarEvent) error        { return nil }
func (f *fakeEvents) Delete(context.Context, uuid.UUID) error                    { return nil }
func (f *fakeEvents) SearchForUser(context.Context, uuid.UUID, out.EventSearchFilter) ([]*domain.CalendarEvent, error) {
	return nil, nil
}
func (f *fakeEvents) SearchForAccount(context.Context, uuid.UUID, out.EventSearchFilter) ([]*domain.CalendarEvent, error) {
	return nil, nil
}

type fakeCalendars struct{}

func (fakeCalendars) GetByID(context.Context, uuid.UUID) (*domain.Calendar, error)  { return nil, nil }
func (fakeCalendars) ForUser(context.Context, uuid.UUID) ([]*domain.Calendar, error) { return nil, nil }
func (fakeCalendars) Create(context.Context, *domain.Calendar) error                 { return nil }
func (fakeCalendars) Update(context.Context, *domain.Calendar) error                 { return nil }
func (fakeCalendars) Delete(context.Context, uuid.UUID) error                        { return nil }

func mkEvent(start time.Time, dur time.Duration, busy bool, status domain.CalendarEventStatus) *domain.CalendarEvent {
	return &domain.CalendarEvent{
		ID:       uuid.New(),
		Start:    start,
		Duration: dur,
		Busy:     busy,
		Status:   status,
	}
}

// TestForUserExcludesNonBusyEvents guards against a transparent ("free")
// event leaking into the busy result: spec.md §4.5 step 4 requires the
// resolved view to contain only busy = true instances.
func TestForUserExcludesNonBusyEvents(t *testing.T) {
	userID := uuid.New()
	window := domain.TimeSpan{
		Start: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
	}

	busyEvent := mkEvent(window.Start.Add(9*time.Hour), time.Hour, true, domain.EventStatusConfirmed)
	freeEvent := mkEvent(window.Start.Add(14*time.Hour), time.Hour, false, domain.EventStatusConfirmed)

	events := &fakeEvents{events: []*domain.CalendarEvent{busyEvent, freeEvent}}
	s := NewService(events, fakeCalendars{}, nil, nil, 0)

	instances, err := s.ForUser(context.Background(), userID, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, inst := range instances {
		if !inst.Busy {
			t.Errorf("ForUser returned a non-busy instance %v; only busy=true instances may surface", inst.TimeSpan)
		}
	}

	found := false
	for _, inst := range instances {
		if inst.Start.Equal(busyEvent.Start) {
			found = true
		}
		if inst.Start.Equal(freeEvent.Start) {
			t.Errorf("the free-marked event at %v leaked into the busy result", freeEvent.Start)
		}
	}
	if !found {
		t.Error("expected the genuinely busy event to still be present")
	}
}

// TestForUserExcludesCancelledEvents confirms a cancelled event contributes
// no instance at all (spec.md §4.5 step 4 "status != cancelled"), even
// though it is marked busy = true.
func TestForUserExcludesCancelledEvents(t *testing.T) {
	userID := uuid.New()
	window := domain.TimeSpan{
		Start: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
	}

	cancelled := mkEvent(window.Start.Add(9*time.Hour), time.Hour, true, domain.EventStatusCancelled)
	events := &fakeEvents{events: []*domain.CalendarEvent{cancelled}}
	s := NewService(events, fakeCalendars{}, nil, nil, 0)

	instances, err := s.ForUser(context.Background(), userID, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(instances) != 0 {
		t.Errorf("expected a cancelled event to contribute no busy instances, got %v", instances)
	}
}
