package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/internal/recurrence"
)

// fakeServices, fakeSchedules, fakeEvents, and fakeCalendars are minimal
// in-memory stand-ins for the storage ports, enough to exercise FindSlots'
// orchestration without a database.
type fakeServices struct {
	svc *domain.Service
}

func (f *fakeServices) GetByID(_ context.Context, id uuid.UUID) (*domain.Service, error) {
	if f.svc == nil || f.svc.ID != id {
		return nil, nil
	}
	return f.svc, nil
}
func (f *fakeServices) Create(context.Context, *domain.Service) error { return nil }
func (f *fakeServices) Update(context.Context, *domain.Service) error { return nil }
func (f *fakeServices) Delete(context.Context, uuid.UUID) error       { return nil }
func (f *fakeServices) AddResource(context.Context, uuid.UUID, *domain.ServiceResource) error {
	return nil
}
func (f *fakeServices) RemoveResource(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type fakeSchedules struct {
	schedules map[uuid.UUID]*domain.Schedule
}

func (f *fakeSchedules) GetByID(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	return f.schedules[id], nil
}
func (f *fakeSchedules) ForUser(context.Context, uuid.UUID) ([]*domain.Schedule, error) { return nil, nil }
func (f *fakeSchedules) Create(context.Context, *domain.Schedule) error                 { return nil }
func (f *fakeSchedules) Update(context.Context, *domain.Schedule) error                 { return nil }
func (f *fakeSchedules) Delete(context.Context, uuid.UUID) error                        { return nil }

type fakeEvents struct{}

func (fakeEvents) GetEvent(context.Context, uuid.UUID) (*domain.CalendarEvent, error) { return nil, nil }
func (fakeEvents) GetEventByExternalID(context.Context, uuid.UUID, string) (*domain.CalendarEvent, error) {
	return nil, nil
}
func (fakeEvents) EventsForCalendar(context.Context, uuid.UUID, domain.TimeSpan) ([]*domain.CalendarEvent, error) {
	return nil, nil
}
func (fakeEvents) EventsForUsers(context.Context, []uuid.UUID, domain.TimeSpan) ([]*domain.CalendarEvent, error) {
	return nil, nil
}
func (fakeEvents) EventsByRecurringEventIDs(context.Context, []uuid.UUID) ([]*domain.CalendarEvent, error) {
	return nil, nil
}
func (fakeEvents) MostRecentServiceEventsPerUser(context.Context, uuid.UUID, []uuid.UUID) (map[uuid.UUID]*domain.CalendarEvent, error) {
	return map[uuid.UUID]*domain.CalendarEvent{}, nil
}
func (fakeEvents) Create(context.Context, *domain.CalendarEvent) error      { return nil }
func (fakeEvents) CreateBatch(context.Context, []*domain.CalendarEvent) error { return nil }
func (fakeEvents) Update(context.Context, *domain.CalendarEvent) error      { return nil }
func (fakeEvents) Delete(context.Context, uuid.UUID) error                 { return nil }
func (fakeEvents) SearchForUser(context.Context, uuid.UUID, out.EventSearchFilter) ([]*domain.CalendarEvent, error) {
	return nil, nil
}
func (fakeEvents) SearchForAccount(context.Context, uuid.UUID, out.EventSearchFilter) ([]*domain.CalendarEvent, error) {
	return nil, nil
}

type fakeCalendars struct{}

func (fakeCalendars) GetByID(context.Context, uuid.UUID) (*domain.Calendar, error) { return nil, nil }
func (fakeCalendars) ForUser(context.Context, uuid.UUID) ([]*domain.Calendar, error) { return nil, nil }
func (fakeCalendars) Create(context.Context, *domain.Calendar) error                 { return nil }
func (fakeCalendars) Update(context.Context, *domain.Calendar) error                 { return nil }
func (fakeCalendars) Delete(context.Context, uuid.UUID) error                        { return nil }

// freeAllDaySchedule returns a schedule free for most of every hour of every
// weekday, as 24 separate 59-minute intervals rather than one day-long span.
// interval.New merges touching free intervals, so the one-minute gaps keep
// each hour its own instance, and the closest/furthest-booking clamp (which
// drops whole instances rather than trimming them) has individually
// droppable hours to work with.
func freeAllDaySchedule(id, userID uuid.UUID) *domain.Schedule {
	full := make([]domain.WallClockInterval, 24)
	for h := 0; h < 24; h++ {
		full[h] = domain.WallClockInterval{StartMinute: h * 60, EndMinute: h*60 + 59}
	}
	rules := []domain.ScheduleRule{
		{Day: recurrence.Monday, Intervals: full},
		{Day: recurrence.Tuesday, Intervals: full},
		{Day: recurrence.Wednesday, Intervals: full},
		{Day: recurrence.Thursday, Intervals: full},
		{Day: recurrence.Friday, Intervals: full},
		{Day: recurrence.Saturday, Intervals: full},
		{Day: recurrence.Sunday, Intervals: full},
	}
	return &domain.Schedule{ID: id, UserID: userID, Timezone: "UTC", Rules: rules}
}

// TestFindSlotsClampsEachResourceByItsOwnBookingWindow guards against
// applying only the first resource's closest/furthest-booking minutes to
// every resource: u1 has no lower clamp, u2 can't be booked within the
// first 20 hours. A collective slot may only appear once both are free.
func TestFindSlotsClampsEachResourceByItsOwnBookingWindow(t *testing.T) {
	accountID := uuid.New()
	serviceID := uuid.New()
	u1, u2 := uuid.New(), uuid.New()
	sched1, sched2 := uuid.New(), uuid.New()

	svc := &domain.Service{
		ID:              serviceID,
		AccountID:       accountID,
		Duration:        30 * time.Minute,
		IntervalMinutes: 30,
		MultiUserPolicy: domain.PolicyCollective,
		Resources: []domain.ServiceResource{
			{
				UserID:                 u1,
				ClosestBookingTime:     0,
				AvailabilityKind:       domain.AvailabilitySchedule,
				AvailabilityScheduleID: &sched1,
			},
			{
				UserID:                 u2,
				ClosestBookingTime:     20 * time.Hour,
				AvailabilityKind:       domain.AvailabilitySchedule,
				AvailabilityScheduleID: &sched2,
			},
		},
	}

	svcRepo := &fakeServices{svc: svc}
	schedRepo := &fakeSchedules{schedules: map[uuid.UUID]*domain.Schedule{
		sched1: freeAllDaySchedule(sched1, u1),
		sched2: freeAllDaySchedule(sched2, u2),
	}}

	s := NewService(svcRepo, schedRepo, fakeEvents{}, fakeCalendars{}, 15, 1440)

	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	window := domain.TimeSpan{Start: now, End: now.Add(24 * time.Hour)}

	slots, err := s.FindSlots(context.Background(), accountID, serviceID, window, now, SlotQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected collective slots once u2's clamp opens up")
	}
	for _, slot := range slots {
		if slot.TimeSpan.Start.Before(now.Add(20 * time.Hour)) {
			t.Errorf("slot %v starts before u2's own closest-booking clamp; u1's looser clamp must not leak onto u2", slot.TimeSpan)
		}
	}
}

func TestFindSlotsNoSlotsWhenEveryResourceClampedPastTheWindow(t *testing.T) {
	accountID := uuid.New()
	serviceID := uuid.New()
	u1 := uuid.New()
	sched1 := uuid.New()

	svc := &domain.Service{
		ID:              serviceID,
		AccountID:       accountID,
		Duration:        30 * time.Minute,
		IntervalMinutes: 30,
		MultiUserPolicy: domain.PolicyCollective,
		Resources: []domain.ServiceResource{
			{
				UserID:                 u1,
				ClosestBookingTime:     48 * time.Hour,
				AvailabilityKind:       domain.AvailabilitySchedule,
				AvailabilityScheduleID: &sched1,
			},
		},
	}

	svcRepo := &fakeServices{svc: svc}
	schedRepo := &fakeSchedules{schedules: map[uuid.UUID]*domain.Schedule{
		sched1: freeAllDaySchedule(sched1, u1),
	}}
	s := NewService(svcRepo, schedRepo, fakeEvents{}, fakeCalendars{}, 15, 1440)

	now := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	window := domain.TimeSpan{Start: now, End: now.Add(24 * time.Hour)}

	slots, err := s.FindSlots(context.Background(), accountID, serviceID, window, now, SlotQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots once the resource's closest-booking clamp falls entirely outside the window, got %v", slots)
	}
}
