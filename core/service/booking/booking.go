// Package booking implements bookable-service management and the booking
// slot search of spec.md §4.6, combining each resource's schedule/calendar
// availability with its busy time and buffers before handing the candidate
// set to internal/engine/booking.
package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/internal/engine/availability"
	bookingengine "nittei/internal/engine/booking"
	"nittei/internal/engine/expand"
	"nittei/internal/engine/interval"
	"nittei/pkg/apperr"
)

// Service orchestrates service/resource management and slot search.
type Service struct {
	services  out.ServiceRepository
	schedules out.ScheduleRepository
	events    out.EventRepository
	calendars out.CalendarRepository

	minIntervalMinutes int
	maxIntervalMinutes int
}

// NewService wires the service/schedule/event/calendar ports. minInterval/
// maxIntervalMinutes bound the slot-search interval_minutes (spec.md §4.6);
// zero for either falls back to internal/engine/booking's own defaults.
func NewService(services out.ServiceRepository, schedules out.ScheduleRepository, events out.EventRepository, calendars out.CalendarRepository, minIntervalMinutes, maxIntervalMinutes int) *Service {
	return &Service{
		services:           services,
		schedules:          schedules,
		events:             events,
		calendars:          calendars,
		minIntervalMinutes: minIntervalMinutes,
		maxIntervalMinutes: maxIntervalMinutes,
	}
}

// CreateService registers a new bookable service.
func (s *Service) CreateService(ctx context.Context, accountID uuid.UUID, duration time.Duration, intervalMinutes int, policy domain.MultiUserPolicy, groupSize int) (*domain.Service, error) {
	if duration <= 0 {
		return nil, apperr.BadInput("booking: duration must be positive")
	}
	if intervalMinutes <= 0 {
		return nil, apperr.BadInput("booking: interval_minutes must be positive")
	}
	if policy == domain.PolicyGroup && groupSize < 1 {
		return nil, apperr.BadInput("booking: group policy requires group_size >= 1")
	}
	svc := &domain.Service{
		ID:              uuid.New(),
		AccountID:       accountID,
		Duration:        duration,
		IntervalMinutes: intervalMinutes,
		MultiUserPolicy: policy,
		GroupSize:       groupSize,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, apperr.StorageUnavailable("create service", err)
	}
	return svc, nil
}

// GetService fetches a service scoped to its owning account.
func (s *Service) GetService(ctx context.Context, accountID, serviceID uuid.UUID) (*domain.Service, error) {
	return s.getService(ctx, accountID, serviceID)
}

// DeleteService removes a service and, transitively, its resources.
func (s *Service) DeleteService(ctx context.Context, accountID, serviceID uuid.UUID) error {
	if _, err := s.getService(ctx, accountID, serviceID); err != nil {
		return err
	}
	if err := s.services.Delete(ctx, serviceID); err != nil {
		return apperr.StorageUnavailable("delete service", err)
	}
	return nil
}

// RemoveResource detaches userID as a bookable resource of a service.
func (s *Service) RemoveResource(ctx context.Context, accountID, serviceID, userID uuid.UUID) error {
	if _, err := s.getService(ctx, accountID, serviceID); err != nil {
		return err
	}
	if err := s.services.RemoveResource(ctx, serviceID, userID); err != nil {
		return apperr.StorageUnavailable("remove service resource", err)
	}
	return nil
}

const maxBufferMinutes = 720

// AddResource attaches a user as a bookable resource of a service.
func (s *Service) AddResource(ctx context.Context, accountID, serviceID uuid.UUID, resource *domain.ServiceResource) error {
	svc, err := s.getService(ctx, accountID, serviceID)
	if err != nil {
		return err
	}
	if err := validateResourceBuffers(resource); err != nil {
		return err
	}
	resource.ID = uuid.New()
	resource.ServiceID = svc.ID
	if err := s.services.AddResource(ctx, svc.ID, resource); err != nil {
		return apperr.StorageUnavailable("add service resource", err)
	}
	return nil
}

// validateResourceBuffers enforces spec.md §3's "Buffer values ∈ [0, 720]".
func validateResourceBuffers(r *domain.ServiceResource) error {
	max := time.Duration(maxBufferMinutes) * time.Minute
	if r.BufferBefore < 0 || r.BufferBefore > max {
		return apperr.BadInput("booking: buffer_before_minutes must be within [0, 720]")
	}
	if r.BufferAfter < 0 || r.BufferAfter > max {
		return apperr.BadInput("booking: buffer_after_minutes must be within [0, 720]")
	}
	if r.ClosestBookingTime < 0 {
		return apperr.BadInput("booking: closest_booking_minutes must be non-negative")
	}
	return nil
}

func (s *Service) getService(ctx context.Context, accountID, serviceID uuid.UUID) (*domain.Service, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, apperr.StorageUnavailable("get service", err)
	}
	if svc == nil || svc.AccountID != accountID {
		return nil, apperr.NotFound("service", serviceID.String())
	}
	return svc, nil
}

// SlotQuery carries the per-request booking-search parameters spec.md §4.6
// accepts alongside a stored Service: the request's own duration/interval
// (falling back to the service's configured defaults when zero) and an
// optional host filter.
type SlotQuery struct {
	DurationMinutes int
	IntervalMinutes int
	HostUserIDs     []uuid.UUID
}

// FindSlots resolves every resource's net free time within window and
// returns the offerable booking candidates for accountID's serviceID.
// query.HostUserIDs, when non-empty, restricts the search to that subset of
// the service's resources (spec.md §6 "optional filter host_user_ids").
func (s *Service) FindSlots(ctx context.Context, accountID, serviceID uuid.UUID, window domain.TimeSpan, now time.Time, query SlotQuery) ([]bookingengine.Slot, error) {
	svc, err := s.getService(ctx, accountID, serviceID)
	if err != nil {
		return nil, err
	}
	resources := svc.Resources
	hostUserIDs := query.HostUserIDs
	if len(hostUserIDs) > 0 {
		allowed := make(map[uuid.UUID]struct{}, len(hostUserIDs))
		for _, id := range hostUserIDs {
			allowed[id] = struct{}{}
		}
		filtered := make([]domain.ServiceResource, 0, len(resources))
		for _, r := range resources {
			if _, ok := allowed[r.UserID]; ok {
				filtered = append(filtered, r)
			}
		}
		resources = filtered
	}
	if len(resources) == 0 {
		return nil, nil
	}
	svc.Resources = resources

	resourceInputs := make([]bookingengine.ResourceInput, 0, len(svc.Resources))
	userIDs := make([]uuid.UUID, 0, len(svc.Resources))
	for _, r := range svc.Resources {
		userIDs = append(userIDs, r.UserID)
	}

	lastBookedAt, err := s.mostRecentBookings(ctx, svc.ID, userIDs)
	if err != nil {
		return nil, err
	}

	for _, r := range svc.Resources {
		free, err := s.resourceFreeTime(ctx, r, window, now)
		if err != nil {
			return nil, err
		}
		resourceInputs = append(resourceInputs, bookingengine.ResourceInput{UserID: r.UserID, Free: free})
	}

	duration := svc.Duration
	if query.DurationMinutes > 0 {
		duration = time.Duration(query.DurationMinutes) * time.Minute
	}
	intervalMinutes := svc.IntervalMinutes
	if query.IntervalMinutes > 0 {
		intervalMinutes = query.IntervalMinutes
	}

	// Buffers and the closest/furthest-booking clamp are both scoped per
	// resource (spec.md §4.6 steps 4-5), so they are already baked into
	// each free instance above (see resourceFreeTime) rather than applied
	// again here against a single shared value.
	params := bookingengine.Params{
		Duration:           duration,
		IntervalMinutes:    intervalMinutes,
		Policy:             svc.MultiUserPolicy,
		GroupSize:          svc.GroupSize,
		LastBookedAt:       lastBookedAt,
		MinIntervalMinutes: s.minIntervalMinutes,
		MaxIntervalMinutes: s.maxIntervalMinutes,
	}

	return bookingengine.FindSlots(resourceInputs, window, params)
}

// resourceFreeTime resolves a single resource's schedule, calendar or empty
// availability, subtracts its busy calendars, clamps to its own
// closest/furthest-booking window, and shrinks each remaining free span by
// its booking buffers.
func (s *Service) resourceFreeTime(ctx context.Context, r domain.ServiceResource, window domain.TimeSpan, now time.Time) (interval.CompatibleInstances, error) {
	var free interval.CompatibleInstances
	switch r.AvailabilityKind {
	case domain.AvailabilitySchedule:
		if r.AvailabilityScheduleID == nil {
			return interval.CompatibleInstances{}, apperr.BadInput("booking: resource declares schedule availability but has no schedule_id")
		}
		sched, err := s.schedules.GetByID(ctx, *r.AvailabilityScheduleID)
		if err != nil {
			return interval.CompatibleInstances{}, apperr.StorageUnavailable("get schedule", err)
		}
		if sched == nil {
			return interval.CompatibleInstances{}, apperr.NotFound("schedule", r.AvailabilityScheduleID.String())
		}
		free, err = availability.FromSchedule(sched, window)
		if err != nil {
			return interval.CompatibleInstances{}, err
		}
	case domain.AvailabilityCalendar:
		if r.AvailabilityCalendarID == nil {
			return interval.CompatibleInstances{}, apperr.BadInput("booking: resource declares calendar availability but has no calendar_id")
		}
		evs, err := s.events.EventsForCalendar(ctx, *r.AvailabilityCalendarID, window)
		if err != nil {
			return interval.CompatibleInstances{}, apperr.StorageUnavailable("list events for availability calendar", err)
		}
		free, err = availability.FromCalendar(evs, window)
		if err != nil {
			return interval.CompatibleInstances{}, err
		}
	default:
		free = availability.Empty(window)
	}

	busy, err := s.busyForResource(ctx, r, window)
	if err != nil {
		return interval.CompatibleInstances{}, err
	}
	free = free.Subtract(busy)

	free = clampByBookingWindow(free, now, r.ClosestBookingTime, r.FurthestBookingTime)

	if r.BufferBefore > 0 || r.BufferAfter > 0 {
		free = shrinkByBuffers(free, r.BufferBefore, r.BufferAfter)
	}
	return free, nil
}

// clampByBookingWindow drops free instances starting before
// now+closestBooking, and those starting after now+furthestBooking when set
// (spec.md §4.6 step 4). A nil furthestBooking leaves the upper bound
// unconstrained.
func clampByBookingWindow(free interval.CompatibleInstances, now time.Time, closestBooking time.Duration, furthestBooking *time.Duration) interval.CompatibleInstances {
	earliest := now.Add(closestBooking)
	var latest time.Time
	if furthestBooking != nil {
		latest = now.Add(*furthestBooking)
	}

	var kept []domain.Instance
	for _, inst := range free.Instances() {
		if inst.Start.Before(earliest) {
			continue
		}
		if furthestBooking != nil && inst.Start.After(latest) {
			continue
		}
		kept = append(kept, inst)
	}
	return interval.New(kept)
}

func (s *Service) busyForResource(ctx context.Context, r domain.ServiceResource, window domain.TimeSpan) (interval.CompatibleInstances, error) {
	calendarIDs := r.CalendarIDs
	if len(calendarIDs) == 0 {
		cals, err := s.calendars.ForUser(ctx, r.UserID)
		if err != nil {
			return interval.CompatibleInstances{}, apperr.StorageUnavailable("list calendars for resource", err)
		}
		for _, c := range cals {
			calendarIDs = append(calendarIDs, c.ID)
		}
	}

	var all []domain.Instance
	for _, calID := range calendarIDs {
		evs, err := s.events.EventsForCalendar(ctx, calID, window)
		if err != nil {
			return interval.CompatibleInstances{}, apperr.StorageUnavailable("list events for calendar", err)
		}
		var masterIDs []uuid.UUID
		for _, e := range evs {
			if e.IsRecurringMaster() {
				masterIDs = append(masterIDs, e.ID)
			}
		}
		var overrides []*domain.CalendarEvent
		if len(masterIDs) > 0 {
			overrides, err = s.events.EventsByRecurringEventIDs(ctx, masterIDs)
			if err != nil {
				return interval.CompatibleInstances{}, apperr.StorageUnavailable("list event overrides", err)
			}
		}
		instances, err := expand.ExpandMany(append(evs, overrides...), window)
		if err != nil {
			return interval.CompatibleInstances{}, err
		}
		for _, inst := range instances {
			if inst.Busy {
				all = append(all, inst)
			}
		}
	}
	return interval.New(all), nil
}

func (s *Service) mostRecentBookings(ctx context.Context, serviceID uuid.UUID, userIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	events, err := s.events.MostRecentServiceEventsPerUser(ctx, serviceID, userIDs)
	if err != nil {
		return nil, apperr.StorageUnavailable("list most recent service events", err)
	}
	result := make(map[uuid.UUID]time.Time, len(events))
	for userID, e := range events {
		if e != nil {
			result[userID] = e.Start
		}
	}
	return result, nil
}

// shrinkByBuffers trims `before` off the start and `after` off the end of
// every free instance, dropping any that collapse to zero or negative
// length.
func shrinkByBuffers(free interval.CompatibleInstances, before, after time.Duration) interval.CompatibleInstances {
	var shrunk []domain.Instance
	for _, inst := range free.Instances() {
		inst.Start = inst.Start.Add(before)
		inst.End = inst.End.Add(-after)
		if inst.Start.Before(inst.End) {
			shrunk = append(shrunk, inst)
		}
	}
	return interval.New(shrunk)
}
