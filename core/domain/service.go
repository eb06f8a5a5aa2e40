package domain

import (
	"time"

	"github.com/google/uuid"
)

// MultiUserPolicy decides how a booking-slot search combines several
// resources' availability (spec.md §4.6).
type MultiUserPolicy string

const (
	// PolicyCollective requires all resources free at once.
	PolicyCollective MultiUserPolicy = "collective"
	// PolicyGroup requires at least GroupSize resources free at once.
	PolicyGroup MultiUserPolicy = "group"
	// PolicyRoundRobin assigns the booking to a single resource, chosen by
	// oldest-assignment or equal-distribution ordering.
	PolicyRoundRobin MultiUserPolicy = "round_robin"
)

// ServiceResource binds a user to a service via either a Schedule template
// or their full calendar availability, with per-resource booking buffers.
type ServiceResource struct {
	ID                uuid.UUID  `json:"id"`
	ServiceID         uuid.UUID  `json:"service_id"`
	UserID            uuid.UUID  `json:"user_id"`
	CalendarIDs       []uuid.UUID `json:"calendar_ids,omitempty"`
	BufferBefore      time.Duration `json:"buffer_before"`
	BufferAfter       time.Duration `json:"buffer_after"`
	ClosestBookingTime time.Duration `json:"closest_booking_time"`
	// FurthestBookingTime is nil when the resource has no upper booking
	// horizon (spec.md §3 "furthest_booking may be null"): a zero value here
	// would wrongly clamp every search to "now", so absence must stay
	// distinguishable from a zero-duration bound.
	FurthestBookingTime *time.Duration `json:"furthest_booking_time,omitempty"`

	// AvailabilityKind, AvailabilityScheduleID and AvailabilityCalendarID
	// encode the resource's availability source (spec.md §3 "availability ∈
	// {Calendar(id) | Schedule(id) | Empty}"), independent of CalendarIDs
	// which names busy calendars, not the availability source.
	AvailabilityKind       ResourceAvailabilityKind `json:"availability_kind"`
	AvailabilityScheduleID *uuid.UUID               `json:"availability_schedule_id,omitempty"`
	AvailabilityCalendarID *uuid.UUID               `json:"availability_calendar_id,omitempty"`
}

// ResourceAvailabilityKind picks which source a ServiceResource's free time
// is resolved from (spec.md §4.4/§4.6).
type ResourceAvailabilityKind string

const (
	AvailabilitySchedule ResourceAvailabilityKind = "schedule"
	AvailabilityCalendar ResourceAvailabilityKind = "calendar"
	AvailabilityEmpty    ResourceAvailabilityKind = "empty"
)

// Service is a bookable offering: a fixed duration, a slot granularity, and
// a set of resources combined under a MultiUserPolicy.
type Service struct {
	ID              uuid.UUID       `json:"id"`
	AccountID       uuid.UUID       `json:"account_id"`
	Duration        time.Duration   `json:"duration"`
	IntervalMinutes int             `json:"interval_minutes"`
	MultiUserPolicy MultiUserPolicy `json:"multi_user_policy"`
	GroupSize       int             `json:"group_size,omitempty"` // only for PolicyGroup
	Resources       []ServiceResource `json:"resources"`
	Metadata        Metadata        `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
