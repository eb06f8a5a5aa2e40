package domain

import (
	"time"

	"github.com/google/uuid"

	"nittei/internal/recurrence"
)

// CalendarSettings hold the display/expansion defaults a calendar's events
// inherit unless a given event overrides them.
type CalendarSettings struct {
	Timezone  string              `json:"timezone"`
	WeekStart recurrence.Weekday  `json:"week_start"`
}

// Calendar groups events owned by a single user. A Calendar may optionally
// mirror an external provider calendar (spec.md §3 "optional provider
// link"); ProviderID/ProviderKind are nil for calendars with no external
// counterpart.
type Calendar struct {
	ID           uuid.UUID         `json:"id"`
	AccountID    uuid.UUID         `json:"account_id"`
	UserID       uuid.UUID         `json:"user_id"`
	Name         *string           `json:"name,omitempty"`
	Settings     CalendarSettings  `json:"settings"`
	ProviderKind *string           `json:"provider_kind,omitempty"` // e.g. "google"
	ProviderID   *string           `json:"provider_id,omitempty"`
	Metadata     Metadata          `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// CalendarEventStatus marks an event's lifecycle state, separate from
// whether it is a busy or free block on the calendar.
type CalendarEventStatus string

const (
	EventStatusConfirmed CalendarEventStatus = "confirmed"
	EventStatusTentative  CalendarEventStatus = "tentative"
	EventStatusCancelled  CalendarEventStatus = "cancelled"
)

// CalendarEvent is a single scheduled block, optionally recurring. Start/
// Duration describe the first (or only) occurrence; a RecurrenceRule, when
// present, is expanded by internal/engine/expand against Exdates and the
// override events whose RecurringEventID names this event to produce the
// full occurrence set.
type CalendarEvent struct {
	ID                uuid.UUID          `json:"id"`
	AccountID         uuid.UUID          `json:"account_id"`
	CalendarID        uuid.UUID          `json:"calendar_id"`
	UserID            uuid.UUID          `json:"user_id"`
	ExternalID        *string            `json:"external_id,omitempty"`
	Title             *string            `json:"title,omitempty"`
	Start             time.Time          `json:"start"`
	Duration          time.Duration      `json:"duration"`
	Busy              bool               `json:"busy"`
	Status            CalendarEventStatus `json:"status"`
	RecurrenceRule    *recurrence.Options `json:"recurrence_rule,omitempty"`
	Exdates           []time.Time        `json:"exdates,omitempty"`
	RecurringEventID  *uuid.UUID         `json:"recurring_event_id,omitempty"`
	OriginalStartTime *time.Time         `json:"original_start_time,omitempty"`
	Reminders         []Reminder         `json:"reminders,omitempty"`
	ServiceID         *uuid.UUID         `json:"service_id,omitempty"`
	Metadata          Metadata           `json:"metadata,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// IsRecurringMaster reports whether e carries a recurrence rule rather than
// being a single occurrence or an override instance.
func (e *CalendarEvent) IsRecurringMaster() bool {
	return e.RecurrenceRule != nil
}

// IsOverride reports whether e replaces one occurrence of a recurring
// master event (spec.md §4.2 "an override event supersedes the generated
// occurrence at its original start time").
func (e *CalendarEvent) IsOverride() bool {
	return e.RecurringEventID != nil
}

// Reminder is a relative-offset notification attached to an event.
type Reminder struct {
	MinutesBefore int    `json:"minutes_before"`
	Method        string `json:"method"` // "email", "webhook", ...
}
