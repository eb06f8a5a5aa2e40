package domain

import (
	"time"

	"github.com/google/uuid"

	"nittei/internal/recurrence"
)

// ScheduleRule is either a weekday-recurring window of availability (e.g.
// "Monday 09:00-17:00") or a one-off override for a specific calendar date
// (spec.md §3 "a rule is either (weekday, intervals) or (specific_date,
// intervals)"). Exactly one of Day/Date is meaningful, selected by IsDate.
// Intervals are wall-clock, resolved against the schedule's Timezone.
type ScheduleRule struct {
	IsDate    bool                `json:"is_date"`
	Day       recurrence.Weekday  `json:"day,omitempty"`
	Date      *Date               `json:"date,omitempty"`
	Intervals []WallClockInterval `json:"intervals"`
}

// Date is a calendar date with no time-of-day or zone component, used for
// Schedule's specific-date rule variant.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
	Day   int `json:"day"`
}

// Equal reports whether d and o name the same calendar date.
func (d Date) Equal(o Date) bool {
	return d.Year == o.Year && d.Month == o.Month && d.Day == o.Day
}

// DateOf truncates t (already resolved to the schedule's zone) to a Date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// InUpdateWindow reports whether d lies within the ±(2 days past, 5 years
// future) window spec.md §3 requires for a specific-date rule to be honored,
// measured from now.
func (d Date) InUpdateWindow(now time.Time) bool {
	loc := now.Location()
	day := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
	earliest := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -2)
	latest := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(5, 0, 0)
	return !day.Before(earliest) && !day.After(latest)
}

// WallClockInterval is a same-day [Start, End) window expressed as minutes
// since midnight, so it can be replayed against any date in a schedule's
// timezone.
type WallClockInterval struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Schedule is a named, reusable weekly availability template a user can
// reference from a Service (spec.md §3/§4.4 "Schedule-backed availability").
type Schedule struct {
	ID        uuid.UUID      `json:"id"`
	AccountID uuid.UUID      `json:"account_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Timezone  string         `json:"timezone"`
	Rules     []ScheduleRule `json:"rules"`
	Metadata  Metadata       `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
