package domain

import "time"

// TimeSpan is a half-open [Start, End) interval in absolute (UTC) time.
type TimeSpan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End-Start.
func (t TimeSpan) Duration() time.Duration { return t.End.Sub(t.Start) }

// Overlaps reports whether t and o share any instant.
func (t TimeSpan) Overlaps(o TimeSpan) bool {
	return t.Start.Before(o.End) && o.Start.Before(t.End)
}

// Instance is one concrete, already-expanded occurrence of an event or an
// availability block: a timespan tagged with whether it counts as busy.
// Instances are the common currency between internal/engine/expand,
// internal/engine/interval, internal/engine/availability, and
// internal/engine/booking.
type Instance struct {
	TimeSpan
	Busy bool `json:"busy"`
}

// Before orders instances by start time, then by end time, matching the
// sort internal/engine/interval.CompatibleInstances maintains.
func (i Instance) Before(o Instance) bool {
	if !i.Start.Equal(o.Start) {
		return i.Start.Before(o.Start)
	}
	return i.End.Before(o.End)
}
