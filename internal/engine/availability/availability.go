// Package availability resolves a Schedule (or its absence) into the free
// Instances a booking search treats as open, per spec.md §4.4.
package availability

import (
	"time"

	"nittei/core/domain"
	"nittei/internal/engine/expand"
	"nittei/internal/engine/interval"
)

// FromSchedule expands schedule's weekday/date rules across window,
// returning one free Instance per rule interval per matching day. A
// specific-date rule for a given local date takes precedence over that
// date's weekday rule (spec.md §4.4 step 2); a date with no matching rule
// at all contributes no free intervals. Rule intervals are wall-clock
// minutes-since-midnight, replayed in schedule.Timezone so DST transitions
// shift the UTC instant.
func FromSchedule(schedule *domain.Schedule, window domain.TimeSpan) (interval.CompatibleInstances, error) {
	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		loc = time.UTC
	}

	weekdayRules := make(map[int][]domain.WallClockInterval)
	dateRules := make(map[domain.Date][]domain.WallClockInterval)
	for _, r := range schedule.Rules {
		if r.IsDate {
			if r.Date != nil {
				dateRules[*r.Date] = r.Intervals
			}
			continue
		}
		weekdayRules[int(r.Day)] = r.Intervals
	}

	var instances []domain.Instance
	start := window.Start.In(loc)
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	for day := dayStart; day.Before(window.End); day = day.AddDate(0, 0, 1) {
		intervals, ok := dateRules[domain.DateOf(day)]
		if !ok {
			intervals = weekdayRules[mondayIndexed(day.Weekday())]
		}
		for _, iv := range intervals {
			instStart := day.Add(time.Duration(iv.StartMinute) * time.Minute)
			instEnd := day.Add(time.Duration(iv.EndMinute) * time.Minute)
			span := domain.TimeSpan{Start: instStart.UTC(), End: instEnd.UTC()}
			if span.Overlaps(window) {
				instances = append(instances, domain.Instance{TimeSpan: span, Busy: false})
			}
		}
	}

	return interval.New(instances).RemoveBefore(window.Start).RemoveAfter(window.End), nil
}

// FromCalendar resolves a Calendar-variant availability (spec.md §4.4
// "resolves by taking that calendar's events within the window, expanding
// them, and treating non-busy events as free time"): events is whatever the
// caller already fetched for the calendar, including any overrides of
// recurring masters among them.
func FromCalendar(events []*domain.CalendarEvent, window domain.TimeSpan) (interval.CompatibleInstances, error) {
	instances, err := expand.ExpandMany(events, window)
	if err != nil {
		return interval.CompatibleInstances{}, err
	}
	var free []domain.Instance
	for _, inst := range instances {
		if !inst.Busy {
			free = append(free, inst)
		}
	}
	return interval.New(free), nil
}

// Empty returns no free time at all: the resource is never bookable through
// this service (spec.md §4.4 "An Empty-variant availability yields no free
// time").
func Empty(window domain.TimeSpan) interval.CompatibleInstances {
	return interval.New(nil)
}

// mondayIndexed converts time.Weekday (Sunday=0) to the Monday=0 scheme
// internal/recurrence.Weekday uses.
func mondayIndexed(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
