// Package expand turns a stored CalendarEvent — single, recurring, or an
// override — into the concrete Instances it occupies within a window,
// per spec.md §4.2. The recurrence rule is anchored at event.Start in
// whatever location that time value carries: an event has no timezone of
// its own and no calendar timezone is consulted here. Each occurrence is
// normalized to UTC before being returned.
package expand

import (
	"sort"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/internal/recurrence"
	"nittei/pkg/logger"
)

// Expand returns the Instances a single event contributes within window.
// overrides must be exactly the events whose RecurringEventID equals
// event.ID; callers fetch them via
// core/port/out.EventRepository.EventsByRecurringEventIDs.
func Expand(event *domain.CalendarEvent, window domain.TimeSpan, overrides []*domain.CalendarEvent) ([]domain.Instance, error) {
	if event.Status == domain.EventStatusCancelled {
		return nil, nil
	}

	if !event.IsRecurringMaster() {
		span := domain.TimeSpan{Start: event.Start, End: event.Start.Add(event.Duration)}
		if !span.Overlaps(window) {
			return nil, nil
		}
		return []domain.Instance{{TimeSpan: span, Busy: event.Busy}}, nil
	}

	overrideByOriginalStart := make(map[int64]*domain.CalendarEvent, len(overrides))
	for _, o := range overrides {
		if o.OriginalStartTime == nil {
			continue
		}
		overrideByOriginalStart[o.OriginalStartTime.UTC().Unix()] = o
	}
	consumed := make(map[int64]struct{}, len(overrideByOriginalStart))

	exdates := make(map[int64]struct{}, len(event.Exdates))
	for _, ex := range event.Exdates {
		exdates[ex.UTC().Unix()] = struct{}{}
	}

	rule, err := recurrence.New(*event.RecurrenceRule, event.Start)
	if err != nil {
		return nil, err
	}

	occurrences := rule.Iter(window.End)

	instances := make([]domain.Instance, 0, len(occurrences))
	for _, occ := range occurrences {
		key := occ.UTC().Unix()
		if _, excluded := exdates[key]; excluded {
			continue
		}

		if ov, ok := overrideByOriginalStart[key]; ok {
			consumed[key] = struct{}{}
			if ov.Status == domain.EventStatusCancelled {
				continue
			}
			span := domain.TimeSpan{Start: ov.Start, End: ov.Start.Add(ov.Duration)}
			if span.Overlaps(window) {
				instances = append(instances, domain.Instance{TimeSpan: span, Busy: ov.Busy})
			}
			continue
		}

		span := domain.TimeSpan{Start: occ.UTC(), End: occ.UTC().Add(event.Duration)}
		if span.Overlaps(window) {
			instances = append(instances, domain.Instance{TimeSpan: span, Busy: event.Busy})
		}
	}

	// spec.md §8 "Override with original_start_time not in parent's
	// occurrences → logged; override treated as standalone." An override
	// whose claimed original start never matched one of the parent's
	// occurrences (wrong parent, stale/edited recurrence, or simply an
	// original_start_time typo) still gets to exist as its own instance.
	for key, ov := range overrideByOriginalStart {
		if _, ok := consumed[key]; ok {
			continue
		}
		logger.WithField("event_id", ov.ID).WithField("recurring_event_id", event.ID).
			Warn("expand: override's original_start_time does not match any occurrence of its parent, expanding as standalone")
		if ov.Status == domain.EventStatusCancelled {
			continue
		}
		span := domain.TimeSpan{Start: ov.Start, End: ov.Start.Add(ov.Duration)}
		if span.Overlaps(window) {
			instances = append(instances, domain.Instance{TimeSpan: span, Busy: ov.Busy})
		}
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].Before(instances[j]) })
	return instances, nil
}

// ExpandMany expands every master/single event in events, pairing each
// recurring master with the overrides addressed to it before calling
// Expand, and returns the concatenation of every event's Instances.
func ExpandMany(events []*domain.CalendarEvent, window domain.TimeSpan) ([]domain.Instance, error) {
	overridesByMaster := make(map[uuid.UUID][]*domain.CalendarEvent)
	var masters []*domain.CalendarEvent
	for _, e := range events {
		// spec.md §4.2 "warn if only recurring_event_id is set without
		// original_start_time": such an event can't be matched to a parent
		// occurrence at all, so it is expanded as a standalone event rather
		// than silently dropped.
		if e.IsOverride() && e.OriginalStartTime != nil {
			overridesByMaster[*e.RecurringEventID] = append(overridesByMaster[*e.RecurringEventID], e)
			continue
		}
		if e.IsOverride() {
			logger.WithField("event_id", e.ID).WithField("recurring_event_id", *e.RecurringEventID).
				Warn("expand: override is missing original_start_time, expanding as standalone")
		}
		masters = append(masters, e)
	}

	var all []domain.Instance
	for _, m := range masters {
		instances, err := Expand(m, window, overridesByMaster[m.ID])
		if err != nil {
			return nil, err
		}
		all = append(all, instances...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Before(all[j]) })
	return all, nil
}
