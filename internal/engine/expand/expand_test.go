package expand

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/internal/recurrence"
)

func TestExpandSingleEventInsideWindow(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	event := &domain.CalendarEvent{
		ID:       uuid.New(),
		Start:    start,
		Duration: time.Hour,
		Busy:     true,
		Status:   domain.EventStatusConfirmed,
	}
	window := domain.TimeSpan{Start: start.Add(-time.Hour), End: start.Add(24 * time.Hour)}

	got, err := Expand(event, window, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(got))
	}
	if !got[0].Start.Equal(start) || got[0].End.Sub(got[0].Start) != time.Hour {
		t.Errorf("unexpected instance: %+v", got[0])
	}
}

func TestExpandCancelledEventYieldsNothing(t *testing.T) {
	event := &domain.CalendarEvent{
		ID:     uuid.New(),
		Start:  time.Now(),
		Status: domain.EventStatusCancelled,
	}
	got, err := Expand(event, domain.TimeSpan{Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no instances for cancelled event, got %d", len(got))
	}
}

func TestExpandRecurringDailyRespectsCountAndExdate(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	count := 5
	event := &domain.CalendarEvent{
		ID:       uuid.New(),
		Start:    start,
		Duration: 30 * time.Minute,
		Busy:     true,
		Status:   domain.EventStatusConfirmed,
		RecurrenceRule: &recurrence.Options{
			Freq:     recurrence.Daily,
			Interval: 1,
			Count:    &count,
		},
		Exdates: []time.Time{start.AddDate(0, 0, 1)}, // exclude day 2
	}
	window := domain.TimeSpan{Start: start, End: start.AddDate(0, 0, 10)}

	got, err := Expand(event, window, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 instances (5 count minus 1 exdate), got %d: %+v", len(got), got)
	}
	if got[0].Start.Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("exdate occurrence should have been excluded")
	}
}

func TestExpandRecurringOverrideReplacesOccurrence(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	count := 3
	master := &domain.CalendarEvent{
		ID:       uuid.New(),
		Start:    start,
		Duration: time.Hour,
		Busy:     true,
		Status:   domain.EventStatusConfirmed,
		RecurrenceRule: &recurrence.Options{
			Freq:     recurrence.Daily,
			Interval: 1,
			Count:    &count,
		},
	}
	secondOccurrence := start.AddDate(0, 0, 1)
	overrideStart := secondOccurrence.Add(3 * time.Hour)
	override := &domain.CalendarEvent{
		ID:                uuid.New(),
		RecurringEventID:  &master.ID,
		OriginalStartTime: &secondOccurrence,
		Start:             overrideStart,
		Duration:          45 * time.Minute,
		Busy:              true,
		Status:            domain.EventStatusConfirmed,
	}

	window := domain.TimeSpan{Start: start, End: start.AddDate(0, 0, 10)}
	got, err := Expand(master, window, []*domain.CalendarEvent{override})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(got))
	}
	found := false
	for _, inst := range got {
		if inst.Start.Equal(overrideStart) {
			found = true
			if inst.End.Sub(inst.Start) != 45*time.Minute {
				t.Errorf("override duration not applied: %+v", inst)
			}
		}
		if inst.Start.Equal(secondOccurrence) {
			t.Errorf("original occurrence should have been superseded by override")
		}
	}
	if !found {
		t.Errorf("expected override's own start time among instances, got %+v", got)
	}
}

func TestExpandOverrideWithStaleOriginalStartIsStandalone(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	count := 3
	master := &domain.CalendarEvent{
		ID:       uuid.New(),
		Start:    start,
		Duration: time.Hour,
		Busy:     true,
		Status:   domain.EventStatusConfirmed,
		RecurrenceRule: &recurrence.Options{
			Freq:     recurrence.Daily,
			Interval: 1,
			Count:    &count,
		},
	}
	// original_start_time doesn't match any of the master's actual
	// occurrences (e.g. the master's recurrence was edited afterwards).
	staleOriginal := start.AddDate(0, 0, 30)
	overrideStart := start.AddDate(0, 0, 1).Add(5 * time.Hour)
	override := &domain.CalendarEvent{
		ID:                uuid.New(),
		RecurringEventID:  &master.ID,
		OriginalStartTime: &staleOriginal,
		Start:             overrideStart,
		Duration:          20 * time.Minute,
		Busy:              true,
		Status:            domain.EventStatusConfirmed,
	}

	window := domain.TimeSpan{Start: start, End: start.AddDate(0, 0, 10)}
	got, err := Expand(master, window, []*domain.CalendarEvent{override})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 3 master occurrences plus 1 standalone override, got %d: %+v", len(got), got)
	}
	found := false
	for _, inst := range got {
		if inst.Start.Equal(overrideStart) && inst.End.Sub(inst.Start) == 20*time.Minute {
			found = true
		}
	}
	if !found {
		t.Errorf("expected standalone override instance at %v among %+v", overrideStart, got)
	}
}

func TestExpandManyRoutesOverrideWithoutOriginalStartToStandalone(t *testing.T) {
	recurringEventID := uuid.New()
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	// RecurringEventID set but OriginalStartTime nil: can't be matched to any
	// parent occurrence, so ExpandMany must expand it as its own event rather
	// than silently dropping it.
	orphan := &domain.CalendarEvent{
		ID:               uuid.New(),
		RecurringEventID: &recurringEventID,
		Start:            start,
		Duration:         time.Hour,
		Busy:             true,
		Status:           domain.EventStatusConfirmed,
	}

	window := domain.TimeSpan{Start: start.Add(-time.Hour), End: start.Add(24 * time.Hour)}
	got, err := ExpandMany([]*domain.CalendarEvent{orphan}, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected orphaned override to expand standalone, got %d instances: %+v", len(got), got)
	}
	if !got[0].Start.Equal(start) {
		t.Errorf("unexpected instance: %+v", got[0])
	}
}
