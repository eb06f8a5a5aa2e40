package availability

import (
	"testing"
	"time"

	"nittei/core/domain"
	"nittei/internal/recurrence"
)

func TestFromScheduleProducesDailyWindow(t *testing.T) {
	schedule := &domain.Schedule{
		Timezone: "UTC",
		Rules: []domain.ScheduleRule{
			{Day: recurrence.Monday, Intervals: []domain.WallClockInterval{{StartMinute: 9 * 60, EndMinute: 17 * 60}}},
		},
	}
	// 2026-01-05 is a Monday.
	window := domain.TimeSpan{
		Start: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
	}

	got := mustResolve(t, schedule, window)
	if len(got) != 1 {
		t.Fatalf("expected 1 free instance, got %d: %+v", len(got), got)
	}
	if got[0].Busy {
		t.Errorf("schedule availability should never be busy")
	}
	wantStart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC)
	if !got[0].Start.Equal(wantStart) || !got[0].End.Equal(wantEnd) {
		t.Errorf("expected %v-%v, got %v-%v", wantStart, wantEnd, got[0].Start, got[0].End)
	}
}

func TestFromScheduleSkipsUnlistedDays(t *testing.T) {
	schedule := &domain.Schedule{
		Timezone: "UTC",
		Rules: []domain.ScheduleRule{
			{Day: recurrence.Monday, Intervals: []domain.WallClockInterval{{StartMinute: 9 * 60, EndMinute: 17 * 60}}},
		},
	}
	// 2026-01-06 is a Tuesday, not in the rule set.
	window := domain.TimeSpan{
		Start: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
	}
	got := mustResolve(t, schedule, window)
	if len(got) != 0 {
		t.Fatalf("expected no free instances on an unlisted day, got %+v", got)
	}
}

func TestFromScheduleDateRuleOverridesWeekday(t *testing.T) {
	schedule := &domain.Schedule{
		Timezone: "UTC",
		Rules: []domain.ScheduleRule{
			{Day: recurrence.Monday, Intervals: []domain.WallClockInterval{{StartMinute: 9 * 60, EndMinute: 17 * 60}}},
			{IsDate: true, Date: &domain.Date{Year: 2026, Month: 1, Day: 5}, Intervals: []domain.WallClockInterval{{StartMinute: 10 * 60, EndMinute: 12 * 60}}},
		},
	}
	window := domain.TimeSpan{
		Start: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
	}
	got := mustResolve(t, schedule, window)
	if len(got) != 1 {
		t.Fatalf("expected 1 free instance, got %d: %+v", len(got), got)
	}
	wantStart := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	if !got[0].Start.Equal(wantStart) || !got[0].End.Equal(wantEnd) {
		t.Errorf("expected date rule %v-%v to win over weekday rule, got %v-%v", wantStart, wantEnd, got[0].Start, got[0].End)
	}
}

func TestEmptyYieldsNoFreeTime(t *testing.T) {
	window := domain.TimeSpan{
		Start: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
	}
	got := Empty(window).Instances()
	if len(got) != 0 {
		t.Fatalf("Empty-variant availability must yield no free time, got %+v", got)
	}
}

func mustResolve(t *testing.T, schedule *domain.Schedule, window domain.TimeSpan) []domain.Instance {
	t.Helper()
	c, err := FromSchedule(schedule, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c.Instances()
}
