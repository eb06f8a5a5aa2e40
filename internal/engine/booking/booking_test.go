package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/internal/engine/interval"
)

func span(h1, h2 int) domain.TimeSpan {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	return domain.TimeSpan{Start: day.Add(time.Duration(h1) * time.Hour), End: day.Add(time.Duration(h2) * time.Hour)}
}

func freeOf(spans ...domain.TimeSpan) interval.CompatibleInstances {
	instances := make([]domain.Instance, len(spans))
	for i, s := range spans {
		instances[i] = domain.Instance{TimeSpan: s, Busy: false}
	}
	return interval.New(instances)
}

func baseParams() Params {
	return Params{
		Duration:        30 * time.Minute,
		IntervalMinutes: 30,
	}
}

func TestFindSlotsCollectiveRequiresAllResourcesFree(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	resources := []ResourceInput{
		{UserID: u1, Free: freeOf(span(9, 12))},
		{UserID: u2, Free: freeOf(span(10, 12))},
	}
	params := baseParams()
	params.Policy = domain.PolicyCollective

	slots, err := FindSlots(resources, span(9, 12), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		if s.TimeSpan.Start.Before(span(10, 12).Start) {
			t.Errorf("collective slot %v should require both resources free, but u2 is only free from 10", s.TimeSpan)
		}
	}
	if len(slots) == 0 {
		t.Fatal("expected at least one collective slot in the overlap")
	}
}

func TestFindSlotsGroupRequiresGroupSizeFree(t *testing.T) {
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	resources := []ResourceInput{
		{UserID: u1, Free: freeOf(span(9, 12))},
		{UserID: u2, Free: freeOf(span(9, 12))},
		{UserID: u3, Free: freeOf(span(11, 12))},
	}
	params := baseParams()
	params.Policy = domain.PolicyGroup
	params.GroupSize = 2

	slots, err := FindSlots(resources, span(9, 12), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected group slots where at least 2 of 3 resources are free")
	}
}

func TestFindSlotsRoundRobinPrefersNeverBooked(t *testing.T) {
	u1, u2 := uuid.New(), uuid.New()
	resources := []ResourceInput{
		{UserID: u1, Free: freeOf(span(9, 10))},
		{UserID: u2, Free: freeOf(span(9, 10))},
	}
	params := baseParams()
	params.Policy = domain.PolicyRoundRobin
	params.LastBookedAt = map[uuid.UUID]time.Time{u1: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)}

	slots, err := FindSlots(resources, span(9, 10), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected at least one round-robin slot")
	}
	if slots[0].UserIDs[0] != u2 {
		t.Errorf("expected never-booked user u2 to be preferred, got assignment %v", slots[0].UserIDs[0])
	}
}

func TestFindSlotsEmptyWindowYieldsNoSlots(t *testing.T) {
	u1 := uuid.New()
	resources := []ResourceInput{{UserID: u1, Free: freeOf(span(0, 24))}}
	params := baseParams()
	params.Policy = domain.PolicyCollective

	slots, err := FindSlots(resources, span(10, 10), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots for a zero-width window, got %v", slots)
	}
}

func TestFindSlotsRejectsNonPositiveDuration(t *testing.T) {
	params := baseParams()
	params.Duration = 0
	params.Policy = domain.PolicyCollective
	if _, err := FindSlots(nil, span(9, 10), params); err == nil {
		t.Fatal("expected error for non-positive duration")
	}
}
