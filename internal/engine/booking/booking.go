// Package booking implements the slot-search engine of spec.md §4.6: given
// each resource's already-netted free time, it steps a cursor across the
// booking window at the service's interval granularity and applies the
// service's multi-user policy to decide which candidate slots are offerable
// and, for round-robin, who they would be assigned to.
package booking

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/internal/engine/interval"
	"nittei/pkg/apperr"
)

// Slot is one offerable booking candidate.
type Slot struct {
	TimeSpan  domain.TimeSpan `json:"timespan"`
	UserIDs   []uuid.UUID     `json:"user_ids"` // resources free (collective/group) or assigned (round-robin)
}

// ResourceInput is one service resource's already-resolved free time:
// schedule, calendar or empty availability, minus busy calendar instances,
// clamped to the resource's booking window, minus its own booking buffers.
type ResourceInput struct {
	UserID uuid.UUID
	Free   interval.CompatibleInstances
}

// Params bounds and steps the search. The closest/furthest-booking clamp of
// spec.md §4.6 step 4 is per-resource, not a property of the search as a
// whole, so it is applied by the caller to each ResourceInput.Free before
// FindSlots ever sees it (see core/service/booking.resourceFreeTime).
type Params struct {
	Duration        time.Duration
	IntervalMinutes int
	Policy          domain.MultiUserPolicy
	GroupSize       int // only read when Policy == PolicyGroup

	// MinIntervalMinutes and MaxIntervalMinutes bound IntervalMinutes
	// (spec.md §4.6 precondition "15 <= interval_minutes <= 1440").
	// Zero means "use the spec default" (15 and 1440, respectively).
	MinIntervalMinutes int
	MaxIntervalMinutes int

	// LastBookedAt is the most recent service-event start per user,
	// consulted by PolicyRoundRobin's oldest-assignment ordering. A user
	// absent from the map has never been booked and is preferred first.
	LastBookedAt map[uuid.UUID]time.Time
}

const (
	defaultMinIntervalMinutes = 15
	defaultMaxIntervalMinutes = 1440
)

// FindSlots returns the ascending, non-overlapping candidate slots within
// window that satisfy params.Policy.
func FindSlots(resources []ResourceInput, window domain.TimeSpan, params Params) ([]Slot, error) {
	if params.Duration <= 0 {
		return nil, apperr.BadInput("booking: duration must be positive")
	}
	minInterval := params.MinIntervalMinutes
	if minInterval == 0 {
		minInterval = defaultMinIntervalMinutes
	}
	maxInterval := params.MaxIntervalMinutes
	if maxInterval == 0 {
		maxInterval = defaultMaxIntervalMinutes
	}
	if params.IntervalMinutes < minInterval || params.IntervalMinutes > maxInterval {
		return nil, apperr.BadInput("booking: interval_minutes must be between the configured min and max")
	}
	if params.Policy == domain.PolicyGroup && params.GroupSize < 1 {
		return nil, apperr.BadInput("booking: group policy requires group_size >= 1")
	}

	if !window.Start.Before(window.End) {
		return nil, nil
	}

	step := time.Duration(params.IntervalMinutes) * time.Minute
	var slots []Slot

	for cursor := window.Start; !cursor.Add(params.Duration).After(window.End); cursor = cursor.Add(step) {
		candidate := domain.TimeSpan{Start: cursor, End: cursor.Add(params.Duration)}
		freeUsers := freeResourcesFor(resources, candidate)
		if len(freeUsers) == 0 {
			continue
		}

		switch params.Policy {
		case domain.PolicyCollective:
			if len(freeUsers) == len(resources) {
				slots = append(slots, Slot{TimeSpan: candidate, UserIDs: freeUsers})
			}
		case domain.PolicyGroup:
			if len(freeUsers) >= params.GroupSize {
				slots = append(slots, Slot{TimeSpan: candidate, UserIDs: freeUsers})
			}
		case domain.PolicyRoundRobin:
			assignee := pickRoundRobin(freeUsers, params.LastBookedAt)
			slots = append(slots, Slot{TimeSpan: candidate, UserIDs: []uuid.UUID{assignee}})
		default:
			return nil, apperr.BadInput("booking: unrecognized multi_user_policy")
		}
	}

	return slots, nil
}

// freeResourcesFor returns, in stable resource order, the user ids whose
// free time fully covers candidate.
func freeResourcesFor(resources []ResourceInput, candidate domain.TimeSpan) []uuid.UUID {
	var free []uuid.UUID
	for _, r := range resources {
		if coversSpan(r.Free, candidate) {
			free = append(free, r.UserID)
		}
	}
	return free
}

func coversSpan(free interval.CompatibleInstances, span domain.TimeSpan) bool {
	for _, inst := range free.Instances() {
		if inst.Busy {
			continue
		}
		if !inst.Start.After(span.Start) && !inst.End.Before(span.End) {
			return true
		}
	}
	return false
}

// pickRoundRobin assigns the candidate to whichever free user has gone
// longest (or forever) without a service booking: the oldest-assignment
// ordering, used as the round-robin tie-break.
func pickRoundRobin(freeUsers []uuid.UUID, lastBookedAt map[uuid.UUID]time.Time) uuid.UUID {
	best := freeUsers[0]
	bestTime, bestHasBooking := lastBookedAt[best]

	for _, u := range freeUsers[1:] {
		t, hasBooking := lastBookedAt[u]
		switch {
		case !hasBooking && bestHasBooking:
			best, bestTime, bestHasBooking = u, t, hasBooking
		case hasBooking && bestHasBooking && t.Before(bestTime):
			best, bestTime, bestHasBooking = u, t, hasBooking
		case !hasBooking && !bestHasBooking:
			// both never booked: keep stable (resource) ordering
		}
	}
	return best
}

// sortSlots orders slots by ascending start time. It is unexported, so
// only this package can call it.
func sortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].TimeSpan.Start.Before(slots[j].TimeSpan.Start) })
}
