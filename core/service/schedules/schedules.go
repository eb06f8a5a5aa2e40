// Package schedules implements availability-plan (Schedule) management:
// CRUD plus the validation spec.md §3 requires of ScheduleRule intervals
// and specific-date rule windows.
package schedules

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/pkg/apperr"
)

// Service orchestrates Schedule lifecycle.
type Service struct {
	schedules out.ScheduleRepository
}

// NewService wires the schedule repository.
func NewService(schedules out.ScheduleRepository) *Service {
	return &Service{schedules: schedules}
}

// CreateSchedule validates and stores a new availability plan.
func (s *Service) CreateSchedule(ctx context.Context, accountID, userID uuid.UUID, timezone string, rules []domain.ScheduleRule) (*domain.Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, apperr.BadInput("schedules: timezone is not recognized")
	}
	if err := validateRules(rules, loc); err != nil {
		return nil, err
	}

	sched := &domain.Schedule{
		ID:        uuid.New(),
		AccountID: accountID,
		UserID:    userID,
		Timezone:  timezone,
		Rules:     rules,
	}
	if err := s.schedules.Create(ctx, sched); err != nil {
		return nil, apperr.StorageUnavailable("create schedule", err)
	}
	return sched, nil
}

// GetSchedule fetches a schedule scoped to its owning account.
func (s *Service) GetSchedule(ctx context.Context, accountID, scheduleID uuid.UUID) (*domain.Schedule, error) {
	sched, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, apperr.StorageUnavailable("get schedule", err)
	}
	if sched == nil || sched.AccountID != accountID {
		return nil, apperr.NotFound("schedule", scheduleID.String())
	}
	return sched, nil
}

// ForUser lists every schedule owned by userID.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Schedule, error) {
	scheds, err := s.schedules.ForUser(ctx, userID)
	if err != nil {
		return nil, apperr.StorageUnavailable("list schedules for user", err)
	}
	return scheds, nil
}

// UpdateSchedule replaces rules on an existing schedule, re-validating them
// (and re-checking each specific-date rule's ±(2 days past, 5 years
// future) window as of now, per spec.md §3).
func (s *Service) UpdateSchedule(ctx context.Context, accountID, scheduleID uuid.UUID, rules []domain.ScheduleRule, now time.Time) (*domain.Schedule, error) {
	sched, err := s.GetSchedule(ctx, accountID, scheduleID)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		loc = time.UTC
	}
	if err := validateRules(rules, loc); err != nil {
		return nil, err
	}

	kept := make([]domain.ScheduleRule, 0, len(rules))
	for _, r := range rules {
		if r.IsDate && r.Date != nil && !r.Date.InUpdateWindow(now.In(loc)) {
			continue
		}
		kept = append(kept, r)
	}
	sched.Rules = kept

	if err := s.schedules.Update(ctx, sched); err != nil {
		return nil, apperr.StorageUnavailable("update schedule", err)
	}
	return sched, nil
}

// DeleteSchedule removes a schedule.
func (s *Service) DeleteSchedule(ctx context.Context, accountID, scheduleID uuid.UUID) error {
	if _, err := s.GetSchedule(ctx, accountID, scheduleID); err != nil {
		return err
	}
	if err := s.schedules.Delete(ctx, scheduleID); err != nil {
		return apperr.StorageUnavailable("delete schedule", err)
	}
	return nil
}

// validateRules enforces spec.md §3's "intervals within a rule are
// non-overlapping and strictly ordered".
func validateRules(rules []domain.ScheduleRule, loc *time.Location) error {
	for _, r := range rules {
		if r.IsDate && r.Date == nil {
			return apperr.BadInput("schedules: date rule is missing its date")
		}
		prevEnd := -1
		for _, iv := range r.Intervals {
			if iv.StartMinute < 0 || iv.EndMinute > 24*60 || iv.StartMinute >= iv.EndMinute {
				return apperr.BadInput("schedules: interval must satisfy 0 <= start < end <= 1440")
			}
			if iv.StartMinute < prevEnd {
				return apperr.BadInput("schedules: intervals within a rule must be strictly ordered and non-overlapping")
			}
			prevEnd = iv.EndMinute
		}
	}
	return nil
}
