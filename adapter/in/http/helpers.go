package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/infra/middleware"
	"nittei/pkg/apperr"
)

// accountID returns the account AccountAuth resolved for this request.
func accountID(c *fiber.Ctx) (uuid.UUID, error) {
	account := middleware.AccountFromCtx(c)
	if account == nil {
		return uuid.Nil, apperr.Unauthorized("no account resolved for this request")
	}
	return account.ID, nil
}

// callerUserID returns the user UserAuth resolved for this request.
func callerUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.UserIDFromCtx(c)
	if !ok {
		return uuid.Nil, apperr.Unauthorized("no user resolved for this request")
	}
	return id, nil
}

// parseRFC3339 parses an RFC-3339 timestamp to UTC, used by every event DTO
// field that carries an absolute time.
func parseRFC3339(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseWindow reads the startTime/endTime RFC-3339 query parameters every
// instance/free-busy/timespan endpoint accepts (spec.md §6).
func parseWindow(c *fiber.Ctx) (domain.TimeSpan, error) {
	startRaw, endRaw := c.Query("startTime"), c.Query("endTime")
	if startRaw == "" || endRaw == "" {
		return domain.TimeSpan{}, apperr.BadInput("startTime and endTime query parameters are required")
	}
	start, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return domain.TimeSpan{}, apperr.BadInput("startTime is not a valid RFC3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, endRaw)
	if err != nil {
		return domain.TimeSpan{}, apperr.BadInput("endTime is not a valid RFC3339 timestamp")
	}
	if !start.Before(end) {
		return domain.TimeSpan{}, apperr.BadInput("startTime must be before endTime")
	}
	return domain.TimeSpan{Start: start.UTC(), End: end.UTC()}, nil
}

// parseUUIDList splits a comma-separated query parameter into uuid.UUIDs,
// used by freebusy/calendarIds-style filters.
func parseUUIDList(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				id, err := uuid.Parse(raw[start:i])
				if err != nil {
					return nil, apperr.BadInput("id list contains an invalid id")
				}
				ids = append(ids, id)
			}
			start = i + 1
		}
	}
	return ids, nil
}
