package http

import (
	"github.com/gofiber/fiber/v2"

	"nittei/core/domain"
	"nittei/core/service/events"
	"nittei/infra/middleware"
	"nittei/internal/recurrence"
	"nittei/pkg/response"
)

// CalendarHandler serves the §6 `/user/{id}/calendar` routes.
type CalendarHandler struct {
	events *events.Service
}

// NewCalendarHandler wires the calendar/event service.
func NewCalendarHandler(events *events.Service) *CalendarHandler {
	return &CalendarHandler{events: events}
}

// Register mounts the calendar routes under a group already guarded by
// account+user auth.
func (h *CalendarHandler) Register(app fiber.Router) {
	app.Post("/user/:id/calendar", h.CreateCalendar)
	app.Get("/user/:id/calendar", h.ListCalendars)
	app.Get("/calendar/:id", h.GetCalendar)
	app.Delete("/calendar/:id", h.DeleteCalendar)
}

type createCalendarRequest struct {
	Name     *string                 `json:"name"`
	Settings domain.CalendarSettings `json:"settings" validate:"required"`
}

// CreateCalendar creates a calendar owned by the :id path user.
func (h *CalendarHandler) CreateCalendar(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	userID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req createCalendarRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Settings.Timezone == "" {
		req.Settings.Timezone = "UTC"
	}
	if req.Settings.WeekStart == 0 {
		req.Settings.WeekStart = recurrence.Monday
	}
	cal, err := h.events.CreateCalendar(c.Context(), accID, userID, req.Settings, req.Name)
	if err != nil {
		return err
	}
	return response.Created(c, cal)
}

// ListCalendars lists every calendar owned by the :id path user. The
// optional `?key=` filter narrows to calendars whose metadata contains
// that key, matching spec.md §6's "filter ?key=" note.
func (h *CalendarHandler) ListCalendars(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	userID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	cals, err := h.events.CalendarsForUser(c.Context(), accID, userID)
	if err != nil {
		return err
	}
	if key := c.Query("key"); key != "" {
		filtered := cals[:0]
		for _, cal := range cals {
			if _, ok := cal.Metadata[key]; ok {
				filtered = append(filtered, cal)
			}
		}
		cals = filtered
	}
	return response.OK(c, fiber.Map{"calendars": cals})
}

// GetCalendar fetches a calendar by id.
func (h *CalendarHandler) GetCalendar(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	calID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	cal, err := h.events.GetCalendar(c.Context(), accID, calID)
	if err != nil {
		return err
	}
	return response.OK(c, cal)
}

// DeleteCalendar removes a calendar.
func (h *CalendarHandler) DeleteCalendar(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	calID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.events.DeleteCalendar(c.Context(), accID, calID); err != nil {
		return err
	}
	return response.NoContent(c)
}
