package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"nittei/core/service/events"
	"nittei/core/service/freebusy"
	"nittei/infra/middleware"
	"nittei/internal/engine/interval"
	"nittei/pkg/apperr"
	"nittei/pkg/response"
)

// FreeBusyHandler serves the §4.5/§6 free/busy resolution routes.
type FreeBusyHandler struct {
	freebusy *freebusy.Service
	events   *events.Service
}

// NewFreeBusyHandler wires the free/busy and event services.
func NewFreeBusyHandler(freebusy *freebusy.Service, events *events.Service) *FreeBusyHandler {
	return &FreeBusyHandler{freebusy: freebusy, events: events}
}

// Register mounts the free/busy routes.
func (h *FreeBusyHandler) Register(app fiber.Router) {
	app.Get("/user/:id/freebusy", h.ForUser)
	app.Post("/user/freebusy", h.ForUsers)
}

// ForUser resolves a single user's busy view, optionally restricted to a
// calendarIds subset (spec.md §6 "GET /user/{id}/freebusy?startTime&endTime
// &calendarIds").
func (h *FreeBusyHandler) ForUser(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	userID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	calendarIDs, err := parseUUIDList(c.Query("calendarIds"))
	if err != nil {
		return err
	}

	if len(calendarIDs) == 0 {
		instances, err := h.freebusy.ForUser(c.Context(), userID, window)
		if err != nil {
			return err
		}
		return response.OK(c, fiber.Map{"busy": instances})
	}

	merged := interval.New(nil)
	for _, calID := range calendarIDs {
		if _, err := h.events.GetCalendar(c.Context(), accID, calID); err != nil {
			return err
		}
		instances, err := h.events.InstancesForCalendar(c.Context(), calID, window)
		if err != nil {
			return err
		}
		merged = merged.Add(instances...)
	}
	return response.OK(c, fiber.Map{"busy": merged.BusyOnly()})
}

type freeBusyBatchRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" validate:"required,min=1"`
}

// ForUsers resolves the busy view of many users at once (spec.md §6 "POST
// /user/freebusy").
func (h *FreeBusyHandler) ForUsers(c *fiber.Ctx) error {
	var req freeBusyBatchRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	window, err := parseWindow(c)
	if err != nil {
		return apperr.BadInput("startTime and endTime query parameters are required")
	}
	results, err := h.freebusy.ForUsers(c.Context(), req.UserIDs, window)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"busy": results})
}
