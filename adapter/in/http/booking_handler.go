package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/service/booking"
	"nittei/infra/middleware"
	"nittei/pkg/apperr"
	"nittei/pkg/response"
)

// BookingHandler serves the §6 `/service` and `/service/{id}/booking`
// routes (§4.6).
type BookingHandler struct {
	booking *booking.Service
}

// NewBookingHandler wires the booking service.
func NewBookingHandler(booking *booking.Service) *BookingHandler {
	return &BookingHandler{booking: booking}
}

// Register mounts the service/booking routes.
func (h *BookingHandler) Register(app fiber.Router) {
	app.Post("/service", h.CreateService)
	app.Get("/service/:id", h.GetService)
	app.Delete("/service/:id", h.DeleteService)
	app.Put("/service/:id/users", h.AddResource)
	app.Delete("/service/:id/users/:userId", h.RemoveResource)
	app.Get("/service/:id/booking", h.FindSlots)
}

type createServiceRequest struct {
	DurationMinutes int    `json:"duration_minutes" validate:"required,gt=0"`
	IntervalMinutes int    `json:"interval_minutes" validate:"required,gt=0"`
	MultiUserPolicy string `json:"multi_user_policy" validate:"required,oneof=collective group round_robin"`
	GroupSize       int    `json:"group_size"`
}

// CreateService registers a new bookable service.
func (h *BookingHandler) CreateService(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	var req createServiceRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	svc, err := h.booking.CreateService(c.Context(), accID,
		time.Duration(req.DurationMinutes)*time.Minute, req.IntervalMinutes,
		domain.MultiUserPolicy(req.MultiUserPolicy), req.GroupSize)
	if err != nil {
		return err
	}
	return response.Created(c, svc)
}

// GetService fetches a service by id.
func (h *BookingHandler) GetService(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	serviceID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	svc, err := h.booking.GetService(c.Context(), accID, serviceID)
	if err != nil {
		return err
	}
	return response.OK(c, svc)
}

// DeleteService removes a service.
func (h *BookingHandler) DeleteService(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	serviceID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.booking.DeleteService(c.Context(), accID, serviceID); err != nil {
		return err
	}
	return response.NoContent(c)
}

type addResourceRequest struct {
	UserID                 uuid.UUID    `json:"user_id" validate:"required"`
	CalendarIDs            []uuid.UUID  `json:"calendar_ids"`
	BufferBeforeMinutes    int          `json:"buffer_before_minutes" validate:"min=0,max=720"`
	BufferAfterMinutes     int          `json:"buffer_after_minutes" validate:"min=0,max=720"`
	ClosestBookingMinutes  int          `json:"closest_booking_minutes" validate:"min=0"`
	FurthestBookingMinutes *int         `json:"furthest_booking_minutes"`
	AvailabilityKind       string       `json:"availability_kind" validate:"required,oneof=schedule calendar empty"`
	AvailabilityScheduleID *uuid.UUID   `json:"availability_schedule_id"`
	AvailabilityCalendarID *uuid.UUID   `json:"availability_calendar_id"`
}

// AddResource attaches (or updates) a resource on a service.
func (h *BookingHandler) AddResource(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	serviceID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req addResourceRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	resource := &domain.ServiceResource{
		ID:                     uuid.New(),
		ServiceID:              serviceID,
		UserID:                 req.UserID,
		CalendarIDs:            req.CalendarIDs,
		BufferBefore:           time.Duration(req.BufferBeforeMinutes) * time.Minute,
		BufferAfter:            time.Duration(req.BufferAfterMinutes) * time.Minute,
		ClosestBookingTime:     time.Duration(req.ClosestBookingMinutes) * time.Minute,
		AvailabilityKind:       domain.ResourceAvailabilityKind(req.AvailabilityKind),
		AvailabilityScheduleID: req.AvailabilityScheduleID,
		AvailabilityCalendarID: req.AvailabilityCalendarID,
	}
	if req.FurthestBookingMinutes != nil {
		d := time.Duration(*req.FurthestBookingMinutes) * time.Minute
		resource.FurthestBookingTime = &d
	}
	if err := h.booking.AddResource(c.Context(), accID, serviceID, resource); err != nil {
		return err
	}
	return response.Created(c, resource)
}

// RemoveResource detaches a resource from a service.
func (h *BookingHandler) RemoveResource(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	serviceID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	userID, err := middleware.ParamUUID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.booking.RemoveResource(c.Context(), accID, serviceID, userID); err != nil {
		return err
	}
	return response.NoContent(c)
}

// FindSlots resolves offerable booking slots within [startDate, endDate]
// (spec.md §6 "GET /service/{id}/booking?startDate&endDate&timezone&
// duration&interval&hostUserIds").
func (h *BookingHandler) FindSlots(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	serviceID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}

	startRaw, endRaw := c.Query("startDate"), c.Query("endDate")
	if startRaw == "" || endRaw == "" {
		return apperr.BadInput("startDate and endDate query parameters are required")
	}
	tzName := c.Query("timezone", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return apperr.BadInput("timezone is not a recognized IANA zone")
	}
	start, err := time.ParseInLocation("2006-01-02", startRaw, loc)
	if err != nil {
		return apperr.BadInput("startDate must be YYYY-MM-DD")
	}
	end, err := time.ParseInLocation("2006-01-02", endRaw, loc)
	if err != nil {
		return apperr.BadInput("endDate must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return apperr.BadInput("startDate must not be after endDate")
	}
	window := domain.TimeSpan{Start: start.UTC(), End: end.AddDate(0, 0, 1).UTC()}

	hostUserIDs, err := parseUUIDList(c.Query("hostUserIds"))
	if err != nil {
		return err
	}
	query := booking.SlotQuery{
		DurationMinutes: c.QueryInt("duration", 0),
		IntervalMinutes: c.QueryInt("interval", 0),
		HostUserIDs:     hostUserIDs,
	}

	slots, err := h.booking.FindSlots(c.Context(), accID, serviceID, window, time.Now().UTC(), query)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"slots": slots})
}
