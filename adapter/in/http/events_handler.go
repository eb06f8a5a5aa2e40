package http

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/core/service/events"
	"nittei/infra/middleware"
	"nittei/internal/recurrence"
	"nittei/pkg/apperr"
	"nittei/pkg/response"
)

// EventHandler serves the §6 `/user/{id}/events`, `/events/search`,
// `/account/events/search` and `/events/timespan` routes.
type EventHandler struct {
	events *events.Service
}

// NewEventHandler wires the calendar/event service.
func NewEventHandler(events *events.Service) *EventHandler {
	return &EventHandler{events: events}
}

// maxBatchBodyBytes caps a single batch-create request well below the
// server-wide fiber.Config.BodyLimit, since a batch is the one route whose
// payload legitimately grows with request size rather than staying roughly
// constant.
const maxBatchBodyBytes = 2 * 1024 * 1024

// Register mounts the event routes.
func (h *EventHandler) Register(app fiber.Router) {
	app.Post("/user/:id/events", h.CreateEvent)
	app.Post("/user/:id/events/batch", middleware.MaxBodySize(maxBatchBodyBytes), h.CreateEventsBatch)
	app.Get("/user/events/external_id/:ext", h.GetEventByExternalID)
	app.Get("/user/events/:id", h.GetEvent)
	app.Put("/user/events/:id", h.UpdateEvent)
	app.Delete("/user/events/:id", h.DeleteEvent)
	app.Get("/user/events/:id/instances", h.Instances)
	app.Post("/user/events/delete_many", h.DeleteMany)

	app.Post("/events/search", h.SearchForUser)
	app.Post("/account/events/search", h.SearchForAccount)
	app.Post("/events/timespan", h.Timespan)
}

type eventRequest struct {
	ID                *uuid.UUID           `json:"id"`
	CalendarID        uuid.UUID            `json:"calendar_id" validate:"required"`
	ExternalID        *string              `json:"external_id"`
	Title             *string              `json:"title"`
	Start             string               `json:"start" validate:"required"`
	DurationMinutes   int                  `json:"duration_minutes" validate:"required,gt=0"`
	Busy              bool                 `json:"busy"`
	Status            *string              `json:"status"`
	RecurrenceRule    *recurrence.Options  `json:"recurrence_rule"`
	Exdates           []string             `json:"exdates"`
	Reminders         []domain.Reminder    `json:"reminders"`
	ServiceID         *uuid.UUID           `json:"service_id"`
	Metadata          domain.Metadata      `json:"metadata"`
}

func (r *eventRequest) toEvent(accountID, userID uuid.UUID) (*domain.CalendarEvent, error) {
	start, err := parseRFC3339(r.Start)
	if err != nil {
		return nil, apperr.BadInput("start is not a valid RFC3339 timestamp")
	}
	exdates := make([]time.Time, 0, len(r.Exdates))
	for _, raw := range r.Exdates {
		t, err := parseRFC3339(raw)
		if err != nil {
			return nil, apperr.BadInput("exdates contains an invalid RFC3339 timestamp")
		}
		exdates = append(exdates, t)
	}
	status := domain.EventStatusConfirmed
	if r.Status != nil {
		status = domain.CalendarEventStatus(*r.Status)
	}
	return &domain.CalendarEvent{
		AccountID:      accountID,
		CalendarID:     r.CalendarID,
		UserID:         userID,
		ExternalID:     r.ExternalID,
		Title:          r.Title,
		Start:          start,
		Duration:       time.Duration(r.DurationMinutes) * time.Minute,
		Busy:           r.Busy,
		Status:         status,
		RecurrenceRule: r.RecurrenceRule,
		Exdates:        exdates,
		Reminders:      r.Reminders,
		ServiceID:      r.ServiceID,
		Metadata:       r.Metadata,
	}, nil
}

// CreateEvent creates a single event on a calendar owned by the :id path
// user.
func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	userID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var req eventRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	event, err := req.toEvent(accID, userID)
	if err != nil {
		return err
	}
	created, err := h.events.CreateEvent(c.Context(), accID, event)
	if err != nil {
		return err
	}
	return response.Created(c, created)
}

// CreateEventsBatch creates many events atomically.
func (h *EventHandler) CreateEventsBatch(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	userID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	var reqs []eventRequest
	if err := c.BodyParser(&reqs); err != nil {
		return apperr.BadInput("request body is not valid JSON")
	}
	events := make([]*domain.CalendarEvent, 0, len(reqs))
	for i := range reqs {
		event, err := reqs[i].toEvent(accID, userID)
		if err != nil {
			return err
		}
		events = append(events, event)
	}
	created, err := h.events.CreateEventsBatch(c.Context(), accID, events)
	if err != nil {
		return err
	}
	return response.Created(c, fiber.Map{"events": created})
}

// GetEvent fetches a single event.
func (h *EventHandler) GetEvent(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	eventID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	event, err := h.events.GetEvent(c.Context(), accID, eventID)
	if err != nil {
		return err
	}
	return response.OK(c, event)
}

// GetEventByExternalID looks an event up by the account's own external id.
func (h *EventHandler) GetEventByExternalID(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	ext := c.Params("ext")
	event, err := h.events.GetEventByExternalID(c.Context(), accID, ext)
	if err != nil {
		return err
	}
	return response.OK(c, event)
}

// UpdateEvent applies a partial update to an event. The body is decoded key
// by key as an eventPatch: an absent JSON field leaves the stored value
// unchanged. An explicit `null` clears title, recurrence_rule, service_id,
// metadata and external_id; exdates and reminders are replaced wholesale
// when present; start and duration_minutes must carry a value.
func (h *EventHandler) UpdateEvent(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	eventID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	existing, err := h.events.GetEvent(c.Context(), accID, eventID)
	if err != nil {
		return err
	}

	var patch eventPatch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return apperr.BadInput("request body is not valid JSON")
	}
	if err := patch.applyTo(existing); err != nil {
		return err
	}

	if err := h.events.UpdateEvent(c.Context(), accID, existing); err != nil {
		return err
	}
	return response.OK(c, existing)
}

// DeleteEvent removes an event.
func (h *EventHandler) DeleteEvent(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	eventID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.events.DeleteEvent(c.Context(), accID, eventID); err != nil {
		return err
	}
	return response.NoContent(c)
}

// Instances returns an event's expanded occurrences within [startTime,
// endTime).
func (h *EventHandler) Instances(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	eventID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	event, err := h.events.GetEvent(c.Context(), accID, eventID)
	if err != nil {
		return err
	}
	instances, err := h.events.InstancesForCalendar(c.Context(), event.CalendarID, window)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"instances": instances})
}

type deleteManyRequest struct {
	EventIDs    []uuid.UUID `json:"event_ids"`
	ExternalIDs []string    `json:"external_ids"`
}

// DeleteMany deletes a batch of events named by id or external id.
func (h *EventHandler) DeleteMany(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	var req deleteManyRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	for _, ext := range req.ExternalIDs {
		event, err := h.events.GetEventByExternalID(c.Context(), accID, ext)
		if err != nil {
			continue
		}
		req.EventIDs = append(req.EventIDs, event.ID)
	}
	for _, id := range req.EventIDs {
		if err := h.events.DeleteEvent(c.Context(), accID, id); err != nil {
			return err
		}
	}
	return response.NoContent(c)
}

type searchRequest struct {
	UserID      *uuid.UUID              `json:"userId"`
	Window      *windowRequest          `json:"window"`
	CalendarIDs []uuid.UUID             `json:"calendarIds"`
	Statuses    []string                `json:"statuses"`
	Metadata    domain.Metadata         `json:"metadata"`
}

type windowRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r *searchRequest) toFilter() (out.EventSearchFilter, error) {
	filter := out.EventSearchFilter{
		CalendarIDs: r.CalendarIDs,
		Metadata:    r.Metadata,
	}
	if r.Window != nil {
		start, err := parseRFC3339(r.Window.Start)
		if err != nil {
			return filter, apperr.BadInput("window.start is not a valid RFC3339 timestamp")
		}
		end, err := parseRFC3339(r.Window.End)
		if err != nil {
			return filter, apperr.BadInput("window.end is not a valid RFC3339 timestamp")
		}
		filter.Window = &domain.TimeSpan{Start: start, End: end}
	}
	for _, s := range r.Statuses {
		filter.Statuses = append(filter.Statuses, domain.CalendarEventStatus(s))
	}
	return filter, nil
}

// SearchForUser answers the user-scoped §6 search grammar.
func (h *EventHandler) SearchForUser(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	var req searchRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	if req.UserID == nil {
		return apperr.BadInput("userId is required")
	}
	filter, err := req.toFilter()
	if err != nil {
		return err
	}
	evs, err := h.events.Search(c.Context(), accID, req.UserID, filter)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"events": evs})
}

// SearchForAccount answers the account-scoped §6 search grammar.
func (h *EventHandler) SearchForAccount(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	var req searchRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	filter, err := req.toFilter()
	if err != nil {
		return err
	}
	evs, err := h.events.Search(c.Context(), accID, nil, filter)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"events": evs})
}

type timespanRequest struct {
	UserIDs []uuid.UUID `json:"user_ids" validate:"required,min=1"`
}

// Timespan returns every instance any of UserIDs' events contribute within
// [startTime, endTime).
func (h *EventHandler) Timespan(c *fiber.Ctx) error {
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	var req timespanRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	instances, err := h.events.InstancesForUsers(c.Context(), req.UserIDs, window)
	if err != nil {
		return err
	}
	return response.OK(c, fiber.Map{"instances": instances})
}

// eventPatch is the §8 PATCH-semantics event update body: a field absent
// from the raw JSON object leaves the stored value unchanged; a field
// present with value `null` clears it. A plain Go struct can't carry that
// distinction for optional fields, so the patch is decoded key-by-key off
// the raw object instead.
type eventPatch map[string]json.RawMessage

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func (p eventPatch) applyTo(e *domain.CalendarEvent) error {
	if raw, ok := p["title"]; ok {
		if isJSONNull(raw) {
			e.Title = nil
		} else {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return apperr.BadInput("title must be a string")
			}
			e.Title = &s
		}
	}
	if raw, ok := p["start"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return apperr.BadInput("start must be an RFC3339 timestamp string")
		}
		t, err := parseRFC3339(s)
		if err != nil {
			return apperr.BadInput("start is not a valid RFC3339 timestamp")
		}
		e.Start = t
	}
	if raw, ok := p["duration_minutes"]; ok {
		var minutes int
		if err := json.Unmarshal(raw, &minutes); err != nil || minutes <= 0 {
			return apperr.BadInput("duration_minutes must be a positive integer")
		}
		e.Duration = time.Duration(minutes) * time.Minute
	}
	if raw, ok := p["busy"]; ok {
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return apperr.BadInput("busy must be a boolean")
		}
		e.Busy = b
	}
	if raw, ok := p["status"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return apperr.BadInput("status must be a string")
		}
		e.Status = domain.CalendarEventStatus(s)
	}
	if raw, ok := p["recurrence_rule"]; ok {
		if isJSONNull(raw) {
			e.RecurrenceRule = nil
		} else {
			var opts recurrence.Options
			if err := json.Unmarshal(raw, &opts); err != nil {
				return apperr.BadInput("recurrence_rule is malformed")
			}
			e.RecurrenceRule = &opts
		}
	}
	if raw, ok := p["exdates"]; ok {
		var raws []string
		if err := json.Unmarshal(raw, &raws); err != nil {
			return apperr.BadInput("exdates must be an array of RFC3339 timestamps")
		}
		exdates := make([]time.Time, 0, len(raws))
		for _, s := range raws {
			t, err := parseRFC3339(s)
			if err != nil {
				return apperr.BadInput("exdates contains an invalid RFC3339 timestamp")
			}
			exdates = append(exdates, t)
		}
		e.Exdates = exdates
	}
	if raw, ok := p["reminders"]; ok {
		var reminders []domain.Reminder
		if err := json.Unmarshal(raw, &reminders); err != nil {
			return apperr.BadInput("reminders is malformed")
		}
		e.Reminders = reminders
	}
	if raw, ok := p["service_id"]; ok {
		if isJSONNull(raw) {
			e.ServiceID = nil
		} else {
			var id uuid.UUID
			if err := json.Unmarshal(raw, &id); err != nil {
				return apperr.BadInput("service_id must be a valid id")
			}
			e.ServiceID = &id
		}
	}
	if raw, ok := p["metadata"]; ok {
		if isJSONNull(raw) {
			e.Metadata = nil
		} else {
			var md domain.Metadata
			if err := json.Unmarshal(raw, &md); err != nil {
				return apperr.BadInput("metadata is malformed")
			}
			e.Metadata = md
		}
	}
	if raw, ok := p["external_id"]; ok {
		if isJSONNull(raw) {
			e.ExternalID = nil
		} else {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return apperr.BadInput("external_id must be a string")
			}
			e.ExternalID = &s
		}
	}
	return nil
}
