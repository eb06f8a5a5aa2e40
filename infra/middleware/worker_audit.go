package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nittei/pkg/logger"
)

// AuditEvent is one mutating-action record written to the audit stream.
type AuditEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	AccountID  string    `json:"account_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Action     string    `json:"action"`
	ResourceID string    `json:"resource_id,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	IP         string    `json:"ip"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `json:"duration_ms"`
	RequestID  string    `json:"request_id"`
	Success    bool      `json:"success"`
}

// AuditLogger appends AuditEvents to a capped Redis stream.
type AuditLogger struct {
	redis  *redis.Client
	stream string
}

var auditLogger *AuditLogger

// InitAuditLogger wires the package-level audit logger used by Audit().
func InitAuditLogger(redisClient *redis.Client) {
	auditLogger = &AuditLogger{redis: redisClient, stream: "nittei:audit"}
}

// LogAuditEvent appends event to the audit stream, trimming it to the most
// recent 100k entries.
func LogAuditEvent(ctx context.Context, event *AuditEvent) error {
	if auditLogger == nil || auditLogger.redis == nil {
		return nil
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return auditLogger.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: auditLogger.stream,
		Values: map[string]interface{}{"event": string(data)},
		MaxLen: 100000,
		Approx: true,
	}).Err()
}

// sensitiveActions maps "METHOD:route-pattern" (the pattern each handler
// registered, e.g. "/user/:id/calendar", not the resolved request path) to
// the audit action name for every §6 route that mutates account/user/
// calendar/event/service state. Routes are mounted unprefixed at the app
// root (internal/bootstrap).
var sensitiveActions = map[string]string{
	"POST:/account":                    "account_create",
	"PUT:/account/pubkey":              "account_update",
	"PUT:/account/webhook":             "account_update",
	"DELETE:/account/webhook":          "account_delete_webhook",
	"POST:/user":                       "user_create",
	"DELETE:/user/:id":                 "user_delete",
	"POST:/user/:id/calendar":          "calendar_create",
	"DELETE:/calendar/:id":             "calendar_delete",
	"POST:/user/:id/schedule":          "schedule_create",
	"PUT:/schedule/:id":                "schedule_update",
	"DELETE:/schedule/:id":             "schedule_delete",
	"POST:/user/:id/events":            "event_create",
	"POST:/user/:id/events/batch":      "event_create",
	"PUT:/user/events/:id":             "event_update",
	"DELETE:/user/events/:id":          "event_delete",
	"POST:/user/events/delete_many":    "event_delete",
	"POST:/service":                    "service_create",
	"DELETE:/service/:id":              "service_delete",
	"PUT:/service/:id/users":           "service_resource_update",
	"DELETE:/service/:id/users/:userId": "service_resource_remove",
}

// Audit logs sensitive mutations to the audit stream, async so it never adds
// latency to the response it's describing.
func Audit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		method, path := c.Method(), c.Path()

		routePattern := path
		if route := c.Route(); route != nil {
			routePattern = route.Path
		}
		action := sensitiveActions[method+":"+routePattern]

		err := c.Next()
		if action == "" {
			return err
		}

		event := &AuditEvent{
			Action:     action,
			ResourceID: c.Params("id"),
			Method:     method,
			Path:       path,
			IP:         c.IP(),
			StatusCode: c.Response().StatusCode(),
			DurationMS: time.Since(start).Milliseconds(),
			RequestID:  c.GetRespHeader("X-Request-ID"),
			Success:    c.Response().StatusCode() < 400,
		}
		if account := AccountFromCtx(c); account != nil {
			event.AccountID = account.ID.String()
		}
		if userID, ok := UserIDFromCtx(c); ok {
			event.UserID = userID.String()
		}

		go func() {
			if logErr := LogAuditEvent(context.Background(), event); logErr != nil {
				logger.WithError(logErr).Warn("failed to log audit event")
			}
		}()

		return err
	}
}
