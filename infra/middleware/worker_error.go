package middleware

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"nittei/pkg/apperr"
	"nittei/pkg/logger"
	"nittei/pkg/response"
)

// ErrorHandler maps a handler's returned error onto the {code, message}
// body spec.md §7 requires, never leaking details beyond what apperr
// already classified.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("request_id").(string)

		var appErr *apperr.AppError
		switch e := err.(type) {
		case *apperr.AppError:
			appErr = e
		case *fiber.Error:
			appErr = apperr.New(mapHTTPStatusToCode(e.Code), e.Message, e.Code)
		default:
			appErr = apperr.InternalWithError(err)
		}

		log := logger.WithField("request_id", requestID).WithField("error_code", appErr.Code)
		if appErr.Status >= 500 {
			log.WithError(appErr.Err).Error("request failed: %s", appErr.Message)
		} else {
			log.Warn("request rejected: %s", appErr.Message)
		}

		return response.Err(c, appErr)
	}
}

// RequestID assigns (or propagates) a correlation id for the request.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// RequestLogger logs each request's method/path/status/duration.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID, _ := c.Locals("request_id").(string)

		err := c.Next()

		duration := time.Since(start)
		log := logger.WithFields(map[string]any{
			"request_id":  requestID,
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      c.Response().StatusCode(),
			"duration_ms": float64(duration.Microseconds()) / 1000.0,
		})
		if userID, ok := UserIDFromCtx(c); ok {
			log = log.WithField("user_id", userID.String())
		}

		status := c.Response().StatusCode()
		switch {
		case status >= 500:
			log.Error("request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("request rejected: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}

		return err
	}
}

// Recover turns a panic into a 500 Internal response instead of crashing
// the process, logging the stack trace for diagnosis.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)
				stack := string(debug.Stack())

				fmt.Fprintf(os.Stderr, "panic recovered: request_id=%s path=%s %s: %v\n%s\n",
					requestID, c.Method(), c.Path(), r, stack)
				logger.WithFields(map[string]any{
					"request_id": requestID,
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
				}).Error("panic recovered")

				_ = response.Err(c, apperr.Internal("internal server error"))
			}
		}()
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return apperr.CodeBadInput
	case fiber.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperr.CodeForbidden
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusConflict:
		return apperr.CodeConflict
	case fiber.StatusGatewayTimeout:
		return apperr.CodeTimeout
	case fiber.StatusServiceUnavailable:
		return apperr.CodeStorageUnavailable
	case fiber.StatusTooManyRequests:
		return apperr.CodeRateLimited
	default:
		return apperr.CodeInternal
	}
}
