// Package response provides the HTTP response helpers adapter/in/http
// handlers use to keep status codes and error bodies consistent.
package response

import (
	"github.com/gofiber/fiber/v2"

	"nittei/pkg/apperr"
)

// ErrorBody is the wire shape for a failed request: {"code": "...",
// "message": "..."}. infra/middleware's error handler emits exactly this
// shape for any *apperr.AppError surfacing from a handler.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// OK writes a 200 response with data as the body.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

// Created writes a 201 response with data as the body.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

// NoContent writes a 204 response.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// Err writes the AppError's status and {code, message} body. Handlers
// should generally return the error itself and let the error-handling
// middleware call this; Err exists for call sites that must respond inline.
func Err(c *fiber.Ctx, err *apperr.AppError) error {
	return c.Status(err.HTTPStatus()).JSON(ErrorBody{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	})
}

// Meta carries pagination bookkeeping alongside a list response.
type Meta struct {
	Total   int    `json:"total,omitempty"`
	HasMore bool   `json:"has_more,omitempty"`
	Cursor  string `json:"cursor,omitempty"`
}

// Page is the envelope list endpoints return so clients can page through
// search/list results without a second round trip to discover Total.
type Page struct {
	Data interface{} `json:"data"`
	Meta Meta        `json:"meta"`
}

// OKPage writes a 200 response carrying both the page of data and its meta.
func OKPage(c *fiber.Ctx, data interface{}, meta Meta) error {
	return c.JSON(Page{Data: data, Meta: meta})
}

// PaginationParams is the parsed limit/offset (or cursor) pair a list
// endpoint reads off the query string.
type PaginationParams struct {
	Limit  int
	Offset int
	Cursor string
}

// GetPagination extracts limit/offset/cursor query params, clamped to
// [1, maxLimit].
func GetPagination(c *fiber.Ctx, defaultLimit, maxLimit int) PaginationParams {
	limit := c.QueryInt("limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{
		Limit:  limit,
		Offset: offset,
		Cursor: c.Query("cursor"),
	}
}
