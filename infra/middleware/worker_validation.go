package middleware

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"nittei/pkg/apperr"
)

// validate is the shared validator.v10 instance every DTO's `validate:"..."`
// struct tags are checked against.
var validate = validator.New(validator.WithRequiredStructEnabled())

// BindAndValidate parses the request body into dest and runs struct tag
// validation, returning a single apperr.BadInput carrying one Details entry
// per failing field so §7's {code, message, details} body can point the
// caller at exactly what was wrong.
func BindAndValidate(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		return apperr.BadInput("request body is not valid JSON")
	}
	if err := validate.Struct(dest); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return apperr.BadInput(err.Error())
		}
		appErr := apperr.BadInput("request body failed validation")
		for _, fe := range verrs {
			appErr.WithDetail(fe.Field(), fmt.Sprintf("failed on %q", fe.ActualTag()))
		}
		return appErr
	}
	return nil
}

// ParamUUID parses a path parameter as a uuid.UUID, returning the same
// BadInput shape every other validation failure uses.
func ParamUUID(c *fiber.Ctx, paramName string) (uuid.UUID, error) {
	value := c.Params(paramName)
	if value == "" {
		return uuid.Nil, apperr.BadInput(fmt.Sprintf("missing required parameter %q", paramName))
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperr.BadInput(fmt.Sprintf("parameter %q is not a valid id", paramName))
	}
	return id, nil
}

// QueryIntRange reads an optional integer query parameter, falling back to
// def when the parameter is absent and rejecting a value outside [min, max]
// with BadInput.
func QueryIntRange(c *fiber.Ctx, name string, def, min, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	value := c.QueryInt(name, def)
	if value < min || value > max {
		return 0, apperr.BadInput(fmt.Sprintf("query parameter %q must be between %d and %d", name, min, max))
	}
	return value, nil
}
