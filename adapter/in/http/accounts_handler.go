package http

import (
	"github.com/gofiber/fiber/v2"

	"nittei/core/domain"
	"nittei/core/service/accounts"
	"nittei/infra/middleware"
	"nittei/pkg/apperr"
	"nittei/pkg/response"
)

// AccountHandler serves the §6 `/account` and `/user` routes: tenant
// bootstrap and the users scoped to it.
type AccountHandler struct {
	accounts *accounts.Service
	// createCode gates account creation (spec.md §6 "requires code equal to
	// server secret"): a shared-secret check run before any account exists
	// to authenticate against, so it can't itself be an x-api-key check.
	createCode string
}

// NewAccountHandler wires the account/user service and the account-creation
// shared secret.
func NewAccountHandler(accounts *accounts.Service, createCode string) *AccountHandler {
	return &AccountHandler{accounts: accounts, createCode: createCode}
}

// Register mounts the account/user routes. accountAuth and userAuth are
// applied per-route since account creation must run before any account
// exists to authenticate against.
func (h *AccountHandler) Register(app fiber.Router, accountAuth, userAuth fiber.Handler) {
	app.Post("/account", h.CreateAccount)
	app.Get("/account", accountAuth, h.GetAccount)
	app.Put("/account/pubkey", accountAuth, h.SetPublicKey)
	app.Put("/account/webhook", accountAuth, h.SetWebhook)
	app.Delete("/account/webhook", accountAuth, h.ClearWebhook)

	app.Post("/user", accountAuth, h.CreateUser)
	app.Get("/user/:id", accountAuth, h.GetUser)
	app.Get("/user/external_id/:ext", accountAuth, h.GetUserByExternalID)
	app.Delete("/user/:id", accountAuth, h.DeleteUser)
	_ = userAuth // user-scoped calendar/event/schedule routes apply it themselves
}

type createAccountRequest struct {
	Code         string  `json:"code" validate:"required"`
	PublicJWTKey *string `json:"public_jwt_key"`
	WebhookURL   *string `json:"webhook_url"`
	SettingsTZID string  `json:"settings_tz_id"`
}

// CreateAccount provisions a new tenant, returning its raw API key exactly
// once.
func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Code != h.createCode {
		return apperr.Unauthorized("invalid account creation code")
	}

	account, rawKey, err := h.accounts.CreateAccount(c.Context(), req.PublicJWTKey, req.WebhookURL, req.SettingsTZID)
	if err != nil {
		return err
	}
	return response.Created(c, fiber.Map{
		"account":  account,
		"api_key":  rawKey,
	})
}

// GetAccount returns the account resolved from the caller's api key.
func (h *AccountHandler) GetAccount(c *fiber.Ctx) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	account, err := h.accounts.GetAccount(c.Context(), id)
	if err != nil {
		return err
	}
	return response.OK(c, account)
}

type setPubKeyRequest struct {
	PublicJWTKey *string `json:"public_jwt_key"`
}

// SetPublicKey sets or clears the account's JWT verification key.
func (h *AccountHandler) SetPublicKey(c *fiber.Ctx) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	var req setPubKeyRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	account, err := h.accounts.GetAccount(c.Context(), id)
	if err != nil {
		return err
	}
	account.PublicJWTKey = req.PublicJWTKey
	if err := h.accounts.UpdateAccount(c.Context(), account); err != nil {
		return err
	}
	return response.OK(c, account)
}

type setWebhookRequest struct {
	WebhookURL string `json:"webhook_url" validate:"required,url"`
}

// SetWebhook sets the account's webhook destination.
func (h *AccountHandler) SetWebhook(c *fiber.Ctx) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	var req setWebhookRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	account, err := h.accounts.GetAccount(c.Context(), id)
	if err != nil {
		return err
	}
	account.WebhookURL = &req.WebhookURL
	if err := h.accounts.UpdateAccount(c.Context(), account); err != nil {
		return err
	}
	return response.OK(c, account)
}

// ClearWebhook removes the account's webhook destination.
func (h *AccountHandler) ClearWebhook(c *fiber.Ctx) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}
	account, err := h.accounts.GetAccount(c.Context(), id)
	if err != nil {
		return err
	}
	account.WebhookURL = nil
	if err := h.accounts.UpdateAccount(c.Context(), account); err != nil {
		return err
	}
	return response.NoContent(c)
}

type createUserRequest struct {
	ExternalID *string         `json:"external_id"`
	Metadata   domain.Metadata `json:"metadata"`
}

// CreateUser registers a user under the caller's account.
func (h *AccountHandler) CreateUser(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	var req createUserRequest
	if err := middleware.BindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.accounts.CreateUser(c.Context(), accID, req.ExternalID, req.Metadata)
	if err != nil {
		return err
	}
	return response.Created(c, user)
}

// GetUser fetches a user by id.
func (h *AccountHandler) GetUser(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	userID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.accounts.GetUser(c.Context(), accID, userID)
	if err != nil {
		return err
	}
	return response.OK(c, user)
}

// GetUserByExternalID fetches a user by the account's own external id.
func (h *AccountHandler) GetUserByExternalID(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	ext := c.Params("ext")
	if ext == "" {
		return apperr.BadInput("missing external id path parameter")
	}
	user, err := h.accounts.GetUserByExternalID(c.Context(), accID, ext)
	if err != nil {
		return err
	}
	return response.OK(c, user)
}

// DeleteUser removes a user.
func (h *AccountHandler) DeleteUser(c *fiber.Ctx) error {
	accID, err := accountID(c)
	if err != nil {
		return err
	}
	userID, err := middleware.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.accounts.DeleteUser(c.Context(), accID, userID); err != nil {
		return err
	}
	return response.NoContent(c)
}
