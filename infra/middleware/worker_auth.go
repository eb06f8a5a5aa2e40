package middleware

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"nittei/core/domain"
	"nittei/core/port/out"
	"nittei/pkg/apperr"
	"nittei/pkg/crypto"
	"nittei/pkg/logger"
)

// AccountKey is the fiber.Ctx Locals key AccountAuth stores the resolved
// account under; UserKey is where UserAuth stores the resolved user id.
const (
	AccountKey = "account"
	UserKey    = "user_id"
)

// AccountAuth resolves the caller's Account from the x-api-key header
// (spec.md §6 "identifies account (admin routes)"), hashing the presented
// key the same way accounts.CreateAccount hashed it at creation time so the
// raw secret is never compared or stored.
func AccountAuth(accounts out.AccountRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawKey := c.Get("x-api-key")
		if rawKey == "" {
			return apperr.Unauthorized("missing x-api-key header")
		}
		account, err := accounts.GetByAPIKeyHash(c.Context(), crypto.HashAPIKey(rawKey))
		if err != nil {
			return apperr.StorageUnavailable("resolve account", err)
		}
		if account == nil {
			return apperr.Unauthorized("invalid api key")
		}
		c.Locals(AccountKey, account)
		return c.Next()
	}
}

// publicKeyCache memoizes the *rsa.PublicKey parsed from an account's PEM so
// UserAuth doesn't re-parse it on every request.
type publicKeyCache struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]parsedKey
}

type parsedKey struct {
	pem string
	key any
}

var pubKeyCache = &publicKeyCache{byID: make(map[uuid.UUID]parsedKey)}

func (c *publicKeyCache) get(accountID uuid.UUID, pemStr string) (any, error) {
	c.mu.RLock()
	if cached, ok := c.byID[accountID]; ok && cached.pem == pemStr {
		c.mu.RUnlock()
		return cached.key, nil
	}
	c.mu.RUnlock()

	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("invalid PEM block")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byID[accountID] = parsedKey{pem: pemStr, key: key}
	c.mu.Unlock()
	return key, nil
}

// UserAuth resolves the caller's user id from an RS256 JWT verified against
// the account's public_jwt_key (spec.md §6 "identifies user under account
// (user routes). JWT signed RS256 by the account's public key; must contain
// claim nitteiUserId"). Must run after AccountAuth: it reads the account
// AccountAuth already resolved from the nittei-account header's matching id.
func UserAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, ok := c.Locals(AccountKey).(*domain.Account)
		if !ok || account == nil {
			return apperr.Unauthorized("account must be resolved before user auth")
		}
		headerAccountID := c.Get("nittei-account")
		if headerAccountID == "" {
			return apperr.Unauthorized("missing nittei-account header")
		}
		accountID, err := uuid.Parse(headerAccountID)
		if err != nil || accountID != account.ID {
			return apperr.Unauthorized("nittei-account header does not match the resolved account")
		}
		if account.PublicJWTKey == nil {
			return apperr.Unauthorized("account has no jwt public key configured")
		}

		authHeader := c.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperr.Unauthorized("missing bearer token")
		}

		pubKey, err := pubKeyCache.get(account.ID, *account.PublicJWTKey)
		if err != nil {
			logger.WithError(err).Warn("failed to parse account jwt public key")
			return apperr.Unauthorized("account jwt public key is malformed")
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("unexpected signing method, expected RS256")
			}
			return pubKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithLeeway(time.Minute))
		if err != nil || !token.Valid {
			return apperr.Unauthorized("invalid or expired jwt")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return apperr.Unauthorized("invalid jwt claims")
		}
		userIDStr, ok := claims["nitteiUserId"].(string)
		if !ok || userIDStr == "" {
			return apperr.Unauthorized("jwt missing nitteiUserId claim")
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			return apperr.Unauthorized("jwt nitteiUserId claim is not a valid id")
		}

		c.Locals(UserKey, userID)
		return c.Next()
	}
}

// AccountFromCtx reads the Account AccountAuth resolved for this request.
func AccountFromCtx(c *fiber.Ctx) *domain.Account {
	account, _ := c.Locals(AccountKey).(*domain.Account)
	return account
}

// UserIDFromCtx reads the user id UserAuth resolved for this request.
func UserIDFromCtx(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(UserKey).(uuid.UUID)
	return id, ok
}
