// Package middleware provides the Fiber middleware chain: logging, auth, rate limiting, tracing and metrics.
package middleware

import (
	"context"
	"strings"

	"blogapi/internal/auth"
	"blogapi/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Fiber locals set by the auth middleware.
const (
	LocalUserID = "userID"
	LocalClaims = "claims"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(ctx context.Context, raw, tokenType string) (*auth.Claims, error)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// ok is false when the header is absent; err is set when it is malformed.
func bearerToken(c *fiber.Ctx) (token string, ok bool, err error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", false, nil
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true, models.NewUnauthenticatedError("Invalid authorization header format")
	}
	return parts[1], true, nil
}

func attach(c *fiber.Ctx, claims *auth.Claims) {
	uid, _ := claims.UserID()
	c.Locals(LocalUserID, uid)
	c.Locals(LocalClaims, claims)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, uid))
}

func authenticate(c *fiber.Ctx, parser TokenParser, required bool) error {
	raw, present, err := bearerToken(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	if !present {
		if required {
			return models.RespondWithError(c, models.NewUnauthenticatedError("Authentication credentials were not provided"))
		}
		return c.Next()
	}

	claims, err := parser.Parse(c.UserContext(), raw, auth.TokenTypeAccess)
	if err != nil {
		Logger.DebugContext(c.UserContext(), "rejected bearer token", "error", err)
		return models.RespondWithError(c, models.NewUnauthenticatedError("Invalid or expired token"))
	}
	attach(c, claims)
	return c.Next()
}

// AuthRequired rejects requests without a valid access token with 401.
func AuthRequired(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authenticate(c, parser, true)
	}
}

// OptionalAuth identifies the caller when a token is sent and lets anonymous
// requests through. A token that is sent but invalid is still a 401.
func OptionalAuth(parser TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authenticate(c, parser, false)
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *fiber.Ctx) (uint, bool) {
	uid, ok := c.Locals(LocalUserID).(uint)
	return uid, ok && uid != 0
}

// Claims returns the verified access token claims, if any.
func Claims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(LocalClaims).(*auth.Claims)
	return claims
}
