package server

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"blogapi/internal/middleware"
	"blogapi/internal/models"
	"blogapi/internal/policy"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// respondErr writes err as the standard error body. Unexpected errors are
// logged with the request context and reported as an opaque 500.
func respondErr(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code == models.CodeInternal {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("method", c.Method()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, err)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// parsePage reads ?page=. Values that do not parse fall back to the first
// page; out-of-range pages are clamped by the service.
func parsePage(c *fiber.Ctx) int {
	return c.QueryInt("page", 1)
}

// parseBody decodes the JSON body into dst, writing a 400 on malformed input.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// actor identifies the caller from the verified token claims.
func actor(c *fiber.Ctx) policy.Actor {
	if claims := middleware.Claims(c); claims != nil {
		return policy.FromClaims(claims)
	}
	return policy.Anonymous
}

// queryTrue is &true when key equals "true" in any case, nil otherwise.
// Any other value applies no filter.
func queryTrue(c *fiber.Ctx, key string) *bool {
	if !strings.EqualFold(c.Query(key), "true") {
		return nil
	}
	v := true
	return &v
}

// queryBool parses an optional boolean query parameter; nil when absent.
func queryBool(c *fiber.Ctx, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v := raw == "1" || strings.EqualFold(raw, "true")
	return &v
}
