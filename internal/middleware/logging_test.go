package middleware

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger
	Logger = NewLogger(&buf, "production", "debug")
	t.Cleanup(func() { Logger = prev })
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestStructuredLogger_Levels(t *testing.T) {
	buf := captureLogs(t)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "req-1")
		return c.Next()
	})
	app.Use(ContextMiddleware())
	app.Use(StructuredLogger("/health"))
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendString("up") })
	app.Get("/posts/:slug", func(c *fiber.Ctx) error {
		if c.Params("slug") == "missing" {
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendString("ok")
	})
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadGateway, "upstream") })

	for _, path := range []string{"/health/live", "/posts/hello", "/posts/missing", "/boom"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3, "health checks are skipped")

	assert.Contains(t, lines[0], `"level":"INFO"`)
	assert.Contains(t, lines[0], `"route":"/posts/:slug"`)
	assert.Contains(t, lines[0], `"request_id":"req-1"`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"status":404`)
	assert.Contains(t, lines[2], `"level":"ERROR"`)
	assert.Contains(t, lines[2], `"status":502`)
	assert.Contains(t, lines[2], `"error":"upstream"`)
}
