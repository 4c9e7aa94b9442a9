package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"blogapi/internal/config"
	"blogapi/internal/middleware"
	"blogapi/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontendOrigin = "http://localhost:5173"

func middlewareApp(cfg *config.Config) *fiber.App {
	srv := &Server{config: cfg}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.All("/api/posts", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func hit(t *testing.T, app *fiber.App, method, origin string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, "/api/posts", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func exhaustGlobalLimit(t *testing.T, app *fiber.App) {
	t.Helper()
	for i := 0; i < globalRequestsPerMinute; i++ {
		require.Equal(t, fiber.StatusOK, hit(t, app, http.MethodGet, frontendOrigin).StatusCode, "request %d", i+1)
	}
}

func TestMiddleware_ThrottledResponseIsCORSReadable(t *testing.T) {
	app := middlewareApp(&config.Config{AllowedOrigins: frontendOrigin})
	exhaustGlobalLimit(t, app)

	resp := hit(t, app, http.MethodGet, frontendOrigin)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, frontendOrigin, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, middleware.CodeRateLimited, body.Code)
}

func TestMiddleware_PreflightIgnoresLimiter(t *testing.T) {
	app := middlewareApp(&config.Config{AllowedOrigins: frontendOrigin})
	exhaustGlobalLimit(t, app)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", frontendOrigin)
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)
	req.Header.Set(fiber.HeaderAccessControlRequestHeaders, "authorization,content-type")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), http.MethodPost)
	assert.Equal(t, "true", resp.Header.Get(fiber.HeaderAccessControlAllowCredentials))
}

func TestMiddleware_Origins(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    string
	}{
		{"configured origin", "https://blog.example.com", "https://blog.example.com", "https://blog.example.com"},
		{"unknown origin", "https://blog.example.com", "https://evil.example.com", ""},
		{"dev default", "", frontendOrigin, frontendOrigin},
		{"wildcard", "*", "https://anywhere.example.com", "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := middlewareApp(&config.Config{Env: "test", AllowedOrigins: tt.allowed})
			resp := hit(t, app, http.MethodGet, tt.origin)
			assert.Equal(t, tt.want, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		})
	}
}

func TestMiddleware_StandardHeaders(t *testing.T) {
	app := middlewareApp(&config.Config{Env: "test"})
	resp := hit(t, app, http.MethodGet, "")

	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.Equal(t, "nosniff", resp.Header.Get(fiber.HeaderXContentTypeOptions))
}

func TestMiddleware_TestEnvHasNoGlobalLimit(t *testing.T) {
	app := middlewareApp(&config.Config{Env: "test"})
	for i := 0; i <= globalRequestsPerMinute; i++ {
		require.Equal(t, fiber.StatusOK, hit(t, app, http.MethodGet, "").StatusCode)
	}
}
