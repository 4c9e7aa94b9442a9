package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost_StampPublication(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	draft := &Post{Status: PostStatusDraft}
	assert.False(t, draft.StampPublication(now))
	assert.Nil(t, draft.PublishedAt)

	published := &Post{Status: PostStatusPublished}
	assert.True(t, published.StampPublication(now))
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, now, *published.PublishedAt)

	later := now.Add(time.Hour)
	assert.False(t, published.StampPublication(later), "existing timestamp is kept")
	assert.Equal(t, now, *published.PublishedAt)
}

func TestNewUserProfile_Defaults(t *testing.T) {
	p := NewUserProfile(7)
	assert.Equal(t, uint(7), p.UserID)
	assert.True(t, p.NotificationEnabled)
	assert.False(t, p.EmailVerified)
	assert.True(t, p.IsPublic)
	assert.Empty(t, p.PhoneNumber)
}

func TestAppError_Status(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewFieldError("title", "required"), http.StatusBadRequest},
		{NewUnauthenticatedError("login"), http.StatusUnauthorized},
		{NewForbiddenError("nope"), http.StatusForbidden},
		{NewNotFoundError("Post", "x"), http.StatusNotFound},
		{NewConflictError("dup", nil), http.StatusConflict},
		{NewInternalError(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status())
		})
	}
}

func TestHasCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("toggle: %w", NewConflictError("duplicate like", nil))
	assert.True(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
}

func TestRespondWithError(t *testing.T) {
	app := fiber.New()
	app.Get("/field", func(c *fiber.Ctx) error {
		return RespondWithError(c, NewFieldError("username", "A user with that username already exists."))
	})
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, NewInternalError(errors.New("pq: secret detail")))
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return RespondWithError(c, errors.New("unexpected"))
	})

	decode := func(t *testing.T, path string) (int, ErrorResponse) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		var out ErrorResponse
		require.NoError(t, json.Unmarshal(body, &out))
		return resp.StatusCode, out
	}

	status, body := decode(t, "/field")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeValidation, body.Code)
	assert.Contains(t, body.Fields["username"], "already exists")

	status, body = decode(t, "/internal")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Empty(t, body.Details)

	status, body = decode(t, "/plain")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body.Error)
}
