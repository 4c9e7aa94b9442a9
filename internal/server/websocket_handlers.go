package server

import (
	"errors"
	"log/slog"
	"strconv"

	"blogapi/internal/cache"
	"blogapi/internal/middleware"
	"blogapi/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a one-shot websocket ticket
// @Description Browsers cannot set headers on websocket upgrades; pass the ticket as ?ticket= on /api/ws within a minute.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return respondErr(c, models.NewUnauthenticatedError("Authentication credentials were not provided"))
	}
	if s.redis == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error: "WebSocket tickets are unavailable",
			Code:  models.CodeInternal,
		})
	}

	ticket := uuid.NewString()
	if err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket), uid, cache.WSTicketTTL).Err(); err != nil {
		return respondErr(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}

// WSAuth authenticates websocket upgrades with a single-use ticket, falling
// back to a bearer access token.
func (s *Server) WSAuth() fiber.Handler {
	bearer := middleware.AuthRequired(s.tokens)
	return func(c *fiber.Ctx) error {
		ticket := c.Query("ticket")
		if ticket == "" {
			return bearer(c)
		}
		if s.redis == nil {
			return respondErr(c, models.NewUnauthenticatedError("Invalid or expired WebSocket ticket"))
		}

		raw, err := s.redis.GetDel(c.UserContext(), cache.WSTicketKey(ticket)).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				middleware.Logger.WarnContext(c.UserContext(), "ws ticket lookup failed", slog.String("error", err.Error()))
			}
			return respondErr(c, models.NewUnauthenticatedError("Invalid or expired WebSocket ticket"))
		}
		uid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || uid == 0 {
			return respondErr(c, models.NewUnauthenticatedError("Invalid or expired WebSocket ticket"))
		}

		c.Locals(middleware.LocalUserID, uint(uid))
		return c.Next()
	}
}

// WebsocketHandler registers the connection with the notification hub and
// streams the user's events until the client goes away.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals(middleware.LocalUserID).(uint)
		if !ok || uid == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed", slog.Uint64("user_id", uint64(uid)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		go client.WritePump()
		client.ReadPump()
	})
}
