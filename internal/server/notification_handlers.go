package server

import (
	"github.com/gofiber/fiber/v2"
)

// ListNotifications handles GET /api/notifications
// @Summary The caller's notifications, newest first
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Unread only"
// @Param page query int false "Page number"
// @Success 200 {object} presenter.Page[presenter.NotificationView]
// @Router /notifications [get]
func (s *Server) ListNotifications(c *fiber.Ctx) error {
	unread := queryBool(c, "unread")
	page, err := s.notificationService.List(c.UserContext(), actor(c), unread != nil && *unread, parsePage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}

// UnreadCount handles GET /api/notifications/unread-count
// @Summary Number of unread notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{unread_count=int}
// @Router /notifications/unread-count [get]
func (s *Server) UnreadCount(c *fiber.Ctx) error {
	n, err := s.notificationService.UnreadCount(c.UserContext(), actor(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": n})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
// @Summary Mark one notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{id}/read [post]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.notificationService.MarkRead(c.UserContext(), actor(c), id); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Notification marked as read"})
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{updated=int}
// @Router /notifications/read-all [post]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), actor(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}
