package server

import (
	"blogapi/internal/presenter"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /api/users
// @Summary List users
// @Description Staff only
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Success 200 {object} presenter.Page[presenter.UserView]
// @Failure 403 {object} models.ErrorResponse
// @Router /users [get]
func (s *Server) ListUsers(c *fiber.Ctx) error {
	page, err := s.userService.ListUsers(c.UserContext(), actor(c), parsePage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}

// GetUser handles GET /api/users/:id
// @Summary Get a user
// @Description Private profiles are visible to their owner and staff
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} presenter.UserView
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUser(c.UserContext(), actor(c), id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewUserView(user))
}
