package server

import (
	"blogapi/internal/auth"
	"blogapi/internal/middleware"
	"blogapi/internal/presenter"
	"blogapi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RegisterResponse is returned by a successful registration.
type RegisterResponse struct {
	User    presenter.UserView `json:"user"`
	Tokens  auth.TokenPair     `json:"tokens"`
	Message string             `json:"message"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Access  string              `json:"access"`
	Refresh string              `json:"refresh"`
	User    presenter.LoginUser `json:"user"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create an account and its profile, returning a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, pair, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondErr(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{
		User:    presenter.NewUserView(user),
		Tokens:  pair,
		Message: "User registered successfully",
	})
}

// Login handles POST /api/auth/login
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, pair, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return respondErr(c, err)
	}

	return c.JSON(LoginResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    presenter.NewLoginUser(user),
	})
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body refreshRequest true "Refresh token"
// @Success 200 {object} object{access=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	access, err := s.authService.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"access": access})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the refresh token and the access token used for the call
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body refreshRequest true "Refresh token"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.Logout(c.UserContext(), req.Refresh, middleware.Claims(c)); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Successfully logged out"})
}

// GetProfile handles GET /api/auth/profile
// @Summary Current user's profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} presenter.UserView
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, err := s.authService.Profile(c.UserContext(), actor(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewUserView(user))
}

// UpdateProfile handles PUT and PATCH /api/auth/profile
// @Summary Update current user's profile
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} presenter.UserView
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/profile [put]
// @Router /auth/profile [patch]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.authService.UpdateProfile(c.UserContext(), actor(c), req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewUserView(user))
}

// ChangePassword handles POST /api/auth/change-password
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ChangePasswordInput true "Passwords"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/change-password [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.ChangePassword(c.UserContext(), actor(c), req); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password changed successfully"})
}

// DeleteAccount handles DELETE /api/auth/delete-account
// @Summary Delete account
// @Description Deletes the user with their posts, comments and likes
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.DeleteAccountInput true "Password confirmation"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/delete-account [delete]
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	var req service.DeleteAccountInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.authService.DeleteAccount(c.UserContext(), actor(c), req); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Account deleted successfully"})
}
