package server

import (
	"blogapi/internal/presenter"
	"blogapi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListCategories handles GET /api/categories
// @Summary List categories with their published post counts
// @Tags categories
// @Produce json
// @Success 200 {array} presenter.CategoryView
// @Router /categories [get]
func (s *Server) ListCategories(c *fiber.Ctx) error {
	list, err := s.taxonomyService.ListCategories(c.UserContext())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(list)
}

// GetCategory handles GET /api/categories/:slug
// @Summary Get a category
// @Tags categories
// @Produce json
// @Param slug path string true "Category slug"
// @Success 200 {object} presenter.CategoryView
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{slug} [get]
func (s *Server) GetCategory(c *fiber.Ctx) error {
	category, err := s.taxonomyService.GetCategory(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewCategoryView(category))
}

// CreateCategory handles POST /api/categories
// @Summary Create a category
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CategoryInput true "Category"
// @Success 201 {object} presenter.CategoryView
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /categories [post]
func (s *Server) CreateCategory(c *fiber.Ctx) error {
	var req service.CategoryInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	category, err := s.taxonomyService.CreateCategory(c.UserContext(), actor(c), req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(presenter.NewCategoryView(category))
}

// UpdateCategory handles PUT and PATCH /api/categories/:slug
// @Summary Update a category
// @Description Renaming re-slugs the category
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Category slug"
// @Param request body service.UpdateCategoryInput true "Fields to change"
// @Success 200 {object} presenter.CategoryView
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /categories/{slug} [put]
// @Router /categories/{slug} [patch]
func (s *Server) UpdateCategory(c *fiber.Ctx) error {
	var req service.UpdateCategoryInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	category, err := s.taxonomyService.UpdateCategory(c.UserContext(), actor(c), c.Params("slug"), req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewCategoryView(category))
}

// DeleteCategory handles DELETE /api/categories/:slug
// @Summary Delete a category
// @Description Its posts become uncategorized
// @Tags categories
// @Security BearerAuth
// @Param slug path string true "Category slug"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /categories/{slug} [delete]
func (s *Server) DeleteCategory(c *fiber.Ctx) error {
	if err := s.taxonomyService.DeleteCategory(c.UserContext(), actor(c), c.Params("slug")); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CategoryPosts handles GET /api/categories/:slug/posts
// @Summary Published posts in a category
// @Tags categories
// @Produce json
// @Param slug path string true "Category slug"
// @Param page query int false "Page number"
// @Success 200 {object} presenter.Page[presenter.PostListItem]
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{slug}/posts [get]
func (s *Server) CategoryPosts(c *fiber.Ctx) error {
	page, err := s.taxonomyService.CategoryPosts(c.UserContext(), c.Params("slug"), parsePage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}

// ListTags handles GET /api/tags
// @Summary List tags with their published post counts
// @Tags tags
// @Produce json
// @Success 200 {array} presenter.TagView
// @Router /tags [get]
func (s *Server) ListTags(c *fiber.Ctx) error {
	list, err := s.taxonomyService.ListTags(c.UserContext())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(list)
}

// GetTag handles GET /api/tags/:slug
// @Summary Get a tag
// @Tags tags
// @Produce json
// @Param slug path string true "Tag slug"
// @Success 200 {object} presenter.TagView
// @Failure 404 {object} models.ErrorResponse
// @Router /tags/{slug} [get]
func (s *Server) GetTag(c *fiber.Ctx) error {
	tag, err := s.taxonomyService.GetTag(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewTagView(tag))
}

// CreateTag handles POST /api/tags
// @Summary Create a tag
// @Tags tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.TagInput true "Tag"
// @Success 201 {object} presenter.TagView
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /tags [post]
func (s *Server) CreateTag(c *fiber.Ctx) error {
	var req service.TagInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	tag, err := s.taxonomyService.CreateTag(c.UserContext(), actor(c), req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(presenter.NewTagView(tag))
}

// UpdateTag handles PUT and PATCH /api/tags/:slug
// @Summary Rename a tag
// @Tags tags
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Tag slug"
// @Param request body service.TagInput true "Tag"
// @Success 200 {object} presenter.TagView
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /tags/{slug} [put]
// @Router /tags/{slug} [patch]
func (s *Server) UpdateTag(c *fiber.Ctx) error {
	var req service.TagInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	tag, err := s.taxonomyService.UpdateTag(c.UserContext(), actor(c), c.Params("slug"), req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewTagView(tag))
}

// DeleteTag handles DELETE /api/tags/:slug
// @Summary Delete a tag
// @Tags tags
// @Security BearerAuth
// @Param slug path string true "Tag slug"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /tags/{slug} [delete]
func (s *Server) DeleteTag(c *fiber.Ctx) error {
	if err := s.taxonomyService.DeleteTag(c.UserContext(), actor(c), c.Params("slug")); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TagPosts handles GET /api/tags/:slug/posts
// @Summary Published posts with a tag
// @Tags tags
// @Produce json
// @Param slug path string true "Tag slug"
// @Param page query int false "Page number"
// @Success 200 {object} presenter.Page[presenter.PostListItem]
// @Failure 404 {object} models.ErrorResponse
// @Router /tags/{slug}/posts [get]
func (s *Server) TagPosts(c *fiber.Ctx) error {
	page, err := s.taxonomyService.TagPosts(c.UserContext(), c.Params("slug"), parsePage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}
