package server

import (
	"blogapi/internal/models"
	"blogapi/internal/presenter"
	"blogapi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListComments handles GET /api/comments?post_id=
// @Summary Approved top-level comments of a post, newest first
// @Tags comments
// @Produce json
// @Param post_id query int true "Post ID"
// @Param page query int false "Page number"
// @Success 200 {object} presenter.Page[presenter.CommentNode]
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	postID := c.QueryInt("post_id", 0)
	if postID <= 0 {
		return respondErr(c, models.NewFieldError("post_id", "A valid post_id is required."))
	}

	page, err := s.commentService.ListTopLevel(c.UserContext(), uint(postID), parsePage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}

// CreateComment handles POST /api/comments
// @Summary Comment on a post or reply to a comment
// @Description The parent must belong to the same post
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateCommentInput true "Comment"
// @Success 201 {object} presenter.CommentNode
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req service.CreateCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), actor(c), req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(presenter.NewCommentNode(comment))
}

// UpdateComment handles PUT and PATCH /api/comments/:id
// @Summary Edit a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body service.UpdateCommentInput true "New content"
// @Success 200 {object} presenter.CommentNode
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [put]
// @Router /comments/{id} [patch]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), actor(c), id, req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewCommentNode(comment))
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a comment and its replies
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.commentService.DeleteComment(c.UserContext(), actor(c), id); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PendingComments handles GET /api/comments/pending
// @Summary Moderation queue, oldest first
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Success 200 {array} presenter.CommentNode
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/pending [get]
func (s *Server) PendingComments(c *fiber.Ctx) error {
	list, err := s.commentService.Pending(c.UserContext(), actor(c), parsePage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(list)
}

// ApproveComment handles POST /api/comments/:id/approve
// @Summary Approve a queued comment
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 200 {object} presenter.CommentNode
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id}/approve [post]
func (s *Server) ApproveComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	comment, err := s.commentService.Approve(c.UserContext(), actor(c), id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewCommentNode(comment))
}

// RejectComment handles POST /api/comments/:id/reject
// @Summary Reject a comment, deleting it with its replies
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id}/reject [post]
func (s *Server) RejectComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.commentService.Reject(c.UserContext(), actor(c), id); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
