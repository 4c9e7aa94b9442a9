package server

import (
	"blogapi/internal/presenter"
	"blogapi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListPosts handles GET /api/posts
// @Summary List published posts
// @Tags posts
// @Produce json
// @Param search query string false "Matches title, content and author username"
// @Param category query string false "Category slug"
// @Param tag query string false "Tag slug"
// @Param author query string false "Author username"
// @Param featured query bool false "true restricts to featured posts"
// @Param ordering query string false "created_at, published_at, views_count, title; prefix - for descending"
// @Param page query int false "Page number"
// @Success 200 {object} presenter.Page[presenter.PostListItem]
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Author:   c.Query("author"),
		Featured: queryTrue(c, "featured"),
		Ordering: c.Query("ordering"),
		Page:     parsePage(c),
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} presenter.PostDetail
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), actor(c), req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(presenter.NewPostDetail(post, nil, 0, false))
}

// MyPosts handles GET /api/posts/my-posts
// @Summary The caller's posts, drafts included
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Success 200 {object} presenter.Page[presenter.PostListItem]
// @Router /posts/my-posts [get]
func (s *Server) MyPosts(c *fiber.Ctx) error {
	page, err := s.postService.MyPosts(c.UserContext(), actor(c), parsePage(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(page)
}

// TrendingPosts handles GET /api/posts/trending
// @Summary Most viewed posts of the last week
// @Tags posts
// @Produce json
// @Success 200 {array} presenter.PostListItem
// @Router /posts/trending [get]
func (s *Server) TrendingPosts(c *fiber.Ctx) error {
	posts, err := s.postService.Trending(c.UserContext())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(posts)
}

// FeaturedPosts handles GET /api/posts/featured
// @Summary Featured posts
// @Tags posts
// @Produce json
// @Success 200 {array} presenter.PostListItem
// @Router /posts/featured [get]
func (s *Server) FeaturedPosts(c *fiber.Ctx) error {
	posts, err := s.postService.Featured(c.UserContext())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:slug
// @Summary Get a post
// @Description Counts a view. Drafts are visible to their author and staff only.
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} presenter.PostDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), actor(c), c.Params("slug"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT and PATCH /api/posts/:slug
// @Summary Update a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Param request body service.UpdatePostInput true "Fields to change"
// @Success 200 {object} presenter.PostDetail
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug} [put]
// @Router /posts/{slug} [patch]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req service.UpdatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), actor(c), c.Params("slug"), req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(presenter.NewPostDetail(post, nil, 0, false))
}

// DeletePost handles DELETE /api/posts/:slug
// @Summary Delete a post
// @Tags posts
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.DeletePost(c.UserContext(), actor(c), c.Params("slug")); err != nil {
		return respondErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/posts/:slug/like
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Success 201 {object} presenter.LikeResult "liked"
// @Success 200 {object} presenter.LikeResult "unliked"
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	res, err := s.postService.ToggleLike(c.UserContext(), actor(c), c.Params("slug"))
	if err != nil {
		return respondErr(c, err)
	}
	if res.Liked {
		return c.Status(fiber.StatusCreated).JSON(res)
	}
	return c.JSON(res)
}

// ListLikes handles GET /api/posts/:slug/likes
// @Summary Likes of a post, newest first
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {array} presenter.LikeView
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug}/likes [get]
func (s *Server) ListLikes(c *fiber.Ctx) error {
	likes, err := s.postService.ListLikes(c.UserContext(), actor(c), c.Params("slug"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(likes)
}

// PostStats handles GET /api/posts/:slug/stats
// @Summary Engagement counters
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Success 200 {object} presenter.PostStats
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{slug}/stats [get]
func (s *Server) PostStats(c *fiber.Ctx) error {
	stats, err := s.postService.Stats(c.UserContext(), actor(c), c.Params("slug"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(stats)
}

// PostComments handles GET /api/posts/:slug/comments
// @Summary Approved comment tree of a post
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {array} presenter.CommentNode
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug}/comments [get]
func (s *Server) PostComments(c *fiber.Ctx) error {
	tree, err := s.commentService.PostTree(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(tree)
}

// Search handles GET /api/search
// @Summary Search published posts
// @Tags posts
// @Produce json
// @Param q query string false "Text to match"
// @Param category query string false "Category slug"
// @Param tag query string false "Tag slug"
// @Param author query string false "Author username"
// @Success 200 {object} presenter.SearchResult[presenter.PostListItem]
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	res, err := s.postService.Search(c.UserContext(), service.SearchInput{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Author:   c.Query("author"),
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(res)
}
