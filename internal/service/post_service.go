package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blogapi/internal/cache"
	"blogapi/internal/models"
	"blogapi/internal/observability"
	"blogapi/internal/policy"
	"blogapi/internal/presenter"
	"blogapi/internal/repository"
	"blogapi/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type PostService struct {
	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
	tagRepo      repository.TagRepository
	commentRepo  repository.CommentRepository
	notifier     Notifier
	validate     *validation.Validator
	maxDepth     int
	now          func() time.Time
}

type CreatePostInput struct {
	Title         string `json:"title" validate:"required,notblank,max=200"`
	Content       string `json:"content" validate:"required,notblank"`
	Excerpt       string `json:"excerpt" validate:"max=500"`
	FeaturedImage string `json:"featured_image" validate:"max=500"`
	CategoryID    *uint  `json:"category"`
	TagIDs        []uint `json:"tag_ids"`
	Status        string `json:"status" validate:"omitempty,oneof=draft published"`
	IsFeatured    bool   `json:"is_featured"`
}

// UpdatePostInput names every field an update may touch. Nil pointers and a
// nil TagIDs leave the field alone; category 0 clears the category.
type UpdatePostInput struct {
	Title         *string `json:"title" validate:"omitnil,notblank,max=200"`
	Content       *string `json:"content" validate:"omitnil,notblank"`
	Excerpt       *string `json:"excerpt" validate:"omitnil,max=500"`
	FeaturedImage *string `json:"featured_image" validate:"omitnil,max=500"`
	CategoryID    *uint   `json:"category"`
	TagIDs        []uint  `json:"tag_ids"`
	Status        *string `json:"status" validate:"omitnil,oneof=draft published"`
	IsFeatured    *bool   `json:"is_featured"`
}

// ListPostsInput carries the public listing's query parameters.
type ListPostsInput struct {
	Search   string
	Category string
	Tag      string
	Author   string
	Featured *bool
	Ordering string
	Page     int
}

type SearchInput struct {
	Query    string
	Category string
	Tag      string
	Author   string
}

func NewPostService(
	postRepo repository.PostRepository,
	categoryRepo repository.CategoryRepository,
	tagRepo repository.TagRepository,
	commentRepo repository.CommentRepository,
	notifier Notifier,
	validate *validation.Validator,
	maxDepth int,
) *PostService {
	if maxDepth < 1 {
		maxDepth = presenter.DefaultMaxDepth
	}
	return &PostService{
		postRepo:     postRepo,
		categoryRepo: categoryRepo,
		tagRepo:      tagRepo,
		commentRepo:  commentRepo,
		notifier:     notifier,
		validate:     validate,
		maxDepth:     maxDepth,
		now:          time.Now,
	}
}

func (s *PostService) CreatePost(ctx context.Context, actor policy.Actor, in CreatePostInput) (_ *models.Post, err error) {
	ctx, finish := observability.StartSpan(ctx, "post", "create")
	defer func() { finish(err) }()

	if err := policy.Check(policy.PostCreate, actor, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = models.PostStatusDraft
	}

	post := &models.Post{
		Title:         strings.TrimSpace(in.Title),
		Content:       in.Content,
		Excerpt:       in.Excerpt,
		FeaturedImage: in.FeaturedImage,
		AuthorID:      actor.UserID,
		Status:        in.Status,
		IsFeatured:    in.IsFeatured,
	}
	if in.CategoryID != nil && *in.CategoryID != 0 {
		if _, err := s.resolveCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
		post.CategoryID = in.CategoryID
	}
	if len(in.TagIDs) > 0 {
		if post.Tags, err = s.tagRepo.FindByIDs(ctx, in.TagIDs); err != nil {
			return nil, err
		}
	}
	stamped := post.StampPublication(s.now())

	// Another writer can take the slug between the lookup and the insert; the unique
	// index rejects the loser, which looks up a fresh slug.
	for attempt := 1; ; attempt++ {
		if post.Slug, err = s.postRepo.UniqueSlug(ctx, post.Title, 0); err != nil {
			return nil, err
		}
		post.ID = 0
		err = s.postRepo.Create(ctx, post)
		if err == nil {
			break
		}
		if !models.HasCode(err, models.CodeConflict) || attempt == maxSlugAttempts {
			return nil, err
		}
	}

	if stamped {
		observability.PostsPublishedTotal.Inc()
	}
	s.invalidate(ctx)
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) resolveCategory(ctx context.Context, id uint) (*models.Category, error) {
	c, err := s.categoryRepo.GetByID(ctx, id)
	if models.HasCode(err, models.CodeNotFound) {
		return nil, models.NewFieldError("category", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
	}
	return c, err
}

// UpdatePost applies in to the post at slug. Only fields present in in are
// written, and the slug is regenerated only when the title actually changes.
func (s *PostService) UpdatePost(ctx context.Context, actor policy.Actor, slug string, in UpdatePostInput) (_ *models.Post, err error) {
	ctx, finish := observability.StartSpan(ctx, "post", "update", attribute.String("post.slug", slug))
	defer func() { finish(err) }()

	post, err := s.postRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(policy.PostUpdate, actor, policy.Owned(post.AuthorID)); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	var cols []string
	retitled := false
	if in.Title != nil {
		if title := strings.TrimSpace(*in.Title); title != post.Title {
			post.Title = title
			retitled = true
			cols = append(cols, "title", "slug")
		}
	}
	if in.Content != nil {
		post.Content = *in.Content
		cols = append(cols, "content")
	}
	if in.Excerpt != nil {
		post.Excerpt = *in.Excerpt
		cols = append(cols, "excerpt")
	}
	if in.FeaturedImage != nil {
		post.FeaturedImage = *in.FeaturedImage
		cols = append(cols, "featured_image")
	}
	if in.CategoryID != nil {
		post.CategoryID, post.Category = nil, nil
		if id := *in.CategoryID; id != 0 {
			if _, err := s.resolveCategory(ctx, id); err != nil {
				return nil, err
			}
			post.CategoryID = &id
		}
		cols = append(cols, "category_id")
	}
	if in.Status != nil {
		post.Status = *in.Status
		cols = append(cols, "status")
	}
	if in.IsFeatured != nil {
		post.IsFeatured = *in.IsFeatured
		cols = append(cols, "is_featured")
	}
	replaceTags := in.TagIDs != nil
	if replaceTags {
		post.Tags = nil
		if len(in.TagIDs) > 0 {
			if post.Tags, err = s.tagRepo.FindByIDs(ctx, in.TagIDs); err != nil {
				return nil, err
			}
		}
	}
	stamped := post.StampPublication(s.now())
	if stamped {
		cols = append(cols, "published_at")
	}

	for attempt := 1; ; attempt++ {
		if retitled {
			if post.Slug, err = s.postRepo.UniqueSlug(ctx, post.Title, post.ID); err != nil {
				return nil, err
			}
		}
		err = s.postRepo.Update(ctx, post, cols, replaceTags)
		if err == nil {
			break
		}
		if !retitled || !models.HasCode(err, models.CodeConflict) || attempt == maxSlugAttempts {
			return nil, err
		}
	}

	if stamped {
		observability.PostsPublishedTotal.Inc()
	}
	s.invalidate(ctx)
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) DeletePost(ctx context.Context, actor policy.Actor, slug string) error {
	post, err := s.postRepo.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := policy.Check(policy.PostDelete, actor, policy.Owned(post.AuthorID)); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// visible loads the post at slug. Drafts exist only for their author and
// staff; everyone else gets NOT_FOUND.
func (s *PostService) visible(ctx context.Context, actor policy.Actor, slug string) (*models.Post, error) {
	post, err := s.postRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() && !policy.Evaluate(policy.PostViewDraft, actor, policy.Owned(post.AuthorID)).Allowed {
		return nil, models.NewNotFoundError("Post", slug)
	}
	return post, nil
}

// GetPost returns the detail view. Each call on a published post counts one view.
func (s *PostService) GetPost(ctx context.Context, actor policy.Actor, slug string) (presenter.PostDetail, error) {
	post, err := s.visible(ctx, actor, slug)
	if err != nil {
		return presenter.PostDetail{}, err
	}
	if post.IsPublished() {
		views, err := s.postRepo.IncrementViews(ctx, post.ID)
		if err != nil {
			return presenter.PostDetail{}, err
		}
		post.ViewsCount = views
	}
	comments, err := s.commentRepo.ListApprovedByPost(ctx, post.ID)
	if err != nil {
		return presenter.PostDetail{}, err
	}
	liked, err := s.postRepo.IsLiked(ctx, post.ID, actor.UserID)
	if err != nil {
		return presenter.PostDetail{}, err
	}
	return presenter.NewPostDetail(post, comments, s.maxDepth, liked), nil
}

// ListPosts is the public, published-only listing.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (presenter.Page[presenter.PostListItem], error) {
	f := repository.PostFilter{
		Search:      in.Search,
		SearchTerms: true,
		Category:    in.Category,
		Tag:         in.Tag,
		Author:      in.Author,
		Featured:    in.Featured,
		Status:      models.PostStatusPublished,
		Ordering:    in.Ordering,
	}
	return listPosts(ctx, s.postRepo, f, in.Page, PostPageSize)
}

// MyPosts lists every post of the actor whatever its status.
func (s *PostService) MyPosts(ctx context.Context, actor policy.Actor, page int) (presenter.Page[presenter.PostListItem], error) {
	if !actor.Authenticated() {
		return presenter.Page[presenter.PostListItem]{}, models.NewUnauthenticatedError("Authentication credentials were not provided")
	}
	f := repository.PostFilter{AuthorID: actor.UserID, Ordering: "-created_at"}
	return listPosts(ctx, s.postRepo, f, page, DefaultPageSize)
}

func (s *PostService) Trending(ctx context.Context) ([]presenter.PostListItem, error) {
	var out []presenter.PostListItem
	err := cache.Aside(ctx, cache.TrendingPostsKey, &out, cache.PostListTTL, func() error {
		posts, err := s.postRepo.Trending(ctx, s.now().Add(-TrendingWindow), TrendingLimit)
		if err != nil {
			return err
		}
		out = presenter.NewPostList(posts)
		return nil
	})
	return out, err
}

func (s *PostService) Featured(ctx context.Context) ([]presenter.PostListItem, error) {
	var out []presenter.PostListItem
	err := cache.Aside(ctx, cache.FeaturedPostsKey, &out, cache.PostListTTL, func() error {
		posts, err := s.postRepo.Featured(ctx, FeaturedLimit)
		if err != nil {
			return err
		}
		out = presenter.NewPostList(posts)
		return nil
	})
	return out, err
}

// Search matches published posts on title, content, excerpt and author
// username, narrowed by the optional category, tag and author.
func (s *PostService) Search(ctx context.Context, in SearchInput) (presenter.SearchResult[presenter.PostListItem], error) {
	f := repository.PostFilter{
		Search:        in.Query,
		SearchExcerpt: true,
		Category:      in.Category,
		Tag:           in.Tag,
		Author:        in.Author,
		Status:        models.PostStatusPublished,
		Ordering:      repository.DefaultOrdering,
	}
	posts, err := s.postRepo.List(ctx, f, -1, -1)
	if err != nil {
		return presenter.SearchResult[presenter.PostListItem]{}, err
	}
	items := presenter.NewPostList(posts)
	return presenter.SearchResult[presenter.PostListItem]{Count: len(items), Results: items}, nil
}

// ToggleLike likes the post, or unlikes it when the actor already does.
func (s *PostService) ToggleLike(ctx context.Context, actor policy.Actor, slug string) (_ presenter.LikeResult, err error) {
	ctx, finish := observability.StartSpan(ctx, "post", "toggle_like", attribute.String("post.slug", slug))
	defer func() { finish(err) }()

	if err := policy.Check(policy.PostLike, actor, policy.Resource{}); err != nil {
		return presenter.LikeResult{}, err
	}
	post, err := s.visible(ctx, actor, slug)
	if err != nil {
		return presenter.LikeResult{}, err
	}
	liked, count, err := s.postRepo.ToggleLike(ctx, post.ID, actor.UserID)
	if err != nil {
		return presenter.LikeResult{}, err
	}
	cache.InvalidatePostLists(ctx)

	if !liked {
		return presenter.LikeResult{Message: "Post unliked", Liked: false, LikesCount: count}, nil
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, NotifyInput{
			RecipientID: post.AuthorID,
			Sender:      actorUser(actor),
			Type:        models.NotificationLike,
			Title:       "New like",
			Message:     fmt.Sprintf("%s liked your post %q", actor.Username, post.Title),
			Link:        postLink(post.Slug),
		})
	}
	return presenter.LikeResult{Message: "Post liked", Liked: true, LikesCount: count}, nil
}

func (s *PostService) ListLikes(ctx context.Context, actor policy.Actor, slug string) ([]presenter.LikeView, error) {
	post, err := s.visible(ctx, actor, slug)
	if err != nil {
		return nil, err
	}
	likes, err := s.postRepo.ListLikes(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	return presenter.NewLikeViews(likes, post), nil
}

func (s *PostService) Stats(ctx context.Context, actor policy.Actor, slug string) (presenter.PostStats, error) {
	post, err := s.postRepo.GetBySlug(ctx, slug)
	if err != nil {
		return presenter.PostStats{}, err
	}
	if err := policy.Check(policy.PostStats, actor, policy.Owned(post.AuthorID)); err != nil {
		return presenter.PostStats{}, err
	}
	return presenter.NewPostStats(post), nil
}

// invalidate drops every cached listing that embeds post counters.
func (s *PostService) invalidate(ctx context.Context) {
	cache.InvalidatePostLists(ctx)
	cache.InvalidateTaxonomy(ctx)
}

// actorUser is the minimal user record of the actor, enough for a sender summary.
func actorUser(a policy.Actor) *models.User {
	return &models.User{ID: a.UserID, Username: a.Username, IsStaff: a.IsStaff, IsSuperuser: a.IsSuperuser}
}

func postLink(slug string) string {
	return "/posts/" + slug
}
