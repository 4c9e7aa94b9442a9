package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"blogapi/internal/models"
	"blogapi/internal/policy"
	"blogapi/internal/repository"
	"blogapi/internal/testutil"
	"blogapi/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub stubs the parts of repository.PostRepository a test needs;
// calling anything else panics on the nil embedded interface.
type postRepoStub struct {
	repository.PostRepository
	createFn     func(context.Context, *models.Post) error
	getByIDFn    func(context.Context, uint) (*models.Post, error)
	getBySlugFn  func(context.Context, string) (*models.Post, error)
	updateFn     func(context.Context, *models.Post, []string, bool) error
	uniqueSlugFn func(context.Context, string, uint) (string, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post, columns []string, replaceTags bool) error {
	return s.updateFn(ctx, post, columns, replaceTags)
}
func (s *postRepoStub) UniqueSlug(ctx context.Context, title string, excludeID uint) (string, error) {
	return s.uniqueSlugFn(ctx, title, excludeID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:  func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		getBySlugFn: func(_ context.Context, s string) (*models.Post, error) {
			return &models.Post{ID: 1, Slug: s, AuthorID: 1}, nil
		},
		updateFn:     func(_ context.Context, _ *models.Post, _ []string, _ bool) error { return nil },
		uniqueSlugFn: func(_ context.Context, title string, _ uint) (string, error) { return strings.ToLower(title), nil },
	}
}

func stubPostService(repo *postRepoStub) *PostService {
	return NewPostService(repo, nil, nil, nil, nil, validation.New(validation.PolicyRelaxed), 0)
}

var stubAuthor = policy.Actor{UserID: 1, Username: "author"}

func TestPostService_CreatePost_RetriesSlugConflicts(t *testing.T) {
	t.Parallel()

	conflict := models.NewConflictError("A post with that slug already exists", nil)

	t.Run("succeeds within the attempt budget", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		lookups, creates := 0, 0
		repo.uniqueSlugFn = func(_ context.Context, _ string, _ uint) (string, error) {
			lookups++
			return "hello", nil
		}
		repo.createFn = func(_ context.Context, p *models.Post) error {
			creates++
			if creates < maxSlugAttempts {
				return conflict
			}
			p.ID = 42
			return nil
		}
		post, err := stubPostService(repo).CreatePost(context.Background(), stubAuthor, CreatePostInput{Title: "Hello", Content: "c"})
		require.NoError(t, err)
		assert.Equal(t, uint(42), post.ID)
		assert.Equal(t, maxSlugAttempts, lookups)
	})

	t.Run("gives up with a conflict", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		creates := 0
		repo.createFn = func(_ context.Context, _ *models.Post) error {
			creates++
			return conflict
		}
		_, err := stubPostService(repo).CreatePost(context.Background(), stubAuthor, CreatePostInput{Title: "Hello", Content: "c"})
		requireCode(t, err, models.CodeConflict)
		assert.Equal(t, maxSlugAttempts, creates)
	})
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()
	svc := stubPostService(noopPostRepo())
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreatePostInput
		field string
	}{
		{"empty title", CreatePostInput{Content: "c"}, "title"},
		{"whitespace title", CreatePostInput{Title: "   ", Content: "c"}, "title"},
		{"title too long", CreatePostInput{Title: strings.Repeat("x", 201), Content: "c"}, "title"},
		{"empty content", CreatePostInput{Title: "T"}, "content"},
		{"unknown status", CreatePostInput{Title: "T", Content: "c", Status: "archived"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreatePost(ctx, stubAuthor, tt.input)
			requireField(t, err, tt.field)
		})
	}

	_, err := svc.CreatePost(ctx, policy.Anonymous, CreatePostInput{Title: "T", Content: "c"})
	requireCode(t, err, models.CodeUnauthenticated)
}

func TestPostService_UpdatePost_SlugOnlyOnTitleChange(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getBySlugFn = func(_ context.Context, s string) (*models.Post, error) {
		return &models.Post{ID: 5, Title: "Hello", Slug: s, AuthorID: 1, Status: models.PostStatusDraft}, nil
	}
	slugLookups := 0
	repo.uniqueSlugFn = func(_ context.Context, title string, excludeID uint) (string, error) {
		slugLookups++
		assert.Equal(t, uint(5), excludeID)
		return "goodbye", nil
	}
	var gotCols []string
	var gotSlug string
	repo.updateFn = func(_ context.Context, p *models.Post, cols []string, replaceTags bool) error {
		gotCols, gotSlug = cols, p.Slug
		assert.False(t, replaceTags)
		return nil
	}
	svc := stubPostService(repo)
	ctx := context.Background()

	_, err := svc.UpdatePost(ctx, stubAuthor, "hello", UpdatePostInput{Title: strPtr("Hello"), Content: strPtr("new body")})
	require.NoError(t, err)
	assert.Zero(t, slugLookups)
	assert.Equal(t, []string{"content"}, gotCols)
	assert.Equal(t, "hello", gotSlug)

	_, err = svc.UpdatePost(ctx, stubAuthor, "hello", UpdatePostInput{Title: strPtr("Goodbye")})
	require.NoError(t, err)
	assert.Equal(t, 1, slugLookups)
	assert.Equal(t, []string{"title", "slug"}, gotCols)
	assert.Equal(t, "goodbye", gotSlug)

	_, err = svc.UpdatePost(ctx, stubAuthor, "hello", UpdatePostInput{Status: strPtr(models.PostStatusPublished)})
	require.NoError(t, err)
	assert.Equal(t, []string{"status", "published_at"}, gotCols)

	_, err = svc.UpdatePost(ctx, stubAuthor, "hello", UpdatePostInput{Title: strPtr(" ")})
	requireField(t, err, "title")

	_, err = svc.UpdatePost(ctx, policy.Actor{UserID: 2}, "hello", UpdatePostInput{Title: strPtr("Mine now")})
	requireCode(t, err, models.CodeForbidden)
}

func TestPostService_CreateAndPublish(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "writer")
	cat := testutil.CreateCategory(t, env.db, "Tech", "tech")
	goTag := testutil.CreateTag(t, env.db, "Go", "go")

	draft, err := env.posts.CreatePost(ctx, actorOf(u), CreatePostInput{
		Title: "Hello World", Content: "body", CategoryID: &cat.ID, TagIDs: []uint{goTag.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", draft.Slug)
	assert.Equal(t, models.PostStatusDraft, draft.Status)
	assert.Nil(t, draft.PublishedAt)
	require.Len(t, draft.Tags, 1)
	require.NotNil(t, draft.Category)

	second, err := env.posts.CreatePost(ctx, actorOf(u), CreatePostInput{Title: "Hello World", Content: "again", Status: models.PostStatusPublished})
	require.NoError(t, err)
	assert.Equal(t, "hello-world-1", second.Slug)
	require.NotNil(t, second.PublishedAt)

	symbols, err := env.posts.CreatePost(ctx, actorOf(u), CreatePostInput{Title: "!!!", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, "post", symbols.Slug)

	updated, err := env.posts.UpdatePost(ctx, actorOf(u), draft.Slug, UpdatePostInput{Status: strPtr(models.PostStatusPublished)})
	require.NoError(t, err)
	require.NotNil(t, updated.PublishedAt)
	firstPublished := *updated.PublishedAt

	// Republishing keeps the original timestamp.
	_, err = env.posts.UpdatePost(ctx, actorOf(u), draft.Slug, UpdatePostInput{Status: strPtr(models.PostStatusDraft)})
	require.NoError(t, err)
	again, err := env.posts.UpdatePost(ctx, actorOf(u), draft.Slug, UpdatePostInput{Status: strPtr(models.PostStatusPublished)})
	require.NoError(t, err)
	assert.True(t, firstPublished.Equal(*again.PublishedAt))

	cleared, err := env.posts.UpdatePost(ctx, actorOf(u), draft.Slug, UpdatePostInput{CategoryID: new(uint), TagIDs: []uint{}})
	require.NoError(t, err)
	assert.Nil(t, cleared.CategoryID)
	assert.Empty(t, cleared.Tags)

	missing := uint(999)
	_, err = env.posts.CreatePost(ctx, actorOf(u), CreatePostInput{Title: "T", Content: "c", CategoryID: &missing})
	requireField(t, err, "category")
	_, err = env.posts.CreatePost(ctx, actorOf(u), CreatePostInput{Title: "T", Content: "c", TagIDs: []uint{missing}})
	requireField(t, err, "tag_ids")
}

func TestPostService_GetPost(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner")
	reader := testutil.CreateUser(t, env.db, "reader")
	staff := testutil.CreateStaff(t, env.db, "staff")

	pub := testutil.CreatePost(t, env.db, owner, "Public", testutil.Views(4))
	draft := testutil.CreatePost(t, env.db, owner, "Secret", testutil.Draft())
	root := testutil.CreateComment(t, env.db, pub, reader, "first", nil)
	testutil.CreateComment(t, env.db, pub, owner, "reply", root)
	require.NoError(t, env.db.Create(&models.Comment{PostID: pub.ID, AuthorID: reader.ID, Content: "hidden"}).Error)

	d, err := env.posts.GetPost(ctx, policy.Anonymous, pub.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(5), d.ViewsCount)
	assert.False(t, d.UserHasLiked)
	assert.Equal(t, int64(2), d.CommentsCount)
	require.Len(t, d.Comments, 1)
	assert.Equal(t, 1, d.Comments[0].RepliesCount)

	d, err = env.posts.GetPost(ctx, actorOf(reader), pub.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(6), d.ViewsCount)

	_, err = env.posts.GetPost(ctx, actorOf(reader), draft.Slug)
	requireCode(t, err, models.CodeNotFound)
	_, err = env.posts.GetPost(ctx, policy.Anonymous, draft.Slug)
	requireCode(t, err, models.CodeNotFound)

	for _, viewer := range []*models.User{owner, staff} {
		d, err = env.posts.GetPost(ctx, actorOf(viewer), draft.Slug)
		require.NoError(t, err)
		assert.Zero(t, d.ViewsCount, "drafts do not count views")
	}

	_, err = env.posts.GetPost(ctx, policy.Anonymous, "no-such-post")
	requireCode(t, err, models.CodeNotFound)
}

func TestPostService_ToggleLike(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner")
	fan := testutil.CreateUser(t, env.db, "fan")
	post := testutil.CreatePost(t, env.db, owner, "Likeable")

	res, err := env.posts.ToggleLike(ctx, actorOf(fan), post.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Post liked", res.Message)
	assert.True(t, res.Liked)
	assert.Equal(t, int64(1), res.LikesCount)
	assert.Equal(t, 1, env.pusher.count(owner.ID))

	d, err := env.posts.GetPost(ctx, actorOf(fan), post.Slug)
	require.NoError(t, err)
	assert.True(t, d.UserHasLiked)

	likes, err := env.posts.ListLikes(ctx, policy.Anonymous, post.Slug)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, "fan", likes[0].User.Username)
	assert.Equal(t, "Likeable", likes[0].PostTitle)

	res, err = env.posts.ToggleLike(ctx, actorOf(fan), post.Slug)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Zero(t, res.LikesCount)

	// Liking your own post does not notify you.
	_, err = env.posts.ToggleLike(ctx, actorOf(owner), post.Slug)
	require.NoError(t, err)
	assert.Equal(t, 1, env.pusher.count(owner.ID))

	_, err = env.posts.ToggleLike(ctx, policy.Anonymous, post.Slug)
	requireCode(t, err, models.CodeUnauthenticated)
}

func TestPostService_Stats(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner")
	other := testutil.CreateUser(t, env.db, "other")
	post := testutil.CreatePost(t, env.db, owner, "Measured", testutil.Views(9))

	stats, err := env.posts.Stats(ctx, actorOf(owner), post.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.ViewsCount)

	_, err = env.posts.Stats(ctx, actorOf(other), post.Slug)
	requireCode(t, err, models.CodeForbidden)
}

func TestPostService_Listings(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "prolific")
	other := testutil.CreateUser(t, env.db, "other")
	now := time.Now().UTC()

	for i := 0; i < 12; i++ {
		testutil.CreatePost(t, env.db, u, "Post", testutil.PublishedAt(now.Add(-time.Duration(i)*time.Hour)))
	}
	testutil.CreatePost(t, env.db, u, "Unfinished", testutil.Draft())
	testutil.CreatePost(t, env.db, other, "Old but popular", testutil.Views(1000), testutil.PublishedAt(now.AddDate(0, 0, -30)))
	testutil.CreatePost(t, env.db, other, "Spotlight", testutil.Featured(), testutil.Views(50))

	page, err := env.posts.ListPosts(ctx, ListPostsInput{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(14), page.Count)
	assert.Equal(t, PostPageSize, page.PageSize)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Results, 5)

	page, err = env.posts.ListPosts(ctx, ListPostsInput{Page: 40})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page, "out-of-range pages clamp to the last one")

	page, err = env.posts.ListPosts(ctx, ListPostsInput{Author: "other", Ordering: "-views_count"})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "Old but popular", page.Results[0].Title)

	mine, err := env.posts.MyPosts(ctx, actorOf(u), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(13), mine.Count, "my posts include drafts")
	assert.Equal(t, DefaultPageSize, mine.PageSize)
	assert.Equal(t, "Unfinished", mine.Results[0].Title)

	_, err = env.posts.MyPosts(ctx, policy.Anonymous, 1)
	requireCode(t, err, models.CodeUnauthenticated)

	trending, err := env.posts.Trending(ctx)
	require.NoError(t, err)
	assert.Len(t, trending, TrendingLimit)
	assert.Equal(t, "Spotlight", trending[0].Title)
	for _, p := range trending {
		assert.NotEqual(t, "Old but popular", p.Title)
	}

	featured, err := env.posts.Featured(ctx)
	require.NoError(t, err)
	require.Len(t, featured, 1)
	assert.Equal(t, "Spotlight", featured[0].Title)

	found, err := env.posts.Search(ctx, SearchInput{Query: "POPULAR"})
	require.NoError(t, err)
	assert.Equal(t, 1, found.Count)

	found, err = env.posts.Search(ctx, SearchInput{Author: "prolific"})
	require.NoError(t, err)
	assert.Equal(t, 12, found.Count)
}

func TestPostService_DeletePost(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "owner")
	other := testutil.CreateUser(t, env.db, "other")
	staff := testutil.CreateStaff(t, env.db, "mod")
	a := testutil.CreatePost(t, env.db, owner, "A")
	b := testutil.CreatePost(t, env.db, owner, "B")

	requireCode(t, env.posts.DeletePost(ctx, actorOf(other), a.Slug), models.CodeForbidden)
	requireCode(t, env.posts.DeletePost(ctx, policy.Anonymous, a.Slug), models.CodeUnauthenticated)
	require.NoError(t, env.posts.DeletePost(ctx, actorOf(owner), a.Slug))
	require.NoError(t, env.posts.DeletePost(ctx, actorOf(staff), b.Slug))
	requireCode(t, env.posts.DeletePost(ctx, actorOf(owner), a.Slug), models.CodeNotFound)
}
