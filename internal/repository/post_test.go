package repository

import (
	"context"
	"testing"
	"time"

	"blogapi/internal/models"
	"blogapi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestPostRepository_ListFilters(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	tech := testutil.CreateCategory(t, db, "Tech", "tech")
	goTag := testutil.CreateTag(t, db, "Go", "go")
	webTag := testutil.CreateTag(t, db, "Web", "web")

	base := time.Now().UTC().Add(-time.Hour)
	testutil.CreatePost(t, db, alice, "Go generics", testutil.InCategory(tech),
		testutil.WithTags(*goTag, *webTag), testutil.PublishedAt(base.Add(3*time.Minute)))
	testutil.CreatePost(t, db, bob, "Cooking pasta", testutil.PublishedAt(base.Add(2*time.Minute)))
	testutil.CreatePost(t, db, bob, "100% coverage", testutil.Featured(), testutil.PublishedAt(base.Add(time.Minute)))
	testutil.CreatePost(t, db, alice, "Draft about Go", testutil.Draft())

	featured := true
	tests := []struct {
		name string
		f    PostFilter
		want []string
	}{
		{"published default ordering", PostFilter{Status: models.PostStatusPublished},
			[]string{"Go generics", "Cooking pasta", "100% coverage"}},
		{"search title case-insensitive", PostFilter{Status: models.PostStatusPublished, Search: "GO"},
			[]string{"Go generics"}},
		{"search matches author username", PostFilter{Status: models.PostStatusPublished, Search: "bob"},
			[]string{"Cooking pasta", "100% coverage"}},
		{"search terms AND across columns", PostFilter{Status: models.PostStatusPublished, Search: "generics  alice", SearchTerms: true},
			[]string{"Go generics"}},
		{"search terms all required", PostFilter{Status: models.PostStatusPublished, Search: "generics pasta", SearchTerms: true},
			[]string{}},
		{"search without terms is one substring", PostFilter{Status: models.PostStatusPublished, Search: "generics alice"},
			[]string{}},
		{"search escapes wildcards", PostFilter{Status: models.PostStatusPublished, Search: "100%"},
			[]string{"100% coverage"}},
		{"category by slug", PostFilter{Status: models.PostStatusPublished, Category: "tech"},
			[]string{"Go generics"}},
		{"tag with two tags does not duplicate", PostFilter{Status: models.PostStatusPublished, Tag: "web"},
			[]string{"Go generics"}},
		{"author exact", PostFilter{Status: models.PostStatusPublished, Author: "alice"},
			[]string{"Go generics"}},
		{"featured", PostFilter{Status: models.PostStatusPublished, Featured: &featured},
			[]string{"100% coverage"}},
		{"combined dimensions AND", PostFilter{Status: models.PostStatusPublished, Author: "bob", Category: "tech"},
			[]string{}},
		{"all statuses of one author", PostFilter{AuthorID: alice.ID, Ordering: "title"},
			[]string{"Draft about Go", "Go generics"}},
		{"unknown ordering falls back", PostFilter{Status: models.PostStatusPublished, Ordering: "password"},
			[]string{"Go generics", "Cooking pasta", "100% coverage"}},
		{"ascending title", PostFilter{Status: models.PostStatusPublished, Ordering: "title"},
			[]string{"100% coverage", "Cooking pasta", "Go generics"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := repo.List(ctx, tt.f, 50, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(posts))

			n, err := repo.Count(ctx, tt.f)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), n)
		})
	}

	t.Run("tag by id", func(t *testing.T) {
		posts, err := repo.List(ctx, PostFilter{Tag: "1"}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"Go generics"}, titles(posts))
	})
}

func TestPostRepository_CountersOnlyApprovedComments(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice, "Counters")

	testutil.CreateComment(t, db, post, bob, "visible", nil)
	hidden := testutil.CreateComment(t, db, post, bob, "hidden", nil)
	require.NoError(t, db.Model(hidden).Update("is_approved", false).Error)
	_, _, err := repo.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	got, err := repo.GetBySlug(ctx, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CommentsCount)
	assert.Equal(t, int64(1), got.LikesCount)
	assert.Equal(t, "alice", got.Author.Username)
}

func TestPostRepository_TrendingAndFeatured(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	now := time.Now().UTC()
	testutil.CreatePost(t, db, alice, "old but popular", testutil.Views(1000), testutil.PublishedAt(now.AddDate(0, 0, -8)))
	testutil.CreatePost(t, db, alice, "fresh", testutil.Views(5), testutil.PublishedAt(now.Add(-time.Hour)))
	testutil.CreatePost(t, db, alice, "fresh and hot", testutil.Views(50), testutil.PublishedAt(now.Add(-2*time.Hour)))
	testutil.CreatePost(t, db, alice, "draft", testutil.Draft(), testutil.Views(500))
	for i := 0; i < 12; i++ {
		testutil.CreatePost(t, db, alice, "featured", testutil.Featured(), testutil.PublishedAt(now.AddDate(0, 0, -10).Add(time.Duration(i)*time.Minute)))
	}

	trending, err := repo.Trending(ctx, now.AddDate(0, 0, -7), 10)
	require.NoError(t, err)
	require.Len(t, trending, 2)
	assert.Equal(t, []string{"fresh and hot", "fresh"}, titles(trending))

	featured, err := repo.Featured(ctx, 5)
	require.NoError(t, err)
	require.Len(t, featured, 5)
	for i := 1; i < len(featured); i++ {
		assert.True(t, featured[i-1].PublishedAt.After(*featured[i].PublishedAt))
	}
}

func TestPostRepository_IncrementViews(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	post := testutil.CreatePost(t, db, testutil.CreateUser(t, db, "alice"), "Viewed", testutil.Views(41))

	views, err := repo.IncrementViews(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), views)

	views, err = repo.IncrementViews(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(43), views)

	_, err = repo.IncrementViews(ctx, post.ID+100)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_ToggleLike(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, alice, "Likeable")

	liked, count, err := repo.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(1), count)

	liked, count, err = repo.ToggleLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(2), count)

	isLiked, err := repo.IsLiked(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, isLiked)

	likes, err := repo.ListLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, likes, 2)

	liked, count, err = repo.ToggleLike(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, int64(1), count)

	isLiked, err = repo.IsLiked(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.False(t, isLiked)
}

func TestPostRepository_UpdateReplacesTags(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	a := testutil.CreateTag(t, db, "A", "a")
	b := testutil.CreateTag(t, db, "B", "b")
	post := testutil.CreatePost(t, db, testutil.CreateUser(t, db, "alice"), "Tagged", testutil.WithTags(*a))

	post.Title = "Retitled"
	post.Tags = []models.Tag{*b}
	require.NoError(t, repo.Update(ctx, post, []string{"title"}, true))

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Retitled", got.Title)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "b", got.Tags[0].Slug)

	// Columns not named stay untouched.
	post.Content = "ignored"
	require.NoError(t, repo.Update(ctx, post, []string{"title"}, false))
	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", got.Content)
	assert.Len(t, got.Tags, 1)
}

func TestPostRepository_DuplicateSlugIsConflict(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	existing := testutil.CreatePost(t, db, alice, "Taken")

	err := repo.Create(ctx, &models.Post{Title: "x", Slug: existing.Slug, AuthorID: alice.ID, Content: "c", Status: models.PostStatusDraft})
	assert.True(t, models.HasCode(err, models.CodeConflict))
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	tag := testutil.CreateTag(t, db, "T", "t")
	post := testutil.CreatePost(t, db, alice, "Doomed", testutil.WithTags(*tag))
	root := testutil.CreateComment(t, db, post, alice, "root", nil)
	testutil.CreateComment(t, db, post, alice, "reply", root)
	_, _, err := repo.ToggleLike(ctx, post.ID, alice.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, post.ID))

	var comments, likes, links int64
	db.Model(&models.Comment{}).Count(&comments)
	db.Model(&models.Like{}).Count(&likes)
	db.Table("post_tags").Count(&links)
	assert.Zero(t, comments)
	assert.Zero(t, likes)
	assert.Zero(t, links)

	err = repo.Delete(ctx, post.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_UniqueSlug(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	s, err := repo.UniqueSlug(ctx, "Hello World", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", s)

	post := &models.Post{Title: "Hello World", Slug: s, AuthorID: alice.ID, Content: "c", Status: models.PostStatusDraft}
	require.NoError(t, repo.Create(ctx, post))

	s, err = repo.UniqueSlug(ctx, "Hello, World!", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello-world-1", s)

	s, err = repo.UniqueSlug(ctx, "Hello World", post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", s)
}
