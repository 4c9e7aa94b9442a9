package seed

import (
	"context"
	"testing"

	"blogapi/internal/models"
	"blogapi/internal/slug"
	"blogapi/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testOptions() Options {
	return Options{
		NumUsers:        5,
		NumPosts:        12,
		CommentsPerPost: 4,
		LikesPerPost:    4,
		FastHash:        true,
		MaxDays:         30,
		RandSeed:        42,
	}
}

func TestParseTaxonomy(t *testing.T) {
	tax, err := parseTaxonomy([]byte("categories:\n  - name: Go\n    description: Gophers\ntags: [web, cli]\n"))
	require.NoError(t, err)

	want := &Taxonomy{
		Categories: []CategoryFixture{{Name: "Go", Description: "Gophers"}},
		Tags:       []string{"web", "cli"},
	}
	if diff := cmp.Diff(want, tax); diff != "" {
		t.Fatalf("taxonomy mismatch (-want +got):\n%s", diff)
	}

	_, err = parseTaxonomy([]byte("categories:\n  - description: nameless\n"))
	assert.Error(t, err)
	_, err = parseTaxonomy([]byte("tags: ['  ']\n"))
	assert.Error(t, err)
	_, err = parseTaxonomy([]byte("tags: {"))
	assert.Error(t, err)
}

func TestSeedTaxonomy_Idempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	s := NewSeeder(db, testOptions())

	tax, err := LoadTaxonomy()
	require.NoError(t, err)
	require.NotEmpty(t, tax.Categories)
	require.NotEmpty(t, tax.Tags)

	cats, tags, err := s.SeedTaxonomy(ctx)
	require.NoError(t, err)

	wantSlugs := make([]string, 0, len(tax.Categories))
	for _, c := range tax.Categories {
		wantSlugs = append(wantSlugs, slug.Slugify(c.Name))
	}
	gotSlugs := make([]string, 0, len(cats))
	for _, c := range cats {
		gotSlugs = append(gotSlugs, c.Slug)
	}
	if diff := cmp.Diff(wantSlugs, gotSlugs); diff != "" {
		t.Fatalf("category slugs mismatch (-want +got):\n%s", diff)
	}

	again, againTags, err := s.SeedTaxonomy(ctx)
	require.NoError(t, err)
	assert.Equal(t, cats[0].ID, again[0].ID)
	assert.Equal(t, tags[len(tags)-1].ID, againTags[len(againTags)-1].ID)

	var n int64
	require.NoError(t, db.Model(&models.Category{}).Count(&n).Error)
	assert.Equal(t, int64(len(tax.Categories)), n)
	require.NoError(t, db.Model(&models.Tag{}).Count(&n).Error)
	assert.Equal(t, int64(len(tax.Tags)), n)
}

func TestSeedTaxonomy_KeepsExistingRows(t *testing.T) {
	db := testutil.NewTestDB(t)
	existing := testutil.CreateCategory(t, db, "Technology", "tech")

	cats, _, err := NewSeeder(db, testOptions()).SeedTaxonomy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, existing.ID, cats[0].ID)
	assert.Equal(t, "tech", cats[0].Slug)
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	opts := testOptions()

	report, err := NewSeeder(db, opts).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, opts.NumUsers, report.Users)
	assert.Equal(t, opts.NumPosts, report.Posts)

	var users []models.User
	require.NoError(t, db.Preload("Profile").Find(&users).Error)
	require.Len(t, users, opts.NumUsers)
	for _, u := range users {
		require.NotNil(t, u.Profile, "user %s has a profile", u.Username)
		assert.True(t, u.IsActive)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(DefaultPassword)))
	}

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	slugs := map[string]bool{}
	for _, p := range posts {
		assert.False(t, slugs[p.Slug], "duplicate slug %s", p.Slug)
		slugs[p.Slug] = true
		if p.IsPublished() {
			require.NotNil(t, p.PublishedAt)
			assert.False(t, p.PublishedAt.Before(p.CreatedAt))
		} else {
			assert.Nil(t, p.PublishedAt)
		}
	}

	var comments []models.Comment
	require.NoError(t, db.Find(&comments).Error)
	assert.Len(t, comments, report.Comments)
	byID := make(map[uint]models.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}
	for _, c := range comments {
		assert.True(t, c.IsApproved)
		if c.ParentID != nil {
			assert.Equal(t, byID[*c.ParentID].PostID, c.PostID, "replies stay on their parent's post")
		}
	}

	var likes int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Equal(t, int64(report.Likes), likes)
}

func TestSeeder_ClearAll(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	s := NewSeeder(db, testOptions())

	_, err := s.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, s.ClearAll(ctx))

	for _, model := range []any{&models.User{}, &models.Post{}, &models.Comment{}, &models.Like{}, &models.Category{}, &models.Tag{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T rows left", model)
	}
}
