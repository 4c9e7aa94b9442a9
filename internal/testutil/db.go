// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"blogapi/internal/database"
	"blogapi/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewTestDB returns an isolated in-memory SQLite database with the full schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A named shared-cache DB survives across pool connections but not across tests.
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts an active user and its profile. The password is "password123".
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
		IsActive: true,
	}
	require.NoError(t, db.Create(u).Error)
	profile := models.NewUserProfile(u.ID)
	require.NoError(t, db.Create(profile).Error)
	u.Profile = profile
	return u
}

// CreateStaff inserts a staff user.
func CreateStaff(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := CreateUser(t, db, username)
	require.NoError(t, db.Model(u).Update("is_staff", true).Error)
	u.IsStaff = true
	return u
}

// PostOption customizes CreatePost.
type PostOption func(*models.Post)

func Draft() PostOption {
	return func(p *models.Post) { p.Status = models.PostStatusDraft; p.PublishedAt = nil }
}

func Featured() PostOption { return func(p *models.Post) { p.IsFeatured = true } }

func PublishedAt(at time.Time) PostOption { return func(p *models.Post) { p.PublishedAt = &at } }

func Views(n int64) PostOption { return func(p *models.Post) { p.ViewsCount = n } }

func InCategory(c *models.Category) PostOption { return func(p *models.Post) { p.CategoryID = &c.ID } }

func WithTags(tags ...models.Tag) PostOption { return func(p *models.Post) { p.Tags = tags } }

func WithContent(content string) PostOption { return func(p *models.Post) { p.Content = content } }

// CreatePost inserts a published post with slug derived from title.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User, title string, opts ...PostOption) *models.Post {
	t.Helper()
	now := time.Now().UTC()
	p := &models.Post{
		Title:       title,
		Slug:        fmt.Sprintf("%s-%d", sanitize(title), dbSeq.Add(1)),
		AuthorID:    author.ID,
		Content:     "content of " + title,
		Status:      models.PostStatusPublished,
		PublishedAt: &now,
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateComment inserts an approved comment, optionally as a reply.
func CreateComment(t *testing.T, db *gorm.DB, post *models.Post, author *models.User, content string, parent *models.Comment) *models.Comment {
	t.Helper()
	c := &models.Comment{PostID: post.ID, AuthorID: author.ID, Content: content, IsApproved: true}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// CreateCategory inserts a category with the given slug.
func CreateCategory(t *testing.T, db *gorm.DB, name, slug string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Slug: slug}
	require.NoError(t, db.Create(c).Error)
	return c
}

// CreateTag inserts a tag with the given slug.
func CreateTag(t *testing.T, db *gorm.DB, name, slug string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: name, Slug: slug}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+'a'-'A')
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
