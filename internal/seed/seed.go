// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"blogapi/internal/middleware"
	"blogapi/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	NumPosts        int
	CommentsPerPost int
	LikesPerPost    int
	ShouldClean     bool

	// FastHash hashes the shared password at bcrypt.MinCost.
	FastHash bool
	// MaxDays bounds how far back generated timestamps go.
	MaxDays int
	// RandSeed makes generated content reproducible when non-zero.
	RandSeed int64
}

// DefaultOptions is what cmd/seed uses when no flags are given.
func DefaultOptions() Options {
	return Options{
		NumUsers:        20,
		NumPosts:        60,
		CommentsPerPost: 5,
		LikesPerPost:    8,
		MaxDays:         90,
	}
}

// Report counts what a Run created or found.
type Report struct {
	Categories int
	Tags       int
	Users      int
	Posts      int
	Comments   int
	Likes      int
}

// Seeder populates a database with sample blog content.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Factory exposes the seeder's entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// clearOrder lists tables children first so foreign keys never block a delete.
var clearOrder = []string{
	"notifications", "likes", "comments", "post_tags", "posts",
	"tags", "categories", "user_profiles", "users",
}

// ClearAll deletes every row of the blog tables.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.Info("clearing existing data")
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec("TRUNCATE TABLE notifications, likes, comments, post_tags, posts, tags, categories, user_profiles, users RESTART IDENTITY CASCADE").Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, table := range clearOrder {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedTaxonomy get-or-creates the embedded sample categories and tags.
func (s *Seeder) SeedTaxonomy(ctx context.Context) ([]models.Category, []models.Tag, error) {
	tax, err := LoadTaxonomy()
	if err != nil {
		return nil, nil, err
	}

	categories := make([]models.Category, 0, len(tax.Categories))
	for _, fx := range tax.Categories {
		c, err := ensureCategory(ctx, s.db, fx)
		if err != nil {
			return nil, nil, fmt.Errorf("category %q: %w", fx.Name, err)
		}
		categories = append(categories, c)
	}

	tags := make([]models.Tag, 0, len(tax.Tags))
	for _, name := range tax.Tags {
		t, err := ensureTag(ctx, s.db, name)
		if err != nil {
			return nil, nil, fmt.Errorf("tag %q: %w", name, err)
		}
		tags = append(tags, t)
	}
	return categories, tags, nil
}

// SeedUsers creates count users, each with a profile.
func (s *Seeder) SeedUsers(ctx context.Context, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	for i := 0; i < count; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// SeedPosts creates count posts spread over authors. Each post gets a
// random category (or none) and up to three tags.
func (s *Seeder) SeedPosts(ctx context.Context, authors []*models.User, categories []models.Category, tags []models.Tag, count int) ([]*models.Post, error) {
	if len(authors) == 0 {
		return nil, nil
	}
	rng := s.factory.rng
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := authors[rng.Intn(len(authors))]

		var category *models.Category
		if len(categories) > 0 && rng.Float32() < 0.85 {
			category = &categories[rng.Intn(len(categories))]
		}
		var picked []models.Tag
		if len(tags) > 0 {
			for _, idx := range rng.Perm(len(tags))[:rng.Intn(min(3, len(tags))+1)] {
				picked = append(picked, tags[idx])
			}
		}

		post := s.factory.BuildPost(author, category, picked)
		if err := s.factory.CreatePost(ctx, post); err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// SeedEngagement adds comment threads and likes to the published posts.
// Replies go up to two levels deep and always stay on their parent's post.
func (s *Seeder) SeedEngagement(ctx context.Context, users []*models.User, posts []*models.Post) (comments, likes int, err error) {
	if len(users) == 0 {
		return 0, 0, nil
	}
	rng := s.factory.rng
	for _, post := range posts {
		if !post.IsPublished() {
			continue
		}

		for i := rng.Intn(s.opts.CommentsPerPost + 1); i > 0; i-- {
			top, err := s.factory.CreateComment(ctx, users[rng.Intn(len(users))], post, nil)
			if err != nil {
				return comments, likes, fmt.Errorf("create comment: %w", err)
			}
			comments++

			for j := rng.Intn(3); j > 0; j-- {
				reply, err := s.factory.CreateComment(ctx, users[rng.Intn(len(users))], post, top)
				if err != nil {
					return comments, likes, fmt.Errorf("create reply: %w", err)
				}
				comments++
				if rng.Float32() < 0.3 {
					if _, err := s.factory.CreateComment(ctx, users[rng.Intn(len(users))], post, reply); err != nil {
						return comments, likes, fmt.Errorf("create reply: %w", err)
					}
					comments++
				}
			}
		}

		n := rng.Intn(min(s.opts.LikesPerPost, len(users)) + 1)
		for _, idx := range rng.Perm(len(users))[:n] {
			if err := s.factory.CreateLike(ctx, users[idx], post); err != nil {
				return comments, likes, fmt.Errorf("create like: %w", err)
			}
			likes++
		}
	}
	return comments, likes, nil
}

// Run seeds taxonomy, users, posts and engagement according to the options.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	middleware.Logger.Info("starting database seeding",
		slog.Int("users", s.opts.NumUsers),
		slog.Int("posts", s.opts.NumPosts),
	)

	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	categories, tags, err := s.SeedTaxonomy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed taxonomy: %w", err)
	}
	report := &Report{Categories: len(categories), Tags: len(tags)}
	middleware.Logger.Info("taxonomy ready", slog.Int("categories", report.Categories), slog.Int("tags", report.Tags))

	users, err := s.SeedUsers(ctx, s.opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	report.Users = len(users)
	middleware.Logger.Info("users created", slog.Int("count", report.Users))

	posts, err := s.SeedPosts(ctx, users, categories, tags, s.opts.NumPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	report.Posts = len(posts)
	middleware.Logger.Info("posts created", slog.Int("count", report.Posts))

	report.Comments, report.Likes, err = s.SeedEngagement(ctx, users, posts)
	if err != nil {
		return nil, fmt.Errorf("failed to create engagement: %w", err)
	}
	middleware.Logger.Info("database seeding completed",
		slog.Int("comments", report.Comments),
		slog.Int("likes", report.Likes),
	)
	return report, nil
}
