package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"blogapi/internal/models"
	"blogapi/internal/slug"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "password123"

// Factory builds domain entities with fake content and persists them.
// It is a thin helper used by the Seeder and by tests.
type Factory struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	rng   *rand.Rand

	passwordHash string
	userSeq      int
}

// NewFactory creates a Factory bound to db. With a zero opts.RandSeed the
// generated content differs on every run.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:    db,
		opts:  opts,
		faker: gofakeit.New(seed),
		//nolint:gosec // Weak random number generator is fine for seeding
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (f *Factory) hashedPassword() (string, error) {
	if f.passwordHash != "" {
		return f.passwordHash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.FastHash {
		cost = bcrypt.MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	f.passwordHash = string(hash)
	return f.passwordHash, nil
}

// createdWithin returns a timestamp spread over the last opts.MaxDays days.
func (f *Factory) createdWithin() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// CreateUser persists a user with its profile in one transaction.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.hashedPassword()
	if err != nil {
		return nil, err
	}

	f.userSeq++
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s%s%d", first, last, f.userSeq))
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  hash,
		FirstName: first,
		LastName:  last,
		Bio:       f.faker.Sentence(12),
		Avatar:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		Location:  f.faker.City(),
		IsActive:  true,
	}
	if f.rng.Float32() < 0.3 {
		user.Website = "https://" + f.faker.DomainName()
	}

	for _, override := range overrides {
		override(user)
	}

	err = f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		profile := models.NewUserProfile(user.ID)
		profile.PhoneNumber = f.faker.Phone()
		profile.IsPublic = f.rng.Float32() < 0.9
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved post by author. category may be nil. Most
// posts come out published; PublishedAt never precedes CreatedAt.
func (f *Factory) BuildPost(author *models.User, category *models.Category, tags []models.Tag) *models.Post {
	title := strings.TrimSuffix(f.faker.Sentence(f.rng.Intn(6)+3), ".")

	paragraphs := make([]string, f.rng.Intn(5)+2)
	for i := range paragraphs {
		paragraphs[i] = f.faker.Paragraph(1, f.rng.Intn(5)+3, 14, " ")
	}

	post := &models.Post{
		Title:      title,
		AuthorID:   author.ID,
		Content:    strings.Join(paragraphs, "\n\n"),
		Status:     models.PostStatusPublished,
		ViewsCount: int64(f.rng.Intn(5000)),
		IsFeatured: f.rng.Float32() < 0.1,
		Tags:       tags,
	}
	if f.rng.Float32() < 0.5 {
		post.Excerpt = f.faker.Sentence(20)
	}
	if f.rng.Float32() < 0.4 {
		post.FeaturedImage = fmt.Sprintf("https://picsum.photos/seed/%s/1200/630", f.faker.UUID())
	}
	if category != nil {
		post.CategoryID = &category.ID
	}

	post.CreatedAt = f.createdWithin()
	post.UpdatedAt = post.CreatedAt
	if f.rng.Float32() < 0.15 {
		post.Status = models.PostStatusDraft
		post.ViewsCount = 0
		post.IsFeatured = false
	} else {
		published := post.CreatedAt.Add(time.Duration(f.rng.Intn(120)) * time.Minute)
		if now := time.Now(); published.After(now) {
			published = now
		}
		post.StampPublication(published)
	}
	return post
}

// CreatePost assigns a unique slug to post and persists it with its tags.
func (f *Factory) CreatePost(ctx context.Context, post *models.Post) error {
	s, err := slug.Unique(ctx, f.db, slug.Posts, post.Title, 0)
	if err != nil {
		return err
	}
	post.Slug = s
	return f.db.WithContext(ctx).Create(post).Error
}

// CreateComment persists an approved comment by author on post. A non-nil
// parent makes it a reply; parent must belong to post.
func (f *Factory) CreateComment(ctx context.Context, author *models.User, post *models.Post, parent *models.Comment) (*models.Comment, error) {
	if parent != nil && parent.PostID != post.ID {
		return nil, fmt.Errorf("parent comment %d belongs to post %d, not %d", parent.ID, parent.PostID, post.ID)
	}

	created := f.createdWithin()
	if post.PublishedAt != nil && created.Before(*post.PublishedAt) {
		created = post.PublishedAt.Add(time.Duration(f.rng.Intn(72)+1) * time.Hour)
	}
	comment := &models.Comment{
		PostID:     post.ID,
		AuthorID:   author.ID,
		Content:    f.faker.Sentence(f.rng.Intn(20) + 4),
		IsApproved: true,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
		if comment.CreatedAt.Before(parent.CreatedAt) {
			comment.CreatedAt = parent.CreatedAt.Add(time.Duration(f.rng.Intn(48)+1) * time.Hour)
		}
	}
	if now := time.Now(); comment.CreatedAt.After(now) {
		comment.CreatedAt = now
	}
	comment.UpdatedAt = comment.CreatedAt

	if err := f.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on post.
func (f *Factory) CreateLike(ctx context.Context, user *models.User, post *models.Post) error {
	like := &models.Like{
		UserID: user.ID,
		PostID: post.ID,
	}
	return f.db.WithContext(ctx).Create(like).Error
}
