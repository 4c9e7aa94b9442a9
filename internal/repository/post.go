package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"blogapi/internal/models"
	"blogapi/internal/observability"
	"blogapi/internal/slug"

	"gorm.io/gorm"
)

// DefaultOrdering is applied when a listing asks for nothing or for an unknown field.
const DefaultOrdering = "-published_at"

var orderableColumns = map[string]bool{
	"created_at":   true,
	"published_at": true,
	"views_count":  true,
	"title":        true,
}

// PostFilter narrows a post listing. Zero values mean "no constraint".
type PostFilter struct {
	Search string
	// SearchTerms splits Search on whitespace; every term must match one
	// of the searched columns. Otherwise Search matches as one substring.
	SearchTerms bool
	// SearchExcerpt extends Search to the excerpt column.
	SearchExcerpt bool
	// Category and Tag accept a numeric id or a slug.
	Category string
	Tag      string
	// Author matches the author's exact username.
	Author   string
	AuthorID uint
	Featured *bool
	// Status restricts to one status; empty means every status.
	Status   string
	Ordering string
}

// PostRepository defines persistence operations for posts, views and likes.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Count(ctx context.Context, f PostFilter) (int64, error)
	List(ctx context.Context, f PostFilter, limit, offset int) ([]*models.Post, error)
	Trending(ctx context.Context, since time.Time, limit int) ([]*models.Post, error)
	Featured(ctx context.Context, limit int) ([]*models.Post, error)
	// Update writes the named columns; replaceTags swaps the tag set for post.Tags.
	Update(ctx context.Context, post *models.Post, columns []string, replaceTags bool) error
	Delete(ctx context.Context, id uint) error
	UniqueSlug(ctx context.Context, title string, excludeID uint) (string, error)

	IncrementViews(ctx context.Context, id uint) (int64, error)
	ToggleLike(ctx context.Context, postID, userID uint) (liked bool, count int64, err error)
	IsLiked(ctx context.Context, postID, userID uint) (bool, error)
	ListLikes(ctx context.Context, postID uint) ([]models.Like, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// applyPostDetails adds subqueries for the computed counters in a single query.
// Only approved comments are counted.
func applyPostDetails(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, "+
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_approved = ?) AS comments_count, "+
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count", true)
}

func (r *postRepository) detailed(ctx context.Context) *gorm.DB {
	return applyPostDetails(r.db.WithContext(ctx).Model(&models.Post{})).
		Preload("Author").
		Preload("Category").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") })
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	// Tags already exist; only the join rows are written.
	err := r.db.WithContext(ctx).Omit("Author", "Category", "Tags.*").Create(post).Error
	return wrapWrite(err, "A post with that slug already exists")
}

func (r *postRepository) GetBySlug(ctx context.Context, s string) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()
	var post models.Post
	if err := r.detailed(ctx).Where("posts.slug = ?", s).First(&post).Error; err != nil {
		return nil, wrapLookup(err, "Post", s)
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.detailed(ctx).Where("posts.id = ?", id).First(&post).Error; err != nil {
		return nil, wrapLookup(err, "Post", id)
	}
	return &post, nil
}

// applyFilter adds the WHERE clauses of f. Tag, category and author use
// subqueries so that a post never appears twice in one result.
func applyFilter(db *gorm.DB, f PostFilter) *gorm.DB {
	if f.Status != "" {
		db = db.Where("posts.status = ?", f.Status)
	}
	if f.AuthorID != 0 {
		db = db.Where("posts.author_id = ?", f.AuthorID)
	}
	if f.Featured != nil {
		db = db.Where("posts.is_featured = ?", *f.Featured)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		terms := []string{q}
		if f.SearchTerms {
			terms = strings.Fields(q)
		}
		for _, term := range terms {
			db = searchTerm(db, term, f.SearchExcerpt)
		}
	}
	if ref := strings.TrimSpace(f.Category); ref != "" {
		if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
			db = db.Where("posts.category_id = ?", id)
		} else {
			db = db.Where("posts.category_id IN (SELECT id FROM categories WHERE slug = ?)", ref)
		}
	}
	if ref := strings.TrimSpace(f.Tag); ref != "" {
		if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
			db = db.Where("posts.id IN (SELECT post_id FROM post_tags WHERE tag_id = ?)", id)
		} else {
			db = db.Where("posts.id IN (SELECT post_tags.post_id FROM post_tags JOIN tags ON tags.id = post_tags.tag_id WHERE tags.slug = ?)", ref)
		}
	}
	if name := strings.TrimSpace(f.Author); name != "" {
		db = db.Where("posts.author_id IN (SELECT id FROM users WHERE username = ?)", name)
	}
	return db
}

// applyOrdering maps a whitelisted "field" or "-field" onto ORDER BY with an id tie-breaker.
func searchTerm(db *gorm.DB, term string, excerpt bool) *gorm.DB {
	p := containsPattern(term)
	clause := `LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.content) LIKE ? ESCAPE '\'` +
		` OR posts.author_id IN (SELECT id FROM users WHERE LOWER(users.username) LIKE ? ESCAPE '\')`
	args := []interface{}{p, p, p}
	if excerpt {
		clause += ` OR LOWER(posts.excerpt) LIKE ? ESCAPE '\'`
		args = append(args, p)
	}
	return db.Where("("+clause+")", args...)
}

func applyOrdering(db *gorm.DB, ordering string) *gorm.DB {
	ordering = strings.TrimSpace(ordering)
	field := strings.TrimPrefix(ordering, "-")
	if !orderableColumns[field] {
		ordering = DefaultOrdering
		field = strings.TrimPrefix(ordering, "-")
	}
	dir := "ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
	}
	return db.Order("posts." + field + " " + dir).Order("posts.id " + dir)
}

func (r *postRepository) Count(ctx context.Context, f PostFilter) (int64, error) {
	defer observability.TrackQuery("count", "posts")()
	var n int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&models.Post{}), f).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *postRepository) List(ctx context.Context, f PostFilter, limit, offset int) ([]*models.Post, error) {
	defer observability.TrackQuery("list", "posts")()
	var posts []*models.Post
	q := applyOrdering(applyFilter(r.detailed(ctx), f), f.Ordering)
	if err := q.Limit(limit).Offset(offset).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Trending(ctx context.Context, since time.Time, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.detailed(ctx).
		Where("posts.status = ? AND posts.published_at >= ?", models.PostStatusPublished, since).
		Order("posts.views_count DESC").Order("posts.id DESC").
		Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Featured(ctx context.Context, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.detailed(ctx).
		Where("posts.status = ? AND posts.is_featured = ?", models.PostStatusPublished, true).
		Order("posts.published_at DESC").Order("posts.id DESC").
		Limit(limit).Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post, columns []string, replaceTags bool) error {
	defer observability.TrackQuery("update", "posts")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(columns) > 0 {
			cols := append(append([]string(nil), columns...), "updated_at")
			if err := tx.Model(post).Select(cols).Omit("Author", "Category", "Tags").Updates(post).Error; err != nil {
				return err
			}
		}
		if !replaceTags {
			return nil
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE post_id = ?", post.ID).Error; err != nil {
			return err
		}
		for _, t := range post.Tags {
			if err := tx.Exec("INSERT INTO post_tags (post_id, tag_id) VALUES (?, ?)", post.ID, t.ID).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return wrapWrite(err, "A post with that slug already exists")
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "posts")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return deletePosts(tx, []uint{id})
	})
	return wrapWrite(err, "Post could not be deleted")
}

func (r *postRepository) UniqueSlug(ctx context.Context, title string, excludeID uint) (string, error) {
	s, err := slug.Unique(ctx, r.db, slug.Posts, title, excludeID)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return s, nil
}

// IncrementViews adds exactly one view with a single atomic UPDATE and
// returns the counter as read back in the same transaction.
func (r *postRepository) IncrementViews(ctx context.Context, id uint) (int64, error) {
	var views int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).Where("id = ?", id).
			UpdateColumn("views_count", gorm.Expr("views_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return tx.Model(&models.Post{}).Where("id = ?", id).Select("views_count").Scan(&views).Error
	})
	if err != nil {
		return 0, wrapWrite(err, "")
	}
	observability.PostViewsTotal.Inc()
	return views, nil
}

// ToggleLike removes the caller's like when present and adds it otherwise.
// A concurrent duplicate insert surfaces as CONFLICT.
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID uint) (bool, int64, error) {
	defer observability.TrackQuery("toggle", "likes")()
	var liked bool
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Omit("Post", "User").Create(&models.Like{PostID: postID, UserID: userID}).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	})
	if err != nil {
		return false, 0, wrapWrite(err, "Like is already being processed, try again")
	}
	state := "unliked"
	if liked {
		state = "liked"
	}
	observability.LikesToggledTotal.WithLabelValues(state).Inc()
	return liked, count, nil
}

func (r *postRepository) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ? AND user_id = ?", postID, userID).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *postRepository) ListLikes(ctx context.Context, postID uint) ([]models.Like, error) {
	var likes []models.Like
	err := r.db.WithContext(ctx).Preload("User").Where("post_id = ?", postID).
		Order("created_at DESC").Order("id DESC").Find(&likes).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return likes, nil
}
