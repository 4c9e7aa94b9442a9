package repository

import (
	"context"
	"strconv"

	"blogapi/internal/models"
	"blogapi/internal/slug"

	"gorm.io/gorm"
)

// publishedPostCount is the correlated subquery behind Category/Tag.PostCount.
const (
	categoryPostCount = "(SELECT COUNT(*) FROM posts WHERE posts.category_id = categories.id AND posts.status = 'published') AS post_count"
	tagPostCount      = "(SELECT COUNT(*) FROM post_tags JOIN posts ON posts.id = post_tags.post_id WHERE post_tags.tag_id = tags.id AND posts.status = 'published') AS post_count"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	// Resolve accepts a numeric id or a slug.
	Resolve(ctx context.Context, ref string) (*models.Category, error)
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	UniqueSlug(ctx context.Context, name string, excludeID uint) (string, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id uint) error
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository returns a CategoryRepository backed by db.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) withCount(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Category{}).Select("categories.*, " + categoryPostCount)
}

func (r *categoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := r.withCount(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *categoryRepository) GetBySlug(ctx context.Context, s string) (*models.Category, error) {
	var c models.Category
	if err := r.withCount(ctx).Where("slug = ?", s).First(&c).Error; err != nil {
		return nil, wrapLookup(err, "Category", s)
	}
	return &c, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := r.withCount(ctx).Where("categories.id = ?", id).First(&c).Error; err != nil {
		return nil, wrapLookup(err, "Category", id)
	}
	return &c, nil
}

func (r *categoryRepository) Resolve(ctx context.Context, ref string) (*models.Category, error) {
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		return r.GetByID(ctx, uint(id))
	}
	return r.GetBySlug(ctx, ref)
}

func (r *categoryRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	return nameTaken(ctx, r.db, &models.Category{}, name, excludeID)
}

func (r *categoryRepository) UniqueSlug(ctx context.Context, name string, excludeID uint) (string, error) {
	s, err := slug.Unique(ctx, r.db, slug.Categories, name, excludeID)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return s, nil
}

func (r *categoryRepository) Create(ctx context.Context, c *models.Category) error {
	return wrapWrite(r.db.WithContext(ctx).Create(c).Error, "A category with that name or slug already exists")
}

func (r *categoryRepository) Update(ctx context.Context, c *models.Category) error {
	err := r.db.WithContext(ctx).Model(c).Select("name", "slug", "description", "updated_at").Updates(c).Error
	return wrapWrite(err, "A category with that name or slug already exists")
}

// Delete removes the category; its posts become uncategorized.
func (r *categoryRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Post{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Category", id)
		}
		return nil
	})
	return wrapWrite(err, "Category could not be deleted")
}

// TagRepository defines persistence operations for tags.
type TagRepository interface {
	List(ctx context.Context) ([]models.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
	GetByID(ctx context.Context, id uint) (*models.Tag, error)
	Resolve(ctx context.Context, ref string) (*models.Tag, error)
	// FindByIDs returns the tags with the given ids; missing ids are reported.
	FindByIDs(ctx context.Context, ids []uint) ([]models.Tag, error)
	NameTaken(ctx context.Context, name string, excludeID uint) (bool, error)
	UniqueSlug(ctx context.Context, name string, excludeID uint) (string, error)
	Create(ctx context.Context, t *models.Tag) error
	Update(ctx context.Context, t *models.Tag) error
	Delete(ctx context.Context, id uint) error
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a TagRepository backed by db.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) withCount(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Tag{}).Select("tags.*, " + tagPostCount)
}

func (r *tagRepository) List(ctx context.Context) ([]models.Tag, error) {
	var out []models.Tag
	if err := r.withCount(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *tagRepository) GetBySlug(ctx context.Context, s string) (*models.Tag, error) {
	var t models.Tag
	if err := r.withCount(ctx).Where("slug = ?", s).First(&t).Error; err != nil {
		return nil, wrapLookup(err, "Tag", s)
	}
	return &t, nil
}

func (r *tagRepository) GetByID(ctx context.Context, id uint) (*models.Tag, error) {
	var t models.Tag
	if err := r.withCount(ctx).Where("tags.id = ?", id).First(&t).Error; err != nil {
		return nil, wrapLookup(err, "Tag", id)
	}
	return &t, nil
}

func (r *tagRepository) Resolve(ctx context.Context, ref string) (*models.Tag, error) {
	if id, err := strconv.ParseUint(ref, 10, 32); err == nil {
		return r.GetByID(ctx, uint(id))
	}
	return r.GetBySlug(ctx, ref)
}

func (r *tagRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []models.Tag
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	found := make(map[uint]bool, len(tags))
	for _, t := range tags {
		found[t.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, models.NewFieldError("tag_ids", "Invalid tag id "+strconv.FormatUint(uint64(id), 10))
		}
	}
	return tags, nil
}

func (r *tagRepository) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	return nameTaken(ctx, r.db, &models.Tag{}, name, excludeID)
}

func (r *tagRepository) UniqueSlug(ctx context.Context, name string, excludeID uint) (string, error) {
	s, err := slug.Unique(ctx, r.db, slug.Tags, name, excludeID)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return s, nil
}

func (r *tagRepository) Create(ctx context.Context, t *models.Tag) error {
	return wrapWrite(r.db.WithContext(ctx).Create(t).Error, "A tag with that name or slug already exists")
}

func (r *tagRepository) Update(ctx context.Context, t *models.Tag) error {
	err := r.db.WithContext(ctx).Model(t).Select("name", "slug").Updates(t).Error
	return wrapWrite(err, "A tag with that name or slug already exists")
}

func (r *tagRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM post_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Tag{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Tag", id)
		}
		return nil
	})
	return wrapWrite(err, "Tag could not be deleted")
}

func nameTaken(ctx context.Context, db *gorm.DB, model interface{}, name string, excludeID uint) (bool, error) {
	q := db.WithContext(ctx).Model(model).Where("LOWER(name) = LOWER(?)", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}
