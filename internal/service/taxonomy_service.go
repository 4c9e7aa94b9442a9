package service

import (
	"context"
	"strconv"
	"strings"

	"blogapi/internal/cache"
	"blogapi/internal/models"
	"blogapi/internal/policy"
	"blogapi/internal/presenter"
	"blogapi/internal/repository"
	"blogapi/internal/validation"
)

// TaxonomyService manages categories and tags and their post listings.
type TaxonomyService struct {
	categories repository.CategoryRepository
	tags       repository.TagRepository
	posts      repository.PostRepository
	validate   *validation.Validator
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description"`
}

type UpdateCategoryInput struct {
	Name        *string `json:"name" validate:"omitnil,notblank,max=100"`
	Description *string `json:"description"`
}

type TagInput struct {
	Name string `json:"name" validate:"required,notblank,max=50"`
}

func NewTaxonomyService(categories repository.CategoryRepository, tags repository.TagRepository, posts repository.PostRepository, validate *validation.Validator) *TaxonomyService {
	return &TaxonomyService{categories: categories, tags: tags, posts: posts, validate: validate}
}

func (s *TaxonomyService) ListCategories(ctx context.Context) ([]presenter.CategoryView, error) {
	var out []presenter.CategoryView
	err := cache.Aside(ctx, cache.CategoryListKey, &out, cache.TaxonomyTTL, func() error {
		list, err := s.categories.List(ctx)
		if err != nil {
			return err
		}
		out = presenter.NewCategoryViews(list)
		return nil
	})
	return out, err
}

func (s *TaxonomyService) GetCategory(ctx context.Context, slug string) (*models.Category, error) {
	return s.categories.GetBySlug(ctx, slug)
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, actor policy.Actor, in CategoryInput) (*models.Category, error) {
	if err := policy.Check(policy.CategoryWrite, actor, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := s.checkCategoryName(ctx, name, 0); err != nil {
		return nil, err
	}
	slug, err := s.categories.UniqueSlug(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	c := &models.Category{Name: name, Slug: slug, Description: in.Description}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	cache.InvalidateTaxonomy(ctx)
	return c, nil
}

// UpdateCategory renames (re-slugging only when the name changes) or
// redescribes the category at slug.
func (s *TaxonomyService) UpdateCategory(ctx context.Context, actor policy.Actor, slug string, in UpdateCategoryInput) (*models.Category, error) {
	if err := policy.Check(policy.CategoryWrite, actor, policy.Resource{}); err != nil {
		return nil, err
	}
	c, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != c.Name {
			if err := s.checkCategoryName(ctx, name, c.ID); err != nil {
				return nil, err
			}
			newSlug, err := s.categories.UniqueSlug(ctx, name, c.ID)
			if err != nil {
				return nil, err
			}
			c.Name, c.Slug = name, newSlug
		}
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	cache.InvalidateTaxonomy(ctx)
	return c, nil
}

// DeleteCategory removes the category; its posts become uncategorized.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, actor policy.Actor, slug string) error {
	if err := policy.Check(policy.CategoryWrite, actor, policy.Resource{}); err != nil {
		return err
	}
	c, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, c.ID); err != nil {
		return err
	}
	cache.InvalidateTaxonomy(ctx)
	cache.InvalidatePostLists(ctx)
	return nil
}

func (s *TaxonomyService) checkCategoryName(ctx context.Context, name string, excludeID uint) error {
	taken, err := s.categories.NameTaken(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return models.NewFieldError("name", "category with this name already exists.")
	}
	return nil
}

// CategoryPosts pages through the published posts of one category.
func (s *TaxonomyService) CategoryPosts(ctx context.Context, slug string, page int) (presenter.Page[presenter.PostListItem], error) {
	c, err := s.categories.GetBySlug(ctx, slug)
	if err != nil {
		return presenter.Page[presenter.PostListItem]{}, err
	}
	return s.publishedPage(ctx, repository.PostFilter{Category: strconv.FormatUint(uint64(c.ID), 10)}, page)
}

func (s *TaxonomyService) ListTags(ctx context.Context) ([]presenter.TagView, error) {
	var out []presenter.TagView
	err := cache.Aside(ctx, cache.TagListKey, &out, cache.TaxonomyTTL, func() error {
		list, err := s.tags.List(ctx)
		if err != nil {
			return err
		}
		out = presenter.NewTagViews(list)
		return nil
	})
	return out, err
}

func (s *TaxonomyService) GetTag(ctx context.Context, slug string) (*models.Tag, error) {
	return s.tags.GetBySlug(ctx, slug)
}

func (s *TaxonomyService) CreateTag(ctx context.Context, actor policy.Actor, in TagInput) (*models.Tag, error) {
	if err := policy.Check(policy.TagWrite, actor, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if err := s.checkTagName(ctx, name, 0); err != nil {
		return nil, err
	}
	slug, err := s.tags.UniqueSlug(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	t := &models.Tag{Name: name, Slug: slug}
	if err := s.tags.Create(ctx, t); err != nil {
		return nil, err
	}
	cache.InvalidateTaxonomy(ctx)
	return t, nil
}

func (s *TaxonomyService) UpdateTag(ctx context.Context, actor policy.Actor, slug string, in TagInput) (*models.Tag, error) {
	if err := policy.Check(policy.TagWrite, actor, policy.Resource{}); err != nil {
		return nil, err
	}
	t, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == t.Name {
		return t, nil
	}
	if err := s.checkTagName(ctx, name, t.ID); err != nil {
		return nil, err
	}
	newSlug, err := s.tags.UniqueSlug(ctx, name, t.ID)
	if err != nil {
		return nil, err
	}
	t.Name, t.Slug = name, newSlug
	if err := s.tags.Update(ctx, t); err != nil {
		return nil, err
	}
	cache.InvalidateTaxonomy(ctx)
	cache.InvalidatePostLists(ctx)
	return t, nil
}

func (s *TaxonomyService) DeleteTag(ctx context.Context, actor policy.Actor, slug string) error {
	if err := policy.Check(policy.TagWrite, actor, policy.Resource{}); err != nil {
		return err
	}
	t, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if err := s.tags.Delete(ctx, t.ID); err != nil {
		return err
	}
	cache.InvalidateTaxonomy(ctx)
	cache.InvalidatePostLists(ctx)
	return nil
}

func (s *TaxonomyService) checkTagName(ctx context.Context, name string, excludeID uint) error {
	taken, err := s.tags.NameTaken(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return models.NewFieldError("name", "tag with this name already exists.")
	}
	return nil
}

func (s *TaxonomyService) TagPosts(ctx context.Context, slug string, page int) (presenter.Page[presenter.PostListItem], error) {
	t, err := s.tags.GetBySlug(ctx, slug)
	if err != nil {
		return presenter.Page[presenter.PostListItem]{}, err
	}
	return s.publishedPage(ctx, repository.PostFilter{Tag: strconv.FormatUint(uint64(t.ID), 10)}, page)
}

func (s *TaxonomyService) publishedPage(ctx context.Context, f repository.PostFilter, page int) (presenter.Page[presenter.PostListItem], error) {
	f.Status = models.PostStatusPublished
	f.Ordering = repository.DefaultOrdering
	return listPosts(ctx, s.posts, f, page, PostPageSize)
}

// listPosts counts first so an out-of-range page clamps to the last one.
func listPosts(ctx context.Context, posts repository.PostRepository, f repository.PostFilter, page, size int) (presenter.Page[presenter.PostListItem], error) {
	count, err := posts.Count(ctx, f)
	if err != nil {
		return presenter.Page[presenter.PostListItem]{}, err
	}
	p := Paginate(count, page, size)
	list, err := posts.List(ctx, f, p.PageSize, p.Offset)
	if err != nil {
		return presenter.Page[presenter.PostListItem]{}, err
	}
	return NewPage(p, presenter.NewPostList(list)), nil
}
