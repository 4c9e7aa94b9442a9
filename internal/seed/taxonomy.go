package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"blogapi/internal/models"
	"blogapi/internal/slug"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures/taxonomy.yaml
var taxonomyYAML []byte

// CategoryFixture is one category entry of the sample taxonomy.
type CategoryFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Taxonomy is the sample category and tag set shipped with the seeder.
type Taxonomy struct {
	Categories []CategoryFixture `yaml:"categories"`
	Tags       []string          `yaml:"tags"`
}

// LoadTaxonomy decodes the embedded fixture.
func LoadTaxonomy() (*Taxonomy, error) {
	return parseTaxonomy(taxonomyYAML)
}

func parseTaxonomy(raw []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode taxonomy fixture: %w", err)
	}
	for i, c := range t.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("taxonomy fixture: category %d has no name", i)
		}
	}
	for i, name := range t.Tags {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("taxonomy fixture: tag %d is blank", i)
		}
	}
	return &t, nil
}

// ensureCategory returns the category called name, creating it with a
// fresh slug when it does not exist yet.
func ensureCategory(ctx context.Context, db *gorm.DB, fx CategoryFixture) (models.Category, error) {
	var c models.Category
	err := db.WithContext(ctx).Where("name = ?", fx.Name).First(&c).Error
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c, err
	}

	s, err := slug.Unique(ctx, db, slug.Categories, fx.Name, 0)
	if err != nil {
		return c, err
	}
	c = models.Category{Name: fx.Name, Slug: s, Description: fx.Description}
	return c, db.WithContext(ctx).Create(&c).Error
}

func ensureTag(ctx context.Context, db *gorm.DB, name string) (models.Tag, error) {
	var t models.Tag
	err := db.WithContext(ctx).Where("name = ?", name).First(&t).Error
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return t, err
	}

	s, err := slug.Unique(ctx, db, slug.Tags, name, 0)
	if err != nil {
		return t, err
	}
	t = models.Tag{Name: name, Slug: s}
	return t, db.WithContext(ctx).Create(&t).Error
}
