package models

import "time"

// Category groups posts. A post has at most one category.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"size:220;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	// PostCount is not persisted; number of published posts, computed at query time
	PostCount int64 `gorm:"->;-:migration" json:"post_count"`
}

// Tag labels posts; many-to-many through post_tags.
type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Slug      string    `gorm:"size:220;uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	// PostCount is not persisted; number of published posts, computed at query time
	PostCount int64 `gorm:"->;-:migration" json:"post_count"`
}
