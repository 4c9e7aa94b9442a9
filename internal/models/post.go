package models

import "time"

// Post statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// ValidPostStatus reports whether s is a known post status.
func ValidPostStatus(s string) bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post is a blog article owned by one author.
type Post struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Title         string     `gorm:"size:200;not null" json:"title"`
	Slug          string     `gorm:"size:220;uniqueIndex;not null" json:"slug"`
	AuthorID      uint       `gorm:"not null;index" json:"author_id"`
	Author        User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Content       string     `gorm:"type:text;not null" json:"content"`
	Excerpt       string     `gorm:"size:500" json:"excerpt"`
	FeaturedImage string     `gorm:"size:500" json:"featured_image"`
	CategoryID    *uint      `gorm:"index" json:"category_id"`
	Category      *Category  `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Tags          []Tag      `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE" json:"tags"`
	Status        string     `gorm:"size:10;not null;index" json:"status"`
	ViewsCount    int64      `gorm:"not null;default:0" json:"views_count"`
	IsFeatured    bool       `gorm:"not null;default:false;index" json:"is_featured"`
	PublishedAt   *time.Time `gorm:"index" json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; approved comments only, computed at query time
	CommentsCount int64 `gorm:"->;-:migration" json:"comments_count"`
}

// IsPublished reports whether the post is publicly visible.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// StampPublication sets PublishedAt the first time the post is published.
// Returns true when the timestamp was set by this call.
func (p *Post) StampPublication(now time.Time) bool {
	if p.Status != PostStatusPublished || p.PublishedAt != nil {
		return false
	}
	p.PublishedAt = &now
	return true
}
