package models

import "time"

// Comment is a remark on a post. ParentID links replies into a tree whose
// nodes all belong to the same post.
type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     uint      `gorm:"not null;index:idx_comments_post_parent,priority:1" json:"post_id"`
	Post       Post      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	AuthorID   uint      `gorm:"not null;index" json:"author_id"`
	Author     User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	ParentID   *uint     `gorm:"index:idx_comments_post_parent,priority:2" json:"parent_id"`
	Parent     *Comment  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsApproved bool      `gorm:"not null;index" json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Like records that a user likes a post. At most one per (post, user).
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user,priority:1" json:"post_id"`
	Post      Post      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user,priority:2;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user"`
	CreatedAt time.Time `json:"created_at"`
}
