// Package models contains data structures for the application's domain models.
package models

import "time"

// User is an account on the blog.
type User struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Username    string       `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email       string       `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password    string       `gorm:"not null" json:"-"`
	FirstName   string       `gorm:"size:150" json:"first_name"`
	LastName    string       `gorm:"size:150" json:"last_name"`
	Bio         string       `gorm:"type:text" json:"bio"`
	Avatar      string       `gorm:"size:500" json:"avatar"`
	Website     string       `gorm:"size:200" json:"website"`
	Location    string       `gorm:"size:100" json:"location"`
	BirthDate   *time.Time   `gorm:"type:date" json:"birth_date"`
	IsStaff     bool         `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool         `gorm:"not null;default:false" json:"is_superuser"`
	IsActive    bool         `gorm:"not null" json:"is_active"`
	LastLogin   *time.Time   `json:"last_login,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Profile     *UserProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// IsPrivileged reports whether the user may act on other users' content.
func (u *User) IsPrivileged() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}

// UserProfile holds per-user settings. Exactly one exists per user.
type UserProfile struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	PhoneNumber         string    `gorm:"size:20" json:"phone_number"`
	NotificationEnabled bool      `gorm:"not null" json:"notification_enabled"`
	EmailVerified       bool      `gorm:"not null;default:false" json:"email_verified"`
	IsPublic            bool      `gorm:"not null" json:"is_public"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewUserProfile returns the profile every new account starts with.
func NewUserProfile(userID uint) *UserProfile {
	return &UserProfile{
		UserID:              userID,
		NotificationEnabled: true,
		EmailVerified:       false,
		IsPublic:            true,
	}
}
