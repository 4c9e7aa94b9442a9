package models

import "time"

// Notification types.
const (
	NotificationComment = "comment"
	NotificationReply   = "reply"
	NotificationLike    = "like"
	NotificationSystem  = "system"
)

// Notification is an in-app message to a single recipient.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"not null;index:idx_notifications_recipient_read,priority:1" json:"recipient_id"`
	Recipient   User      `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID    *uint     `gorm:"index" json:"sender_id"`
	Sender      *User     `gorm:"foreignKey:SenderID;constraint:OnDelete:SET NULL" json:"sender,omitempty"`
	Type        string    `gorm:"size:20;not null" json:"type"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Message     string    `gorm:"type:text" json:"message"`
	Link        string    `gorm:"size:500" json:"link"`
	IsRead      bool      `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
