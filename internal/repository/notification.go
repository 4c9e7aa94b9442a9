package repository

import (
	"context"

	"blogapi/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository persists per-user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	Count(ctx context.Context, recipientID uint, unreadOnly bool) (int64, error)
	// MarkRead flags one notification; it must belong to recipientID.
	MarkRead(ctx context.Context, id, recipientID uint) error
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return wrapWrite(r.db.WithContext(ctx).Omit("Recipient", "Sender").Create(n).Error, "Notification conflict")
}

func (r *notificationRepository) scope(ctx context.Context, recipientID uint, unreadOnly bool) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	return q
}

func (r *notificationRepository) List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var out []models.Notification
	err := r.scope(ctx, recipientID, unreadOnly).Preload("Sender").
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *notificationRepository) Count(ctx context.Context, recipientID uint, unreadOnly bool) (int64, error) {
	var n int64
	if err := r.scope(ctx, recipientID, unreadOnly).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		// Either missing or someone else's; both look the same to the caller.
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ? AND recipient_id = ?", id, recipientID).Count(&n).Error; err != nil {
			return models.NewInternalError(err)
		}
		if n == 0 {
			return models.NewNotFoundError("Notification", id)
		}
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}
