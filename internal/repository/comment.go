package repository

import (
	"context"

	"blogapi/internal/models"
	"blogapi/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	// Delete removes the comment and its whole reply subtree.
	Delete(ctx context.Context, id uint) error
	SetApproved(ctx context.Context, id uint, approved bool) error
	// ListApprovedByPost returns every approved comment of a post, oldest first.
	ListApprovedByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	// ListTopLevel returns approved root comments of a post, newest first.
	ListTopLevel(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error)
	CountTopLevel(ctx context.Context, postID uint) (int64, error)
	ListPending(ctx context.Context, limit, offset int) ([]models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("create", "comments")()
	if err := r.db.WithContext(ctx).Omit("Post", "Author", "Parent").Create(comment).Error; err != nil {
		return wrapWrite(err, "Comment conflict")
	}
	err := r.db.WithContext(ctx).Preload("Author").First(comment, comment.ID).Error
	return wrapLookup(err, "Comment", comment.ID)
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&c, id).Error; err != nil {
		return nil, wrapLookup(err, "Comment", id)
	}
	return &c, nil
}

// Update only ever changes the body of a comment.
func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Model(comment).Select("content", "updated_at").Updates(comment).Error
	return wrapWrite(err, "Comment conflict")
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "comments")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Comment{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundError("Comment", id)
		}
		return deleteComments(tx, []uint{id})
	})
	return wrapWrite(err, "Comment could not be deleted")
}

func (r *commentRepository) SetApproved(ctx context.Context, id uint, approved bool) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("is_approved", approved)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) ListApprovedByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	var out []models.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("post_id = ? AND is_approved = ?", postID, true).
		Order("created_at ASC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *commentRepository) ListTopLevel(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error) {
	var out []models.Comment
	err := r.topLevel(ctx, postID).Preload("Author").
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}

func (r *commentRepository) CountTopLevel(ctx context.Context, postID uint) (int64, error) {
	var n int64
	if err := r.topLevel(ctx, postID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *commentRepository) topLevel(ctx context.Context, postID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ? AND parent_id IS NULL AND is_approved = ?", postID, true)
}

func (r *commentRepository) ListPending(ctx context.Context, limit, offset int) ([]models.Comment, error) {
	var out []models.Comment
	err := r.db.WithContext(ctx).Preload("Author").
		Where("is_approved = ?", false).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).Offset(offset).Find(&out).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return out, nil
}
