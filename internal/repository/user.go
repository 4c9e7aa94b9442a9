package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"blogapi/internal/models"
	"blogapi/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users and their profiles.
type UserRepository interface {
	// Transaction runs fn with a repository bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx UserRepository) error) error

	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error)

	Create(ctx context.Context, user *models.User) error
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	GetProfile(ctx context.Context, userID uint) (*models.UserProfile, error)

	Update(ctx context.Context, user *models.User, columns ...string) error
	UpdateProfile(ctx context.Context, profile *models.UserProfile, columns ...string) error
	UpdatePassword(ctx context.Context, userID uint, hash string) error
	TouchLastLogin(ctx context.Context, userID uint, at time.Time) error

	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	Count(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Transaction(ctx context.Context, fn func(tx UserRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&userRepository{db: tx})
	})
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	defer observability.TrackQuery("get", "users")()
	var user models.User
	err := r.db.WithContext(ctx).Preload("Profile").First(&user, id).Error
	if err != nil {
		return nil, wrapLookup(err, "User", id)
	}
	return &user, nil
}

// GetByUsername returns (nil, nil) when no user has that username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Profile").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByEmail returns (nil, nil) when no user has that email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *userRepository) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = ?", strings.ToLower(email))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", "users")()
	// The profile is created explicitly by the caller.
	err := r.db.WithContext(ctx).Omit("Profile").Create(user).Error
	return wrapWrite(err, "A user with that username or email already exists")
}

func (r *userRepository) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	err := r.db.WithContext(ctx).Create(profile).Error
	return wrapWrite(err, "Profile already exists")
}

func (r *userRepository) GetProfile(ctx context.Context, userID uint) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, wrapLookup(err, "Profile for user", userID)
	}
	return &profile, nil
}

// Update writes only the named columns; with none given it writes every
// user-editable column. Associations are never touched.
func (r *userRepository) Update(ctx context.Context, user *models.User, columns ...string) error {
	if len(columns) == 0 {
		columns = []string{"first_name", "last_name", "email", "bio", "avatar", "website", "location", "birth_date"}
	}
	columns = append(append([]string(nil), columns...), "updated_at")
	err := r.db.WithContext(ctx).Model(user).Select(columns).Omit("Profile").Updates(user).Error
	return wrapWrite(err, "A user with that email already exists")
}

func (r *userRepository) UpdateProfile(ctx context.Context, profile *models.UserProfile, columns ...string) error {
	if len(columns) == 0 {
		columns = []string{"phone_number", "notification_enabled", "is_public"}
	}
	columns = append(append([]string(nil), columns...), "updated_at")
	err := r.db.WithContext(ctx).Model(profile).Select(columns).Updates(profile).Error
	return wrapWrite(err, "Profile conflict")
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password", hash)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", userID)
	}
	return nil
}

func (r *userRepository) TouchLastLogin(ctx context.Context, userID uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).UpdateColumn("last_login", at).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the user and everything they own in one transaction.
func (r *userRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "users")()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("author_id = ?", id).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if err := deletePosts(tx, postIDs); err != nil {
			return err
		}

		var commentIDs []uint
		if err := tx.Model(&models.Comment{}).Where("author_id = ?", id).Pluck("id", &commentIDs).Error; err != nil {
			return err
		}
		if err := deleteComments(tx, commentIDs); err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipient_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Notification{}).Where("sender_id = ?", id).Update("sender_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserProfile{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return nil
	})
	return wrapWrite(err, "User could not be deleted")
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Preload("Profile").Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
