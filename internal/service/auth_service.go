package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"blogapi/internal/auth"
	"blogapi/internal/models"
	"blogapi/internal/observability"
	"blogapi/internal/policy"
	"blogapi/internal/repository"
	"blogapi/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users    repository.UserRepository
	tokens   *auth.Manager
	validate *validation.Validator
	now      func() time.Time
}

type RegisterInput struct {
	Username  string `json:"username" validate:"required,username"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,password"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput lists every field a user may change on themselves.
// Nil means unchanged; an empty birth_date clears it.
type UpdateProfileInput struct {
	FirstName *string              `json:"first_name" validate:"omitnil,max=150"`
	LastName  *string              `json:"last_name" validate:"omitnil,max=150"`
	Bio       *string              `json:"bio"`
	Avatar    *string              `json:"avatar" validate:"omitnil,max=500"`
	Website   *string              `json:"website" validate:"omitnil,max=200"`
	Location  *string              `json:"location" validate:"omitnil,max=100"`
	BirthDate *string              `json:"birth_date"`
	Profile   *UpdateSettingsInput `json:"profile"`
}

type UpdateSettingsInput struct {
	PhoneNumber         *string `json:"phone_number" validate:"omitnil,max=20"`
	NotificationEnabled *bool   `json:"notification_enabled"`
	IsPublic            *bool   `json:"is_public"`
}

type ChangePasswordInput struct {
	OldPassword  string `json:"old_password" validate:"required"`
	NewPassword  string `json:"new_password" validate:"required,password"`
	NewPassword2 string `json:"new_password2" validate:"required,eqfield=NewPassword"`
}

type DeleteAccountInput struct {
	Password string `json:"password" validate:"required"`
}

func NewAuthService(users repository.UserRepository, tokens *auth.Manager, validate *validation.Validator) *AuthService {
	return &AuthService{users: users, tokens: tokens, validate: validate, now: time.Now}
}

// Register creates the user and their profile in one transaction and signs
// them in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, auth.TokenPair, error) {
	ctx, finish := observability.StartSpan(ctx, "auth", "register")
	user, pair, err := s.register(ctx, in)
	finish(err)
	return user, pair, err
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*models.User, auth.TokenPair, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, auth.TokenPair{}, err
	}

	fields := map[string]string{}
	taken, err := s.users.UsernameTaken(ctx, in.Username)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if taken {
		fields["username"] = "A user with that username already exists."
	}
	taken, err = s.users.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if taken {
		fields["email"] = "A user with that email already exists."
	}
	if len(fields) > 0 {
		return nil, auth.TokenPair{}, models.NewFieldsError(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, auth.TokenPair{}, models.NewInternalError(err)
	}
	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hash),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		IsActive:  true,
	}
	err = s.users.Transaction(ctx, func(tx repository.UserRepository) error {
		if err := tx.Create(ctx, user); err != nil {
			return err
		}
		profile := models.NewUserProfile(user.ID)
		if err := tx.CreateProfile(ctx, profile); err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		// Lost a race with another registration for the same name or address.
		if models.HasCode(err, models.CodeConflict) {
			return nil, auth.TokenPair{}, models.NewValidationError("A user with that username or email already exists.")
		}
		return nil, auth.TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, auth.TokenPair{}, models.NewInternalError(err)
	}
	return user, pair, nil
}

// Login verifies credentials. Unknown users, wrong passwords and inactive
// accounts all fail with 401.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, auth.TokenPair, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, auth.TokenPair{}, err
	}
	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, auth.TokenPair{}, models.NewUnauthenticatedError("Invalid credentials")
	}
	if !user.IsActive {
		return nil, auth.TokenPair{}, models.NewUnauthenticatedError("User account is disabled")
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, auth.TokenPair{}, err
	}
	user.LastLogin = &now

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, auth.TokenPair{}, models.NewInternalError(err)
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	if strings.TrimSpace(refresh) == "" {
		return "", models.NewFieldError("refresh", "This field is required.")
	}
	claims, err := s.tokens.Parse(ctx, refresh, auth.TokenTypeRefresh)
	if err != nil {
		return "", tokenError(err)
	}
	access, err := s.tokens.IssueAccess(claims)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return access, nil
}

// Logout revokes the refresh token and, when given, the access token used
// for the request.
func (s *AuthService) Logout(ctx context.Context, refresh string, access *auth.Claims) error {
	if strings.TrimSpace(refresh) == "" {
		return models.NewFieldError("refresh", "Refresh token is required")
	}
	claims, err := s.tokens.Parse(ctx, refresh, auth.TokenTypeRefresh)
	if err != nil {
		return models.NewFieldError("refresh", "Invalid token")
	}
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return models.NewInternalError(err)
	}
	if err := s.tokens.Revoke(ctx, access); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrRevokedToken), errors.Is(err, auth.ErrWrongType):
		return models.NewUnauthenticatedError("Token is invalid or expired")
	default:
		return models.NewInternalError(err)
	}
}

func (s *AuthService) Profile(ctx context.Context, actor policy.Actor) (*models.User, error) {
	if !actor.Authenticated() {
		return nil, models.NewUnauthenticatedError("Authentication credentials were not provided")
	}
	return s.users.GetByID(ctx, actor.UserID)
}

// UpdateProfile applies in to the actor's account. Only the columns that
// were sent are written.
func (s *AuthService) UpdateProfile(ctx context.Context, actor policy.Actor, in UpdateProfileInput) (*models.User, error) {
	user, err := s.Profile(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	var cols []string
	set := func(dst *string, v *string, col string) {
		if v != nil {
			*dst = *v
			cols = append(cols, col)
		}
	}
	if in.Website != nil && *in.Website != "" {
		if u, err := url.ParseRequestURI(*in.Website); err != nil || u.Host == "" {
			return nil, models.NewFieldError("website", "Enter a valid URL.")
		}
	}
	set(&user.FirstName, in.FirstName, "first_name")
	set(&user.LastName, in.LastName, "last_name")
	set(&user.Bio, in.Bio, "bio")
	set(&user.Avatar, in.Avatar, "avatar")
	set(&user.Website, in.Website, "website")
	set(&user.Location, in.Location, "location")
	if in.BirthDate != nil {
		user.BirthDate = nil
		if *in.BirthDate != "" {
			d, err := time.Parse("2006-01-02", *in.BirthDate)
			if err != nil {
				return nil, models.NewFieldError("birth_date", "Date has wrong format. Use YYYY-MM-DD.")
			}
			user.BirthDate = &d
		}
		cols = append(cols, "birth_date")
	}

	var profileCols []string
	profile := user.Profile
	if in.Profile != nil {
		if profile == nil {
			profile = models.NewUserProfile(user.ID)
		}
		if v := in.Profile.PhoneNumber; v != nil {
			profile.PhoneNumber = *v
			profileCols = append(profileCols, "phone_number")
		}
		if v := in.Profile.NotificationEnabled; v != nil {
			profile.NotificationEnabled = *v
			profileCols = append(profileCols, "notification_enabled")
		}
		if v := in.Profile.IsPublic; v != nil {
			profile.IsPublic = *v
			profileCols = append(profileCols, "is_public")
		}
	}

	err = s.users.Transaction(ctx, func(tx repository.UserRepository) error {
		if len(cols) > 0 {
			if err := tx.Update(ctx, user, cols...); err != nil {
				return err
			}
		}
		if len(profileCols) == 0 {
			return nil
		}
		if profile.ID == 0 {
			return tx.CreateProfile(ctx, profile)
		}
		return tx.UpdateProfile(ctx, profile, profileCols...)
	})
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, user.ID)
}

func (s *AuthService) ChangePassword(ctx context.Context, actor policy.Actor, in ChangePasswordInput) error {
	user, err := s.Profile(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.OldPassword)) != nil {
		return models.NewFieldError("old_password", "Old password is incorrect.")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hash))
}

// DeleteAccount removes the actor's account after re-checking the password.
func (s *AuthService) DeleteAccount(ctx context.Context, actor policy.Actor, in DeleteAccountInput) error {
	user, err := s.Profile(ctx, actor)
	if err != nil {
		return err
	}
	if err := policy.Check(policy.UserDelete, actor, policy.Owned(user.ID)); err != nil {
		return err
	}
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return models.NewFieldError("password", "Password is incorrect.")
	}
	return s.users.Delete(ctx, user.ID)
}
