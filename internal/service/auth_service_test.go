package service

import (
	"context"
	"testing"

	"blogapi/internal/auth"
	"blogapi/internal/models"
	"blogapi/internal/policy"
	"blogapi/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration(username string) RegisterInput {
	return RegisterInput{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "pw123",
		Password2: "pw123",
		FirstName: "Ada",
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestAuthService_Register(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	user, pair, err := env.auth.Register(ctx, validRegistration("ada"))
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "pw123", user.Password)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	require.NotNil(t, user.Profile)
	var profile models.UserProfile
	require.NoError(t, env.db.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.True(t, profile.NotificationEnabled)
	assert.True(t, profile.IsPublic)
	assert.False(t, profile.EmailVerified)

	claims, err := env.tokens.Parse(ctx, pair.Access, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.Username)
}

func TestAuthService_Register_Validation(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	_, _, err := env.auth.Register(ctx, validRegistration("taken"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		field  string
	}{
		{"password mismatch", func(in *RegisterInput) { in.Password2 = "other" }, "password2"},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, "email"},
		{"bad email", func(in *RegisterInput) { in.Email = "nope" }, "email"},
		{"bad username", func(in *RegisterInput) { in.Username = "has space" }, "username"},
		{"duplicate username", func(in *RegisterInput) { in.Username = "taken" }, "username"},
		{"duplicate email", func(in *RegisterInput) { in.Email = "TAKEN@example.com" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegistration("fresh")
			tt.mutate(&in)
			_, _, err := env.auth.Register(ctx, in)
			requireField(t, err, tt.field)
		})
	}

	var n int64
	require.NoError(t, env.db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n, "failed registrations leave nothing behind")
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "bob")

	user, pair, err := env.auth.Login(ctx, LoginInput{Username: "bob", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	assert.NotNil(t, user.LastLogin)
	assert.NotEmpty(t, pair.Refresh)

	_, _, err = env.auth.Login(ctx, LoginInput{Username: "bob", Password: "wrong"})
	requireCode(t, err, models.CodeUnauthenticated)

	_, _, err = env.auth.Login(ctx, LoginInput{Username: "ghost", Password: "password123"})
	requireCode(t, err, models.CodeUnauthenticated)

	_, _, err = env.auth.Login(ctx, LoginInput{Username: "bob"})
	requireField(t, err, "password")

	require.NoError(t, env.db.Model(u).Update("is_active", false).Error)
	_, _, err = env.auth.Login(ctx, LoginInput{Username: "bob", Password: "password123"})
	requireCode(t, err, models.CodeUnauthenticated)
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	_, pair, err := env.auth.Register(ctx, validRegistration("carol"))
	require.NoError(t, err)

	access, err := env.auth.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	_, err = env.auth.Refresh(ctx, pair.Access)
	requireCode(t, err, models.CodeUnauthenticated)

	_, err = env.auth.Refresh(ctx, "")
	requireField(t, err, "refresh")

	accessClaims, err := env.tokens.Parse(ctx, pair.Access, auth.TokenTypeAccess)
	require.NoError(t, err)

	requireField(t, env.auth.Logout(ctx, "", accessClaims), "refresh")
	require.NoError(t, env.auth.Logout(ctx, pair.Refresh, accessClaims))

	_, err = env.auth.Refresh(ctx, pair.Refresh)
	requireCode(t, err, models.CodeUnauthenticated)
	_, err = env.tokens.Parse(ctx, pair.Access, auth.TokenTypeAccess)
	assert.ErrorIs(t, err, auth.ErrRevokedToken)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "dana")
	require.NoError(t, env.db.Model(u).Update("last_name", "Keep").Error)

	updated, err := env.auth.UpdateProfile(ctx, actorOf(u), UpdateProfileInput{
		FirstName: strPtr("Dana"),
		Website:   strPtr("https://dana.example.com"),
		BirthDate: strPtr("1990-05-17"),
		Profile:   &UpdateSettingsInput{IsPublic: boolPtr(false), PhoneNumber: strPtr("555-0100")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana", updated.FirstName)
	assert.Equal(t, "Keep", updated.LastName, "fields not sent are untouched")
	require.NotNil(t, updated.BirthDate)
	assert.Equal(t, "1990-05-17", updated.BirthDate.Format("2006-01-02"))
	require.NotNil(t, updated.Profile)
	assert.False(t, updated.Profile.IsPublic)
	assert.True(t, updated.Profile.NotificationEnabled)
	assert.Equal(t, "555-0100", updated.Profile.PhoneNumber)

	cleared, err := env.auth.UpdateProfile(ctx, actorOf(u), UpdateProfileInput{BirthDate: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.BirthDate)

	_, err = env.auth.UpdateProfile(ctx, actorOf(u), UpdateProfileInput{Website: strPtr("not a url")})
	requireField(t, err, "website")

	_, err = env.auth.UpdateProfile(ctx, actorOf(u), UpdateProfileInput{BirthDate: strPtr("17/05/1990")})
	requireField(t, err, "birth_date")

	_, err = env.auth.UpdateProfile(ctx, actorOf(u), UpdateProfileInput{
		Profile: &UpdateSettingsInput{PhoneNumber: strPtr("012345678901234567890123")},
	})
	requireField(t, err, "profile.phone_number")

	_, err = env.auth.UpdateProfile(ctx, policy.Anonymous, UpdateProfileInput{})
	requireCode(t, err, models.CodeUnauthenticated)
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "erin")

	err := env.auth.ChangePassword(ctx, actorOf(u), ChangePasswordInput{OldPassword: "wrong", NewPassword: "n3w", NewPassword2: "n3w"})
	requireField(t, err, "old_password")

	err = env.auth.ChangePassword(ctx, actorOf(u), ChangePasswordInput{OldPassword: "password123", NewPassword: "n3w", NewPassword2: "other"})
	requireField(t, err, "new_password2")

	require.NoError(t, env.auth.ChangePassword(ctx, actorOf(u), ChangePasswordInput{OldPassword: "password123", NewPassword: "n3w", NewPassword2: "n3w"}))

	_, _, err = env.auth.Login(ctx, LoginInput{Username: "erin", Password: "n3w"})
	require.NoError(t, err)
}

func TestAuthService_DeleteAccount(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	u := testutil.CreateUser(t, env.db, "finn")
	other := testutil.CreateUser(t, env.db, "gail")
	post := testutil.CreatePost(t, env.db, u, "Going away")
	testutil.CreateComment(t, env.db, post, other, "bye", nil)

	requireField(t, env.auth.DeleteAccount(ctx, actorOf(u), DeleteAccountInput{}), "password")
	requireField(t, env.auth.DeleteAccount(ctx, actorOf(u), DeleteAccountInput{Password: "nope"}), "password")

	require.NoError(t, env.auth.DeleteAccount(ctx, actorOf(u), DeleteAccountInput{Password: "password123"}))

	var users, posts, comments int64
	env.db.Model(&models.User{}).Where("id = ?", u.ID).Count(&users)
	env.db.Model(&models.Post{}).Where("author_id = ?", u.ID).Count(&posts)
	env.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments)
	assert.Zero(t, users)
	assert.Zero(t, posts)
	assert.Zero(t, comments)
}

func TestUserService(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	staff := testutil.CreateStaff(t, env.db, "staff")
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	require.NoError(t, env.db.Model(&models.UserProfile{}).Where("user_id = ?", bob.ID).Update("is_public", false).Error)

	_, err := env.users.ListUsers(ctx, actorOf(alice), 1)
	requireCode(t, err, models.CodeForbidden)

	page, err := env.users.ListUsers(ctx, actorOf(staff), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Count)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Results, 3)

	_, err = env.users.GetUser(ctx, policy.Anonymous, alice.ID)
	require.NoError(t, err)

	_, err = env.users.GetUser(ctx, actorOf(alice), bob.ID)
	requireCode(t, err, models.CodeForbidden)
	_, err = env.users.GetUser(ctx, actorOf(bob), bob.ID)
	require.NoError(t, err)
	_, err = env.users.GetUser(ctx, actorOf(staff), bob.ID)
	require.NoError(t, err)

	_, err = env.users.GetUser(ctx, actorOf(staff), 999)
	requireCode(t, err, models.CodeNotFound)
}
