package validation

import (
	"errors"
	"testing"

	"blogapi/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username  string `json:"username" validate:"required,username"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,password"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
	Nested    struct {
		Phone string `json:"phone_number" validate:"max=5"`
	} `json:"profile"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T", err)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	return appErr.Fields
}

func TestValidator_Struct(t *testing.T) {
	v := New(PolicyRelaxed)

	ok := signup{Username: "alice", Email: "alice@x.com", Password: "pw123", Password2: "pw123"}
	assert.NoError(t, v.Struct(ok))

	bad := signup{Username: "al ice", Email: "nope", Password: "pw123", Password2: "pw124"}
	bad.Nested.Phone = "1234567"
	fields := fieldsOf(t, v.Struct(bad))
	assert.Contains(t, fields["username"], "letters")
	assert.Equal(t, "Enter a valid email address.", fields["email"])
	assert.Equal(t, "Password fields didn't match.", fields["password2"])
	assert.Contains(t, fields, "profile.phone_number")

	fields = fieldsOf(t, v.Struct(signup{}))
	assert.Equal(t, "This field is required.", fields["username"])
}

func TestValidator_StrictPolicyMessage(t *testing.T) {
	v := New(PolicyStrict)
	fields := fieldsOf(t, v.Struct(signup{Username: "alice", Email: "a@x.com", Password: "pw123", Password2: "pw123"}))
	assert.Equal(t, "password must be at least 12 characters long", fields["password"])
	assert.Equal(t, PolicyStrict, v.PasswordPolicy())
}
