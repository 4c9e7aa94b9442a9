// Package validation checks request payloads and maps failures to
// field-level VALIDATION_ERROR responses.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"blogapi/internal/models"

	"github.com/go-playground/validator/v10"
)

// Validator wraps a configured validator.Validate.
type Validator struct {
	v              *validator.Validate
	passwordPolicy string
}

// New returns a Validator enforcing the given password policy.
func New(passwordPolicy string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so field errors match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	out := &Validator{v: v, passwordPolicy: passwordPolicy}
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(out.passwordPolicy, fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return out
}

// PasswordPolicy is the policy name this validator enforces.
func (x *Validator) PasswordPolicy() string { return x.passwordPolicy }

// Struct validates s and returns a VALIDATION_ERROR AppError carrying one
// message per failing field, or nil.
func (x *Validator) Struct(s interface{}) error {
	err := x.v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return models.NewValidationError("Invalid input")
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		key := fieldKey(fe)
		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = x.message(fe)
	}
	return models.NewFieldsError(fields)
}

// fieldKey is the json path without the root struct name: "profile.phone_number".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func (x *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url":
		return "Enter a valid URL."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	case "eqfield":
		return "Password fields didn't match."
	case "username":
		return ValidateUsername(fmt.Sprint(fe.Value())).Error()
	case "password":
		if err := ValidatePassword(x.passwordPolicy, fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	case "datetime":
		return fmt.Sprintf("Date has wrong format. Use %s.", fe.Param())
	}
	return fmt.Sprintf("Failed on the '%s' rule.", fe.Tag())
}
