package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	long := strings.Repeat("Ab1!", 32)
	tests := []struct {
		policy   string
		password string
		// wantErr lists substrings of the expected message; nil means valid.
		wantErr []string
	}{
		{PolicyRelaxed, "pw", nil},
		{"", "x", nil},
		{"unknown", "x", nil},
		{PolicyRelaxed, "", []string{"required"}},
		{PolicyRelaxed, long + "x", []string{"128"}},
		{PolicyStrict, "Tr0ub4dor&3x", nil},
		{PolicyStrict, "Écrire-Blog-2024", nil},
		{PolicyStrict, long, nil},
		{PolicyStrict, "Sh0rt!", []string{"at least 12"}},
		{PolicyStrict, long + "x", []string{"128"}},
		{PolicyStrict, "alllowercase1!", []string{"uppercase"}},
		{PolicyStrict, "NoDigitsHere!!", []string{"digit"}},
		{PolicyStrict, "NoSymbols12345", []string{"symbol"}},
		{PolicyStrict, "123456789012", []string{"uppercase", "lowercase", "symbol"}},
	}

	for _, tt := range tests {
		t.Run(tt.policy+"/"+tt.password[:min(len(tt.password), 16)], func(t *testing.T) {
			err := ValidatePassword(tt.policy, tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestValidatePassword_ReportsOnlyMissingRules(t *testing.T) {
	err := ValidatePassword(PolicyStrict, "lowercase-only")
	require.Error(t, err)
	assert.Equal(t, "password must contain an uppercase letter, a digit", err.Error())
}

func TestValidateUsername(t *testing.T) {
	valid := []string{"writer_42", "jane.doe@blog.example", "a", "x+y-z", strings.Repeat("u", 150)}
	for _, name := range valid {
		assert.NoError(t, ValidateUsername(name), name)
	}

	invalid := map[string]string{
		"":                       "required",
		"two words":              "only letters",
		"hash#tag":               "only letters",
		strings.Repeat("u", 151): "150",
	}
	for name, want := range invalid {
		err := ValidateUsername(name)
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), want)
	}
}
