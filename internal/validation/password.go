package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Password policies selectable through PASSWORD_POLICY.
const (
	PolicyRelaxed = "relaxed"
	PolicyStrict  = "strict"
)

const (
	maxPasswordLen       = 128
	minStrictPasswordLen = 12
	maxUsernameLen       = 150
)

var usernameRegex = regexp.MustCompile(`^[\w.@+-]+$`)

// passwordRule is one requirement of the strict policy.
type passwordRule struct {
	need string
	ok   func(string) bool
}

func containsRune(pred func(rune) bool) func(string) bool {
	return func(s string) bool { return strings.IndexFunc(s, pred) >= 0 }
}

var strictRules = []passwordRule{
	{"an uppercase letter", containsRune(unicode.IsUpper)},
	{"a lowercase letter", containsRune(unicode.IsLower)},
	{"a digit", containsRune(func(r rune) bool { return r >= '0' && r <= '9' })},
	{"a symbol such as ! or #", containsRune(func(r rune) bool {
		return r < utf8.RuneSelf && (unicode.IsPunct(r) || unicode.IsSymbol(r))
	})},
}

// ValidatePassword applies the named policy. Unknown policies behave as
// relaxed. The strict policy names every unmet requirement in one error.
func ValidatePassword(policy, password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case password == "":
		return errors.New("password is required")
	case n > maxPasswordLen:
		return fmt.Errorf("password must not exceed %d characters", maxPasswordLen)
	case policy != PolicyStrict:
		return nil
	case n < minStrictPasswordLen:
		return fmt.Errorf("password must be at least %d characters long", minStrictPasswordLen)
	}

	var missing []string
	for _, rule := range strictRules {
		if !rule.ok(password) {
			missing = append(missing, rule.need)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("password must contain %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateUsername allows letters, digits and @ . + - _ up to 150 characters.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return errors.New("username is required")
	case utf8.RuneCountInString(username) > maxUsernameLen:
		return fmt.Errorf("username must not exceed %d characters", maxUsernameLen)
	case !usernameRegex.MatchString(username):
		return errors.New("username may contain only letters, numbers, and @/./+/-/_ characters")
	}
	return nil
}
