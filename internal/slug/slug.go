// Package slug turns titles and names into URL-safe identifiers that are
// unique within a table.
package slug

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// MaxLen bounds a slug including any numeric suffix.
const MaxLen = 220

// suffixRoom is reserved at the end of the base for "-N".
const suffixRoom = 8

// Scope names the table and column a slug must be unique in.
type Scope struct {
	Table       string
	Column      string
	DefaultBase string
}

var (
	Posts      = Scope{Table: "posts", Column: "slug", DefaultBase: "post"}
	Categories = Scope{Table: "categories", Column: "slug", DefaultBase: "category"}
	Tags       = Scope{Table: "tags", Column: "slug", DefaultBase: "tag"}
)

// Slugify lowercases s, folds accents to ASCII, drops punctuation and joins
// words with single hyphens. "Héllo, Wörld!" becomes "hello-world".
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range norm.NFKD.String(s) {
		switch {
		case r > unicode.MaxASCII:
			// combining marks and anything without an ASCII form
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return strings.Trim(b.String(), "-_")
}

// Unique returns a slug for source that is not used by any other row in
// scope: the slugified base, or base-1, base-2, ... on collision. The row
// with id excludeID (when non-zero) does not count as a collision, so
// re-slugging a record never collides with itself.
func Unique(ctx context.Context, db *gorm.DB, scope Scope, source string, excludeID uint) (string, error) {
	base := truncate(Slugify(source), MaxLen-suffixRoom)
	if base == "" {
		base = scope.DefaultBase
	}

	q := db.WithContext(ctx).Table(scope.Table).
		Where(fmt.Sprintf("%s = ? OR %s LIKE ? ESCAPE '\\'", scope.Column, scope.Column), base, escapeLike(base)+"-%")
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var existing []string
	if err := q.Pluck(scope.Column, &existing).Error; err != nil {
		return "", fmt.Errorf("look up %s slugs: %w", scope.Table, err)
	}

	return nextFree(base, existing), nil
}

// nextFree picks base or the first base-N (N >= 1) absent from taken.
func nextFree(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		used[s] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimRight(s[:n], "-_")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
