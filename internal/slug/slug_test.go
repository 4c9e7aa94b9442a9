package slug

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Test Post", "test-post"},
		{"  Hello,   World!  ", "hello-world"},
		{"Héllo Wörld", "hello-world"},
		{"Don't stop", "dont-stop"},
		{"snake_case stays", "snake_case-stays"},
		{"multi---dash -- words", "multi-dash-words"},
		{"Go 1.26 Release", "go-126-release"},
		{"!!!", ""},
		{"日本語", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestNextFree(t *testing.T) {
	assert.Equal(t, "a", nextFree("a", nil))
	assert.Equal(t, "a-1", nextFree("a", []string{"a"}))
	assert.Equal(t, "a-2", nextFree("a", []string{"a", "a-1"}))
	assert.Equal(t, "a-1", nextFree("a", []string{"a", "a-2"}))
}

type row struct {
	ID   uint `gorm:"primaryKey"`
	Slug string
}

func (row) TableName() string { return "posts" }

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&row{}))
	return db
}

func TestUnique_SequentialCollisions(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	var got []string
	for i := 0; i < 3; i++ {
		s, err := Unique(ctx, db, Posts, "Test Post", 0)
		require.NoError(t, err)
		require.NoError(t, db.Create(&row{Slug: s}).Error)
		got = append(got, s)
	}
	assert.Equal(t, []string{"test-post", "test-post-1", "test-post-2"}, got)
}

func TestUnique_ExcludesOwnRow(t *testing.T) {
	db := newDB(t)
	own := row{Slug: "test-post"}
	require.NoError(t, db.Create(&own).Error)

	s, err := Unique(context.Background(), db, Posts, "Test Post", own.ID)
	require.NoError(t, err)
	assert.Equal(t, "test-post", s)
}

func TestUnique_LikeWildcardsInBaseAreLiteral(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Create(&row{Slug: "a_b"}).Error)
	require.NoError(t, db.Create(&row{Slug: "axb-1"}).Error)

	s, err := Unique(context.Background(), db, Posts, "a_b", 0)
	require.NoError(t, err)
	assert.Equal(t, "a_b-1", s)
}

func TestUnique_FallbackBase(t *testing.T) {
	db := newDB(t)
	s, err := Unique(context.Background(), db, Posts, "???", 0)
	require.NoError(t, err)
	assert.Equal(t, "post", s)
}

func TestUnique_LongTitleKeepsSuffix(t *testing.T) {
	db := newDB(t)
	title := strings.Repeat("word ", 100)
	first, err := Unique(context.Background(), db, Posts, title, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(first), MaxLen)
	require.NoError(t, db.Create(&row{Slug: first}).Error)

	second, err := Unique(context.Background(), db, Posts, title, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(second), MaxLen)
	assert.True(t, strings.HasSuffix(second, "-1"))
}
