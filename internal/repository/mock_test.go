package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"blogapi/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestIsUniqueConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"pg other error", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite message", errors.New("UNIQUE constraint failed: posts.slug"), true},
		{"unrelated", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueConstraintError(tt.err))
		})
	}
}

func TestWrapWrite(t *testing.T) {
	assert.NoError(t, wrapWrite(nil, "x"))
	assert.True(t, models.HasCode(wrapWrite(&pgconn.PgError{Code: "23505"}, "dup"), models.CodeConflict))
	assert.True(t, models.HasCode(wrapWrite(errors.New("boom"), "dup"), models.CodeInternal))

	nf := models.NewNotFoundError("Post", 3)
	assert.Same(t, nf, wrapWrite(nf, "dup"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_done\\`, escapeLike(`100% _done\`))
	assert.Equal(t, `%go\_lang%`, containsPattern("Go_Lang"))
}

func TestPostRepository_ToggleLike_RaceIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "likes" WHERE post_id = $1 AND user_id = $2`)).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "likes"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_likes_post_user"})
	mock.ExpectRollback()

	liked, count, err := repo.ToggleLike(context.Background(), 1, 2)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.False(t, liked)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_IncrementViews_SingleAtomicUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "views_count"=views_count + $1 WHERE id = $2`)).
		WithArgs(1, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .*views_count.* FROM "posts" WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"views_count"}).AddRow(42))
	mock.ExpectCommit()

	views, err := repo.IncrementViews(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(42), views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_IncrementViews_Missing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "views_count"=views_count + $1 WHERE id = $2`)).
		WithArgs(1, 99).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.IncrementViews(context.Background(), 99)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
