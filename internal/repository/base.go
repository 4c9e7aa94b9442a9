// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"blogapi/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// isUniqueConstraintError checks if a DB error is a unique constraint violation
// on PostgreSQL or SQLite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, pgUniqueViolation)
}

// wrapLookup maps gorm's not-found to a NOT_FOUND AppError and anything else to INTERNAL.
func wrapLookup(err error, resource string, key interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, key)
	}
	return models.NewInternalError(err)
}

// wrapWrite maps unique violations to CONFLICT and anything else to INTERNAL.
// AppErrors pass through unchanged.
func wrapWrite(err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isUniqueConstraintError(err) {
		return models.NewConflictError(conflictMsg, err)
	}
	return models.NewInternalError(err)
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// containsPattern is a lowercase %needle% pattern for LIKE ... ESCAPE '\'.
func containsPattern(s string) string {
	return "%" + escapeLike(strings.ToLower(s)) + "%"
}

// maxTreeDepth stops subtree walks on corrupted (cyclic) parent chains.
const maxTreeDepth = 10000

// collectCommentSubtree returns roots plus every transitive reply id.
func collectCommentSubtree(tx *gorm.DB, roots []uint) ([]uint, error) {
	all := append([]uint(nil), roots...)
	seen := make(map[uint]struct{}, len(roots))
	for _, id := range roots {
		seen[id] = struct{}{}
	}

	frontier := roots
	for depth := 0; len(frontier) > 0 && depth < maxTreeDepth; depth++ {
		var children []uint
		if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return nil, err
		}
		next := children[:0]
		for _, id := range children {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			next = append(next, id)
		}
		all = append(all, next...)
		frontier = next
	}
	return all, nil
}

// deleteComments removes the given comments and their whole reply subtrees.
func deleteComments(tx *gorm.DB, roots []uint) error {
	if len(roots) == 0 {
		return nil
	}
	ids, err := collectCommentSubtree(tx, roots)
	if err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
}

// deletePosts removes posts together with their comments, likes and tag links.
func deletePosts(tx *gorm.DB, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error; err != nil {
		return err
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM post_tags WHERE post_id IN ?", postIDs).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", postIDs).Delete(&models.Post{}).Error
}
