// Package service implements the blog's business operations. Handlers
// decode requests and hand typed inputs to these services, which validate,
// consult the policy table and call the repositories.
package service

import (
	"time"

	"blogapi/internal/presenter"
)

// Listing sizes.
const (
	PostPageSize    = 9
	DefaultPageSize = 10
	TrendingLimit   = 10
	FeaturedLimit   = 5
	TrendingWindow  = 7 * 24 * time.Hour

	maxSlugAttempts = 3
)

// Pagination is a page window clamped to the available results.
type Pagination struct {
	Count      int64
	Page       int
	PageSize   int
	TotalPages int
	Offset     int
}

// Paginate clamps page into [1, TotalPages]. An empty result still has one page.
func Paginate(count int64, page, size int) Pagination {
	if size < 1 {
		size = DefaultPageSize
	}
	total := int((count + int64(size) - 1) / int64(size))
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	return Pagination{
		Count:      count,
		Page:       page,
		PageSize:   size,
		TotalPages: total,
		Offset:     (page - 1) * size,
	}
}

// NewPage wraps one page of results in the list envelope.
func NewPage[T any](p Pagination, results []T) presenter.Page[T] {
	if results == nil {
		results = []T{}
	}
	return presenter.Page[T]{
		Count:      p.Count,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		Results:    results,
	}
}
