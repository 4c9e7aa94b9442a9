package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	TrendingPostsKey = "posts:trending"
	FeaturedPostsKey = "posts:featured"
	CategoryListKey  = "taxonomy:categories"
	TagListKey       = "taxonomy:tags"

	blacklistKeyPrefix = "blacklist:%s"
	wsTicketKeyPrefix  = "ws_ticket:%s"
)

const (
	PostListTTL = time.Minute
	TaxonomyTTL = 10 * time.Minute
	WSTicketTTL = 60 * time.Second
)

// BlacklistKey is the key marking a revoked token id.
func BlacklistKey(jti string) string {
	return fmt.Sprintf(blacklistKeyPrefix, jti)
}

// WSTicketKey is the key holding the user id a websocket ticket was issued to.
func WSTicketKey(ticket string) string {
	return fmt.Sprintf(wsTicketKeyPrefix, ticket)
}

// Invalidate removes the given keys. Errors are ignored; entries expire on their own.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidatePostLists drops the cached trending and featured selections.
func InvalidatePostLists(ctx context.Context) {
	Invalidate(ctx, TrendingPostsKey, FeaturedPostsKey)
}

// InvalidateTaxonomy drops the cached category and tag listings.
func InvalidateTaxonomy(ctx context.Context) {
	Invalidate(ctx, CategoryListKey, TagListKey)
}
