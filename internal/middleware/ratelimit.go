package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"blogapi/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

var errNoStore = errors.New("rate limit store not configured")

// Quota is the outcome of one fixed-window counter check.
type Quota struct {
	Allowed   bool
	Remaining int
	// Reset is how long until the window restarts.
	Reset time.Duration
}

func rateLimitingEnabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return false
	}
	return true
}

// CheckRateLimit counts one hit for id against resource in a fixed window.
// Rate limiting is disabled when APP_ENV is unset, "test", "development"
// or "stress" so dev and load test workflows are not throttled.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (Quota, error) {
	if !rateLimitingEnabled() {
		return Quota{Allowed: true, Remaining: limit, Reset: window}, nil
	}
	if rdb == nil {
		return Quota{}, errNoStore
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return Quota{}, err
	}

	count := int(incr.Val())
	q := Quota{Allowed: count <= limit, Remaining: max(limit-count, 0), Reset: ttl.Val()}
	if q.Reset <= 0 {
		q.Reset = window
	}
	return q, nil
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`.
// It keys by the authenticated user when auth ran first, otherwise by
// remote IP. It defaults to FailOpen policy.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy returns a Fiber middleware enforcing `limit` requests per `window` with a specific failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		id := "ip:" + c.IP()
		if uid, ok := UserID(c); ok {
			id = "user:" + strconv.FormatUint(uint64(uid), 10)
		}
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		q, err := CheckRateLimit(ctx, rdb, resource, id, limit, window)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limit store unavailable, failing closed",
				slog.String("resource", resource),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Rate limiting is temporarily unavailable",
				Code:  models.CodeInternal,
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
		if !q.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(q.Reset.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, slow down",
				Code:  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
