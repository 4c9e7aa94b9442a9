// Package cache holds the shared Redis client and the cache-aside helpers
// used for post listings, taxonomy and auth state.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"blogapi/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// client is nil when Redis is not configured or unreachable; every helper
// then degrades to uncached behavior.
var client *redis.Client

// errorCounter feeds failed commands into RedisErrorRate. redis.Nil is a
// cache miss, not a failure.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countFailure(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countFailure("pipeline", err)
		return err
	}
}

func countFailure(op string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(op).Inc()
	}
}

// parseOptions accepts either host:port or a redis:// / rediss:// URL.
func parseOptions(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return opts, nil
}

// Open builds an instrumented client and verifies it answers PING.
func Open(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := parseOptions(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return c, nil
}

// InitRedis opens addr and installs it as the package client. Failure is
// logged and leaves the client nil so the API keeps serving without cache,
// rate limiting or cross-instance notifications.
func InitRedis(ctx context.Context, addr string) *redis.Client {
	c, err := Open(ctx, addr)
	if err != nil {
		slog.WarnContext(ctx, "redis unavailable, continuing without it", slog.String("error", err.Error()))
		client = nil
		return nil
	}
	slog.InfoContext(ctx, "redis connected", slog.String("addr", c.Options().Addr))
	client = c
	return c
}

// SetClient installs c as the package client, instrumenting it first.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(errorCounter{})
	}
	client = c
}

// GetClient returns the package client, or nil when Redis is unavailable.
func GetClient() *redis.Client {
	return client
}
