package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// gormLogger sends GORM output to slog so SQL lines carry the request,
// user and trace ids added by the context handler.
type gormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newGormLogger(l *slog.Logger) *gormLogger {
	return &gormLogger{log: l, level: logger.Warn, slow: defaultSlowQuery}
}

func (g *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	g.printf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (g *gormLogger) printf(ctx context.Context, min logger.LogLevel, lvl slog.Level, msg string, args []interface{}) {
	if g.level >= min {
		g.log.Log(ctx, lvl, fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed statements at error, slow ones at warn and, in Info
// mode, everything else at debug. A missing record is not a failure.
func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		lvl slog.Level
		msg string
	)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= logger.Error:
		lvl, msg = slog.LevelError, "sql failed"
	case g.slow > 0 && elapsed > g.slow && g.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "slow sql"
	case g.level >= logger.Info:
		lvl, msg = slog.LevelDebug, "sql"
	default:
		return
	}

	stmt, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", stmt),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if lvl == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.log.LogAttrs(ctx, lvl, msg, attrs...)
}
