package orm

import (
	"context"
	"log/slog"
)

// Logger receives every statement a DB or Tx sends.
type Logger interface {
	Log(ctx context.Context, query string, args ...any)
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger returns a Logger that writes every statement to l at debug
// level.
//
//	db := orm.New(sqlDB, orm.SQLite).Debug(orm.NewSlogLogger(slog.Default()))
func NewSlogLogger(l *slog.Logger) Logger {
	return slogLogger{l: l}
}

func (s slogLogger) Log(ctx context.Context, query string, args ...any) {
	s.l.DebugContext(ctx, "orm query", slog.String("sql", query), slog.Any("args", args))
}
