// Package logging defines the structured-logging interface used across the
// server and its slog and logrus backends.
package logging

import (
	"context"

	"github.com/dmitrijs2005/campusvault/internal/common"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "wallet funded", "user_id", userID, "reference", ref)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}

// withErrorKind appends "error_kind" after an "error" pair holding an
// error, so log lines can be filtered by outcome.
func withErrorKind(args []any) []any {
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); !ok || key != "error" {
			continue
		}
		if err, ok := args[i+1].(error); ok && err != nil {
			out := make([]any, 0, len(args)+2)
			out = append(out, args...)
			return append(out, "error_kind", string(common.KindOf(err)))
		}
	}
	return args
}
