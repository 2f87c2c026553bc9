package h5store

import (
	"context"
	"log/slog"
)

// Logger wraps slog.Logger with the fields container operations log.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger on handler. A nil handler discards
// everything, which is also what a Container logs to by default.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.DiscardHandler
	}
	return &Logger{Logger: slog.New(handler)}
}

// WithContainer tags records with the file name and open mode.
func (l *Logger) WithContainer(name string, mode Mode) *Logger {
	return &Logger{Logger: l.With("file", name, "mode", mode.String())}
}

// LogFallback records a read-only open that had to fall back to
// read-write access.
func (l *Logger) LogFallback(ctx context.Context, cause error) {
	l.WarnContext(ctx, "read-only open refused, opened read-write instead",
		"error", cause,
	)
}

// LogLeakedHandles records handles Close had to release itself.
func (l *Logger) LogLeakedHandles(ctx context.Context, n int) {
	l.WarnContext(ctx, "closing container with open handles",
		"handles", n,
	)
}

// LogSharedClose records a Close that leaves the file open for other
// openers in this process.
func (l *Logger) LogSharedClose(ctx context.Context, others int) {
	l.WarnContext(ctx, "file stays open until other openers close it",
		"openers", others,
	)
}

// LogCopy logs the outcome of a CopyObject call.
func (l *Logger) LogCopy(ctx context.Context, src, dst string, objects int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "copy failed",
			"src", src,
			"dst", dst,
			"copied", objects,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "copy completed",
		"src", src,
		"dst", dst,
		"copied", objects,
	)
}
