package audit

import (
	"context"
	"log/slog"
)

// Recorder persists invocations. *Store implements it.
type Recorder interface {
	Record(ctx context.Context, inv *Invocation) error
}

// Logger wraps a Recorder and emits structured logs alongside DB writes.
type Logger struct {
	rec Recorder
	log *slog.Logger
}

// NewLogger creates an audit logger backed by rec.
func NewLogger(rec Recorder, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{rec: rec, log: log}
}

// Record persists and logs the invocation.
func (l *Logger) Record(ctx context.Context, inv *Invocation) error {
	if err := l.rec.Record(ctx, inv); err != nil {
		l.log.ErrorContext(ctx, "audit record failed",
			"invocation_id", inv.ID.String(),
			"tool", inv.Tool,
			"error", err,
		)
		return err
	}

	l.log.DebugContext(ctx, "tool_invocation recorded",
		"invocation_id", inv.ID.String(),
		"tool", inv.Tool,
		"status", inv.Status,
		"hash", inv.Hash,
	)
	return nil
}
