package sim

import (
	"context"
	"log/slog"
	"reflect"
)

// Named is an object that has a name.
type Named interface {
	Name() string
}

// EventLogger is a hook that logs every event before it is handled.
type EventLogger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewEventLogger returns a new EventLogger which writes to the logger at the
// given level.
func NewEventLogger(logger *slog.Logger, level slog.Level) *EventLogger {
	return &EventLogger{logger: logger, level: level}
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	bg := context.Background()
	if !h.logger.Enabled(bg, h.level) {
		return
	}

	attrs := []any{
		"time", float64(evt.Time()),
		"event", reflect.TypeOf(evt).String(),
	}

	if named, ok := evt.Handler().(Named); ok {
		attrs = append(attrs, "handler", named.Name())
	}

	h.logger.Log(bg, h.level, "event", attrs...)
}
