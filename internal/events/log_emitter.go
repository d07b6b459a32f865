package events

import (
	"context"
	"log/slog"
)

// LogEmitter writes events to a structured logger.
type LogEmitter struct {
	Logger *slog.Logger
}

func (l LogEmitter) Emit(ctx context.Context, name string, event PageEvent) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	switch event.Type {
	case EventError:
		level = slog.LevelError
	case EventWarn:
		level = slog.LevelWarn
	}

	attrs := []any{"event", name, "id", event.ID, "type", string(event.Type)}
	if event.PageName != "" {
		attrs = append(attrs, "page", event.PageName)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, k, v)
	}
	logger.Log(ctx, level, event.Message, attrs...)
}
