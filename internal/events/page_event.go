package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInfo    EventType = "info"
	EventWarn    EventType = "warn"
	EventSuccess EventType = "success"
	EventError   EventType = "error"
)

const (
	PageEventTransform = "event:page:transform"
	PageEventUpdated   = "event:page:updated"
	PageEventMigrated  = "event:page:migrated"
	PageEventDeleted   = "event:page:deleted"
)

// PageEvent is the payload emitted when a page changes or a transform ends.
type PageEvent struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	PageName  string            `json:"pageName,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type contextKey string

const pageContextKey contextKey = "livepage/events/page"

// WithPage returns a derived context annotated with the given page name
// so event emitters can automatically scope payloads.
func WithPage(ctx context.Context, pageName string) context.Context {
	if strings.TrimSpace(pageName) == "" {
		return ctx
	}
	return context.WithValue(ctx, pageContextKey, pageName)
}

// PageFromContext extracts the page name associated with ctx.
func PageFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(pageContextKey).(string); ok {
		return v
	}
	return ""
}

func CreatePageEvent(eventType EventType, message string) PageEvent {
	return PageEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewInfo creates an info PageEvent.
func NewInfo(message string) PageEvent {
	return CreatePageEvent(EventInfo, message)
}

// NewWarn creates a warn PageEvent.
func NewWarn(message string) PageEvent {
	return CreatePageEvent(EventWarn, message)
}

// NewError creates an error PageEvent.
func NewError(message string) PageEvent {
	return CreatePageEvent(EventError, message)
}

// NewSuccess creates a success PageEvent.
func NewSuccess(message string) PageEvent {
	return CreatePageEvent(EventSuccess, message)
}

// With returns a copy of evt carrying an extra metadata entry.
func (evt PageEvent) With(key, value string) PageEvent {
	meta := make(map[string]string, len(evt.Metadata)+1)
	for k, v := range evt.Metadata {
		meta[k] = v
	}
	meta[key] = value
	evt.Metadata = meta
	return evt
}
