package events

import (
	"context"
	"sync"
)

// Emitter delivers page events to whoever is listening.
type Emitter interface {
	Emit(ctx context.Context, name string, evt PageEvent)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, name string, evt PageEvent)

func (f EmitterFunc) Emit(ctx context.Context, name string, evt PageEvent) {
	f(ctx, name, evt)
}

// Scoped fills the page name from ctx when the event lacks one.
func Scoped(next Emitter) Emitter {
	if next == nil {
		return Discard
	}
	return EmitterFunc(func(ctx context.Context, name string, evt PageEvent) {
		if evt.PageName == "" {
			if page := PageFromContext(ctx); page != "" {
				evt.PageName = page
			}
		}
		next.Emit(ctx, name, evt)
	})
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(context.Context, string, PageEvent) {})

// Multi fans each event out to every emitter in order.
func Multi(emitters ...Emitter) Emitter {
	return EmitterFunc(func(ctx context.Context, name string, evt PageEvent) {
		for _, e := range emitters {
			if e != nil {
				e.Emit(ctx, name, evt)
			}
		}
	})
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

type Recorded struct {
	Name  string
	Event PageEvent
}

func (r *Recorder) Emit(_ context.Context, name string, evt PageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Name: name, Event: evt})
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}
