package services

import (
	"context"
	"sync"

	"livepage/internal/events"
)

// StreamedEvent is one event as delivered to a stream subscriber.
type StreamedEvent struct {
	Name  string
	Event events.PageEvent
}

// EventEmitterService fans page events out to live subscribers. Slow
// subscribers miss events rather than blocking the emitter.
type EventEmitterService struct {
	mu          sync.Mutex
	running     bool
	nextID      int
	subscribers map[int]chan StreamedEvent
	buffer      int
}

func NewEventEmitterService() *EventEmitterService {
	return &EventEmitterService{subscribers: make(map[int]chan StreamedEvent), buffer: 16}
}

// StartStream enables delivery; it reports false when already running.
func (e *EventEmitterService) StartStream() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

// StopStream disables delivery and closes every subscription.
func (e *EventEmitterService) StopStream() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = false
	for id, ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, id)
	}
}

// Subscribe registers a listener until ctx ends or the stream stops.
func (e *EventEmitterService) Subscribe(ctx context.Context) <-chan StreamedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan StreamedEvent, e.buffer)
	if !e.running {
		close(ch)
		return ch
	}
	id := e.nextID
	e.nextID++
	e.subscribers[id] = ch

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subscribers[id]; ok {
			close(sub)
			delete(e.subscribers, id)
		}
	}()
	return ch
}

// Emit implements events.Emitter.
func (e *EventEmitterService) Emit(_ context.Context, name string, event events.PageEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	for _, ch := range e.subscribers {
		select {
		case ch <- StreamedEvent{Name: name, Event: event}:
		default:
		}
	}
}
