package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"messagecore/pkg/domain"
)

// Listener is notified after a successful mutation with a copy of the
// resulting record. Errors and panics are logged and never reach the caller
// of the operation.
type Listener func(ctx context.Context, event domain.Event, record domain.Record) error

// Emitter fans mutation events out to listeners in subscription order.
// Subscribing is allowed at any time, including while an event is delivered.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[domain.Event][]Listener
	logger    Logger
}

// NewEmitter returns an emitter that reports listener failures to logger.
func NewEmitter(logger Logger) *Emitter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Emitter{
		listeners: make(map[domain.Event][]Listener),
		logger:    logger,
	}
}

// On subscribes listener to event.
func (e *Emitter) On(event domain.Event, listener Listener) {
	if listener == nil {
		return
	}
	e.mu.Lock()
	e.listeners[event] = append(e.listeners[event], listener)
	e.mu.Unlock()
}

// OnAll subscribes listener to every mutation event.
func (e *Emitter) OnAll(listener Listener) {
	for _, ev := range domain.Events {
		e.On(ev, listener)
	}
}

// ListenerCount reports how many listeners are subscribed to event.
func (e *Emitter) ListenerCount(event domain.Event) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

// Emit delivers record to the listeners subscribed when Emit was called.
func (e *Emitter) Emit(ctx context.Context, event domain.Event, record domain.Record) {
	e.mu.RLock()
	listeners := append([]Listener(nil), e.listeners[event]...)
	e.mu.RUnlock()

	for i, listener := range listeners {
		if err := e.deliver(ctx, listener, event, record.Clone()); err != nil {
			e.logger.Error("event listener failed", "event", string(event), "listener", i, "error", err)
		}
	}
}

func (e *Emitter) deliver(ctx context.Context, listener Listener, event domain.Event, record domain.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v\n%s", r, debug.Stack())
		}
	}()
	return listener(ctx, event, record)
}
