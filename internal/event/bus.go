// Package event provides the typed event bus used to notify
// subscribers about transaction lifecycle events. One failing
// subscriber never blocks or fails the others, nor the operation that
// published the event.
package event

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Handler consumes a published event payload. The payload type is
// fixed per event name (see events.go).
type Handler func(ctx context.Context, payload any) error

// Bus is an in-process publish/subscribe registry keyed by event name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event name. Handlers run in
// registration order.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Publish invokes every subscriber for name. Handler errors and panics
// are logged and swallowed; Publish never fails the caller.
func (b *Bus) Publish(ctx context.Context, name string, payload any) {
	b.mu.RLock()
	handlers := b.handlers[name]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(ctx, name, h, payload)
	}
}

func (b *Bus) invoke(ctx context.Context, name string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", name).
				Interface("panic", r).
				Msg("event subscriber panicked")
		}
	}()

	if err := h(ctx, payload); err != nil {
		b.logger.Error().
			Str("event", name).
			Err(err).
			Msg("event subscriber failed")
	}
}
