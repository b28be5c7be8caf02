package bridge

import (
	"context"
	"log/slog"
	"sync"
)

// Handler processes one inbound message. Errors are logged by the dispatcher
// and never propagated: a failing handler must not stall the pump.
type Handler func(ctx context.Context, msg Message) error

// Dispatcher fans inbound messages out to per-type handlers. Handlers for
// the same type are called in registration order; messages of different
// types carry no relative ordering guarantee, so handlers must not assume
// one.
type Dispatcher struct {
	tr     Transport
	logger *slog.Logger

	mu       sync.Mutex
	nextID   int
	handlers map[Type][]handlerEntry
}

type handlerEntry struct {
	id int
	fn Handler
}

// NewDispatcher wraps a transport. Call Run to start the pump.
func NewDispatcher(tr Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		tr:       tr,
		logger:   logger,
		handlers: make(map[Type][]handlerEntry),
	}
}

// On registers a handler for a message type and returns its unregister
// function. Unregistering is idempotent.
func (d *Dispatcher) On(t Type, fn Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.handlers[t] = append(d.handlers[t], handlerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			entries := d.handlers[t]
			for i, e := range entries {
				if e.id == id {
					d.handlers[t] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
		})
	}
}

// Run drains the transport until ctx is cancelled. Each message is delivered
// synchronously to all handlers registered for its type; unknown types are
// logged at debug level and dropped.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.tr.Receive():
			if !ok {
				return
			}
			d.dispatch(ctx, msg)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message) {
	d.mu.Lock()
	entries := append([]handlerEntry(nil), d.handlers[msg.Type]...)
	d.mu.Unlock()

	if len(entries) == 0 {
		d.logger.Debug("bridge: no handler for message", "type", msg.Type)
		return
	}
	for _, e := range entries {
		if err := e.fn(ctx, msg); err != nil {
			d.logger.Warn("bridge: handler failed", "type", msg.Type, "error", err)
		}
	}
}
