// Package rodbridge carries bridge messages across the CDP boundary to a
// page driven by Rod. Content→shell frames ride a Runtime.addBinding
// binding; shell→content frames are dispatched by evaluating a call into
// the window-level handler installed by the injected bootstrap.
package rodbridge

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ledgerbook/appshell/bridge"
)

//go:embed bootstrap.js
var bootstrapJS string

const bindingName = "__appshell_binding"

// Transport is the shell end of a CDP-backed bridge. Create with Attach.
type Transport struct {
	page   *rod.Page
	logger *slog.Logger

	in     chan bridge.Message
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Attach wires the bridge onto an already-created page and injects the
// content-side bootstrap. It sends NATIVE_READY once the binding is live so
// the content knows it may begin sending.
func Attach(page *rod.Page, logger *slog.Logger) (*Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		page:   page,
		logger: logger,
		in:     make(chan bridge.Message, 256),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		cancel()
		return nil, fmt.Errorf("rodbridge: add binding: %w", err)
	}
	go t.listen()

	// Re-inject on every navigation so a full reload keeps its bridge, then
	// install it on the current document too.
	if _, err := page.EvalOnNewDocument(bootstrapJS); err != nil {
		logger.Warn("rodbridge: persistent bootstrap failed", "error", err)
	}
	if _, err := page.Eval(bootstrapJS); err != nil {
		cancel()
		return nil, fmt.Errorf("rodbridge: inject bootstrap: %w", err)
	}

	if err := t.Send(ctx, bridge.Message{Type: bridge.TypeNativeReady}); err != nil {
		logger.Warn("rodbridge: NATIVE_READY not delivered", "error", err)
	}
	return t, nil
}

// listen receives binding calls from the content and feeds the inbound
// channel. Malformed frames are logged and dropped, never fatal.
func (t *Transport) listen() {
	t.page.Context(t.ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var msg bridge.Message
		if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
			t.logger.Warn("rodbridge: malformed frame", "error", err)
			return
		}
		select {
		case t.in <- msg:
		case <-t.ctx.Done():
		default:
			t.logger.Warn("rodbridge: inbound buffer full, dropping", "type", msg.Type)
		}
	})()
}

// Send implements bridge.Transport by evaluating the frame into the
// content's window handler.
func (t *Transport) Send(ctx context.Context, msg bridge.Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return bridge.ErrClosed
	}
	t.mu.Unlock()

	payload := "null"
	if len(msg.Payload) > 0 {
		payload = string(msg.Payload)
	}
	js := `(type, payload) => window.__appshell_receive(type, payload)`
	_, err := t.page.Context(ctx).Eval(js, string(msg.Type), json.RawMessage(payload))
	if err != nil {
		return fmt.Errorf("rodbridge: send %s: %w", msg.Type, err)
	}
	return nil
}

// Receive implements bridge.Transport.
func (t *Transport) Receive() <-chan bridge.Message { return t.in }

// Close implements bridge.Transport. The page itself is owned by the shell
// and left open.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()
	return nil
}
