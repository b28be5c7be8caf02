package bridge

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send after the transport has been closed.
var ErrClosed = errors.New("bridge: transport closed")

// Transport is one end of the duplex channel. Send is fire-and-forget: a nil
// error means the message was handed to the transport, not that the far end
// processed it. Receive returns the inbound channel; consumers stop draining
// it by cancelling their own context, never by waiting for it to close.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Receive() <-chan Message
	Close() error
}

// pipeEnd is one half of an in-process transport pair.
type pipeEnd struct {
	out chan<- Message
	in  <-chan Message

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Pipe returns two connected in-process transports. Whatever is sent on one
// end arrives on the other in order. Used for tests and for hosting the
// content runtime in the same process as the shell.
func Pipe() (Transport, Transport) {
	ab := make(chan Message, 64)
	ba := make(chan Message, 64)
	a := &pipeEnd{out: ab, in: ba, done: make(chan struct{})}
	b := &pipeEnd{out: ba, in: ab, done: make(chan struct{})}
	return a, b
}

func (p *pipeEnd) Send(ctx context.Context, msg Message) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive() <-chan Message { return p.in }

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return nil
}
