package shell

import (
	"context"

	"github.com/ledgerbook/appshell/bridge"
	"github.com/ledgerbook/appshell/journal"
)

// journalTap wraps a transport and records every frame that crosses it.
// Inbound frames are re-pumped through an intermediate channel so the
// dispatcher sees them unchanged; a slow journal never delays delivery
// because Record is lossy and non-blocking.
type journalTap struct {
	inner bridge.Transport
	jrn   *journal.Journal
	nav   func() uint64

	in     chan bridge.Message
	cancel context.CancelFunc
}

func newJournalTap(inner bridge.Transport, jrn *journal.Journal, nav func() uint64) *journalTap {
	ctx, cancel := context.WithCancel(context.Background())
	t := &journalTap{
		inner:  inner,
		jrn:    jrn,
		nav:    nav,
		in:     make(chan bridge.Message, 256),
		cancel: cancel,
	}
	go t.pump(ctx)
	return t
}

func (t *journalTap) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-t.inner.Receive():
			if !ok {
				return
			}
			t.jrn.Record(journal.Entry{
				Kind:    journal.KindMessageIn,
				Subject: string(msg.Type),
				Nav:     t.nav(),
				Detail:  string(msg.Payload),
			})
			select {
			case t.in <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *journalTap) Send(ctx context.Context, msg bridge.Message) error {
	err := t.inner.Send(ctx, msg)
	if err == nil {
		t.jrn.Record(journal.Entry{
			Kind:    journal.KindMessageOut,
			Subject: string(msg.Type),
			Nav:     t.nav(),
			Detail:  string(msg.Payload),
		})
	}
	return err
}

func (t *journalTap) Receive() <-chan bridge.Message { return t.in }

func (t *journalTap) Close() error {
	t.cancel()
	return t.inner.Close()
}
