package shell

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// netWatch polls connectivity and reports transitions. The content only
// cares about changes, so the first probe seeds the state silently and
// every flip afterwards is delivered through onChange.
type netWatch struct {
	probeAddr string
	interval  time.Duration
	logger    *slog.Logger
	onChange  func(connected bool)
}

const (
	defaultProbeAddr    = "1.1.1.1:443"
	defaultNetInterval  = 10 * time.Second
	defaultProbeTimeout = 3 * time.Second
)

func newNetWatch(logger *slog.Logger, onChange func(bool)) *netWatch {
	return &netWatch{
		probeAddr: defaultProbeAddr,
		interval:  defaultNetInterval,
		logger:    logger,
		onChange:  onChange,
	}
}

// run blocks until ctx is cancelled, probing at the configured interval.
func (n *netWatch) run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	last := n.probe()
	n.logger.Debug("shell: connectivity seeded", "connected", last)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := n.probe()
			if cur != last {
				n.logger.Info("shell: connectivity changed", "connected", cur)
				n.onChange(cur)
				last = cur
			}
		}
	}
}

func (n *netWatch) probe() bool {
	conn, err := net.DialTimeout("tcp", n.probeAddr, defaultProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
