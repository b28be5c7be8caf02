// Package wsbridge carries bridge messages over a local websocket. Used in
// development, when the UI runs in an external browser instead of the
// embedded page: the content connects to the shell's /bridge endpoint and
// the same message vocabulary rides the socket.
package wsbridge

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledgerbook/appshell/bridge"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bridge endpoint only serves the shell's own UI on localhost.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts one content connection at a time and exposes it as a
// bridge.Transport. A new connection replaces the previous one (dev reload).
type Server struct {
	logger *slog.Logger
	in     chan bridge.Message

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewServer creates an unconnected Server. Mount Handler on the UI router.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger: logger,
		in:     make(chan bridge.Message, 256),
	}
}

// Handler upgrades the content's connection and pumps inbound frames.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("wsbridge: upgrade failed", "error", err)
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		if s.conn != nil {
			s.conn.Close()
		}
		s.conn = conn
		s.mu.Unlock()

		s.logger.Info("wsbridge: content connected", "remote", r.RemoteAddr)

		if err := s.writeMessage(bridge.Message{Type: bridge.TypeNativeReady}); err != nil {
			s.logger.Warn("wsbridge: NATIVE_READY not delivered", "error", err)
		}

		for {
			var msg bridge.Message
			if err := conn.ReadJSON(&msg); err != nil {
				s.logger.Debug("wsbridge: read loop ended", "error", err)
				return
			}
			select {
			case s.in <- msg:
			default:
				s.logger.Warn("wsbridge: inbound buffer full, dropping", "type", msg.Type)
			}
		}
	}
}

// Send implements bridge.Transport. Sending with no content connected is an
// error the caller may treat as "running outside the shell".
func (s *Server) Send(ctx context.Context, msg bridge.Message) error {
	return s.writeMessage(msg)
}

func (s *Server) writeMessage(msg bridge.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return bridge.ErrClosed
	}
	if s.conn == nil {
		return bridge.ErrClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(msg)
}

// Receive implements bridge.Transport.
func (s *Server) Receive() <-chan bridge.Message { return s.in }

// Close implements bridge.Transport.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}
