package wsbridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledgerbook/appshell/bridge"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNativeReadyOnConnect(t *testing.T) {
	s := NewServer(nil)
	defer s.Close()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	var msg bridge.Message
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != bridge.TypeNativeReady {
		t.Fatalf("first frame: got %s, want NATIVE_READY", msg.Type)
	}
}

func TestContentToShell(t *testing.T) {
	s := NewServer(nil)
	defer s.Close()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	if err := conn.WriteJSON(bridge.Message{Type: bridge.TypeAppReady}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	select {
	case msg := <-s.Receive():
		if msg.Type != bridge.TypeAppReady {
			t.Fatalf("got %s, want APP_READY", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("message never reached the shell end")
	}
}

func TestShellToContent(t *testing.T) {
	s := NewServer(nil)
	defer s.Close()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	// Drain NATIVE_READY first.
	var msg bridge.Message
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	out, err := bridge.New(bridge.TypeDeepLink, bridge.DeepLink{Path: "/loans"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Give the read pump a moment to store the connection.
	time.Sleep(10 * time.Millisecond)
	if err := s.Send(context.Background(), out); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if msg.Type != bridge.TypeDeepLink {
		t.Fatalf("got %s, want DEEP_LINK", msg.Type)
	}
	var p bridge.DeepLink
	if err := msg.Decode(&p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Path != "/loans" {
		t.Errorf("path: got %q", p.Path)
	}
}

func TestSendWithoutConnection(t *testing.T) {
	s := NewServer(nil)
	defer s.Close()

	err := s.Send(context.Background(), bridge.Message{Type: bridge.TypeThemeChange})
	if err != bridge.ErrClosed {
		t.Fatalf("Send without connection: got %v, want ErrClosed", err)
	}
}
