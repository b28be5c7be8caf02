// Package uiserve serves the bundled web UI to the embedded page over a
// local HTTP listener. Client-side routed paths fall back to index.html so
// a deep link into /loans/42 still loads the application shell.
package uiserve

import (
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server hosts the UI assets. Create with New, then Start.
type Server struct {
	assets fs.FS
	logger *slog.Logger
	router chi.Router

	ln   net.Listener
	http *http.Server
}

// New builds the UI server over an asset filesystem. Extra routes (e.g. the
// dev websocket bridge) can be mounted before Start via Router.
func New(assets fs.FS, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{assets: assets, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.NotFound(s.serveAsset)
	s.router = r
	return s
}

// Router exposes the underlying router for extra mounts before Start.
func (s *Server) Router() chi.Router { return s.router }

// Start listens on addr and serves until Close. It returns the bound
// address, which matters when addr requests an ephemeral port.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	s.ln = ln
	s.http = &http.Server{Handler: s.router}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("uiserve: serve failed", "error", err)
		}
	}()

	s.logger.Info("uiserve: listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Close stops the listener.
func (s *Server) Close() error {
	if s.http == nil {
		return nil
	}
	return s.http.Close()
}

// serveAsset serves a static file, falling back to index.html for paths
// that look like client-side routes (no file extension, not found).
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}

	f, err := s.assets.Open(name)
	if err != nil {
		if path.Ext(name) == "" {
			s.serveIndex(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}
	f.Close()

	http.FileServerFS(s.assets).ServeHTTP(w, r)
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(s.assets, "index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}
