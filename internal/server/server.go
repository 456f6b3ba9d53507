package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/stockcast/stockcast/internal/feed"
	"github.com/stockcast/stockcast/internal/session"
)

// Server accepts WebSocket clients and binds each connection to its own
// session over a shared feed registry.
type Server struct {
	cfg      Config
	registry *feed.Registry
	logger   *slog.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener

	mu      sync.Mutex
	conns   map[*conn]struct{}
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// New creates a server for the given registry. A nil logger falls back to
// slog.Default. Zero config fields take their defaults.
func New(registry *feed.Registry, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	s := &Server{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		conns:    make(map[*conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Start binds the listen address and begins serving upgrades. It returns
// once the listener is ready, so Addr is valid immediately after.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WSPath, s.handleWS)
	s.httpSrv = &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()

	s.logger.Info("websocket server listening",
		"addr", ln.Addr().String(),
		"path", s.cfg.WSPath)
	return nil
}

// Stop tears down every live connection, stops the HTTP server, and waits
// for connection handlers to finish. Upgraded connections are hijacked from
// the HTTP server, so Shutdown alone would not reach them.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	var shutdownErr error
	if s.httpSrv != nil {
		shutdownErr = s.httpSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("websocket server stopped")
	return shutdownErr
}

// Addr returns the bound listen address, useful when the configured address
// requests an ephemeral port.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SessionCount returns the number of live connections.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// handleWS upgrades the request and services the connection until it closes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		s.logger.Warn("websocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err)
		return
	}

	sess := session.New(s.registry, s.cfg.Session, s.logger)
	c := newConn(s, ws, sess, s.cfg, s.logger)
	if !s.addConn(c) {
		c.close()
		return
	}

	s.logger.Info("client connected",
		"remote_addr", r.RemoteAddr,
		"session_id", sess.ID())

	c.run()
}

func (s *Server) addConn(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c]; !ok {
		return
	}
	delete(s.conns, c)
	s.wg.Done()
}

// checkOrigin admits requests whose Origin header matches the configured
// allowlist. An empty allowlist or an absent header admits everything, which
// keeps non-browser clients working.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
