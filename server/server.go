// Package server is the admin/introspection HTTP surface: a health check,
// a registry dump of every map actor, and a live WebSocket push of map and
// connection-monitor status for operator tooling. It is not part of the
// topology-sync data path — nothing here feeds the SSE → pub/sub →
// map-actor pipeline.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/logger"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// MapSource returns a status snapshot of every registered map actor.
type MapSource func() []MapStatus

// ConnSource returns a status snapshot of every monitored connection.
type ConnSource func() []ConnectionStatus

// LicenseSource returns the current license state, or nil if unavailable.
type LicenseSource func() *LicenseStatus

// Server is the admin HTTP server: /healthz, /maps, /ws/status.
type Server struct {
	logger *zap.SugaredLogger
	http   *http.Server
	hub    *hub

	mapSource     MapSource
	connSource    ConnSource
	licenseSource LicenseSource

	pushInterval time.Duration
	upgrader     websocket.Upgrader

	stopPush chan struct{}
}

// Option configures a Server at construction.
type Option func(*Server)

// WithPushInterval overrides how often the status feed pushes to
// connected clients. Default 2s.
func WithPushInterval(d time.Duration) Option {
	return func(s *Server) { s.pushInterval = d }
}

// WithCheckOrigin overrides the WebSocket upgrader's origin check.
// Defaults to allowing any origin, since this is an operator-facing
// introspection endpoint, not a browser-facing one with CSRF exposure.
func WithCheckOrigin(f func(*http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = f }
}

// New builds a Server bound to addr (e.g. "0.0.0.0:4000"). The three
// sources are polled on each /ws/status push tick and served directly by
// /healthz and /maps.
func New(addr string, mapSource MapSource, connSource ConnSource, licenseSource LicenseSource, opts ...Option) *Server {
	s := &Server{
		logger:        logger.ComponentLogger("server").With(logger.FieldSymbol, logger.SymbolServer),
		hub:           newHub(),
		mapSource:     mapSource,
		connSource:    connSource,
		licenseSource: licenseSource,
		pushInterval:  2 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		stopPush: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/maps", s.handleMaps)
	mux.HandleFunc("/maps/", s.handleMapDetail)
	mux.HandleFunc("/ws/status", s.handleWSStatus)

	s.http = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Start binds the listener and begins serving in the background, along
// with the periodic status-push loop. It returns once the listener is
// bound, so the caller can rely on the server being reachable immediately
// after Start returns.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrapf(err, "server: listen on %s", s.http.Addr)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("admin server exited", "error", err)
		}
	}()
	go s.pushLoop(ctx)

	s.logger.Infow("admin server started", "addr", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the HTTP server and status-push loop.
func (s *Server) Stop(ctx context.Context) error {
	close(s.stopPush)
	if err := s.http.Shutdown(ctx); err != nil {
		return errors.Wrapf(err, "server: shutdown")
	}
	return nil
}

func (s *Server) pushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopPush:
			return
		case <-ticker.C:
			if s.hub.count() == 0 {
				continue
			}
			s.broadcastStatus()
		}
	}
}

func (s *Server) broadcastStatus() {
	msg := StatusMessage{
		Type:        "status",
		Timestamp:   time.Now().Unix(),
		Maps:        s.mapSource(),
		Connections: s.connSource(),
		License:     s.licenseSource(),
	}
	sent := s.hub.broadcast(msg)
	s.logger.Debugw("broadcasted status", "clients", sent, "maps", len(msg.Maps))
}
