package server

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Server wraps an *http.Server to provide start/shutdown lifecycle.
type Server struct {
	httpServer *http.Server
}

const (
	maxHeaderBytes    = 1 << 20 // 1 MB
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second

	// DefaultListen keeps the control API on loopback.
	DefaultListen = "127.0.0.1:8741"
)

// newHTTPServer builds a configured *http.Server for the given address and handler.
// WriteTimeout stays unset: /ws connections are long-lived.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		MaxHeaderBytes:    maxHeaderBytes,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// normalizeAddr accepts "host:port", ":port" or a bare "port". A bare port
// binds to loopback only.
func normalizeAddr(listen string) string {
	listen = strings.TrimSpace(listen)
	switch {
	case listen == "":
		return DefaultListen
	case strings.Contains(listen, ":"):
		return listen
	default:
		return "127.0.0.1:" + listen
	}
}

// Run starts the HTTP server on listen using the provided handler. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Run(listen string, handler http.Handler) error {
	s.httpServer = newHTTPServer(normalizeAddr(listen), handler)
	return s.httpServer.ListenAndServe()
}

// Addr is the address the server was started with, or "" before Run.
func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// Shutdown gracefully stops the server, allowing in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
