package server

import (
	"context"
	"net/http"
	"testing"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               DefaultListen,
		"  ":             DefaultListen,
		"9000":           "127.0.0.1:9000",
		":9000":          ":9000",
		"0.0.0.0:9000":   "0.0.0.0:9000",
		"[::1]:9000":     "[::1]:9000",
		" 127.0.0.1:81 ": "127.0.0.1:81",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	var s Server
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Addr() != "" {
		t.Fatalf("expected empty addr, got %q", s.Addr())
	}
}

func TestNewHTTPServerLimits(t *testing.T) {
	srv := newHTTPServer("127.0.0.1:0", http.NotFoundHandler())
	if srv.MaxHeaderBytes != maxHeaderBytes {
		t.Fatalf("max header bytes = %d", srv.MaxHeaderBytes)
	}
	if srv.ReadHeaderTimeout != readHeaderTimeout {
		t.Fatalf("read header timeout = %v", srv.ReadHeaderTimeout)
	}
	if srv.WriteTimeout != 0 {
		t.Fatalf("write timeout must stay unset for websockets, got %v", srv.WriteTimeout)
	}
}
