package daemon

import (
	"context"
	"io"
	"net/http"
	"testing"

	"audiovault/internal/logging"
)

func TestAPIServerStartStop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	srv := newAPIServer("127.0.0.1:0", handler, logging.NewNop())
	if srv == nil {
		t.Fatal("expected server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	addr := srv.addr()
	if addr == "" {
		t.Fatal("expected bound address")
	}

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "pong" {
		t.Fatalf("unexpected body %q", body)
	}

	srv.stop()
	if srv.addr() != "" {
		t.Fatal("expected listener released")
	}
}

func TestNewAPIServerDisabledWithoutBind(t *testing.T) {
	if srv := newAPIServer("  ", http.NotFoundHandler(), nil); srv != nil {
		t.Fatal("expected nil server for empty bind")
	}
	var srv *apiServer
	if err := srv.start(context.Background()); err != nil {
		t.Fatalf("nil start: %v", err)
	}
	srv.stop()
}
