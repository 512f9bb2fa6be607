package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/redisd/internal/blocking"
	"github.com/example/redisd/internal/cluster"
	"github.com/example/redisd/internal/config"
	"github.com/example/redisd/internal/dispatch"
	"github.com/example/redisd/internal/pubsub"
	"github.com/example/redisd/internal/repl"
	"github.com/example/redisd/internal/store"
)

func newTestServer(t *testing.T, cfg config.Config) (*Server, string) {
	t.Helper()
	ks := store.NewKeyspace(cfg.Databases, store.NoopNotifier{})
	cl := cluster.NewState("127.0.0.1", cfg.Port)
	bc := blocking.NewCoordinator()
	ps := pubsub.NewRegistry()
	ov := config.NewOverlay(cfg)
	log := zap.NewNop()
	d := dispatch.New(ks, cl, bc, ps, repl.NoopSink{}, cfg, ov, log)

	cfg.Bind = "127.0.0.1"
	cfg.Port = 0
	srv := New(cfg, ks, cl, bc, ps, d, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	return srv, addr
}

func dialAndSend(t *testing.T, addr string, cmds ...string) []string {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	r := bufio.NewReader(conn)
	var out []string
	for _, cmd := range cmds {
		if _, err := conn.Write([]byte(cmd)); err != nil {
			t.Fatalf("write: %v", err)
		}
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		out = append(out, line)
	}
	return out
}

func TestPingOverTCP(t *testing.T) {
	_, addr := newTestServer(t, config.Default())

	got := dialAndSend(t, addr, "*1\r\n$4\r\nPING\r\n")
	if got[0] != "+PONG\r\n" {
		t.Fatalf("got %q", got[0])
	}
}

func TestSetGetOverTCP(t *testing.T) {
	_, addr := newTestServer(t, config.Default())

	got := dialAndSend(t, addr,
		"*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n",
		"*2\r\n$3\r\nGET\r\n$1\r\nk\r\n",
	)
	if got[0] != "+OK\r\n" {
		t.Fatalf("SET reply: %q", got[0])
	}
	if got[1] != "$1\r\n" {
		t.Fatalf("GET reply len line: %q", got[1])
	}
}

func TestMaxClientsRejectsOverCapacity(t *testing.T) {
	cfg := config.Default()
	cfg.MaxClients = 1
	_, addr := newTestServer(t, cfg)

	held, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer held.Close()
	// Give the server goroutine a moment to acquire the slot.
	time.Sleep(50 * time.Millisecond)

	rejected, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer rejected.Close()
	rejected.SetDeadline(time.Now().Add(2 * time.Second))

	r := bufio.NewReader(rejected)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line[0] != '-' {
		t.Fatalf("expected an error reply for the over-capacity connection, got %q", line)
	}
}
