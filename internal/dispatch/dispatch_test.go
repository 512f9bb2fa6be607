package dispatch

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/redisd/internal/blocking"
	"github.com/example/redisd/internal/cluster"
	"github.com/example/redisd/internal/config"
	"github.com/example/redisd/internal/pubsub"
	"github.com/example/redisd/internal/repl"
	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/session"
	"github.com/example/redisd/internal/store"
)

// newTestDispatcher wires a full in-memory stack the same way cmd/redisd
// does, minus the TCP listener — enough to run Dispatch directly.
func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cfg := config.Default()
	ks := store.NewKeyspace(cfg.Databases, store.NoopNotifier{})
	cl := cluster.NewState("127.0.0.1", cfg.Port)
	bc := blocking.NewCoordinator()
	ps := pubsub.NewRegistry()
	ov := config.NewOverlay(cfg)
	return New(ks, cl, bc, ps, repl.NoopSink{}, cfg, ov, zap.NewNop())
}

// newTestSession returns a Session backed by an in-memory net.Pipe end, so
// handlers that write directly to the session (SUBSCRIBE et al.) have
// somewhere to send bytes without a real socket.
func newTestSession(t *testing.T, id int64) *session.Session {
	t.Helper()
	client, srv := net.Pipe()
	t.Cleanup(func() { client.Close(); srv.Close() })
	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()
	return session.New(id, srv)
}

func dispatchArgv(t *testing.T, d *Dispatcher, s *session.Session, parts ...string) resp.Message {
	t.Helper()
	argv := make([][]byte, len(parts))
	for i, p := range parts {
		argv[i] = []byte(p)
	}
	return d.Dispatch(context.Background(), s, argv)
}

func TestPingCommand(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	got := dispatchArgv(t, d, s, "PING")
	if got.Type != resp.SimpleString || got.Str != "PONG" {
		t.Fatalf("PING = %+v", got)
	}
}

func TestSetGetDel(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	if got := dispatchArgv(t, d, s, "SET", "k", "v"); got.Type != resp.SimpleString || got.Str != "OK" {
		t.Fatalf("SET = %+v", got)
	}
	got := dispatchArgv(t, d, s, "GET", "k")
	if got.Type != resp.BulkString || string(got.Bulk) != "v" {
		t.Fatalf("GET = %+v", got)
	}
	if got := dispatchArgv(t, d, s, "DEL", "k"); got.Type != resp.Integer || got.Int != 1 {
		t.Fatalf("DEL = %+v", got)
	}
	got = dispatchArgv(t, d, s, "GET", "k")
	if got.Type != resp.BulkString || !got.BulkNull {
		t.Fatalf("GET after DEL = %+v", got)
	}
}

func TestWrongArity(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	got := dispatchArgv(t, d, s, "GET")
	if got.Type != resp.Error {
		t.Fatalf("expected an arity error, got %+v", got)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	got := dispatchArgv(t, d, s, "NOTACOMMAND", "x")
	if got.Type != resp.Error {
		t.Fatalf("expected an unknown-command error, got %+v", got)
	}
}

func TestWrongType(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "RPUSH", "k", "a")
	got := dispatchArgv(t, d, s, "GET", "k")
	if got.Type != resp.Error || got.Str[:9] != "WRONGTYPE" {
		t.Fatalf("expected WRONGTYPE, got %+v", got)
	}
}

func TestExpireAndTTL(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "SET", "k", "v")
	if got := dispatchArgv(t, d, s, "EXPIRE", "k", "100"); got.Type != resp.Integer || got.Int != 1 {
		t.Fatalf("EXPIRE = %+v", got)
	}
	got := dispatchArgv(t, d, s, "TTL", "k")
	if got.Type != resp.Integer || got.Int <= 0 || got.Int > 100 {
		t.Fatalf("TTL = %+v", got)
	}
	if got := dispatchArgv(t, d, s, "PERSIST", "k"); got.Type != resp.Integer || got.Int != 1 {
		t.Fatalf("PERSIST = %+v", got)
	}
	got = dispatchArgv(t, d, s, "TTL", "k")
	if got.Type != resp.Integer || got.Int != -1 {
		t.Fatalf("TTL after PERSIST = %+v", got)
	}
}

func TestHashCommands(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	if got := dispatchArgv(t, d, s, "HSET", "h", "f1", "v1", "f2", "v2"); got.Type != resp.Integer || got.Int != 2 {
		t.Fatalf("HSET = %+v", got)
	}
	got := dispatchArgv(t, d, s, "HGET", "h", "f1")
	if got.Type != resp.BulkString || string(got.Bulk) != "v1" {
		t.Fatalf("HGET = %+v", got)
	}
	if got := dispatchArgv(t, d, s, "HLEN", "h"); got.Type != resp.Integer || got.Int != 2 {
		t.Fatalf("HLEN = %+v", got)
	}
}

func TestListCommands(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "RPUSH", "l", "a", "b", "c")
	got := dispatchArgv(t, d, s, "LRANGE", "l", "0", "-1")
	if got.Type != resp.Array || len(got.Elems) != 3 {
		t.Fatalf("LRANGE = %+v", got)
	}
	if got := dispatchArgv(t, d, s, "LPOP", "l"); got.Type != resp.BulkString || string(got.Bulk) != "a" {
		t.Fatalf("LPOP = %+v", got)
	}
}

func TestSetCommands(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	if got := dispatchArgv(t, d, s, "SADD", "s", "a", "b", "a"); got.Type != resp.Integer || got.Int != 2 {
		t.Fatalf("SADD = %+v", got)
	}
	if got := dispatchArgv(t, d, s, "SCARD", "s"); got.Type != resp.Integer || got.Int != 2 {
		t.Fatalf("SCARD = %+v", got)
	}
	if got := dispatchArgv(t, d, s, "SISMEMBER", "s", "a"); got.Type != resp.Integer || got.Int != 1 {
		t.Fatalf("SISMEMBER = %+v", got)
	}
}

func TestZSetCommands(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "ZADD", "z", "1", "a", "2", "b")
	got := dispatchArgv(t, d, s, "ZRANGE", "z", "0", "-1")
	if got.Type != resp.Array || len(got.Elems) != 2 {
		t.Fatalf("ZRANGE = %+v", got)
	}
	if got := dispatchArgv(t, d, s, "ZSCORE", "z", "a"); got.Type != resp.BulkString || string(got.Bulk) != "1" {
		t.Fatalf("ZSCORE = %+v", got)
	}
}

func TestMultiExecTransaction(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	if got := dispatchArgv(t, d, s, "MULTI"); got.Type != resp.SimpleString || got.Str != "OK" {
		t.Fatalf("MULTI = %+v", got)
	}
	got := dispatchArgv(t, d, s, "SET", "k", "v")
	if got.Type != resp.SimpleString || got.Str != "QUEUED" {
		t.Fatalf("queued SET = %+v", got)
	}
	got = dispatchArgv(t, d, s, "EXEC")
	if got.Type != resp.Array || len(got.Elems) != 1 {
		t.Fatalf("EXEC = %+v", got)
	}
	if s.InMulti {
		t.Fatal("expected MULTI state cleared after EXEC")
	}
}

func TestSubscribeConfinesClient(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "SUBSCRIBE", "ch")
	if !s.Subscribed {
		t.Fatal("expected Subscribed after SUBSCRIBE")
	}
	got := dispatchArgv(t, d, s, "SET", "k", "v")
	if got.Type != resp.Error {
		t.Fatalf("expected SET to be rejected while subscribed, got %+v", got)
	}
	got = dispatchArgv(t, d, s, "PING")
	if got.Type != resp.SimpleString {
		t.Fatalf("expected PING to still work while subscribed, got %+v", got)
	}
}

func TestConfigGetSet(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	got := dispatchArgv(t, d, s, "CONFIG", "SET", "maxmemory", "1000")
	if got.Type != resp.SimpleString || got.Str != "OK" {
		t.Fatalf("CONFIG SET = %+v", got)
	}
	got = dispatchArgv(t, d, s, "CONFIG", "GET", "maxmemory")
	if got.Type != resp.Array || len(got.Elems) != 2 || string(got.Elems[1].Bulk) != "1000" {
		t.Fatalf("CONFIG GET = %+v", got)
	}
}

func TestWatchExecDoNotDeadlock(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatchArgv(t, d, s, "WATCH", "k")
		dispatchArgv(t, d, s, "MULTI")
		dispatchArgv(t, d, s, "SET", "k", "v")
		dispatchArgv(t, d, s, "EXEC")
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WATCH/MULTI/EXEC sequence deadlocked")
	}
}

func TestInfoDoesNotDeadlock(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatchArgv(t, d, s, "SET", "k", "v")
		dispatchArgv(t, d, s, "INFO")
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("INFO deadlocked against the session's own database lock")
	}
}

func TestCopyDoesNotAliasSourceValue(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "RPUSH", "src", "a", "b")
	if got := dispatchArgv(t, d, s, "COPY", "src", "dst"); got.Type != resp.Integer || got.Int != 1 {
		t.Fatalf("COPY = %+v", got)
	}

	dispatchArgv(t, d, s, "RPUSH", "dst", "c")

	got := dispatchArgv(t, d, s, "LRANGE", "src", "0", "-1")
	if got.Type != resp.Array || len(got.Elems) != 2 {
		t.Fatalf("expected src untouched by a write to dst, got %+v", got)
	}
}

func TestZAddNXGTOnExistingKeyIsNoOp(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "ZADD", "z", "5", "a")
	got := dispatchArgv(t, d, s, "ZADD", "z", "NX", "GT", "1", "a")
	if got.Type != resp.Integer || got.Int != 0 {
		t.Fatalf("ZADD NX GT on an existing member = %+v, want 0 no-op", got)
	}
	score := dispatchArgv(t, d, s, "ZSCORE", "z", "a")
	if score.Type != resp.BulkString || string(score.Bulk) != "5" {
		t.Fatalf("score changed by a no-op ZADD NX GT: %+v", score)
	}
}

func TestExecWithQueuedBlockingCommandDoesNotBlock(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "MULTI")
	dispatchArgv(t, d, s, "BLPOP", "nosuchlist", "0")

	done := make(chan resp.Message, 1)
	go func() { done <- dispatchArgv(t, d, s, "EXEC") }()

	select {
	case got := <-done:
		if got.Type != resp.Array || len(got.Elems) != 1 {
			t.Fatalf("EXEC = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("EXEC with a queued BLPOP blocked instead of returning immediately")
	}
}

func TestIncrOverflowIsRejected(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	dispatchArgv(t, d, s, "SET", "k", "9223372036854775807")
	got := dispatchArgv(t, d, s, "INCR", "k")
	if got.Type != resp.Error {
		t.Fatalf("expected an overflow error, got %+v", got)
	}
}

func TestHitMissCountingWithoutMetricsIsNoOp(t *testing.T) {
	d := newTestDispatcher(t)
	s := newTestSession(t, 1)

	// No metrics registry wired: hit/miss counting must be a no-op, not a
	// nil-pointer panic.
	dispatchArgv(t, d, s, "SET", "k", "v")
	dispatchArgv(t, d, s, "GET", "k")
	dispatchArgv(t, d, s, "GET", "missing")
}
