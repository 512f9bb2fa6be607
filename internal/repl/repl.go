// Package repl implements the write-propagation hook (§1 "replication
// stream... only the hook into write propagation", §6.3).
package repl

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/example/redisd/internal/peerclient"
)

// Sink receives every write command's argv after it has committed
// locally. The dispatcher calls Propagate unconditionally; a no-op sink
// costs one interface call.
type Sink interface {
	Propagate(ctx context.Context, dbIndex int, argv [][]byte)
}

// NoopSink discards every write, the default when no ReplicaOf is
// configured.
type NoopSink struct{}

func (NoopSink) Propagate(ctx context.Context, dbIndex int, argv [][]byte) {}

// RedisForwarder forwards argv to a single configured replica address
// using the shared outbound RESP client (C11). Propagation is
// best-effort: no acknowledgement protocol, no retry queue, matching the
// "hook into write propagation" contract the core spec leaves external.
type RedisForwarder struct {
	client *peerclient.Client
	lastDB int
	log    *zap.Logger
}

// NewRedisForwarder dials addr as a RESP client.
func NewRedisForwarder(addr string, log *zap.Logger) *RedisForwarder {
	return &RedisForwarder{
		client: peerclient.New(addr, log),
		lastDB: -1,
		log:    log.Named("repl"),
	}
}

// Propagate issues a SELECT when dbIndex changed since the last
// forwarded command (mirroring Redis's own replication stream, which
// prefixes a SELECT whenever the source switches databases), then
// forwards argv verbatim.
func (f *RedisForwarder) Propagate(ctx context.Context, dbIndex int, argv [][]byte) {
	if dbIndex != f.lastDB {
		f.client.Forward(ctx, [][]byte{[]byte("SELECT"), []byte(strconv.Itoa(dbIndex))})
		f.lastDB = dbIndex
	}
	f.client.Forward(ctx, argv)
}

// Close releases the underlying connection pool.
func (f *RedisForwarder) Close() error {
	return f.client.Close()
}
