// Package peerclient provides the single outbound RESP client
// implementation used wherever redisd needs to speak to another
// Redis-protocol endpoint as a client rather than as the server: probing a
// cluster peer met via CLUSTER MEET, and forwarding write commands to a
// configured replica.
package peerclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps the go-redis client with connection-diagnostic logging.
type Client struct {
	*redis.Client
	log *zap.Logger
}

// New dials addr (host:port) as a RESP client.
func New(addr string, log *zap.Logger) *Client {
	opts := &redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		MinIdleConns: 1,
		MaxRetries:   1,
	}

	c := &Client{
		Client: redis.NewClient(opts),
		log:    log.Named("peerclient"),
	}

	c.log.Info("peer client initialized", zap.String("addr", addr))
	return c
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}

// Ping issues PING against the peer and logs the round-trip, used by the
// cluster component's liveness probe for CLUSTER MEET.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	addr := c.Options().Addr
	log := c.log.With(zap.String("addr", addr))

	start := time.Now()
	err := c.Client.Ping(ctx).Err()
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("peer ping failed", zap.Error(err), zap.Duration("rtt", elapsed))
		return err
	}
	log.Debug("peer ping ok", zap.Duration("rtt", elapsed))
	return nil
}

// Forward issues argv verbatim as a single command, used by the
// replication forwarder to propagate a write command after it commits
// locally. Errors are logged, not returned — replication is best-effort in
// this core (no acknowledgement protocol, no retry queue).
func (c *Client) Forward(ctx context.Context, argv [][]byte) {
	args := make([]interface{}, len(argv))
	for i, a := range argv {
		args[i] = a
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.Client.Do(ctx, args...).Err(); err != nil && err != redis.Nil {
		c.log.Warn("propagate failed", zap.Error(err), zap.ByteString("verb", argv[0]))
	}
}
