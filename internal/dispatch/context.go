package dispatch

import (
	"context"

	"github.com/example/redisd/internal/blocking"
	"github.com/example/redisd/internal/cluster"
	"github.com/example/redisd/internal/pubsub"
	"github.com/example/redisd/internal/repl"
	"github.com/example/redisd/internal/session"
	"github.com/example/redisd/internal/store"
)

// Context bundles everything a handler needs: the dispatcher's shared
// resources, the calling session, and the raw argv (argv[0] is the verb
// itself, case-preserved as received).
type Context struct {
	ctx  context.Context
	D    *Dispatcher
	S    *session.Session
	Argv [][]byte

	// NoBlock forces a would-block verb (BLPOP/BRPOP/BZPOPMIN/BZPOPMAX/
	// XREAD BLOCK) to behave as if its timeout had already elapsed
	// instead of suspending on the blocking coordinator. EXEC sets this
	// on the sub-context of every queued blocking verb (§8 "queued
	// blocking commands do not block").
	NoBlock bool
}

// DB returns the database selected by the session's current SELECT.
func (c *Context) DB() *store.Database { return c.D.Keyspace.DB(c.S.DBIndex) }

// Keyspace, Cluster, Blocking, PubSub, Repl expose the dispatcher's shared
// resources directly, so handlers don't need their own copies.
func (c *Context) Keyspace() *store.Keyspace       { return c.D.Keyspace }
func (c *Context) Cluster() *cluster.State         { return c.D.Cluster }
func (c *Context) Blocking() *blocking.Coordinator { return c.D.Blocking }
func (c *Context) PubSub() *pubsub.Registry        { return c.D.PubSub }
func (c *Context) Repl() repl.Sink                 { return c.D.Repl }
func (c *Context) Context() context.Context        { return c.ctx }

// Arg returns argv[i], or nil if out of range.
func (c *Context) Arg(i int) []byte {
	if i < 0 || i >= len(c.Argv) {
		return nil
	}
	return c.Argv[i]
}

// ArgStr is Arg as a string.
func (c *Context) ArgStr(i int) string { return string(c.Arg(i)) }

// Argc is len(Argv).
func (c *Context) Argc() int { return len(c.Argv) }
