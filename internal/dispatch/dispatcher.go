// Package dispatch implements the command dispatcher (§4.6): the verb
// table, key-spec extraction, the MULTI/WATCH/PubSub/cluster pre-dispatch
// pipeline, and every command handler.
package dispatch

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/redisd/internal/blocking"
	"github.com/example/redisd/internal/cluster"
	"github.com/example/redisd/internal/config"
	"github.com/example/redisd/internal/metrics"
	"github.com/example/redisd/internal/pubsub"
	"github.com/example/redisd/internal/repl"
	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/session"
	"github.com/example/redisd/internal/store"
)

// Dispatcher owns the verb table and every shared resource a handler can
// reach through a Context (§4.6, §4.8 Server wiring).
type Dispatcher struct {
	Table    VerbTable
	Keyspace *store.Keyspace
	Cluster  *cluster.State
	Blocking *blocking.Coordinator
	PubSub   *pubsub.Registry
	Repl     repl.Sink
	Config   config.Config
	Overlay  *config.Overlay
	SlowLog  *SlowLog
	Log      *zap.Logger

	// Metrics is nil unless the caller opts in via WithMetrics (§6.1 C14);
	// every increment site nil-checks it first.
	Metrics *metrics.Registry
}

// WithMetrics attaches a metrics registry, returning d for chaining at
// construction time.
func (d *Dispatcher) WithMetrics(m *metrics.Registry) *Dispatcher {
	d.Metrics = m
	return d
}

func (d *Dispatcher) countHit() {
	if d.Metrics != nil {
		d.Metrics.KeyspaceHits.Inc()
	}
}

func (d *Dispatcher) countMiss() {
	if d.Metrics != nil {
		d.Metrics.KeyspaceMisses.Inc()
	}
}

// New assembles a dispatcher over the given shared resources.
func New(ks *store.Keyspace, cl *cluster.State, bc *blocking.Coordinator, ps *pubsub.Registry, sink repl.Sink, cfg config.Config, ov *config.Overlay, log *zap.Logger) *Dispatcher {
	if sink == nil {
		sink = repl.NoopSink{}
	}
	return &Dispatcher{
		Table:    BuildVerbTable(),
		Keyspace: ks,
		Cluster:  cl,
		Blocking: bc,
		PubSub:   ps,
		Repl:     sink,
		Config:   cfg,
		Overlay:  ov,
		SlowLog:  NewSlowLog(cfg.SlowLogMaxLen, cfg.SlowLogSlowerThan),
		Log:      log.Named("dispatch"),
	}
}

// alwaysAllowedWhileSubscribed is the verb set a subscribe-confined
// client may still issue (§SUPPLEMENT pubsub confinement).
var alwaysAllowedWhileSubscribed = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true,
	"PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PING": true, "QUIT": true, "RESET": true,
}

// transactionControlVerbs execute immediately even inside MULTI rather
// than being queued.
var transactionControlVerbs = map[string]bool{
	"MULTI": true, "EXEC": true, "DISCARD": true, "WATCH": true,
	"UNWATCH": true, "RESET": true, "QUIT": true,
}

// Dispatch runs one command through the full pre-dispatch pipeline and
// returns the reply to write back (§4.6).
func (d *Dispatcher) Dispatch(ctx context.Context, s *session.Session, argv [][]byte) resp.Message {
	if len(argv) == 0 {
		return errMsg("ERR empty command")
	}
	verb := strings.ToUpper(string(argv[0]))

	spec, ok := d.Table.Lookup(verb)
	if !ok {
		if s.InMulti && !transactionControlVerbs[verb] {
			s.MarkDirty()
		}
		return unknownCommand(argv)
	}

	if !spec.checkArity(argv) {
		if s.InMulti && !transactionControlVerbs[verb] {
			s.MarkDirty()
		}
		return wrongArity(strings.ToLower(verb))
	}

	// Step 1: transaction queueing. Control verbs (MULTI/EXEC/DISCARD/
	// WATCH/UNWATCH/RESET/QUIT) always execute immediately.
	if s.InMulti && !transactionControlVerbs[verb] {
		s.QueueCommand(argv)
		return resp.SimpleStringMsg("QUEUED")
	}

	// Step 2: PubSub confinement.
	if s.Subscribed && !alwaysAllowedWhileSubscribed[verb] {
		return errMsg("ERR Can't execute '" + strings.ToLower(verb) + "': only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context")
	}

	// Step 3: cluster redirection check.
	if keys := spec.ExtractKeys(argv); len(keys) > 0 && !spec.ClusterExempt {
		if err := d.Cluster.Check(keys); err != nil {
			return errMsg(err.Error())
		}
	}

	if d.Metrics != nil {
		d.Metrics.CommandsProcessed.WithLabelValues(verb).Inc()
	}

	start := time.Now()
	hctx := &Context{ctx: ctx, D: d, S: s, Argv: argv}

	// Step 4: invocation. Non-blocking handlers run under the target
	// database's lock for their whole call (§5: one linearization point
	// per command). Blocking handlers (BLPOP/BRPOP/BZPOPMIN/BZPOPMAX/
	// XREAD BLOCK) manage their own locking since they must release the
	// lock while suspended on the blocking coordinator and reacquire it
	// on wakeup. WATCH and EXEC also manage their own locking: EXEC
	// re-enters the verb table and must not hold the database's
	// non-reentrant mutex across that re-entry, and WATCH registers
	// across possibly-many keys under one explicit lock/unlock pair.
	// INFO touches every database in the keyspace, not just the
	// session's current one, so it locks each in turn itself.
	var reply resp.Message
	if spec.Blocking || spec.SelfLocking {
		reply = spec.Handler(hctx)
	} else {
		db := d.Keyspace.DB(s.DBIndex)
		db.Lock()
		reply = spec.Handler(hctx)
		db.Unlock()
	}
	dur := time.Since(start)

	d.SlowLog.Maybe(dur, argv, s.Addr, s.Name)

	if spec.Write && reply.Type != resp.Error {
		d.Repl.Propagate(ctx, s.DBIndex, argv)
	}

	return reply
}
