package dispatch

import (
	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/session"
	"github.com/example/redisd/internal/store"
)

func registerTransactionCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "MULTI", Handler: cmdMulti, MinArity: 1, MaxArity: 1, TransactionMeta: true})
	add(t, HandlerSpec{Name: "EXEC", Handler: cmdExec, MinArity: 1, MaxArity: 1, TransactionMeta: true, SelfLocking: true})
	add(t, HandlerSpec{Name: "DISCARD", Handler: cmdDiscard, MinArity: 1, MaxArity: 1, TransactionMeta: true})
	add(t, HandlerSpec{Name: "WATCH", Handler: cmdWatch, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1, TransactionMeta: true, SelfLocking: true})
	add(t, HandlerSpec{Name: "UNWATCH", Handler: cmdUnwatch, MinArity: 1, MaxArity: 1, TransactionMeta: true})
}

func cmdMulti(c *Context) resp.Message {
	if c.S.InMulti {
		return errMsg("ERR MULTI calls can not be nested")
	}
	c.S.EnterMulti()
	return ok()
}

func cmdDiscard(c *Context) resp.Message {
	if !c.S.InMulti {
		return errMsg("ERR DISCARD without MULTI")
	}
	c.S.ResetTransaction(c.Keyspace())
	return ok()
}

func cmdWatch(c *Context) resp.Message {
	if c.S.InMulti {
		return errMsg("ERR WATCH inside MULTI is not allowed")
	}
	db := c.DB()
	db.Lock()
	for i := 1; i < c.Argc(); i++ {
		key := c.ArgStr(i)
		h := store.NewWatchHandle()
		db.Watch(key, h)
		c.S.AddWatch(session.WatchedKey{DBIndex: c.S.DBIndex, Key: key, Handle: h})
	}
	db.Unlock()
	return ok()
}

func cmdUnwatch(c *Context) resp.Message {
	c.S.ResetTransaction(c.Keyspace())
	return ok()
}

func cmdExec(c *Context) resp.Message {
	if !c.S.InMulti {
		return errMsg("ERR EXEC without MULTI")
	}
	if c.S.DirtyExec {
		c.S.ResetTransaction(c.Keyspace())
		return errMsg("EXECABORT Transaction discarded because of previous errors.")
	}
	if c.S.WatchDirty() {
		c.S.ResetTransaction(c.Keyspace())
		return nilArray()
	}

	queued := c.S.QueuedCommands
	c.S.ResetTransaction(c.Keyspace())

	// Each queued command gets the same lock treatment the top-level
	// dispatcher gives it (§4.6 Step 4): a plain handler runs under its
	// target database's lock, one linearization point per command, while
	// a handler that manages its own locking (BLPOP/BRPOP/BZPOPMIN/
	// BZPOPMAX/XREAD BLOCK/INFO) must not be wrapped in an outer lock it
	// would then re-acquire. A blocking verb queued inside MULTI never
	// actually blocks (NoBlock): suspending on the coordinator here would
	// hold up every other client sharing this database for as long as
	// the wait takes, or forever for an unbounded timeout.
	out := make([]resp.Message, 0, len(queued))
	for _, argv := range queued {
		spec, ok := c.D.Table.Lookup(string(argv[0]))
		if !ok {
			out = append(out, unknownCommand(argv))
			continue
		}
		if !spec.checkArity(argv) {
			out = append(out, wrongArity(string(argv[0])))
			continue
		}
		sub := &Context{ctx: c.ctx, D: c.D, S: c.S, Argv: argv, NoBlock: spec.Blocking}

		var reply resp.Message
		if spec.Blocking || spec.SelfLocking {
			reply = spec.Handler(sub)
		} else {
			db := c.D.Keyspace.DB(c.S.DBIndex)
			db.Lock()
			reply = spec.Handler(sub)
			db.Unlock()
		}
		out = append(out, reply)
		if spec.Write && reply.Type != resp.Error {
			c.Repl().Propagate(c.ctx, c.S.DBIndex, argv)
		}
	}
	return arr(out...)
}
