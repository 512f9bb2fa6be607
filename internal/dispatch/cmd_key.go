package dispatch

import (
	"time"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerKeyCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "DEL", Handler: cmdDel, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "UNLINK", Handler: cmdDel, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "EXISTS", Handler: cmdExists, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1})
	add(t, HandlerSpec{Name: "TYPE", Handler: cmdType, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "KEYS", Handler: cmdKeys, MinArity: 2, MaxArity: 2, ClusterExempt: true})
	add(t, HandlerSpec{Name: "SCAN", Handler: cmdScan, MinArity: 2, MaxArity: -1, ClusterExempt: true})
	add(t, HandlerSpec{Name: "RENAME", Handler: cmdRename, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 2, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "RENAMENX", Handler: cmdRenameNX, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 2, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "RANDOMKEY", Handler: cmdRandomKey, MinArity: 1, MaxArity: 1, ClusterExempt: true})
	add(t, HandlerSpec{Name: "DBSIZE", Handler: cmdDBSize, MinArity: 1, MaxArity: 1, ClusterExempt: true})
	add(t, HandlerSpec{Name: "FLUSHDB", Handler: cmdFlushDB, MinArity: 1, MaxArity: 2, Write: true, ClusterExempt: true})
	add(t, HandlerSpec{Name: "FLUSHALL", Handler: cmdFlushAll, MinArity: 1, MaxArity: 2, Write: true, ClusterExempt: true})
	add(t, HandlerSpec{Name: "EXPIRE", Handler: cmdExpire, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "PEXPIRE", Handler: cmdPExpire, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "EXPIREAT", Handler: cmdExpireAt, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "PEXPIREAT", Handler: cmdPExpireAt, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "TTL", Handler: cmdTTL, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "PTTL", Handler: cmdPTTL, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "PERSIST", Handler: cmdPersist, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "EXPIRETIME", Handler: cmdExpireTime, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "PEXPIRETIME", Handler: cmdPExpireTime, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "COPY", Handler: cmdCopy, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 2, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "OBJECT", Handler: cmdObject, MinArity: 3, MaxArity: 3, FirstKey: 2, LastKey: 2, Step: 1})
}

func cmdDel(c *Context) resp.Message {
	db := c.DB()
	n := int64(0)
	for i := 1; i < c.Argc(); i++ {
		if db.Delete(c.ArgStr(i)) {
			n++
		}
	}
	return intMsg(n)
}

func cmdExists(c *Context) resp.Message {
	db := c.DB()
	n := int64(0)
	for i := 1; i < c.Argc(); i++ {
		if db.Exists(c.ArgStr(i)) {
			n++
		}
	}
	return intMsg(n)
}

func cmdType(c *Context) resp.Message {
	k, ok := c.DB().Type(c.ArgStr(1))
	if !ok {
		return resp.SimpleStringMsg("none")
	}
	return resp.SimpleStringMsg(k.String())
}

func cmdKeys(c *Context) resp.Message {
	return resp.StringArray(c.DB().Keys(c.ArgStr(1)))
}

func cmdScan(c *Context) resp.Message {
	cursor, err := parseUintCursor(c.ArgStr(1))
	if err != nil {
		return errMsg("ERR invalid cursor")
	}
	match, count := "*", 10
	for i := 2; i < c.Argc(); i++ {
		switch upper(c.Arg(i)) {
		case "MATCH":
			i++
			if i >= c.Argc() {
				return syntaxErr()
			}
			match = c.ArgStr(i)
		case "COUNT":
			i++
			if i >= c.Argc() {
				return syntaxErr()
			}
			n, err := parseInt(c.ArgStr(i))
			if err != nil {
				return notInteger()
			}
			count = int(n)
		case "TYPE":
			i++ // accepted, not filtered for in this core
		default:
			return syntaxErr()
		}
	}
	next, keys := c.DB().Scan(cursor, match, count)
	return arr(bulkStr(formatCursor(next)), resp.StringArray(keys))
}

func cmdRename(c *Context) resp.Message {
	if err := c.DB().Rename(c.ArgStr(1), c.ArgStr(2)); err != nil {
		return errMsg("ERR no such key")
	}
	return ok()
}

func cmdRenameNX(c *Context) resp.Message {
	moved, err := c.DB().RenameNX(c.ArgStr(1), c.ArgStr(2))
	if err != nil {
		return errMsg("ERR no such key")
	}
	if !moved {
		return intMsg(0)
	}
	return intMsg(1)
}

func cmdRandomKey(c *Context) resp.Message {
	k, ok := c.DB().RandomKey()
	if !ok {
		return nilBulk()
	}
	return bulkStr(k)
}

func cmdDBSize(c *Context) resp.Message { return intMsg(int64(c.DB().Size())) }

func cmdFlushDB(c *Context) resp.Message {
	c.DB().FlushDB()
	return ok()
}

func cmdFlushAll(c *Context) resp.Message {
	c.Keyspace().FlushAll()
	return ok()
}

func expireHandler(unit time.Duration, absolute bool) Handler {
	return func(c *Context) resp.Message {
		n, err := parseInt(c.ArgStr(2))
		if err != nil {
			return notInteger()
		}
		db := c.DB()
		key := c.ArgStr(1)

		for i := 3; i < c.Argc(); i++ {
			switch upper(c.Arg(i)) {
			case "NX":
				if _, hasTTL, exists := db.TTL(key); !exists || hasTTL {
					return intMsg(0)
				}
			case "XX":
				if _, hasTTL, exists := db.TTL(key); !exists || !hasTTL {
					return intMsg(0)
				}
			case "GT":
				if d, hasTTL, exists := db.TTL(key); !exists {
					return intMsg(0)
				} else if hasTTL {
					newAt := computeExpireAt(n, unit, absolute)
					if !newAt.After(time.Now().Add(d)) {
						return intMsg(0)
					}
				}
			case "LT":
				if d, hasTTL, exists := db.TTL(key); !exists {
					return intMsg(0)
				} else if hasTTL {
					newAt := computeExpireAt(n, unit, absolute)
					if !newAt.Before(time.Now().Add(d)) {
						return intMsg(0)
					}
				}
			}
		}

		at := computeExpireAt(n, unit, absolute)
		if !db.SetExpire(key, at) {
			return intMsg(0)
		}
		return intMsg(1)
	}
}

func computeExpireAt(n int64, unit time.Duration, absolute bool) time.Time {
	if !absolute {
		return time.Now().Add(time.Duration(n) * unit)
	}
	if unit == time.Second {
		return time.Unix(n, 0)
	}
	return time.UnixMilli(n)
}

func cmdExpire(c *Context) resp.Message    { return expireHandler(time.Second, false)(c) }
func cmdPExpire(c *Context) resp.Message   { return expireHandler(time.Millisecond, false)(c) }
func cmdExpireAt(c *Context) resp.Message  { return expireHandler(time.Second, true)(c) }
func cmdPExpireAt(c *Context) resp.Message { return expireHandler(time.Millisecond, true)(c) }

func cmdTTL(c *Context) resp.Message {
	d, hasTTL, exists := c.DB().TTL(c.ArgStr(1))
	if !exists {
		return intMsg(-2)
	}
	if !hasTTL {
		return intMsg(-1)
	}
	secs := int64(d.Seconds())
	if d > 0 && secs == 0 {
		secs = 1
	}
	return intMsg(secs)
}

func cmdPTTL(c *Context) resp.Message {
	d, hasTTL, exists := c.DB().TTL(c.ArgStr(1))
	if !exists {
		return intMsg(-2)
	}
	if !hasTTL {
		return intMsg(-1)
	}
	return intMsg(d.Milliseconds())
}

func cmdPersist(c *Context) resp.Message {
	if c.DB().Persist(c.ArgStr(1)) {
		return intMsg(1)
	}
	return intMsg(0)
}

func cmdExpireTime(c *Context) resp.Message {
	at, hasTTL, exists := c.DB().ExpireTime(c.ArgStr(1))
	if !exists {
		return intMsg(-2)
	}
	if !hasTTL {
		return intMsg(-1)
	}
	return intMsg(at.Unix())
}

func cmdPExpireTime(c *Context) resp.Message {
	at, hasTTL, exists := c.DB().ExpireTime(c.ArgStr(1))
	if !exists {
		return intMsg(-2)
	}
	if !hasTTL {
		return intMsg(-1)
	}
	return intMsg(at.UnixMilli())
}

func cmdCopy(c *Context) resp.Message {
	replace := false
	for i := 3; i < c.Argc(); i++ {
		if upper(c.Arg(i)) == "REPLACE" {
			replace = true
		}
	}
	ok2, err := c.DB().Copy(c.ArgStr(1), c.ArgStr(2), replace)
	if err != nil {
		return intMsg(0)
	}
	if !ok2 {
		return intMsg(0)
	}
	return intMsg(1)
}

func cmdObject(c *Context) resp.Message {
	sub := upper(c.Arg(1))
	v, ok := c.DB().Get(c.ArgStr(2))
	if !ok {
		return nilBulk()
	}
	switch sub {
	case "ENCODING":
		return bulkStr(objectEncoding(v))
	case "REFCOUNT":
		return intMsg(1)
	case "FREQ":
		return intMsg(0)
	case "IDLETIME":
		return intMsg(0)
	default:
		return errMsg("ERR Unknown subcommand or wrong number of arguments for '" + c.ArgStr(1) + "'")
	}
}

func objectEncoding(v values.Value) string {
	switch x := v.(type) {
	case *values.StringValue:
		if _, err := x.Int(); err == nil {
			return "int"
		}
		if len(x.Data) <= 44 {
			return "embstr"
		}
		return "raw"
	case *values.Hash:
		if x.Len() <= values.HashListpackMaxEntries {
			return "listpack"
		}
		return "hashtable"
	case *values.List:
		if x.IsQuicklist() {
			return "quicklist"
		}
		return "listpack"
	case *values.Set:
		if x.IsIntSet() {
			return "intset"
		}
		return "hashtable"
	case *values.ZSet:
		return "skiplist"
	default:
		return "unknown"
	}
}
