package dispatch

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/example/redisd/internal/resp"
)

func registerServerCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "INFO", Handler: cmdInfo, MinArity: 1, MaxArity: -1, ClusterExempt: true, SelfLocking: true})
	add(t, HandlerSpec{Name: "COMMAND", Handler: cmdCommand, MinArity: 1, MaxArity: -1, ClusterExempt: true})
	add(t, HandlerSpec{Name: "CONFIG", Handler: cmdConfig, MinArity: 2, MaxArity: -1, ClusterExempt: true})
	add(t, HandlerSpec{Name: "DEBUG", Handler: cmdDebug, MinArity: 2, MaxArity: -1, ClusterExempt: true})
	add(t, HandlerSpec{Name: "TIME", Handler: cmdTime, MinArity: 1, MaxArity: 1, ClusterExempt: true})
	add(t, HandlerSpec{Name: "SLOWLOG", Handler: cmdSlowLog, MinArity: 2, MaxArity: -1, ClusterExempt: true})
}

func cmdInfo(c *Context) resp.Message {
	body := fmt.Sprintf(
		"# Server\r\nredis_version:7.0.0\r\ntcp_port:%d\r\n\r\n# Clients\r\nmaxclients:%d\r\n\r\n# Keyspace\r\n",
		c.D.Config.Port, c.D.Config.MaxClients,
	)
	for i := 0; i < c.Keyspace().Count(); i++ {
		db := c.Keyspace().DB(i)
		db.Lock()
		n := db.Size()
		db.Unlock()
		if n > 0 {
			body += fmt.Sprintf("db%d:keys=%d,expires=0,avg_ttl=0\r\n", i, n)
		}
	}
	return bulkStr(body)
}

func cmdCommand(c *Context) resp.Message {
	switch {
	case c.Argc() >= 2 && upper(c.Arg(1)) == "COUNT":
		return intMsg(int64(len(c.D.Table)))
	case c.Argc() >= 2 && upper(c.Arg(1)) == "DOCS":
		return arr()
	default:
		out := make([]resp.Message, 0, len(c.D.Table))
		for name, spec := range c.D.Table {
			out = append(out, arr(bulkStr(name), intMsg(int64(spec.MinArity))))
		}
		return arr(out...)
	}
}

func cmdConfig(c *Context) resp.Message {
	switch upper(c.Arg(1)) {
	case "GET":
		if c.Argc() != 3 {
			return wrongArity("config|get")
		}
		return configGet(c, c.ArgStr(2))
	case "SET":
		if c.Argc() != 4 {
			return wrongArity("config|set")
		}
		return configSet(c, c.ArgStr(2), c.ArgStr(3))
	case "RESETSTAT":
		return ok()
	case "REWRITE":
		return ok()
	default:
		return errMsg("ERR Unknown CONFIG subcommand")
	}
}

func configGet(c *Context, name string) resp.Message {
	switch name {
	case "maxmemory":
		return arr(bulkStr(name), bulkStr(fmt.Sprintf("%d", c.D.Overlay.MaxMemory)))
	case "maxclients":
		return arr(bulkStr(name), bulkStr(fmt.Sprintf("%d", c.D.Config.MaxClients)))
	case "slowlog-log-slower-than":
		return arr(bulkStr(name), bulkStr(fmt.Sprintf("%d", c.D.Overlay.SlowLogSlowerThan.Microseconds())))
	case "slowlog-max-len":
		return arr(bulkStr(name), bulkStr(fmt.Sprintf("%d", c.D.Config.SlowLogMaxLen)))
	case "databases":
		return arr(bulkStr(name), bulkStr(fmt.Sprintf("%d", c.D.Config.Databases)))
	case "appendonly":
		v := "no"
		if c.D.Overlay.AppendOnly {
			v = "yes"
		}
		return arr(bulkStr(name), bulkStr(v))
	default:
		return arr()
	}
}

func configSet(c *Context, name, value string) resp.Message {
	switch name {
	case "maxmemory":
		n, err := parseInt(value)
		if err != nil {
			return notInteger()
		}
		c.D.Overlay.MaxMemory = n
	case "slowlog-log-slower-than":
		n, err := parseInt(value)
		if err != nil {
			return notInteger()
		}
		c.D.Overlay.SlowLogSlowerThan = time.Duration(n) * time.Microsecond
		c.D.SlowLog.SetThreshold(c.D.Overlay.SlowLogSlowerThan)
	case "appendonly":
		c.D.Overlay.AppendOnly = value == "yes"
	default:
		return errMsg("ERR Unsupported CONFIG parameter: " + name)
	}
	return ok()
}

func cmdDebug(c *Context) resp.Message {
	switch upper(c.Arg(1)) {
	case "SLEEP":
		secs, err := parseFloat(c.ArgStr(2))
		if err != nil {
			return notFloat()
		}
		time.Sleep(time.Duration(secs * float64(time.Second)))
		return ok()
	case "OBJECT":
		v, ok := c.DB().Get(c.ArgStr(2))
		if !ok {
			return errMsg("ERR no such key")
		}
		return bulkStr(fmt.Sprintf("Value at:0x0 refcount:1 encoding:%s serializedlength:0 lru:0 lru_seconds_idle:0", objectEncoding(v)))
	case "JSONDUMP":
		v, ok := c.DB().Get(c.ArgStr(2))
		if !ok {
			return errMsg("ERR no such key")
		}
		return bulkStr(spew.Sdump(v))
	default:
		return ok()
	}
}

func cmdTime(c *Context) resp.Message {
	now := time.Now()
	return arr(bulkStr(fmt.Sprintf("%d", now.Unix())), bulkStr(fmt.Sprintf("%d", now.Nanosecond()/1000)))
}

func cmdSlowLog(c *Context) resp.Message {
	switch upper(c.Arg(1)) {
	case "GET":
		n := -1
		if c.Argc() == 3 {
			v, err := parseInt(c.ArgStr(2))
			if err == nil {
				n = int(v)
			}
		}
		entries := c.D.SlowLog.Recent(n)
		out := make([]resp.Message, len(entries))
		for i, e := range entries {
			argvMsgs := make([]resp.Message, len(e.Argv))
			for j, a := range e.Argv {
				argvMsgs[j] = bulk(a)
			}
			out[i] = arr(
				intMsg(e.ID),
				intMsg(e.Timestamp.Unix()),
				intMsg(e.Duration.Microseconds()),
				arr(argvMsgs...),
				bulkStr(e.ClientAddr),
				bulkStr(e.ClientName),
			)
		}
		return arr(out...)
	case "LEN":
		return intMsg(int64(c.D.SlowLog.Len()))
	case "RESET":
		c.D.SlowLog.Reset()
		return ok()
	default:
		return errMsg("ERR Unknown SLOWLOG subcommand")
	}
}
