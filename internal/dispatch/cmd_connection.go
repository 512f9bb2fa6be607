package dispatch

import (
	"fmt"
	"strings"

	"github.com/example/redisd/internal/resp"
)

func registerConnectionCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "PING", Handler: cmdPing, MinArity: 1, MaxArity: 2})
	add(t, HandlerSpec{Name: "ECHO", Handler: cmdEcho, MinArity: 2, MaxArity: 2})
	add(t, HandlerSpec{Name: "SELECT", Handler: cmdSelect, MinArity: 2, MaxArity: 2})
	add(t, HandlerSpec{Name: "QUIT", Handler: cmdQuit, MinArity: 1, MaxArity: 1})
	add(t, HandlerSpec{Name: "AUTH", Handler: cmdAuth, MinArity: 2, MaxArity: 3})
	add(t, HandlerSpec{Name: "RESET", Handler: cmdReset, MinArity: 1, MaxArity: 1})
	add(t, HandlerSpec{Name: "HELLO", Handler: cmdHello, MinArity: 1, MaxArity: -1})
	add(t, HandlerSpec{Name: "CLIENT", Handler: cmdClient, MinArity: 2, MaxArity: -1})
}

func cmdPing(c *Context) resp.Message {
	if c.Argc() == 2 {
		return bulk(c.Arg(1))
	}
	return resp.SimpleStringMsg("PONG")
}

func cmdEcho(c *Context) resp.Message { return bulk(c.Arg(1)) }

func cmdSelect(c *Context) resp.Message {
	n, err := parseInt(c.ArgStr(1))
	if err != nil {
		return notInteger()
	}
	if n < 0 || n >= int64(c.Keyspace().Count()) {
		return errMsg("ERR DB index is out of range")
	}
	c.S.DBIndex = int(n)
	return ok()
}

func cmdQuit(c *Context) resp.Message { return ok() }

func cmdAuth(c *Context) resp.Message {
	if c.D.Config.RequirePass == "" {
		return errMsg("ERR Client sent AUTH, but no password is set. Did you mean AUTH <username> <password>?")
	}
	pass := c.ArgStr(c.Argc() - 1)
	if pass != c.D.Config.RequirePass {
		return errMsg("WRONGPASS invalid username-password pair or user is disabled.")
	}
	c.S.Authenticated = true
	return ok()
}

func cmdReset(c *Context) resp.Message {
	c.PubSub().UnsubscribeAll(c.S.ID)
	c.S.Reset(c.Keyspace())
	return resp.SimpleStringMsg("RESET")
}

func cmdHello(c *Context) resp.Message {
	fields := []resp.Message{
		bulkStr("server"), bulkStr("redis"),
		bulkStr("version"), bulkStr("7.0.0"),
		bulkStr("proto"), intMsg(2),
		bulkStr("id"), intMsg(c.S.ID),
		bulkStr("mode"), bulkStr(clusterMode(c)),
		bulkStr("role"), bulkStr("master"),
		bulkStr("modules"), arr(),
	}
	return arr(fields...)
}

func clusterMode(c *Context) string {
	if c.Cluster().IsEnabled() {
		return "cluster"
	}
	return "standalone"
}

func cmdClient(c *Context) resp.Message {
	sub := strings.ToUpper(c.ArgStr(1))
	switch sub {
	case "ID":
		return intMsg(c.S.ID)
	case "GETNAME":
		return bulkStr(c.S.Name)
	case "SETNAME":
		if c.Argc() != 3 {
			return wrongArity("client|setname")
		}
		c.S.Name = c.ArgStr(2)
		return ok()
	case "LIST":
		return bulkStr(fmt.Sprintf("id=%d addr=%s name=%s db=%d\n", c.S.ID, c.S.Addr, c.S.Name, c.S.DBIndex))
	case "NO-EVICT", "NO-TOUCH", "UNPAUSE", "PAUSE":
		return ok()
	case "INFO":
		return bulkStr(fmt.Sprintf("id=%d addr=%s name=%s db=%d", c.S.ID, c.S.Addr, c.S.Name, c.S.DBIndex))
	case "KILL":
		return intMsg(0)
	default:
		return errMsg("ERR unknown CLIENT subcommand or wrong number of arguments")
	}
}
