package dispatch

import (
	"fmt"

	"github.com/example/redisd/internal/resp"
)

func ok() resp.Message              { return resp.SimpleStringMsg("OK") }
func errMsg(s string) resp.Message  { return resp.ErrorMsg(s) }
func intMsg(n int64) resp.Message   { return resp.IntegerMsg(n) }
func bulk(b []byte) resp.Message    { return resp.BulkStringMsg(b) }
func bulkStr(s string) resp.Message { return resp.BulkStringMsg([]byte(s)) }
func nilBulk() resp.Message         { return resp.NullBulk() }
func nilArray() resp.Message        { return resp.NullArray() }
func arr(elems ...resp.Message) resp.Message {
	return resp.ArrayMsg(elems)
}

func wrongArity(verb string) resp.Message {
	return errMsg(fmt.Sprintf("ERR wrong number of arguments for '%s' command", verb))
}

func wrongType() resp.Message {
	return errMsg("WRONGTYPE Operation against a key holding the wrong kind of value")
}

func notInteger() resp.Message {
	return errMsg("ERR value is not an integer or out of range")
}

func notFloat() resp.Message {
	return errMsg("ERR value is not a valid float")
}

func syntaxErr() resp.Message {
	return errMsg("ERR syntax error")
}

func unknownCommand(argv [][]byte) resp.Message {
	name := ""
	if len(argv) > 0 {
		name = string(argv[0])
	}
	return errMsg(fmt.Sprintf("ERR unknown command '%s'", name))
}
