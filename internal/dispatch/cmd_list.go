package dispatch

import (
	"time"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerListCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "LPUSH", Handler: cmdLPush, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "RPUSH", Handler: cmdRPush, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "LPOP", Handler: cmdLPop, MinArity: 2, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "RPOP", Handler: cmdRPop, MinArity: 2, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "LLEN", Handler: cmdLLen, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "LRANGE", Handler: cmdLRange, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "LINDEX", Handler: cmdLIndex, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "LSET", Handler: cmdLSet, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "LTRIM", Handler: cmdLTrim, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "LPOS", Handler: cmdLPos, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "BLPOP", Handler: cmdBLPop, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: -2, Step: 1, Blocking: true})
	add(t, HandlerSpec{Name: "BRPOP", Handler: cmdBRPop, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: -2, Step: 1, Blocking: true})
}

func listAt(c *Context, key string, createIfMissing bool) (*values.List, bool, resp.Message) {
	if !createIfMissing {
		v, ok := c.DB().Get(key)
		if !ok {
			return nil, false, resp.Message{}
		}
		l, ok := v.(*values.List)
		if !ok {
			return nil, true, wrongType()
		}
		return l, true, resp.Message{}
	}
	v, _ := c.DB().GetOrCreate(key, func() values.Value { return values.NewList() })
	l, ok := v.(*values.List)
	if !ok {
		return nil, true, wrongType()
	}
	return l, true, resp.Message{}
}

func cmdLPush(c *Context) resp.Message {
	key := c.ArgStr(1)
	l, _, errReply := listAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	for i := 2; i < c.Argc(); i++ {
		l.PushLeft(c.Arg(i))
	}
	c.DB().Touch(key, "lpush")
	c.Blocking().SignalKeyReady(c.S.DBIndex, key, values.KindList, func() int { return l.Len() })
	return intMsg(int64(l.Len()))
}

func cmdRPush(c *Context) resp.Message {
	key := c.ArgStr(1)
	l, _, errReply := listAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	for i := 2; i < c.Argc(); i++ {
		l.PushRight(c.Arg(i))
	}
	c.DB().Touch(key, "rpush")
	c.Blocking().SignalKeyReady(c.S.DBIndex, key, values.KindList, func() int { return l.Len() })
	return intMsg(int64(l.Len()))
}

func popCount(c *Context) (int, resp.Message, bool) {
	if c.Argc() == 3 {
		n, err := parseInt(c.ArgStr(2))
		if err != nil || n < 0 {
			return 0, notInteger(), true
		}
		return int(n), resp.Message{}, true
	}
	return 1, resp.Message{}, false
}

func cmdLPop(c *Context) resp.Message {
	key := c.ArgStr(1)
	l, ok, errReply := listAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	n, errMsgReply, withCount := popCount(c)
	if errMsgReply.Type == resp.Error {
		return errMsgReply
	}
	if !ok {
		if withCount {
			return nilArray()
		}
		return nilBulk()
	}
	var out []resp.Message
	for i := 0; i < n; i++ {
		v, got := l.PopLeft()
		if !got {
			break
		}
		out = append(out, bulk(v))
	}
	c.DB().Touch(key, "lpop")
	c.DB().DeleteIfEmpty(key, l)
	if !withCount {
		if len(out) == 0 {
			return nilBulk()
		}
		return out[0]
	}
	if len(out) == 0 {
		return nilArray()
	}
	return arr(out...)
}

func cmdRPop(c *Context) resp.Message {
	key := c.ArgStr(1)
	l, ok, errReply := listAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	n, errMsgReply, withCount := popCount(c)
	if errMsgReply.Type == resp.Error {
		return errMsgReply
	}
	if !ok {
		if withCount {
			return nilArray()
		}
		return nilBulk()
	}
	var out []resp.Message
	for i := 0; i < n; i++ {
		v, got := l.PopRight()
		if !got {
			break
		}
		out = append(out, bulk(v))
	}
	c.DB().Touch(key, "rpop")
	c.DB().DeleteIfEmpty(key, l)
	if !withCount {
		if len(out) == 0 {
			return nilBulk()
		}
		return out[0]
	}
	if len(out) == 0 {
		return nilArray()
	}
	return arr(out...)
}

func cmdLLen(c *Context) resp.Message {
	l, ok, errReply := listAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	return intMsg(int64(l.Len()))
}

func cmdLRange(c *Context) resp.Message {
	l, ok, errReply := listAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return arr()
	}
	start, err1 := parseInt(c.ArgStr(2))
	stop, err2 := parseInt(c.ArgStr(3))
	if err1 != nil || err2 != nil {
		return notInteger()
	}
	items := l.Range(int(start), int(stop))
	out := make([]resp.Message, len(items))
	for i, v := range items {
		out[i] = bulk(v)
	}
	return arr(out...)
}

func cmdLIndex(c *Context) resp.Message {
	l, ok, errReply := listAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return nilBulk()
	}
	n, err := parseInt(c.ArgStr(2))
	if err != nil {
		return notInteger()
	}
	v, found := l.Index(int(n))
	if !found {
		return nilBulk()
	}
	return bulk(v)
}

func cmdLSet(c *Context) resp.Message {
	l, ok, errReply := listAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return errMsg("ERR no such key")
	}
	n, err := parseInt(c.ArgStr(2))
	if err != nil {
		return notInteger()
	}
	if !l.SetAt(int(n), c.Arg(3)) {
		return errMsg("ERR index out of range")
	}
	c.DB().Touch(c.ArgStr(1), "lset")
	return ok()
}

func cmdLTrim(c *Context) resp.Message {
	key := c.ArgStr(1)
	l, ok, errReply := listAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return ok()
	}
	start, err1 := parseInt(c.ArgStr(2))
	stop, err2 := parseInt(c.ArgStr(3))
	if err1 != nil || err2 != nil {
		return notInteger()
	}
	l.Trim(int(start), int(stop))
	c.DB().Touch(key, "ltrim")
	c.DB().DeleteIfEmpty(key, l)
	return ok()
}

func cmdLPos(c *Context) resp.Message {
	l, ok, errReply := listAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return nilBulk()
	}
	rank, count, maxlen := 1, 1, 0
	hasCount := false
	for i := 3; i < c.Argc(); i++ {
		switch upper(c.Arg(i)) {
		case "RANK":
			i++
			n, err := parseInt(c.ArgStr(i))
			if err != nil {
				return notInteger()
			}
			rank = int(n)
		case "COUNT":
			i++
			n, err := parseInt(c.ArgStr(i))
			if err != nil {
				return notInteger()
			}
			count = int(n)
			hasCount = true
		case "MAXLEN":
			i++
			n, err := parseInt(c.ArgStr(i))
			if err != nil {
				return notInteger()
			}
			maxlen = int(n)
		}
	}
	if !hasCount {
		count = 1
	}
	positions := l.Position(c.Arg(2), rank, count, maxlen)
	if !hasCount {
		if len(positions) == 0 {
			return nilBulk()
		}
		return intMsg(int64(positions[0]))
	}
	out := make([]resp.Message, len(positions))
	for i, p := range positions {
		out[i] = intMsg(int64(p))
	}
	return arr(out...)
}

func blockingPop(c *Context, fromLeft bool) resp.Message {
	keys := make([]string, c.Argc()-2)
	for i := 1; i < c.Argc()-1; i++ {
		keys[i-1] = c.ArgStr(i)
	}
	timeoutSecs, err := parseFloat(c.ArgStr(c.Argc() - 1))
	if err != nil || timeoutSecs < 0 {
		return errMsg("ERR timeout is not a float or out of range")
	}

	db := c.DB()
	db.Lock()
	for _, k := range keys {
		l, ok, errReply := listAt(c, k, false)
		if errReply.Type == resp.Error {
			db.Unlock()
			return errReply
		}
		if !ok {
			continue
		}
		var v []byte
		var got bool
		if fromLeft {
			v, got = l.PopLeft()
		} else {
			v, got = l.PopRight()
		}
		if got {
			db.Touch(k, "pop")
			db.DeleteIfEmpty(k, l)
			db.Unlock()
			return arr(bulkStr(k), bulk(v))
		}
	}

	if c.NoBlock {
		db.Unlock()
		return nilArray()
	}

	var deadline time.Time
	if timeoutSecs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutSecs * float64(time.Second)))
	}
	w := c.Blocking().Wait(c.S.ID, c.S.DBIndex, keys, values.KindList, deadline)
	db.Unlock()

	result := <-w.Done()
	if result.TimedOut || result.Key == "" {
		return nilArray()
	}

	db.Lock()
	defer db.Unlock()
	l, ok, errReply := listAt(c, result.Key, false)
	if errReply.Type == resp.Error || !ok {
		return nilArray()
	}
	var v []byte
	var got bool
	if fromLeft {
		v, got = l.PopLeft()
	} else {
		v, got = l.PopRight()
	}
	if !got {
		return nilArray()
	}
	db.Touch(result.Key, "pop")
	db.DeleteIfEmpty(result.Key, l)
	return arr(bulkStr(result.Key), bulk(v))
}

func cmdBLPop(c *Context) resp.Message { return blockingPop(c, true) }
func cmdBRPop(c *Context) resp.Message { return blockingPop(c, false) }
