package dispatch

import (
	"math"
	"time"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerStringCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "SET", Handler: cmdSet, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "GET", Handler: cmdGet, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "GETSET", Handler: cmdGetSet, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "GETDEL", Handler: cmdGetDel, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "MSET", Handler: cmdMSet, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 2, Write: true})
	add(t, HandlerSpec{Name: "MGET", Handler: cmdMGet, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1})
	add(t, HandlerSpec{Name: "SETNX", Handler: cmdSetNX, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "INCR", Handler: cmdIncr, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "DECR", Handler: cmdDecr, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "INCRBY", Handler: cmdIncrBy, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "DECRBY", Handler: cmdDecrBy, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "INCRBYFLOAT", Handler: cmdIncrByFloat, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "APPEND", Handler: cmdAppend, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "STRLEN", Handler: cmdStrlen, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "GETRANGE", Handler: cmdGetRange, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "SETRANGE", Handler: cmdSetRange, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "GETEX", Handler: cmdGetEx, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
}

func stringAt(c *Context, key string) (*values.StringValue, bool, resp.Message) {
	v, ok := c.DB().Get(key)
	if !ok {
		return nil, false, resp.Message{}
	}
	sv, ok := v.(*values.StringValue)
	if !ok {
		return nil, true, wrongType()
	}
	return sv, true, resp.Message{}
}

func cmdSet(c *Context) resp.Message {
	key, val := c.ArgStr(1), c.Arg(2)
	var nx, xx, get, keepTTL bool
	var expireAt time.Time
	hasExpire := false

	for i := 3; i < c.Argc(); i++ {
		switch upper(c.Arg(i)) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GET":
			get = true
		case "KEEPTTL":
			keepTTL = true
		case "EX", "PX", "EXAT", "PXAT":
			opt := upper(c.Arg(i))
			i++
			if i >= c.Argc() {
				return syntaxErr()
			}
			n, err := parseInt(c.ArgStr(i))
			if err != nil {
				return notInteger()
			}
			switch opt {
			case "EX":
				expireAt = time.Now().Add(time.Duration(n) * time.Second)
			case "PX":
				expireAt = time.Now().Add(time.Duration(n) * time.Millisecond)
			case "EXAT":
				expireAt = time.Unix(n, 0)
			case "PXAT":
				expireAt = time.UnixMilli(n)
			}
			hasExpire = true
		default:
			return syntaxErr()
		}
	}
	if nx && xx {
		return syntaxErr()
	}

	db := c.DB()
	existing, existed, errReply := stringAt(c, key)
	if errReply.Type == resp.Error {
		return errReply
	}
	if nx && existed {
		if get {
			return bulk(existing.Data)
		}
		return nilBulk()
	}
	if xx && !existed {
		if get {
			return nilBulk()
		}
		return nilBulk()
	}

	var oldData []byte
	var hadOld bool
	if existing != nil {
		oldData, hadOld = existing.Data, true
	}

	sv := values.NewString(val)
	if keepTTL {
		db.SetKeepTTL(key, sv)
	} else {
		db.Set(key, sv)
		if hasExpire {
			db.SetExpire(key, expireAt)
		}
	}

	if get {
		if !hadOld {
			return nilBulk()
		}
		return bulk(oldData)
	}
	return ok()
}

func cmdGet(c *Context) resp.Message {
	sv, ok, errReply := stringAt(c, c.ArgStr(1))
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		c.D.countMiss()
		return nilBulk()
	}
	c.D.countHit()
	return bulk(sv.Data)
}

func cmdGetSet(c *Context) resp.Message {
	key := c.ArgStr(1)
	sv, ok, errReply := stringAt(c, key)
	if errReply.Type == resp.Error {
		return errReply
	}
	var old []byte
	if ok {
		old = sv.Data
	}
	c.DB().Set(key, values.NewString(c.Arg(2)))
	if !ok {
		return nilBulk()
	}
	return bulk(old)
}

func cmdGetDel(c *Context) resp.Message {
	key := c.ArgStr(1)
	sv, ok, errReply := stringAt(c, key)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return nilBulk()
	}
	c.DB().Delete(key)
	return bulk(sv.Data)
}

func cmdMSet(c *Context) resp.Message {
	if (c.Argc()-1)%2 != 0 {
		return wrongArity("mset")
	}
	db := c.DB()
	for i := 1; i < c.Argc(); i += 2 {
		db.Set(c.ArgStr(i), values.NewString(c.Arg(i+1)))
	}
	return ok()
}

func cmdMGet(c *Context) resp.Message {
	db := c.DB()
	out := make([]resp.Message, 0, c.Argc()-1)
	for i := 1; i < c.Argc(); i++ {
		v, ok := db.Get(c.ArgStr(i))
		if !ok {
			out = append(out, nilBulk())
			continue
		}
		sv, ok := v.(*values.StringValue)
		if !ok {
			out = append(out, nilBulk())
			continue
		}
		out = append(out, bulk(sv.Data))
	}
	return arr(out...)
}

func cmdSetNX(c *Context) resp.Message {
	db := c.DB()
	if db.Exists(c.ArgStr(1)) {
		return intMsg(0)
	}
	db.Set(c.ArgStr(1), values.NewString(c.Arg(2)))
	return intMsg(1)
}

func incrByHandler(delta int64) Handler {
	return func(c *Context) resp.Message {
		key := c.ArgStr(1)
		db := c.DB()
		v, created := db.GetOrCreate(key, func() values.Value { return values.NewString([]byte("0")) })
		sv, ok := v.(*values.StringValue)
		if !ok {
			return wrongType()
		}
		n, err := sv.Int()
		if err != nil {
			return notInteger()
		}
		if (delta > 0 && n > math.MaxInt64-delta) || (delta < 0 && n < math.MinInt64-delta) {
			return errMsg("ERR increment or decrement would overflow")
		}
		n += delta
		sv.SetInt(n)
		if created {
			db.Touch(key, "set")
		} else {
			db.Touch(key, "incrby")
		}
		return intMsg(n)
	}
}

func cmdIncr(c *Context) resp.Message { return incrByHandler(1)(c) }
func cmdDecr(c *Context) resp.Message { return incrByHandler(-1)(c) }
func cmdIncrBy(c *Context) resp.Message {
	n, err := parseInt(c.ArgStr(2))
	if err != nil {
		return notInteger()
	}
	return incrByHandler(n)(c)
}
func cmdDecrBy(c *Context) resp.Message {
	n, err := parseInt(c.ArgStr(2))
	if err != nil {
		return notInteger()
	}
	return incrByHandler(-n)(c)
}

func cmdIncrByFloat(c *Context) resp.Message {
	delta, err := parseFloat(c.ArgStr(2))
	if err != nil {
		return notFloat()
	}
	key := c.ArgStr(1)
	db := c.DB()
	v, created := db.GetOrCreate(key, func() values.Value { return values.NewString([]byte("0")) })
	sv, ok := v.(*values.StringValue)
	if !ok {
		return wrongType()
	}
	f, err := sv.Float()
	if err != nil {
		return notFloat()
	}
	f += delta
	sv.SetFloat(f)
	if created {
		db.Touch(key, "set")
	} else {
		db.Touch(key, "incrbyfloat")
	}
	return bulkStr(values.FormatFloat(f))
}

func cmdAppend(c *Context) resp.Message {
	key := c.ArgStr(1)
	db := c.DB()
	v, created := db.GetOrCreate(key, func() values.Value { return values.NewString(nil) })
	sv, ok := v.(*values.StringValue)
	if !ok {
		return wrongType()
	}
	sv.Set(append(sv.Data, c.Arg(2)...))
	if created {
		db.Touch(key, "set")
	} else {
		db.Touch(key, "append")
	}
	return intMsg(int64(len(sv.Data)))
}

func cmdStrlen(c *Context) resp.Message {
	sv, ok, errReply := stringAt(c, c.ArgStr(1))
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	return intMsg(int64(len(sv.Data)))
}

func resolveRange(start, end, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	return start, end
}

func cmdGetRange(c *Context) resp.Message {
	sv, ok, errReply := stringAt(c, c.ArgStr(1))
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return bulkStr("")
	}
	start, err1 := parseInt(c.ArgStr(2))
	end, err2 := parseInt(c.ArgStr(3))
	if err1 != nil || err2 != nil {
		return notInteger()
	}
	s, e := resolveRange(int(start), int(end), len(sv.Data))
	if s > e || s >= len(sv.Data) {
		return bulkStr("")
	}
	return bulk(sv.Data[s : e+1])
}

func cmdSetRange(c *Context) resp.Message {
	offset, err := parseInt(c.ArgStr(2))
	if err != nil || offset < 0 {
		return errMsg("ERR offset is out of range")
	}
	key := c.ArgStr(1)
	db := c.DB()
	v, created := db.GetOrCreate(key, func() values.Value { return values.NewString(nil) })
	sv, ok := v.(*values.StringValue)
	if !ok {
		return wrongType()
	}
	patch := c.Arg(3)
	need := int(offset) + len(patch)
	if need > len(sv.Data) {
		grown := make([]byte, need)
		copy(grown, sv.Data)
		sv.Set(grown)
	}
	copy(sv.Data[offset:], patch)
	if created {
		db.Touch(key, "set")
	} else {
		db.Touch(key, "setrange")
	}
	return intMsg(int64(len(sv.Data)))
}

func cmdGetEx(c *Context) resp.Message {
	key := c.ArgStr(1)
	sv, ok, errReply := stringAt(c, key)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return nilBulk()
	}
	db := c.DB()
	for i := 2; i < c.Argc(); i++ {
		switch upper(c.Arg(i)) {
		case "PERSIST":
			db.Persist(key)
		case "EX", "PX", "EXAT", "PXAT":
			opt := upper(c.Arg(i))
			i++
			if i >= c.Argc() {
				return syntaxErr()
			}
			n, err := parseInt(c.ArgStr(i))
			if err != nil {
				return notInteger()
			}
			var at time.Time
			switch opt {
			case "EX":
				at = time.Now().Add(time.Duration(n) * time.Second)
			case "PX":
				at = time.Now().Add(time.Duration(n) * time.Millisecond)
			case "EXAT":
				at = time.Unix(n, 0)
			case "PXAT":
				at = time.UnixMilli(n)
			}
			db.SetExpire(key, at)
		default:
			return syntaxErr()
		}
	}
	return bulk(sv.Data)
}
