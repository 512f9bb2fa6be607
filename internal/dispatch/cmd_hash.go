package dispatch

import (
	"strconv"
	"time"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerHashCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "HSET", Handler: cmdHSet, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "HMSET", Handler: cmdHMSet, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "HSETNX", Handler: cmdHSetNX, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "HGET", Handler: cmdHGet, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HMGET", Handler: cmdHMGet, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HGETALL", Handler: cmdHGetAll, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HDEL", Handler: cmdHDel, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "HEXISTS", Handler: cmdHExists, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HLEN", Handler: cmdHLen, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HKEYS", Handler: cmdHKeys, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HVALS", Handler: cmdHVals, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HINCRBY", Handler: cmdHIncrBy, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "HINCRBYFLOAT", Handler: cmdHIncrByFloat, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "HSTRLEN", Handler: cmdHStrlen, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HEXPIRE", Handler: cmdHExpire, MinArity: 5, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "HTTL", Handler: cmdHTTL, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "HPERSIST", Handler: cmdHPersist, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
}

func hashAt(c *Context, key string, createIfMissing bool) (*values.Hash, bool, resp.Message) {
	if !createIfMissing {
		v, ok := c.DB().Get(key)
		if !ok {
			return nil, false, resp.Message{}
		}
		h, ok := v.(*values.Hash)
		if !ok {
			return nil, true, wrongType()
		}
		return h, true, resp.Message{}
	}
	v, created := c.DB().GetOrCreate(key, func() values.Value { return values.NewHash() })
	h, ok := v.(*values.Hash)
	if !ok {
		return nil, true, wrongType()
	}
	_ = created
	return h, true, resp.Message{}
}

func cmdHSet(c *Context) resp.Message {
	if (c.Argc()-2)%2 != 0 {
		return wrongArity("hset")
	}
	key := c.ArgStr(1)
	h, _, errReply := hashAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	n := int64(0)
	for i := 2; i < c.Argc(); i += 2 {
		if h.Set(c.ArgStr(i), c.Arg(i+1)) {
			n++
		}
	}
	c.DB().Touch(key, "hset")
	return intMsg(n)
}

func cmdHMSet(c *Context) resp.Message {
	reply := cmdHSet(c)
	if reply.Type == resp.Error {
		return reply
	}
	return ok()
}

func cmdHSetNX(c *Context) resp.Message {
	key, field := c.ArgStr(1), c.ArgStr(2)
	h, _, errReply := hashAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	if h.Exists(field) {
		return intMsg(0)
	}
	h.Set(field, c.Arg(3))
	c.DB().Touch(key, "hset")
	return intMsg(1)
}

func cmdHGet(c *Context) resp.Message {
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return nilBulk()
	}
	v, ok := h.Get(c.ArgStr(2))
	if !ok {
		return nilBulk()
	}
	return bulk(v)
}

func cmdHMGet(c *Context) resp.Message {
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	out := make([]resp.Message, 0, c.Argc()-2)
	for i := 2; i < c.Argc(); i++ {
		if !ok {
			out = append(out, nilBulk())
			continue
		}
		if v, found := h.Get(c.ArgStr(i)); found {
			out = append(out, bulk(v))
		} else {
			out = append(out, nilBulk())
		}
	}
	return arr(out...)
}

func cmdHGetAll(c *Context) resp.Message {
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return arr()
	}
	all := h.All()
	out := make([]resp.Message, 0, len(all)*2)
	for f, v := range all {
		out = append(out, bulkStr(f), bulk(v))
	}
	return arr(out...)
}

func cmdHDel(c *Context) resp.Message {
	key := c.ArgStr(1)
	h, ok, errReply := hashAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	fields := make([]string, 0, c.Argc()-2)
	for i := 2; i < c.Argc(); i++ {
		fields = append(fields, c.ArgStr(i))
	}
	n := h.Del(fields...)
	c.DB().Touch(key, "hdel")
	c.DB().DeleteIfEmpty(key, h)
	return intMsg(int64(n))
}

func cmdHExists(c *Context) resp.Message {
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok || !h.Exists(c.ArgStr(2)) {
		return intMsg(0)
	}
	return intMsg(1)
}

func cmdHLen(c *Context) resp.Message {
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	return intMsg(int64(h.Len()))
}

func cmdHKeys(c *Context) resp.Message {
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return arr()
	}
	return resp.StringArray(h.Keys())
}

func cmdHVals(c *Context) resp.Message {
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return arr()
	}
	vals := h.Vals()
	out := make([]resp.Message, len(vals))
	for i, v := range vals {
		out[i] = bulk(v)
	}
	return arr(out...)
}

func cmdHIncrBy(c *Context) resp.Message {
	delta, err := parseInt(c.ArgStr(3))
	if err != nil {
		return notInteger()
	}
	key, field := c.ArgStr(1), c.ArgStr(2)
	h, _, errReply := hashAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	cur := int64(0)
	if v, ok := h.Get(field); ok {
		n, err := parseInt(string(v))
		if err != nil {
			return notInteger()
		}
		cur = n
	}
	cur += delta
	h.SetPreserveTTL(field, []byte(formatInt(cur)))
	c.DB().Touch(key, "hincrby")
	return intMsg(cur)
}

func cmdHIncrByFloat(c *Context) resp.Message {
	delta, err := parseFloat(c.ArgStr(3))
	if err != nil {
		return notFloat()
	}
	key, field := c.ArgStr(1), c.ArgStr(2)
	h, _, errReply := hashAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	cur := 0.0
	if v, ok := h.Get(field); ok {
		f, err := parseFloat(string(v))
		if err != nil {
			return notFloat()
		}
		cur = f
	}
	cur += delta
	h.SetPreserveTTL(field, []byte(values.FormatFloat(cur)))
	c.DB().Touch(key, "hincrbyfloat")
	return bulkStr(values.FormatFloat(cur))
}

func cmdHStrlen(c *Context) resp.Message {
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	v, ok := h.Get(c.ArgStr(2))
	if !ok {
		return intMsg(0)
	}
	return intMsg(int64(len(v)))
}

func cmdHExpire(c *Context) resp.Message {
	n, err := parseInt(c.ArgStr(2))
	if err != nil {
		return notInteger()
	}
	fieldsIdx := findOpt(c.Argv, 3, "FIELDS")
	if fieldsIdx < 0 || fieldsIdx+2 > c.Argc() {
		return syntaxErr()
	}
	key := c.ArgStr(1)
	h, ok, errReply := hashAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	numFields, _ := parseInt(c.ArgStr(fieldsIdx + 1))
	fields := c.Argv[fieldsIdx+2:]
	out := make([]resp.Message, 0, numFields)
	for _, f := range fields {
		if !ok || !h.Exists(string(f)) {
			out = append(out, intMsg(-2))
			continue
		}
		h.SetFieldExpire(string(f), time.Now().Add(time.Duration(n)*time.Second))
		out = append(out, intMsg(1))
	}
	c.DB().Touch(key, "hexpire")
	return arr(out...)
}

func cmdHTTL(c *Context) resp.Message {
	fieldsIdx := findOpt(c.Argv, 2, "FIELDS")
	if fieldsIdx < 0 || fieldsIdx+2 > c.Argc() {
		return syntaxErr()
	}
	h, ok, errReply := hashAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	fields := c.Argv[fieldsIdx+2:]
	out := make([]resp.Message, 0, len(fields))
	for _, f := range fields {
		if !ok || !h.Exists(string(f)) {
			out = append(out, intMsg(-2))
			continue
		}
		if d, hasTTL, ok2 := h.FieldTTL(string(f)); ok2 && hasTTL {
			out = append(out, intMsg(int64(d.Seconds())))
		} else {
			out = append(out, intMsg(-1))
		}
	}
	return arr(out...)
}

func cmdHPersist(c *Context) resp.Message {
	fieldsIdx := findOpt(c.Argv, 2, "FIELDS")
	if fieldsIdx < 0 || fieldsIdx+2 > c.Argc() {
		return syntaxErr()
	}
	key := c.ArgStr(1)
	h, ok, errReply := hashAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	fields := c.Argv[fieldsIdx+2:]
	out := make([]resp.Message, 0, len(fields))
	for _, f := range fields {
		if !ok || !h.Exists(string(f)) {
			out = append(out, intMsg(-2))
			continue
		}
		if h.PersistField(string(f)) {
			out = append(out, intMsg(1))
		} else {
			out = append(out, intMsg(-1))
		}
	}
	c.DB().Touch(key, "hpersist")
	return arr(out...)
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
