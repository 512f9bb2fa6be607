package dispatch

import (
	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerHLLCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "PFADD", Handler: cmdPFAdd, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "PFCOUNT", Handler: cmdPFCount, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1})
	add(t, HandlerSpec{Name: "PFMERGE", Handler: cmdPFMerge, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1, Write: true})
}

func hllAt(c *Context, key string, createIfMissing bool) (*values.HLL, bool, resp.Message) {
	if !createIfMissing {
		v, ok := c.DB().Get(key)
		if !ok {
			return nil, false, resp.Message{}
		}
		h, ok := v.(*values.HLL)
		if !ok {
			return nil, true, wrongType()
		}
		return h, true, resp.Message{}
	}
	v, _ := c.DB().GetOrCreate(key, func() values.Value { return values.NewHLL() })
	h, ok := v.(*values.HLL)
	if !ok {
		return nil, true, wrongType()
	}
	return h, true, resp.Message{}
}

func cmdPFAdd(c *Context) resp.Message {
	key := c.ArgStr(1)
	h, _, errReply := hllAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	changed := false
	for i := 2; i < c.Argc(); i++ {
		if h.Add(c.Arg(i)) {
			changed = true
		}
	}
	if changed {
		c.DB().Touch(key, "pfadd")
		return intMsg(1)
	}
	return intMsg(0)
}

func cmdPFCount(c *Context) resp.Message {
	var merged *values.HLL
	for i := 1; i < c.Argc(); i++ {
		h, ok, errReply := hllAt(c, c.ArgStr(i), false)
		if errReply.Type == resp.Error {
			return errReply
		}
		if !ok {
			continue
		}
		if merged == nil {
			merged = values.NewHLL()
		}
		merged.Merge(h)
	}
	if merged == nil {
		return intMsg(0)
	}
	return intMsg(int64(merged.Count()))
}

func cmdPFMerge(c *Context) resp.Message {
	dest := c.ArgStr(1)
	destHLL, _, errReply := hllAt(c, dest, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	for i := 2; i < c.Argc(); i++ {
		src, ok, errReply := hllAt(c, c.ArgStr(i), false)
		if errReply.Type == resp.Error {
			return errReply
		}
		if ok {
			destHLL.Merge(src)
		}
	}
	c.DB().Touch(dest, "pfmerge")
	return ok()
}
