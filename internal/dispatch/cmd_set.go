package dispatch

import (
	"math/rand"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerSetCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "SADD", Handler: cmdSAdd, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "SREM", Handler: cmdSRem, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "SMEMBERS", Handler: cmdSMembers, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "SISMEMBER", Handler: cmdSIsMember, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "SMISMEMBER", Handler: cmdSMIsMember, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "SCARD", Handler: cmdSCard, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "SPOP", Handler: cmdSPop, MinArity: 2, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "SRANDMEMBER", Handler: cmdSRandMember, MinArity: 2, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "SUNION", Handler: cmdSUnion, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1})
	add(t, HandlerSpec{Name: "SINTER", Handler: cmdSInter, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1})
	add(t, HandlerSpec{Name: "SDIFF", Handler: cmdSDiff, MinArity: 2, MaxArity: -1, FirstKey: 1, LastKey: -1, Step: 1})
}

func setAt(c *Context, key string, createIfMissing bool) (*values.Set, bool, resp.Message) {
	if !createIfMissing {
		v, ok := c.DB().Get(key)
		if !ok {
			return nil, false, resp.Message{}
		}
		s, ok := v.(*values.Set)
		if !ok {
			return nil, true, wrongType()
		}
		return s, true, resp.Message{}
	}
	v, _ := c.DB().GetOrCreate(key, func() values.Value { return values.NewSet() })
	s, ok := v.(*values.Set)
	if !ok {
		return nil, true, wrongType()
	}
	return s, true, resp.Message{}
}

func cmdSAdd(c *Context) resp.Message {
	key := c.ArgStr(1)
	s, _, errReply := setAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	n := int64(0)
	for i := 2; i < c.Argc(); i++ {
		if s.Add(c.Arg(i)) {
			n++
		}
	}
	c.DB().Touch(key, "sadd")
	return intMsg(n)
}

func cmdSRem(c *Context) resp.Message {
	key := c.ArgStr(1)
	s, ok, errReply := setAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	n := int64(0)
	for i := 2; i < c.Argc(); i++ {
		if s.Rem(c.Arg(i)) {
			n++
		}
	}
	c.DB().Touch(key, "srem")
	c.DB().DeleteIfEmpty(key, s)
	return intMsg(n)
}

func membersReply(members [][]byte) resp.Message {
	out := make([]resp.Message, len(members))
	for i, m := range members {
		out[i] = bulk(m)
	}
	return arr(out...)
}

func cmdSMembers(c *Context) resp.Message {
	s, ok, errReply := setAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return arr()
	}
	return membersReply(s.Members())
}

func cmdSIsMember(c *Context) resp.Message {
	s, ok, errReply := setAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok || !s.Contains(c.Arg(2)) {
		return intMsg(0)
	}
	return intMsg(1)
}

func cmdSMIsMember(c *Context) resp.Message {
	s, ok, errReply := setAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	out := make([]resp.Message, 0, c.Argc()-2)
	for i := 2; i < c.Argc(); i++ {
		if ok && s.Contains(c.Arg(i)) {
			out = append(out, intMsg(1))
		} else {
			out = append(out, intMsg(0))
		}
	}
	return arr(out...)
}

func cmdSCard(c *Context) resp.Message {
	s, ok, errReply := setAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	return intMsg(int64(s.Len()))
}

func cmdSPop(c *Context) resp.Message {
	key := c.ArgStr(1)
	s, ok, errReply := setAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	withCount := c.Argc() == 3
	count := 1
	if withCount {
		n, err := parseInt(c.ArgStr(2))
		if err != nil || n < 0 {
			return notInteger()
		}
		count = int(n)
	}
	if !ok {
		if withCount {
			return arr()
		}
		return nilBulk()
	}
	members := s.Members()
	rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
	if count > len(members) {
		count = len(members)
	}
	picked := members[:count]
	for _, m := range picked {
		s.Rem(m)
	}
	c.DB().Touch(key, "spop")
	c.DB().DeleteIfEmpty(key, s)
	if !withCount {
		if len(picked) == 0 {
			return nilBulk()
		}
		return bulk(picked[0])
	}
	return membersReply(picked)
}

func cmdSRandMember(c *Context) resp.Message {
	s, ok, errReply := setAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		if c.Argc() == 3 {
			return arr()
		}
		return nilBulk()
	}
	members := s.Members()
	if c.Argc() == 2 {
		if len(members) == 0 {
			return nilBulk()
		}
		return bulk(members[rand.Intn(len(members))])
	}
	n, err := parseInt(c.ArgStr(2))
	if err != nil {
		return notInteger()
	}
	if n >= 0 {
		rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		count := int(n)
		if count > len(members) {
			count = len(members)
		}
		return membersReply(members[:count])
	}
	count := int(-n)
	out := make([][]byte, count)
	for i := range out {
		if len(members) == 0 {
			out[i] = nil
			continue
		}
		out[i] = members[rand.Intn(len(members))]
	}
	return membersReply(out)
}

func loadSets(c *Context, start int) ([]*values.Set, resp.Message) {
	var sets []*values.Set
	for i := start; i < c.Argc(); i++ {
		s, ok, errReply := setAt(c, c.ArgStr(i), false)
		if errReply.Type == resp.Error {
			return nil, errReply
		}
		if ok {
			sets = append(sets, s)
		} else {
			sets = append(sets, values.NewSet())
		}
	}
	return sets, resp.Message{}
}

func cmdSUnion(c *Context) resp.Message {
	sets, errReply := loadSets(c, 1)
	if errReply.Type == resp.Error {
		return errReply
	}
	return membersReply(values.Union(sets...))
}

func cmdSInter(c *Context) resp.Message {
	sets, errReply := loadSets(c, 1)
	if errReply.Type == resp.Error {
		return errReply
	}
	return membersReply(values.Inter(sets...))
}

func cmdSDiff(c *Context) resp.Message {
	sets, errReply := loadSets(c, 1)
	if errReply.Type == resp.Error {
		return errReply
	}
	return membersReply(values.Diff(sets[0], sets[1:]...))
}
