package dispatch

import (
	"time"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerZSetCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "ZADD", Handler: cmdZAdd, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "ZREM", Handler: cmdZRem, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "ZSCORE", Handler: cmdZScore, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "ZMSCORE", Handler: cmdZMScore, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "ZRANK", Handler: cmdZRank, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "ZREVRANK", Handler: cmdZRevRank, MinArity: 3, MaxArity: 3, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "ZRANGE", Handler: cmdZRange, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "ZREVRANGE", Handler: cmdZRevRange, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "ZINCRBY", Handler: cmdZIncrBy, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "ZCARD", Handler: cmdZCard, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "ZCOUNT", Handler: cmdZCount, MinArity: 4, MaxArity: 4, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "ZRANGEBYSCORE", Handler: cmdZRangeByScore, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "BZPOPMIN", Handler: cmdBZPopMin, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: -2, Step: 1, Blocking: true})
	add(t, HandlerSpec{Name: "BZPOPMAX", Handler: cmdBZPopMax, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: -2, Step: 1, Blocking: true})
}

func zsetAt(c *Context, key string, createIfMissing bool) (*values.ZSet, bool, resp.Message) {
	if !createIfMissing {
		v, ok := c.DB().Get(key)
		if !ok {
			return nil, false, resp.Message{}
		}
		z, ok := v.(*values.ZSet)
		if !ok {
			return nil, true, wrongType()
		}
		return z, true, resp.Message{}
	}
	v, _ := c.DB().GetOrCreate(key, func() values.Value { return values.NewZSet() })
	z, ok := v.(*values.ZSet)
	if !ok {
		return nil, true, wrongType()
	}
	return z, true, resp.Message{}
}

func cmdZAdd(c *Context) resp.Message {
	key := c.ArgStr(1)
	var nx, xx, gt, lt, ch bool
	i := 2
	for i < c.Argc() {
		switch upper(c.Arg(i)) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GT":
			gt = true
		case "LT":
			lt = true
		case "CH":
			ch = true
		case "INCR":
			// Accepted and ignored: scores are set, not incremented, and
			// the reply is still the added count (added plus changed
			// under CH).
		default:
			goto pairs
		}
		i++
	}
pairs:
	if (c.Argc()-i)%2 != 0 || c.Argc() == i {
		return syntaxErr()
	}
	// NX combined with GT/LT is accepted (§8): NX only ever adds brand-new
	// members, so the GT/LT comparison below never has an existing score
	// to apply to on the NX path — an existing member under NX GT/LT is a
	// no-op, not an error.

	z, _, errReply := zsetAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}

	added, changed := int64(0), int64(0)
	for j := i; j < c.Argc(); j += 2 {
		score, err := parseFloat(c.ArgStr(j))
		if err != nil {
			return notFloat()
		}
		member := c.ArgStr(j + 1)
		old, existed := z.Score(member)
		if nx && existed {
			continue
		}
		if xx && !existed {
			continue
		}
		if existed && gt && score <= old {
			continue
		}
		if existed && lt && score >= old {
			continue
		}
		isNew := z.Add(member, score)
		if isNew {
			added++
		} else if old != score {
			changed++
		}
	}
	c.DB().Touch(key, "zadd")
	if ch {
		return intMsg(added + changed)
	}
	return intMsg(added)
}

func cmdZRem(c *Context) resp.Message {
	key := c.ArgStr(1)
	z, ok, errReply := zsetAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	n := int64(0)
	for i := 2; i < c.Argc(); i++ {
		if z.Rem(c.ArgStr(i)) {
			n++
		}
	}
	c.DB().Touch(key, "zrem")
	c.DB().DeleteIfEmpty(key, z)
	return intMsg(n)
}

func cmdZScore(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return nilBulk()
	}
	s, found := z.Score(c.ArgStr(2))
	if !found {
		return nilBulk()
	}
	return bulkStr(values.FormatFloat(s))
}

func cmdZMScore(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	out := make([]resp.Message, 0, c.Argc()-2)
	for i := 2; i < c.Argc(); i++ {
		if ok {
			if s, found := z.Score(c.ArgStr(i)); found {
				out = append(out, bulkStr(values.FormatFloat(s)))
				continue
			}
		}
		out = append(out, nilBulk())
	}
	return arr(out...)
}

func cmdZRank(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return nilBulk()
	}
	r := z.Rank(c.ArgStr(2))
	if r < 0 {
		return nilBulk()
	}
	return intMsg(int64(r))
}

func cmdZRevRank(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return nilBulk()
	}
	r := z.RevRank(c.ArgStr(2))
	if r < 0 {
		return nilBulk()
	}
	return intMsg(int64(r))
}

func membersWithScores(members []values.Member, withScores bool) resp.Message {
	var out []resp.Message
	for _, m := range members {
		out = append(out, bulkStr(m.Member))
		if withScores {
			out = append(out, bulkStr(values.FormatFloat(m.Score)))
		}
	}
	return arr(out...)
}

func cmdZRange(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	start, err1 := parseInt(c.ArgStr(2))
	stop, err2 := parseInt(c.ArgStr(3))
	if err1 != nil || err2 != nil {
		return notInteger()
	}
	withScores := findOpt(c.Argv, 4, "WITHSCORES") >= 0
	if !ok {
		return arr()
	}
	return membersWithScores(z.RangeByRank(int(start), int(stop), false), withScores)
}

func cmdZRevRange(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	start, err1 := parseInt(c.ArgStr(2))
	stop, err2 := parseInt(c.ArgStr(3))
	if err1 != nil || err2 != nil {
		return notInteger()
	}
	withScores := findOpt(c.Argv, 4, "WITHSCORES") >= 0
	if !ok {
		return arr()
	}
	return membersWithScores(z.RangeByRank(int(start), int(stop), true), withScores)
}

func cmdZIncrBy(c *Context) resp.Message {
	delta, err := parseFloat(c.ArgStr(2))
	if err != nil {
		return notFloat()
	}
	key := c.ArgStr(1)
	z, _, errReply := zsetAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}
	score, err := z.IncrBy(c.ArgStr(3), delta)
	if err != nil {
		return errMsg("ERR resulting score is not a number (NaN)")
	}
	c.DB().Touch(key, "zincrby")
	return bulkStr(values.FormatFloat(score))
}

func cmdZCard(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	return intMsg(int64(z.Len()))
}

func parseScoreRange(minStr, maxStr string) (values.ScoreRange, error) {
	var r values.ScoreRange
	min, exclMin, err := parseBound(minStr)
	if err != nil {
		return r, err
	}
	max, exclMax, err := parseBound(maxStr)
	if err != nil {
		return r, err
	}
	return values.ScoreRange{Min: min, Max: max, ExclMin: exclMin, ExclMax: exclMax}, nil
}

func parseBound(s string) (float64, bool, error) {
	excl := false
	if len(s) > 0 && s[0] == '(' {
		excl = true
		s = s[1:]
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, false, err
	}
	return f, excl, nil
}

func cmdZCount(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	r, err := parseScoreRange(c.ArgStr(2), c.ArgStr(3))
	if err != nil {
		return notFloat()
	}
	if !ok {
		return intMsg(0)
	}
	return intMsg(int64(z.CountByScore(r)))
}

func cmdZRangeByScore(c *Context) resp.Message {
	z, ok, errReply := zsetAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	r, err := parseScoreRange(c.ArgStr(2), c.ArgStr(3))
	if err != nil {
		return notFloat()
	}
	withScores := false
	offset, count := 0, -1
	for i := 4; i < c.Argc(); i++ {
		switch upper(c.Arg(i)) {
		case "WITHSCORES":
			withScores = true
		case "LIMIT":
			if i+2 >= c.Argc() {
				return syntaxErr()
			}
			o, err1 := parseInt(c.ArgStr(i + 1))
			n, err2 := parseInt(c.ArgStr(i + 2))
			if err1 != nil || err2 != nil {
				return notInteger()
			}
			offset, count = int(o), int(n)
			i += 2
		}
	}
	if !ok {
		return arr()
	}
	return membersWithScores(z.RangeByScore(r, offset, count), withScores)
}

func blockingZPop(c *Context, min bool) resp.Message {
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
		if reply, ok := popOneFromZSet(c, k, min); ok {
			db.Unlock()
			return reply
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
	w := c.Blocking().Wait(c.S.ID, c.S.DBIndex, keys, values.KindZSet, deadline)
	db.Unlock()

	result := <-w.Done()
	if result.TimedOut || result.Key == "" {
		return nilArray()
	}
	db.Lock()
	defer db.Unlock()
	if reply, ok := popOneFromZSet(c, result.Key, min); ok {
		return reply
	}
	return nilArray()
}

func popOneFromZSet(c *Context, key string, min bool) (resp.Message, bool) {
	z, ok, errReply := zsetAt(c, key, false)
	if errReply.Type == resp.Error || !ok || z.Len() == 0 {
		return resp.Message{}, false
	}
	var picked values.Member
	if min {
		picked = z.RangeByRank(0, 0, false)[0]
	} else {
		picked = z.RangeByRank(0, 0, true)[0]
	}
	z.Rem(picked.Member)
	c.DB().Touch(key, "zpop")
	c.DB().DeleteIfEmpty(key, z)
	return arr(bulkStr(key), bulkStr(picked.Member), bulkStr(values.FormatFloat(picked.Score))), true
}

func cmdBZPopMin(c *Context) resp.Message { return blockingZPop(c, true) }
func cmdBZPopMax(c *Context) resp.Message { return blockingZPop(c, false) }
