package dispatch

import (
	"time"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/values"
)

func registerStreamCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "XADD", Handler: cmdXAdd, MinArity: 5, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "XLEN", Handler: cmdXLen, MinArity: 2, MaxArity: 2, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "XRANGE", Handler: cmdXRange, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "XREVRANGE", Handler: cmdXRevRange, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "XTRIM", Handler: cmdXTrim, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "XREAD", Handler: cmdXRead, MinArity: 4, MaxArity: -1, Blocking: true})
	add(t, HandlerSpec{Name: "XGROUP", Handler: cmdXGroup, MinArity: 2, MaxArity: -1, FirstKey: 2, LastKey: 2, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "XACK", Handler: cmdXAck, MinArity: 4, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
	add(t, HandlerSpec{Name: "XPENDING", Handler: cmdXPending, MinArity: 3, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1})
	add(t, HandlerSpec{Name: "XCLAIM", Handler: cmdXClaim, MinArity: 6, MaxArity: -1, FirstKey: 1, LastKey: 1, Step: 1, Write: true})
}

func streamAt(c *Context, key string, createIfMissing bool) (*values.Stream, bool, resp.Message) {
	if !createIfMissing {
		v, ok := c.DB().Get(key)
		if !ok {
			return nil, false, resp.Message{}
		}
		s, ok := v.(*values.Stream)
		if !ok {
			return nil, true, wrongType()
		}
		return s, true, resp.Message{}
	}
	v, _ := c.DB().GetOrCreate(key, func() values.Value { return values.NewStream() })
	s, ok := v.(*values.Stream)
	if !ok {
		return nil, true, wrongType()
	}
	return s, true, resp.Message{}
}

func entryReply(e values.StreamEntry) resp.Message {
	fields := make([]resp.Message, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = bulkStr(f)
	}
	return arr(bulkStr(e.ID.String()), arr(fields...))
}

func cmdXAdd(c *Context) resp.Message {
	key := c.ArgStr(1)
	idArg := c.ArgStr(2)
	fieldsStart := 3
	// NOMKSTREAM / MAXLEN / MINID trimming options may precede the ID; this
	// core recognizes MAXLEN [~|=] N (always trimmed exactly) and skips
	// NOMKSTREAM without honoring it. MINID and LIMIT are not recognized.
	maxLen := -1
	for idArg == "MAXLEN" || idArg == "NOMKSTREAM" {
		if idArg == "MAXLEN" {
			if a := c.ArgStr(fieldsStart); a == "~" || a == "=" {
				fieldsStart++
			}
			n, err := parseInt(c.ArgStr(fieldsStart))
			if err != nil || n < 0 {
				return notInteger()
			}
			maxLen = int(n)
			fieldsStart++
		}
		fieldsStart++
		idArg = c.ArgStr(fieldsStart - 1)
	}
	if (c.Argc()-fieldsStart)%2 != 0 || c.Argc() == fieldsStart {
		return syntaxErr()
	}

	s, _, errReply := streamAt(c, key, true)
	if errReply.Type == resp.Error {
		return errReply
	}

	var idHint *values.StreamID
	if idArg != "*" {
		id, err := values.ParseStreamID(idArg, false)
		if err != nil {
			return errMsg("ERR Invalid stream ID specified as stream command argument")
		}
		idHint = &id
	}
	fields := make([]string, 0, c.Argc()-fieldsStart)
	for i := fieldsStart; i < c.Argc(); i++ {
		fields = append(fields, c.ArgStr(i))
	}
	id, err := s.Add(idHint, fields, uint64(time.Now().UnixMilli()))
	if err != nil {
		return errMsg("ERR " + err.Error())
	}
	if maxLen >= 0 {
		s.Trim(maxLen)
	}
	c.DB().Touch(key, "xadd")
	c.Blocking().SignalKeyReady(c.S.DBIndex, key, values.KindStream, func() int { return 1 })
	return bulkStr(id.String())
}

func cmdXLen(c *Context) resp.Message {
	s, ok, errReply := streamAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	return intMsg(int64(s.Len()))
}

func parseStreamBound(s string, defaultSeqMax bool) (values.StreamID, error) {
	if s == "-" {
		return values.StreamID{}, nil
	}
	if s == "+" {
		return values.StreamID{MS: ^uint64(0), Seq: ^uint64(0)}, nil
	}
	return values.ParseStreamID(s, defaultSeqMax)
}

func cmdXRange(c *Context) resp.Message {
	s, ok, errReply := streamAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	start, err1 := parseStreamBound(c.ArgStr(2), false)
	end, err2 := parseStreamBound(c.ArgStr(3), true)
	if err1 != nil || err2 != nil {
		return errMsg("ERR Invalid stream ID specified as stream command argument")
	}
	count := -1
	if idx := findOpt(c.Argv, 4, "COUNT"); idx >= 0 && idx+1 < c.Argc() {
		n, err := parseInt(c.ArgStr(idx + 1))
		if err == nil {
			count = int(n)
		}
	}
	if !ok {
		return arr()
	}
	entries := s.Range(start, end, count)
	out := make([]resp.Message, len(entries))
	for i, e := range entries {
		out[i] = entryReply(e)
	}
	return arr(out...)
}

func cmdXRevRange(c *Context) resp.Message {
	s, ok, errReply := streamAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	end, err1 := parseStreamBound(c.ArgStr(2), true)
	start, err2 := parseStreamBound(c.ArgStr(3), false)
	if err1 != nil || err2 != nil {
		return errMsg("ERR Invalid stream ID specified as stream command argument")
	}
	if !ok {
		return arr()
	}
	entries := s.RevRange(start, end, -1)
	out := make([]resp.Message, len(entries))
	for i, e := range entries {
		out[i] = entryReply(e)
	}
	return arr(out...)
}

func cmdXTrim(c *Context) resp.Message {
	key := c.ArgStr(1)
	s, ok, errReply := streamAt(c, key, false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	strategy := upper(c.Arg(2))
	if strategy != "MAXLEN" {
		return errMsg("ERR syntax error")
	}
	idx := 3
	if c.ArgStr(idx) == "~" || c.ArgStr(idx) == "=" {
		idx++
	}
	n, err := parseInt(c.ArgStr(idx))
	if err != nil {
		return notInteger()
	}
	removed := s.Trim(int(n))
	c.DB().Touch(key, "xtrim")
	return intMsg(int64(removed))
}

func cmdXRead(c *Context) resp.Message {
	countIdx := findOpt(c.Argv, 1, "COUNT")
	blockIdx := findOpt(c.Argv, 1, "BLOCK")
	streamsIdx := findOpt(c.Argv, 1, "STREAMS")
	if streamsIdx < 0 {
		return syntaxErr()
	}
	count := -1
	if countIdx >= 0 {
		n, err := parseInt(c.ArgStr(countIdx + 1))
		if err == nil {
			count = int(n)
		}
	}
	var blockMS int64 = -1
	if blockIdx >= 0 {
		n, err := parseInt(c.ArgStr(blockIdx + 1))
		if err != nil {
			return notInteger()
		}
		blockMS = n
	}

	rest := c.Argv[streamsIdx+1:]
	if len(rest)%2 != 0 {
		return errMsg("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := make([]string, n)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = string(rest[i])
		ids[i] = string(rest[n+i])
	}

	db := c.DB()
	db.Lock()
	if reply, found := tryXRead(c, keys, ids, count); found {
		db.Unlock()
		return reply
	}
	if blockIdx < 0 || c.NoBlock {
		db.Unlock()
		return nilArray()
	}

	var deadline time.Time
	if blockMS > 0 {
		deadline = time.Now().Add(time.Duration(blockMS) * time.Millisecond)
	}
	// Pin "$" to each stream's last ID as of now, so the re-read after
	// wakeup returns the entries added while waiting.
	for i, id := range ids {
		if id == "$" {
			ids[i] = "0-0"
			if s, ok, _ := streamAt(c, keys[i], false); ok {
				ids[i] = s.LastID().String()
			}
		}
	}
	w := c.Blocking().Wait(c.S.ID, c.S.DBIndex, keys, values.KindStream, deadline)
	db.Unlock()

	result := <-w.Done()
	if result.TimedOut {
		return nilArray()
	}
	db.Lock()
	defer db.Unlock()
	if reply, found := tryXRead(c, keys, ids, count); found {
		return reply
	}
	return nilArray()
}

func tryXRead(c *Context, keys, ids []string, count int) (resp.Message, bool) {
	var out []resp.Message
	for i, key := range keys {
		s, ok, errReply := streamAt(c, key, false)
		if errReply.Type == resp.Error || !ok {
			continue
		}
		var after values.StreamID
		if ids[i] == "$" {
			after = s.LastID()
		} else {
			id, err := values.ParseStreamID(ids[i], true)
			if err != nil {
				continue
			}
			after = id
		}
		entries := s.ReadAfter(after, count)
		if len(entries) == 0 {
			continue
		}
		entryMsgs := make([]resp.Message, len(entries))
		for j, e := range entries {
			entryMsgs[j] = entryReply(e)
		}
		out = append(out, arr(bulkStr(key), arr(entryMsgs...)))
	}
	if len(out) == 0 {
		return resp.Message{}, false
	}
	return arr(out...), true
}

func cmdXGroup(c *Context) resp.Message {
	sub := upper(c.Arg(1))
	switch sub {
	case "CREATE":
		if c.Argc() < 5 {
			return wrongArity("xgroup")
		}
		key := c.ArgStr(2)
		s, _, errReply := streamAt(c, key, true)
		if errReply.Type == resp.Error {
			return errReply
		}
		startArg := c.ArgStr(4)
		var start values.StreamID
		if startArg == "$" {
			start = s.LastID()
		} else {
			id, err := values.ParseStreamID(startArg, true)
			if err != nil {
				return errMsg("ERR Invalid stream ID specified as stream command argument")
			}
			start = id
		}
		if err := s.CreateGroup(c.ArgStr(3), start); err != nil {
			return errMsg("BUSYGROUP Consumer Group name already exists")
		}
		return ok()
	default:
		return errMsg("ERR Unknown XGROUP subcommand")
	}
}

func cmdXAck(c *Context) resp.Message {
	s, ok, errReply := streamAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return intMsg(0)
	}
	ids := make([]values.StreamID, 0, c.Argc()-3)
	for i := 3; i < c.Argc(); i++ {
		id, err := values.ParseStreamID(c.ArgStr(i), false)
		if err != nil {
			return errMsg("ERR Invalid stream ID specified as stream command argument")
		}
		ids = append(ids, id)
	}
	n, err := s.Ack(c.ArgStr(2), ids)
	if err != nil {
		return errMsg("NOGROUP No such consumer group")
	}
	return intMsg(int64(n))
}

func cmdXPending(c *Context) resp.Message {
	s, ok, errReply := streamAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return errMsg("NOGROUP No such key or consumer group")
	}
	count, minID, maxID, perConsumer, err := s.Pending(c.ArgStr(2))
	if err != nil {
		return errMsg("NOGROUP No such consumer group")
	}
	if count == 0 {
		return arr(intMsg(0), nilBulk(), nilBulk(), nilArray())
	}
	consumers := make([]resp.Message, 0, len(perConsumer))
	for name, n := range perConsumer {
		consumers = append(consumers, arr(bulkStr(name), bulkStr(formatCursor(uint64(n)))))
	}
	return arr(intMsg(int64(count)), bulkStr(minID.String()), bulkStr(maxID.String()), arr(consumers...))
}

func cmdXClaim(c *Context) resp.Message {
	s, ok, errReply := streamAt(c, c.ArgStr(1), false)
	if errReply.Type == resp.Error {
		return errReply
	}
	if !ok {
		return arr()
	}
	minIdle, err := parseInt(c.ArgStr(4))
	if err != nil {
		return notInteger()
	}
	ids := make([]values.StreamID, 0, c.Argc()-5)
	for i := 5; i < c.Argc(); i++ {
		id, err := values.ParseStreamID(c.ArgStr(i), false)
		if err != nil {
			break
		}
		ids = append(ids, id)
	}
	entries, err := s.Claim(c.ArgStr(2), c.ArgStr(3), ids, minIdle, time.Now().UnixMilli())
	if err != nil {
		return errMsg("NOGROUP No such consumer group")
	}
	out := make([]resp.Message, len(entries))
	for i, e := range entries {
		out[i] = entryReply(e)
	}
	return arr(out...)
}
