package dispatch

import (
	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/session"
)

func registerPubSubCommands(t VerbTable) {
	add(t, HandlerSpec{Name: "SUBSCRIBE", Handler: cmdSubscribe, MinArity: 2, MaxArity: -1, Pubsub: true, ClusterExempt: true})
	add(t, HandlerSpec{Name: "UNSUBSCRIBE", Handler: cmdUnsubscribe, MinArity: 1, MaxArity: -1, Pubsub: true, ClusterExempt: true})
	add(t, HandlerSpec{Name: "PSUBSCRIBE", Handler: cmdPSubscribe, MinArity: 2, MaxArity: -1, Pubsub: true, ClusterExempt: true})
	add(t, HandlerSpec{Name: "PUNSUBSCRIBE", Handler: cmdPUnsubscribe, MinArity: 1, MaxArity: -1, Pubsub: true, ClusterExempt: true})
	add(t, HandlerSpec{Name: "PUBLISH", Handler: cmdPublish, MinArity: 3, MaxArity: 3, ClusterExempt: true})
	add(t, HandlerSpec{Name: "PUBSUB", Handler: cmdPubSub, MinArity: 2, MaxArity: -1, ClusterExempt: true})
}

// sessionPublisher adapts a session into pubsub.Publisher by writing the
// push-style reply straight to its connection.
type sessionPublisher struct{ s *session.Session }

func (p sessionPublisher) Deliver(kind, channel, pattern string, payload []byte) {
	var msg resp.Message
	if pattern != "" {
		msg = resp.BulkStringArray([][]byte{[]byte(kind), []byte(pattern), []byte(channel), payload})
	} else {
		msg = resp.BulkStringArray([][]byte{[]byte(kind), []byte(channel), payload})
	}
	p.s.WriteReply(msg)
	p.s.Flush()
}

func cmdSubscribe(c *Context) resp.Message {
	c.S.Subscribed = true
	for i := 1; i < c.Argc(); i++ {
		ch := c.ArgStr(i)
		c.S.Subscriptions[ch] = struct{}{}
		c.PubSub().Subscribe(c.S.ID, ch, sessionPublisher{c.S})
		count := len(c.S.Subscriptions) + len(c.S.PatternSubscriptions)
		c.S.WriteReply(resp.BulkStringArray([][]byte{[]byte("subscribe"), []byte(ch), []byte(formatCursor(uint64(count)))}))
	}
	c.S.Flush()
	return resp.Message{} // replies already written directly; dispatcher writes nothing further
}

func cmdUnsubscribe(c *Context) resp.Message {
	channels := make([]string, 0, c.Argc()-1)
	if c.Argc() == 1 {
		for ch := range c.S.Subscriptions {
			channels = append(channels, ch)
		}
	} else {
		for i := 1; i < c.Argc(); i++ {
			channels = append(channels, c.ArgStr(i))
		}
	}
	for _, ch := range channels {
		c.PubSub().Unsubscribe(c.S.ID, ch)
		delete(c.S.Subscriptions, ch)
		count := len(c.S.Subscriptions) + len(c.S.PatternSubscriptions)
		c.S.WriteReply(resp.BulkStringArray([][]byte{[]byte("unsubscribe"), []byte(ch), []byte(formatCursor(uint64(count)))}))
	}
	if len(c.S.Subscriptions) == 0 && len(c.S.PatternSubscriptions) == 0 {
		c.S.Subscribed = false
	}
	c.S.Flush()
	return resp.Message{}
}

func cmdPSubscribe(c *Context) resp.Message {
	c.S.Subscribed = true
	for i := 1; i < c.Argc(); i++ {
		pat := c.ArgStr(i)
		c.S.PatternSubscriptions[pat] = struct{}{}
		c.PubSub().PSubscribe(c.S.ID, pat, sessionPublisher{c.S})
		count := len(c.S.Subscriptions) + len(c.S.PatternSubscriptions)
		c.S.WriteReply(resp.BulkStringArray([][]byte{[]byte("psubscribe"), []byte(pat), []byte(formatCursor(uint64(count)))}))
	}
	c.S.Flush()
	return resp.Message{}
}

func cmdPUnsubscribe(c *Context) resp.Message {
	patterns := make([]string, 0, c.Argc()-1)
	if c.Argc() == 1 {
		for p := range c.S.PatternSubscriptions {
			patterns = append(patterns, p)
		}
	} else {
		for i := 1; i < c.Argc(); i++ {
			patterns = append(patterns, c.ArgStr(i))
		}
	}
	for _, pat := range patterns {
		c.PubSub().PUnsubscribe(c.S.ID, pat)
		delete(c.S.PatternSubscriptions, pat)
		count := len(c.S.Subscriptions) + len(c.S.PatternSubscriptions)
		c.S.WriteReply(resp.BulkStringArray([][]byte{[]byte("punsubscribe"), []byte(pat), []byte(formatCursor(uint64(count)))}))
	}
	if len(c.S.Subscriptions) == 0 && len(c.S.PatternSubscriptions) == 0 {
		c.S.Subscribed = false
	}
	c.S.Flush()
	return resp.Message{}
}

func cmdPublish(c *Context) resp.Message {
	n := c.PubSub().Publish(c.ArgStr(1), c.Arg(2))
	return intMsg(int64(n))
}

func cmdPubSub(c *Context) resp.Message {
	switch upper(c.Arg(1)) {
	case "CHANNELS":
		pattern := "*"
		if c.Argc() == 3 {
			pattern = c.ArgStr(2)
		}
		return resp.StringArray(c.PubSub().ChannelsWithSubscribers(pattern))
	case "NUMSUB":
		out := make([]resp.Message, 0, (c.Argc()-2)*2)
		for i := 2; i < c.Argc(); i++ {
			ch := c.ArgStr(i)
			out = append(out, bulkStr(ch), intMsg(int64(c.PubSub().NumSub(ch))))
		}
		return arr(out...)
	case "NUMPAT":
		return intMsg(int64(c.PubSub().NumPat()))
	default:
		return errMsg("ERR Unknown PUBSUB subcommand")
	}
}
