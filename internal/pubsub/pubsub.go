// Package pubsub implements the channel/pattern subscriber registry and
// fan-out described in §4.8 (PubSub registry).
package pubsub

import (
	"sync"

	"github.com/example/redisd/internal/util"
)

// Publisher is anything a subscription can deliver a message to — the
// client session satisfies this by writing a "message"/"pmessage"
// multi-bulk reply to its connection.
type Publisher interface {
	Deliver(kind, channel, pattern string, payload []byte)
}

// Registry holds every channel and pattern subscription.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[int64]Publisher
	patterns map[string]map[int64]Publisher
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[int64]Publisher),
		patterns: make(map[string]map[int64]Publisher),
	}
}

// Subscribe registers clientID on channel.
func (r *Registry) Subscribe(clientID int64, channel string, p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.channels[channel]
	if !ok {
		set = make(map[int64]Publisher)
		r.channels[channel] = set
	}
	set[clientID] = p
}

// Unsubscribe removes clientID from channel.
func (r *Registry) Unsubscribe(clientID int64, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.channels[channel]
	if !ok {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(r.channels, channel)
	}
}

// PSubscribe registers clientID on pattern.
func (r *Registry) PSubscribe(clientID int64, pattern string, p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.patterns[pattern]
	if !ok {
		set = make(map[int64]Publisher)
		r.patterns[pattern] = set
	}
	set[clientID] = p
}

// PUnsubscribe removes clientID from pattern.
func (r *Registry) PUnsubscribe(clientID int64, pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.patterns[pattern]
	if !ok {
		return
	}
	delete(set, clientID)
	if len(set) == 0 {
		delete(r.patterns, pattern)
	}
}

// UnsubscribeAll removes clientID from every channel and pattern it
// holds, used on disconnect/RESET.
func (r *Registry) UnsubscribeAll(clientID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch, set := range r.channels {
		delete(set, clientID)
		if len(set) == 0 {
			delete(r.channels, ch)
		}
	}
	for pat, set := range r.patterns {
		delete(set, clientID)
		if len(set) == 0 {
			delete(r.patterns, pat)
		}
	}
}

// Publish delivers payload to every direct subscriber of channel and
// every pattern subscriber whose pattern matches it, returning the total
// receiver count (PUBLISH's documented return value).
func (r *Registry) Publish(channel string, payload []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.channels[channel] {
		p.Deliver("message", channel, "", payload)
		n++
	}
	for pat, set := range r.patterns {
		if !util.GlobMatch(pat, channel) {
			continue
		}
		for _, p := range set {
			p.Deliver("pmessage", channel, pat, payload)
			n++
		}
	}
	return n
}

// ChannelsWithSubscribers lists active channels, optionally filtered by
// pattern (PUBSUB CHANNELS).
func (r *Registry) ChannelsWithSubscribers(pattern string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for ch := range r.channels {
		if pattern == "" || util.GlobMatch(pattern, ch) {
			out = append(out, ch)
		}
	}
	return out
}

// NumSub returns the subscriber count for channel (PUBSUB NUMSUB).
func (r *Registry) NumSub(channel string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[channel])
}

// NumPat returns the total number of distinct patterns subscribed to
// (PUBSUB NUMPAT).
func (r *Registry) NumPat() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}
