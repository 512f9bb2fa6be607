// Package session implements the per-connection client state machine
// (§4.7): database selection, MULTI/WATCH/subscribe flags, queued
// transaction commands, and the output side of pipelining.
package session

import (
	"net"
	"sync"
	"time"

	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/store"
)

// WatchedKey records one WATCH registration so UNWATCH/EXEC/DISCARD can
// unregister it from the right database.
type WatchedKey struct {
	DBIndex int
	Key     string
	Handle  *store.WatchHandle
}

// Session is one client connection's state (§4.7 State).
type Session struct {
	ID              int64
	Addr            string
	Name            string
	ConnectedAt     time.Time
	LastInteraction time.Time

	DBIndex int

	InMulti       bool
	DirtyExec     bool
	Blocked       bool
	ReadOnly      bool
	NoEvict       bool
	Subscribed    bool
	Authenticated bool

	QueuedCommands       [][][]byte
	Watched              []WatchedKey
	Subscriptions        map[string]struct{}
	PatternSubscriptions map[string]struct{}

	conn net.Conn
	dec  *resp.Decoder
	mu   sync.Mutex
	enc  *resp.Encoder

	closed bool
}

// New wraps conn as a freshly connected session with id.
func New(id int64, conn net.Conn) *Session {
	now := time.Now()
	return &Session{
		ID:                   id,
		Addr:                 conn.RemoteAddr().String(),
		ConnectedAt:          now,
		LastInteraction:      now,
		conn:                 conn,
		dec:                  resp.NewDecoder(conn, resp.DefaultMaxBulkLen, resp.DefaultMaxArrayLen, resp.DefaultMaxInlineLen),
		enc:                  resp.NewEncoder(conn),
		Subscriptions:        make(map[string]struct{}),
		PatternSubscriptions: make(map[string]struct{}),
	}
}

// ReadRequest decodes the next RESP-encoded command (§4.7 Operations).
func (s *Session) ReadRequest() (resp.Message, error) {
	msg, err := s.dec.ReadMessage()
	if err == nil {
		s.LastInteraction = time.Now()
	}
	return msg, err
}

// WriteReply encodes and buffers one reply. Replies for a single
// connection are flushed in request-arrival order (§4.7 Pipelining); the
// server calls Flush after each reply.
func (s *Session) WriteReply(msg resp.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(msg)
}

// Flush pushes any buffered replies to the socket.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Flush()
}

// Close closes the underlying connection. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// EnterMulti switches the session into transaction-queueing mode.
func (s *Session) EnterMulti() {
	s.InMulti = true
	s.DirtyExec = false
	s.QueuedCommands = nil
}

// QueueCommand appends argv to the pending transaction body.
func (s *Session) QueueCommand(argv [][]byte) {
	s.QueuedCommands = append(s.QueuedCommands, argv)
}

// MarkDirty flags the in-progress transaction as doomed to EXECABORT
// (§4.6 pipeline step 1: arity/parse errors during queueing).
func (s *Session) MarkDirty() { s.DirtyExec = true }

// ResetTransaction clears all MULTI/WATCH state — used by EXEC, DISCARD,
// and RESET.
func (s *Session) ResetTransaction(ks *store.Keyspace) {
	for _, w := range s.Watched {
		ks.DB(w.DBIndex).Unwatch(w.Key, w.Handle)
	}
	s.Watched = nil
	s.InMulti = false
	s.DirtyExec = false
	s.QueuedCommands = nil
}

// AddWatch records a new WATCH registration.
func (s *Session) AddWatch(w WatchedKey) {
	s.Watched = append(s.Watched, w)
}

// WatchDirty reports whether any watched key has been mutated since
// WATCH was issued (§4.3 Watch invalidation, §8 "EXEC returns null").
func (s *Session) WatchDirty() bool {
	for _, w := range s.Watched {
		if w.Handle.Dirty.Load() {
			return true
		}
	}
	return false
}

// Reset clears MULTI/WATCH/SUBSCRIBE/auth state for the RESET command
// (§SUPPLEMENT), without closing the connection.
func (s *Session) Reset(ks *store.Keyspace) {
	s.ResetTransaction(ks)
	s.Subscribed = false
	s.Subscriptions = make(map[string]struct{})
	s.PatternSubscriptions = make(map[string]struct{})
	s.Authenticated = false
	s.DBIndex = 0
	s.Name = ""
}
