// Package server implements the TCP accept loop and per-connection
// request/reply cycle (§4.8 Server wiring): admission control via
// maxclients, active-key expiration, and blocking-deadline expiration.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/example/redisd/internal/blocking"
	"github.com/example/redisd/internal/cluster"
	"github.com/example/redisd/internal/config"
	"github.com/example/redisd/internal/dispatch"
	"github.com/example/redisd/internal/metrics"
	"github.com/example/redisd/internal/pubsub"
	"github.com/example/redisd/internal/resp"
	"github.com/example/redisd/internal/session"
	"github.com/example/redisd/internal/store"
	"github.com/example/redisd/internal/util"
)

// Server owns the listener, the shared command-processing resources, and
// the connection admission gate (§6 "maxclients").
type Server struct {
	Config     config.Config
	Keyspace   *store.Keyspace
	Cluster    *cluster.State
	Blocking   *blocking.Coordinator
	PubSub     *pubsub.Registry
	Dispatcher *dispatch.Dispatcher
	Log        *zap.Logger
	Metrics    *metrics.Registry

	clients  *util.SlotPool
	nextID   atomic.Int64
	listener net.Listener
}

// WithMetrics attaches a metrics registry, returning s for chaining at
// construction time.
func (s *Server) WithMetrics(m *metrics.Registry) *Server {
	s.Metrics = m
	return s
}

// New assembles a server over the given shared resources. Resources are
// constructed by the caller (cmd/redisd) so tests can wire a Server
// around an in-memory Keyspace without touching the network.
func New(cfg config.Config, ks *store.Keyspace, cl *cluster.State, bc *blocking.Coordinator, ps *pubsub.Registry, d *dispatch.Dispatcher, log *zap.Logger) *Server {
	return &Server{
		Config:     cfg,
		Keyspace:   ks,
		Cluster:    cl,
		Blocking:   bc,
		PubSub:     ps,
		Dispatcher: d,
		Log:        log.Named("server"),
		clients:    util.NewSlotPool(cfg.MaxClients),
	}
}

// ListenAndServe binds the configured address and serves it (§4.8). It
// blocks; call from a goroutine coordinated by the caller (e.g. an
// errgroup in cmd/redisd's main).
func (s *Server) ListenAndServe() error {
	addr := s.Config.Bind + ":" + strconv.Itoa(s.Config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections off an already-bound listener until it is
// closed. Split out from ListenAndServe so callers that need the
// resolved address before serving (tests binding port 0, or a caller
// wiring another component against this server's address) can create the
// listener themselves first.
func (s *Server) Serve(ln net.Listener) error {
	s.listener = ln
	s.Log.Info("listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.serveConn(conn)
	}
}

// Addr returns the listener's bound address, or nil if Serve/ListenAndServe
// hasn't been called yet.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectedClientIDs returns the IDs of every connection currently
// holding an admission slot, for the admin HTTP plane's client list and
// INFO snapshot (§6.1 C13). CLIENT LIST does not use it.
func (s *Server) ConnectedClientIDs() []int64 {
	return s.clients.ListAcquired()
}

// Close stops accepting new connections. In-flight connections are left
// to drain on their own.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// serveConn owns one client connection end to end: admission, the
// session's read/dispatch/write loop, and teardown.
func (s *Server) serveConn(conn net.Conn) {
	// Client IDs are a free-running monotonic counter (§4.7): unlike the
	// admission gate's slots, an ID is never reused once a connection
	// closes, so a stale CLIENT KILL/log reference can't ever name a
	// different, later connection.
	id := s.nextID.Add(1)

	if !s.clients.TryAcquire(id) {
		// Over maxclients: reject without ever handing the connection a
		// session (§6 "maxclients" admission gate).
		sess := session.New(id, conn)
		sess.WriteReply(resp.ErrorMsg("ERR max number of clients reached"))
		sess.Flush()
		sess.Close()
		return
	}
	defer s.clients.Release(id)

	if s.Metrics != nil {
		s.Metrics.ConnectedClients.Inc()
		defer s.Metrics.ConnectedClients.Dec()
	}

	sess := session.New(id, conn)
	defer s.teardown(sess)

	log := s.Log.With(zap.Int64("client", id), zap.String("addr", sess.Addr))
	log.Debug("client connected")

	for {
		if s.Config.Timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.Config.Timeout))
		}

		msg, err := sess.ReadRequest()
		if err != nil {
			var perr *resp.ProtocolError
			if errors.As(err, &perr) {
				sess.WriteReply(resp.ErrorMsg(perr.Error()))
				sess.Flush()
			}
			if err != io.EOF {
				log.Debug("client read error", zap.Error(err))
			}
			return
		}

		argv, ok := msg.Argv()
		if !ok {
			sess.WriteReply(resp.ErrorMsg("ERR Protocol error: expected array of bulk strings"))
			sess.Flush()
			continue
		}
		if len(argv) == 0 {
			continue
		}

		reply := s.Dispatcher.Dispatch(context.Background(), sess, argv)

		// A zero-value reply is the pubsub push-reply sentinel: the
		// handler already wrote and flushed its own replies directly to
		// the session (§4.6 step 2).
		if reply.Type != 0 {
			sess.WriteReply(reply)
			sess.Flush()
		}

		if upperEq(argv[0], "QUIT") {
			return
		}
	}
}

// teardown releases every cross-connection registration a session may
// still hold when its connection ends (§4.7 disconnect).
func (s *Server) teardown(sess *session.Session) {
	s.PubSub.UnsubscribeAll(sess.ID)
	s.Blocking.DisconnectClient(sess.ID)
	sess.ResetTransaction(s.Keyspace)
	sess.Close()
	s.Log.Debug("client disconnected", zap.Int64("client", sess.ID), zap.String("addr", sess.Addr))
}

func upperEq(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != s[i] {
			return false
		}
	}
	return true
}
