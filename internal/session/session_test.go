package session

import (
	"net"
	"testing"

	"github.com/example/redisd/internal/store"
)

func pipe() (net.Conn, net.Conn) {
	c1, c2 := net.Pipe()
	return c1, c2
}

func TestResetTransactionUnwatches(t *testing.T) {
	client, peer := pipe()
	defer client.Close()
	defer peer.Close()

	s := New(1, client)
	ks := store.NewKeyspace(1, store.NoopNotifier{})
	h := store.NewWatchHandle()
	ks.DB(0).Lock()
	ks.DB(0).Watch("k", h)
	ks.DB(0).Unlock()

	s.AddWatch(WatchedKey{DBIndex: 0, Key: "k", Handle: h})
	s.ResetTransaction(ks)

	if len(s.Watched) != 0 {
		t.Fatal("expected watched keys cleared")
	}
	ks.DB(0).Lock()
	ks.DB(0).Set("k", nil)
	ks.DB(0).Unlock()
	if h.Dirty.Load() {
		t.Fatal("expected handle unregistered, so a later write shouldn't dirty it")
	}
}

func TestMarkDirtyAndEnterMulti(t *testing.T) {
	client, peer := pipe()
	defer client.Close()
	defer peer.Close()

	s := New(1, client)
	s.EnterMulti()
	if !s.InMulti {
		t.Fatal("expected InMulti set")
	}
	s.QueueCommand([][]byte{[]byte("INCR"), []byte("x")})
	s.MarkDirty()
	if !s.DirtyExec || len(s.QueuedCommands) != 1 {
		t.Fatal("expected dirty flag and queued command")
	}
}
