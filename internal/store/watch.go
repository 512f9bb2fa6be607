package store

import "sync/atomic"

// WatchHandle is one client's registration against a WATCHed key. The
// client allocates one per WATCH call (or reuses across keys watched in
// the same transaction) and polls Dirty at EXEC time; Database.touch
// flips Dirty for every handle registered on the key it mutates. This is
// the push side of the watch-index described in §4.3 — invalidation
// happens at write time, not by version comparison at EXEC time, so a
// disconnected or idle watcher costs nothing beyond the map entry.
type WatchHandle struct {
	Dirty atomic.Bool
}

// NewWatchHandle returns a fresh, clean handle.
func NewWatchHandle() *WatchHandle { return &WatchHandle{} }

// watchIndex maps key -> set of handles watching it, scoped to one
// Database. Entries are removed on UNWATCH/EXEC/DISCARD/disconnect by the
// session layer calling Unwatch for every key it had registered.
type watchIndex struct {
	byKey map[string]map[*WatchHandle]struct{}
}

func newWatchIndex() *watchIndex {
	return &watchIndex{byKey: make(map[string]map[*WatchHandle]struct{})}
}

func (w *watchIndex) watch(key string, h *WatchHandle) {
	set, ok := w.byKey[key]
	if !ok {
		set = make(map[*WatchHandle]struct{})
		w.byKey[key] = set
	}
	set[h] = struct{}{}
}

func (w *watchIndex) unwatch(key string, h *WatchHandle) {
	set, ok := w.byKey[key]
	if !ok {
		return
	}
	delete(set, h)
	if len(set) == 0 {
		delete(w.byKey, key)
	}
}

// touch marks every handle registered on key as dirty, called on every
// mutating operation regardless of whether any client is actually
// watching (the map lookup is the whole cost when nobody is).
func (w *watchIndex) touch(key string) {
	for h := range w.byKey[key] {
		h.Dirty.Store(true)
	}
}
