// Package store implements the keyspace engine (§4.3): one Database per
// logical index, each a type-tagged key/value map with a per-entry
// expiry time, a push-style watch-index for WATCH/MULTI/EXEC
// invalidation, and a reverse-binary SCAN cursor.
package store

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/example/redisd/internal/util"
	"github.com/example/redisd/internal/values"
)

var ErrNoSuchKey = errors.New("no such key")

type entry struct {
	val      values.Value
	expireAt time.Time // zero value means "no TTL"
}

func (e *entry) hasTTL() bool { return !e.expireAt.IsZero() }

func (e *entry) expired(now time.Time) bool {
	return e.hasTTL() && !now.Before(e.expireAt)
}

// Database is one numbered keyspace. Every exported method assumes the
// caller already holds the database's lock for the duration of the
// command it is implementing (§5: "any handler holds its database's lock
// for the whole call") — Database does not lock itself, so that a
// handler touching several keys still observes one linearization point.
type Database struct {
	mu sync.Mutex

	index    int
	entries  map[string]*entry
	scan     *scanIndex
	watch    *watchIndex
	notifier Notifier
}

// NewDatabase returns an empty database at the given index.
func NewDatabase(index int, notifier Notifier) *Database {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Database{
		index:    index,
		entries:  make(map[string]*entry),
		scan:     newScanIndex(),
		watch:    newWatchIndex(),
		notifier: notifier,
	}
}

// Lock/Unlock make Database a sync.Locker so the dispatcher can bracket
// a whole command invocation, not just one store call, in the same
// critical section.
func (db *Database) Lock()   { db.mu.Lock() }
func (db *Database) Unlock() { db.mu.Unlock() }

func (db *Database) removeLocked(key string) {
	delete(db.entries, key)
	db.scan.remove(key)
}

// expireIfNeeded performs the lazy-expiration check documented for every
// get/exists/type (§4.3): an expired entry is deleted on first touch and
// treated as absent.
func (db *Database) expireIfNeeded(key string) *entry {
	e, ok := db.entries[key]
	if !ok {
		return nil
	}
	if e.expired(time.Now()) {
		db.removeLocked(key)
		db.watch.touch(key)
		db.notifier.Notify(db.index, key, "expired")
		return nil
	}
	return e
}

// Get returns the live value for key.
func (db *Database) Get(key string) (values.Value, bool) {
	e := db.expireIfNeeded(key)
	if e == nil {
		return nil, false
	}
	return e.val, true
}

// Exists reports key liveness.
func (db *Database) Exists(key string) bool {
	return db.expireIfNeeded(key) != nil
}

// Type returns the live value's kind.
func (db *Database) Type(key string) (values.Kind, bool) {
	e := db.expireIfNeeded(key)
	if e == nil {
		return 0, false
	}
	return e.val.Kind(), true
}

// Set installs v as key's value, clearing any existing TTL — the
// documented SET/plain-assignment behavior; callers wanting KEEPTTL use
// SetKeepTTL instead.
func (db *Database) Set(key string, v values.Value) {
	db.entries[key] = &entry{val: v}
	db.scan.insert(key)
	db.touchLocked(key, "set")
}

// SetKeepTTL installs v without disturbing key's current expiry.
func (db *Database) SetKeepTTL(key string, v values.Value) {
	if e, ok := db.entries[key]; ok {
		e.val = v
		db.touchLocked(key, "set")
		return
	}
	db.Set(key, v)
}

// GetOrCreate returns key's existing value, or installs and returns the
// value produced by create if key is absent. created reports which
// happened.
func (db *Database) GetOrCreate(key string, create func() values.Value) (v values.Value, created bool) {
	if e := db.expireIfNeeded(key); e != nil {
		return e.val, false
	}
	v = create()
	db.entries[key] = &entry{val: v}
	db.scan.insert(key)
	return v, true
}

// Delete removes key unconditionally, reporting whether it was present
// (live — an already-expired key reports false, matching EXISTS).
func (db *Database) Delete(key string) bool {
	if db.expireIfNeeded(key) == nil {
		return false
	}
	db.removeLocked(key)
	db.touchLocked(key, "del")
	return true
}

// DeleteIfEmpty removes key if v reports zero length, implementing the
// "container with len 0 after a write implies key absence" invariant
// (§8). Callers invoke this after any mutation that can empty a
// container (list/set/zset/hash pop or remove).
func (db *Database) DeleteIfEmpty(key string, v values.Container) {
	if v.Len() == 0 {
		db.removeLocked(key)
		db.touchLocked(key, "del")
	}
}

// Rename moves the value (and TTL) at from to to, overwriting any value
// at to. Returns ErrNoSuchKey if from is absent.
func (db *Database) Rename(from, to string) error {
	e := db.expireIfNeeded(from)
	if e == nil {
		return ErrNoSuchKey
	}
	db.removeLocked(from)
	db.entries[to] = e
	db.scan.insert(to)
	db.touchLocked(from, "rename_from")
	db.touchLocked(to, "rename_to")
	return nil
}

// RenameNX is Rename that refuses to overwrite an existing live to key.
func (db *Database) RenameNX(from, to string) (bool, error) {
	if db.expireIfNeeded(from) == nil {
		return false, ErrNoSuchKey
	}
	if db.expireIfNeeded(to) != nil {
		return false, nil
	}
	return true, db.Rename(from, to)
}

// Copy duplicates src's value (deep — aggregates mutate their internals
// in place on every write, e.g. RPUSH/HSET/SADD/ZADD/SETRANGE, so dst must
// share no backing storage with src) and TTL into dst. replace controls
// whether an existing live dst is overwritten.
func (db *Database) Copy(src, dst string, replace bool) (bool, error) {
	e := db.expireIfNeeded(src)
	if e == nil {
		return false, ErrNoSuchKey
	}
	if !replace && db.expireIfNeeded(dst) != nil {
		return false, nil
	}
	clone := &entry{val: e.val.Clone(), expireAt: e.expireAt}
	if _, existed := db.entries[dst]; !existed {
		db.scan.insert(dst)
	}
	db.entries[dst] = clone
	db.touchLocked(dst, "copy_to")
	return true, nil
}

// Keys returns every live key matching the glob pattern. O(n); intended
// for small keyspaces or operational use, matching documented KEYS
// behavior.
func (db *Database) Keys(pattern string) []string {
	now := time.Now()
	var out []string
	for k, e := range db.entries {
		if e.expired(now) {
			continue
		}
		if pattern == "*" || util.GlobMatch(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

// Scan visits one bucket of the reverse-binary cursor index, filtering
// by match (optional) and capping the reported count at roughly count
// (the real guarantee is only "full traversal iff the cursor returns to
// 0", per §4.3 — the per-call size is advisory).
func (db *Database) Scan(cursor uint64, match string, count int) (next uint64, keys []string) {
	if count <= 0 {
		count = 10
	}
	now := time.Now()
	var out []string
	c := cursor
	for {
		var bucketKeys []string
		bucketKeys, c = db.scan.scan(c)
		for _, k := range bucketKeys {
			e, ok := db.entries[k]
			if !ok || e.expired(now) {
				continue
			}
			if match == "" || match == "*" || util.GlobMatch(match, k) {
				out = append(out, k)
			}
		}
		if c == 0 || len(out) >= count {
			break
		}
	}
	return c, out
}

// SetExpire installs an absolute expiry on a live key.
func (db *Database) SetExpire(key string, at time.Time) bool {
	e := db.expireIfNeeded(key)
	if e == nil {
		return false
	}
	e.expireAt = at
	if e.expired(time.Now()) {
		db.removeLocked(key)
	}
	db.touchLocked(key, "expire")
	return true
}

// Persist clears key's TTL, reporting whether one was cleared.
func (db *Database) Persist(key string) bool {
	e := db.expireIfNeeded(key)
	if e == nil || !e.hasTTL() {
		return false
	}
	e.expireAt = time.Time{}
	db.touchLocked(key, "persist")
	return true
}

// TTL returns the remaining duration until key expires. exists reports
// key liveness; hasTTL reports whether an expiry is set at all.
func (db *Database) TTL(key string) (d time.Duration, hasTTL bool, exists bool) {
	e := db.expireIfNeeded(key)
	if e == nil {
		return 0, false, false
	}
	if !e.hasTTL() {
		return 0, false, true
	}
	return time.Until(e.expireAt), true, true
}

// ExpireTime returns key's absolute expiry instant.
func (db *Database) ExpireTime(key string) (at time.Time, hasTTL bool, exists bool) {
	e := db.expireIfNeeded(key)
	if e == nil {
		return time.Time{}, false, false
	}
	if !e.hasTTL() {
		return time.Time{}, false, true
	}
	return e.expireAt, true, true
}

// RandomKey returns one live key chosen uniformly at random, or ok=false
// if the database is empty. Expired keys encountered are reaped along
// the way rather than ever being returned.
func (db *Database) RandomKey() (string, bool) {
	if len(db.entries) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(db.entries))
	for k := range db.entries {
		keys = append(keys, k)
	}
	now := time.Now()
	perm := rand.Perm(len(keys))
	for _, i := range perm {
		k := keys[i]
		e := db.entries[k]
		if e.expired(now) {
			db.removeLocked(k)
			continue
		}
		return k, true
	}
	return "", false
}

// FlushDB removes every key.
func (db *Database) FlushDB() {
	for k := range db.entries {
		db.touchLocked(k, "flushdb")
	}
	db.entries = make(map[string]*entry)
	db.scan = newScanIndex()
}

// Size returns the live key count (expired-but-unreaped keys are not
// counted), matching DBSIZE.
func (db *Database) Size() int {
	now := time.Now()
	n := 0
	for _, e := range db.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Watch registers h against key, the WATCH side of the watch-index.
func (db *Database) Watch(key string, h *WatchHandle) { db.watch.watch(key, h) }

// Unwatch removes h's registration on key (UNWATCH/EXEC/DISCARD/
// disconnect).
func (db *Database) Unwatch(key string, h *WatchHandle) { db.watch.unwatch(key, h) }

// Touch marks key dirty for every watcher and emits a notification. Call
// this after mutating a container value fetched via Get in place (e.g.
// HSET operating directly on the *values.Hash pointer), since that path
// doesn't go through Set/Delete.
func (db *Database) Touch(key string, event string) { db.touchLocked(key, event) }

func (db *Database) touchLocked(key string, event string) {
	db.watch.touch(key)
	db.notifier.Notify(db.index, key, event)
}

// ActiveExpireCycle samples up to sampleSize entries with a TTL and
// removes the expired ones, repeating within budget while more than 25%
// of the sample was expired (§4.3 Active reclamation). It returns how
// many entries were sampled and how many were removed, for logging.
func (db *Database) ActiveExpireCycle(sampleSize int, budget time.Duration) (sampled, expired int) {
	deadline := time.Now().Add(budget)
	for {
		s, e := db.sampleExpirePass(sampleSize)
		sampled += s
		expired += e
		if s == 0 || float64(e) <= float64(s)*0.25 {
			return
		}
		if time.Now().After(deadline) {
			return
		}
	}
}

func (db *Database) sampleExpirePass(sampleSize int) (sampled, expired int) {
	candidates := make([]string, 0, sampleSize)
	now := time.Now()
	for k, e := range db.entries {
		if !e.hasTTL() {
			continue
		}
		candidates = append(candidates, k)
		if len(candidates) >= sampleSize*4 {
			break
		}
	}
	if len(candidates) == 0 {
		return 0, 0
	}
	rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if len(candidates) > sampleSize {
		candidates = candidates[:sampleSize]
	}
	for _, k := range candidates {
		sampled++
		if e := db.entries[k]; e != nil && e.expired(now) {
			db.removeLocked(k)
			db.touchLocked(k, "expired")
			expired++
		}
	}
	return sampled, expired
}
