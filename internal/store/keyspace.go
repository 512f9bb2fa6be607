package store

import "time"

// Keyspace is the fixed-size collection of numbered databases the server
// boots with (§6 Configuration `databases`, default 16).
type Keyspace struct {
	dbs []*Database
}

// NewKeyspace allocates n databases sharing one notifier.
func NewKeyspace(n int, notifier Notifier) *Keyspace {
	ks := &Keyspace{dbs: make([]*Database, n)}
	for i := range ks.dbs {
		ks.dbs[i] = NewDatabase(i, notifier)
	}
	return ks
}

// DB returns database i. Panics on out-of-range index; callers validate
// against Count() first (SELECT's documented bounds check).
func (ks *Keyspace) DB(i int) *Database { return ks.dbs[i] }

// Count returns the configured database count.
func (ks *Keyspace) Count() int { return len(ks.dbs) }

// FlushAll empties every database (FLUSHALL).
func (ks *Keyspace) FlushAll() {
	for _, db := range ks.dbs {
		db.Lock()
		db.FlushDB()
		db.Unlock()
	}
}

// ActiveExpireAll runs one active-expiration tick across every database,
// the work the server loop's timer task performs every
// ActiveExpireCycle (§4.3, §4.8).
func (ks *Keyspace) ActiveExpireAll(sampleSize int, budgetPerDB time.Duration) (sampled, expired int) {
	for _, db := range ks.dbs {
		db.Lock()
		s, e := db.ActiveExpireCycle(sampleSize, budgetPerDB)
		db.Unlock()
		sampled += s
		expired += e
	}
	return
}
