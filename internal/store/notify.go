package store

// Notifier receives a best-effort event for every write, the documented
// pluggable keyspace-notification hook (§4.3). Implementations may no-op;
// the core never depends on delivery succeeding or even happening.
type Notifier interface {
	Notify(dbIndex int, key string, event string)
}

// NoopNotifier drops every event. It is the default when no notifier is
// configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(dbIndex int, key string, event string) {}

// FuncNotifier adapts a plain function to Notifier, used to wire
// keyspace events into structured logging or metrics without a new type
// per call site.
type FuncNotifier func(dbIndex int, key string, event string)

func (f FuncNotifier) Notify(dbIndex int, key string, event string) { f(dbIndex, key, event) }
