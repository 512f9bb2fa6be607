package dispatch

import (
	"strings"

	"github.com/example/redisd/internal/resp"
)

// Handler executes one verb against the dispatcher/session/argv triple
// bundled in ctx, returning the single reply the dispatcher writes back
// (§4.6 Contract).
type Handler func(ctx *Context) resp.Message

// HandlerSpec is one verb-table entry (§4.6 Verb table).
type HandlerSpec struct {
	Name    string
	Handler Handler

	// Arity: argv length (including the verb itself) must satisfy
	// len(argv) >= MinArity, and len(argv) <= MaxArity unless MaxArity
	// is negative (unbounded).
	MinArity int
	MaxArity int

	// Key spec (§SPEC_FULL Open Question 1): keys occupy argv positions
	// FirstKey, FirstKey+Step, ..., up to LastKey (LastKey<0 counts from
	// the end: -1 is the last argv index). FirstKey<=0 means the verb
	// touches no keys.
	FirstKey int
	LastKey  int
	Step     int

	Write           bool
	Pubsub          bool // allowed while a session is in subscribe-confinement
	Blocking        bool
	ClusterExempt   bool
	TransactionMeta bool // MULTI/EXEC/DISCARD/WATCH/UNWATCH
	SelfLocking     bool // handler acquires/releases the database lock itself (WATCH, EXEC, INFO)
}

// ExtractKeys returns the key arguments argv touches per spec's key
// positions.
func (h HandlerSpec) ExtractKeys(argv [][]byte) []string {
	if h.FirstKey <= 0 || h.FirstKey >= len(argv) {
		return nil
	}
	last := h.LastKey
	if last < 0 {
		last = len(argv) + last
	}
	if last >= len(argv) {
		last = len(argv) - 1
	}
	step := h.Step
	if step <= 0 {
		step = 1
	}
	var keys []string
	for i := h.FirstKey; i <= last; i += step {
		keys = append(keys, string(argv[i]))
	}
	return keys
}

func (h HandlerSpec) checkArity(argv [][]byte) bool {
	n := len(argv)
	if n < h.MinArity {
		return false
	}
	if h.MaxArity >= 0 && n > h.MaxArity {
		return false
	}
	return true
}

// VerbTable is the case-insensitive name -> spec map (§4.6 Verb table).
type VerbTable map[string]HandlerSpec

// Lookup is a case-insensitive verb lookup.
func (t VerbTable) Lookup(name string) (HandlerSpec, bool) {
	spec, ok := t[strings.ToUpper(name)]
	return spec, ok
}

// BuildVerbTable assembles the full command set (§6 Command set).
func BuildVerbTable() VerbTable {
	t := make(VerbTable)
	registerConnectionCommands(t)
	registerStringCommands(t)
	registerKeyCommands(t)
	registerHashCommands(t)
	registerListCommands(t)
	registerSetCommands(t)
	registerZSetCommands(t)
	registerTransactionCommands(t)
	registerPubSubCommands(t)
	registerStreamCommands(t)
	registerHLLCommands(t)
	registerBitmapCommands(t)
	registerClusterCommands(t)
	registerServerCommands(t)
	return t
}

func add(t VerbTable, spec HandlerSpec) {
	t[strings.ToUpper(spec.Name)] = spec
}
