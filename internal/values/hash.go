package values

import "time"

// HashListpackMaxEntries / HashListpackMaxValue are the default thresholds
// (§6 Configuration hash-max-listpack-entries / hash-max-listpack-value)
// past which a hash's representation converts from compact to large.
// Conversion is monotonic: once large, never back to compact.
const (
	HashListpackMaxEntries = 128
	HashListpackMaxValue   = 64
)

// Hash is a field→value map plus a sparse field→expiry index (§3 Hash).
// A field with an expiry in the past is observationally absent; expiring
// the last field deletes the key itself, which the dispatcher enforces by
// checking Len() after any mutation that can expire/remove a field.
//
// The compact/large distinction is representational only — both back the
// same map, field iteration order is not guaranteed either way — so there
// is a single Go map under the hood and `large` is a one-way latch callers
// can query (OBJECT ENCODING) but that never changes behavior.
type Hash struct {
	fields  map[string][]byte
	expires map[string]time.Time // field -> absolute expiry; sparse
	large   bool
}

// NewHash returns an empty hash.
func NewHash() *Hash {
	return &Hash{fields: make(map[string][]byte)}
}

func (h *Hash) Kind() Kind { return KindHash }

// Clone deep-copies the field map and the per-field expiry index so
// HSET/HEXPIRE on the clone never touches the source's fields.
func (h *Hash) Clone() Value {
	fields := make(map[string][]byte, len(h.fields))
	for f, v := range h.fields {
		cp := make([]byte, len(v))
		copy(cp, v)
		fields[f] = cp
	}
	var expires map[string]time.Time
	if len(h.expires) > 0 {
		expires = make(map[string]time.Time, len(h.expires))
		for f, at := range h.expires {
			expires[f] = at
		}
	}
	return &Hash{fields: fields, expires: expires, large: h.large}
}

// Len reports the number of *live* fields, lazily evicting expired ones
// encountered along the way. O(n) because expiry is sparse and usually
// empty; commands that only need "is this hash empty" already pay this
// cost elsewhere (they just mutated it).
func (h *Hash) Len() int {
	h.reap()
	return len(h.fields)
}

// reap removes fields whose expiry has elapsed.
func (h *Hash) reap() {
	if len(h.expires) == 0 {
		return
	}
	now := time.Now()
	for f, at := range h.expires {
		if !now.Before(at) {
			delete(h.fields, f)
			delete(h.expires, f)
		}
	}
}

// isLive reports whether field exists and hasn't expired, without
// triggering a full reap.
func (h *Hash) isLive(field string) bool {
	if _, ok := h.fields[field]; !ok {
		return false
	}
	if at, ok := h.expires[field]; ok && !time.Now().Before(at) {
		delete(h.fields, field)
		delete(h.expires, field)
		return false
	}
	return true
}

// Get returns the field's value if live.
func (h *Hash) Get(field string) ([]byte, bool) {
	if !h.isLive(field) {
		return nil, false
	}
	return h.fields[field], true
}

// Set inserts or overwrites field, clearing any prior per-field TTL
// (a plain HSET always clears expiry on the field it touches, matching
// documented behavior: only HEXPIRE et al. set it back).
func (h *Hash) Set(field string, val []byte) (isNew bool) {
	_, existed := h.fields[field]
	h.fields[field] = val
	delete(h.expires, field)
	h.maybeUpgrade()
	return !existed
}

// SetPreserveTTL inserts or overwrites field without touching any
// existing per-field expiry (used internally by HINCRBY/HINCRBYFLOAT,
// which Redis defines to preserve the field's TTL).
func (h *Hash) SetPreserveTTL(field string, val []byte) (isNew bool) {
	_, existed := h.fields[field]
	h.fields[field] = val
	h.maybeUpgrade()
	return !existed
}

// Del removes fields, returning the count actually removed (live or not —
// a field past its TTL still counts as "not present" and is not counted).
func (h *Hash) Del(fields ...string) int {
	n := 0
	for _, f := range fields {
		if h.isLive(f) {
			delete(h.fields, f)
			delete(h.expires, f)
			n++
		}
	}
	return n
}

// Exists reports field liveness.
func (h *Hash) Exists(field string) bool { return h.isLive(field) }

// Keys/Vals/All enumerate live fields; All reaps first so the three stay
// consistent with each other and with Len().
func (h *Hash) Keys() []string {
	h.reap()
	out := make([]string, 0, len(h.fields))
	for f := range h.fields {
		out = append(out, f)
	}
	return out
}

func (h *Hash) Vals() [][]byte {
	h.reap()
	out := make([][]byte, 0, len(h.fields))
	for _, v := range h.fields {
		out = append(out, v)
	}
	return out
}

func (h *Hash) All() map[string][]byte {
	h.reap()
	return h.fields
}

// SetFieldExpire sets field's absolute expiry. Returns false if field
// isn't live.
func (h *Hash) SetFieldExpire(field string, at time.Time) bool {
	if !h.isLive(field) {
		return false
	}
	if h.expires == nil {
		h.expires = make(map[string]time.Time)
	}
	h.expires[field] = at
	return true
}

// FieldTTL returns the remaining duration until field expires, hasTTL=false
// if the field is live but has no TTL, exists=false if not live at all.
func (h *Hash) FieldTTL(field string) (d time.Duration, hasTTL bool, exists bool) {
	if !h.isLive(field) {
		return 0, false, false
	}
	at, ok := h.expires[field]
	if !ok {
		return 0, false, true
	}
	return time.Until(at), true, true
}

// PersistField clears field's TTL if any; reports whether one was cleared.
func (h *Hash) PersistField(field string) bool {
	if !h.isLive(field) {
		return false
	}
	if _, ok := h.expires[field]; !ok {
		return false
	}
	delete(h.expires, field)
	return true
}

// IsLarge reports the representation (OBJECT ENCODING support).
func (h *Hash) IsLarge() bool { return h.large }

func (h *Hash) maybeUpgrade() {
	if h.large {
		return
	}
	if len(h.fields) > HashListpackMaxEntries {
		h.large = true
		return
	}
	for f, v := range h.fields {
		if len(f) > HashListpackMaxValue || len(v) > HashListpackMaxValue {
			h.large = true
			return
		}
	}
}
