// Package values implements the polymorphic value types a keyspace entry
// can hold: string, hash, list, set, sorted set, stream, and HyperLogLog,
// each with the algorithms and invariants spec'd for the core engine.
//
// Value is realized as a small closed interface rather than deep
// inheritance: every command does a single type-tag check (Kind()) per
// key access, then works against the concrete type directly. No value
// carries a reference back to its key, database, or connection — that
// keeps ownership strictly one-directional (database entry owns value)
// and lets the database reclaim a value by simply dropping the pointer.
package values

import "errors"

// Kind discriminates the tagged union.
type Kind int

const (
	KindString Kind = iota
	KindHash
	KindList
	KindSet
	KindZSet
	KindStream
	KindHLL
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindHash:
		return "hash"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindZSet:
		return "zset"
	case KindStream:
		return "stream"
	case KindHLL:
		return "string" // HLL is stored and typed as a string by real Redis
	default:
		return "unknown"
	}
}

// Value is implemented by every concrete representation.
type Value interface {
	Kind() Kind

	// Clone returns a deep copy, independent of the receiver for every
	// subsequent write. Every aggregate mutates its internals in place
	// (HSET writes into the same map, RPUSH appends into the same
	// quicklist node, ZADD reorders the same skip list, APPEND/SETRANGE
	// can even overwrite a string's existing backing array), so COPY
	// must hand the destination key a value that shares no backing
	// storage with the source (§3 key ownership, §8 COPY).
	Clone() Value
}

// Errors shared across the numeric fast paths (§3 String, §7 error
// taxonomy NotInteger/NotFloat).
var (
	ErrNotInteger = errors.New("value is not an integer or out of range")
	ErrNotFloat   = errors.New("value is not a valid float")
)

// Emptiness is externally observable: every container type exposes Len()
// so dispatcher-level helpers can delete a key whose value became empty
// after a mutation (§3 Lifecycle, §8 "container with len 0 after a write
// implies key absence on next read").
type Container interface {
	Value
	Len() int
}
