package values

import (
	"sort"
	"strconv"
)

// IntSetMax is the default cardinality past which an all-integer set
// would otherwise stay an intset (§6 Configuration intset-max-entries).
const IntSetMax = 512

// Set is a collection of unique binary members. While every member
// parses as an integer and cardinality stays within IntSetMax it is
// stored as a sorted packed int64 array (intset); the first non-integer
// member or crossing the cardinality bound converts it to a hash set,
// one-way, matching documented Redis behavior.
type Set struct {
	ints    []int64 // sorted, only meaningful while !large
	members map[string]struct{}
	large   bool
}

// NewSet returns an empty set (intset representation).
func NewSet() *Set {
	return &Set{}
}

func (s *Set) Kind() Kind { return KindSet }

func (s *Set) Len() int {
	if s.large {
		return len(s.members)
	}
	return len(s.ints)
}

// IsIntSet reports the current representation (OBJECT ENCODING support).
func (s *Set) IsIntSet() bool { return !s.large }

// Clone deep-copies the active representation so SADD/SREM on the clone
// never mutates the source's backing slice or map.
func (s *Set) Clone() Value {
	out := &Set{large: s.large}
	if s.large {
		out.members = make(map[string]struct{}, len(s.members))
		for m := range s.members {
			out.members[m] = struct{}{}
		}
		return out
	}
	out.ints = make([]int64, len(s.ints))
	copy(out.ints, s.ints)
	return out
}

func (s *Set) intIndex(n int64) (int, bool) {
	i := sort.Search(len(s.ints), func(i int) bool { return s.ints[i] >= n })
	if i < len(s.ints) && s.ints[i] == n {
		return i, true
	}
	return i, false
}

// Contains reports membership.
func (s *Set) Contains(member []byte) bool {
	if s.large {
		_, ok := s.members[string(member)]
		return ok
	}
	n, ok := parseRedisInt(member)
	if !ok {
		return false
	}
	_, found := s.intIndex(n)
	return found
}

// Add inserts member, converting representation if needed. Returns true
// if member was newly added.
func (s *Set) Add(member []byte) bool {
	if !s.large {
		if n, ok := parseRedisInt(member); ok {
			if _, found := s.intIndex(n); found {
				return false
			}
			if len(s.ints) < IntSetMax {
				idx, _ := s.intIndex(n)
				s.ints = append(s.ints, 0)
				copy(s.ints[idx+1:], s.ints[idx:])
				s.ints[idx] = n
				return true
			}
			// cardinality bound crossed: fall through to upgrade.
		}
		s.upgrade()
	}
	if _, ok := s.members[string(member)]; ok {
		return false
	}
	s.members[string(member)] = struct{}{}
	return true
}

// Rem removes member. Returns true if it was present.
func (s *Set) Rem(member []byte) bool {
	if s.large {
		if _, ok := s.members[string(member)]; !ok {
			return false
		}
		delete(s.members, string(member))
		return true
	}
	n, ok := parseRedisInt(member)
	if !ok {
		return false
	}
	idx, found := s.intIndex(n)
	if !found {
		return false
	}
	s.ints = append(s.ints[:idx], s.ints[idx+1:]...)
	return true
}

// Members returns every member as bytes, in representation-native order
// (sorted for intset, unspecified for hash set).
func (s *Set) Members() [][]byte {
	if s.large {
		out := make([][]byte, 0, len(s.members))
		for m := range s.members {
			out = append(out, []byte(m))
		}
		return out
	}
	out := make([][]byte, len(s.ints))
	for i, n := range s.ints {
		out[i] = []byte(strconv.FormatInt(n, 10))
	}
	return out
}

func (s *Set) upgrade() {
	s.members = make(map[string]struct{}, len(s.ints))
	for _, n := range s.ints {
		s.members[strconv.FormatInt(n, 10)] = struct{}{}
	}
	s.ints = nil
	s.large = true
}

// Union/Inter/Diff implement SUNION/SINTER/SDIFF against a Members()-level
// view; small cardinalities are the common case for these commands so no
// representation-specific fast path is worth the complexity.
func Union(sets ...*Set) [][]byte {
	seen := make(map[string]struct{})
	var out [][]byte
	for _, s := range sets {
		for _, m := range s.Members() {
			if _, ok := seen[string(m)]; !ok {
				seen[string(m)] = struct{}{}
				out = append(out, m)
			}
		}
	}
	return out
}

func Inter(sets ...*Set) [][]byte {
	if len(sets) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, s := range sets {
		for _, m := range s.Members() {
			counts[string(m)]++
		}
	}
	var out [][]byte
	for m, c := range counts {
		if c == len(sets) {
			out = append(out, []byte(m))
		}
	}
	return out
}

func Diff(first *Set, rest ...*Set) [][]byte {
	exclude := make(map[string]struct{})
	for _, s := range rest {
		for _, m := range s.Members() {
			exclude[string(m)] = struct{}{}
		}
	}
	var out [][]byte
	for _, m := range first.Members() {
		if _, ok := exclude[string(m)]; !ok {
			out = append(out, m)
		}
	}
	return out
}
