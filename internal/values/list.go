package values

// NodeByteCap is the default quicklist node size cap (§3 List,
// list-max-listpack-size -2 meaning "8 KiB").
const NodeByteCap = 8 * 1024

// listNode is one listpack node in the quicklist: a small run of
// contiguous elements. Nodes are singly responsible for their own byte
// budget; Len()==0 nodes are unlinked immediately, so "no empty nodes
// except an empty list" always holds.
type listNode struct {
	items      [][]byte
	bytes      int
	prev, next *listNode
}

func (n *listNode) size() int { return len(n.items) }

// List is a quicklist: a doubly linked list of listNodes. Index 0 is the
// logical left/head.
type List struct {
	head, tail *listNode
	length     int
	nodeCap    int
}

// NewList returns an empty list with the default node byte cap.
func NewList() *List { return &List{nodeCap: NodeByteCap} }

func (l *List) Kind() Kind { return KindList }
func (l *List) Len() int   { return l.length }

// IsQuicklist reports whether the list has grown past a single listpack
// node (OBJECT ENCODING support): real Redis promotes from "listpack" to
// "quicklist" once a list needs more than one node to hold its elements.
func (l *List) IsQuicklist() bool {
	return l.head != nil && l.head != l.tail
}

// Clone deep-copies every element into a fresh quicklist so SETRANGE-style
// in-place writes on one copy never reach the other.
func (l *List) Clone() Value {
	out := NewList()
	out.nodeCap = l.nodeCap
	for n := l.head; n != nil; n = n.next {
		items := make([][]byte, len(n.items))
		for i, v := range n.items {
			cp := make([]byte, len(v))
			copy(cp, v)
			items[i] = cp
		}
		out.PushRight(items...)
	}
	return out
}

// PushLeft prepends one element at a time in argument order, so each
// prepend puts the next element further left: PushLeft(a,b,c) makes the
// list start c,b,a,... — exactly what LPUSH a b c needs.
func (l *List) PushLeft(vals ...[]byte) {
	for _, v := range vals {
		l.pushNodeLeft(v)
	}
}

// PushRight appends vals in order.
func (l *List) PushRight(vals ...[]byte) {
	for _, v := range vals {
		l.pushNodeRight(v)
	}
}

func (l *List) pushNodeLeft(v []byte) {
	if l.head == nil || l.head.bytes+len(v) > l.nodeCap {
		n := &listNode{next: l.head}
		if l.head != nil {
			l.head.prev = n
		}
		l.head = n
		if l.tail == nil {
			l.tail = n
		}
	}
	n := l.head
	n.items = append([][]byte{v}, n.items...)
	n.bytes += len(v)
	l.length++
}

func (l *List) pushNodeRight(v []byte) {
	if l.tail == nil || l.tail.bytes+len(v) > l.nodeCap {
		n := &listNode{prev: l.tail}
		if l.tail != nil {
			l.tail.next = n
		}
		l.tail = n
		if l.head == nil {
			l.head = n
		}
	}
	n := l.tail
	n.items = append(n.items, v)
	n.bytes += len(v)
	l.length++
}

// PopLeft removes and returns the leftmost element.
func (l *List) PopLeft() ([]byte, bool) {
	if l.head == nil {
		return nil, false
	}
	n := l.head
	v := n.items[0]
	n.items = n.items[1:]
	n.bytes -= len(v)
	l.length--
	if len(n.items) == 0 {
		l.unlink(n)
	}
	return v, true
}

// PopRight removes and returns the rightmost element.
func (l *List) PopRight() ([]byte, bool) {
	if l.tail == nil {
		return nil, false
	}
	n := l.tail
	last := len(n.items) - 1
	v := n.items[last]
	n.items = n.items[:last]
	n.bytes -= len(v)
	l.length--
	if len(n.items) == 0 {
		l.unlink(n)
	}
	return v, true
}

func (l *List) unlink(n *listNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
}

// resolveIndex turns a possibly-negative logical index into [0,len) plus
// an ok flag.
func (l *List) resolveIndex(i int) (int, bool) {
	if i < 0 {
		i += l.length
	}
	if i < 0 || i >= l.length {
		return 0, false
	}
	return i, true
}

// nodeAt walks to the node containing logical index idx (already resolved
// to [0,len)), returning the node and the offset within it.
func (l *List) nodeAt(idx int) (*listNode, int) {
	n := l.head
	for n != nil {
		if idx < len(n.items) {
			return n, idx
		}
		idx -= len(n.items)
		n = n.next
	}
	return nil, 0
}

// Index returns the element at logical index i (negative counts from the
// right).
func (l *List) Index(i int) ([]byte, bool) {
	idx, ok := l.resolveIndex(i)
	if !ok {
		return nil, false
	}
	n, off := l.nodeAt(idx)
	if n == nil {
		return nil, false
	}
	return n.items[off], true
}

// SetAt overwrites the element at logical index i.
func (l *List) SetAt(i int, v []byte) bool {
	idx, ok := l.resolveIndex(i)
	if !ok {
		return false
	}
	n, off := l.nodeAt(idx)
	if n == nil {
		return false
	}
	n.bytes += len(v) - len(n.items[off])
	n.items[off] = v
	return true
}

// Range returns an inclusive [start,stop] slice with negative indices
// resolved and out-of-range bounds clamped, the documented LRANGE
// semantics.
func (l *List) Range(start, stop int) [][]byte {
	if l.length == 0 {
		return nil
	}
	if start < 0 {
		start += l.length
	}
	if stop < 0 {
		stop += l.length
	}
	if start < 0 {
		start = 0
	}
	if stop >= l.length {
		stop = l.length - 1
	}
	if start > stop || start >= l.length {
		return nil
	}

	out := make([][]byte, 0, stop-start+1)
	i := 0
	for n := l.head; n != nil && i <= stop; n = n.next {
		nodeStart := i
		for off, v := range n.items {
			pos := nodeStart + off
			if pos >= start && pos <= stop {
				out = append(out, v)
			}
		}
		i += len(n.items)
	}
	return out
}

// Trim keeps only the inclusive [start,stop] window, removing everything
// else; an empty resulting window empties the list (the caller then
// deletes the key, per the shared container-emptiness invariant).
func (l *List) Trim(start, stop int) {
	kept := l.Range(start, stop)
	l.head, l.tail, l.length = nil, nil, 0
	l.PushRight(kept...)
}

// Position implements LPOS: scan for elem, skipping the first `rank-1`
// matches (or from the right if rank<0), returning up to `count` matches
// (count<=0 means "all"), bounded by maxlen comparisons (maxlen<=0 means
// unbounded).
func (l *List) Position(elem []byte, rank, count, maxlen int) []int {
	if rank == 0 {
		rank = 1
	}
	var all [][2]int // [logical index, _]
	scanned := 0
	add := func(idx int) { all = append(all, [2]int{idx, 0}) }

	if rank > 0 {
		i := 0
		for n := l.head; n != nil; n = n.next {
			for _, v := range n.items {
				scanned++
				if bytesEqual(v, elem) {
					add(i)
				}
				i++
				if maxlen > 0 && scanned >= maxlen {
					goto doneForward
				}
			}
		}
	doneForward:
	} else {
		i := l.length - 1
		for n := l.tail; n != nil; n = n.prev {
			for off := len(n.items) - 1; off >= 0; off-- {
				scanned++
				if bytesEqual(n.items[off], elem) {
					add(i)
				}
				i--
				if maxlen > 0 && scanned >= maxlen {
					goto doneBackward
				}
			}
		}
	doneBackward:
	}

	skip := rank - 1
	if rank < 0 {
		skip = -rank - 1
	}
	if skip >= len(all) {
		return nil
	}
	rest := all[skip:]
	if count > 0 && count < len(rest) {
		rest = rest[:count]
	}
	out := make([]int, len(rest))
	for i, r := range rest {
		out[i] = r[0]
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
