package store

// scanIndex buckets live keys by the low bits of a hash, reverse-binary
// cursor style (the documented dict-scan algorithm: §9 Open Question 3),
// so that SCAN's cursor survives bucket growth the way a real hash
// table's does: a full traversal is guaranteed by repeating calls until
// the cursor returns to 0, even if the bucket count doubles mid-scan.
//
// This is a second index over the same keys as Database.entries, kept in
// sync incrementally on insert/delete and only rebuilt wholesale when the
// bucket count needs to grow.
type scanIndex struct {
	buckets [][]string // len(buckets) is always a power of two
	mask    uint64
}

const scanIndexMinBuckets = 8
const scanIndexMaxLoadFactor = 4

func newScanIndex() *scanIndex {
	return &scanIndex{
		buckets: make([][]string, scanIndexMinBuckets),
		mask:    scanIndexMinBuckets - 1,
	}
}

// fnv1a64 is used only to spread keys across scan buckets — it has no
// bearing on the keyspace's actual storage, which remains a plain map.
func fnv1a64(s string) uint64 {
	var h uint64 = 0xcbf29ce484222325
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 0x100000001b3
	}
	return h
}

func (si *scanIndex) bucketOf(key string) uint64 {
	return fnv1a64(key) & si.mask
}

func (si *scanIndex) insert(key string) {
	si.maybeGrow()
	b := si.bucketOf(key)
	si.buckets[b] = append(si.buckets[b], key)
}

func (si *scanIndex) remove(key string) {
	b := si.bucketOf(key)
	bucket := si.buckets[b]
	for i, k := range bucket {
		if k == key {
			si.buckets[b] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

func (si *scanIndex) count() int {
	n := 0
	for _, b := range si.buckets {
		n += len(b)
	}
	return n
}

func (si *scanIndex) maybeGrow() {
	if si.count() < len(si.buckets)*scanIndexMaxLoadFactor {
		return
	}
	old := si.buckets
	newSize := len(old) * 2
	si.buckets = make([][]string, newSize)
	si.mask = uint64(newSize) - 1
	for _, bucket := range old {
		for _, k := range bucket {
			b := si.bucketOf(k)
			si.buckets[b] = append(si.buckets[b], k)
		}
	}
}

func reverseBits(v uint64, bits int) uint64 {
	var r uint64
	for i := 0; i < bits; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

// next computes the reverse-binary increment of cursor within the
// current bucket count, the standard algorithm for a dict-scan cursor
// that tolerates table growth between calls.
func (si *scanIndex) nextCursor(cursor uint64) uint64 {
	bits := 0
	for 1<<bits < len(si.buckets) {
		bits++
	}
	v := reverseBits(cursor, bits)
	v++
	v &= si.mask
	return reverseBits(v, bits)
}

// scan visits the bucket at cursor, returning its keys and the next
// cursor (0 signals traversal complete).
func (si *scanIndex) scan(cursor uint64) (keys []string, next uint64) {
	bits := 0
	for 1<<bits < len(si.buckets) {
		bits++
	}
	idx := cursor & si.mask
	keys = append(keys, si.buckets[idx]...)
	next = si.nextCursor(cursor)
	_ = bits
	return keys, next
}
