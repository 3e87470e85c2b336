package cache

// Entries live in a flat arena addressed by int32 index rather than by
// pointer. This sidesteps the ownership hazards of an intrusive pointer
// list while keeping the same "index into a doubly linked list" shape.
//
// Two fixed slots, headSentinel and tailSentinel, are allocated once and
// never freed. headSentinel.next is the least-recently-used real entry;
// tailSentinel.prev is the most-recently-used real entry. An empty list
// has the sentinels pointing directly at each other.
const (
	headSentinel int32 = 0
	tailSentinel int32 = 1
	nilIdx       int32 = -1
)

type entry struct {
	key, value string
	prev, next int32
}

func (e *entry) size() int {
	return len(e.key) + len(e.value)
}

// link makes a.next == b and b.prev == a.
func (l *LRU) link(a, b int32) {
	l.nodes[a].next = b
	l.nodes[b].prev = a
}

// detach removes i from wherever it currently sits in the list, without
// freeing its slot. i must not be a sentinel.
func (l *LRU) detach(i int32) {
	n := &l.nodes[i]
	l.link(n.prev, n.next)
}

// pushTail splices i in immediately before tailSentinel, marking it
// most-recently-used. i must already be detached (or newly allocated).
func (l *LRU) pushTail(i int32) {
	prev := l.nodes[tailSentinel].prev
	l.link(prev, i)
	l.link(i, tailSentinel)
}

// front returns the least-recently-used real entry's index, or nilIdx if
// the list holds no real entries.
func (l *LRU) front() int32 {
	if i := l.nodes[headSentinel].next; i != tailSentinel {
		return i
	}
	return nilIdx
}

// alloc reserves a slot for a new entry, reusing a freed slot if one is
// available, and returns its index. The caller is responsible for linking
// it into the list.
func (l *LRU) alloc(key, value string) int32 {
	if n := len(l.free); n > 0 {
		i := l.free[n-1]
		l.free = l.free[:n-1]
		l.nodes[i] = entry{key: key, value: value}
		return i
	}
	l.nodes = append(l.nodes, entry{key: key, value: value})
	return int32(len(l.nodes) - 1)
}

// release detaches and frees i's slot for reuse, and drops it from the
// key index. Caller must have already accounted for its size.
func (l *LRU) release(i int32) {
	l.detach(i)
	delete(l.index, l.nodes[i].key)
	l.nodes[i] = entry{} // drop references so freed strings can be GC'd
	l.free = append(l.free, i)
}
