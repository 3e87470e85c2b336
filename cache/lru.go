package cache

import "github.com/rs/zerolog"

/*
LRU is a bounded, single-threaded associative store ordered by recency.

ARCHITECTURAL OVERVIEW

Two structures back every key:

1. index (map[string]int32)
   - O(1) average lookup from key to its slot in the entry arena.

2. entry arena ([]entry, addressed by int32, see entry.go)
   - A doubly linked list threaded through the arena via prev/next
     indices. headSentinel.next is the least-recently-used entry;
     tailSentinel.prev is the most-recently-used.

CONCURRENCY MODEL

None. LRU assumes single-threaded access; callers needing thread-safety
wrap an *LRU in a LockedStorage (locked.go).

EVICTION POLICY

Strict LRU from the list head, one entry at a time, until the requested
admission fits. An entry being admitted or updated is never itself a
candidate for its own eviction: Set and Put-on-hit detach the touched
entry from the list before running the eviction loop, so the loop only
ever considers other entries.
*/
type LRU struct {
	nodes   []entry
	free    []int32
	index   map[string]int32
	maxSize int
	size    int
	stats   Stats
	logger  zerolog.Logger
}

// New constructs an LRU bounded to maxSize total bytes of key+value data.
func New(maxSize int, opts ...Option) *LRU {
	l := &LRU{
		maxSize: maxSize,
		index:   make(map[string]int32),
		nodes:   make([]entry, 2, 16),
		logger:  zerolog.Nop(),
	}
	l.nodes[headSentinel] = entry{prev: headSentinel, next: tailSentinel}
	l.nodes[tailSentinel] = entry{prev: headSentinel, next: tailSentinel}

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Put inserts or replaces key's value, admitting a new entry on miss and
// behaving as Set on hit. Returns false, without side effect, if the
// request can never fit regardless of eviction.
func (l *LRU) Put(key, value string) bool {
	if len(key)+len(value) > l.maxSize {
		return false
	}
	if i, found := l.index[key]; found {
		l.setAt(i, value)
		return true
	}
	l.admit(key, value)
	return true
}

// PutIfAbsent admits key/value only if key is not already present.
func (l *LRU) PutIfAbsent(key, value string) bool {
	if len(key)+len(value) > l.maxSize {
		return false
	}
	if _, found := l.index[key]; found {
		return false
	}
	l.admit(key, value)
	return true
}

// Set replaces the value of an existing key. Returns false, untouched, if
// key is absent or the new value could never fit.
func (l *LRU) Set(key, value string) bool {
	i, found := l.index[key]
	if !found {
		return false
	}
	if len(key)+len(value) > l.maxSize {
		return false
	}
	l.setAt(i, value)
	return true
}

// Delete removes key. Returns false if it was absent.
func (l *LRU) Delete(key string) bool {
	i, found := l.index[key]
	if !found {
		return false
	}
	l.size -= l.nodes[i].size()
	l.release(i)
	return true
}

// Get copies out key's value and marks it most-recently-used.
func (l *LRU) Get(key string) (string, bool) {
	i, found := l.index[key]
	if !found {
		l.stats.Misses++
		return "", false
	}
	l.detach(i)
	l.pushTail(i)
	l.stats.Hits++
	return l.nodes[i].value, true
}

// Stats returns a snapshot of hit/miss/eviction counters.
func (l *LRU) Stats() Stats {
	return l.stats
}

// Len reports the number of live entries.
func (l *LRU) Len() int {
	return len(l.index)
}

// admit inserts a brand-new key/value pair, evicting from the head as
// needed. Caller has already verified key is absent and the pair fits
// within maxSize.
func (l *LRU) admit(key, value string) {
	needed := len(key) + len(value)
	l.evictUntilFits(needed, nilIdx)

	i := l.alloc(key, value)
	l.pushTail(i)
	l.index[key] = i
	l.size += needed
}

// setAt replaces the value of the entry at index i, evicting as needed to
// accommodate a larger value, then moves it to the tail. i is never a
// candidate for its own eviction.
func (l *LRU) setAt(i int32, value string) {
	old := l.nodes[i]
	delta := (len(old.key) + len(value)) - old.size()

	if delta > 0 {
		l.detach(i) // protect i from evictUntilFits while space is freed
		l.evictUntilFits(delta, i)
		l.nodes[i].value = value
		l.pushTail(i)
	} else {
		l.nodes[i].value = value
		l.detach(i)
		l.pushTail(i)
	}
	l.size += delta
}

// evictUntilFits removes least-recently-used entries, other than protect,
// until l.size+needed <= maxSize or the list (minus protect) is empty.
func (l *LRU) evictUntilFits(needed int, protect int32) {
	for l.size+needed > l.maxSize {
		victim := l.front()
		if victim == nilIdx || victim == protect {
			return
		}
		evictedKey := l.nodes[victim].key
		l.size -= l.nodes[victim].size()
		l.release(victim)
		l.stats.Evictions++
		l.logger.Debug().Str("key", evictedKey).Msg("evicted lru entry")
	}
}
