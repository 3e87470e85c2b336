package cache

// Stats captures runtime counters for a cache instance: hits, misses, and
// head evictions. There is no locking here; LockedStorage's Stats method
// snapshots under its own mutex.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}
