package cache

import "sync"

/*
LockedStorage wraps an *LRU behind a single mutual-exclusion lock to
expose a thread-safe Storage. It is the sole concurrency boundary for
the cache: the LRU engine itself assumes single-threaded access.

Every operation acquires the lock, delegates to the wrapped engine, and
releases — not fair, not reentrant. A plain sync.Mutex is used rather
than a RWMutex: every Storage operation, including Get, mutates recency
ordering, so there is no pure-read path that would benefit from a reader
lock.

This is a deliberate contention bottleneck, not an oversight: the hot
path is O(1) amortized plus a constant-work splice, so a single lock
keeps the implementation small.
*/
type LockedStorage struct {
	mu    sync.Mutex
	inner *LRU
}

// NewLockedStorage wraps lru behind a mutex.
func NewLockedStorage(lru *LRU) *LockedStorage {
	return &LockedStorage{inner: lru}
}

func (s *LockedStorage) Put(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Put(key, value)
}

func (s *LockedStorage) PutIfAbsent(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.PutIfAbsent(key, value)
}

func (s *LockedStorage) Set(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Set(key, value)
}

func (s *LockedStorage) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Delete(key)
}

func (s *LockedStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Get(key)
}

// Stats returns a snapshot of the wrapped engine's counters.
func (s *LockedStorage) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Stats()
}

var _ Storage = (*LockedStorage)(nil)
var _ Storage = (*LRU)(nil)
