package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

/*
lru_test.go covers functional correctness, then eviction and recency
ordering, then concurrent access, against the Storage contract.
*/

func TestPutAndGet(t *testing.T) {
	c := New(64)

	require.True(t, c.Put("a", "1"))
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)
}

func TestPutOnHitBehavesAsSet(t *testing.T) {
	c := New(64)

	require.True(t, c.Put("k", "v"))
	require.True(t, c.Put("k", "vv"))

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "vv", v)
	require.Equal(t, 1, c.Len())
}

func TestPutIfAbsent(t *testing.T) {
	c := New(64)

	require.True(t, c.PutIfAbsent("k", "v"))
	require.False(t, c.PutIfAbsent("k", "other"))

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestSetOnMissFails(t *testing.T) {
	c := New(64)

	require.False(t, c.Set("missing", "v"))
	require.Equal(t, 0, c.Len())
}

func TestSetGrowsWithinBudget(t *testing.T) {
	// existing ("k","v") uses 2 bytes; max_size=4, new value "new" -> 4 bytes total.
	c := New(4)
	require.True(t, c.Put("k", "v"))
	require.True(t, c.Set("k", "new"))

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "new", v)
	require.Equal(t, 4, c.size)
}

func TestDelete(t *testing.T) {
	c := New(64)
	require.True(t, c.Put("k", "v"))
	require.True(t, c.Delete("k"))
	require.False(t, c.Delete("k"))

	_, ok := c.Get("k")
	require.False(t, ok)
}

func TestOversizedRequestLeavesStoreUntouched(t *testing.T) {
	c := New(4)
	require.True(t, c.Put("k", "v")) // 2 bytes

	require.False(t, c.Put("too", "big-value")) // way over 4 bytes

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
	require.Equal(t, 1, c.Len())
}

func TestGetMissIsRecorded(t *testing.T) {
	c := New(64)
	_, ok := c.Get("nope")
	require.False(t, ok)
	require.Equal(t, uint64(1), c.Stats().Misses)
}

// TestEvictionOrderScenario uses two-byte keys/values (4 bytes/entry)
// against max_size=8 so a third insert forces exactly one eviction.
func TestEvictionOrderScenario(t *testing.T) {
	c := New(8)

	require.True(t, c.Put("aa", "11")) // size 4, total 4
	require.True(t, c.Put("bb", "22")) // size 4, total 8
	require.True(t, c.Put("cc", "33")) // size 4, needs evict: drops "aa"

	_, ok := c.Get("aa")
	require.False(t, ok, "aa should have been evicted")

	v, ok := c.Get("bb")
	require.True(t, ok)
	require.Equal(t, "22", v) // touching bb makes it most-recently-used

	require.True(t, c.Put("dd", "44")) // evicts cc, since bb was just touched

	_, ok = c.Get("cc")
	require.False(t, ok, "cc should have been evicted, not bb")

	v, ok = c.Get("bb")
	require.True(t, ok)
	require.Equal(t, "22", v)

	v, ok = c.Get("dd")
	require.True(t, ok)
	require.Equal(t, "44", v)
}

func TestRecencyOrdering(t *testing.T) {
	c := New(64)
	require.True(t, c.Put("a", "1"))
	require.True(t, c.Put("b", "2"))

	_, _ = c.Get("a") // a now most-recently-used relative to b

	require.Equal(t, int32(2), c.index["a"]) // sanity: distinct slots
	require.NotEqual(t, c.index["a"], c.index["b"])

	// b is now the LRU entry: evicting one slot should drop b first.
	small := New(4)
	require.True(t, small.Put("x", "1"))
	require.True(t, small.Put("y", "1"))
	_, _ = small.Get("x")
	require.True(t, small.Put("z", "1"))

	_, ok := small.Get("y")
	require.False(t, ok)
	_, ok = small.Get("x")
	require.True(t, ok)
}

func TestConcurrentAccessViaLockedStorage(t *testing.T) {
	s := NewLockedStorage(New(1 << 20))

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			s.Put(key, "v")
			s.Get(key)
			s.Delete(key)
		}(i)
	}
	wg.Wait()
}
