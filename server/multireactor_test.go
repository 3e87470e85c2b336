package server

import (
	"net"
	"testing"

	"github.com/Krishna8167/tempuscached/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMultiReactorServerSetAndGet(t *testing.T) {
	store := cache.NewLockedStorage(cache.New(4096))
	s, err := NewMultiReactor("127.0.0.1:0", 2, store, zerolog.Nop())
	require.NoError(t, err)

	addr := listenerAddr(t, s.listenFD)

	go func() { _ = s.Serve() }()
	t.Cleanup(func() { _ = s.Close() })

	c, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, "STORED\r\n", sendAndReadLine(t, c, "set foo 3\r\nbar\r\n"))

	v, ok := store.Get("foo")
	require.True(t, ok)
	require.Equal(t, "bar", v)
}

func TestMultiReactorServerDistributesAcrossShards(t *testing.T) {
	store := cache.NewLockedStorage(cache.New(4096))
	s, err := NewMultiReactor("127.0.0.1:0", 3, store, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, s.shards, 3)

	addr := listenerAddr(t, s.listenFD)
	go func() { _ = s.Serve() }()
	t.Cleanup(func() { _ = s.Close() })

	for i := 0; i < 6; i++ {
		c, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		require.Equal(t, "STORED\r\n", sendAndReadLine(t, c, "set k 1\r\nv\r\n"))
		c.Close()
	}
}
