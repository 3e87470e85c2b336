package server

import (
	"net"
	"testing"

	"github.com/Krishna8167/tempuscached/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestReactorServerSetAndGet(t *testing.T) {
	store := cache.NewLockedStorage(cache.New(4096))
	s, err := NewReactor("127.0.0.1:0", store, zerolog.Nop())
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

	require.Equal(t, "VALUE foo 0 3\r\n", sendAndReadLine(t, c, "get foo\r\n"))
}
