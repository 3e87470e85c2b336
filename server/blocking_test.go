package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/Krishna8167/tempuscached/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func sendAndReadLine(t *testing.T, c net.Conn, req string) string {
	t.Helper()
	_, err := c.Write([]byte(req))
	require.NoError(t, err)
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestBlockingServerSetAndGet(t *testing.T) {
	store := cache.NewLockedStorage(cache.New(4096))
	s, err := NewBlocking("127.0.0.1:0", 8, store, zerolog.Nop())
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
