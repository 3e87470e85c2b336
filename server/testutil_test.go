package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// listenerAddr resolves the ephemeral port the kernel assigned a
// listen(":0")-bound socket to, so tests can dial it back.
func listenerAddr(t *testing.T, fd int) string {
	t.Helper()
	sa, err := unix.Getsockname(fd)
	require.NoError(t, err)
	sa4, ok := sa.(*unix.SockaddrInet4)
	require.True(t, ok)
	return fmt.Sprintf("127.0.0.1:%d", sa4.Port)
}
