// Package server implements three acceptor variants — thread-per-
// connection, single-reactor, and multi-reactor — all sharing
// conn.Connection and cache.Storage as their core.
package server

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// listenTCP builds a raw, already-listen()ing socket for addr
// ("host:port"). A raw fd, rather than a *net.TCPListener, is used
// throughout this package so conn.Connection and the epoll-based
// variants can operate on it directly via golang.org/x/sys/unix.
func listenTCP(addr string) (fd int, err error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return -1, fmt.Errorf("resolve listen address: %w", err)
	}

	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	var sa unix.SockaddrInet4
	sa.Port = tcpAddr.Port
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, &sa); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}
