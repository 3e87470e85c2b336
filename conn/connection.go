// Package conn implements the per-connection protocol state machine:
// buffering, incremental parsing, command execution, and vectored,
// resumable writes.
package conn

import (
	"strings"
	"sync"

	"github.com/Krishna8167/tempuscached/cache"
	"github.com/Krishna8167/tempuscached/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// bufferSize is the fixed read chunk size: large enough to amortize the
// read() syscall across typical requests, small enough to keep each
// connection's footprint bounded.
const bufferSize = 4096

/*
Connection owns one client socket's buffers, parse progress, pending
replies, liveness flag, and interest mask. It never blocks inside an
event handler when its fd is non-blocking: a read or write that would
block simply returns, leaving wantsRead/wantsWrite set for the reactor
to re-arm. When driven from a blocking (non-O_NONBLOCK) fd, DoRead's
read loop naturally blocks between commands instead, which is exactly
what the thread-per-connection server variant wants — the same state
machine serves both, differing only in how the owning server variant
configures the socket and drives the loop: the reactor owns I/O
readiness, the connection owns protocol progress.

The interest mask is held here as the wantsRead/wantsWrite/hungUp flags;
the epoll bits themselves live in the owning server's connState, which
clears them with Go's `&^=` (AND-NOT).
*/
type Connection struct {
	fd      int
	id      string
	storage cache.Storage
	logger  zerolog.Logger

	readBuf [bufferSize]byte
	pending []byte // unconsumed header-fragment bytes carried across reads

	parser     protocol.Parser
	command    protocol.Command
	argRemains int
	argument   strings.Builder

	replies [][]byte

	alive       bool
	wantsRead   bool
	wantsWrite  bool
	hungUp      bool
	closeOnce   sync.Once
	closeErr    error
}

// New wraps fd (already accept()ed) in a fresh Connection. fd's blocking
// mode is the caller's responsibility: reactor-driven servers must set
// O_NONBLOCK before constructing a Connection; the thread-per-connection
// server leaves it blocking.
func New(fd int, storage cache.Storage, logger zerolog.Logger) *Connection {
	id := uuid.NewString()
	return &Connection{
		fd:        fd,
		id:        id,
		storage:   storage,
		logger:    logger.With().Str("conn_id", id).Logger(),
		alive:     true,
		wantsRead: true,
	}
}

// FD returns the underlying file descriptor, for reactor registration.
func (c *Connection) FD() int { return c.fd }

// IsAlive reports whether the connection has not yet transitioned to
// error or closed.
func (c *Connection) IsAlive() bool { return c.alive }

// Close closes the underlying socket exactly once, for a server variant
// shutting down a connection that is still open (as opposed to one that
// already transitioned itself to closed/errored via DoRead/DoWrite).
func (c *Connection) Close() { c.onClose() }

// WantsRead reports whether the reactor should keep delivering read
// readiness for this connection.
func (c *Connection) WantsRead() bool { return c.wantsRead }

// WantsWrite reports whether the reactor should deliver write readiness
// (there's buffered reply data pending).
func (c *Connection) WantsWrite() bool { return c.wantsWrite }

// DoRead repeatedly reads into the fixed buffer until the read would
// block (non-blocking fd) or the peer closes/errors. Each chunk read is
// fed through the incremental parse/execute pipeline.
func (c *Connection) DoRead() {
	for {
		n, err := unix.Read(c.fd, c.readBuf[:])
		switch {
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return
		case err != nil:
			c.onError(err)
			return
		case n == 0:
			c.onClose()
			return
		}

		c.ingest(c.readBuf[:n])

		if c.wantsWrite {
			c.DoWrite()
		}
		if !c.alive {
			return
		}
		if !c.wantsRead && !c.wantsWrite {
			c.onClose()
			return
		}
	}
}

// ingest drives the per-chunk state machine: parse a header, accumulate
// a bulk argument across chunks/reads if one is required, execute on
// completion, and queue the reply.
func (c *Connection) ingest(chunk []byte) {
	data := chunk
	if len(c.pending) > 0 {
		data = append(c.pending, data...)
		c.pending = nil
	}

	for {
		if c.command == nil {
			consumed, ok := c.parser.Parse(data)
			if !ok {
				if len(data) > protocol.MaxHeaderLen {
					c.queueReply("ERROR")
					c.parser.Reset()
					return
				}
				if len(data) > 0 {
					c.pending = append([]byte(nil), data...)
				}
				return
			}
			data = data[consumed:]

			cmd, argRemains, err := c.parser.Build()
			c.parser.Reset()
			if err != nil {
				c.queueReply("ERROR")
			} else {
				c.command = cmd
				c.argRemains = argRemains
				if c.argRemains > 0 {
					c.argRemains += 2 // trailing CRLF framing
				}
				c.argument.Reset()
			}
		}

		if c.command != nil && c.argRemains > 0 {
			take := c.argRemains
			if take > len(data) {
				take = len(data)
			}
			c.argument.Write(data[:take])
			data = data[take:]
			c.argRemains -= take
		}

		if c.command != nil && c.argRemains == 0 {
			arg := c.argument.String()
			if n := len(arg); n >= 2 {
				arg = arg[:n-2]
			}
			reply := c.command.Execute(c.storage, arg)
			c.queueReply(reply)
			c.command = nil
		}

		if len(data) == 0 {
			return
		}
	}
}

// queueReply appends a fully-formed reply (plus CRLF) to the pending
// list and arms write interest.
func (c *Connection) queueReply(reply string) {
	c.replies = append(c.replies, []byte(reply+"\r\n"))
	c.wantsWrite = true
}

// DoWrite issues one vectored write from the pending-replies list,
// draining whatever was fully written and trimming a partially-written
// leading entry in place.
func (c *Connection) DoWrite() {
	if len(c.replies) == 0 {
		c.wantsWrite = false
		return
	}

	n, err := unix.Writev(c.fd, c.replies)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return
	}
	if err != nil || n <= 0 {
		c.onError(err)
		return
	}

	written := n
	i := 0
	for i < len(c.replies) && written >= len(c.replies[i]) {
		written -= len(c.replies[i])
		i++
	}
	c.replies = c.replies[i:]
	if written > 0 && len(c.replies) > 0 {
		c.replies[0] = c.replies[0][written:]
	}

	if len(c.replies) == 0 {
		c.wantsWrite = false
	}
	if !c.wantsRead && !c.wantsWrite {
		c.onClose()
	}
}

// onError transitions the connection to the error state: socket closed,
// resources released.
func (c *Connection) onError(err error) {
	c.alive = false
	c.wantsRead = false
	c.wantsWrite = false
	c.closeErr = err
	c.closeFD()
	c.logger.Debug().Err(err).Msg("connection error")
}

// onClose transitions the connection to the closed state: peer closed
// cleanly, or both interest bits dropped after a read/write cycle.
func (c *Connection) onClose() {
	c.alive = false
	c.wantsRead = false
	c.wantsWrite = false
	c.hungUp = true
	c.closeFD()
	c.logger.Debug().Msg("connection closed")
}

// closeFD closes the socket exactly once over the connection's
// lifetime, regardless of how many of onError/onClose observe the
// transition.
func (c *Connection) closeFD() {
	c.closeOnce.Do(func() {
		_ = unix.Close(c.fd)
	})
}
