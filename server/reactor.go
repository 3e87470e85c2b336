package server

import (
	"sync"

	"github.com/Krishna8167/tempuscached/cache"
	"github.com/Krishna8167/tempuscached/conn"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const maxEpollEvents = 128

// connState pairs a Connection with the epoll interest mask currently
// registered for its fd, so updateInterest can toggle individual bits
// instead of recomputing from scratch. Clearing a bit uses Go's &^=
// (AND-NOT) throughout, never a bitwise-NOT mask, which would clear
// every bit except the one named instead of just that one.
type connState struct {
	c    *conn.Connection
	mask uint32
}

// ReactorServer is the single-reactor non-blocking variant: one epoll
// instance, one goroutine, multiplexing every accepted connection's I/O
// readiness.
type ReactorServer struct {
	listenFD int
	epfd     int
	storage  cache.Storage
	logger   zerolog.Logger

	conns map[int]*connState

	stop chan struct{}
	once sync.Once
}

// NewReactor binds addr and creates the epoll instance, registering the
// listener for read readiness.
func NewReactor(addr string, storage cache.Storage, logger zerolog.Logger) (*ReactorServer, error) {
	listenFD, err := listenTCP(addr)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(listenFD, true); err != nil {
		_ = unix.Close(listenFD)
		return nil, err
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		_ = unix.Close(listenFD)
		return nil, err
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(listenFD)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, listenFD, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(listenFD)
		return nil, err
	}

	return &ReactorServer{
		listenFD: listenFD,
		epfd:     epfd,
		storage:  storage,
		logger:   logger,
		conns:    make(map[int]*connState),
		stop:     make(chan struct{}),
	}, nil
}

// Serve runs the event loop until Close is called.
func (s *ReactorServer) Serve() error {
	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		n, err := unix.EpollWait(s.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			select {
			case <-s.stop:
				return nil
			default:
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == s.listenFD {
				s.acceptAll()
				continue
			}
			s.dispatch(fd, events[i].Events)
		}

		select {
		case <-s.stop:
			return nil
		default:
		}
	}
}

func (s *ReactorServer) acceptAll() {
	for {
		fd, _, err := unix.Accept(s.listenFD)
		if err != nil {
			return // EAGAIN: no more pending connections this cycle
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fd)
			continue
		}

		c := conn.New(fd, s.storage, s.logger)
		cs := &connState{c: c, mask: unix.EPOLLIN}
		s.conns[fd] = cs

		ev := unix.EpollEvent{Events: cs.mask, Fd: int32(fd)}
		if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			delete(s.conns, fd)
			_ = unix.Close(fd)
		}
	}
}

func (s *ReactorServer) dispatch(fd int, events uint32) {
	cs, ok := s.conns[fd]
	if !ok {
		return
	}

	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		s.drop(cs)
		return
	}
	if events&unix.EPOLLIN != 0 {
		cs.c.DoRead()
	}
	if cs.c.IsAlive() && events&unix.EPOLLOUT != 0 {
		cs.c.DoWrite()
	}

	if !cs.c.IsAlive() {
		s.drop(cs)
		return
	}
	s.updateInterest(cs)
}

// updateInterest re-arms epoll for exactly the interest bits
// Connection currently wants, clearing bits with &^= (see connState's
// doc comment).
func (s *ReactorServer) updateInterest(cs *connState) {
	if cs.c.WantsRead() {
		cs.mask |= unix.EPOLLIN
	} else {
		cs.mask &^= unix.EPOLLIN
	}
	if cs.c.WantsWrite() {
		cs.mask |= unix.EPOLLOUT
	} else {
		cs.mask &^= unix.EPOLLOUT
	}

	ev := unix.EpollEvent{Events: cs.mask, Fd: int32(cs.c.FD())}
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, cs.c.FD(), &ev)
}

func (s *ReactorServer) drop(cs *connState) {
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, cs.c.FD(), nil)
	delete(s.conns, cs.c.FD())
	cs.c.Close() // no-op if the connection already closed its socket
}

// Close stops the event loop and releases every held fd, including any
// connection still open at shutdown.
func (s *ReactorServer) Close() error {
	s.once.Do(func() {
		close(s.stop)
		for fd, cs := range s.conns {
			_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil)
			cs.c.Close()
		}
		_ = unix.Close(s.epfd)
		_ = unix.Close(s.listenFD)
	})
	return nil
}
