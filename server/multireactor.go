package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Krishna8167/tempuscached/cache"
	"github.com/Krishna8167/tempuscached/conn"
	"github.com/Krishna8167/tempuscached/pool"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// shardEpollTimeoutMillis bounds how long a reactor shard blocks in
// EpollWait before checking for newly handed-off connections and the
// shutdown signal. Small enough that Close() returns promptly, large
// enough to keep idle shards from spinning.
const shardEpollTimeoutMillis = 200

// reactorShard is one epoll instance plus the connections currently
// registered on it; exactly one goroutine (the one running it as a
// pool.Task) ever touches its conns map, so no locking is needed inside
// the shard itself.
type reactorShard struct {
	epfd     int
	conns    map[int]*connState
	incoming chan int
}

/*
MultiReactorServer is the multi-reactor non-blocking variant: a fixed
number of independent epoll shards, each driven by a pool.Task, with a
single blocking-accept goroutine round-robining newly accepted
connections across the shards. The backing pool is sized
lowWatermark == highWatermark == reactorCount, so it never elastically
grows or contracts in practice — there's no backlog to react to, since
each shard's loop is a single long-lived task — it serves purely as the
lifecycle manager for the reactor set, rather than a second bespoke
concept.
*/
type MultiReactorServer struct {
	listenFD int
	shards   []*reactorShard
	pool     *pool.Pool
	storage  cache.Storage
	logger   zerolog.Logger

	next uint64

	stop chan struct{}
	once sync.Once
}

// NewMultiReactor binds addr and prepares reactorCount independent
// epoll shards backed by a fixed-size pool.Pool.
func NewMultiReactor(addr string, reactorCount int, storage cache.Storage, logger zerolog.Logger) (*MultiReactorServer, error) {
	listenFD, err := listenTCP(addr)
	if err != nil {
		return nil, err
	}

	shards := make([]*reactorShard, reactorCount)
	for i := range shards {
		epfd, err := unix.EpollCreate1(0)
		if err != nil {
			for j := 0; j < i; j++ {
				_ = unix.Close(shards[j].epfd)
			}
			_ = unix.Close(listenFD)
			return nil, err
		}
		shards[i] = &reactorShard{
			epfd:     epfd,
			conns:    make(map[int]*connState),
			incoming: make(chan int, 64),
		}
	}

	p := pool.New(reactorCount, reactorCount, reactorCount, time.Hour, pool.WithLogger(logger))

	return &MultiReactorServer{
		listenFD: listenFD,
		shards:   shards,
		pool:     p,
		storage:  storage,
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// Serve starts every shard's event loop on the backing pool and runs
// the acceptor loop on the calling goroutine until Close is called.
func (s *MultiReactorServer) Serve() error {
	s.pool.Start()
	for _, shard := range s.shards {
		shard := shard
		s.pool.Execute(func() { s.runShard(shard) })
	}
	return s.acceptLoop()
}

func (s *MultiReactorServer) acceptLoop() error {
	for {
		fd, _, err := unix.Accept(s.listenFD)
		if err != nil {
			select {
			case <-s.stop:
				return nil
			default:
			}
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fd)
			continue
		}

		idx := atomic.AddUint64(&s.next, 1) % uint64(len(s.shards))
		select {
		case s.shards[idx].incoming <- fd:
		case <-s.stop:
			_ = unix.Close(fd)
			return nil
		}
	}
}

func (s *MultiReactorServer) runShard(shard *reactorShard) {
	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		n, err := unix.EpollWait(shard.epfd, events, shardEpollTimeoutMillis)
		if err != nil && err != unix.EINTR {
			return
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			s.dispatchShard(shard, fd, events[i].Events)
		}

		s.drainIncoming(shard)
	}
}

func (s *MultiReactorServer) drainIncoming(shard *reactorShard) {
	for {
		select {
		case fd := <-shard.incoming:
			s.registerOnShard(shard, fd)
		default:
			return
		}
	}
}

func (s *MultiReactorServer) registerOnShard(shard *reactorShard, fd int) {
	c := conn.New(fd, s.storage, s.logger)
	cs := &connState{c: c, mask: unix.EPOLLIN}
	shard.conns[fd] = cs

	ev := unix.EpollEvent{Events: cs.mask, Fd: int32(fd)}
	if err := unix.EpollCtl(shard.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		delete(shard.conns, fd)
		_ = unix.Close(fd)
	}
}

func (s *MultiReactorServer) dispatchShard(shard *reactorShard, fd int, events uint32) {
	cs, ok := shard.conns[fd]
	if !ok {
		return
	}

	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		s.dropFromShard(shard, cs)
		return
	}
	if events&unix.EPOLLIN != 0 {
		cs.c.DoRead()
	}
	if cs.c.IsAlive() && events&unix.EPOLLOUT != 0 {
		cs.c.DoWrite()
	}

	if !cs.c.IsAlive() {
		s.dropFromShard(shard, cs)
		return
	}

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
	ev := unix.EpollEvent{Events: cs.mask, Fd: int32(fd)}
	_ = unix.EpollCtl(shard.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (s *MultiReactorServer) dropFromShard(shard *reactorShard, cs *connState) {
	_ = unix.EpollCtl(shard.epfd, unix.EPOLL_CTL_DEL, cs.c.FD(), nil)
	delete(shard.conns, cs.c.FD())
	cs.c.Close() // no-op if the connection already closed its socket
}

// Close stops the acceptor and every shard, waits for the backing pool
// to drain — so no shard goroutine is still touching its conns map —
// and then releases every held fd, including any connection still open
// at shutdown.
func (s *MultiReactorServer) Close() error {
	s.once.Do(func() {
		close(s.stop)
		_ = unix.Shutdown(s.listenFD, unix.SHUT_RDWR) // wakes a blocked Accept
		_ = unix.Close(s.listenFD)
	})
	s.pool.Stop(true)
	for _, shard := range s.shards {
		for _, cs := range shard.conns {
			cs.c.Close()
		}
		_ = unix.Close(shard.epfd)
	}
	return nil
}
