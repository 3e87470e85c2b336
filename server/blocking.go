package server

import (
	"sync"

	"github.com/Krishna8167/tempuscached/cache"
	"github.com/Krishna8167/tempuscached/conn"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

/*
BlockingServer is the thread-per-connection variant: one goroutine per
accepted connection, admission capped by a fixed-size semaphore, no
worker pool involved — just a plain accept-side admission cap, since
there is no task queue to back with one.

Each connection's accepted fd stays in blocking mode: conn.Connection's
DoRead loop blocks on the next syscall.Read between commands and drains
replies with DoWrite as soon as they're computed, so a single DoRead
call serves as that connection's entire service loop for as long as its
goroutine lives.
*/
type BlockingServer struct {
	listenFD int
	storage  cache.Storage
	logger   zerolog.Logger

	sem  chan struct{}
	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// NewBlocking binds and listens on addr, capping concurrently served
// connections at maxConnections.
func NewBlocking(addr string, maxConnections int, storage cache.Storage, logger zerolog.Logger) (*BlockingServer, error) {
	fd, err := listenTCP(addr)
	if err != nil {
		return nil, err
	}
	return &BlockingServer{
		listenFD: fd,
		storage:  storage,
		logger:   logger,
		sem:      make(chan struct{}, maxConnections),
		stop:     make(chan struct{}),
	}, nil
}

// Serve accepts connections until Close is called, blocking the calling
// goroutine. It returns nil on a clean shutdown.
func (s *BlockingServer) Serve() error {
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

		select {
		case s.sem <- struct{}{}:
		case <-s.stop:
			_ = unix.Close(fd)
			return nil
		}

		s.wg.Add(1)
		go s.serveOne(fd)
	}
}

func (s *BlockingServer) serveOne(fd int) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	c := conn.New(fd, s.storage, s.logger)
	c.DoRead()
}

// Close stops accepting new connections and waits for every in-flight
// connection's goroutine to finish.
func (s *BlockingServer) Close() error {
	s.once.Do(func() {
		close(s.stop)
		_ = unix.Shutdown(s.listenFD, unix.SHUT_RDWR) // wakes a blocked Accept
		_ = unix.Close(s.listenFD)
	})
	s.wg.Wait()
	return nil
}
