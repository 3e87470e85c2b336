package pool

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is one of the three lifecycle states a Pool can be in.
type State int32

const (
	// StateStopped is both the terminal state after a full Stop(true)
	// and the zero value, so an unstarted Pool correctly refuses work.
	StateStopped State = iota
	StateRun
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRun:
		return "run"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

/*
Pool is an elastic worker pool: Start spawns lowWatermark workers; Execute
enqueues a Task if the pool is running and the queue has room; each
worker grows the pool under sustained load up to highWatermark and
contracts back to lowWatermark after idleTime of no work.

Every voluntary worker exit computes its post-condition exactly once, in
exitLocked, rather than decrementing the worker count from several
different call sites.
*/
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	stopped  *sync.Cond

	tasks []Task
	state State

	currentWorkers int
	lowWatermark   int
	highWatermark  int
	maxQueueSize   int
	idleTime       time.Duration

	logger zerolog.Logger
}

// New constructs a Pool. It is not running until Start is called.
func New(lowWatermark, highWatermark, maxQueueSize int, idleTime time.Duration, opts ...Option) *Pool {
	p := &Pool{
		lowWatermark:  lowWatermark,
		highWatermark: highWatermark,
		maxQueueSize:  maxQueueSize,
		idleTime:      idleTime,
		logger:        zerolog.Nop(),
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.stopped = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start transitions the pool to Run and spawns exactly lowWatermark
// workers. Idempotent if already running; valid from any other state.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.state == StateRun {
		p.mu.Unlock()
		return
	}
	p.state = StateRun
	p.currentWorkers = 0
	p.mu.Unlock()

	for i := 0; i < p.lowWatermark; i++ {
		p.spawn()
	}
}

func (p *Pool) spawn() {
	p.mu.Lock()
	p.currentWorkers++
	p.mu.Unlock()
	go p.worker()
}

// Execute enqueues task if the pool is Run and the queue has room. The
// admission predicate is strictly len(queue) > maxQueueSize, so the
// queue may briefly hold maxQueueSize+1 entries.
func (p *Pool) Execute(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRun {
		return false
	}
	if len(p.tasks) > p.maxQueueSize {
		return false
	}
	p.tasks = append(p.tasks, task)
	p.notEmpty.Signal()
	return true
}

// Stop transitions Run -> Stopping. If the queue is already empty it
// wakes parked workers immediately so they can observe Stopping without
// waiting out a full idle timeout. If await is true, Stop blocks until
// every worker has exited and the pool reaches Stopped.
func (p *Pool) Stop(await bool) {
	p.mu.Lock()
	if p.state == StateRun {
		p.state = StateStopping
		if len(p.tasks) == 0 {
			p.notEmpty.Broadcast()
		}
	}
	for await && p.state != StateStopped {
		p.stopped.Wait()
	}
	p.mu.Unlock()
}

// State reports the pool's current lifecycle state.
func (p *Pool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Workers reports the current live worker count.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentWorkers
}

func (p *Pool) worker() {
	for {
		p.mu.Lock()
		for len(p.tasks) == 0 {
			if p.shouldExitLocked(false) {
				p.exitLocked()
				p.mu.Unlock()
				return
			}
			timedOut := p.waitLocked(p.idleTime)
			if timedOut && p.shouldExitLocked(true) {
				p.exitLocked()
				p.mu.Unlock()
				return
			}
		}
		task := p.tasks[0]
		p.tasks = p.tasks[1:]
		p.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error().Interface("panic", r).Msg("pool task panicked")
				}
			}()
			task()
		}()

		p.maybeGrow()
	}
}

// shouldExitLocked computes whether the calling worker should exit now.
// Called with p.mu held. This is the single place the exit condition is
// computed.
func (p *Pool) shouldExitLocked(timedOut bool) bool {
	if p.state == StateStopping && len(p.tasks) == 0 {
		return true
	}
	if timedOut && p.currentWorkers > p.lowWatermark {
		return true
	}
	return false
}

// exitLocked performs the one and only decrement-and-maybe-finalize step
// for a voluntarily exiting worker. Called with p.mu held.
func (p *Pool) exitLocked() {
	p.currentWorkers--
	if p.currentWorkers == 0 && p.state == StateStopping {
		p.state = StateStopped
		p.stopped.Broadcast()
	}
}

// maybeGrow runs after executing a task and before looping back for the
// next one: spawn one more worker if there's still a backlog, the pool
// is running, and there's room under highWatermark.
func (p *Pool) maybeGrow() {
	p.mu.Lock()
	grow := len(p.tasks) > 0 && p.state == StateRun && p.currentWorkers < p.highWatermark
	if grow {
		p.currentWorkers++
	}
	p.mu.Unlock()

	if grow {
		go p.worker()
	}
}

// waitLocked parks on notEmpty, with p.mu held on entry and on return, for
// at most timeout. Reports whether the wait timed out (as opposed to
// being woken by Signal/Broadcast).
func (p *Pool) waitLocked(timeout time.Duration) (timedOut bool) {
	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		p.mu.Lock()
		select {
		case <-done:
		default:
			close(done)
		}
		p.notEmpty.Broadcast()
		p.mu.Unlock()
	})

	p.notEmpty.Wait()

	timer.Stop()
	select {
	case <-done:
		return true
	default:
		return false
	}
}
