package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

/*
pool_test.go exercises the pool's admission, growth, and contraction
invariants against real goroutines and real timeouts rather than fakes.
*/

func TestStartSpawnsLowWatermark(t *testing.T) {
	p := New(2, 4, 8, 20*time.Millisecond)
	p.Start()
	defer p.Stop(true)

	require.Eventually(t, func() bool { return p.Workers() == 2 }, time.Second, time.Millisecond)
}

func TestExecuteBeforeStartReturnsFalse(t *testing.T) {
	p := New(1, 2, 4, 20*time.Millisecond)
	require.False(t, p.Execute(func() {}))
}

func TestExecuteAfterStopReturnsFalse(t *testing.T) {
	p := New(1, 2, 4, 20*time.Millisecond)
	p.Start()
	p.Stop(true)
	require.False(t, p.Execute(func() {}))
}

func TestExecuteRunsTask(t *testing.T) {
	p := New(1, 2, 4, 20*time.Millisecond)
	p.Start()
	defer p.Stop(true)

	done := make(chan struct{})
	require.True(t, p.Execute(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestScenarioTwoAdmission(t *testing.T) {
	// low=2, high=4, queue=2, six fast tasks submitted instantly. The
	// exact admitted count depends on timing, but every admitted task
	// must eventually complete.
	p := New(2, 4, 2, 50*time.Millisecond)
	p.Start()
	defer p.Stop(true)

	var completed int32
	var wg sync.WaitGroup
	admitted := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		ok := p.Execute(func() {
			atomic.AddInt32(&completed, 1)
			wg.Done()
		})
		if ok {
			admitted++
		} else {
			wg.Done()
		}
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all admitted tasks completed")
	}
	require.Equal(t, int32(admitted), completed)
}

func TestPoolGrowsUnderLoadAndContractsWhenIdle(t *testing.T) {
	// Growth only re-evaluates after a task finishes, so short tasks
	// submitted in a burst exceeding lowWatermark's throughput drive the
	// worker count up toward highWatermark, and contraction brings it
	// back down once idle.
	p := New(2, 4, 64, 20*time.Millisecond)
	p.Start()
	defer p.Stop(true)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		require.True(t, p.Execute(func() {
			time.Sleep(10 * time.Millisecond)
			wg.Done()
		}))
	}

	require.Eventually(t, func() bool { return p.Workers() == 4 }, 2*time.Second, time.Millisecond)

	wg.Wait()

	// Sustained idleness contracts back to lowWatermark.
	require.Eventually(t, func() bool { return p.Workers() == 2 }, time.Second, time.Millisecond)
}

func TestStopAwaitDrainsPendingWork(t *testing.T) {
	p := New(2, 3, 8, 20*time.Millisecond)
	p.Start()

	var completed int32
	block := make(chan struct{})

	// two in-flight (one per initial worker), three queued: growth only
	// happens after a task finishes, so no third worker starts meanwhile.
	for i := 0; i < 5; i++ {
		p.Execute(func() {
			<-block
			atomic.AddInt32(&completed, 1)
		})
	}

	stopDone := make(chan struct{})
	go func() {
		p.Stop(true)
		close(stopDone)
	}()

	// Stop must not return while tasks are still blocked.
	select {
	case <-stopDone:
		t.Fatal("Stop(true) returned before pending work finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)

	select {
	case <-stopDone:
	case <-time.After(time.Second):
		t.Fatal("Stop(true) never returned")
	}

	require.Equal(t, int32(5), completed)
	require.Equal(t, 0, p.Workers())
	require.Equal(t, StateStopped, p.State())
}

func TestQueueFullAdmissionIsStrict(t *testing.T) {
	p := New(1, 1, 1, time.Hour)
	p.Start()
	defer p.Stop(true)

	block := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.Execute(func() { close(started); <-block })) // occupies the single worker
	<-started                                                       // queue is now empty, worker is busy

	require.True(t, p.Execute(func() {}))  // len==0 before push, not > maxQueueSize: queue len 1
	require.True(t, p.Execute(func() {}))  // len==1 before push, not > maxQueueSize: queue len 2 (max+1)
	require.False(t, p.Execute(func() {})) // len==2 > maxQueueSize(1): rejected

	close(block)
}
