// Package pool implements an elastic worker pool: a bounded task queue
// drained by a low/high-watermark set of goroutines that grow under load
// and contract when idle.
package pool

// Task is a zero-argument unit of work submitted to the pool. It is
// opaque to the pool: no return value, no join handle. A task is expected
// to handle its own failures — the pool never propagates a panic or error
// back to the submitter.
type Task func()
