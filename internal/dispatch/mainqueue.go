package dispatch

import "context"

// job is one continuation queued for the editor's main thread.
type job struct {
	fn   func() (any, error)
	done chan result
}

type result struct {
	value any
	err   error
}

// MainQueue marshals editor-thread-only handler calls onto a single
// process-wide channel drained by the host integration's update loop
// (spec §4.6 step 5 — handlers that touch editor state cannot run on an
// arbitrary connection's reader goroutine).
type MainQueue struct {
	jobs chan job
}

// NewMainQueue builds a queue with the given backlog capacity.
func NewMainQueue(capacity int) *MainQueue {
	return &MainQueue{jobs: make(chan job, capacity)}
}

// Submit enqueues fn and blocks until it has run on the draining side, or
// ctx is canceled first.
func (q *MainQueue) Submit(ctx context.Context, fn func() (any, error)) (any, error) {
	j := job{fn: fn, done: make(chan result, 1)}
	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-j.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drains one queued job, executing fn and delivering its result back
// to the waiting Submit call. The host's per-frame update loop calls this.
func (q *MainQueue) Run() {
	j := <-q.jobs
	v, err := j.fn()
	j.done <- result{value: v, err: err}
}

// TryRun drains at most one queued job without blocking, reporting whether
// one was run. Used by an update loop that must not stall when idle.
func (q *MainQueue) TryRun() bool {
	select {
	case j := <-q.jobs:
		v, err := j.fn()
		j.done <- result{value: v, err: err}
		return true
	default:
		return false
	}
}
