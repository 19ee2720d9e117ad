// Package reactor implements the prioritized task reactor: a fixed-size
// worker pool that runs submitted tasks ordered by a 64-bit Priority,
// with cooperative suspend/resume so a task waiting on a nested pull
// gives its slot back to the pool instead of blocking a worker.
package reactor

import (
	"container/heap"
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Polyrhythm/axiom-recorder"
)

func numCPU() int { return runtime.NumCPU() }

// Reactor is a cooperative task executor backed by N admission slots.
// "Worker" here is an admission slot, not an OS thread: tasks run as
// goroutines (Go's runtime already multiplexes those onto OS threads),
// and Reactor bounds how many may run concurrently while ordering who
// gets the next free slot by Priority.
type Reactor struct {
	workers int

	mu        sync.Mutex
	waiters   priorityHeap // tasks waiting for an admission slot
	seq       uint64       // tiebreaker for FIFO-within-priority
	available int          // free admission slots, guarded by mu

	closed atomic.Bool
}

// New creates a Reactor with the given number of admission slots. If
// workers is 0 or negative, runtime.NumCPU() is used.
func New(workers int) *Reactor {
	if workers <= 0 {
		workers = numCPU()
	}
	return &Reactor{workers: workers, available: workers}
}

// NumThreads reports the configured number of admission slots.
func (r *Reactor) NumThreads() int { return r.workers }

// waiter is a task queued for admission.
type waiter struct {
	priority Priority
	seq      uint64
	ready    chan struct{}
	index    int
}

type priorityHeap []*waiter

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority.Less(h[j].priority)
	}
	return h[i].seq < h[j].seq // FIFO tiebreak
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *priorityHeap) Push(x any) {
	w := x.(*waiter)
	w.index = len(*h)
	*h = append(*h, w)
}
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return w
}

// acquire blocks until an admission slot is available for priority, or
// ctx is done. It enqueues a waiter ordered by priority so that, of
// several tasks simultaneously contending for a slot, the numerically
// lowest priority is admitted first; ties are broken FIFO by submission
// order.
func (r *Reactor) acquire(ctx context.Context, priority Priority) error {
	r.mu.Lock()
	if r.available > 0 && r.waiters.Len() == 0 {
		r.available--
		r.mu.Unlock()
		return nil
	}
	r.seq++
	w := &waiter{priority: priority, seq: r.seq, ready: make(chan struct{})}
	heap.Push(&r.waiters, w)
	r.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		if w.index >= 0 && w.index < len(r.waiters) && r.waiters[w.index] == w {
			heap.Remove(&r.waiters, w.index)
			r.mu.Unlock()
			return ctx.Err()
		}
		r.mu.Unlock()
		// w was already popped by release concurrently with ctx firing;
		// release always closes w.ready right after popping it, so this
		// cannot block long, and it must be honored rather than dropped
		// (otherwise the slot release just handed out would be lost).
		<-w.ready
		return nil
	}
}

// release returns an admission slot to the pool, handing it directly to
// the most urgent queued waiter if one exists rather than letting the
// slot be grabbed out of priority order.
func (r *Reactor) release() {
	r.mu.Lock()
	if r.waiters.Len() > 0 {
		w := heap.Pop(&r.waiters).(*waiter)
		r.mu.Unlock()
		close(w.ready)
		return
	}
	r.available++
	r.mu.Unlock()
}

// Future is the handle returned by SpawnWithPriority. Await blocks until
// the task completes, fails, or ctx is cancelled.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
	cancel context.CancelFunc
}

// Await blocks until the task completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel requests cancellation of the task. Any GPU command already
// submitted on its behalf is allowed to finish; the Future's result is
// discarded (resolves with context.Canceled) once the task notices.
func (f *Future[T]) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
}

// SpawnWithPriority schedules fn to run once an admission slot is free,
// ordered by priority among other pending spawns, and returns a Future
// resolving with fn's result. Dropping the returned Future without
// calling Cancel leaves the task running to completion; Cancel is what
// actually signals fn's context.
func SpawnWithPriority[T any](ctx context.Context, r *Reactor, priority Priority, fn func(context.Context) (T, error)) *Future[T] {
	taskCtx, cancel := context.WithCancel(ctx)
	f := &Future[T]{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(f.done)
		defer runRecovered(r, priority, f)

		if err := r.acquire(taskCtx, priority); err != nil {
			f.err = err
			return
		}
		defer r.release()

		f.result, f.err = fn(taskCtx)
	}()

	return f
}

// runRecovered restarts the logical worker slot after a panic in fn so a
// single misbehaving task does not starve the reactor of an admission
// slot nor poison sibling tasks. The panic is converted into an
// *recorder.Error of KindInternal on the Future.
func runRecovered[T any](r *Reactor, priority Priority, f *Future[T]) {
	if rec := recover(); rec != nil {
		recorder.Logger().Warn("reactor: task panicked, restarting worker", slog.Any("panic", rec), slog.Uint64("priority", uint64(priority)))
		var zero T
		f.result = zero
		f.err = recorder.New(recorder.KindInternal, "task panicked: %v", rec)
	}
}

// Await suspends the calling task, which must currently hold an
// admission slot from an enclosing SpawnWithPriority, while it waits on
// fut. The slot is released for the duration of the wait, letting other
// queued work use it, and is re-acquired at the same priority once fut
// resolves — so a task resuming after a nested pull re-enters admission
// ordering at its original priority rather than keeping a slot idle for
// the whole wait.
func Await[T any](ctx context.Context, r *Reactor, priority Priority, fut *Future[T]) (T, error) {
	r.release()
	result, futErr := fut.Await(ctx)

	// Reacquire unconditionally, even when futErr is ctx.Err(), so the
	// acquire/release pairing around this call always balances with the
	// enclosing SpawnWithPriority's single acquire/defer-release — the
	// slot this goroutine gave up above must always come back to it
	// before it resumes running inside that bracket. Cancellation is
	// observed by the caller inspecting futErr, not by skipping this.
	_ = r.acquire(context.Background(), priority)

	return result, futErr
}
