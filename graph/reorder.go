package graph

import "sync"

// ReorderBuffer accumulates FrameResults that may arrive out of order
// (the puller's completion order is not guaranteed to match submission
// order, §5) and releases them to a consumer strictly in ascending
// frame-number order starting from a configured frame number.
//
// Use it by calling Put for every FrameResult the puller's OnFrame
// produces. When the submitted result is the next expected frame, Put
// invokes onInOrder for it and for every subsequent buffered result that
// has become the new frontier; otherwise Put only buffers it.
type ReorderBuffer struct {
	mu        sync.Mutex
	next      uint64
	pending   map[uint64]FrameResult
	onInOrder func(FrameResult)
}

// NewReorderBuffer creates a ReorderBuffer expecting frames starting at
// start, invoking onInOrder for each frame once it and every frame
// before it have been submitted.
func NewReorderBuffer(start uint64, onInOrder func(FrameResult)) *ReorderBuffer {
	return &ReorderBuffer{next: start, pending: make(map[uint64]FrameResult), onInOrder: onInOrder}
}

// Put submits a completed frame result, releasing it (and any
// contiguous run of previously buffered results that follow it) to
// onInOrder once the buffer's frontier reaches it.
func (b *ReorderBuffer) Put(r FrameResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[r.FrameNumber] = r
	for {
		next, ok := b.pending[b.next]
		if !ok {
			return
		}
		delete(b.pending, b.next)
		b.next++
		b.onInOrder(next)
	}
}

// Pending reports how many frames are buffered awaiting their turn.
func (b *ReorderBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
