package gpu

import (
	"context"
	"time"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/gogpu/wgpu/hal"
)

// fenceWaitPoll is how often Device.Wait is re-polled for completion.
// hal.Device.Wait takes a timeout rather than a cancellable context, so
// a Future loops short waits instead of blocking indefinitely on one
// call. The polling goroutine watches no context; Await stops waiting on
// cancellation by itself while the goroutine polls until the fence
// resolves or errors.
const fenceWaitPoll = 2 * time.Millisecond

// Future resolves once a dispatched command buffer's fence reaches its
// target value. The wait runs on its own goroutine, and nothing here
// holds a reactor admission slot.
type Future struct {
	done chan struct{}
	err  error
}

// newFence starts a goroutine polling device for fence to reach value
// and returns immediately with a handle the caller can Await.
func newFence(device hal.Device, fence hal.Fence, value uint64) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		for {
			reached, err := device.Wait(fence, value, fenceWaitPoll)
			if err != nil {
				f.err = recorder.Wrap(recorder.KindGpuFailure, err, "waiting for fence")
				return
			}
			if reached {
				return
			}
		}
	}()
	return f
}

// Resolved returns a Future that is already complete, for call sites
// where a residency coercion turned out to be a no-op but the caller
// still expects something to chain dependent command buffers onto.
func Resolved() *Future {
	f := &Future{done: make(chan struct{})}
	close(f.done)
	return f
}

// Await blocks until the dispatch completes or ctx is cancelled first.
func (f *Future) Await(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return recorder.Wrap(recorder.KindCancelled, ctx.Err(), "gpu dispatch wait cancelled")
	}
}
