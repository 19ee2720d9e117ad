package graph

import (
	"context"
	"sync"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/reactor"
	"golang.org/x/sync/semaphore"
)

// FrameResult is what the puller hands to OnFrame for each pulled frame:
// either a payload or the error the sink returned for that frame number.
type FrameResult struct {
	FrameNumber uint64
	Payload     payload.Payload
	Err         error
}

// Puller drives a sink node with sequential frame requests, admitting up
// to InFlight requests concurrently so a slow frame does not stall
// issuing the next one. Completion order of those concurrent pulls is
// not guaranteed to match request order — OnFrame sees frames as they
// finish, not as they were requested. Callers needing strict order
// should route FrameResult through a ReorderBuffer.
type Puller struct {
	Sink           node.Node
	OutputPriority uint8
	InFlight       int // bounded window of concurrently in-flight frame requests; <=0 means 1

	OnFrame func(FrameResult)
}

// Run issues sequential pull requests for frame numbers start, start+1,
// ... until either the sink's Caps report a frame_count and that many
// frames have been requested, or ctx is cancelled, or haltOnError is
// true and a frame errors. It returns the first error encountered (nil
// on a clean, unbounded-source cancellation; a KindCancelled error when
// ctx is cancelled before a bounded source's frames were all requested).
func (p *Puller) Run(ctx context.Context, start uint64, haltOnError bool) error {
	window := p.InFlight
	if window <= 0 {
		window = 1
	}
	sem := semaphore.NewWeighted(int64(window))

	caps := p.Sink.Caps()
	var limit *uint64
	if caps.FrameCount != nil {
		n := *caps.FrameCount
		limit = &n
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frameNumber := start
	for {
		if limit != nil && frameNumber >= *limit {
			break
		}
		if runCtx.Err() != nil {
			break
		}
		if err := sem.Acquire(runCtx, 1); err != nil {
			break
		}

		fn := frameNumber
		frameNumber++
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			req := node.Request{FrameNumber: fn, Priority: reactor.New(p.OutputPriority, fn)}
			pld, err := p.Sink.Pull(runCtx, req)

			if p.OnFrame != nil {
				p.OnFrame(FrameResult{FrameNumber: fn, Payload: pld, Err: err})
			}
			if err != nil {
				recordErr(err)
				if haltOnError {
					cancel()
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil && limit != nil && frameNumber < *limit {
		return recorder.Wrap(recorder.KindCancelled, err, "puller: cancelled")
	}
	return nil
}
