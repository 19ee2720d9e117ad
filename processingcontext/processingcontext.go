// Package processingcontext implements the per-pipeline facade every
// node constructor and pull receives: optional GPU access, the
// prioritized reactor, and residency coercion between host and device
// frames.
package processingcontext

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strconv"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/gpu"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/reactor"
)

// ProcessingContext is passed explicitly to every node constructor.
// Exactly one exists per pipeline; nothing here is package-level global
// state.
type ProcessingContext struct {
	GPU     *gpu.Context // nil when no GPU device is available
	Reactor *reactor.Reactor
}

// New selects a thread count from RECORDER_NUM_THREADS (falling back to
// runtime.NumCPU()), builds the reactor, and attaches gpuCtx (which may
// be nil for CPU-only operation).
func New(gpuCtx *gpu.Context) *ProcessingContext {
	threads := numThreadsFromEnv()
	if gpuCtx != nil {
		recorder.Logger().Info("processing context: gpu device attached")
	} else {
		recorder.Logger().Info("processing context: cpu-only")
	}
	recorder.Logger().Info("processing context: reactor threads", slog.Int("threads", threads))
	return &ProcessingContext{GPU: gpuCtx, Reactor: reactor.New(threads)}
}

func numThreadsFromEnv() int {
	if v := os.Getenv("RECORDER_NUM_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// NumThreads reports the reactor's configured worker count.
func (pc *ProcessingContext) NumThreads() int { return pc.Reactor.NumThreads() }

// RequireGPU returns pc.GPU or a KindGpuUnavailable error when no GPU
// device is attached to this pipeline.
func (pc *ProcessingContext) RequireGPU() (*gpu.Context, error) {
	if pc.GPU == nil {
		return nil, recorder.New(recorder.KindGpuUnavailable, "gpu required but not present")
	}
	return pc.GPU, nil
}

// Spawn schedules fn on the reactor at priority and returns its Future.
func Spawn[T any](pc *ProcessingContext, ctx context.Context, priority reactor.Priority, fn func(context.Context) (T, error)) *reactor.Future[T] {
	return reactor.SpawnWithPriority(ctx, pc.Reactor, priority, fn)
}

// BlockOn runs fut to completion from a synchronous caller (a sink's
// entry point, or a demo binary's main). It is logically independent of
// the reactor: it simply waits on the Future's channel, so a root pull
// driven this way never competes for an admission slot itself.
func BlockOn[T any](ctx context.Context, fut *reactor.Future[T]) (T, error) {
	return fut.Await(ctx)
}

// EnsureHostFrame returns p unchanged when it already carries a host
// frame, or issues a device→host copy and returns the transferred frame
// when p carries a device frame. Any other payload type is a
// WrongPayloadType error.
func (pc *ProcessingContext) EnsureHostFrame(p payload.Payload) (*frame.Frame[*buffer.HostBuffer], error) {
	if f, err := payload.Downcast[*frame.Frame[*buffer.HostBuffer]](p); err == nil {
		return f, nil
	}
	deviceFrame, err := payload.Downcast[*frame.Frame[*buffer.DeviceBuffer]](p)
	if err != nil {
		return nil, recorder.Wrap(recorder.KindWrongPayloadType, err, "ensure_host_frame: payload is neither a host nor device frame")
	}
	gpuCtx, err := pc.RequireGPU()
	if err != nil {
		return nil, err
	}
	return toHostFrame(gpuCtx, deviceFrame)
}

// EnsureDeviceFrame returns p unchanged (with a no-op resolved future)
// when it already carries a device frame, or issues a host→device
// upload and returns the migrated frame plus a Future the caller must
// await before submitting any command buffer that reads the new
// buffer. Any other payload type is a WrongPayloadType error.
func (pc *ProcessingContext) EnsureDeviceFrame(p payload.Payload) (*frame.Frame[*buffer.DeviceBuffer], *gpu.Future, error) {
	if f, err := payload.Downcast[*frame.Frame[*buffer.DeviceBuffer]](p); err == nil {
		return f, resolvedFuture(), nil
	}
	hostFrame, err := payload.Downcast[*frame.Frame[*buffer.HostBuffer]](p)
	if err != nil {
		return nil, nil, recorder.Wrap(recorder.KindWrongPayloadType, err, "ensure_device_frame: payload is neither a host nor device frame")
	}
	gpuCtx, err := pc.RequireGPU()
	if err != nil {
		return nil, nil, err
	}
	return toDeviceFrame(gpuCtx, hostFrame)
}
