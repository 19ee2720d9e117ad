package processingcontext

import (
	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/gpu"
)

// resolvedFuture returns a Future already satisfied, for the case where
// a residency coercion is a no-op (the payload was already in the
// requested residency) but the caller still expects a future to chain
// on before submitting dependent work.
func resolvedFuture() *gpu.Future {
	return gpu.Resolved()
}

// toHostFrame reads deviceFrame's storage back into a freshly allocated
// heap host buffer through gpu.Context.Reader and returns a
// host-resident frame with identical interpretation. It fails with
// KindGpuFailure when the context has no Reader.
func toHostFrame(gpuCtx *gpu.Context, deviceFrame *frame.Frame[*buffer.DeviceBuffer]) (*frame.Frame[*buffer.HostBuffer], error) {
	if gpuCtx.Reader == nil {
		return nil, recorder.New(recorder.KindGpuFailure, "device has no buffer read-back capability")
	}
	length := deviceFrame.Storage.Len()
	hostBuf := buffer.NewHeapHostBuffer(length)
	var readErr error
	hostBuf.AsMutSlice(func(dst []byte) {
		readErr = gpuCtx.Reader.ReadBuffer(deviceFrame.Storage.Handle(), 0, dst)
	})
	if readErr != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, readErr, "reading device buffer back to host")
	}
	hostFrame, ok := frame.New(hostBuf, deviceFrame.Interpretation)
	if !ok {
		return nil, recorder.New(recorder.KindInternal, "host buffer length does not match interpretation after device readback")
	}
	return &hostFrame, nil
}

// toDeviceFrame uploads hostFrame's bytes into a freshly allocated
// device-local buffer via Queue.WriteBuffer, which stages and completes
// the copy synchronously — so the returned Future is already resolved;
// command buffers built against the new buffer may submit immediately.
func toDeviceFrame(gpuCtx *gpu.Context, hostFrame *frame.Frame[*buffer.HostBuffer]) (*frame.Frame[*buffer.DeviceBuffer], *gpu.Future, error) {
	length := hostFrame.Storage.Len()
	deviceBuf, err := buffer.NewDeviceBuffer(gpuCtx.Device, length, "upload")
	if err != nil {
		return nil, nil, recorder.Wrap(recorder.KindGpuFailure, err, "allocating device buffer for upload")
	}
	hostFrame.Storage.AsSlice(func(src []byte) {
		gpuCtx.Queue.WriteBuffer(deviceBuf.Handle(), 0, src)
	})
	deviceFrame, ok := frame.New(deviceBuf, hostFrame.Interpretation)
	if !ok {
		return nil, nil, recorder.New(recorder.KindInternal, "device buffer length does not match interpretation after upload")
	}
	return &deviceFrame, resolvedFuture(), nil
}
