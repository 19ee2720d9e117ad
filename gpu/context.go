// Package gpu wraps the subset of the wgpu HAL a compute node needs:
// device/queue access obtained from a shared gpucontext.DeviceProvider,
// WGSL shader compilation via naga, descriptor-set and dispatch
// bookkeeping, and a Future that offloads fence waiting off the caller's
// goroutine.
package gpu

import (
	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Provider is the integration point a host application implements to
// share its GPU device with the pipeline, mirroring how a gg renderer
// receives rather than creates its device.
type Provider = gpucontext.DeviceProvider

// NullProvider is a Provider that reports no GPU device, driving every
// processing node down its CPU fallback path.
type NullProvider struct{}

func (NullProvider) Device() gpucontext.Device           { return nil }
func (NullProvider) Queue() gpucontext.Queue             { return nil }
func (NullProvider) Adapter() gpucontext.Adapter         { return nil }
func (NullProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }

var _ Provider = NullProvider{}

// BufferReader is an optional capability a hal.Queue backend may
// implement to read bytes back from device memory into a caller-owned
// slice. Every backend this HAL ships (vulkan, dx12, metal, gles,
// software, noop) implements exactly this method on its concrete Queue
// type, but hal.Queue's interface declaration only has Submit,
// WriteBuffer, WriteTexture, Present, and GetTimestampPeriod — so this
// is detected via a type assertion on the concrete queue instead of
// being called through hal.Queue directly.
type BufferReader interface {
	ReadBuffer(buf hal.Buffer, offset uint64, dst []byte) error
}

// Context is the GPU-side half of a processing context: the device/queue
// pair compute nodes dispatch on, plus an optional buffer read-back path.
type Context struct {
	Device hal.Device
	Queue  hal.Queue
	Reader BufferReader // nil when the backend cannot read buffers back to host
}

// New builds a Context from a Provider, asserting its Device/Queue down
// to the concrete hal types this implementation dispatches compute work
// through. Returns nil, nil when provider reports no device — callers
// use that to mean "no GPU available" rather than treating it as an
// error, so every node can fall back to its CPU path.
func New(provider Provider) (*Context, error) {
	if provider == nil {
		return nil, nil
	}
	rawDevice := provider.Device()
	if rawDevice == nil {
		return nil, nil
	}
	device, ok := rawDevice.(hal.Device)
	if !ok {
		return nil, recorder.New(recorder.KindGpuUnavailable, "device provider returned a device that does not implement the wgpu HAL")
	}
	rawQueue := provider.Queue()
	queue, ok := rawQueue.(hal.Queue)
	if !ok {
		return nil, recorder.New(recorder.KindGpuUnavailable, "device provider returned a queue that does not implement the wgpu HAL")
	}
	reader, _ := rawQueue.(BufferReader)
	return &Context{Device: device, Queue: queue, Reader: reader}, nil
}
