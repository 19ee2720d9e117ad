package buffer

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DeviceBuffer is a device-local GPU buffer. It has no direct host
// access: CPU code that needs its bytes must route through
// processingcontext.EnsureHostFrame, which issues a device→host copy.
type DeviceBuffer struct {
	length int
	handle hal.Buffer
	device hal.Device
}

// deviceLocalUsage is the usage set device-local buffers created by GPU
// nodes need: storage and storage-texel binding for compute dispatch,
// plus copy src/dst so a residency coercion can transfer bytes in or out
// of it.
var deviceLocalUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageStorageTexel | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst

// NewDeviceBuffer creates a device-local buffer of length bytes on
// device, sized and usage-flagged for both compute-shader binding and
// cross-residency transfer.
func NewDeviceBuffer(device hal.Device, length int, label string) (*DeviceBuffer, error) {
	h, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(length),
		Usage: deviceLocalUsage,
	})
	if err != nil {
		return nil, err
	}
	return &DeviceBuffer{length: length, handle: h, device: device}, nil
}

// Len returns the buffer length in bytes.
func (b *DeviceBuffer) Len() int { return b.length }

// Handle returns the raw hal.Buffer for command building (descriptor-set
// binding, copy commands). CPU code must never read through it directly.
func (b *DeviceBuffer) Handle() hal.Buffer { return b.handle }

// Destroy releases the device-local allocation.
func (b *DeviceBuffer) Destroy() {
	if b.handle != nil {
		b.device.DestroyBuffer(b.handle)
		b.handle = nil
	}
}
