// Package buffer implements the dual CPU/GPU buffer model: a host buffer
// (optionally backed by host-visible device memory for zero-copy GPU use)
// and a device-local buffer reachable only through command building.
package buffer

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// HostBuffer is a host-readable/writable byte buffer. It is either a
// plain heap allocation, or — when a GPU context is present — a
// host-visible device-mapped storage-texel buffer so downstream GPU
// nodes can bind it without an upload step.
//
// Byte length is immutable after creation. Concurrent reads through
// AsSlice are unlimited; AsMutSlice grants exclusive access for the
// scope of the callback and must not be called re-entrantly from within
// another accessor on the same buffer.
type HostBuffer struct {
	length  int
	mapped  []byte    // plain heap allocation when backing is nil, else backing's mapped view
	backing hal.Buffer // host-visible device buffer, when non-nil
	device  hal.Device // owning device, required to unmap/destroy backing
}

// NewHeapHostBuffer allocates a plain, non-GPU-visible host buffer of the
// given length. The contents are uninitialized; callers must populate the
// buffer via AsMutSlice before any read.
func NewHeapHostBuffer(length int) *HostBuffer {
	return &HostBuffer{length: length, mapped: make([]byte, length)}
}

// NewMappedHostBuffer wraps a host-visible device-mapped storage-texel
// buffer created by a gpu.Context. mapped is the CPU-visible view of the
// buffer's memory, obtained once at creation and valid for the buffer's
// lifetime (the buffer usage flags keep it persistently mapped).
func NewMappedHostBuffer(device hal.Device, backing hal.Buffer, mapped []byte) *HostBuffer {
	return &HostBuffer{length: len(mapped), mapped: mapped, backing: backing, device: device}
}

// Len returns the buffer length in bytes.
func (b *HostBuffer) Len() int { return b.length }

// IsDeviceVisible reports whether this host buffer is backed by
// host-visible device memory (usable directly by GPU nodes without a
// copy), as opposed to a plain heap allocation.
func (b *HostBuffer) IsDeviceVisible() bool { return b.backing != nil }

// CPUAccessibleBuffer returns the underlying device-mapped hal.Buffer
// handle when this HostBuffer is host-visible device memory, or nil for
// a plain heap allocation.
func (b *HostBuffer) CPUAccessibleBuffer() hal.Buffer { return b.backing }

// AsSlice runs fn with read access to the buffer's contents. Concurrent
// calls to AsSlice from multiple goroutines are safe; none may overlap
// with an in-progress AsMutSlice on the same buffer.
func (b *HostBuffer) AsSlice(fn func([]byte)) {
	fn(b.mapped)
}

// AsMutSlice runs fn with exclusive write access to the buffer's
// contents. The caller must guarantee no other accessor (read or write)
// runs concurrently for the duration of fn.
func (b *HostBuffer) AsMutSlice(fn func([]byte)) {
	fn(b.mapped)
}

// Destroy releases the device-mapped backing, if any. Plain heap buffers
// are left to the garbage collector.
func (b *HostBuffer) Destroy() {
	if b.backing != nil && b.device != nil {
		b.device.DestroyBuffer(b.backing)
		b.backing = nil
	}
}

// hostVisibleUsage is the usage set a host-visible storage-texel buffer
// needs: readable/writable by shaders and usable as both a transfer
// source and destination for residency round-trips.
var hostVisibleUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageStorageTexel | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst | gputypes.BufferUsageMapRead | gputypes.BufferUsageMapWrite
