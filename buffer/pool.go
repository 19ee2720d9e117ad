package buffer

import "sync"

// Pool reuses heap-backed HostBuffer allocations of a recently-seen size
// to avoid an allocation per frame on hot paths (the DNG source and the
// CPU bit-depth nodes pull a buffer of the same size every frame).
//
// Pool only recycles plain heap buffers; device-visible host buffers are
// owned by the GPU context and are never pooled here.
type Pool struct {
	bySize sync.Map // int(length) -> *sync.Pool
}

// NewPool creates an empty buffer pool.
func NewPool() *Pool { return &Pool{} }

// Get returns a HostBuffer of exactly length bytes, reusing a previously
// Put buffer of the same size if one is available. The contents are not
// zeroed; callers must treat it as uninitialized.
func (p *Pool) Get(length int) *HostBuffer {
	v, _ := p.bySize.LoadOrStore(length, &sync.Pool{
		New: func() any { return NewHeapHostBuffer(length) },
	})
	sp := v.(*sync.Pool)
	return sp.Get().(*HostBuffer)
}

// Put returns buf to the pool for reuse by a future Get of the same
// length. Put must not be called on a buffer with other live accessors.
func (p *Pool) Put(buf *HostBuffer) {
	if buf.IsDeviceVisible() {
		return
	}
	v, _ := p.bySize.LoadOrStore(buf.length, &sync.Pool{
		New: func() any { return NewHeapHostBuffer(buf.length) },
	})
	v.(*sync.Pool).Put(buf)
}
