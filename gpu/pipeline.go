package gpu

import (
	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Pipeline bundles the resources a compute node dispatches against:
// the bind group layout (shared by every frame's bind group), the
// pipeline layout built from it, and the compiled compute pipeline.
// Nodes build one Pipeline at construction time and reuse it for every
// Pull.
type Pipeline struct {
	Layout   hal.BindGroupLayout
	Plumbing hal.PipelineLayout
	Compute  hal.ComputePipeline
}

// StorageBinding describes one binding in a compute shader's descriptor
// set 0: a read-write or read-only storage buffer visible to the
// compute stage, at the binding index the gpu package's Binding*
// constants name.
func StorageBinding(binding uint32, readOnly bool) gputypes.BindGroupLayoutEntry {
	bindingType := gputypes.BufferBindingTypeStorage
	if readOnly {
		bindingType = gputypes.BufferBindingTypeReadOnlyStorage
	}
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: bindingType},
	}
}

// UniformBinding describes a uniform-buffer binding — used for the
// BindingParams slot this package substitutes for true push constants.
func UniformBinding(binding uint32) gputypes.BindGroupLayoutEntry {
	return gputypes.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
}

// BuildPipeline compiles wgslSource and wires it into a ready-to-dispatch
// Pipeline bound to the given descriptor-set-0 layout entries.
func (c *Context) BuildPipeline(label, wgslSource, entryPoint string, entries []gputypes.BindGroupLayoutEntry) (*Pipeline, error) {
	module, err := c.CompileShader(label, wgslSource)
	if err != nil {
		return nil, err
	}

	bgLayout, err := c.Device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: label + "-bgl", Entries: entries})
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "creating bind group layout for %q", label)
	}

	plLayout, err := c.Device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "-pl",
		BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
	})
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "creating pipeline layout for %q", label)
	}

	pipeline, err := c.Device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: plLayout,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "creating compute pipeline %q", label)
	}

	return &Pipeline{Layout: bgLayout, Plumbing: plLayout, Compute: pipeline}, nil
}

// Destroy releases the pipeline's GPU-side resources. Nodes call this
// from their own teardown path, if any; the demo binary's pipelines
// live for the process lifetime and never call it.
func (p *Pipeline) Destroy(device hal.Device) {
	device.DestroyComputePipeline(p.Compute)
	device.DestroyPipelineLayout(p.Plumbing)
	device.DestroyBindGroupLayout(p.Layout)
}

// BufferBindingSpec is one entry of a bind group being built: which
// binding index it fills, and the buffer/range it points at.
type BufferBindingSpec struct {
	Binding uint32
	Buffer  hal.Buffer
	Offset  uint64
	Size    uint64
}

// NativeHandleProvider is the optional capability a hal.Buffer backend
// implements to expose the numeric handle gputypes.BufferBinding needs.
// hal.Buffer's interface itself only declares Destroy(); every backend
// in this HAL nonetheless carries a concrete native handle; this
// interface bridges the gap the same way BufferReader does for
// device→host copies, rather than widening hal.Buffer itself.
type NativeHandleProvider interface {
	NativeHandle() uint64
}

// BindBuffers creates a bind group against layout, one entry per spec.
func (c *Context) BindBuffers(label string, layout hal.BindGroupLayout, specs []BufferBindingSpec) (hal.BindGroup, error) {
	entries := make([]gputypes.BindGroupEntry, len(specs))
	for i, s := range specs {
		nh, ok := s.Buffer.(NativeHandleProvider)
		if !ok {
			return nil, recorder.New(recorder.KindGpuFailure, "bind group %q: buffer at binding %d does not expose a native handle", label, s.Binding)
		}
		entries[i] = gputypes.BindGroupEntry{
			Binding:  s.Binding,
			Resource: gputypes.BufferBinding{Buffer: nh.NativeHandle(), Offset: s.Offset, Size: s.Size},
		}
	}
	group, err := c.Device.CreateBindGroup(&hal.BindGroupDescriptor{Label: label, Layout: layout, Entries: entries})
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "creating bind group %q", label)
	}
	return group, nil
}
