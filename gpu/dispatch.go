package gpu

import (
	"encoding/binary"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/gogpu/wgpu/hal"
)

// workgroupWidth and workgroupHeight are the compute kernels' fixed
// @workgroup_size(16, 32, 1). Every WGSL kernel this package compiles
// must declare the same size so DispatchSize stays correct.
const (
	workgroupWidth  = 16
	workgroupHeight = 32
)

// DispatchSize computes the workgroup counts needed to cover a width x
// height image, rounding up so partial edge workgroups are still
// dispatched (kernels bounds-check their own invocation coordinates).
func DispatchSize(width, height uint32) (x, y, z uint32) {
	x = (width + workgroupWidth - 1) / workgroupWidth
	y = (height + workgroupHeight - 1) / workgroupHeight
	return x, y, 1
}

// Binding indices compute nodes in this pipeline use by convention:
// input frame(s) first, then the output frame, then a small params
// buffer, then any node-specific auxiliary bindings from BindingAux.
const (
	BindingInput  uint32 = 0
	BindingOutput uint32 = 1
	BindingParams uint32 = 2
	BindingAux    uint32 = 3
)

// PackParams little-endian-encodes a sequence of uint32 fields into the
// byte layout a WGSL params uniform struct of matching field order
// expects. Nodes use this to build the small per-dispatch buffer bound
// at BindingParams in place of true push constants, which the
// cross-backend HAL surface this implementation targets does not expose
// a way to set from a ComputePassEncoder.
func PackParams(fields ...uint32) []byte {
	buf := make([]byte, 4*len(fields))
	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:], f)
	}
	return buf
}

// DispatchOnce runs a single compute dispatch: it encodes a compute
// pass binding pipeline and group, dispatches (x, y, z) workgroups,
// submits the resulting command buffer signaling fence at fenceValue,
// and returns a Future that resolves once the GPU finishes.
func (c *Context) DispatchOnce(label string, pipeline hal.ComputePipeline, group hal.BindGroup, x, y, z uint32, fence hal.Fence, fenceValue uint64) (*Future, error) {
	encoder, err := c.Device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "creating command encoder for %q", label)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "beginning encoding for %q", label)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.Dispatch(x, y, z)
	pass.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "ending encoding for %q", label)
	}

	if err := c.Queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, fenceValue); err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "submitting %q", label)
	}

	return newFence(c.Device, fence, fenceValue), nil
}
