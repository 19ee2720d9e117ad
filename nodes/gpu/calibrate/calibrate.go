// Package calibrate implements GPU dark-frame subtraction: an output
// sample is the input sample minus the corresponding dark-frame sample,
// saturating at zero.
package calibrate

import (
	"context"
	"os"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/gpu"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/processingcontext"
	"github.com/gogpu/gputypes"
)

// kernelWGSL packs four byte samples per array<u32> element (the HAL
// this implementation targets has no 8-bit storage class, so buffers
// declare u32 elements and the kernel does its own byte extraction).
// idx runs over bytes; out-of-range invocations past width*height bytes
// are no-ops.
const kernelWGSL = `
struct Params {
    width: u32,
    height: u32,
}

@group(0) @binding(0) var<storage, read> input_buf: array<u32>;
@group(0) @binding(1) var<storage, read_write> output_buf: array<u32>;
@group(0) @binding(3) var<storage, read> darkframe_buf: array<u32>;
@group(0) @binding(2) var<uniform> params: Params;

fn byte_at(word: u32, byte_index: u32) -> u32 {
    return (word >> (byte_index * 8u)) & 0xFFu;
}

fn with_byte(word: u32, byte_index: u32, value: u32) -> u32 {
    let shift = byte_index * 8u;
    let mask = ~(0xFFu << shift);
    return (word & mask) | ((value & 0xFFu) << shift);
}

@compute @workgroup_size(16, 32, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let total_bytes = params.width * params.height;
    let byte_idx = gid.y * (params.width) + gid.x;
    if (gid.x >= params.width || gid.y >= params.height || byte_idx >= total_bytes) {
        return;
    }

    let word_idx = byte_idx / 4u;
    let sub_idx = byte_idx % 4u;

    let in_sample = byte_at(input_buf[word_idx], sub_idx);
    let dark_sample = byte_at(darkframe_buf[word_idx], sub_idx);
    var result: u32 = 0u;
    if (in_sample > dark_sample) {
        result = in_sample - dark_sample;
    }

    output_buf[word_idx] = with_byte(output_buf[word_idx], sub_idx, result);
}
`

// Node subtracts a fixed dark-frame buffer (loaded once at construction
// from a file path parameter) from every pulled frame's samples.
type Node struct {
	input     node.InputProcessingNode
	context   *processingcontext.ProcessingContext
	pipeline  *gpu.Pipeline
	darkframe *buffer.DeviceBuffer
	width     uint64
	height    uint64
}

// Describe is the declarative parameter schema calibrate.New validates
// against.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "input", Type: params.TypeDescriptor{Kind: params.NodeInput(), Requiredness: params.Mandatory}},
		{Name: "darkframe", Type: params.TypeDescriptor{Kind: params.String(), Requiredness: params.Mandatory}},
		{Name: "width", Type: params.TypeDescriptor{Kind: params.Int(0, 1<<32 - 1), Requiredness: params.Mandatory}},
		{Name: "height", Type: params.TypeDescriptor{Kind: params.Int(0, 1<<32 - 1), Requiredness: params.Mandatory}},
	}
}

// New loads the dark-frame file named by the "darkframe" parameter,
// uploads it to a device-local buffer, compiles the calibrate kernel,
// and builds its bind group layout/pipeline.
func New(pc *processingcontext.ProcessingContext, p *params.Parameters) (*Node, error) {
	input, err := p.NodeInputOf("input")
	if err != nil {
		return nil, err
	}
	darkframePath, err := params.Take[string](p, "darkframe", "", true)
	if err != nil {
		return nil, err
	}
	width, err := params.Take[int64](p, "width", 0, true)
	if err != nil {
		return nil, err
	}
	height, err := params.Take[int64](p, "height", 0, true)
	if err != nil {
		return nil, err
	}

	if pc.GPU == nil {
		return nil, node.ErrFallbackToCPU
	}
	gpuCtx, err := pc.RequireGPU()
	if err != nil {
		return nil, err
	}

	darkframeBytes, err := os.ReadFile(darkframePath)
	if err != nil {
		return nil, recorder.Wrap(recorder.KindIO, err, "reading dark-frame file %q", darkframePath)
	}

	darkframeBuf, err := buffer.NewDeviceBuffer(gpuCtx.Device, len(darkframeBytes), "calibrate-darkframe")
	if err != nil {
		return nil, recorder.Wrap(recorder.KindGpuFailure, err, "allocating dark-frame buffer")
	}
	gpuCtx.Queue.WriteBuffer(darkframeBuf.Handle(), 0, darkframeBytes)

	layoutEntries := []gputypes.BindGroupLayoutEntry{
		gpu.StorageBinding(gpu.BindingInput, true),
		gpu.StorageBinding(gpu.BindingOutput, false),
		gpu.UniformBinding(gpu.BindingParams),
		gpu.StorageBinding(gpu.BindingAux, true),
	}
	pipeline, err := gpuCtx.BuildPipeline("calibrate", kernelWGSL, "main", layoutEntries)
	if err != nil {
		return nil, err
	}

	return &Node{
		input:     input,
		context:   pc,
		pipeline:  pipeline,
		darkframe: darkframeBuf,
		width:     uint64(width),
		height:    uint64(height),
	}, nil
}

func (n *Node) Caps() node.Caps { return n.input.Caps() }

func (n *Node) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	upstream, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}

	deviceFrame, uploadFuture, err := n.context.EnsureDeviceFrame(upstream)
	if err != nil {
		return payload.Payload{}, err
	}
	if err := uploadFuture.Await(ctx); err != nil {
		return payload.Payload{}, err
	}

	gpuCtx, err := n.context.RequireGPU()
	if err != nil {
		return payload.Payload{}, err
	}

	length := deviceFrame.Storage.Len()
	outBuf, err := buffer.NewDeviceBuffer(gpuCtx.Device, length, "calibrate-output")
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "allocating calibrate output buffer")
	}

	paramsBuf, err := buffer.NewDeviceBuffer(gpuCtx.Device, 8, "calibrate-params")
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "allocating calibrate params buffer")
	}
	gpuCtx.Queue.WriteBuffer(paramsBuf.Handle(), 0, gpu.PackParams(uint32(n.width), uint32(n.height)))

	group, err := gpuCtx.BindBuffers("calibrate-bg", n.pipeline.Layout, []gpu.BufferBindingSpec{
		{Binding: gpu.BindingInput, Buffer: deviceFrame.Storage.Handle(), Size: uint64(length)},
		{Binding: gpu.BindingOutput, Buffer: outBuf.Handle(), Size: uint64(length)},
		{Binding: gpu.BindingAux, Buffer: n.darkframe.Handle(), Size: uint64(n.darkframe.Len())},
		{Binding: gpu.BindingParams, Buffer: paramsBuf.Handle(), Size: 8},
	})
	if err != nil {
		return payload.Payload{}, err
	}

	fence, err := gpuCtx.Device.CreateFence()
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "creating calibrate fence")
	}

	x, y, z := gpu.DispatchSize(uint32(n.width), uint32(n.height))
	dispatchFuture, err := gpuCtx.DispatchOnce("calibrate", n.pipeline.Compute, group, x, y, z, fence, 1)
	if err != nil {
		return payload.Payload{}, err
	}
	if err := dispatchFuture.Await(ctx); err != nil {
		return payload.Payload{}, err
	}

	outFrame, ok := frame.New(outBuf, deviceFrame.Interpretation)
	if !ok {
		return payload.Payload{}, recorder.New(recorder.KindInternal, "calibrate: output buffer length does not match interpretation")
	}
	return payload.Of(&outFrame), nil
}
