// Package bitdepth implements the GPU counterpart to nodes/cpu/bitdepth:
// PackNode widens UInt(8) samples back out to UInt(16), one GPU
// invocation per sample, each sample becoming two output bytes (the
// sample in the high byte, zero in the low byte). Two samples share each
// u32 output word, so only the invocation of the even sample stores, and
// it writes both halves of the word: no two invocations write the same
// word — unlike the CPU Pack helper, which
// handles every bit depth in 1..16 by accumulating across byte
// boundaries, this node only covers the widening case the round-trip
// law in the testable-properties section exercises.
package bitdepth

import (
	"context"

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

const kernelWGSL = `
struct Params {
    width: u32,
    height: u32,
}

@group(0) @binding(0) var<storage, read> input_buf: array<u32>;
@group(0) @binding(1) var<storage, read_write> output_buf: array<u32>;
@group(0) @binding(2) var<uniform> params: Params;

fn byte_at(word: u32, byte_index: u32) -> u32 {
    return (word >> (byte_index * 8u)) & 0xFFu;
}

@compute @workgroup_size(16, 32, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let total_samples = params.width * params.height;
    let sample_idx = gid.y * params.width + gid.x;
    if (gid.x >= params.width || gid.y >= params.height || sample_idx >= total_samples) {
        return;
    }

    let in_word = sample_idx / 4u;
    let in_sub = sample_idx % 4u;
    let sample = byte_at(input_buf[in_word], in_sub);

    // Two output bytes per sample: high byte = sample, low byte = 0.
    let out_byte_idx = sample_idx * 2u;
    let out_word = out_byte_idx / 4u;
    let out_sub = out_byte_idx % 4u;
    let packed = sample << 8u; // little-endian u16: low=0x00, high=sample

    if (out_sub != 0u) {
        return;
    }
    var next: u32 = 0u;
    if (sample_idx + 1u < total_samples) {
        next = byte_at(input_buf[(sample_idx + 1u) / 4u], (sample_idx + 1u) % 4u) << 8u;
    }
    output_buf[out_word] = packed | (next << 16u);
}
`

// PackNode widens its upstream's UInt(8) frame to UInt(16).
type PackNode struct {
	input    node.InputProcessingNode
	context  *processingcontext.ProcessingContext
	pipeline *gpu.Pipeline
}

// Describe is the declarative parameter schema PackNode's constructor
// validates against: a single mandatory upstream input.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "input", Type: params.TypeDescriptor{Kind: params.NodeInput(), Requiredness: params.Mandatory}},
	}
}

// New builds a PackNode, compiling the widening kernel against pc's GPU
// context.
func New(pc *processingcontext.ProcessingContext, p *params.Parameters) (*PackNode, error) {
	input, err := p.NodeInputOf("input")
	if err != nil {
		return nil, err
	}
	gpuCtx, err := pc.RequireGPU()
	if err != nil {
		return nil, err
	}

	layoutEntries := []gputypes.BindGroupLayoutEntry{
		gpu.StorageBinding(gpu.BindingInput, true),
		gpu.StorageBinding(gpu.BindingOutput, false),
		gpu.UniformBinding(gpu.BindingParams),
	}
	pipeline, err := gpuCtx.BuildPipeline("gpu-bitdepth-pack", kernelWGSL, "main", layoutEntries)
	if err != nil {
		return nil, err
	}

	return &PackNode{input: input, context: pc, pipeline: pipeline}, nil
}

func (n *PackNode) Caps() node.Caps { return n.input.Caps() }

func (n *PackNode) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
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

	bits, ok := deviceFrame.Interpretation.SampleInterpretation.IsUInt()
	if !ok || bits != 8 {
		return payload.Payload{}, recorder.New(recorder.KindInternal, "gpu bitdepth pack: expected a UInt(8) input frame, got %s", deviceFrame.Interpretation.SampleInterpretation)
	}

	gpuCtx, err := n.context.RequireGPU()
	if err != nil {
		return payload.Payload{}, err
	}

	outInterpretation := deviceFrame.Interpretation
	outInterpretation.SampleInterpretation = frame.UInt(16)
	outLength := int(outInterpretation.RequiredBytes())

	outBuf, err := buffer.NewDeviceBuffer(gpuCtx.Device, outLength, "gpu-bitdepth-pack-output")
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "allocating pack output buffer")
	}

	width := deviceFrame.Interpretation.Width
	height := deviceFrame.Interpretation.Height
	paramsBuf, err := buffer.NewDeviceBuffer(gpuCtx.Device, 8, "gpu-bitdepth-pack-params")
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "allocating pack params buffer")
	}
	gpuCtx.Queue.WriteBuffer(paramsBuf.Handle(), 0, gpu.PackParams(uint32(width), uint32(height)))

	group, err := gpuCtx.BindBuffers("gpu-bitdepth-pack-bg", n.pipeline.Layout, []gpu.BufferBindingSpec{
		{Binding: gpu.BindingInput, Buffer: deviceFrame.Storage.Handle(), Size: uint64(deviceFrame.Storage.Len())},
		{Binding: gpu.BindingOutput, Buffer: outBuf.Handle(), Size: uint64(outLength)},
		{Binding: gpu.BindingParams, Buffer: paramsBuf.Handle(), Size: 8},
	})
	if err != nil {
		return payload.Payload{}, err
	}

	fence, err := gpuCtx.Device.CreateFence()
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "creating pack fence")
	}

	x, y, z := gpu.DispatchSize(uint32(width), uint32(height))
	dispatchFuture, err := gpuCtx.DispatchOnce("gpu-bitdepth-pack", n.pipeline.Compute, group, x, y, z, fence, 1)
	if err != nil {
		return payload.Payload{}, err
	}
	if err := dispatchFuture.Await(ctx); err != nil {
		return payload.Payload{}, err
	}

	outFrame, ok := frame.New(outBuf, outInterpretation)
	if !ok {
		return payload.Payload{}, recorder.New(recorder.KindInternal, "gpu bitdepth pack: output buffer length does not match interpretation")
	}
	return payload.Of(&outFrame), nil
}
