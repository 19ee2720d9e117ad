// Package histogram implements a GPU node with no image output: it
// reduces its upstream frame's samples into a 256-bucket count and
// exposes the counts as a Result payload rather than another frame.
package histogram

import (
	"context"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/gpu"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/processingcontext"
	"github.com/gogpu/gputypes"
)

// Bins is the number of histogram buckets: one per possible byte value
// in a UInt(8) sample buffer.
const Bins = 256

const kernelWGSL = `
struct Params {
    width: u32,
    height: u32,
}

@group(0) @binding(0) var<storage, read> input_buf: array<u32>;
@group(0) @binding(1) var<storage, read_write> histogram: array<atomic<u32>>;
@group(0) @binding(2) var<uniform> params: Params;

fn byte_at(word: u32, byte_index: u32) -> u32 {
    return (word >> (byte_index * 8u)) & 0xFFu;
}

@compute @workgroup_size(16, 32, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let total_bytes = params.width * params.height;
    let byte_idx = gid.y * params.width + gid.x;
    if (gid.x >= params.width || gid.y >= params.height || byte_idx >= total_bytes) {
        return;
    }

    let word_idx = byte_idx / 4u;
    let sub_idx = byte_idx % 4u;
    let sample = byte_at(input_buf[word_idx], sub_idx);
    atomicAdd(&histogram[sample], 1u);
}
`

// Result is the payload a Node emits in place of a frame: per-bucket
// sample counts for the pulled frame.
type Result struct {
	Counts [Bins]uint32
}

// Node computes a 256-bucket histogram of its upstream's samples on the
// GPU, reading the result back to the host before returning.
type Node struct {
	input    node.InputProcessingNode
	context  *processingcontext.ProcessingContext
	pipeline *gpu.Pipeline
}

// Describe is the declarative parameter schema histogram.New validates
// against: a single mandatory upstream input.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "input", Type: params.TypeDescriptor{Kind: params.NodeInput(), Requiredness: params.Mandatory}},
	}
}

// New builds a Node, compiling the reduction kernel against pc's GPU
// context.
func New(pc *processingcontext.ProcessingContext, p *params.Parameters) (*Node, error) {
	input, err := p.NodeInputOf("input")
	if err != nil {
		return nil, err
	}
	gpuCtx, err := pc.RequireGPU()
	if err != nil {
		return nil, err
	}
	if gpuCtx.Reader == nil {
		return nil, recorder.New(recorder.KindGpuUnavailable, "histogram requires a GPU queue that can read buffers back to host")
	}

	layoutEntries := []gputypes.BindGroupLayoutEntry{
		gpu.StorageBinding(gpu.BindingInput, true),
		gpu.StorageBinding(gpu.BindingOutput, false),
		gpu.UniformBinding(gpu.BindingParams),
	}
	pipeline, err := gpuCtx.BuildPipeline("histogram", kernelWGSL, "main", layoutEntries)
	if err != nil {
		return nil, err
	}

	return &Node{input: input, context: pc, pipeline: pipeline}, nil
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

	histogramBuf, err := buffer.NewDeviceBuffer(gpuCtx.Device, Bins*4, "histogram-counts")
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "allocating histogram buffer")
	}
	gpuCtx.Queue.WriteBuffer(histogramBuf.Handle(), 0, make([]byte, Bins*4))

	width := deviceFrame.Interpretation.Width
	height := deviceFrame.Interpretation.Height

	paramsBuf, err := buffer.NewDeviceBuffer(gpuCtx.Device, 8, "histogram-params")
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "allocating histogram params buffer")
	}
	gpuCtx.Queue.WriteBuffer(paramsBuf.Handle(), 0, gpu.PackParams(uint32(width), uint32(height)))

	group, err := gpuCtx.BindBuffers("histogram-bg", n.pipeline.Layout, []gpu.BufferBindingSpec{
		{Binding: gpu.BindingInput, Buffer: deviceFrame.Storage.Handle(), Size: uint64(deviceFrame.Storage.Len())},
		{Binding: gpu.BindingOutput, Buffer: histogramBuf.Handle(), Size: Bins * 4},
		{Binding: gpu.BindingParams, Buffer: paramsBuf.Handle(), Size: 8},
	})
	if err != nil {
		return payload.Payload{}, err
	}

	fence, err := gpuCtx.Device.CreateFence()
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "creating histogram fence")
	}

	x, y, z := gpu.DispatchSize(uint32(width), uint32(height))
	dispatchFuture, err := gpuCtx.DispatchOnce("histogram", n.pipeline.Compute, group, x, y, z, fence, 1)
	if err != nil {
		return payload.Payload{}, err
	}
	if err := dispatchFuture.Await(ctx); err != nil {
		return payload.Payload{}, err
	}

	raw := make([]byte, Bins*4)
	if err := gpuCtx.Reader.ReadBuffer(histogramBuf.Handle(), 0, raw); err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindGpuFailure, err, "reading histogram buffer back to host")
	}

	return payload.Of(decodeCounts(raw)), nil
}

// decodeCounts little-endian-decodes the raw readback bytes into a
// Result, matching PackParams' encoding convention.
func decodeCounts(raw []byte) *Result {
	var result Result
	for i := 0; i < Bins; i++ {
		result.Counts[i] = uint32(raw[i*4]) | uint32(raw[i*4+1])<<8 | uint32(raw[i*4+2])<<16 | uint32(raw[i*4+3])<<24
	}
	return &result
}
