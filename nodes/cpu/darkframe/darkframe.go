// Package darkframe implements the CPU fallback for GPU dark-frame
// subtraction: an output sample is the input sample minus the
// corresponding dark-frame sample, saturating at zero. Construct this
// node when nodes/gpu/calibrate.New returns node.ErrFallbackToCPU for a
// ProcessingContext with no GPU.
package darkframe

import (
	"context"
	"os"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/processingcontext"
)

// Node subtracts a fixed dark-frame buffer (loaded once at construction
// from a file path parameter) from every pulled frame's samples, on the
// host. Its parameter schema is nodes/gpu/calibrate's without width and
// height; those two, when supplied, are not read.
type Node struct {
	input     node.InputProcessingNode
	context   *processingcontext.ProcessingContext
	darkframe []byte
}

// Describe is the declarative parameter schema darkframe.New validates
// against.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "input", Type: params.TypeDescriptor{Kind: params.NodeInput(), Requiredness: params.Mandatory}},
		{Name: "darkframe", Type: params.TypeDescriptor{Kind: params.String(), Requiredness: params.Mandatory}},
	}
}

// New loads the dark-frame file named by the "darkframe" parameter.
// Unlike the GPU node, width and height are read from each pulled
// frame's own interpretation rather than taken as parameters.
func New(pc *processingcontext.ProcessingContext, p *params.Parameters) (*Node, error) {
	input, err := p.NodeInputOf("input")
	if err != nil {
		return nil, err
	}
	darkframePath, err := params.Take[string](p, "darkframe", "", true)
	if err != nil {
		return nil, err
	}

	darkframeBytes, err := os.ReadFile(darkframePath)
	if err != nil {
		return nil, recorder.Wrap(recorder.KindIO, err, "reading dark-frame file %q", darkframePath)
	}

	return &Node{input: input, context: pc, darkframe: darkframeBytes}, nil
}

func (n *Node) Caps() node.Caps { return n.input.Caps() }

func (n *Node) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	upstream, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	in, err := n.context.EnsureHostFrame(upstream)
	if err != nil {
		return payload.Payload{}, err
	}

	var outBytes []byte
	in.Storage.AsSlice(func(src []byte) {
		outBytes = subtractSaturating(src, n.darkframe)
	})

	out := buffer.NewHeapHostBuffer(len(outBytes))
	out.AsMutSlice(func(dst []byte) { copy(dst, outBytes) })

	outFrame, ok := frame.New(out, in.Interpretation)
	if !ok {
		return payload.Payload{}, recorder.New(recorder.KindInternal, "darkframe: output buffer length does not match interpretation")
	}
	return payload.Of(&outFrame), nil
}

// subtractSaturating subtracts dark from in byte-by-byte, clamping each
// result at zero instead of wrapping — the host-side equivalent of the
// GPU kernel's saturating subtraction. dark is reused cyclically if
// shorter than in (dark[i%len(dark)] is applied to byte i); the GPU
// node indexes its dark frame directly and does not wrap.
func subtractSaturating(in, dark []byte) []byte {
	out := make([]byte, len(in))
	for i, v := range in {
		d := dark[i%len(dark)]
		if v > d {
			out[i] = v - d
		}
	}
	return out
}
