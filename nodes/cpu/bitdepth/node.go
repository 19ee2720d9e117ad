package bitdepth

import (
	"context"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/processingcontext"
)

// UnpackNode converts every sample of its upstream's host frame to one
// byte per sample, rewriting the frame's SampleInterpretation to
// UInt(8). For 8-bit input it forwards the upstream payload unchanged.
type UnpackNode struct {
	input   node.InputProcessingNode
	context *processingcontext.ProcessingContext
}

// Describe is the declarative parameter schema node construction
// validates against: a single mandatory upstream input.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "input", Type: params.TypeDescriptor{Kind: params.NodeInput(), Requiredness: params.Mandatory}},
	}
}

// New builds an UnpackNode from validated parameters.
func New(pc *processingcontext.ProcessingContext, p *params.Parameters) (*UnpackNode, error) {
	input, err := p.NodeInputOf("input")
	if err != nil {
		return nil, err
	}
	return &UnpackNode{input: input, context: pc}, nil
}

func (n *UnpackNode) Caps() node.Caps { return n.input.Caps() }

func (n *UnpackNode) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	upstream, err := n.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	in, err := n.context.EnsureHostFrame(upstream)
	if err != nil {
		return payload.Payload{}, err
	}

	bits, ok := in.Interpretation.SampleInterpretation.IsUInt()
	if !ok {
		return payload.Payload{}, recorder.New(recorder.KindInternal, "bitdepth unpack: non-integer sample interpretation %s", in.Interpretation.SampleInterpretation)
	}
	if bits == 8 {
		return upstream, nil
	}

	outInterpretation := in.Interpretation
	outInterpretation.SampleInterpretation = frame.UInt(8)

	var outBytes []byte
	in.Storage.AsSlice(func(src []byte) {
		outBytes = Unpack(src, bits)
	})

	out := buffer.NewHeapHostBuffer(len(outBytes))
	out.AsMutSlice(func(dst []byte) { copy(dst, outBytes) })

	outFrame, ok := frame.New(out, outInterpretation)
	if !ok {
		return payload.Payload{}, recorder.New(recorder.KindInternal, "bitdepth unpack: output buffer length does not match the converted interpretation")
	}
	return payload.Of(&outFrame), nil
}
