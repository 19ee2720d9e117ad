// Package filewriter implements a sequential, non-random-access sink
// that saves every pulled frame to its own numbered TIFF file on disk,
// using golang.org/x/image/tiff to encode (the hand-rolled reader in
// nodes/io/dngsource only parses CinemaDNG's custom tags; writing a
// standard baseline TIFF has a library already available).
package filewriter

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/processingcontext"
	"golang.org/x/image/tiff"
)

// Sink writes each pulled frame to directory/prefix-<frame number>.tiff
// and returns an empty payload, exactly like display.Sink, but with no
// backpressure policy to choose: a write either completes or the Pull
// fails, since there is no render thread racing the producer.
//
// Caps().RandomAccess is always false: frames are written under
// sequential numeric names, so pulling frame N before frame N-1 produces
// a directory whose names no longer reflect arrival order. The puller
// driving a graph that terminates in this sink must walk frame numbers
// monotonically, exactly as raw_video_io sources require of their
// consumers.
type Sink struct {
	input     node.InputProcessingNode
	context   *processingcontext.ProcessingContext
	directory string
	prefix    string
}

// Describe is the declarative parameter schema filewriter.New validates
// against.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "input", Type: params.TypeDescriptor{Kind: params.NodeInput(), Requiredness: params.Mandatory}},
		{Name: "directory", Type: params.TypeDescriptor{Kind: params.String(), Requiredness: params.Mandatory}},
		{Name: "prefix", Type: params.TypeDescriptor{Kind: params.String(), Requiredness: params.WithDefault, Default: "frame"}},
	}
}

// New validates p against Describe and creates directory if it does not
// already exist.
func New(pc *processingcontext.ProcessingContext, p *params.Parameters) (*Sink, error) {
	input, err := p.NodeInputOf("input")
	if err != nil {
		return nil, err
	}
	directory, err := params.Take[string](p, "directory", "", true)
	if err != nil {
		return nil, err
	}
	prefix, err := params.Take[string](p, "prefix", "frame", false)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, recorder.Wrap(recorder.KindIO, err, "creating output directory %q", directory)
	}

	return &Sink{input: input, context: pc, directory: directory, prefix: prefix}, nil
}

func (s *Sink) Caps() node.Caps {
	return node.Caps{FrameCount: s.input.Caps().FrameCount, RandomAccess: false}
}

func (s *Sink) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	upstream, err := s.input.Pull(ctx, req)
	if err != nil {
		return payload.Payload{}, err
	}
	hostFrame, err := s.context.EnsureHostFrame(upstream)
	if err != nil {
		return payload.Payload{}, err
	}

	img, err := toImage(hostFrame)
	if err != nil {
		return payload.Payload{}, err
	}

	path := filepath.Join(s.directory, fmt.Sprintf("%s-%06d.tiff", s.prefix, req.FrameNumber))
	out, err := os.Create(path)
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindIO, err, "creating %q", path)
	}
	defer out.Close()

	if err := tiff.Encode(out, img, nil); err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindIO, err, "encoding tiff for frame %d", req.FrameNumber)
	}
	return payload.Empty(), nil
}
