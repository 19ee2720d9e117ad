package filewriter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
)

type constFrameNode struct {
	f *frame.Frame[*buffer.HostBuffer]
}

func (c constFrameNode) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	return payload.Of(c.f), nil
}

func (c constFrameNode) Caps() node.Caps { return node.Caps{} }

func newGrayFrame(t *testing.T) *frame.Frame[*buffer.HostBuffer] {
	t.Helper()
	buf := buffer.NewHeapHostBuffer(4)
	buf.AsMutSlice(func(b []byte) { copy(b, []byte{10, 20, 30, 40}) })
	f, ok := frame.New(buf, frame.Interpretation{Width: 2, Height: 2, ColorInterpretation: frame.Mono, SampleInterpretation: frame.UInt(8)})
	if !ok {
		t.Fatalf("frame.New rejected a well-formed mono frame")
	}
	return &f
}

func TestPullWritesNumberedTiffFile(t *testing.T) {
	dir := t.TempDir()
	sink := &Sink{
		input:     node.InputProcessingNode{Upstream: constFrameNode{newGrayFrame(t)}},
		directory: dir,
		prefix:    "out",
	}

	if _, err := sink.Pull(context.Background(), node.Request{FrameNumber: 7}); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	path := filepath.Join(dir, "out-000007.tiff")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected output file at %q: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatalf("output file %q is empty", path)
	}
}

func TestToImageRejectsBayerFrames(t *testing.T) {
	buf := buffer.NewHeapHostBuffer(4)
	f, ok := frame.New(buf, frame.Interpretation{
		Width:                2,
		Height:               2,
		ColorInterpretation:  frame.Bayer(frame.CFA{RedInFirstCol: true, RedInFirstRow: true}),
		SampleInterpretation: frame.UInt(8),
	})
	if !ok {
		t.Fatalf("frame.New rejected a well-formed bayer frame")
	}
	if _, err := toImage(&f); err == nil {
		t.Fatalf("toImage accepted a Bayer frame")
	}
}

func TestDescribeRequiresDirectory(t *testing.T) {
	descriptor := Describe()
	found := false
	for _, e := range descriptor {
		if e.Name == "directory" {
			found = true
			if e.Type.Requiredness != (params.Mandatory) {
				t.Fatalf("directory requiredness = %v, want Mandatory", e.Type.Requiredness)
			}
		}
	}
	if !found {
		t.Fatalf("descriptor missing %q", "directory")
	}
}
