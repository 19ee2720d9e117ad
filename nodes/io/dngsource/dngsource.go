// Package dngsource reads a directory of Cinema DNG frames, one file
// per frame, matched by a glob pattern.
package dngsource

import (
	"context"
	"path/filepath"
	"sync"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
	"github.com/Polyrhythm/axiom-recorder/processingcontext"
)

// Node serves frames by reading one DNG file per requested frame
// number from a sorted, glob-matched file list.
type Node struct {
	files        []string
	cacheFrames  bool
	internalLoop bool
	cacheMu      sync.Mutex
	cache        []payload.Payload
	cached       []bool
}

// Describe is the declarative parameter schema dngsource.New validates
// against.
func Describe() params.Descriptor {
	return params.Descriptor{
		{Name: "file-pattern", Type: params.TypeDescriptor{Kind: params.String(), Requiredness: params.Mandatory}},
		{Name: "cache-frames", Type: params.TypeDescriptor{Kind: params.Bool(), Requiredness: params.Optional}},
		{Name: "internal-loop", Type: params.TypeDescriptor{Kind: params.Bool(), Requiredness: params.Optional}},
	}
}

// New globs the "file-pattern" parameter and sorts the matches (glob
// already returns them in lexical order, which for zero-padded frame
// numbering is frame order).
func New(pc *processingcontext.ProcessingContext, p *params.Parameters) (*Node, error) {
	pattern, err := params.Take[string](p, "file-pattern", "", true)
	if err != nil {
		return nil, err
	}
	cacheFrames, _ := params.Take[bool](p, "cache-frames", false, false)
	internalLoop, _ := params.Take[bool](p, "internal-loop", false, false)

	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, recorder.Wrap(recorder.KindConfig, err, "invalid file pattern %q", pattern)
	}
	if len(files) == 0 {
		return nil, recorder.New(recorder.KindConfig, "no files matched the pattern %q", pattern)
	}

	n := &Node{files: files, cacheFrames: cacheFrames, internalLoop: internalLoop}
	if cacheFrames {
		n.cache = make([]payload.Payload, len(files))
		n.cached = make([]bool, len(files))
	}
	return n, nil
}

func (n *Node) Caps() node.Caps {
	if n.internalLoop {
		return node.Caps{RandomAccess: true}
	}
	count := uint64(len(n.files))
	return node.Caps{FrameCount: &count, RandomAccess: true}
}

func (n *Node) Pull(ctx context.Context, req node.Request) (payload.Payload, error) {
	frameNumber := req.FrameNumber
	if n.internalLoop {
		frameNumber %= uint64(len(n.files))
	}
	if frameNumber >= uint64(len(n.files)) {
		return payload.Payload{}, (&node.FrameOutOfRange{Requested: frameNumber, Available: uint64(len(n.files))}).AsError()
	}

	if n.cacheFrames {
		n.cacheMu.Lock()
		if n.cached[frameNumber] {
			cached := n.cache[frameNumber]
			n.cacheMu.Unlock()
			return cached, nil
		}
		n.cacheMu.Unlock()
	}

	result, err := n.readFrame(n.files[frameNumber])
	if err != nil {
		return payload.Payload{}, err
	}

	if n.cacheFrames {
		n.cacheMu.Lock()
		n.cache[frameNumber] = result
		n.cached[frameNumber] = true
		n.cacheMu.Unlock()
	}
	return result, nil
}

func (n *Node) readFrame(path string) (payload.Payload, error) {
	r, err := open(path)
	if err != nil {
		return payload.Payload{}, err
	}
	defer r.Close()

	width, err := r.u32(tagImageWidth)
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindFormatParse, err, "reading ImageWidth of %q", path)
	}
	height, err := r.u32(tagImageLength)
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindFormatParse, err, "reading ImageLength of %q", path)
	}
	bitsPerSample, err := r.u32(tagBitsPerSample)
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindFormatParse, err, "reading BitsPerSample of %q", path)
	}
	sampleFormat, err := r.u32(tagSampleFormat)
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindFormatParse, err, "reading SampleFormat of %q", path)
	}
	cfaRaw, err := r.u32Values(tagCFAPattern)
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindFormatParse, err, "reading CFAPattern of %q", path)
	}
	if len(cfaRaw) < 4 {
		return payload.Payload{}, recorder.New(recorder.KindFormatParse, "%q: CFAPattern has %d entries, want 4", path, len(cfaRaw))
	}

	var sampleInterpretation frame.SampleInterpretation
	switch sampleFormat {
	case 1:
		sampleInterpretation = frame.UInt(uint8(bitsPerSample))
	case 3:
		switch bitsPerSample {
		case 16:
			sampleInterpretation = frame.FP16
		case 32:
			sampleInterpretation = frame.FP32
		default:
			return payload.Payload{}, recorder.New(recorder.KindFormatParse, "%q: IEEE float with BitsPerSample=%d is unsupported", path, bitsPerSample)
		}
	default:
		return payload.Payload{}, recorder.New(recorder.KindFormatParse, "%q: unknown SampleFormat %d", path, sampleFormat)
	}

	cfa := frame.CFA{
		RedInFirstCol: cfaRaw[0] == 0 || cfaRaw[2] == 0,
		RedInFirstRow: cfaRaw[0] == 0 || cfaRaw[1] == 0,
	}

	interpretation := frame.Interpretation{
		Width:                uint64(width),
		Height:               uint64(height),
		ColorInterpretation:  frame.Bayer(cfa),
		SampleInterpretation: sampleInterpretation,
		Compression:          frame.Uncompressed,
	}
	if fps, ok := r.frameRate(); ok {
		interpretation.FPS = &fps
	}

	counts, err := r.u32Values(tagStripByteCounts)
	if err != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindFormatParse, err, "reading StripByteCounts of %q", path)
	}
	length := stripByteTotal(counts)

	buf := buffer.NewHeapHostBuffer(length)
	var readErr error
	buf.AsMutSlice(func(dst []byte) {
		readErr = r.readStrips(dst)
	})
	if readErr != nil {
		return payload.Payload{}, recorder.Wrap(recorder.KindIO, readErr, "reading image data of %q", path)
	}

	outFrame, ok := frame.New(buf, interpretation)
	if !ok {
		return payload.Payload{}, recorder.New(recorder.KindFormatParse, "%q: strip data length %d does not match declared interpretation", path, length)
	}
	return payload.Of(&outFrame), nil
}
