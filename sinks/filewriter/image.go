package filewriter

import (
	"image"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
)

// toImage converts a mono-interpreted 8- or 16-bit frame into the
// standard library image types golang.org/x/image/tiff knows how to
// encode. Bayer and RGB frames need a debayer/color-space stage this
// sink does not perform; callers wanting to archive those must insert
// one upstream, so this deliberately refuses rather than guessing a
// channel layout.
func toImage(f *frame.Frame[*buffer.HostBuffer]) (image.Image, error) {
	if _, ok := f.Interpretation.ColorInterpretation.IsBayer(); ok {
		return nil, recorder.New(recorder.KindFormatParse, "filewriter: cannot write a Bayer frame directly, debayer it first")
	}
	if f.Interpretation.ColorInterpretation.Channels() != 1 {
		return nil, recorder.New(recorder.KindFormatParse, "filewriter: only mono frames are supported")
	}

	bits, isUInt := f.Interpretation.SampleInterpretation.IsUInt()
	if !isUInt {
		return nil, recorder.New(recorder.KindFormatParse, "filewriter: only unsigned-integer samples are supported")
	}

	width := int(f.Interpretation.Width)
	height := int(f.Interpretation.Height)
	bounds := image.Rect(0, 0, width, height)

	var data []byte
	f.Storage.AsSlice(func(b []byte) { data = b })

	switch {
	case bits == 8:
		img := &image.Gray{Pix: append([]byte(nil), data...), Stride: width, Rect: bounds}
		return img, nil
	case bits == 16:
		img := &image.Gray16{Pix: append([]byte(nil), data...), Stride: width * 2, Rect: bounds}
		return img, nil
	default:
		return nil, recorder.New(recorder.KindFormatParse, "filewriter: unsupported sample bit depth %d", bits)
	}
}
