package dngsource

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/node"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/payload"
)

// writeMinimalDNG writes a tiny synthetic little-endian TIFF/DNG file
// with one IFD: a 4x3, 8-bit, single-strip Bayer frame plus a
// CinemaDNG FrameRate tag, laid out by hand at fixed offsets. pixelSeed
// offsets every pixel byte so tests distinguishing multiple files by
// content can tell them apart.
func writeMinimalDNG(t *testing.T, path string, pixelSeed byte) []byte {
	t.Helper()

	const (
		ifdOffset       = 8
		entryCount      = 8
		ifdSize         = 2 + entryCount*12 + 4
		frameRateOffset = ifdOffset + ifdSize // 110
		pixelOffset     = frameRateOffset + 8 // 118
	)
	pixels := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	for i := range pixels {
		pixels[i] += pixelSeed
	}

	buf := make([]byte, pixelOffset+len(pixels))
	order := binary.LittleEndian

	buf[0], buf[1] = 'I', 'I'
	order.PutUint16(buf[2:4], 42)
	order.PutUint32(buf[4:8], ifdOffset)

	order.PutUint16(buf[ifdOffset:ifdOffset+2], entryCount)

	type entry struct {
		tag, typ uint16
		count    uint32
		value    uint32
	}
	entries := []entry{
		{256, 3, 1, 4},                 // ImageWidth
		{257, 3, 1, 3},                 // ImageLength
		{258, 3, 1, 8},                 // BitsPerSample
		{339, 3, 1, 1},                 // SampleFormat = uint
		{273, 4, 1, pixelOffset},       // StripOffsets
		{279, 4, 1, uint32(len(pixels))}, // StripByteCounts
		{51044, 5, 1, frameRateOffset}, // FrameRate (rational, out-of-line)
	}
	pos := ifdOffset + 2
	for _, e := range entries {
		order.PutUint16(buf[pos:pos+2], e.tag)
		order.PutUint16(buf[pos+2:pos+4], e.typ)
		order.PutUint32(buf[pos+4:pos+8], e.count)
		order.PutUint32(buf[pos+8:pos+12], e.value)
		pos += 12
	}
	// CFAPattern: BYTE, count 4, inline value bytes {0,1,1,2} (red at [0,0]).
	order.PutUint16(buf[pos:pos+2], 33421)
	order.PutUint16(buf[pos+2:pos+4], 1)
	order.PutUint32(buf[pos+4:pos+8], 4)
	copy(buf[pos+8:pos+12], []byte{0, 1, 1, 2})
	pos += 12

	order.PutUint32(buf[pos:pos+4], 0) // next IFD offset

	order.PutUint32(buf[frameRateOffset:frameRateOffset+4], 24000)
	order.PutUint32(buf[frameRateOffset+4:frameRateOffset+8], 1001)

	copy(buf[pixelOffset:], pixels)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing synthetic DNG: %v", err)
	}
	return pixels
}

func TestReadFrameParsesTagsAndPixels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_0001.dng")
	pixels := writeMinimalDNG(t, path, 0)

	n := &Node{files: []string{path}}
	result, err := n.readFrame(path)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}

	framePtr, err := payload.Downcast[*frame.Frame[*buffer.HostBuffer]](result)
	if err != nil {
		t.Fatalf("payload did not downcast to host frame: %v", err)
	}
	frameVal := *framePtr
	var gotBytes []byte
	if frameVal.Interpretation.Width != 4 || frameVal.Interpretation.Height != 3 {
		t.Fatalf("dims = %dx%d, want 4x3", frameVal.Interpretation.Width, frameVal.Interpretation.Height)
	}
	if bits, ok := frameVal.Interpretation.SampleInterpretation.IsUInt(); !ok || bits != 8 {
		t.Fatalf("sample interpretation = %s, want UInt(8)", frameVal.Interpretation.SampleInterpretation)
	}
	if frameVal.Interpretation.FPS == nil || *frameVal.Interpretation.FPS < 23.9 || *frameVal.Interpretation.FPS > 24.0 {
		t.Fatalf("fps = %v, want ~23.976", frameVal.Interpretation.FPS)
	}
	cfa, isBayer := frameVal.Interpretation.ColorInterpretation.IsBayer()
	if !isBayer || !cfa.RedInFirstCol || !cfa.RedInFirstRow {
		t.Fatalf("cfa = %+v, isBayer=%v, want red in first row/col", cfa, isBayer)
	}
	frameVal.Storage.AsSlice(func(b []byte) {
		gotBytes = append([]byte(nil), b...)
	})
	if len(gotBytes) != len(pixels) {
		t.Fatalf("len(pixels) = %d, want %d", len(gotBytes), len(pixels))
	}
	for i := range pixels {
		if gotBytes[i] != pixels[i] {
			t.Fatalf("pixel %d = %d, want %d", i, gotBytes[i], pixels[i])
		}
	}
}

// framePixels downcasts a Pull result to a host frame and copies out its
// backing bytes for comparison.
func framePixels(t *testing.T, p payload.Payload) []byte {
	t.Helper()
	f, err := payload.Downcast[*frame.Frame[*buffer.HostBuffer]](p)
	if err != nil {
		t.Fatalf("downcasting payload: %v", err)
	}
	var out []byte
	f.Storage.AsSlice(func(b []byte) { out = append([]byte(nil), b...) })
	return out
}

func TestPullInternalLoopWraps(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("frame_%04d.dng", i))
		writeMinimalDNG(t, paths[i], byte(i*10))
	}

	n := &Node{files: paths, internalLoop: true}

	if count := n.Caps().FrameCount; count != nil {
		t.Fatalf("Caps().FrameCount = %v, want nil for an internally-looping source", count)
	}

	frame0, err := n.Pull(context.Background(), node.Request{FrameNumber: 0})
	if err != nil {
		t.Fatalf("Pull(0): %v", err)
	}
	frame1, err := n.Pull(context.Background(), node.Request{FrameNumber: 1})
	if err != nil {
		t.Fatalf("Pull(1): %v", err)
	}
	frame7, err := n.Pull(context.Background(), node.Request{FrameNumber: 7})
	if err != nil {
		t.Fatalf("Pull(7): %v", err)
	}

	bytes0 := framePixels(t, frame0)
	bytes1 := framePixels(t, frame1)
	bytes7 := framePixels(t, frame7)

	if string(bytes7) != string(bytes1) {
		t.Fatalf("frame 7 (= 7%%3 = 1) did not match frame 1's payload: got %v, want %v", bytes7, bytes1)
	}
	if string(bytes7) == string(bytes0) {
		t.Fatalf("frame 7 matched frame 0's payload; wraparound picked the wrong file")
	}
}

func TestPullCacheFramesReadsFileOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame_0000.dng")
	writeMinimalDNG(t, path, 0)

	n, err := New(nil, params.New(map[string]any{"file-pattern": path, "cache-frames": true}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := n.Pull(context.Background(), node.Request{FrameNumber: 0})
	if err != nil {
		t.Fatalf("first Pull: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("removing source file: %v", err)
	}

	second, err := n.Pull(context.Background(), node.Request{FrameNumber: 0})
	if err != nil {
		t.Fatalf("second Pull should have been served from cache without reading the removed file: %v", err)
	}

	firstFrame, err := payload.Downcast[*frame.Frame[*buffer.HostBuffer]](first)
	if err != nil {
		t.Fatalf("downcasting first pull: %v", err)
	}
	secondFrame, err := payload.Downcast[*frame.Frame[*buffer.HostBuffer]](second)
	if err != nil {
		t.Fatalf("downcasting second pull: %v", err)
	}
	if firstFrame != secondFrame {
		t.Fatalf("cached pull returned a different *frame.Frame than the original: %p vs %p", firstFrame, secondFrame)
	}
}

func TestDescribeRequiresFilePattern(t *testing.T) {
	descriptor := Describe()
	found := false
	for _, entry := range descriptor {
		if entry.Name == "file-pattern" {
			found = true
			if entry.Type.Requiredness != params.Mandatory {
				t.Fatalf("file-pattern requiredness = %v, want Mandatory", entry.Type.Requiredness)
			}
		}
	}
	if !found {
		t.Fatalf("descriptor missing file-pattern")
	}
}
