package dngsource

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	recorder "github.com/Polyrhythm/axiom-recorder"
)

// TIFF/DNG tag IDs this reader understands. Values beyond the baseline
// TIFF 6.0 tags (ImageWidth..SampleFormat) are the CinemaDNG extension
// tags Adobe's DNG 1.4 specification adds for raw video streams.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagSamplesPerPixel = 277
	tagStripOffsets    = 273
	tagStripByteCounts = 279
	tagSampleFormat    = 339
	tagCFAPattern      = 33421
	tagFrameRate       = 51044 // CinemaDNG FrameRate, DNG 1.4 Cinema tag
)

// ifd field types, as TIFF 6.0 defines them. Only the types this
// implementation's tags actually use are listed.
const (
	typeByte     = 1
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

type ifdEntry struct {
	Type      uint16
	Count     uint32
	ValueOrOffset [4]byte
}

// reader holds one open DNG/TIFF file's byte order and root IFD, enough
// to answer the handful of tag lookups a CinemaDNG frame needs.
type reader struct {
	file    *os.File
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

// open parses path's TIFF header and first IFD.
func open(path string) (*reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, recorder.Wrap(recorder.KindIO, err, "opening DNG file %q", path)
	}

	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		f.Close()
		return nil, recorder.Wrap(recorder.KindIO, err, "reading TIFF header of %q", path)
	}

	var order binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		order = binary.BigEndian
	default:
		f.Close()
		return nil, recorder.New(recorder.KindFormatParse, "%q: not a TIFF file (bad byte-order marker)", path)
	}
	if order.Uint16(header[2:4]) != 42 {
		f.Close()
		return nil, recorder.New(recorder.KindFormatParse, "%q: not a TIFF file (bad magic number)", path)
	}
	firstIFD := order.Uint32(header[4:8])

	entries, err := readIFD(f, order, firstIFD, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &reader{file: f, order: order, entries: entries}, nil
}

func (r *reader) Close() error { return r.file.Close() }

func readIFD(f *os.File, order binary.ByteOrder, offset uint32, path string) (map[uint16]ifdEntry, error) {
	var countBuf [2]byte
	if _, err := f.ReadAt(countBuf[:], int64(offset)); err != nil {
		return nil, recorder.Wrap(recorder.KindFormatParse, err, "reading IFD entry count of %q", path)
	}
	count := order.Uint16(countBuf[:])

	entries := make(map[uint16]ifdEntry, count)
	const entrySize = 12
	buf := make([]byte, int(count)*entrySize)
	if _, err := f.ReadAt(buf, int64(offset)+2); err != nil {
		return nil, recorder.Wrap(recorder.KindFormatParse, err, "reading %d IFD entries of %q", count, path)
	}
	for i := 0; i < int(count); i++ {
		e := buf[i*entrySize : (i+1)*entrySize]
		tag := order.Uint16(e[0:2])
		var entry ifdEntry
		entry.Type = order.Uint16(e[2:4])
		entry.Count = order.Uint32(e[4:8])
		copy(entry.ValueOrOffset[:], e[8:12])
		entries[tag] = entry
	}
	return entries, nil
}

func (r *reader) fieldSize(t ifdEntry) int {
	switch t.Type {
	case typeByte:
		return 1
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeRational:
		return 8
	default:
		return 4
	}
}

// valueBytes returns the entry's raw value bytes, following the offset
// into the file when the packed value does not fit inline.
func (r *reader) valueBytes(t ifdEntry) ([]byte, error) {
	total := r.fieldSize(t) * int(t.Count)
	if total <= 4 {
		return t.ValueOrOffset[:total], nil
	}
	offset := r.order.Uint32(t.ValueOrOffset[:])
	buf := make([]byte, total)
	if _, err := r.file.ReadAt(buf, int64(offset)); err != nil {
		return nil, recorder.Wrap(recorder.KindFormatParse, err, "reading out-of-line IFD value")
	}
	return buf, nil
}

// u32Values decodes an entry's values as a slice of uint32, regardless
// of whether it's stored as BYTE, SHORT, or LONG.
func (r *reader) u32Values(tag uint16) ([]uint32, error) {
	entry, ok := r.entries[tag]
	if !ok {
		return nil, recorder.New(recorder.KindFormatParse, "missing required tag %d", tag)
	}
	raw, err := r.valueBytes(entry)
	if err != nil {
		return nil, err
	}
	size := r.fieldSize(entry)
	out := make([]uint32, entry.Count)
	for i := range out {
		chunk := raw[i*size : (i+1)*size]
		switch size {
		case 1:
			out[i] = uint32(chunk[0])
		case 2:
			out[i] = uint32(r.order.Uint16(chunk))
		case 4:
			out[i] = r.order.Uint32(chunk)
		default:
			return nil, fmt.Errorf("unsupported IFD field width %d for tag %d", size, tag)
		}
	}
	return out, nil
}

func (r *reader) u32(tag uint16) (uint32, error) {
	values, err := r.u32Values(tag)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// frameRate reads the optional CinemaDNG FrameRate tag as a RATIONAL,
// returning (0, false) when the tag is absent.
func (r *reader) frameRate() (float64, bool) {
	entry, ok := r.entries[tagFrameRate]
	if !ok || entry.Type != typeRational {
		return 0, false
	}
	raw, err := r.valueBytes(entry)
	if err != nil || len(raw) < 8 {
		return 0, false
	}
	num := r.order.Uint32(raw[0:4])
	den := r.order.Uint32(raw[4:8])
	if den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// readStrips concatenates every strip's bytes into dst, which must
// already be sized to the sum of StripByteCounts.
func (r *reader) readStrips(dst []byte) error {
	offsets, err := r.u32Values(tagStripOffsets)
	if err != nil {
		return err
	}
	counts, err := r.u32Values(tagStripByteCounts)
	if err != nil {
		return err
	}
	if len(offsets) != len(counts) {
		return recorder.New(recorder.KindFormatParse, "StripOffsets/StripByteCounts length mismatch (%d vs %d)", len(offsets), len(counts))
	}

	pos := 0
	for i := range offsets {
		n := int(counts[i])
		if _, err := r.file.ReadAt(dst[pos:pos+n], int64(offsets[i])); err != nil {
			return recorder.Wrap(recorder.KindIO, err, "reading strip %d", i)
		}
		pos += n
	}
	return nil
}

func stripByteTotal(counts []uint32) int {
	total := 0
	for _, c := range counts {
		total += int(c)
	}
	return total
}
