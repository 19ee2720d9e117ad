package reactor

// Priority packs an output-stream id and a frame number into a single
// comparable u64: the high byte disambiguates independent sinks, the low
// 56 bits order frames within a stream. Lower numeric priority runs
// first — the earliest frame of the most-urgent sink.
type Priority uint64

const frameMask uint64 = 0x00ff_ffff_ffff_ffff // low 56 bits

// New builds a Priority from an output-stream id and a frame number. A
// frame number above 2^56-1 wraps within the frame field only; the
// output byte is untouched.
func New(outputPriority uint8, frameNumber uint64) Priority {
	return Priority((uint64(outputPriority) << 56) | (frameNumber & frameMask))
}

// ForFrame returns a Priority with the same output-stream id as p, but
// the frame number replaced.
func (p Priority) ForFrame(frameNumber uint64) Priority {
	return Priority((uint64(p) &^ frameMask) | (frameNumber & frameMask))
}

// Frame returns the frame-number component.
func (p Priority) Frame() uint64 { return uint64(p) & frameMask }

// Output returns the output-stream id component.
func (p Priority) Output() uint8 { return uint8(uint64(p) >> 56) }

// Less reports whether p should run before other (numerically lower
// priority value means more urgent).
func (p Priority) Less(other Priority) bool { return p < other }
