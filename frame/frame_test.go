package frame

import "testing"

type fakeStorage struct{ length int }

func (f fakeStorage) Len() int { return f.length }

func TestRequiredBytesUInt8Mono(t *testing.T) {
	i := Interpretation{
		Width:                4096,
		Height:               3072,
		ColorInterpretation:  Mono,
		SampleInterpretation: UInt(8),
		Compression:          Uncompressed,
	}
	want := uint64(4096 * 3072)
	if got := i.RequiredBytes(); got != want {
		t.Fatalf("RequiredBytes() = %d, want %d", got, want)
	}
}

func TestRequiredBytesUInt12BayerPacksExactly(t *testing.T) {
	i := Interpretation{
		Width:                2,
		Height:               1,
		ColorInterpretation:  Bayer(CFA{}),
		SampleInterpretation: UInt(12),
		Compression:          Uncompressed,
	}
	// 2 samples * 12 bits = 24 bits = 3 bytes exactly.
	if got := i.RequiredBytes(); got != 3 {
		t.Fatalf("RequiredBytes() = %d, want 3", got)
	}
}

func TestFrameNewRejectsMismatchedLength(t *testing.T) {
	i := Interpretation{Width: 4, Height: 4, ColorInterpretation: Mono, SampleInterpretation: UInt(8)}
	_, ok := New[fakeStorage](fakeStorage{length: 10}, i)
	if ok {
		t.Fatal("expected New to reject a storage length that doesn't match RequiredBytes")
	}
	_, ok = New[fakeStorage](fakeStorage{length: 16}, i)
	if !ok {
		t.Fatal("expected New to accept a matching storage length")
	}
}

func TestColorInterpretationChannels(t *testing.T) {
	cases := []struct {
		name string
		ci   ColorInterpretation
		want int
	}{
		{"mono", Mono, 1},
		{"bayer", Bayer(CFA{RedInFirstCol: true}), 1},
		{"rgb", RGB, 3},
		{"ycbcr", YCbCr, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.ci.Channels(); got != c.want {
				t.Fatalf("Channels() = %d, want %d", got, c.want)
			}
		})
	}
}
