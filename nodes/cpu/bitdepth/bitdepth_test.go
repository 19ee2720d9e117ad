package bitdepth

import (
	"bytes"
	"testing"
)

func TestUnpack8IsIdentity(t *testing.T) {
	in := []byte{0x01, 0x02, 0x03}
	out := Unpack(in, 8)
	if &out[0] != &in[0] {
		t.Fatal("Unpack(bits=8) must return the input slice, not a copy")
	}
}

func TestUnpack12FastPath(t *testing.T) {
	// Two 12-bit samples packed MSB-first into 3 bytes: 0xABC and 0xDEF.
	in := []byte{0xAB, 0xCD, 0xEF}
	got := Unpack(in, 12)
	want := []byte{0xAB, 0xDE}
	if !bytes.Equal(got, want) {
		t.Fatalf("Unpack(bits=12) = % x, want % x", got, want)
	}
}

func TestUnpack10BitAllOnes(t *testing.T) {
	// Four 10-bit samples of value 0x3FF packed across 5 bytes, all bits
	// set, must decode to four bytes of 0xFF.
	in := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	got := Unpack(in, 10)
	want := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Fatalf("Unpack(bits=10) = % x, want % x", got, want)
	}
}

func TestUnpack16BitTakesHighByte(t *testing.T) {
	// Two 16-bit big-endian samples: the high byte of each is what
	// Unpack must keep.
	in := []byte{0x12, 0x34, 0x56, 0x78}
	got := Unpack(in, 16)
	want := []byte{0x12, 0x56}
	if !bytes.Equal(got, want) {
		t.Fatalf("Unpack(bits=16) = % x, want % x", got, want)
	}
}

func TestPackUnpackRoundTripsTopByte(t *testing.T) {
	samples := []byte{0x12, 0x56, 0xFF, 0x00}
	packed := Pack(samples, 16)
	roundTripped := Unpack(packed, 16)
	if !bytes.Equal(roundTripped, samples) {
		t.Fatalf("round trip at bits=16: got % x, want % x", roundTripped, samples)
	}
}

func TestPack8IsIdentity(t *testing.T) {
	in := []byte{0x01, 0x02}
	out := Pack(in, 8)
	if &out[0] != &in[0] {
		t.Fatal("Pack(bits=8) must return the input slice, not a copy")
	}
}
