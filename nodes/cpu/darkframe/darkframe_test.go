package darkframe

import "testing"

func TestSubtractSaturatingClampsAtZero(t *testing.T) {
	in := []byte{10, 5, 255, 0}
	dark := []byte{3, 8, 1, 4}
	want := []byte{7, 0, 254, 0}

	got := subtractSaturating(in, dark)
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSubtractSaturatingCyclesShorterDarkframe(t *testing.T) {
	in := []byte{10, 10, 10, 10}
	dark := []byte{2, 3}
	want := []byte{8, 7, 8, 7}

	got := subtractSaturating(in, dark)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}
