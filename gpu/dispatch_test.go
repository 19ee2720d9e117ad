package gpu

import "testing"

func TestDispatchSizeRoundsUp(t *testing.T) {
	cases := []struct {
		w, h    uint32
		x, y, z uint32
	}{
		{16, 32, 1, 1, 1},
		{17, 32, 2, 1, 1},
		{4096, 3072, 256, 96, 1},
		{1, 1, 1, 1, 1},
	}
	for _, c := range cases {
		x, y, z := DispatchSize(c.w, c.h)
		if x != c.x || y != c.y || z != c.z {
			t.Fatalf("DispatchSize(%d, %d) = (%d, %d, %d), want (%d, %d, %d)", c.w, c.h, x, y, z, c.x, c.y, c.z)
		}
	}
}

func TestPackParamsLittleEndian(t *testing.T) {
	got := PackParams(1, 0x02030405)
	want := []byte{1, 0, 0, 0, 0x05, 0x04, 0x03, 0x02}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}
