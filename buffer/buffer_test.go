package buffer

import "testing"

func TestHeapHostBufferLen(t *testing.T) {
	b := NewHeapHostBuffer(128)
	if b.Len() != 128 {
		t.Fatalf("Len() = %d, want 128", b.Len())
	}
	if b.IsDeviceVisible() {
		t.Fatal("heap buffer must not report device visibility")
	}
}

func TestAsMutSliceThenAsSliceRoundTrip(t *testing.T) {
	b := NewHeapHostBuffer(4)
	b.AsMutSlice(func(data []byte) {
		copy(data, []byte{1, 2, 3, 4})
	})

	var got []byte
	b.AsSlice(func(data []byte) {
		got = append(got, data...)
	})
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPoolReusesBuffersOfSameSize(t *testing.T) {
	p := NewPool()
	b1 := p.Get(64)
	p.Put(b1)
	b2 := p.Get(64)
	if b1 != b2 {
		t.Fatal("expected Pool to recycle a same-size buffer")
	}
}

func TestPoolDistinguishesSizes(t *testing.T) {
	p := NewPool()
	small := p.Get(16)
	large := p.Get(256)
	if small.Len() == large.Len() {
		t.Fatal("expected different sizes to be distinguished")
	}
}
