package params

import "testing"

func TestTakeMandatoryMissing(t *testing.T) {
	p := New(map[string]any{})
	_, err := Take[int](p, "width", 0, true)
	if err == nil {
		t.Fatal("expected an error for a missing mandatory parameter")
	}
}

func TestTakeWithDefault(t *testing.T) {
	p := New(map[string]any{})
	v, err := Take[int](p, "threads", 4, false)
	if err != nil || v != 4 {
		t.Fatalf("got (%d, %v), want (4, nil)", v, err)
	}
}

func TestTakeWrongType(t *testing.T) {
	p := New(map[string]any{"width": "not-an-int"})
	_, err := Take[int](p, "width", 0, true)
	if err == nil {
		t.Fatal("expected a type-mismatch error")
	}
}

func TestHasReflectsSuppliedKeys(t *testing.T) {
	p := New(map[string]any{"cache-frames": true})
	if !p.Has("cache-frames") {
		t.Fatal("Has(cache-frames) = false, want true")
	}
	if p.Has("internal-loop") {
		t.Fatal("Has(internal-loop) = true, want false")
	}
}

func TestTakeConsumesValue(t *testing.T) {
	p := New(map[string]any{"width": 4})
	if _, err := Take[int](p, "width", 0, true); err != nil {
		t.Fatalf("first Take: %v", err)
	}
	if _, err := Take[int](p, "width", 0, true); err == nil {
		t.Fatal("second Take on the same name should fail loudly, not silently reuse the value")
	}
	if !p.Has("width") {
		t.Fatal("Has(width) = false after Take; Has should still reflect what the caller originally supplied")
	}
}
