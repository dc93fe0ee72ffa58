package vmath

import (
	"testing"

	"github.com/soypat/geometry/ms3"
)

func TestClampf(t *testing.T) {
	cases := []struct {
		v, lo, hi, want float32
	}{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
	}
	for _, c := range cases {
		if got := Clampf(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Clampf(%v,%v,%v) = %v, want %v", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestClampOrdered(t *testing.T) {
	if got := ClampOrdered(5, 0, 3); got != 3 {
		t.Errorf("ClampOrdered(5,0,3) = %d, want 3", got)
	}
	if got := ClampOrdered(-1.0, 0.0, 3.0); got != 0.0 {
		t.Errorf("ClampOrdered(-1,0,3) = %v, want 0", got)
	}
}

func TestSafeNormalize(t *testing.T) {
	v := SafeNormalize(ms3.Vec{X: 3, Y: 4})
	if n := ms3.Norm(v); n < 0.999 || n > 1.001 {
		t.Errorf("expected unit vector, got norm %v", n)
	}
	zero := SafeNormalize(ms3.Vec{})
	if zero != (ms3.Vec{}) {
		t.Errorf("expected zero vector for degenerate input, got %v", zero)
	}
}

func TestNudgeZero(t *testing.T) {
	if NudgeZero(0) == 0 {
		t.Error("expected nonzero nudge for exact zero")
	}
	if NudgeZero(1.5) != 1.5 {
		t.Error("expected nonzero input to pass through unchanged")
	}
}

func TestSignBitDiffers(t *testing.T) {
	if !SignBitDiffers(1, -1) {
		t.Error("expected opposite signs to differ")
	}
	if SignBitDiffers(1, 2) {
		t.Error("expected same signs to not differ")
	}
}

func TestBoxesIntersect(t *testing.T) {
	a := ms3.Box{Min: ms3.Vec{X: 0, Y: 0, Z: 0}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
	b := ms3.Box{Min: ms3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Max: ms3.Vec{X: 2, Y: 2, Z: 2}}
	c := ms3.Box{Min: ms3.Vec{X: 5, Y: 5, Z: 5}, Max: ms3.Vec{X: 6, Y: 6, Z: 6}}
	if !BoxesIntersect(a, b) {
		t.Error("expected overlapping boxes to intersect")
	}
	if BoxesIntersect(a, c) {
		t.Error("expected distant boxes to not intersect")
	}
}

func TestBoxContainsPoint(t *testing.T) {
	b := ms3.Box{Min: ms3.Vec{X: 0, Y: 0, Z: 0}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
	if !BoxContainsPoint(b, ms3.Vec{X: 0.5, Y: 0.5, Z: 0.5}) {
		t.Error("expected interior point to be contained")
	}
	if BoxContainsPoint(b, ms3.Vec{X: 2, Y: 0, Z: 0}) {
		t.Error("expected exterior point to not be contained")
	}
}

func TestMinVecMaxVec(t *testing.T) {
	a := ms3.Vec{X: 1, Y: -2, Z: 3}
	b := ms3.Vec{X: -1, Y: 5, Z: 0}
	if got, want := MinVec(a, b), (ms3.Vec{X: -1, Y: -2, Z: 0}); got != want {
		t.Errorf("MinVec(%v,%v) = %v, want %v", a, b, got, want)
	}
	if got, want := MaxVec(a, b), (ms3.Vec{X: 1, Y: 5, Z: 3}); got != want {
		t.Errorf("MaxVec(%v,%v) = %v, want %v", a, b, got, want)
	}
}

func TestMixf(t *testing.T) {
	if got := Mixf(0, 10, 0.5); got != 5 {
		t.Errorf("Mixf(0,10,0.5) = %v, want 5", got)
	}
	if got := Mixf(2, 4, 0); got != 2 {
		t.Errorf("Mixf(2,4,0) = %v, want 2", got)
	}
	if got := Mixf(2, 4, 1); got != 4 {
		t.Errorf("Mixf(2,4,1) = %v, want 4", got)
	}
}

func TestExpandBox(t *testing.T) {
	b := ms3.Box{Min: ms3.Vec{X: 0, Y: 0, Z: 0}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
	e := ExpandBox(b, 1)
	want := ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 2, Y: 2, Z: 2}}
	if e != want {
		t.Errorf("ExpandBox(%v,1) = %v, want %v", b, e, want)
	}
}
