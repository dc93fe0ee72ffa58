// Package vmath collects the small scalar and vector helpers shared by
// the field, extraction and query packages. It mirrors the handful of
// free functions gsdf.go keeps at package scope (minf, signf, clampf,
// mixf) instead of reaching for a generic math helper dependency.
package vmath

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Eps is the general-purpose tolerance used when a denominator or
// vector length might be degenerate.
const Eps = 1e-20

func Clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

func Mixf(x, y, a float32) float32 {
	return x*(1-a) + y*a
}

func Signf(v float32) float32 {
	if v == 0 {
		return 0
	}
	return math32.Copysign(1, v)
}

// SafeNormalize returns the unit vector of v, or the zero vector if v
// is degenerate (near-zero length), instead of propagating NaN/Inf.
func SafeNormalize(v ms3.Vec) ms3.Vec {
	n2 := ms3.Dot(v, v)
	if n2 < Eps {
		return ms3.Vec{}
	}
	return ms3.Scale(1/math32.Sqrt(n2), v)
}

// NudgeZero pushes an exact-zero SDF sample to a tiny positive value so
// that two coincident edge crossings can never be generated for a
// single point, per the dual-contouring sign-change rule.
func NudgeZero(v float32) float32 {
	if v == 0 {
		return 1e-8
	}
	return v
}

// SignBitDiffers reports whether a and b lie on opposite sides of the
// surface, treating an exact zero as already nudged by NudgeZero.
func SignBitDiffers(a, b float32) bool {
	return math32.Signbit(a) != math32.Signbit(b)
}

func MinVec(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{X: math32.Min(a.X, b.X), Y: math32.Min(a.Y, b.Y), Z: math32.Min(a.Z, b.Z)}
}

func MaxVec(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{X: math32.Max(a.X, b.X), Y: math32.Max(a.Y, b.Y), Z: math32.Max(a.Z, b.Z)}
}

// BoxesIntersect reports whether two axis-aligned boxes overlap, including
// touching at a face.
func BoxesIntersect(a, b ms3.Box) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// BoxContainsPoint reports whether p lies within the closed box b.
func BoxContainsPoint(b ms3.Box, p ms3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ExpandBox grows a box by amt on every face.
func ExpandBox(b ms3.Box, amt float32) ms3.Box {
	d := ms3.Vec{X: amt, Y: amt, Z: amt}
	return ms3.Box{Min: ms3.Sub(b.Min, d), Max: ms3.Add(b.Max, d)}
}
