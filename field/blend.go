package field

import "github.com/chewxy/math32"

// smoothMin is Inigo Quilez's polynomial smooth minimum.
func smoothMin(a, b, k float32) float32 {
	if k <= 0 {
		return math32.Min(a, b)
	}
	h := clamp01(0.5 + 0.5*(b-a)/k)
	return math32.Min(a, b) - h*(1-h)*k
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	} else if v > 1 {
		return 1
	}
	return v
}

// apply folds the primitive's contribution d at a point into the
// accumulated distance acc, per its BlendOp, and reports whether the
// primitive's contribution dominates the result (used to pick the
// dominant material: the primitive whose contribution determined the
// accumulated value wins the material tag at that point).
func apply(acc, d float32, op BlendOp, k float32) (result float32, dominates bool) {
	switch op {
	case Union:
		if d < acc {
			return d, true
		}
		return acc, false
	case Subtraction:
		nd := -d
		if nd > acc {
			return nd, true
		}
		return acc, false
	case Intersection:
		if d > acc {
			return d, true
		}
		return acc, false
	case SmoothUnion:
		r := smoothMin(acc, d, k)
		// The primitive dominates the smooth blend when it alone is
		// closer to the surface than the accumulated field.
		return r, d < acc
	default:
		if d < acc {
			return d, true
		}
		return acc, false
	}
}
