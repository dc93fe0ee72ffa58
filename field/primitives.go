package field

import (
	"errors"

	"github.com/aquilax/go-perlin"
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Kind tags the variant held by a Primitive: a single tagged union
// dispatched on Kind rather than one struct+interface per shape.
type Kind uint8

const (
	KindBox Kind = iota
	KindCylinder
	KindSphere
	KindHeightMap
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "Box"
	case KindCylinder:
		return "Cylinder"
	case KindSphere:
		return "Sphere"
	case KindHeightMap:
		return "HeightMap"
	default:
		return "Unknown"
	}
}

// BlendOp is the tagged enum of ways a primitive composes against the
// field accumulated so far: Union/Subtraction/Intersection/SmoothUnion,
// applied as data rather than as separately-typed operator nodes, since
// a primitive list is folded in registration order rather than built as
// an expression tree.
type BlendOp uint8

const (
	Union BlendOp = iota
	Subtraction
	Intersection
	SmoothUnion
)

// Transform is a rigid local-to-world transform: rotate by Rot then
// translate by Pos. Rot is expected to be orthonormal; ToLocal uses its
// transpose as the inverse.
type Transform struct {
	Pos ms3.Vec
	Rot ms3.Mat3
}

// Identity is the identity transform (no rotation, origin translation).
func Identity() Transform {
	return Transform{Rot: ms3.IdentityMat3()}
}

// ToLocal maps a world point into the primitive's local frame.
func (t Transform) ToLocal(p ms3.Vec) ms3.Vec {
	rel := ms3.Sub(p, t.Pos)
	return ms3.MulMatVec(t.Rot.Transpose(), rel)
}

// ToWorld maps a local point into world space.
func (t Transform) ToWorld(p ms3.Vec) ms3.Vec {
	return ms3.Add(t.Pos, ms3.MulMatVec(t.Rot, p))
}

// ToWorldDir rotates (without translating) a local direction into world space.
func (t Transform) ToWorldDir(v ms3.Vec) ms3.Vec {
	return ms3.MulMatVec(t.Rot, v)
}

// Params bundles the per-Kind shape parameters in one flat struct so
// Primitive can stay a single concrete type instead of an interface.
type Params struct {
	// Box: half-extents in Dims, rounding in Round.
	// Cylinder: Dims.X = radius, Dims.Y = half-height, Round = edge rounding.
	// Sphere: Dims.X = radius.
	// HeightMap: Dims.X/Y = horizontal period hints, Dims.Z = amplitude.
	Dims  ms3.Vec
	Round float32
	// HeightMap-only fields.
	Seed    int64
	Octaves int32
}

// Primitive is one shape contributing to the composed field.
type Primitive struct {
	Kind      Kind
	Xform     Transform
	Material  uint8
	Blend     BlendOp
	SmoothK   float32
	Params    Params
	dirty     bool
	removed   bool
	currAABB  ms3.Box
	prevAABB  ms3.Box
	heightGen *perlin.Perlin // only set for KindHeightMap
}

// localAABB returns the shape's AABB in its own local frame.
func (p *Primitive) localAABB() ms3.Box {
	switch p.Kind {
	case KindSphere:
		r := p.Params.Dims.X
		return ms3.Box{Min: ms3.Vec{X: -r, Y: -r, Z: -r}, Max: ms3.Vec{X: r, Y: r, Z: r}}
	case KindBox:
		d := p.Params.Dims
		return ms3.Box{Min: ms3.Vec{X: -d.X, Y: -d.Y, Z: -d.Z}, Max: d}
	case KindCylinder:
		r, h := p.Params.Dims.X, p.Params.Dims.Y
		return ms3.Box{Min: ms3.Vec{X: -r, Y: -r, Z: -h}, Max: ms3.Vec{X: r, Y: r, Z: h}}
	case KindHeightMap:
		const largeNum = 1e5
		amp := p.Params.Dims.Z
		return ms3.Box{Min: ms3.Vec{X: -largeNum, Y: -largeNum, Z: -amp}, Max: ms3.Vec{X: largeNum, Y: largeNum, Z: amp}}
	}
	return ms3.Box{}
}

// worldAABB transforms the local AABB's 8 corners into world space and
// returns their enclosing box. Conservative but exact for axis-aligned
// local boxes under rotation.
func (p *Primitive) worldAABB() ms3.Box {
	lb := p.localAABB()
	var out ms3.Box
	first := true
	for i := 0; i < 8; i++ {
		corner := ms3.Vec{
			X: pick(i&1 != 0, lb.Min.X, lb.Max.X),
			Y: pick(i&2 != 0, lb.Min.Y, lb.Max.Y),
			Z: pick(i&4 != 0, lb.Min.Z, lb.Max.Z),
		}
		wc := p.Xform.ToWorld(corner)
		if first {
			out = ms3.Box{Min: wc, Max: wc}
			first = false
		} else {
			out.Min = ms3.Vec{X: math32.Min(out.Min.X, wc.X), Y: math32.Min(out.Min.Y, wc.Y), Z: math32.Min(out.Min.Z, wc.Z)}
			out.Max = ms3.Vec{X: math32.Max(out.Max.X, wc.X), Y: math32.Max(out.Max.Y, wc.Y), Z: math32.Max(out.Max.Z, wc.Z)}
		}
	}
	return out
}

func pick(b bool, a, c float32) float32 {
	if b {
		return c
	}
	return a
}

// CurrentAABB returns the primitive's world AABB as of its last commit.
func (p *Primitive) CurrentAABB() ms3.Box { return p.currAABB }

// PreviousAABB returns the primitive's world AABB before its last commit.
func (p *Primitive) PreviousAABB() ms3.Box { return p.prevAABB }

// Dirty reports whether the primitive has uncommitted edits.
func (p *Primitive) Dirty() bool { return p.dirty }

// valueLocal evaluates the raw (untransformed) distance function for the
// primitive's Kind at a point already expressed in local coordinates.
func (p *Primitive) valueLocal(lp ms3.Vec) float32 {
	switch p.Kind {
	case KindSphere:
		return ms3.Norm(lp) - p.Params.Dims.X
	case KindBox:
		d := p.Params.Dims
		round := p.Params.Round
		q := ms3.Sub(ms3.AbsElem(lp), ms3.AddScalar(-round, d))
		outside := ms3.Vec{X: math32.Max(q.X, 0), Y: math32.Max(q.Y, 0), Z: math32.Max(q.Z, 0)}
		inside := math32.Min(math32.Max(q.X, math32.Max(q.Y, q.Z)), 0)
		return ms3.Norm(outside) + inside - round
	case KindCylinder:
		r, h, round := p.Params.Dims.X, p.Params.Dims.Y, p.Params.Round
		dxy := math32.Hypot(lp.X, lp.Y) - r + round
		dz := math32.Abs(lp.Z) - h + round
		outX, outZ := math32.Max(dxy, 0), math32.Max(dz, 0)
		inside := math32.Min(math32.Max(dxy, dz), 0)
		return math32.Hypot(outX, outZ) + inside - round
	case KindHeightMap:
		h := p.heightAt(lp.X, lp.Y)
		return lp.Z - h
	}
	return math32.MaxFloat32
}

func (p *Primitive) heightAt(x, y float32) float32 {
	amp := p.Params.Dims.Z
	period := math32.Max(p.Params.Dims.X, 1)
	n := p.heightGen.Noise2D(float64(x/period), float64(y/period))
	return amp * float32(n)
}

// NewBox creates a box primitive with the given half-extents and edge rounding.
func NewBox(xform Transform, halfExtents ms3.Vec, round float32, material uint8, blend BlendOp, smoothK float32) (*Primitive, error) {
	if halfExtents.X <= 0 || halfExtents.Y <= 0 || halfExtents.Z <= 0 {
		return nil, errors.New("field: zero or negative box half-extent")
	}
	if round < 0 || round > halfExtents.Min() {
		return nil, errors.New("field: invalid box rounding")
	}
	p := &Primitive{Kind: KindBox, Xform: xform, Material: material, Blend: blend, SmoothK: smoothK,
		Params: Params{Dims: halfExtents, Round: round}}
	p.initAABB()
	return p, nil
}

// NewCylinder creates a cylinder primitive with its axis along local Z.
func NewCylinder(xform Transform, radius, halfHeight, round float32, material uint8, blend BlendOp, smoothK float32) (*Primitive, error) {
	if radius <= 0 || halfHeight <= 0 {
		return nil, errors.New("field: invalid cylinder dimension")
	}
	if round < 0 || round >= radius || round >= halfHeight {
		return nil, errors.New("field: invalid cylinder rounding")
	}
	p := &Primitive{Kind: KindCylinder, Xform: xform, Material: material, Blend: blend, SmoothK: smoothK,
		Params: Params{Dims: ms3.Vec{X: radius, Y: halfHeight}, Round: round}}
	p.initAABB()
	return p, nil
}

// NewSphere creates a sphere primitive of the given radius.
func NewSphere(xform Transform, radius float32, material uint8, blend BlendOp, smoothK float32) (*Primitive, error) {
	if radius <= 0 {
		return nil, errors.New("field: zero or negative sphere radius")
	}
	p := &Primitive{Kind: KindSphere, Xform: xform, Material: material, Blend: blend, SmoothK: smoothK,
		Params: Params{Dims: ms3.Vec{X: radius}}}
	p.initAABB()
	return p, nil
}

// NewHeightMap creates a heightmap primitive: a surface z=f(x,y) in its
// local frame generated by gradient noise, amplitude amp and horizontal
// period period. Grounded on aquilax/go-perlin, the terrain-noise
// dependency SoftbearStudios/mk48 wires into its own heightmap server.
func NewHeightMap(xform Transform, period, amp float32, seed int64, octaves int32, material uint8, blend BlendOp, smoothK float32) (*Primitive, error) {
	if period <= 0 || amp <= 0 {
		return nil, errors.New("field: invalid heightmap period/amplitude")
	}
	if octaves <= 0 {
		octaves = 3
	}
	p := &Primitive{Kind: KindHeightMap, Xform: xform, Material: material, Blend: blend, SmoothK: smoothK,
		Params:    Params{Dims: ms3.Vec{X: period, Y: period, Z: amp}, Seed: seed, Octaves: octaves},
		heightGen: perlin.NewPerlin(2, 2, octaves, seed),
	}
	p.initAABB()
	return p, nil
}

func (p *Primitive) initAABB() {
	p.currAABB = p.worldAABB()
	p.prevAABB = p.currAABB
	p.dirty = false
}

// SetTransform updates the primitive's local-to-world transform and
// marks it dirty; the AABB advance happens on commit, not here, so the
// previous footprint used for dirty propagation stays intact until then.
func (p *Primitive) SetTransform(xform Transform) {
	p.Xform = xform
	p.dirty = true
}

// SetMaterial updates the material tag and marks the primitive dirty
// (a material-only edit still needs the owning chunks remeshed so the
// new one-hot weights are baked into vertices).
func (p *Primitive) SetMaterial(m uint8) {
	p.Material = m
	p.dirty = true
}

// SetBlend updates the blend operator and smoothing parameter.
func (p *Primitive) SetBlend(op BlendOp, smoothK float32) {
	p.Blend = op
	p.SmoothK = smoothK
	p.dirty = true
}
