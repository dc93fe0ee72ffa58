// Package field implements the SDF composition layer: tagged-variant
// primitives folded in registration order into a single scalar field,
// plus the pending-edit/commit bookkeeping that drives dirty-region
// propagation.
package field

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// ShapeHandle is a stable opaque identifier returned by AddXxx, used by
// UpdateShape/RemoveShape/GetShapeAABB. Never a pointer: primitives are
// stored by value in a map keyed on this handle.
type ShapeHandle uint32

// DirtyRegion is the previous and current world AABB of a primitive
// whose edit has just been committed. Expanding it by the cache halo
// is the caller's (scheduler's) responsibility.
type DirtyRegion struct {
	Prev, Curr ms3.Box
	Removed    bool
}

// Field owns the registered primitives and the pending-edit queue.
// All mutating methods must be called from the owner thread (the
// goroutine driving the scheduler's Update), per the concurrency
// model: the field is never mutated concurrently with worker reads.
type Field struct {
	mu         sync.Mutex // guards against accidental cross-goroutine misuse; not on the evaluation hot path
	prims      map[ShapeHandle]*Primitive
	order      []ShapeHandle
	nextHandle ShapeHandle
}

// New creates an empty Field. With zero primitives registered, Value
// falls back to the default field: a ground plane subtracted by a
// small test sphere.
func New() *Field {
	return &Field{prims: make(map[ShapeHandle]*Primitive)}
}

func (f *Field) register(p *Primitive) ShapeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.dirty = true // newly added: needs every overlapping chunk generated
	h := f.nextHandle
	f.nextHandle++
	f.prims[h] = p
	f.order = append(f.order, h)
	return h
}

func (f *Field) AddBox(xform Transform, halfExtents ms3.Vec, round float32, material uint8, blend BlendOp, smoothK float32) (ShapeHandle, error) {
	p, err := NewBox(xform, halfExtents, round, material, blend, smoothK)
	if err != nil {
		return 0, err
	}
	return f.register(p), nil
}

func (f *Field) AddCylinder(xform Transform, radius, halfHeight, round float32, material uint8, blend BlendOp, smoothK float32) (ShapeHandle, error) {
	p, err := NewCylinder(xform, radius, halfHeight, round, material, blend, smoothK)
	if err != nil {
		return 0, err
	}
	return f.register(p), nil
}

func (f *Field) AddSphere(xform Transform, radius float32, material uint8, blend BlendOp, smoothK float32) (ShapeHandle, error) {
	p, err := NewSphere(xform, radius, material, blend, smoothK)
	if err != nil {
		return 0, err
	}
	return f.register(p), nil
}

func (f *Field) AddHeightMap(xform Transform, period, amp float32, seed int64, octaves int32, material uint8, blend BlendOp, smoothK float32) (ShapeHandle, error) {
	p, err := NewHeightMap(xform, period, amp, seed, octaves, material, blend, smoothK)
	if err != nil {
		return 0, err
	}
	return f.register(p), nil
}

var ErrUnknownShape = errors.New("field: unknown shape handle")

func (f *Field) get(h ShapeHandle) (*Primitive, error) {
	p, ok := f.prims[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShape, h)
	}
	return p, nil
}

// UpdateShapeTransform sets a primitive's local-to-world transform and marks it dirty.
func (f *Field) UpdateShapeTransform(h ShapeHandle, xform Transform) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(h)
	if err != nil {
		return err
	}
	p.SetTransform(xform)
	return nil
}

// UpdateShapeMaterial sets a primitive's material tag and marks it dirty.
func (f *Field) UpdateShapeMaterial(h ShapeHandle, material uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(h)
	if err != nil {
		return err
	}
	p.SetMaterial(material)
	return nil
}

// UpdateShapeBlend sets a primitive's blend operator and marks it dirty.
func (f *Field) UpdateShapeBlend(h ShapeHandle, op BlendOp, smoothK float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(h)
	if err != nil {
		return err
	}
	p.SetBlend(op, smoothK)
	return nil
}

// RemoveShape marks a primitive for removal. It stays part of the
// composed field (and visible to in-flight job snapshots) until the
// next successful Commit, at which point its last committed AABB is
// returned once more for dirty propagation and it is dropped.
func (f *Field) RemoveShape(h ShapeHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(h)
	if err != nil {
		return err
	}
	p.dirty = true
	p.removed = true
	return nil
}

// GetShapeAABB returns a primitive's current committed world AABB.
func (f *Field) GetShapeAABB(h ShapeHandle) (ms3.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.get(h)
	if err != nil {
		return ms3.Box{}, err
	}
	return p.currAABB, nil
}

// HasPendingEdits reports whether any primitive has an uncommitted edit.
func (f *Field) HasPendingEdits() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.order {
		if f.prims[h].dirty {
			return true
		}
	}
	return false
}

// Commit advances every dirty primitive's AABB bookkeeping (previous <-
// current, current <- recomputed) and drops removed primitives,
// returning the set of regions that must be re-dirtied. Callers
// (the scheduler) must only call Commit when the worker pool is fully
// idle, so no in-flight job's snapshot observes a half-applied edit.
func (f *Field) Commit() []DirtyRegion {
	f.mu.Lock()
	defer f.mu.Unlock()
	var regions []DirtyRegion
	newOrder := f.order[:0]
	for _, h := range f.order {
		p := f.prims[h]
		if !p.dirty {
			newOrder = append(newOrder, h)
			continue
		}
		if p.removed {
			regions = append(regions, DirtyRegion{Prev: p.currAABB, Curr: p.currAABB, Removed: true})
			delete(f.prims, h)
			continue
		}
		oldCurr := p.currAABB
		p.currAABB = p.worldAABB()
		p.prevAABB = oldCurr
		p.dirty = false
		regions = append(regions, DirtyRegion{Prev: oldCurr, Curr: p.currAABB})
		newOrder = append(newOrder, h)
	}
	f.order = newOrder
	return regions
}

// Snapshot copies the current primitive values into an immutable
// FieldSnapshot a worker goroutine can evaluate without racing the
// owner thread. Copying happens synchronously on the owner thread at
// job-dispatch time, which is what makes the snapshot safe to hand to
// a goroutine: by construction no further owner-thread mutation can
// reach it.
func (f *Field) Snapshot() *Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	prims := make([]Primitive, 0, len(f.order))
	for _, h := range f.order {
		prims = append(prims, *f.prims[h])
	}
	return &Snapshot{prims: prims}
}

// Snapshot is a read-only, goroutine-safe view of the composed field
// as of the moment it was taken.
type Snapshot struct {
	prims []Primitive
}

// Value evaluates the composed scalar distance at p. Never returns NaN;
// a NaN from a primitive is a programming error and panics.
func (s *Snapshot) Value(p ms3.Vec) float32 {
	v, _ := s.valueAndMaterial(p)
	return v
}

// Material returns the material tag of the primitive whose contribution
// dominated the field at p.
func (s *Snapshot) Material(p ms3.Vec) uint8 {
	_, m := s.valueAndMaterial(p)
	return m
}

func (s *Snapshot) valueAndMaterial(p ms3.Vec) (float32, uint8) {
	if len(s.prims) == 0 {
		return defaultFieldValue(p), 0
	}
	var acc float32
	var mat uint8
	first := true
	for i := range s.prims {
		pr := &s.prims[i]
		lp := pr.Xform.ToLocal(p)
		d := pr.valueLocal(lp)
		if first {
			acc = applyFirst(d, pr.Blend)
			mat = pr.Material
			first = false
			continue
		}
		var dominates bool
		acc, dominates = apply(acc, d, pr.Blend, pr.SmoothK)
		if dominates {
			mat = pr.Material
		}
	}
	if math32.IsNaN(acc) {
		panic("field: SDF evaluated to NaN")
	}
	return acc, mat
}

// applyFirst seeds the fold: Subtraction/Intersection as the very first
// primitive behave like Union since there is no prior field to combine
// against yet.
func applyFirst(d float32, op BlendOp) float32 {
	return d
}

// Derivative returns the outward gradient at p using a two-sided,
// re-normalized central-difference rule: a one-sided forward estimate
// and a one-sided backward estimate, each safe-normalized, then summed
// and re-normalized.
func (s *Snapshot) Derivative(p ms3.Vec) ms3.Vec {
	const epsVoxels = 0.2
	return centralDiffDerivative(s.Value, p, epsVoxels)
}

func centralDiffDerivative(value func(ms3.Vec) float32, p ms3.Vec, eps float32) ms3.Vec {
	v0 := value(p)
	fwd := ms3.Vec{
		X: value(ms3.Add(p, ms3.Vec{X: eps})) - v0,
		Y: value(ms3.Add(p, ms3.Vec{Y: eps})) - v0,
		Z: value(ms3.Add(p, ms3.Vec{Z: eps})) - v0,
	}
	bwd := ms3.Vec{
		X: v0 - value(ms3.Sub(p, ms3.Vec{X: eps})),
		Y: v0 - value(ms3.Sub(p, ms3.Vec{Y: eps})),
		Z: v0 - value(ms3.Sub(p, ms3.Vec{Z: eps})),
	}
	nFwd := safeNorm(fwd)
	nBwd := safeNorm(bwd)
	return safeNorm(ms3.Add(nFwd, nBwd))
}

func safeNorm(v ms3.Vec) ms3.Vec {
	n2 := ms3.Dot(v, v)
	if n2 < 1e-20 {
		return ms3.Vec{}
	}
	return ms3.Scale(1/math32.Sqrt(n2), v)
}

// Evaluate is the batch-vectorized counterpart to Value, amortizing call
// overhead for the SDF cache fill and query-layer normal estimation, in
// the style of gleval.SDF3.Evaluate.
func (s *Snapshot) Evaluate(pos []ms3.Vec, dist []float32) error {
	if len(pos) != len(dist) {
		return errors.New("field: position/distance length mismatch")
	}
	for i, p := range pos {
		dist[i] = s.Value(p)
	}
	return nil
}

// defaultFieldValue is the stand-in field used when no primitives are
// registered: a ground plane at z=0 subtracted by a small test sphere.
func defaultFieldValue(p ms3.Vec) float32 {
	groundPlane := p.Z
	sphere := ms3.Norm(ms3.Sub(p, ms3.Vec{X: 4, Y: 4, Z: 2})) - 3
	return math32.Max(groundPlane, -sphere)
}
