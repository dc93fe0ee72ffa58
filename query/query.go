// Package query answers point/ray/sphere questions against a chunk
// store and its backing SDF: voxel classification, collision lookup,
// a fast DDA-stepped raycast, an SDF-refined raycast, a sphere sweep,
// and a sphere push-out resolver.
package query

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxterra/chunkstore"
	"github.com/soypat/voxterra/extract"
	"github.com/soypat/voxterra/field"
	"github.com/soypat/voxterra/vmath"
)

// BlockType mirrors a voxel's dual-contouring classification: the
// query layer never introduces a classification of its own.
type BlockType = extract.Class

const (
	Exterior = extract.ClassExterior
	Interior = extract.ClassInterior
	Surface  = extract.ClassSurface
	Unloaded = extract.ClassUnloaded
)

// CollisionSet reports which block types block movement, configured
// per the caller's rules (e.g. Surface blocks, Interior may or may not
// depending on a game mode).
type CollisionSet map[BlockType]bool

// DefaultCollisionSet treats Surface and Interior as solid.
func DefaultCollisionSet() CollisionSet {
	return CollisionSet{Surface: true, Interior: true}
}

// RaycastResult reports a raycast's outcome. On a miss, Distance,
// Posf, and Normal are +Inf; on a hit every field is finite and Type
// is always Surface.
type RaycastResult struct {
	Hit             bool
	Type            BlockType
	Distance        float32
	Posi            field.VoxelCoord
	Posf            ms3.Vec
	Normal          ms3.Vec
	TouchedUnloaded bool
}

func missResult() RaycastResult {
	inf := float32(math.Inf(1))
	return RaycastResult{
		Distance: inf,
		Posf:     ms3.Vec{X: inf, Y: inf, Z: inf},
		Normal:   ms3.Vec{X: inf, Y: inf, Z: inf},
	}
}

// SweepHit reports a sphere sweep's outcome.
type SweepHit struct {
	Distance float32
	Normal   ms3.Vec
	Position ms3.Vec
}

// Sphere is a moving or static collision volume.
type Sphere struct {
	Center ms3.Vec
	Radius float32
}

// SDF is the scalar-field collaborator the precise raycast and
// push-out resolver sample; field.Snapshot satisfies it.
type SDF interface {
	Value(p ms3.Vec) float32
	Derivative(p ms3.Vec) ms3.Vec
}

// Engine is the query layer's view of the chunk store: voxel
// classification and the per-voxel dual-contouring vertex used by the
// fast raycast path.
type Engine struct {
	Store *chunkstore.Store
}

// New builds a query engine over store.
func New(store *chunkstore.Store) *Engine {
	return &Engine{Store: store}
}

func localIndex(v field.VoxelCoord, c field.ChunkCoord) (lx, ly, lz int32) {
	const S = field.ChunkSize
	lx = v.X - c.X*S
	ly = v.Y - c.Y*S
	lz = v.Z - c.Z*S
	return lx, ly, lz
}

// GetVoxel classifies voxel v. A voxel whose chunk is recorded as
// Empty or Interior reports Exterior or Interior; any other voxel
// outside a generated chunk reports Unloaded. The spec's
// "invalid/out-of-world" case is handled by callers that bound
// their own queries, since this engine treats the world as unbounded.
func (e *Engine) GetVoxel(v field.VoxelCoord) BlockType {
	coord := field.ChunkOf(v)
	h, ok := e.Store.Lookup(coord)
	if !ok {
		switch count, _ := e.Store.Count(coord); count {
		case chunkstore.CountEmpty:
			return Exterior
		case chunkstore.CountInterior:
			return Interior
		}
		return Unloaded
	}
	c, ok := e.Store.Get(h)
	if !ok {
		return Unloaded
	}
	lx, ly, lz := localIndex(v, coord)
	return c.Class[lz][ly][lx]
}

// GetCollision reports whether the voxel at v is solid under set.
func (e *Engine) GetCollision(v field.VoxelCoord, set CollisionSet) bool {
	return set[e.GetVoxel(v)]
}

// surfaceVertex returns the single dual-contouring vertex recorded for
// the Surface voxel v, if its chunk is generated.
func (e *Engine) surfaceVertex(v field.VoxelCoord) (extract.Vertex, bool) {
	coord := field.ChunkOf(v)
	h, ok := e.Store.Lookup(coord)
	if !ok {
		return extract.Vertex{}, false
	}
	c, ok := e.Store.Get(h)
	if !ok {
		return extract.Vertex{}, false
	}
	lx, ly, lz := localIndex(v, coord)
	idx := c.VertexIndex[lz][ly][lx]
	if idx == extract.IndexSentinel || int(idx) >= len(c.Vertices) {
		return extract.Vertex{}, false
	}
	return c.Vertices[idx], true
}

// dda walks integer voxels from start along ray, calling visit for
// each one; visit returns true to stop the walk. maxSteps bounds an
// otherwise-infinite walk along a ray that never exits loaded chunks.
func dda(start, ray ms3.Vec, maxSteps int, visit func(v field.VoxelCoord, tEnter float32) bool) {
	voxel := field.WorldToVoxel(start)
	step := field.VoxelCoord{}
	tMax := ms3.Vec{}
	tDelta := ms3.Vec{}

	setupAxis := func(startv, dir, boundaryLo float32) (stepv int32, tmax, tdelta float32) {
		if dir > 0 {
			stepv = 1
			next := boundaryLo + 1
			tmax = (next - startv) / dir
			tdelta = 1 / dir
		} else if dir < 0 {
			stepv = -1
			tmax = (boundaryLo - startv) / dir
			tdelta = -1 / dir
		} else {
			stepv = 0
			tmax = float32(math.Inf(1))
			tdelta = float32(math.Inf(1))
		}
		return
	}
	step.X, tMax.X, tDelta.X = setupAxis(start.X, ray.X, float32(voxel.X))
	step.Y, tMax.Y, tDelta.Y = setupAxis(start.Y, ray.Y, float32(voxel.Y))
	step.Z, tMax.Z, tDelta.Z = setupAxis(start.Z, ray.Z, float32(voxel.Z))

	t := float32(0)
	for i := 0; i < maxSteps; i++ {
		if visit(voxel, t) {
			return
		}
		if tMax.X < tMax.Y {
			if tMax.X < tMax.Z {
				voxel.X += step.X
				t = tMax.X
				tMax.X += tDelta.X
			} else {
				voxel.Z += step.Z
				t = tMax.Z
				tMax.Z += tDelta.Z
			}
		} else {
			if tMax.Y < tMax.Z {
				voxel.Y += step.Y
				t = tMax.Y
				tMax.Y += tDelta.Y
			} else {
				voxel.Z += step.Z
				t = tMax.Z
				tMax.Z += tDelta.Z
			}
		}
	}
}

const maxDDASteps = 4096

// RaycastFast walks the voxel grid and returns on the first Surface
// voxel, reconstructing the hit position from the plane of that
// voxel's single dual-contouring vertex instead of sampling the SDF.
// allowSourceCollision controls whether a Surface voxel exactly at
// start's own voxel counts as a hit (false skips it, for rays cast
// from a point already touching geometry).
func (e *Engine) RaycastFast(start, ray ms3.Vec, allowSourceCollision bool) RaycastResult {
	res := missResult()
	startVoxel := field.WorldToVoxel(start)
	dirLen := ms3.Norm(ray)
	if dirLen < 1e-12 {
		return res
	}
	dir := vmath.SafeNormalize(ray)

	dda(start, ray, maxDDASteps, func(v field.VoxelCoord, t float32) bool {
		class := e.GetVoxel(v)
		if class == Unloaded {
			res.TouchedUnloaded = true
			return false
		}
		if class != Surface {
			return false
		}
		if !allowSourceCollision && v == startVoxel {
			return false
		}
		vtx, ok := e.surfaceVertex(v)
		if !ok {
			return false
		}
		denom := ms3.Dot(vtx.Normal, dir)
		if math32.Abs(denom) < 1e-8 {
			return false
		}
		dist := ms3.Dot(vtx.Normal, ms3.Sub(vtx.Pos, start)) / denom
		if dist < 0 {
			return false
		}
		res.Hit = true
		res.Type = Surface
		res.Distance = dist
		res.Posf = ms3.Add(start, ms3.Scale(dist, dir))
		res.Posi = field.WorldToVoxel(res.Posf)
		res.Normal = vtx.Normal
		return true
	})
	return res
}

// Raycast walks the voxel grid like RaycastFast but treats each
// Surface voxel as only a candidate: it samples sdf at the near and
// far intersections of the ray with the voxel's AABB, and if the
// signs differ, runs a midpoint search to refine the hit position and
// derives the final normal from the SDF gradient there.
func (e *Engine) Raycast(start, ray ms3.Vec, sdf SDF) RaycastResult {
	res := missResult()
	dirLen := ms3.Norm(ray)
	if dirLen < 1e-12 {
		return res
	}
	dir := vmath.SafeNormalize(ray)

	dda(start, ray, maxDDASteps, func(v field.VoxelCoord, t float32) bool {
		class := e.GetVoxel(v)
		if class == Unloaded {
			res.TouchedUnloaded = true
			return false
		}
		if class != Surface {
			return false
		}
		voxBox := ms3.Box{
			Min: field.VoxelToWorld(v),
			Max: ms3.AddScalar(1, field.VoxelToWorld(v)),
		}
		tNear, tFar, ok := rayBoxIntersect(start, dir, voxBox)
		if !ok {
			return false
		}
		if tNear < 0 {
			tNear = 0
		}
		pNear := ms3.Add(start, ms3.Scale(tNear, dir))
		pFar := ms3.Add(start, ms3.Scale(tFar, dir))
		vNear := sdf.Value(pNear)
		vFar := sdf.Value(pFar)
		if !vmath.SignBitDiffers(vNear, vFar) {
			return false
		}
		lo, hi := pNear, pFar
		loVal := vNear
		var mid ms3.Vec
		for i := 0; i < 10; i++ {
			mid = ms3.Scale(0.5, ms3.Add(lo, hi))
			mv := sdf.Value(mid)
			if vmath.SignBitDiffers(loVal, mv) {
				hi = mid
			} else {
				lo = mid
				loVal = mv
			}
		}
		res.Hit = true
		res.Type = Surface
		res.Posf = mid
		res.Distance = ms3.Norm(ms3.Sub(mid, start))
		res.Posi = field.WorldToVoxel(mid)
		res.Normal = vmath.SafeNormalize(sdf.Derivative(mid))
		return true
	})
	return res
}

// rayBoxIntersect returns the near/far parametric hit distances of
// ray (assumed normalized) against box, or ok=false if it misses.
func rayBoxIntersect(origin, dir ms3.Vec, box ms3.Box) (tNear, tFar float32, ok bool) {
	tMin := float32(math.Inf(-1))
	tMax := float32(math.Inf(1))
	axes := [3]struct{ o, d, lo, hi float32 }{
		{origin.X, dir.X, box.Min.X, box.Max.X},
		{origin.Y, dir.Y, box.Min.Y, box.Max.Y},
		{origin.Z, dir.Z, box.Min.Z, box.Max.Z},
	}
	for _, a := range axes {
		if math32.Abs(a.d) < 1e-12 {
			if a.o < a.lo || a.o > a.hi {
				return 0, 0, false
			}
			continue
		}
		t1 := (a.lo - a.o) / a.d
		t2 := (a.hi - a.o) / a.d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math32.Max(tMin, t1)
		tMax = math32.Min(tMax, t2)
		if tMin > tMax {
			return 0, 0, false
		}
	}
	return tMin, tMax, true
}

// SweepSphere enumerates every Surface vertex within the sphere's
// swept AABB (center to center+ray) and returns the earliest time any
// of them comes within radius of the sphere's path, solving a
// line-point distance and a quadratic for ray-vs-sphere entry time.
func (e *Engine) SweepSphere(sphere Sphere, ray ms3.Vec) (SweepHit, bool) {
	sweptMin := vmath.MinVec(sphere.Center, ms3.Add(sphere.Center, ray))
	sweptMax := vmath.MaxVec(sphere.Center, ms3.Add(sphere.Center, ray))
	box := ms3.Box{
		Min: ms3.AddScalar(-sphere.Radius, sweptMin),
		Max: ms3.AddScalar(sphere.Radius, sweptMax),
	}

	best := SweepHit{Distance: float32(math.Inf(1))}
	found := false
	rr := sphere.Radius * sphere.Radius
	rayLen := ms3.Norm(ray)

	e.forEachSurfaceVertexIn(box, func(vtx extract.Vertex) {
		// Quadratic for |center + t*ray - v|^2 = r^2.
		m := ms3.Sub(sphere.Center, vtx.Pos)
		a := ms3.Dot(ray, ray)
		if a < 1e-12 {
			if ms3.Dot(m, m) <= rr {
				found = true
				best = SweepHit{Distance: 0, Normal: vtx.Normal, Position: sphere.Center}
			}
			return
		}
		b := 2 * ms3.Dot(m, ray)
		c := ms3.Dot(m, m) - rr
		disc := b*b - 4*a*c
		if disc < 0 {
			return
		}
		sq := math32.Sqrt(disc)
		t := (-b - sq) / (2 * a)
		if t < 0 {
			t = (-b + sq) / (2 * a)
		}
		if t < 0 || t > 1 {
			return
		}
		dist := t * rayLen
		if !found || dist < best.Distance {
			found = true
			pos := ms3.Add(sphere.Center, ms3.Scale(t, ray))
			best = SweepHit{Distance: dist, Normal: vmath.SafeNormalize(ms3.Sub(pos, vtx.Pos)), Position: pos}
		}
	})
	return best, found
}

// PushOutSphere enumerates Surface vertices inside the sphere, sums
// their safe-normalized normals into a push direction, and returns
// that direction scaled by the largest per-vertex penetration depth
// (radius minus the vertex's distance from the center). The offset is
// not checked to clear every vertex.
func (e *Engine) PushOutSphere(sphere Sphere) (ms3.Vec, bool) {
	box := ms3.Box{
		Min: ms3.AddScalar(-sphere.Radius, sphere.Center),
		Max: ms3.AddScalar(sphere.Radius, sphere.Center),
	}
	var dirSum ms3.Vec
	type hitVert struct{ pos, normal ms3.Vec }
	var hits []hitVert

	e.forEachSurfaceVertexIn(box, func(vtx extract.Vertex) {
		d := ms3.Sub(sphere.Center, vtx.Pos)
		if ms3.Dot(d, d) > sphere.Radius*sphere.Radius {
			return
		}
		dirSum = ms3.Add(dirSum, vmath.SafeNormalize(vtx.Normal))
		hits = append(hits, hitVert{vtx.Pos, vtx.Normal})
	})
	if len(hits) == 0 {
		return ms3.Vec{}, false
	}
	dirHat := vmath.SafeNormalize(dirSum)
	maxProj := float32(0)
	for _, h := range hits {
		penetration := sphere.Radius - ms3.Norm(ms3.Sub(sphere.Center, h.pos))
		proj := penetration
		if proj > maxProj {
			maxProj = proj
		}
	}
	return ms3.Scale(maxProj, dirHat), true
}

// forEachSurfaceVertexIn walks every generated chunk whose bounds
// overlap box and calls fn for each Surface voxel's vertex inside box.
func (e *Engine) forEachSurfaceVertexIn(box ms3.Box, fn func(extract.Vertex)) {
	lo := field.ChunkOf(field.WorldToVoxel(box.Min))
	hi := field.ChunkOf(field.WorldToVoxel(box.Max))
	for cz := lo.Z; cz <= hi.Z; cz++ {
		for cy := lo.Y; cy <= hi.Y; cy++ {
			for cx := lo.X; cx <= hi.X; cx++ {
				coord := field.ChunkCoord{X: cx, Y: cy, Z: cz}
				h, ok := e.Store.Lookup(coord)
				if !ok {
					continue
				}
				c, ok := e.Store.Get(h)
				if !ok {
					continue
				}
				for _, v := range c.Vertices {
					if vmath.BoxContainsPoint(box, v.Pos) {
						fn(v)
					}
				}
			}
		}
	}
}
