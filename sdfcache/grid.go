// Package sdfcache caches a field.Snapshot over a chunk's voxel lattice
// so an extractor can take hundreds of trilinear lookups per chunk
// instead of re-evaluating the full primitive fold per sample: a
// single batched evaluation fills a dense halo-extended array, then
// every lookup is served by trilinear interpolation.
package sdfcache

import (
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxterra/field"
	"github.com/soypat/voxterra/vmath"
)

// Halo is the number of extra lattice planes sampled on every face
// beyond the chunk's own S voxels, so the cache covers lattice points
// -Halo through S+Halo-1 on each axis. Samples outside that range,
// such as the far endpoints of dual contouring's edges at S+1, fall
// back to direct snapshot evaluation.
const Halo = field.CacheHalo

// Grid holds one chunk's worth of cached SDF samples, extended by Halo
// on every side: D = S + 2*Halo samples per axis, indexed
// [-Halo, S+Halo).
type Grid struct {
	origin ms3.Vec // world position of voxel (0,0,0) in the owning chunk
	dim    int32   // D = S + 2*Halo
	values []float32

	snap *field.Snapshot

	// Bypass forces every Value call to re-evaluate the snapshot
	// directly instead of reading the cache, for parity testing
	// between cached and uncached extraction.
	Bypass bool

	posBuf  []ms3.Vec
	distBuf []float32
}

// New allocates a Grid sized for a chunk of edge length size.
func New(size int32) *Grid {
	d := size + 2*Halo
	return &Grid{
		dim:    d,
		values: make([]float32, d*d*d),
	}
}

// Fill performs the single batched evaluation covering every lattice
// point in the halo-extended chunk volume, replacing any previous
// contents. origin is the world position of the chunk's (0,0,0) voxel.
func (g *Grid) Fill(snap *field.Snapshot, origin ms3.Vec) error {
	g.snap = snap
	g.origin = origin
	n := int(g.dim) * int(g.dim) * int(g.dim)
	if cap(g.posBuf) < n {
		g.posBuf = make([]ms3.Vec, n)
		g.distBuf = make([]float32, n)
	}
	pos := g.posBuf[:n]
	dist := g.distBuf[:n]
	idx := 0
	for z := int32(0); z < g.dim; z++ {
		for y := int32(0); y < g.dim; y++ {
			for x := int32(0); x < g.dim; x++ {
				pos[idx] = ms3.Add(origin, ms3.Vec{
					X: float32(x - Halo),
					Y: float32(y - Halo),
					Z: float32(z - Halo),
				})
				idx++
			}
		}
	}
	if err := snap.Evaluate(pos, dist); err != nil {
		return err
	}
	copy(g.values, dist)
	return nil
}

// index maps a halo-relative local voxel coordinate (may be negative,
// up to -Halo, or up to dim-Halo-1) to its flat slice offset.
func (g *Grid) index(lx, ly, lz int32) int {
	x, y, z := lx+Halo, ly+Halo, lz+Halo
	d := g.dim
	return int(z*d*d + y*d + x)
}

func (g *Grid) inBounds(lx, ly, lz int32) bool {
	return lx >= -Halo && lx < g.dim-Halo && ly >= -Halo && ly < g.dim-Halo && lz >= -Halo && lz < g.dim-Halo
}

// SampleInt returns the exact cached value at an integer lattice point,
// relative to the chunk's own voxel origin.
func (g *Grid) SampleInt(lx, ly, lz int32) float32 {
	if g.Bypass || !g.inBounds(lx, ly, lz) {
		return g.snap.Value(ms3.Add(g.origin, ms3.Vec{X: float32(lx), Y: float32(ly), Z: float32(lz)}))
	}
	return g.values[g.index(lx, ly, lz)]
}

// Value returns the trilinearly interpolated value at a world position
// inside (or in the halo of) the cached chunk.
func (g *Grid) Value(p ms3.Vec) float32 {
	if g.Bypass {
		return g.snap.Value(p)
	}
	rel := ms3.Sub(p, g.origin)
	fx, fy, fz := rel.X, rel.Y, rel.Z
	x0, y0, z0 := floorInt(fx), floorInt(fy), floorInt(fz)
	tx, ty, tz := fx-float32(x0), fy-float32(y0), fz-float32(z0)

	if !g.inBounds(x0, y0, z0) || !g.inBounds(x0+1, y0+1, z0+1) {
		return g.snap.Value(p)
	}

	c000 := g.SampleInt(x0, y0, z0)
	c100 := g.SampleInt(x0+1, y0, z0)
	c010 := g.SampleInt(x0, y0+1, z0)
	c110 := g.SampleInt(x0+1, y0+1, z0)
	c001 := g.SampleInt(x0, y0, z0+1)
	c101 := g.SampleInt(x0+1, y0, z0+1)
	c011 := g.SampleInt(x0, y0+1, z0+1)
	c111 := g.SampleInt(x0+1, y0+1, z0+1)

	c00 := lerp(c000, c100, tx)
	c10 := lerp(c010, c110, tx)
	c01 := lerp(c001, c101, tx)
	c11 := lerp(c011, c111, tx)

	c0 := lerp(c00, c10, ty)
	c1 := lerp(c01, c11, ty)

	return lerp(c0, c1, tz)
}

// Derivative estimates the gradient from cached samples via the same
// two-sided, re-normalized central-difference rule the snapshot uses: a
// one-sided forward estimate and a one-sided backward estimate, each
// safe-normalized, then summed and re-normalized. Using cached Value
// lookups here is cheaper than re-evaluating the underlying field.
func (g *Grid) Derivative(p ms3.Vec) ms3.Vec {
	if g.Bypass {
		return g.snap.Derivative(p)
	}
	const h = 0.2
	v0 := g.Value(p)
	fwd := ms3.Vec{
		X: g.Value(ms3.Add(p, ms3.Vec{X: h})) - v0,
		Y: g.Value(ms3.Add(p, ms3.Vec{Y: h})) - v0,
		Z: g.Value(ms3.Add(p, ms3.Vec{Z: h})) - v0,
	}
	bwd := ms3.Vec{
		X: v0 - g.Value(ms3.Sub(p, ms3.Vec{X: h})),
		Y: v0 - g.Value(ms3.Sub(p, ms3.Vec{Y: h})),
		Z: v0 - g.Value(ms3.Sub(p, ms3.Vec{Z: h})),
	}
	nFwd := vmath.SafeNormalize(fwd)
	nBwd := vmath.SafeNormalize(bwd)
	return vmath.SafeNormalize(ms3.Add(nFwd, nBwd))
}

// Material passes straight through to the snapshot; material lookup is
// not hot-path enough inside extraction to warrant caching.
func (g *Grid) Material(p ms3.Vec) uint8 {
	return g.snap.Material(p)
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func floorInt(v float32) int32 {
	i := int32(v)
	if float32(i) > v {
		i--
	}
	return i
}
