// Package extract turns a cached SDF grid into the triangle mesh and
// per-voxel classification for one chunk using dual contouring: one
// vertex per voxel with a sign-changing edge, placed by a fixed
// quadratic-error-function gradient descent over a fixed S-voxel grid
// with a one-voxel halo.
package extract

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxterra/field"
	"github.com/soypat/voxterra/vmath"
)

// Class is a voxel's classification relative to the surface.
type Class uint8

const (
	ClassExterior Class = iota
	ClassInterior
	ClassSurface
	ClassUnloaded
)

// IndexSentinel marks "no vertex" in a chunk's voxel-to-vertex-index array.
const IndexSentinel = 0xFFFF

// S is the chunk edge length in voxels.
const S = field.ChunkSize

// halo is the number of extra voxel rows tested on each side of each
// axis, so voxels on the chunk boundary see their neighbours' edges.
const halo = 1

// Vertex is one dual-contouring output vertex, laid out to match the
// binary vertex format: position, normal, 4 info bytes, 4 one-hot
// material weight bytes.
type Vertex struct {
	Pos       ms3.Vec
	Normal    ms3.Vec
	Info      [4]byte
	Materials [4]byte
}

// Result is the output of extracting one chunk.
type Result struct {
	Vertices    []Vertex
	Indices     []uint16
	Class       [S][S][S]Class
	VertexIndex [S][S][S]uint16 // valid only where Class == ClassSurface
}

// Empty reports whether the chunk degenerated to all-exterior or
// all-interior (no geometry at all).
func (r *Result) Empty() bool { return len(r.Vertices) == 0 }

// Grid is the minimal interface extraction needs from the SDF cache:
// trilinear value, gradient, and dominant material at a world point.
type Grid interface {
	Value(p ms3.Vec) float32
	Derivative(p ms3.Vec) ms3.Vec
	Material(p ms3.Vec) uint8
}

type edgeCrossing struct {
	pos    ms3.Vec
	normal ms3.Vec
	valid  bool
}

// Scratch holds the per-extraction buffers an extractor reuses across
// calls instead of allocating per chunk, mirroring the job-owned
// scratch buffer convention.
type Scratch struct {
	// edges[axis] holds the crossing (if any) at the edge emanating
	// from cube-origin voxel v along that axis, indexed by (v+1) so
	// the halo's -1 row maps to 0. Axis 0=X, 1=Y, 2=Z.
	edges    [3][]edgeCrossing
	contribP []ms3.Vec
	contribN []ms3.Vec
	edgeDim  int32
}

// NewScratch allocates extraction scratch buffers for the standard chunk size.
func NewScratch() *Scratch {
	d := int32(S + 2*halo) // edge origins range over v in [-1, S], i.e. S+2 positions
	sc := &Scratch{edgeDim: d}
	n := int(d) * int(d) * int(d)
	for a := 0; a < 3; a++ {
		sc.edges[a] = make([]edgeCrossing, n)
	}
	sc.contribP = make([]ms3.Vec, 0, 12)
	sc.contribN = make([]ms3.Vec, 0, 12)
	return sc
}

func (sc *Scratch) edgeIndex(vx, vy, vz int32) int {
	d := sc.edgeDim
	x, y, z := vx+1, vy+1, vz+1
	return int(z*d*d + y*d + x)
}

func (sc *Scratch) reset() {
	for a := 0; a < 3; a++ {
		for i := range sc.edges[a] {
			sc.edges[a][i] = edgeCrossing{}
		}
	}
}

// Chunk extracts the mesh and classification for one chunk whose
// voxel (0,0,0) sits at world position origin. maxVerts/maxIndices are
// capacity bounds; exceeding either aborts extraction and reports
// Empty, per the capacity-check rule.
func Chunk(grid Grid, origin ms3.Vec, sc *Scratch, maxVerts, maxIndices int, out *Result) bool {
	sc.reset()
	*out = Result{}
	for z := range out.VertexIndex {
		for y := range out.VertexIndex[z] {
			for x := range out.VertexIndex[z][y] {
				out.VertexIndex[z][y][x] = IndexSentinel
			}
		}
	}

	// Pass 1: find every sign-changing edge in [-1, S]^3 (inclusive),
	// origin-cube convention: the edge tested at voxel v extends from
	// v toward v+e_axis.
	for vz := int32(-1); vz <= S; vz++ {
		for vy := int32(-1); vy <= S; vy++ {
			for vx := int32(-1); vx <= S; vx++ {
				o := ms3.Add(origin, ms3.Vec{X: float32(vx), Y: float32(vy), Z: float32(vz)})
				v0 := vmath.NudgeZero(grid.Value(o))
				findEdge(grid, sc, vx, vy, vz, 0, o, v0, ms3.Vec{X: 1})
				findEdge(grid, sc, vx, vy, vz, 1, o, v0, ms3.Vec{Y: 1})
				findEdge(grid, sc, vx, vy, vz, 2, o, v0, ms3.Vec{Z: 1})
			}
		}
	}

	// Pass 2: gather edges into each output voxel's QEF, classify, place.
	for wz := int32(0); wz < S; wz++ {
		for wy := int32(0); wy < S; wy++ {
			for wx := int32(0); wx < S; wx++ {
				sc.contribP = sc.contribP[:0]
				sc.contribN = sc.contribN[:0]
				gatherVoxelEdges(sc, wx, wy, wz, &sc.contribP, &sc.contribN)

				if len(sc.contribP) == 0 {
					center := ms3.Add(origin, ms3.Vec{X: float32(wx) + 0.5, Y: float32(wy) + 0.5, Z: float32(wz) + 0.5})
					if grid.Value(center) > 0 {
						out.Class[wz][wy][wx] = ClassExterior
					} else {
						out.Class[wz][wy][wx] = ClassInterior
					}
					continue
				}

				out.Class[wz][wy][wx] = ClassSurface
				if len(out.Vertices) >= maxVerts {
					*out = Result{}
					return false
				}
				pos := placeVertex(sc.contribP, sc.contribN)
				normal := averageNormal(sc.contribN)
				mat := grid.Material(pos)
				vtx := Vertex{Pos: pos, Normal: normal}
				vtx.Info[0] = bakedLightByte
				vtx.Materials[mat%4] = 255
				idx := uint16(len(out.Vertices))
				out.Vertices = append(out.Vertices, vtx)
				out.VertexIndex[wz][wy][wx] = idx
			}
		}
	}

	if !emitQuads(grid, sc, origin, out, maxIndices) {
		*out = Result{}
		return false
	}
	return true
}

// bakedLightByte is the placeholder constant lighting value, per the
// non-goal that excludes real global illumination: skyBrightness (1.0)
// times 0.7125 times 0.85, quantized to a byte (154.43 truncated).
const bakedLightByte byte = 154

func findEdge(grid Grid, sc *Scratch, vx, vy, vz, axis int32, o ms3.Vec, v0 float32, dir ms3.Vec) {
	other := ms3.Add(o, dir)
	v1 := vmath.NudgeZero(grid.Value(other))
	if !vmath.SignBitDiffers(v0, v1) {
		return
	}
	lo, hi := o, other
	loVal, hiVal := v0, v1
	if loVal > 0 {
		lo, hi = hi, lo
		loVal, hiVal = hiVal, loVal
	}
	var mid ms3.Vec
	for i := 0; i < 16; i++ {
		mid = ms3.Scale(0.5, ms3.Add(lo, hi))
		mv := grid.Value(mid)
		if math32.Abs(mv) < 1e-3 {
			break
		}
		if mv > 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	n := vmath.SafeNormalize(grid.Derivative(mid))
	idx := sc.edgeIndex(vx, vy, vz)
	sc.edges[axis][idx] = edgeCrossing{pos: mid, normal: n, valid: true}
}

func (sc *Scratch) at(axis, vx, vy, vz int32) edgeCrossing {
	if vx < -1 || vy < -1 || vz < -1 || vx > S || vy > S || vz > S {
		return edgeCrossing{}
	}
	return sc.edges[axis][sc.edgeIndex(vx, vy, vz)]
}

// gatherVoxelEdges collects the crossings of every edge incident to
// output voxel w, per the EdgeNeighborsX/Y/Z sharing rule: an edge
// along axis a owned (origin-convention) by cube u is shared by the
// four voxels u minus every combination of unit steps along the two
// axes other than a. Equivalently, voxel w is an owner-offset away
// from up to four candidate edge-owning cubes per axis.
func gatherVoxelEdges(sc *Scratch, wx, wy, wz int32, ps *[]ms3.Vec, ns *[]ms3.Vec) {
	add := func(e edgeCrossing) {
		if e.valid {
			*ps = append(*ps, e.pos)
			*ns = append(*ns, e.normal)
		}
	}
	// X-axis edges: owners are w, w+(0,1,0), w+(0,0,1), w+(0,1,1).
	add(sc.at(0, wx, wy, wz))
	add(sc.at(0, wx, wy+1, wz))
	add(sc.at(0, wx, wy, wz+1))
	add(sc.at(0, wx, wy+1, wz+1))
	// Y-axis edges: owners are w, w+(1,0,0), w+(0,0,1), w+(1,0,1).
	add(sc.at(1, wx, wy, wz))
	add(sc.at(1, wx+1, wy, wz))
	add(sc.at(1, wx, wy, wz+1))
	add(sc.at(1, wx+1, wy, wz+1))
	// Z-axis edges: owners are w, w+(1,0,0), w+(0,1,0), w+(1,1,0).
	add(sc.at(2, wx, wy, wz))
	add(sc.at(2, wx+1, wy, wz))
	add(sc.at(2, wx, wy+1, wz))
	add(sc.at(2, wx+1, wy+1, wz))
}

// placeVertex is the dual-contouring quadratic-error minimizer: seed
// at the centroid of pts, then repeat 10 fixed iterations of
// c <- c + 0.5 * n_j * (n_j . (p_j - c)) over every (point, normal)
// pair. The 0.5 factor and iteration count are fixed, not tunable.
func placeVertex(pts, normals []ms3.Vec) ms3.Vec {
	var c ms3.Vec
	for _, p := range pts {
		c = ms3.Add(c, p)
	}
	c = ms3.Scale(1/float32(len(pts)), c)
	for iter := 0; iter < 10; iter++ {
		for j, p := range pts {
			n := normals[j]
			d := ms3.Dot(n, ms3.Sub(p, c))
			c = ms3.Add(c, ms3.Scale(0.5*d, n))
		}
	}
	return c
}

func averageNormal(ns []ms3.Vec) ms3.Vec {
	var n ms3.Vec
	for _, v := range ns {
		n = ms3.Add(n, v)
	}
	return vmath.SafeNormalize(n)
}

// emitQuads walks every active edge once more and, for edges fully
// inside [0,S)^3's owning voxels, emits the quad connecting the four
// sharing voxels' vertices, winding it from the sign of the edge's low
// endpoint so faces point outward. It reports false if emitting a quad
// would push out.Indices past maxIndices, in which case the caller
// must discard the whole extraction.
func emitQuads(grid Grid, sc *Scratch, origin ms3.Vec, out *Result, maxIndices int) bool {
	quad := func(w0, w1, w2, w3 [3]int32, flip bool) bool {
		idx := [4]uint16{
			out.VertexIndex[w0[2]][w0[1]][w0[0]],
			out.VertexIndex[w1[2]][w1[1]][w1[0]],
			out.VertexIndex[w2[2]][w2[1]][w2[0]],
			out.VertexIndex[w3[2]][w3[1]][w3[0]],
		}
		for _, ix := range idx {
			if ix == IndexSentinel {
				return true
			}
		}
		if len(out.Indices)+6 > maxIndices {
			return false
		}
		if flip {
			idx[0], idx[3] = idx[3], idx[0]
			idx[1], idx[2] = idx[2], idx[1]
		}
		out.Indices = append(out.Indices,
			idx[0], idx[1], idx[2],
			idx[2], idx[3], idx[0],
		)
		return true
	}
	inRange := func(v int32) bool { return v >= 0 && v < S }

	for vz := int32(0); vz <= S; vz++ {
		for vy := int32(0); vy <= S; vy++ {
			for vx := int32(0); vx <= S; vx++ {
				// X-axis edge at origin (vx,vy,vz): shared by voxels at
				// (vx,{vy,vy-1},{vz,vz-1}); all four must be in-range.
				if e := sc.at(0, vx, vy, vz); e.valid && inRange(vx) && inRange(vy) && inRange(vy-1) && inRange(vz) && inRange(vz-1) {
					w0 := [3]int32{vx, vy, vz}
					w1 := [3]int32{vx, vy - 1, vz}
					w2 := [3]int32{vx, vy - 1, vz - 1}
					w3 := [3]int32{vx, vy, vz - 1}
					flip := grid.Value(ms3.Add(origin, ms3.Vec{X: float32(vx), Y: float32(vy), Z: float32(vz)})) > 0
					if !quad(w0, w1, w2, w3, flip) {
						return false
					}
				}
				if e := sc.at(1, vx, vy, vz); e.valid && inRange(vy) && inRange(vx) && inRange(vx-1) && inRange(vz) && inRange(vz-1) {
					w0 := [3]int32{vx, vy, vz}
					w1 := [3]int32{vx, vy, vz - 1}
					w2 := [3]int32{vx - 1, vy, vz - 1}
					w3 := [3]int32{vx - 1, vy, vz}
					flip := grid.Value(ms3.Add(origin, ms3.Vec{X: float32(vx), Y: float32(vy), Z: float32(vz)})) > 0
					if !quad(w0, w1, w2, w3, flip) {
						return false
					}
				}
				if e := sc.at(2, vx, vy, vz); e.valid && inRange(vz) && inRange(vx) && inRange(vx-1) && inRange(vy) && inRange(vy-1) {
					w0 := [3]int32{vx, vy, vz}
					w1 := [3]int32{vx - 1, vy, vz}
					w2 := [3]int32{vx - 1, vy - 1, vz}
					w3 := [3]int32{vx, vy - 1, vz}
					flip := grid.Value(ms3.Add(origin, ms3.Vec{X: float32(vx), Y: float32(vy), Z: float32(vz)})) > 0
					if !quad(w0, w1, w2, w3, flip) {
						return false
					}
				}
			}
		}
	}
	return true
}
