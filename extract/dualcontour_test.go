package extract

import (
	"testing"

	"github.com/soypat/geometry/ms3"
)

// planeGrid is a flat horizontal surface at z=planeZ: negative below,
// positive above, gradient straight up. Simple enough to reason about
// classification and edge placement without a full SDF composition.
type planeGrid struct {
	planeZ   float32
	material uint8
}

func (g planeGrid) Value(p ms3.Vec) float32      { return p.Z - g.planeZ }
func (g planeGrid) Derivative(p ms3.Vec) ms3.Vec { return ms3.Vec{Z: 1} }
func (g planeGrid) Material(p ms3.Vec) uint8     { return g.material }

func TestChunkExtractsFlatPlane(t *testing.T) {
	grid := planeGrid{planeZ: 16, material: 2}
	sc := NewScratch()
	var res Result
	ok := Chunk(grid, ms3.Vec{}, sc, 1<<20, 1<<20, &res)
	if !ok {
		t.Fatal("Chunk reported capacity abort unexpectedly")
	}
	if res.Empty() {
		t.Fatal("expected a non-empty mesh for a plane bisecting the chunk")
	}
	if len(res.Indices)%6 != 0 {
		t.Errorf("expected indices in multiples of 6 (one quad each), got %d", len(res.Indices))
	}
	if res.Class[0][0][0] != ClassInterior {
		t.Errorf("expected voxel well below the plane to be Interior, got %v", res.Class[0][0][0])
	}
	if res.Class[S-1][0][0] != ClassExterior {
		t.Errorf("expected voxel well above the plane to be Exterior, got %v", res.Class[S-1][0][0])
	}
	if res.Class[15][0][0] != ClassSurface {
		t.Errorf("expected voxel straddling the plane to be Surface, got %v", res.Class[15][0][0])
	}
	idx := res.VertexIndex[15][0][0]
	if idx == IndexSentinel {
		t.Fatal("expected a vertex index for the surface voxel")
	}
	v := res.Vertices[idx]
	if v.Pos.Z < 15 || v.Pos.Z > 17 {
		t.Errorf("expected placed vertex near the plane, got Z=%v", v.Pos.Z)
	}
	if v.Materials[2%4] != 255 {
		t.Errorf("expected material 2's one-hot weight set, got %+v", v.Materials)
	}
}

func TestChunkAbortsOnVertexCapacity(t *testing.T) {
	grid := planeGrid{planeZ: 16, material: 0}
	sc := NewScratch()
	var res Result
	ok := Chunk(grid, ms3.Vec{}, sc, 0, 1<<20, &res)
	if ok {
		t.Fatal("expected capacity abort with maxVerts=0")
	}
	if !res.Empty() {
		t.Error("expected result to be reset to empty after a capacity abort")
	}
}

func TestChunkAbortsOnIndexCapacity(t *testing.T) {
	grid := planeGrid{planeZ: 16, material: 0}
	sc := NewScratch()
	var res Result
	// A plane bisecting the chunk emits far more than one quad's worth
	// of indices; a tiny maxIndices forces an abort inside emitQuads.
	ok := Chunk(grid, ms3.Vec{}, sc, 1<<20, 5, &res)
	if ok {
		t.Fatal("expected capacity abort with maxIndices=5")
	}
	if !res.Empty() {
		t.Error("expected result to be reset to empty after an index-capacity abort")
	}
}

func TestChunkAllExteriorIsEmpty(t *testing.T) {
	grid := planeGrid{planeZ: -1000, material: 0}
	sc := NewScratch()
	var res Result
	ok := Chunk(grid, ms3.Vec{}, sc, 1<<20, 1<<20, &res)
	if !ok {
		t.Fatal("Chunk reported capacity abort unexpectedly")
	}
	if !res.Empty() {
		t.Error("expected no geometry when the whole chunk is above the plane (all exterior)")
	}
	if res.Class[0][0][0] != ClassExterior {
		t.Errorf("expected Exterior classification, got %v", res.Class[0][0][0])
	}
}
