package query

import (
	"math"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxterra/chunkstore"
	"github.com/soypat/voxterra/extract"
	"github.com/soypat/voxterra/field"
)

type planeSDF struct{ z0 float32 }

func (p planeSDF) Value(v ms3.Vec) float32      { return v.Z - p.z0 }
func (p planeSDF) Derivative(v ms3.Vec) ms3.Vec { return ms3.Vec{Z: 1} }

func TestGetVoxelAndCollision(t *testing.T) {
	store := chunkstore.NewStore(4)
	_, c, ok := store.Acquire(field.ChunkCoord{})
	if !ok {
		t.Fatal("expected Acquire to succeed")
	}
	c.Class[5][5][5] = extract.ClassSurface

	e := New(store)
	if got := e.GetVoxel(field.VoxelCoord{X: 5, Y: 5, Z: 5}); got != Surface {
		t.Errorf("GetVoxel(5,5,5) = %v, want Surface", got)
	}
	if got := e.GetVoxel(field.VoxelCoord{X: 0, Y: 0, Z: 0}); got != Exterior {
		t.Errorf("GetVoxel(0,0,0) = %v, want Exterior", got)
	}
	if got := e.GetVoxel(field.VoxelCoord{X: 5000, Y: 0, Z: 0}); got != Unloaded {
		t.Errorf("GetVoxel far away = %v, want Unloaded", got)
	}

	set := DefaultCollisionSet()
	if !e.GetCollision(field.VoxelCoord{X: 5, Y: 5, Z: 5}, set) {
		t.Error("expected Surface voxel to report solid under default collision set")
	}
	if e.GetCollision(field.VoxelCoord{X: 0, Y: 0, Z: 0}, set) {
		t.Error("expected Exterior voxel to report non-solid")
	}
}

func TestRaycastFastHitsStoredVertex(t *testing.T) {
	store := chunkstore.NewStore(4)
	_, c, _ := store.Acquire(field.ChunkCoord{})
	c.Class[5][5][5] = extract.ClassSurface
	c.VertexIndex[5][5][5] = 0
	c.Vertices = []extract.Vertex{{
		Pos:    ms3.Vec{X: 5.5, Y: 5.5, Z: 5.5},
		Normal: ms3.Vec{Z: 1},
	}}

	e := New(store)
	start := ms3.Vec{X: 5.5, Y: 5.5, Z: -10}
	ray := ms3.Vec{Z: 1}
	res := e.RaycastFast(start, ray, true)

	if !res.Hit {
		t.Fatalf("expected a hit, touchedUnloaded=%v", res.TouchedUnloaded)
	}
	if math.Abs(float64(res.Distance-15.5)) > 0.01 {
		t.Errorf("Distance = %v, want ~15.5", res.Distance)
	}
	if res.Normal != (ms3.Vec{Z: 1}) {
		t.Errorf("Normal = %+v, want {0,0,1}", res.Normal)
	}
}

func TestRaycastMissReportsInfinities(t *testing.T) {
	store := chunkstore.NewStore(4)
	e := New(store)
	res := e.RaycastFast(ms3.Vec{}, ms3.Vec{Z: 1}, true)
	if res.Hit {
		t.Fatal("expected a miss against an empty store")
	}
	if !math.IsInf(float64(res.Distance), 1) {
		t.Errorf("Distance on miss = %v, want +Inf", res.Distance)
	}
}

func TestRaycastRefinesAgainstSDF(t *testing.T) {
	store := chunkstore.NewStore(4)
	_, c, _ := store.Acquire(field.ChunkCoord{})
	c.Class[15][5][5] = extract.ClassSurface

	e := New(store)
	sdf := planeSDF{z0: 16}
	start := ms3.Vec{X: 5.5, Y: 5.5, Z: -5}
	ray := ms3.Vec{Z: 1}
	res := e.Raycast(start, ray, sdf)

	if !res.Hit {
		t.Fatalf("expected a hit, touchedUnloaded=%v", res.TouchedUnloaded)
	}
	if math.Abs(float64(res.Posf.Z-16)) > 0.01 {
		t.Errorf("Posf.Z = %v, want ~16", res.Posf.Z)
	}
	if res.Normal.Z <= 0 {
		t.Errorf("expected an upward-facing normal, got %+v", res.Normal)
	}
}

func TestSweepSphereFindsEarliestHit(t *testing.T) {
	store := chunkstore.NewStore(4)
	_, c, _ := store.Acquire(field.ChunkCoord{})
	c.Vertices = []extract.Vertex{{
		Pos:    ms3.Vec{X: 10},
		Normal: ms3.Vec{X: -1},
	}}

	e := New(store)
	hit, ok := e.SweepSphere(Sphere{Center: ms3.Vec{}, Radius: 1}, ms3.Vec{X: 20})
	if !ok {
		t.Fatal("expected a sweep hit")
	}
	if math.Abs(float64(hit.Distance-9)) > 0.1 {
		t.Errorf("Distance = %v, want ~9", hit.Distance)
	}
}

func TestSweepSphereNoHitWhenPathClear(t *testing.T) {
	store := chunkstore.NewStore(4)
	_, c, _ := store.Acquire(field.ChunkCoord{})
	c.Vertices = []extract.Vertex{{Pos: ms3.Vec{X: 1000}, Normal: ms3.Vec{X: -1}}}

	e := New(store)
	_, ok := e.SweepSphere(Sphere{Center: ms3.Vec{}, Radius: 1}, ms3.Vec{X: 1})
	if ok {
		t.Error("expected no hit when the swept path never reaches the vertex")
	}
}

func TestPushOutSphereResolvesSinglePenetration(t *testing.T) {
	store := chunkstore.NewStore(4)
	_, c, _ := store.Acquire(field.ChunkCoord{})
	c.Vertices = []extract.Vertex{{
		Pos:    ms3.Vec{X: 1},
		Normal: ms3.Vec{X: 1},
	}}

	e := New(store)
	offset, ok := e.PushOutSphere(Sphere{Center: ms3.Vec{}, Radius: 2})
	if !ok {
		t.Fatal("expected a push-out resolution")
	}
	if math.Abs(float64(offset.X-1)) > 0.01 || offset.Y != 0 || offset.Z != 0 {
		t.Errorf("offset = %+v, want ~(1,0,0)", offset)
	}
}

func TestPushOutSphereNoPenetration(t *testing.T) {
	store := chunkstore.NewStore(4)
	_, c, _ := store.Acquire(field.ChunkCoord{})
	c.Vertices = []extract.Vertex{{Pos: ms3.Vec{X: 1000}, Normal: ms3.Vec{X: 1}}}

	e := New(store)
	if _, ok := e.PushOutSphere(Sphere{Center: ms3.Vec{}, Radius: 2}); ok {
		t.Error("expected no push-out when nothing is inside the sphere")
	}
}
