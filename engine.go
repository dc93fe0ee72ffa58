// Package voxterra wires the field, chunkstore, job, scheduler, and
// query packages into a single facade: add/edit/remove SDF shapes,
// drive the per-frame scheduler, and answer voxel/ray/sphere queries
// against whatever has been generated so far.
package voxterra

import (
	"errors"
	"fmt"
	"sync"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxterra/chunkstore"
	"github.com/soypat/voxterra/field"
	"github.com/soypat/voxterra/job"
	"github.com/soypat/voxterra/query"
	"github.com/soypat/voxterra/scheduler"
	"github.com/soypat/voxterra/vmath"
)

// ShapeSpec is the parameter bundle for AddShape, covering every
// primitive Kind in one struct so callers don't need four entry
// points. Only the fields relevant to Kind are read.
type ShapeSpec struct {
	Kind      field.Kind
	Transform field.Transform
	Material  uint8
	Blend     field.BlendOp
	SmoothK   float32

	BoxHalfExtents ms3.Vec
	BoxRound       float32

	CylinderRadius     float32
	CylinderHalfHeight float32
	CylinderRound      float32

	SphereRadius float32

	HeightMapPeriod  float32
	HeightMapAmp     float32
	HeightMapSeed    int64
	HeightMapOctaves int32
}

// Engine is the facade over a single voxel world: one Field, one
// chunk Store, one worker Pool, the Scheduler driving them, and the
// Query layer answering questions about the result.
type Engine struct {
	Field     *field.Field
	Store     *chunkstore.Store
	Pool      *job.Pool
	Scheduler *scheduler.Scheduler
	Query     *query.Engine
	Collision query.CollisionSet
	Logger    Logger

	cfg Config

	mu   sync.Mutex
	errs []error
}

// New builds an Engine from cfg. renderer may be nil (headless); it is
// only ever called when cfg.RenderEnabled is true. logger may be nil,
// in which case log.Default() backs it.
func New(cfg Config, renderer job.Renderer, logger Logger) *Engine {
	cfg.sanitize()
	if logger == nil {
		logger = defaultLogger()
	}
	if !cfg.RenderEnabled {
		renderer = nil
	}

	f := field.New()
	store := chunkstore.NewStore(cfg.ChunkCapacity)
	pool := job.NewPool(cfg.WorkerThreadCount, cfg.QueueDepth)
	sched := scheduler.New(store, f, pool, renderer, scheduler.Config{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		MaxChunkVerts:     cfg.MaxChunkVerts,
		MaxChunkIndices:   cfg.MaxChunkIndices,
	})

	return &Engine{
		Field:     f,
		Store:     store,
		Pool:      pool,
		Scheduler: sched,
		Query:     query.New(store),
		Collision: query.DefaultCollisionSet(),
		Logger:    logger,
		cfg:       cfg,
	}
}

// Close stops the worker pool's goroutines. Safe to call once; a
// no-op for a zero-thread pool.
func (e *Engine) Close() {
	e.Pool.Close()
}

func (e *Engine) noteErr(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
}

// Err returns every non-fatal shape-creation error accumulated since
// the last call to Err, joined into one error (nil if none occurred).
// AddShape/UpdateShape* still return their own error immediately;
// this exists for callers chaining many additions who would rather
// check once at the end.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := errors.Join(e.errs...)
	e.errs = nil
	return err
}

// AddShape registers a new SDF primitive and returns its handle.
func (e *Engine) AddShape(spec ShapeSpec) (field.ShapeHandle, error) {
	var h field.ShapeHandle
	var err error
	switch spec.Kind {
	case field.KindBox:
		h, err = e.Field.AddBox(spec.Transform, spec.BoxHalfExtents, spec.BoxRound, spec.Material, spec.Blend, spec.SmoothK)
	case field.KindCylinder:
		h, err = e.Field.AddCylinder(spec.Transform, spec.CylinderRadius, spec.CylinderHalfHeight, spec.CylinderRound, spec.Material, spec.Blend, spec.SmoothK)
	case field.KindSphere:
		h, err = e.Field.AddSphere(spec.Transform, spec.SphereRadius, spec.Material, spec.Blend, spec.SmoothK)
	case field.KindHeightMap:
		h, err = e.Field.AddHeightMap(spec.Transform, spec.HeightMapPeriod, spec.HeightMapAmp, spec.HeightMapSeed, spec.HeightMapOctaves, spec.Material, spec.Blend, spec.SmoothK)
	default:
		err = fmt.Errorf("voxterra: unknown shape kind %d", spec.Kind)
	}
	e.noteErr(err)
	return h, err
}

// UpdateShapeTransform sets a primitive's transform and marks it dirty.
func (e *Engine) UpdateShapeTransform(h field.ShapeHandle, xform field.Transform) error {
	return e.Field.UpdateShapeTransform(h, xform)
}

// UpdateShapeMaterial sets a primitive's material tag and marks it dirty.
func (e *Engine) UpdateShapeMaterial(h field.ShapeHandle, material uint8) error {
	return e.Field.UpdateShapeMaterial(h, material)
}

// UpdateShapeBlend sets a primitive's blend operator and marks it dirty.
func (e *Engine) UpdateShapeBlend(h field.ShapeHandle, op field.BlendOp, smoothK float32) error {
	return e.Field.UpdateShapeBlend(h, op, smoothK)
}

// RemoveShape marks a primitive for removal on the next commit.
func (e *Engine) RemoveShape(h field.ShapeHandle) error {
	return e.Field.RemoveShape(h)
}

// GetShapeAABB returns a primitive's current committed world AABB.
func (e *Engine) GetShapeAABB(h field.ShapeHandle) (ms3.Box, error) {
	return e.Field.GetShapeAABB(h)
}

// Update runs one frame of the scheduler centered on viewerCenter.
func (e *Engine) Update(viewerCenter ms3.Vec, viewRadius float32) {
	e.Scheduler.Update(viewerCenter, viewRadius)
}

// Render pushes every generated chunk within viewRadius of
// viewerCenter that has not been pushed by an earlier Render call
// (LightDirty still set) to renderer, then clears LightDirty. Chunks
// are also uploaded as soon as the scheduler produces them, and that
// upload leaves LightDirty set, so the first Render after a chunk is
// produced uploads it again. Render exists for a renderer
// that needs to (re)synchronize its own state, e.g. after attaching
// mid-session.
func (e *Engine) Render(renderer job.Renderer, viewerCenter ms3.Vec, viewRadius float32) {
	if renderer == nil || !e.cfg.RenderEnabled {
		return
	}
	e.Store.ForEachGenerated(func(h chunkstore.ChunkHandle, coord field.ChunkCoord) {
		if !sphereTouchesChunk(viewerCenter, viewRadius, coord) {
			return
		}
		c, ok := e.Store.Get(h)
		if !ok || !c.LightDirty {
			return
		}
		if err := renderer.UploadChunk(coord, c.Vertices, c.Indices); err != nil {
			e.Logger.Printf("voxterra: upload chunk %+v failed: %v", coord, err)
			return
		}
		c.LightDirty = false
	})
}

func sphereTouchesChunk(center ms3.Vec, radius float32, coord field.ChunkCoord) bool {
	b := coord.Bounds()
	nearest := ms3.Vec{
		X: vmath.Clampf(center.X, b.Min.X, b.Max.X),
		Y: vmath.Clampf(center.Y, b.Min.Y, b.Max.Y),
		Z: vmath.Clampf(center.Z, b.Min.Z, b.Max.Z),
	}
	d := ms3.Sub(center, nearest)
	return ms3.Dot(d, d) <= radius*radius
}

// GetVoxel classifies voxel v.
func (e *Engine) GetVoxel(v field.VoxelCoord) query.BlockType {
	return e.Query.GetVoxel(v)
}

// GetCollision reports whether the voxel at v blocks movement, per
// the Engine's configured Collision set.
func (e *Engine) GetCollision(v field.VoxelCoord) bool {
	return e.Query.GetCollision(v, e.Collision)
}

// RaycastFast returns on the first Surface voxel without sampling the SDF.
func (e *Engine) RaycastFast(start, ray ms3.Vec, allowSourceCollision bool) query.RaycastResult {
	return e.Query.RaycastFast(start, ray, allowSourceCollision)
}

// Raycast is the SDF-refined variant of RaycastFast.
func (e *Engine) Raycast(start, ray ms3.Vec) query.RaycastResult {
	return e.Query.Raycast(start, ray, e.Field.Snapshot())
}

// SweepSphere tests a moving sphere against generated surface geometry.
func (e *Engine) SweepSphere(sphere query.Sphere, ray ms3.Vec) (query.SweepHit, bool) {
	return e.Query.SweepSphere(sphere, ray)
}

// PushOutSphere resolves a static sphere's penetration into generated
// surface geometry, if any.
func (e *Engine) PushOutSphere(sphere query.Sphere) (ms3.Vec, bool) {
	return e.Query.PushOutSphere(sphere)
}
