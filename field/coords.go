package field

import "github.com/soypat/geometry/ms3"

// ChunkSize is the compile-time chunk edge length S, fixed per spec.
const ChunkSize = 32

// CacheHalo is the number of extra voxels of padding sampled around a
// chunk so trilinear interpolation near the boundary is valid.
const CacheHalo = 1

// VoxelCoord addresses a single voxel in the infinite integer lattice.
type VoxelCoord struct{ X, Y, Z int32 }

// ChunkCoord addresses a chunk; ChunkCoord{0,0,0} spans voxels
// [0,ChunkSize) on each axis, matching floor(voxel/ChunkSize).
type ChunkCoord struct{ X, Y, Z int32 }

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ChunkOf returns the chunk coordinate that owns v.
func ChunkOf(v VoxelCoord) ChunkCoord {
	return ChunkCoord{floorDiv(v.X, ChunkSize), floorDiv(v.Y, ChunkSize), floorDiv(v.Z, ChunkSize)}
}

// Origin returns the world-space position of this chunk's (0,0,0) voxel corner.
func (c ChunkCoord) Origin() ms3.Vec {
	return ms3.Vec{X: float32(c.X * ChunkSize), Y: float32(c.Y * ChunkSize), Z: float32(c.Z * ChunkSize)}
}

// Bounds returns the chunk's world-space AABB, unexpanded.
func (c ChunkCoord) Bounds() ms3.Box {
	o := c.Origin()
	return ms3.Box{Min: o, Max: ms3.AddScalar(ChunkSize, o)}
}

// Neighbor returns the chunk coordinate offset by (dx,dy,dz) chunks.
func (c ChunkCoord) Neighbor(dx, dy, dz int32) ChunkCoord {
	return ChunkCoord{c.X + dx, c.Y + dy, c.Z + dz}
}

// VoxelToWorld converts an integer voxel coordinate to its minimum corner in world space.
func VoxelToWorld(v VoxelCoord) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// WorldToVoxel floors a world position to its containing voxel.
func WorldToVoxel(p ms3.Vec) VoxelCoord {
	return VoxelCoord{int32(floorf(p.X)), int32(floorf(p.Y)), int32(floorf(p.Z))}
}

func floorf(v float32) float32 {
	i := int32(v)
	if float32(i) > v {
		i--
	}
	return float32(i)
}
