package chunkstore

import "github.com/soypat/voxterra/field"

// VertexCount is either a sentinel or, when >= 0, the real number of
// vertices generated for a chunk coordinate.
type VertexCount int32

const (
	// CountEmpty marks a chunk coordinate as entirely exterior: no
	// mesh, never worth generating again until a dirty edit touches it.
	CountEmpty VertexCount = -1
	// CountInterior marks a chunk coordinate as entirely interior.
	CountInterior VertexCount = -2
	// CountDirty marks a coordinate that needs (re)generation.
	CountDirty VertexCount = -3
)

// IsSentinel reports whether c is one of the three sentinel states
// rather than a real vertex count.
func (c VertexCount) IsSentinel() bool {
	return c == CountEmpty || c == CountInterior || c == CountDirty
}

func zigzag(v int32) int64 {
	x := int64(v)
	return (x << 1) ^ (x >> 63)
}

func cantorPair(a, b int64) int64 {
	return (a+b)*(a+b+1)/2 + b
}

// cantorHash3 folds a signed chunk coordinate into a single int64 key
// via two nested applications of the Cantor pairing function, after a
// zigzag remap so negative axis components stay injective.
func cantorHash3(c field.ChunkCoord) int64 {
	return cantorPair(cantorPair(zigzag(c.X), zigzag(c.Y)), zigzag(c.Z))
}

// Store ties together the chunk arena, the coordinate hash map, the
// vertex-count map, and the doubly linked list of currently generated
// chunks. All methods are owner-thread-only.
type Store struct {
	arena      *Arena
	coords     map[int64]ChunkHandle
	coordOf    map[ChunkHandle]field.ChunkCoord
	counts     map[field.ChunkCoord]VertexCount
	genHead    ChunkHandle
	genTail    ChunkHandle
	genCount   int
}

// NewStore builds a store whose arena holds at most capacity chunks.
func NewStore(capacity int) *Store {
	return &Store{
		arena:   NewArena(capacity),
		coords:  make(map[int64]ChunkHandle, capacity),
		coordOf: make(map[ChunkHandle]field.ChunkCoord, capacity),
		counts:  make(map[field.ChunkCoord]VertexCount, capacity*2),
	}
}

// Lookup returns the handle of a generated chunk at coord, if any.
func (s *Store) Lookup(coord field.ChunkCoord) (ChunkHandle, bool) {
	h, ok := s.coords[cantorHash3(coord)]
	return h, ok
}

// Count returns the vertex-count map entry for coord, or (0, false) if
// there is no entry at all (distinct from every sentinel and from a
// real zero count, none of which this store ever stores as zero since
// a zero-vertex chunk is always recorded as CountEmpty or
// CountInterior instead).
func (s *Store) Count(coord field.ChunkCoord) (VertexCount, bool) {
	v, ok := s.counts[coord]
	return v, ok
}

// SetCount records a vertex-count map entry.
func (s *Store) SetCount(coord field.ChunkCoord, v VertexCount) {
	s.counts[coord] = v
}

// ClearCount removes a coordinate from the vertex-count map entirely
// (distinct from setting CountDirty: afterwards the coordinate has no
// entry, as if it had never been enumerated).
func (s *Store) ClearCount(coord field.ChunkCoord) {
	delete(s.counts, coord)
}

// Acquire allocates a chunk record for coord, links it into the
// coordinate map and the generated list, and returns its handle.
func (s *Store) Acquire(coord field.ChunkCoord) (ChunkHandle, *Chunk, bool) {
	h, c, ok := s.arena.Acquire()
	if !ok {
		return 0, nil, false
	}
	c.Coord = coord
	s.coords[cantorHash3(coord)] = h
	s.coordOf[h] = coord
	s.linkGenerated(h, c)
	return h, c, true
}

// Get resolves a handle to its chunk.
func (s *Store) Get(h ChunkHandle) (*Chunk, bool) {
	return s.arena.Get(h)
}

// AcquireAnon reserves an arena slot without registering it under any
// coordinate yet, for the scheduler's allocate-before-dispatch step:
// the coordinate it will eventually serve may still have an older,
// still-rendered chunk registered under it.
func (s *Store) AcquireAnon() (ChunkHandle, *Chunk, bool) {
	return s.arena.Acquire()
}

// ReleaseAnon returns a slot reserved by AcquireAnon that was never
// registered via Replace, without touching the coordinate map.
func (s *Store) ReleaseAnon(h ChunkHandle) {
	s.arena.Release(h)
}

// Replace registers h under coord as the generated chunk, freeing and
// unlinking whatever chunk was previously registered there (if any).
// It returns the previous chunk's GeoDirty flag so the caller can
// propagate it onto the new chunk (an edit may have re-dirtied the old
// chunk while the job that produced h was in flight).
func (s *Store) Replace(coord field.ChunkCoord, h ChunkHandle) (prevGeoDirty, hadPrev bool) {
	if oldH, ok := s.coords[cantorHash3(coord)]; ok {
		if oldC, ok2 := s.arena.Get(oldH); ok2 {
			prevGeoDirty = oldC.GeoDirty
			hadPrev = true
			s.unlinkGenerated(oldH, oldC)
		}
		delete(s.coords, cantorHash3(coord))
		delete(s.coordOf, oldH)
		s.arena.Release(oldH)
	}
	c, ok := s.arena.Get(h)
	if !ok {
		return prevGeoDirty, hadPrev
	}
	c.Coord = coord
	s.coords[cantorHash3(coord)] = h
	s.coordOf[h] = coord
	s.linkGenerated(h, c)
	return prevGeoDirty, hadPrev
}

// Free releases a generated chunk's memory, unlinks it from the
// coordinate map and generated list.
func (s *Store) Free(h ChunkHandle) {
	c, ok := s.arena.Get(h)
	if !ok {
		return
	}
	coord := c.Coord
	s.unlinkGenerated(h, c)
	delete(s.coords, cantorHash3(coord))
	delete(s.coordOf, h)
	s.arena.Release(h)
}

func (s *Store) linkGenerated(h ChunkHandle, c *Chunk) {
	c.inList = true
	c.genPrev = s.genTail
	c.genNext = 0
	if s.genTail.Valid() {
		if tail, ok := s.arena.Get(s.genTail); ok {
			tail.genNext = h
		}
	} else {
		s.genHead = h
	}
	s.genTail = h
	s.genCount++
}

func (s *Store) unlinkGenerated(h ChunkHandle, c *Chunk) {
	if !c.inList {
		return
	}
	if prev, ok := s.arena.Get(c.genPrev); ok {
		prev.genNext = c.genNext
	} else {
		s.genHead = c.genNext
	}
	if next, ok := s.arena.Get(c.genNext); ok {
		next.genPrev = c.genPrev
	} else {
		s.genTail = c.genPrev
	}
	c.inList = false
	s.genCount--
}

// GeneratedCount returns the number of chunks currently linked into
// the generated list.
func (s *Store) GeneratedCount() int { return s.genCount }

// ForEachGenerated walks the generated list from head to tail, calling
// fn with each chunk's handle and coordinate. fn must not mutate the
// list's linkage.
func (s *Store) ForEachGenerated(fn func(h ChunkHandle, coord field.ChunkCoord)) {
	h := s.genHead
	for h.Valid() {
		c, ok := s.arena.Get(h)
		if !ok {
			break
		}
		fn(h, c.Coord)
		h = c.genNext
	}
}

// Cap and Len expose the arena's fixed capacity and current usage.
func (s *Store) Cap() int { return s.arena.Cap() }
func (s *Store) Len() int { return s.arena.Len() }
