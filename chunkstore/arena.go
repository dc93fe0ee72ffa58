// Package chunkstore owns chunk memory: a fixed-capacity arena handing
// out stable integer handles instead of pointers, a coordinate-to-
// handle hash map, and the vertex-count map with its sentinel states.
// The arena is grounded on gleval/cpu.go's bufPool[T] acquire/release
// slot bookkeeping, generalized from "free/locked slice of buffers" to
// "free/locked slice of chunk records" plus a generation counter so a
// stale handle from a freed-and-reused slot is detected rather than
// silently aliasing a different chunk.
package chunkstore

import (
	"github.com/soypat/voxterra/extract"
	"github.com/soypat/voxterra/field"
)

// ChunkHandle is a generation-checked arena slot reference: the high 24
// bits are the slot index, the low 8 bits are the slot's generation at
// the time the handle was issued. The zero value is never issued and
// means "no chunk".
type ChunkHandle uint32

func makeHandle(index uint32, generation uint8) ChunkHandle {
	return ChunkHandle(index<<8 | uint32(generation))
}

func (h ChunkHandle) index() uint32      { return uint32(h) >> 8 }
func (h ChunkHandle) generation() uint8  { return uint8(h) }
func (h ChunkHandle) Valid() bool        { return h != 0 }

// checkWordValue is written into a chunk record's check word when its
// slot is acquired; Release zeroes the record, check word included.
// Nothing in this package reads the check word back.
const checkWordValue = 0xCDCDCDCD

// Chunk is one generated chunk's data: classification, baked light,
// vertex-index lookup, owned vertex/index arrays, and generated-list
// linkage.
type Chunk struct {
	Coord       field.ChunkCoord
	Class       [extract.S][extract.S][extract.S]extract.Class
	Light       [extract.S][extract.S][extract.S]uint8
	VertexIndex [extract.S][extract.S][extract.S]uint16
	Vertices    []extract.Vertex
	Indices     []uint16

	GeoDirty   bool
	LightDirty bool

	checkWord uint32
	genPrev   ChunkHandle
	genNext   ChunkHandle
	inList    bool
}

type slot struct {
	chunk      Chunk
	generation uint8
	used       bool
}

// Arena is a fixed-capacity pool of Chunk records.
type Arena struct {
	slots    []slot
	freeList []uint32
}

// NewArena allocates an arena with room for exactly capacity chunks.
// Slot 0 is reserved so the zero ChunkHandle can mean "no chunk".
func NewArena(capacity int) *Arena {
	a := &Arena{slots: make([]slot, capacity+1)}
	a.freeList = make([]uint32, 0, capacity)
	for i := capacity; i >= 1; i-- {
		a.freeList = append(a.freeList, uint32(i))
	}
	return a
}

// Acquire reserves a free slot and returns its handle and chunk
// pointer. ok is false when the arena is at capacity.
func (a *Arena) Acquire() (ChunkHandle, *Chunk, bool) {
	n := len(a.freeList)
	if n == 0 {
		return 0, nil, false
	}
	idx := a.freeList[n-1]
	a.freeList = a.freeList[:n-1]
	s := &a.slots[idx]
	s.used = true
	s.chunk = Chunk{checkWord: checkWordValue}
	return makeHandle(idx, s.generation), &s.chunk, true
}

// Release returns a chunk's slot to the free pool, invalidating every
// handle issued for it by bumping the generation counter.
func (a *Arena) Release(h ChunkHandle) bool {
	idx := h.index()
	if idx == 0 || int(idx) >= len(a.slots) {
		return false
	}
	s := &a.slots[idx]
	if !s.used || s.generation != h.generation() {
		return false
	}
	s.used = false
	s.generation++
	s.chunk = Chunk{}
	a.freeList = append(a.freeList, idx)
	return true
}

// Get resolves a handle to its chunk, failing if the handle is stale
// (the slot was released and reused) or out of range.
func (a *Arena) Get(h ChunkHandle) (*Chunk, bool) {
	idx := h.index()
	if idx == 0 || int(idx) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx]
	if !s.used || s.generation != h.generation() {
		return nil, false
	}
	return &s.chunk, true
}

// Len reports how many slots are currently in use.
func (a *Arena) Len() int {
	return len(a.slots) - 1 - len(a.freeList)
}

// Cap reports the arena's fixed capacity.
func (a *Arena) Cap() int { return len(a.slots) - 1 }
