package chunkstore

import (
	"testing"

	"github.com/soypat/voxterra/field"
)

func TestStoreAcquireAndLookup(t *testing.T) {
	s := NewStore(4)
	coord := field.ChunkCoord{X: 1, Y: 2, Z: 3}
	h, c, ok := s.Acquire(coord)
	if !ok {
		t.Fatal("expected Acquire to succeed")
	}
	c.GeoDirty = true

	got, ok := s.Lookup(coord)
	if !ok || got != h {
		t.Fatalf("Lookup(%v) = (%v, %v), want (%v, true)", coord, got, ok, h)
	}
	if s.GeneratedCount() != 1 {
		t.Errorf("GeneratedCount() = %d, want 1", s.GeneratedCount())
	}
}

func TestStoreCountSentinels(t *testing.T) {
	s := NewStore(4)
	coord := field.ChunkCoord{X: 0, Y: 0, Z: 0}
	if _, ok := s.Count(coord); ok {
		t.Fatal("expected no count entry for an untouched coordinate")
	}
	s.SetCount(coord, CountDirty)
	v, ok := s.Count(coord)
	if !ok || !v.IsSentinel() || v != CountDirty {
		t.Errorf("Count() = (%v, %v), want (CountDirty, true)", v, ok)
	}
	s.ClearCount(coord)
	if _, ok := s.Count(coord); ok {
		t.Error("expected ClearCount to remove the entry")
	}
}

func TestStoreReplaceFreesPrevious(t *testing.T) {
	s := NewStore(4)
	coord := field.ChunkCoord{X: 5, Y: 5, Z: 5}
	hOld, cOld, _ := s.Acquire(coord)
	cOld.GeoDirty = true

	hNew, _, ok := s.AcquireAnon()
	if !ok {
		t.Fatal("expected AcquireAnon to succeed")
	}
	prevDirty, hadPrev := s.Replace(coord, hNew)
	if !hadPrev || !prevDirty {
		t.Errorf("Replace() = (%v, %v), want (true, true)", prevDirty, hadPrev)
	}
	if _, ok := s.Get(hOld); ok {
		t.Error("expected the old handle to be released after Replace")
	}
	got, ok := s.Lookup(coord)
	if !ok || got != hNew {
		t.Errorf("Lookup(%v) after Replace = (%v, %v), want (%v, true)", coord, got, ok, hNew)
	}
	if s.GeneratedCount() != 1 {
		t.Errorf("GeneratedCount() = %d, want 1 after replace", s.GeneratedCount())
	}
}

func TestStoreFreeUnlinksAndReleases(t *testing.T) {
	s := NewStore(4)
	coord := field.ChunkCoord{X: -1, Y: -2, Z: -3}
	h, _, _ := s.Acquire(coord)
	s.Free(h)
	if _, ok := s.Get(h); ok {
		t.Error("expected handle to be invalid after Free")
	}
	if _, ok := s.Lookup(coord); ok {
		t.Error("expected coordinate to be unregistered after Free")
	}
	if s.GeneratedCount() != 0 {
		t.Errorf("GeneratedCount() = %d, want 0 after Free", s.GeneratedCount())
	}
}

func TestStoreForEachGeneratedOrder(t *testing.T) {
	s := NewStore(4)
	coords := []field.ChunkCoord{{X: 0}, {X: 1}, {X: 2}}
	for _, c := range coords {
		s.Acquire(c)
	}
	var seen []field.ChunkCoord
	s.ForEachGenerated(func(h ChunkHandle, coord field.ChunkCoord) {
		seen = append(seen, coord)
	})
	if len(seen) != len(coords) {
		t.Fatalf("visited %d chunks, want %d", len(seen), len(coords))
	}
	for i, c := range coords {
		if seen[i] != c {
			t.Errorf("visit order[%d] = %v, want %v", i, seen[i], c)
		}
	}
}

func TestStoreAcquireAtCapacity(t *testing.T) {
	s := NewStore(1)
	if _, _, ok := s.Acquire(field.ChunkCoord{X: 0}); !ok {
		t.Fatal("expected first Acquire to succeed")
	}
	if _, _, ok := s.Acquire(field.ChunkCoord{X: 1}); ok {
		t.Fatal("expected Acquire to fail once the arena is at capacity")
	}
}
