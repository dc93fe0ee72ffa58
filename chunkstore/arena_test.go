package chunkstore

import "testing"

func TestArenaAcquireRelease(t *testing.T) {
	a := NewArena(2)
	if a.Cap() != 2 {
		t.Fatalf("Cap() = %d, want 2", a.Cap())
	}
	h1, c1, ok := a.Acquire()
	if !ok || c1 == nil {
		t.Fatal("expected first Acquire to succeed")
	}
	if !h1.Valid() {
		t.Fatal("expected a valid handle")
	}
	h2, _, ok := a.Acquire()
	if !ok {
		t.Fatal("expected second Acquire to succeed")
	}
	if _, _, ok := a.Acquire(); ok {
		t.Fatal("expected third Acquire to fail at capacity")
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %d, want 2", a.Len())
	}

	if !a.Release(h1) {
		t.Fatal("expected Release of live handle to succeed")
	}
	if a.Len() != 1 {
		t.Errorf("Len() after release = %d, want 1", a.Len())
	}
	if _, ok := a.Get(h1); ok {
		t.Error("expected stale handle to fail Get after release")
	}

	h3, _, ok := a.Acquire()
	if !ok {
		t.Fatal("expected Acquire to reuse the freed slot")
	}
	if h3 == h1 {
		t.Error("expected reused slot to carry a bumped generation, making the new handle differ")
	}
	_ = h2
}

func TestArenaZeroHandleInvalid(t *testing.T) {
	var h ChunkHandle
	if h.Valid() {
		t.Error("expected zero ChunkHandle to be invalid")
	}
	a := NewArena(1)
	if _, ok := a.Get(h); ok {
		t.Error("expected Get(0) to fail")
	}
	if a.Release(h) {
		t.Error("expected Release(0) to fail")
	}
}

func TestArenaReleaseUnknownHandle(t *testing.T) {
	a := NewArena(1)
	h, _, _ := a.Acquire()
	a.Release(h)
	if a.Release(h) {
		t.Error("expected double-release to fail")
	}
}
