package sdfcache

import (
	"math"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxterra/field"
)

func sphereSnapshot(t *testing.T, radius float32) *field.Snapshot {
	t.Helper()
	f := field.New()
	if _, err := f.AddSphere(field.Identity(), radius, 0, field.Union, 0); err != nil {
		t.Fatalf("AddSphere: %v", err)
	}
	f.Commit()
	return f.Snapshot()
}

func TestGridFillMatchesSnapshotOnLattice(t *testing.T) {
	snap := sphereSnapshot(t, 8)
	g := New(field.ChunkSize)
	origin := ms3.Vec{}
	if err := g.Fill(snap, origin); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	for _, p := range []ms3.Vec{{}, {X: 1, Y: 2, Z: 3}, {X: -1}, {X: float32(field.ChunkSize - 1)}} {
		want := snap.Value(p)
		got := g.SampleInt(int32(p.X), int32(p.Y), int32(p.Z))
		if math.Abs(float64(got-want)) > 1e-4 {
			t.Errorf("SampleInt(%v) = %v, want %v", p, got, want)
		}
	}
}

func TestGridValueInterpolatesBetweenLatticePoints(t *testing.T) {
	snap := sphereSnapshot(t, 8)
	g := New(field.ChunkSize)
	if err := g.Fill(snap, ms3.Vec{}); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	p := ms3.Vec{X: 4.5, Y: 0, Z: 0}
	got := g.Value(p)
	want := snap.Value(p)
	if math.Abs(float64(got-want)) > 0.05 {
		t.Errorf("interpolated Value(%v) = %v, want close to %v", p, got, want)
	}
}

func TestGridBypassDelegatesToSnapshot(t *testing.T) {
	snap := sphereSnapshot(t, 8)
	g := New(field.ChunkSize)
	if err := g.Fill(snap, ms3.Vec{}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	g.Bypass = true

	p := ms3.Vec{X: 4.5, Y: 1.25, Z: -0.75}
	if got, want := g.Value(p), snap.Value(p); got != want {
		t.Errorf("bypassed Value(%v) = %v, want exact snapshot value %v", p, got, want)
	}
}

func TestGridOutOfHaloFallsBackToSnapshot(t *testing.T) {
	snap := sphereSnapshot(t, 8)
	g := New(field.ChunkSize)
	if err := g.Fill(snap, ms3.Vec{}); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	far := ms3.Vec{X: float32(field.ChunkSize) + 50}
	got := g.Value(far)
	want := snap.Value(far)
	if got != want {
		t.Errorf("out-of-halo Value(%v) = %v, want exact fallback %v", far, got, want)
	}
}

func TestGridDerivativePointsOutward(t *testing.T) {
	snap := sphereSnapshot(t, 8)
	g := New(field.ChunkSize)
	if err := g.Fill(snap, ms3.Vec{}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	n := g.Derivative(ms3.Vec{X: 8.5})
	if n.X <= 0 {
		t.Errorf("expected outward +X gradient near sphere surface, got %+v", n)
	}
}
