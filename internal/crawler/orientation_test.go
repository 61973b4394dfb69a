package crawler

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestOrientationForwardTracksTarget(t *testing.T) {
	o := NewOrientationReference()

	o.Update(mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{3, 2, 4})
	fwd := o.Forward()
	if math.Abs(fwd.Len()-1) > 1e-12 {
		t.Fatalf("forward is not unit length: %v", fwd.Len())
	}
	if fwd.Y() != 0 {
		t.Fatalf("forward should be horizontal, got %v", fwd)
	}
	want := mgl64.Vec3{3, 0, 4}.Normalize()
	if fwd.Sub(want).Len() > 1e-12 {
		t.Fatalf("unexpected forward: want %v got %v", want, fwd)
	}
}

func TestOrientationZeroDeltaKeepsPreviousForward(t *testing.T) {
	o := NewOrientationReference()
	o.Update(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0})
	before := o.Forward()

	// Target directly above the body: no horizontal component.
	o.Update(mgl64.Vec3{5, 0, 5}, mgl64.Vec3{5, 3, 5})
	if o.Forward() != before {
		t.Fatalf("forward changed on zero horizontal delta: %v -> %v", before, o.Forward())
	}
}

func TestOrientationToLocalDirectionBasis(t *testing.T) {
	o := NewOrientationReference()
	o.Update(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})

	// With forward=+Z and up=+Y, right is up x forward = +X.
	local := o.ToLocalDirection(mgl64.Vec3{1, 2, 3})
	if local != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("identity frame should be a no-op, got %v", local)
	}

	o.Update(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0})
	local = o.ToLocalDirection(mgl64.Vec3{1, 0, 0})
	if math.Abs(local.Z()-1) > 1e-12 || math.Abs(local.X()) > 1e-12 {
		t.Fatalf("world forward should map to local +Z, got %v", local)
	}
}

func TestOrientationToLocalSubtractsOrigin(t *testing.T) {
	o := NewOrientationReference()
	o.Update(mgl64.Vec3{2, 1, 2}, mgl64.Vec3{2, 1, 5})

	local := o.ToLocal(mgl64.Vec3{2, 1, 5})
	if math.Abs(local.Z()-3) > 1e-12 || math.Abs(local.X()) > 1e-12 || math.Abs(local.Y()) > 1e-12 {
		t.Fatalf("target should sit 3 ahead in frame, got %v", local)
	}
}
