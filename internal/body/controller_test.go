package body

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"ambulon/internal/physics"
)

func newTestController(t *testing.T) (*Controller, *physics.KinematicRig) {
	t.Helper()
	rig := physics.NewKinematicRig(100)
	ctrl, err := NewController(rig, 100)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	for _, part := range Parts() {
		if err := ctrl.SetupPart(part); err != nil {
			t.Fatalf("setup %s: %v", part, err)
		}
	}
	return ctrl, rig
}

func TestNewControllerValidation(t *testing.T) {
	if _, err := NewController(nil, 100); err == nil {
		t.Fatal("expected error for nil rig")
	}
	if _, err := NewController(physics.NewKinematicRig(100), 0); err == nil {
		t.Fatal("expected error for non-positive max force")
	}
}

func TestSetJointStrengthClamps(t *testing.T) {
	ctrl, rig := newTestController(t)

	ctrl.SetJointStrength(PartLeg0Upper, 250)
	if got := ctrl.Strength(PartLeg0Upper); got != 100 {
		t.Fatalf("expected clamp to max force, got %v", got)
	}
	ctrl.SetJointStrength(PartLeg0Upper, -5)
	if got := ctrl.Strength(PartLeg0Upper); got != 0 {
		t.Fatalf("expected clamp to zero, got %v", got)
	}
	_ = rig
}

func TestRootIgnoresJointCommands(t *testing.T) {
	ctrl, _ := newTestController(t)

	ctrl.SetJointTargetRotation(PartBody, 1, 1, 1)
	ctrl.SetJointStrength(PartBody, 50)
	if got := ctrl.Strength(PartBody); got != 0 {
		t.Fatalf("root strength should stay zero, got %v", got)
	}
}

func TestJointCommandsCombineLastWriteWins(t *testing.T) {
	ctrl, rig := newTestController(t)

	ctrl.SetJointTargetRotation(PartLeg1Upper, 0.5, -0.5, 0)
	ctrl.SetJointStrength(PartLeg1Upper, 80)
	ctrl.SetJointTargetRotation(PartLeg1Upper, -0.25, 0, 0)

	// The rig holds the latest combined command: new target, prior strength.
	rig.Step(0.02)
	if got := ctrl.Strength(PartLeg1Upper); got != 80 {
		t.Fatalf("strength should persist across target updates, got %v", got)
	}
}

func TestResetPartRestoresSetupPose(t *testing.T) {
	ctrl, rig := newTestController(t)

	initial := ctrl.initialPose(PartLeg2Lower)
	ctrl.SetJointTargetRotation(PartLeg2Lower, 1, 0, 0)
	ctrl.SetJointStrength(PartLeg2Lower, 100)
	for i := 0; i < 20; i++ {
		rig.Step(0.02)
	}

	if err := ctrl.ResetPart(PartLeg2Lower); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := ctrl.Position(PartLeg2Lower); got != initial.Position {
		t.Fatalf("position not restored: want %v got %v", initial.Position, got)
	}
	if got := ctrl.Strength(PartLeg2Lower); got != 0 {
		t.Fatalf("strength should be cleared on reset, got %v", got)
	}
}

func TestResetRootWithYawRotatesAboutUp(t *testing.T) {
	ctrl, _ := newTestController(t)

	if err := ctrl.ResetRootWithYaw(90); err != nil {
		t.Fatalf("reset with yaw: %v", err)
	}

	fwd := ctrl.Rotation(PartBody).Rotate(mgl64.Vec3{0, 0, 1})
	// 90 degrees about +Y carries +Z onto +X.
	if math.Abs(fwd.X()-1) > 1e-9 || math.Abs(fwd.Z()) > 1e-9 {
		t.Fatalf("unexpected forward after 90 degree yaw: %v", fwd)
	}
	if got := ctrl.Position(PartBody); got != ctrl.initialPose(PartBody).Position {
		t.Fatalf("yaw reset should keep position, got %v", got)
	}
}

func TestSetupPartRejectsInvalidID(t *testing.T) {
	rig := physics.NewKinematicRig(100)
	ctrl, err := NewController(rig, 100)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if err := ctrl.SetupPart(PartID(-1)); err == nil {
		t.Fatal("expected error for negative id")
	}
	if err := ctrl.SetupPart(PartID(99)); err == nil {
		t.Fatal("expected error for out-of-range id")
	}
}

func TestResetBeforeSetupFails(t *testing.T) {
	rig := physics.NewKinematicRig(100)
	ctrl, err := NewController(rig, 100)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	if err := ctrl.ResetPart(PartLeg0Upper); err == nil {
		t.Fatal("expected error resetting a part that was never set up")
	}
}
