package physics

import "github.com/go-gl/mathgl/mgl64"

// Pose is a rigid transform captured at setup time and restored on reset.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// PartState is the physics snapshot of one rigid segment for the current step.
type PartState struct {
	Position       mgl64.Vec3
	Rotation       mgl64.Quat
	Velocity       mgl64.Vec3
	TouchingGround bool
}

// JointCommand is the actuation request for one joint. Target axes are
// normalized to [-1, 1] and interpreted by the rig as a fraction of the
// joint's rotation range. Strength is an absolute force in [0, max force].
type JointCommand struct {
	Target   mgl64.Vec3
	Strength float64
}

// Rig is the physics collaborator: it owns segment state between steps and
// is the only mutator of positions and velocities. Calls are synchronous
// and single-threaded; commands applied between two Step calls are
// last-write-wins per part.
type Rig interface {
	// PartCount reports the number of rigid segments the rig simulates.
	PartCount() int
	// State reads the current snapshot of segment i.
	State(i int) PartState
	// Apply records the actuation command for segment i's joint.
	Apply(i int, cmd JointCommand)
	// ResetPart restores segment i to pose with zero velocity.
	ResetPart(i int, pose Pose)
	// Step advances the simulation by dt seconds.
	Step(dt float64)
}

// RayCaster probes straight down from origin for the nearest surface.
// A miss within maxDist reports ok=false; misses are expected, not errors.
type RayCaster interface {
	CastDown(origin mgl64.Vec3, maxDist float64) (float64, bool)
}

// Target is a world-space goal marker. The locomotion core reads its
// position every step and commands placement only at episode boundaries.
type Target struct {
	pos mgl64.Vec3
}

func NewTarget(pos mgl64.Vec3) *Target {
	return &Target{pos: pos}
}

func (t *Target) Position() mgl64.Vec3 {
	return t.pos
}

func (t *Target) MoveTo(pos mgl64.Vec3) {
	t.pos = pos
}
