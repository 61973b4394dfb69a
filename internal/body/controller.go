package body

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"ambulon/internal/physics"
)

// Controller owns the crawler's body-part records and is the single
// writer of actuation commands. Parts live in a fixed arena indexed by
// PartID; callers hold identifiers, never pointers, which keeps the
// observation iteration order stable across episodes.
type Controller struct {
	rig      physics.Rig
	maxForce float64

	parts [partCount]partRecord
}

type partRecord struct {
	setUp    bool
	initial  physics.Pose
	target   mgl64.Vec3
	strength float64
}

func NewController(rig physics.Rig, maxJointForce float64) (*Controller, error) {
	if rig == nil {
		return nil, fmt.Errorf("rig is required")
	}
	if rig.PartCount() != int(partCount) {
		return nil, fmt.Errorf("rig part count mismatch: got=%d want=%d", rig.PartCount(), partCount)
	}
	if maxJointForce <= 0 {
		return nil, fmt.Errorf("max joint force must be > 0, got %v", maxJointForce)
	}
	return &Controller{rig: rig, maxForce: maxJointForce}, nil
}

// SetupPart registers a segment, capturing its current pose as the
// reset pose. Called once per part at agent initialization.
func (c *Controller) SetupPart(id PartID) error {
	if id < 0 || id >= partCount {
		return fmt.Errorf("invalid part id: %d", id)
	}
	st := c.rig.State(int(id))
	c.parts[id] = partRecord{
		setUp:   true,
		initial: physics.Pose{Position: st.Position, Rotation: st.Rotation},
	}
	return nil
}

// SetJointTargetRotation commands the joint's target rotation for the
// coming step. Last write before the physics step wins.
func (c *Controller) SetJointTargetRotation(id PartID, x, y, z float64) {
	if !c.ready(id) || id.IsRoot() {
		return
	}
	c.parts[id].target = mgl64.Vec3{x, y, z}
	c.flush(id)
}

// SetJointStrength commands the joint's drive strength, clamped into
// [0, max joint force]. Last write before the physics step wins.
func (c *Controller) SetJointStrength(id PartID, strength float64) {
	if !c.ready(id) || id.IsRoot() {
		return
	}
	if strength < 0 {
		strength = 0
	}
	if strength > c.maxForce {
		strength = c.maxForce
	}
	c.parts[id].strength = strength
	c.flush(id)
}

// ResetRootWithYaw restores the root segment to its setup pose rotated
// by yawDegrees about the world up axis, with zero velocity.
func (c *Controller) ResetRootWithYaw(yawDegrees float64) error {
	if !c.ready(PartBody) {
		return fmt.Errorf("part not set up: %s", PartBody)
	}
	pose := c.parts[PartBody].initial
	pose.Rotation = mgl64.QuatRotate(mgl64.DegToRad(yawDegrees), mgl64.Vec3{0, 1, 0}).Mul(pose.Rotation)
	c.rig.ResetPart(int(PartBody), pose)
	return nil
}

// ResetPart restores the segment to its setup pose with zero velocity,
// zero joint strength and a neutral rotation target.
func (c *Controller) ResetPart(id PartID) error {
	if !c.ready(id) {
		return fmt.Errorf("part not set up: %s", id)
	}
	c.parts[id].strength = 0
	c.parts[id].target = mgl64.Vec3{}
	c.rig.ResetPart(int(id), c.parts[id].initial)
	return nil
}

func (c *Controller) Velocity(id PartID) mgl64.Vec3 {
	return c.rig.State(int(id)).Velocity
}

func (c *Controller) Position(id PartID) mgl64.Vec3 {
	return c.rig.State(int(id)).Position
}

func (c *Controller) Rotation(id PartID) mgl64.Quat {
	return c.rig.State(int(id)).Rotation
}

func (c *Controller) TouchingGround(id PartID) bool {
	return c.rig.State(int(id)).TouchingGround
}

// Strength reports the joint's current drive strength, always within
// [0, MaxJointForce].
func (c *Controller) Strength(id PartID) float64 {
	return c.parts[id].strength
}

func (c *Controller) MaxJointForce() float64 {
	return c.maxForce
}

// initialPose reports the pose captured at SetupPart.
func (c *Controller) initialPose(id PartID) physics.Pose {
	return c.parts[id].initial
}

func (c *Controller) flush(id PartID) {
	c.rig.Apply(int(id), physics.JointCommand{
		Target:   c.parts[id].target,
		Strength: c.parts[id].strength,
	})
}

func (c *Controller) ready(id PartID) bool {
	return id >= 0 && id < partCount && c.parts[id].setUp
}
