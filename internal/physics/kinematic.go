package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Crawler stance: one root segment plus four legs, each an upper/lower
// pair, laid out on the corners of the root. Indexing matches the
// locomotion core's fixed part order (root, then leg 0..3 upper/lower).
const (
	RigPartCount = 9

	rootRestHeight = 0.5
	upperRestY     = 0.35
	lowerRestY     = 0.05
	legSpread      = 0.4

	contactHeight    = 0.1
	maxJointAngleRad = math.Pi / 2
	jointRate        = 8.0
	groundFriction   = 2.0
	driveGain        = 0.6
)

type rigPart struct {
	state PartState
	local mgl64.Vec3
	cmd   JointCommand
	joint mgl64.Quat
}

// KinematicRig is a deliberately small stand-in for a physics engine:
// joints relax toward their commanded targets at a rate set by joint
// strength, grounded joint motion drags the root forward, and ground
// contact is a height test against a flat plane at y = 0. It exists so
// episodes can run without an engine; it makes no claim to dynamics
// fidelity.
type KinematicRig struct {
	maxForce float64
	parts    [RigPartCount]rigPart
}

func NewKinematicRig(maxForce float64) *KinematicRig {
	r := &KinematicRig{maxForce: maxForce}

	corners := [4][2]float64{
		{legSpread, legSpread},
		{-legSpread, legSpread},
		{legSpread, -legSpread},
		{-legSpread, -legSpread},
	}

	r.parts[0].local = mgl64.Vec3{}
	for leg := 0; leg < 4; leg++ {
		x, z := corners[leg][0], corners[leg][1]
		r.parts[1+2*leg].local = mgl64.Vec3{x, upperRestY - rootRestHeight, z}
		r.parts[2+2*leg].local = mgl64.Vec3{x, lowerRestY - rootRestHeight, z}
	}

	for i := range r.parts {
		p := &r.parts[i]
		p.joint = mgl64.QuatIdent()
		p.state = PartState{
			Position: mgl64.Vec3{0, rootRestHeight, 0}.Add(p.local),
			Rotation: mgl64.QuatIdent(),
		}
		p.state.TouchingGround = p.state.Position.Y() <= contactHeight
	}
	return r
}

func (r *KinematicRig) PartCount() int {
	return RigPartCount
}

func (r *KinematicRig) State(i int) PartState {
	return r.parts[i].state
}

// SetState overrides a part's snapshot directly. Used by tests and by
// harnesses that script exact physics states.
func (r *KinematicRig) SetState(i int, st PartState) {
	r.parts[i].state = st
}

func (r *KinematicRig) Apply(i int, cmd JointCommand) {
	r.parts[i].cmd = cmd
}

func (r *KinematicRig) ResetPart(i int, pose Pose) {
	p := &r.parts[i]
	p.state = PartState{
		Position:       pose.Position,
		Rotation:       pose.Rotation,
		TouchingGround: pose.Position.Y() <= contactHeight,
	}
	p.cmd = JointCommand{}
	p.joint = mgl64.QuatIdent()
}

func (r *KinematicRig) Step(dt float64) {
	if dt <= 0 {
		return
	}

	// Joints relax toward their targets; motion of grounded joints
	// contributes forward drive.
	drive := 0.0
	for i := 1; i < RigPartCount; i++ {
		p := &r.parts[i]
		target := mgl64.AnglesToQuat(
			clampUnit(p.cmd.Target.X())*maxJointAngleRad,
			clampUnit(p.cmd.Target.Y())*maxJointAngleRad,
			clampUnit(p.cmd.Target.Z())*maxJointAngleRad,
			mgl64.XYZ,
		)
		frac := 0.0
		if r.maxForce > 0 {
			frac = clamp01(p.cmd.Strength / r.maxForce)
		}
		next := mgl64.QuatSlerp(p.joint, target, clamp01(frac*jointRate*dt))
		if p.state.TouchingGround {
			drive += quatAngle(next.Mul(p.joint.Inverse()))
		}
		p.joint = next
	}

	root := &r.parts[0]
	fwd := root.state.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
	fwd[1] = 0
	if l := fwd.Len(); l > 1e-12 {
		fwd = fwd.Mul(1 / l)
	}

	decay := 1 - groundFriction*dt
	if decay < 0 {
		decay = 0
	}
	root.state.Velocity = root.state.Velocity.Mul(decay).Add(fwd.Mul(drive * driveGain))
	step := root.state.Velocity.Mul(dt)
	step[1] = 0 // the rig keeps the root at its reset height
	root.state.Position = root.state.Position.Add(step)

	for i := 1; i < RigPartCount; i++ {
		p := &r.parts[i]
		prev := p.state.Position
		p.state.Position = root.state.Position.Add(root.state.Rotation.Rotate(p.local))
		p.state.Rotation = root.state.Rotation.Mul(p.joint)
		p.state.Velocity = p.state.Position.Sub(prev).Mul(1 / dt)
		p.state.TouchingGround = p.state.Position.Y() <= contactHeight
	}
	root.state.TouchingGround = root.state.Position.Y() <= contactHeight
}

// CastDown probes the flat ground plane at y = 0.
func (r *KinematicRig) CastDown(origin mgl64.Vec3, maxDist float64) (float64, bool) {
	d := origin.Y()
	if d < 0 || d > maxDist {
		return 0, false
	}
	return d, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func quatAngle(q mgl64.Quat) float64 {
	w := math.Abs(q.W)
	if w > 1 {
		w = 1
	}
	return 2 * math.Acos(w)
}
