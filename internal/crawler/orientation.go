package crawler

import "github.com/go-gl/mathgl/mgl64"

// OrientationReference is a stabilized heading frame anchored to the
// walk direction. Raw body orientation is noisy during locomotion, so
// velocities and positions are expressed in this frame instead.
//
// The forward vector is recomputed every step from the body-to-target
// position delta. If the agent reaches and overtakes the target the
// forward direction flips abruptly; that matches the reference
// behavior and is intentionally not smoothed.
type OrientationReference struct {
	origin  mgl64.Vec3
	forward mgl64.Vec3
}

func NewOrientationReference() *OrientationReference {
	return &OrientationReference{forward: mgl64.Vec3{0, 0, 1}}
}

// Update recomputes the frame: forward points horizontally from the
// body toward the target. A (near-)zero horizontal delta keeps the
// previous forward so Forward always stays a unit vector.
func (o *OrientationReference) Update(bodyPos, targetPos mgl64.Vec3) {
	o.origin = bodyPos
	d := targetPos.Sub(bodyPos)
	d[1] = 0
	if l := d.Len(); l > 1e-9 {
		o.forward = d.Mul(1 / l)
	}
}

// Forward returns the frame's unit forward vector in world space.
func (o *OrientationReference) Forward() mgl64.Vec3 {
	return o.forward
}

func (o *OrientationReference) up() mgl64.Vec3 {
	return mgl64.Vec3{0, 1, 0}
}

func (o *OrientationReference) right() mgl64.Vec3 {
	return o.up().Cross(o.forward)
}

// ToLocalDirection rotates a world-space vector into the frame basis
// (right, up, forward).
func (o *OrientationReference) ToLocalDirection(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.Dot(o.right()), v.Dot(o.up()), v.Dot(o.forward)}
}

// ToLocal expresses a world-space point in the frame: translated to the
// frame origin, then rotated into its basis.
func (o *OrientationReference) ToLocal(p mgl64.Vec3) mgl64.Vec3 {
	return o.ToLocalDirection(p.Sub(o.origin))
}
