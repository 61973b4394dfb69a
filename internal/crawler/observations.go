package crawler

import (
	"github.com/go-gl/mathgl/mgl64"

	"ambulon/internal/body"
)

// CollectObservations encodes the current physics snapshot into the
// fixed-order observation vector. The downstream policy's input layer
// is positional, so the append sequence here is a wire contract:
//
//	 1 scalar   distance between goal velocity and measured average velocity
//	 3 floats   average body velocity in the reference frame
//	 3 floats   goal velocity in the reference frame
//	 4 floats   rotation delta body-forward -> reference-forward (W,X,Y,Z)
//	 3 floats   target position in the reference frame
//	 1 scalar   downward ground probe, normalized; miss sentinel 1.0
//	17 floats   per part in fixed order: contact flag, then joint
//	            strength / max force for every non-root part
func (a *Agent) CollectObservations() ([]float64, error) {
	if !a.running {
		return nil, ErrEpisodeNotRunning
	}

	rootPos := a.ctrl.Position(body.PartBody)
	a.orient.Update(rootPos, a.target.Position())

	avgVel := a.averageVelocity()
	goalVel := a.orient.Forward().Mul(a.targetSpeed)

	obs := make([]float64, 0, ObservationSize)
	obs = append(obs, goalVel.Sub(avgVel).Len())
	obs = appendVec3(obs, a.orient.ToLocalDirection(avgVel))
	obs = appendVec3(obs, a.orient.ToLocalDirection(goalVel))

	delta := mgl64.QuatBetweenVectors(a.bodyForward(), a.orient.Forward())
	obs = append(obs, delta.W, delta.X(), delta.Y(), delta.Z())

	obs = appendVec3(obs, a.orient.ToLocal(a.target.Position()))
	obs = append(obs, a.groundProbe(rootPos))

	maxForce := a.ctrl.MaxJointForce()
	for _, id := range body.Parts() {
		obs = append(obs, boolObs(a.ctrl.TouchingGround(id)))
		if !id.IsRoot() {
			obs = append(obs, a.ctrl.Strength(id)/maxForce)
		}
	}
	return obs, nil
}

// groundProbe casts straight down from the root. Misses are expected
// (the agent may be launched above any surface) and map to the "probe
// distance == max" sentinel rather than an error.
func (a *Agent) groundProbe(origin mgl64.Vec3) float64 {
	d, ok := a.ray.CastDown(origin, RayProbeDistance)
	if !ok {
		return 1.0
	}
	return d / RayProbeDistance
}

func appendVec3(obs []float64, v mgl64.Vec3) []float64 {
	return append(obs, v.X(), v.Y(), v.Z())
}

func boolObs(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
