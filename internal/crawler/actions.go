package crawler

import (
	"fmt"

	"ambulon/internal/body"
)

// OnActionReceived decodes the fixed-length continuous action vector
// positionally:
//
//	[ 0..7]  upper-leg target rotations, x/y pair per leg (z fixed at 0)
//	[ 8..11] lower-leg target rotations, x only
//	[12..15] upper-leg joint strengths
//	[16..19] lower-leg joint strengths
//
// A length mismatch is a contract violation and is rejected before any
// joint command is written, so no partial actuation can leak through.
func (a *Agent) OnActionReceived(actions []float64) error {
	if !a.running {
		return ErrEpisodeNotRunning
	}
	if len(actions) != ActionSize {
		return fmt.Errorf("%w: got=%d want=%d", ErrActionLength, len(actions), ActionSize)
	}

	upper := body.UpperLegs()
	lower := body.LowerLegs()

	i := 0
	for _, id := range upper {
		a.ctrl.SetJointTargetRotation(id, actions[i], actions[i+1], 0)
		i += 2
	}
	for _, id := range lower {
		a.ctrl.SetJointTargetRotation(id, actions[i], 0, 0)
		i++
	}

	maxForce := a.ctrl.MaxJointForce()
	for _, id := range upper {
		a.ctrl.SetJointStrength(id, strengthFromAction(actions[i], maxForce))
		i++
	}
	for _, id := range lower {
		a.ctrl.SetJointStrength(id, strengthFromAction(actions[i], maxForce))
		i++
	}
	return nil
}

// strengthFromAction maps a policy output in [-1, 1] onto [0, maxForce].
// Out-of-range values saturate rather than error; the bounded-strength
// invariant is enforced here and again by the controller's clamp.
func strengthFromAction(v, maxForce float64) float64 {
	f := (v + 1) / 2
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f * maxForce
}
