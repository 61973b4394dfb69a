package crawler

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"ambulon/internal/body"
)

// RewardError reports an undefined (NaN) reward term. It means the
// upstream physics state is malformed, so the step must abort with the
// inputs that produced the failure; it is never retryable.
type RewardError struct {
	Term             string
	GoalDirection    mgl64.Vec3
	MeasuredVelocity mgl64.Vec3
	TargetSpeed      float64
}

func (e *RewardError) Error() string {
	return fmt.Sprintf(
		"%s reward term is NaN: goal_direction=%v measured_velocity=%v target_speed=%v",
		e.Term, e.GoalDirection, e.MeasuredVelocity, e.TargetSpeed,
	)
}

// StepReward computes the per-step reward from the post-step physics
// state and adds it to the cumulative episode reward.
//
// Two terms, multiplied:
//   - speed matching: a smooth bump, 1 when the measured average
//     velocity equals the goal velocity and 0 once the deviation
//     reaches the commanded speed (the deviation is clamped there, so
//     the term never goes negative);
//   - orientation matching: cosine similarity between the reference
//     forward and the body forward, remapped from [-1,1] to [0,1].
func (a *Agent) StepReward() (float64, error) {
	if !a.running {
		return 0, ErrEpisodeNotRunning
	}

	rootPos := a.ctrl.Position(body.PartBody)
	a.orient.Update(rootPos, a.target.Position())

	avgVel := a.averageVelocity()
	goalVel := a.orient.Forward().Mul(a.targetSpeed)

	d := avgVel.Sub(goalVel).Len()
	if d > a.targetSpeed {
		d = a.targetSpeed
	}
	ratio := d / a.targetSpeed
	bump := 1 - ratio*ratio
	speedTerm := bump * bump

	orientTerm := (a.orient.Forward().Dot(a.bodyForward()) + 1) / 2

	if math.IsNaN(speedTerm) {
		return 0, &RewardError{
			Term:             "speed-matching",
			GoalDirection:    a.orient.Forward(),
			MeasuredVelocity: avgVel,
			TargetSpeed:      a.targetSpeed,
		}
	}
	if math.IsNaN(orientTerm) {
		return 0, &RewardError{
			Term:             "orientation-matching",
			GoalDirection:    a.orient.Forward(),
			MeasuredVelocity: avgVel,
			TargetSpeed:      a.targetSpeed,
		}
	}

	reward := speedTerm * orientTerm
	a.cumulative += reward
	return reward, nil
}
