package crawler

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"ambulon/internal/body"
	"ambulon/internal/physics"
)

const (
	// MinWalkSpeed is the lower walking-speed bound. Keeping it above
	// zero keeps the reward normalization (division by target speed)
	// well-defined.
	MinWalkSpeed = 0.1
	// DefaultMaxSpeed is the upper walking-speed bound.
	DefaultMaxSpeed = 10.0

	// ObservationSize is the fixed observation vector length: 15 frame
	// scalars, 1 ground probe, 9 contact flags, 8 joint strengths.
	ObservationSize = 32
	// ActionSize is the fixed action vector length: 8 upper-leg
	// rotation values, 4 lower-leg rotations, 8 joint strengths.
	ActionSize = 20

	// RayProbeDistance is the downward ground probe range; a miss maps
	// to the sentinel observation value 1.0.
	RayProbeDistance = 10.0
	// FarTargetDistance is the initial target offset used by the
	// far-target variants, along the agent's local forward axis.
	FarTargetDistance = 25.0
)

var (
	ErrNotInitialized     = errors.New("crawler agent is not initialized")
	ErrAlreadyInitialized = errors.New("crawler agent is already initialized")
	ErrEpisodeNotRunning  = errors.New("no episode is running")
	ErrActionLength       = errors.New("action vector length mismatch")
)

// Config selects the behavior variant and walking-speed bounds for a run.
type Config struct {
	Variant Variant
	// TargetSpeed is the commanded speed for fixed-speed variants,
	// clamped into [MinWalkSpeed, MaxSpeed]. Zero selects MaxSpeed.
	TargetSpeed float64
	// MaxSpeed defaults to DefaultMaxSpeed.
	MaxSpeed float64
	Seed     uint64
}

// Agent orchestrates one crawler's episode lifecycle: it reads physics
// state through the joint controller, encodes observations, decodes
// policy actions into joint commands and accumulates per-step reward.
// All calls are synchronous and driven by the external simulation loop.
type Agent struct {
	ctrl   *body.Controller
	ray    physics.RayCaster
	target *physics.Target
	orient *OrientationReference

	plan       resetPlan
	maxSpeed   float64
	fixedSpeed float64
	speedDist  distuv.Uniform
	yawDist    distuv.Uniform

	targetSpeed float64
	spawnYaw    float64
	cumulative  float64
	touched     bool

	initialized bool
	running     bool
}

func New(ctrl *body.Controller, ray physics.RayCaster, target *physics.Target) *Agent {
	return &Agent{
		ctrl:   ctrl,
		ray:    ray,
		target: target,
		orient: NewOrientationReference(),
	}
}

// Initialize resolves the behavior variant, registers every body part
// with the joint controller and seeds the episode randomization.
// Transition: Uninitialized -> Ready. Unknown variants fail fast.
func (a *Agent) Initialize(cfg Config) error {
	if a.initialized {
		return ErrAlreadyInitialized
	}
	plan, err := cfg.Variant.plan()
	if err != nil {
		return err
	}

	maxSpeed := cfg.MaxSpeed
	if maxSpeed == 0 {
		maxSpeed = DefaultMaxSpeed
	}
	if maxSpeed <= MinWalkSpeed {
		return fmt.Errorf("max speed must be > %v, got %v", MinWalkSpeed, maxSpeed)
	}
	fixedSpeed := cfg.TargetSpeed
	if fixedSpeed == 0 {
		fixedSpeed = maxSpeed
	}
	fixedSpeed = clampSpeed(fixedSpeed, maxSpeed)

	src := rand.NewSource(cfg.Seed)
	a.plan = plan
	a.maxSpeed = maxSpeed
	a.fixedSpeed = fixedSpeed
	a.speedDist = distuv.Uniform{Min: MinWalkSpeed, Max: maxSpeed, Src: src}
	a.yawDist = distuv.Uniform{Min: 0, Max: 360, Src: src}

	for _, id := range body.Parts() {
		if err := a.ctrl.SetupPart(id); err != nil {
			return err
		}
	}

	a.initialized = true
	return nil
}

// OnEpisodeBegin resets every body part to its stored pose with zero
// velocity, applies a fresh uniform spawn yaw, places the target per
// the resolved plan and recomputes the orientation reference.
// Transition: Ready -> Running.
func (a *Agent) OnEpisodeBegin() error {
	if !a.initialized {
		return ErrNotInitialized
	}

	for _, id := range body.Parts() {
		if err := a.ctrl.ResetPart(id); err != nil {
			return err
		}
	}
	a.spawnYaw = a.yawDist.Rand()
	if err := a.ctrl.ResetRootWithYaw(a.spawnYaw); err != nil {
		return err
	}

	a.targetSpeed = a.fixedSpeed
	if a.plan.randomizeSpeed {
		a.targetSpeed = clampSpeed(a.speedDist.Rand(), a.maxSpeed)
	}

	rootPos := a.ctrl.Position(body.PartBody)
	offset := a.ctrl.Rotation(body.PartBody).Rotate(a.plan.targetOffset)
	a.target.MoveTo(rootPos.Add(offset))
	a.orient.Update(rootPos, a.target.Position())

	a.cumulative = 0
	a.touched = false
	a.running = true
	return nil
}

// TouchedTarget grants the one-time terminal goal bonus for the current
// episode, independent of the per-step reward.
func (a *Agent) TouchedTarget() {
	if !a.running || a.touched {
		return
	}
	a.touched = true
	a.cumulative += 1.0
}

// TargetTouched reports whether the goal bonus fired this episode.
func (a *Agent) TargetTouched() bool {
	return a.touched
}

// TargetSpeed is the commanded walking speed for the current episode,
// always within [MinWalkSpeed, max speed].
func (a *Agent) TargetSpeed() float64 {
	return a.targetSpeed
}

// SpawnYaw reports the root yaw in degrees applied at the last episode
// reset, in [0, 360).
func (a *Agent) SpawnYaw() float64 {
	return a.spawnYaw
}

// CumulativeReward is the episode reward accumulated so far.
func (a *Agent) CumulativeReward() float64 {
	return a.cumulative
}

// Orientation exposes the reference frame, mainly for diagnostics.
func (a *Agent) Orientation() *OrientationReference {
	return a.orient
}

func (a *Agent) bodyForward() mgl64.Vec3 {
	return a.ctrl.Rotation(body.PartBody).Rotate(mgl64.Vec3{0, 0, 1})
}

func (a *Agent) averageVelocity() mgl64.Vec3 {
	var sum mgl64.Vec3
	parts := body.Parts()
	for _, id := range parts {
		sum = sum.Add(a.ctrl.Velocity(id))
	}
	return sum.Mul(1 / float64(len(parts)))
}

func clampSpeed(v, maxSpeed float64) float64 {
	if v < MinWalkSpeed {
		return MinWalkSpeed
	}
	if v > maxSpeed {
		return maxSpeed
	}
	return v
}
