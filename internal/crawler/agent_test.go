package crawler

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"ambulon/internal/body"
	"ambulon/internal/physics"
)

func newTestAgent(t *testing.T, cfg Config) (*Agent, *physics.KinematicRig) {
	t.Helper()
	rig := physics.NewKinematicRig(100)
	ctrl, err := body.NewController(rig, 100)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	agent := New(ctrl, rig, physics.NewTarget(mgl64.Vec3{}))
	if err := agent.Initialize(cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return agent, rig
}

func beginEpisode(t *testing.T, a *Agent) {
	t.Helper()
	if err := a.OnEpisodeBegin(); err != nil {
		t.Fatalf("episode begin: %v", err)
	}
}

// setAverageVelocity overwrites every part's velocity so the mean comes
// out exactly at v.
func setAverageVelocity(rig *physics.KinematicRig, v mgl64.Vec3) {
	for i := 0; i < rig.PartCount(); i++ {
		st := rig.State(i)
		st.Velocity = v
		rig.SetState(i, st)
	}
}

func TestInitializeLifecycle(t *testing.T) {
	agent, _ := newTestAgent(t, Config{Variant: VariantFixedTarget, Seed: 1})
	if err := agent.Initialize(Config{Variant: VariantFixedTarget}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}

	rig := physics.NewKinematicRig(100)
	ctrl, err := body.NewController(rig, 100)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	fresh := New(ctrl, rig, physics.NewTarget(mgl64.Vec3{}))
	if err := fresh.OnEpisodeBegin(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := fresh.Initialize(Config{Variant: Variant(42)}); err == nil {
		t.Fatal("expected error for unknown variant")
	}
	if err := fresh.Initialize(Config{Variant: VariantFixedTarget, MaxSpeed: MinWalkSpeed}); err == nil {
		t.Fatal("expected error for max speed at the lower bound")
	}
}

func TestCallsOutsideEpisodeFail(t *testing.T) {
	agent, _ := newTestAgent(t, Config{Variant: VariantFixedTarget, Seed: 1})

	if _, err := agent.CollectObservations(); !errors.Is(err, ErrEpisodeNotRunning) {
		t.Fatalf("expected ErrEpisodeNotRunning, got %v", err)
	}
	if _, err := agent.StepReward(); !errors.Is(err, ErrEpisodeNotRunning) {
		t.Fatalf("expected ErrEpisodeNotRunning, got %v", err)
	}
	if err := agent.OnActionReceived(make([]float64, ActionSize)); !errors.Is(err, ErrEpisodeNotRunning) {
		t.Fatalf("expected ErrEpisodeNotRunning, got %v", err)
	}
}

func TestCollectObservationsLayout(t *testing.T) {
	agent, _ := newTestAgent(t, Config{Variant: VariantFarTarget, TargetSpeed: 4, Seed: 7})
	beginEpisode(t, agent)

	obs, err := agent.CollectObservations()
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if len(obs) != ObservationSize {
		t.Fatalf("unexpected observation size: %d", len(obs))
	}

	// At rest the average velocity is zero, so the velocity mismatch
	// scalar equals the commanded speed.
	if math.Abs(obs[0]-agent.TargetSpeed()) > 1e-9 {
		t.Fatalf("unexpected velocity delta: want %v got %v", agent.TargetSpeed(), obs[0])
	}
	// Goal velocity sits on the frame's forward axis.
	if math.Abs(obs[4]) > 1e-9 || math.Abs(obs[5]) > 1e-9 || math.Abs(obs[6]-agent.TargetSpeed()) > 1e-9 {
		t.Fatalf("goal velocity not on local forward: %v", obs[4:7])
	}
	// Root rests at half a meter; the probe normalizes by its range.
	if math.Abs(obs[14]-0.5/RayProbeDistance) > 1e-9 {
		t.Fatalf("unexpected ground probe: %v", obs[14])
	}
	// Contact flags: body and upper legs airborne, lower legs grounded.
	if obs[15] != 0 {
		t.Fatalf("body contact flag should be 0, got %v", obs[15])
	}
	for leg := 0; leg < 4; leg++ {
		upperContact := obs[16+4*leg]
		lowerContact := obs[18+4*leg]
		if upperContact != 0 || lowerContact != 1 {
			t.Fatalf("leg %d contacts: upper=%v lower=%v", leg, upperContact, lowerContact)
		}
	}
	// No actions applied yet, so every strength reads zero.
	for leg := 0; leg < 4; leg++ {
		if obs[17+4*leg] != 0 || obs[19+4*leg] != 0 {
			t.Fatalf("leg %d strengths should start zero", leg)
		}
	}
}

type missingSurfaceRay struct{}

func (missingSurfaceRay) CastDown(mgl64.Vec3, float64) (float64, bool) { return 0, false }

func TestCollectObservationsGroundProbeMiss(t *testing.T) {
	rig := physics.NewKinematicRig(100)
	ctrl, err := body.NewController(rig, 100)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	agent := New(ctrl, missingSurfaceRay{}, physics.NewTarget(mgl64.Vec3{}))
	if err := agent.Initialize(Config{Variant: VariantFixedTarget, TargetSpeed: 4, Seed: 1}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	beginEpisode(t, agent)

	obs, err := agent.CollectObservations()
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if obs[14] != 1.0 {
		t.Fatalf("probe miss should read the 1.0 sentinel, got %v", obs[14])
	}
}

func TestOnActionReceivedRejectsLengthBeforeActuation(t *testing.T) {
	agent, _ := newTestAgent(t, Config{Variant: VariantFixedTarget, Seed: 1})
	beginEpisode(t, agent)

	good := make([]float64, ActionSize)
	for i := range good {
		good[i] = 1
	}
	if err := agent.OnActionReceived(good); err != nil {
		t.Fatalf("apply actions: %v", err)
	}

	err := agent.OnActionReceived(make([]float64, ActionSize-1))
	if !errors.Is(err, ErrActionLength) {
		t.Fatalf("expected ErrActionLength, got %v", err)
	}

	// The short vector must not have overwritten any joint strength.
	obs, err := agent.CollectObservations()
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	for leg := 0; leg < 4; leg++ {
		if obs[17+4*leg] != 1 || obs[19+4*leg] != 1 {
			t.Fatalf("leg %d strengths changed after rejected action", leg)
		}
	}
}

func TestStrengthFromAction(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 50},
		{1, 100},
		{3, 100},
		{-4, 0},
	}
	for _, tc := range cases {
		if got := strengthFromAction(tc.in, 100); got != tc.want {
			t.Fatalf("strengthFromAction(%v): want %v got %v", tc.in, tc.want, got)
		}
	}
}

func TestStepRewardSpeedMatching(t *testing.T) {
	// Far target keeps the reference forward aligned with the body
	// forward, so the orientation term is exactly 1.
	agent, rig := newTestAgent(t, Config{Variant: VariantFarTarget, TargetSpeed: 4, Seed: 3})
	beginEpisode(t, agent)

	goal := agent.Orientation().Forward().Mul(agent.TargetSpeed())
	setAverageVelocity(rig, goal)
	r, err := agent.StepReward()
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if math.Abs(r-1) > 1e-9 {
		t.Fatalf("matched velocity should score 1, got %v", r)
	}

	setAverageVelocity(rig, mgl64.Vec3{})
	r, err = agent.StepReward()
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if r > 1e-12 {
		t.Fatalf("standing still should score 0, got %v", r)
	}

	// Halfway deviation: ratio 0.5, bump 0.75, squared 0.5625.
	setAverageVelocity(rig, goal.Mul(0.5))
	r, err = agent.StepReward()
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if math.Abs(r-0.5625) > 1e-9 {
		t.Fatalf("half-speed reward: want 0.5625 got %v", r)
	}

	if got := agent.CumulativeReward(); math.Abs(got-1.5625) > 1e-9 {
		t.Fatalf("cumulative reward mismatch: %v", got)
	}
}

func TestStepRewardDeviationSaturates(t *testing.T) {
	agent, rig := newTestAgent(t, Config{Variant: VariantFarTarget, TargetSpeed: 2, Seed: 3})
	beginEpisode(t, agent)

	// Deviation far beyond the commanded speed clamps to it, so the
	// reward floors at zero instead of going negative.
	back := agent.Orientation().Forward().Mul(-10)
	setAverageVelocity(rig, back)
	r, err := agent.StepReward()
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	if r != 0 {
		t.Fatalf("saturated deviation should score 0, got %v", r)
	}
}

func TestStepRewardOrientationEndpoints(t *testing.T) {
	// Fixed target sits on the body, so the reference forward holds its
	// default +Z; with the speed term pinned at 1 the reward reads the
	// orientation term directly.
	cases := []struct {
		yawDeg float64
		want   float64
	}{
		{0, 1},
		{90, 0.5},
		{180, 0},
	}
	for _, tc := range cases {
		agent, rig := newTestAgent(t, Config{Variant: VariantFixedTarget, TargetSpeed: 4, Seed: 1})
		beginEpisode(t, agent)

		root := rig.State(0)
		root.Rotation = mgl64.QuatRotate(tc.yawDeg*math.Pi/180, mgl64.Vec3{0, 1, 0})
		rig.SetState(0, root)

		goal := agent.Orientation().Forward().Mul(agent.TargetSpeed())
		setAverageVelocity(rig, goal)

		r, err := agent.StepReward()
		if err != nil {
			t.Fatalf("yaw %v: reward: %v", tc.yawDeg, err)
		}
		if math.Abs(r-tc.want) > 1e-9 {
			t.Fatalf("yaw %v: want %v got %v", tc.yawDeg, tc.want, r)
		}
	}
}

func TestStepRewardReportsNaN(t *testing.T) {
	agent, rig := newTestAgent(t, Config{Variant: VariantFarTarget, TargetSpeed: 4, Seed: 3})
	beginEpisode(t, agent)

	setAverageVelocity(rig, mgl64.Vec3{math.NaN(), 0, 0})
	_, err := agent.StepReward()
	var rerr *RewardError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RewardError, got %v", err)
	}
	if rerr.Term != "speed-matching" {
		t.Fatalf("unexpected failing term: %q", rerr.Term)
	}
	if rerr.TargetSpeed != agent.TargetSpeed() {
		t.Fatalf("error should carry the commanded speed, got %v", rerr.TargetSpeed)
	}
}

func TestTouchedTargetBonusFiresOnce(t *testing.T) {
	agent, _ := newTestAgent(t, Config{Variant: VariantFixedTarget, Seed: 1})

	// Outside an episode the bonus is inert.
	agent.TouchedTarget()
	if agent.TargetTouched() {
		t.Fatal("bonus should not fire before an episode starts")
	}

	beginEpisode(t, agent)
	agent.TouchedTarget()
	agent.TouchedTarget()
	if !agent.TargetTouched() {
		t.Fatal("bonus should be latched")
	}
	if got := agent.CumulativeReward(); got != 1.0 {
		t.Fatalf("bonus should add exactly 1.0 once, got %v", got)
	}

	beginEpisode(t, agent)
	if agent.TargetTouched() || agent.CumulativeReward() != 0 {
		t.Fatal("episode reset should clear bonus and cumulative reward")
	}
}

func TestEpisodeBeginRandomization(t *testing.T) {
	agent, _ := newTestAgent(t, Config{
		Variant:     VariantFarTargetVariableSpeed,
		MaxSpeed:    10,
		TargetSpeed: 4,
		Seed:        11,
	})

	seenSpeeds := map[float64]bool{}
	for i := 0; i < 8; i++ {
		beginEpisode(t, agent)
		speed := agent.TargetSpeed()
		if speed < MinWalkSpeed || speed > 10 {
			t.Fatalf("episode %d: speed out of bounds: %v", i, speed)
		}
		seenSpeeds[speed] = true
		yaw := agent.SpawnYaw()
		if yaw < 0 || yaw >= 360 {
			t.Fatalf("episode %d: yaw out of bounds: %v", i, yaw)
		}
	}
	if len(seenSpeeds) < 2 {
		t.Fatal("variable-speed variant should resample the commanded speed")
	}
}

func TestFixedSpeedClampsToMax(t *testing.T) {
	agent, _ := newTestAgent(t, Config{
		Variant:     VariantFixedTarget,
		MaxSpeed:    6,
		TargetSpeed: 50,
		Seed:        1,
	})
	beginEpisode(t, agent)
	if agent.TargetSpeed() != 6 {
		t.Fatalf("commanded speed should clamp to max, got %v", agent.TargetSpeed())
	}
}

func TestFarTargetPlacement(t *testing.T) {
	rig := physics.NewKinematicRig(100)
	ctrl, err := body.NewController(rig, 100)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	target := physics.NewTarget(mgl64.Vec3{})
	agent := New(ctrl, rig, target)
	if err := agent.Initialize(Config{Variant: VariantFarTarget, TargetSpeed: 4, Seed: 5}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	beginEpisode(t, agent)

	root := ctrl.Position(body.PartBody)
	dist := target.Position().Sub(root).Len()
	if math.Abs(dist-FarTargetDistance) > 1e-9 {
		t.Fatalf("target should spawn %v away, got %v", FarTargetDistance, dist)
	}
	// Spawned along the body's local forward: the frame then aligns
	// with the body heading.
	fwd := agent.Orientation().Forward()
	bodyFwd := ctrl.Rotation(body.PartBody).Rotate(mgl64.Vec3{0, 0, 1})
	if fwd.Sub(bodyFwd).Len() > 1e-9 {
		t.Fatalf("reference forward should match body forward: %v vs %v", fwd, bodyFwd)
	}
}
