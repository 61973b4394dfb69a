package scape

import (
	"context"
	"fmt"
	"math"
	"strings"

	"ambulon/internal/body"
	"ambulon/internal/crawler"
	"ambulon/internal/physics"
	"ambulon/internal/trace"
)

// CrawlerScape runs the multi-legged locomotion task: a 9-segment
// ragdoll walking toward a target at a commanded speed, rewarded per
// step for velocity and heading matching. One Evaluate call is one
// episode against the supplied policy.
type CrawlerScape struct {
	Variant       crawler.Variant
	TargetSpeed   float64
	MaxSpeed      float64
	MaxJointForce float64
	Seed          uint64

	// StepLogger optionally records every step of every episode.
	StepLogger *trace.StepLogger

	// OnStep, when set, observes every completed step.
	OnStep func(trace.StepRecord)
}

const defaultMaxJointForce = 100.0

func (CrawlerScape) Name() string {
	return "crawler"
}

func (s CrawlerScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	return s.EvaluateMode(ctx, agent, "gt")
}

type crawlerModeConfig struct {
	mode        string
	maxSteps    int
	dt          float64
	touchRadius float64
	fallHeight  float64
}

func crawlerConfigForMode(mode string) (crawlerModeConfig, error) {
	base := crawlerModeConfig{
		dt:          0.02,
		touchRadius: 1.5,
		fallHeight:  0.15,
	}
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "gt":
		base.mode = "gt"
		base.maxSteps = 1000
		return base, nil
	case "validation":
		base.mode = "validation"
		base.maxSteps = 400
		return base, nil
	case "test":
		base.mode = "test"
		base.maxSteps = 400
		return base, nil
	case "benchmark":
		base.mode = "benchmark"
		base.maxSteps = 400
		return base, nil
	default:
		return crawlerModeConfig{}, fmt.Errorf("unsupported crawler mode: %s", mode)
	}
}

func (s CrawlerScape) EvaluateMode(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error) {
	cfg, err := crawlerConfigForMode(mode)
	if err != nil {
		return 0, nil, err
	}
	runner, ok := agent.(StepAgent)
	if !ok {
		return 0, nil, fmt.Errorf("agent %s does not implement step runner", agent.ID())
	}

	maxForce := s.MaxJointForce
	if maxForce <= 0 {
		maxForce = defaultMaxJointForce
	}

	rig := physics.NewKinematicRig(maxForce)
	ctrl, err := body.NewController(rig, maxForce)
	if err != nil {
		return 0, nil, err
	}
	target := physics.NewTarget(rig.State(0).Position)
	walker := crawler.New(ctrl, rig, target)

	if err := walker.Initialize(crawler.Config{
		Variant:     s.Variant,
		TargetSpeed: s.TargetSpeed,
		MaxSpeed:    s.MaxSpeed,
		Seed:        s.Seed,
	}); err != nil {
		return 0, nil, err
	}
	if err := walker.OnEpisodeBegin(); err != nil {
		return 0, nil, err
	}
	if s.StepLogger != nil {
		s.StepLogger.BeginEpisode()
	}

	// Goal touch terminates far-target episodes only: the fixed-target
	// variants spawn the target on the agent, so a proximity trigger
	// there would end every episode at step zero.
	goalTouchEnds := s.Variant == crawler.VariantFarTarget ||
		s.Variant == crawler.VariantFarTargetVariableSpeed

	steps := 0
	terminationReason := "max_steps"
	goalReached := false

	for step := 0; step < cfg.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		obs, err := walker.CollectObservations()
		if err != nil {
			return 0, nil, err
		}
		actions, err := runner.RunStep(ctx, obs)
		if err != nil {
			return 0, nil, err
		}
		if err := walker.OnActionReceived(actions); err != nil {
			return 0, nil, err
		}

		rig.Step(cfg.dt)
		reward, err := walker.StepReward()
		if err != nil {
			return 0, nil, err
		}
		steps++

		rec := trace.StepRecord{
			Step:         step,
			Observations: obs,
			Actions:      actions,
			Reward:       reward,
			Cumulative:   walker.CumulativeReward(),
		}
		if s.StepLogger != nil {
			if err := s.StepLogger.LogStep(rec); err != nil {
				return 0, nil, fmt.Errorf("write step trace: %w", err)
			}
		}
		if s.OnStep != nil {
			s.OnStep(rec)
		}

		rootPos := ctrl.Position(body.PartBody)
		if goalTouchEnds && rootPos.Sub(target.Position()).Len() <= cfg.touchRadius {
			walker.TouchedTarget()
			terminationReason = "goal_reached"
			goalReached = true
			break
		}
		if rootPos.Y() < cfg.fallHeight {
			terminationReason = "fell"
			break
		}
	}

	cumulative := walker.CumulativeReward()
	if math.IsNaN(cumulative) || math.IsInf(cumulative, 0) {
		return 0, nil, fmt.Errorf("cumulative reward is not finite: %v", cumulative)
	}
	avgStepReward := 0.0
	if steps > 0 {
		avgStepReward = cumulative / float64(steps)
	}

	obsFinal, err := walker.CollectObservations()
	if err != nil {
		return 0, nil, err
	}

	return Fitness(cumulative), Trace{
		"mode":               cfg.mode,
		"variant":            s.Variant.String(),
		"steps":              steps,
		"max_steps":          cfg.maxSteps,
		"termination_reason": terminationReason,
		"goal_reached":       goalReached,
		"cumulative_reward":  cumulative,
		"avg_step_reward":    avgStepReward,
		"target_speed":       walker.TargetSpeed(),
		"spawn_yaw_deg":      walker.SpawnYaw(),
		"final_speed_error":  obsFinal[0],
	}, nil
}
