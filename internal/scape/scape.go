package scape

import "context"

type Fitness float64

type Trace map[string]any

type Agent interface {
	ID() string
}

// StepAgent is a policy evaluated one decision at a time: it receives
// the observation vector and answers with the action vector.
type StepAgent interface {
	Agent
	RunStep(ctx context.Context, input []float64) ([]float64, error)
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error)
}

// ModeAwareScape optionally exposes evaluation mode routing for gt/validation/test flows.
type ModeAwareScape interface {
	Scape
	EvaluateMode(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error)
}
