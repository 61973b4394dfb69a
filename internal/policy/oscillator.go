package policy

import (
	"context"
	"fmt"
	"math"

	"ambulon/internal/crawler"
)

// Oscillator is a scripted gait: sinusoidal joint targets with opposite
// legs driven half a cycle apart, at full joint strength. It is the
// built-in baseline for local runs when no remote policy is attached.
type Oscillator struct {
	// Frequency is full gait cycles per step call.
	Frequency float64
	// Amplitude scales joint targets, in [0, 1].
	Amplitude float64

	step int
}

func NewOscillator() *Oscillator {
	return &Oscillator{Frequency: 0.02, Amplitude: 0.6}
}

func (o *Oscillator) ID() string {
	return "oscillator"
}

func (o *Oscillator) RunStep(_ context.Context, input []float64) ([]float64, error) {
	if len(input) != crawler.ObservationSize {
		return nil, fmt.Errorf("unexpected observation length: got=%d want=%d", len(input), crawler.ObservationSize)
	}

	amp := o.Amplitude
	if amp <= 0 || amp > 1 {
		amp = 0.6
	}
	freq := o.Frequency
	if freq <= 0 {
		freq = 0.02
	}

	phase := 2 * math.Pi * freq * float64(o.step)
	o.step++

	actions := make([]float64, crawler.ActionSize)
	// Upper leg x/y pairs: diagonal legs share a phase.
	for leg := 0; leg < 4; leg++ {
		legPhase := phase
		if leg == 1 || leg == 2 {
			legPhase += math.Pi
		}
		actions[leg*2] = amp * math.Sin(legPhase)
		actions[leg*2+1] = 0.25 * amp * math.Cos(legPhase)
	}
	// Lower leg x rotations swing against their upper leg.
	for leg := 0; leg < 4; leg++ {
		legPhase := phase
		if leg == 1 || leg == 2 {
			legPhase += math.Pi
		}
		actions[8+leg] = -amp * math.Sin(legPhase)
	}
	// Full strength on every joint.
	for i := 12; i < crawler.ActionSize; i++ {
		actions[i] = 1.0
	}
	return actions, nil
}
