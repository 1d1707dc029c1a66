package engine

import (
	"context"
	"fmt"

	"simrunner/internal/config"
)

// FixedStep is a reference engine that advances simulated time by a fixed
// step until the target time is reached. The state at the target time is the
// finalize emission.
type FixedStep struct{}

// Run validates the configuration and returns the state stream.
func (FixedStep) Run(ctx context.Context, cfg *config.SimulationConfig, targetTime float64) (Stream, error) {
	if cfg == nil || cfg.TimeStep <= 0 {
		return nil, fmt.Errorf("fixed-step engine requires a positive time_step")
	}
	if targetTime <= 0 {
		return nil, fmt.Errorf("target time must be positive, got %v", targetTime)
	}
	return &fixedStepStream{step: cfg.TimeStep, target: targetTime}, nil
}

type fixedStepStream struct {
	step    float64
	target  float64
	current float64
	done    bool
}

func (s *fixedStepStream) Next(ctx context.Context) (State, bool, error) {
	if err := ctx.Err(); err != nil {
		return State{}, false, err
	}
	if s.done {
		return State{}, false, nil
	}

	next := s.current + s.step
	if next >= s.target {
		s.done = true
		s.current = s.target
		return State{Time: s.target, Phase: PhaseFinalize}, true, nil
	}
	s.current = next
	return State{Time: next, Phase: PhaseStepping}, true, nil
}
