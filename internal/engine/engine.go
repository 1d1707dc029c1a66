// Package engine defines the simulation engine contract and the step
// sequencing consumed by the runner.
package engine

import (
	"context"

	"simrunner/internal/config"
)

// Phase tags a state as an intermediate or the final emission of a run.
type Phase string

const (
	PhaseStepping Phase = "stepping"
	PhaseFinalize Phase = "finalize"
)

// State is one emitted simulation state. The runner consumes each state
// exactly once and does not retain it.
type State struct {
	Time  float64
	Phase Phase
}

// Stream is a lazy, finite, non-restartable sequence of states. Next returns
// false once the sequence is exhausted. The last emitted state, and only that
// state, carries PhaseFinalize.
type Stream interface {
	Next(ctx context.Context) (State, bool, error)
}

// Engine produces the state stream for one run.
//
// Run may fail immediately on a configuration error; the returned stream may
// fail mid-iteration on a numerical error. Both surface to the runner as
// engine faults.
type Engine interface {
	Run(ctx context.Context, cfg *config.SimulationConfig, targetTime float64) (Stream, error)
}
