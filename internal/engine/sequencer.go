package engine

import (
	"context"
	"fmt"
)

// TerminalStepName is the persisted folder name of the finalize step. External
// tooling depends on it, as it does on the zero-padded names of all other
// steps.
const TerminalStepName = "final"

// Step is one sequenced state with its persisted name.
type Step struct {
	State State
	Index int
	Name  string
}

// Sequencer assigns monotonically increasing indices to the states of a
// stream. Indices start at 0 and are never reused or skipped, even when time
// values repeat. Like the stream it wraps, a Sequencer is not restartable.
type Sequencer struct {
	stream Stream
	next   int
}

// NewSequencer wraps a stream.
func NewSequencer(stream Stream) *Sequencer {
	return &Sequencer{stream: stream}
}

// Next returns the next sequenced step, or false when the stream is exhausted.
func (s *Sequencer) Next(ctx context.Context) (Step, bool, error) {
	state, ok, err := s.stream.Next(ctx)
	if err != nil || !ok {
		return Step{}, false, err
	}
	step := Step{
		State: state,
		Index: s.next,
		Name:  StepName(s.next, state.Phase),
	}
	s.next++
	return step, true, nil
}

// StepName returns the persisted name for a step: a zero-padded 3-digit index
// for stepping phases, the terminal marker for the finalize phase.
func StepName(index int, phase Phase) string {
	if phase == PhaseFinalize {
		return TerminalStepName
	}
	return fmt.Sprintf("%03d", index)
}
