// Package fault classifies the failures that can end a simulation run.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	// ErrInitialization marks a failure to create the remote job record.
	// No record exists yet, so no error status can be reported for it.
	ErrInitialization = errors.New("initialization fault")
	// ErrRemote marks a failed remote store call after initialization.
	ErrRemote = errors.New("remote fault")
	// ErrEngine marks a simulation engine failure.
	ErrEngine = errors.New("engine fault")
	// ErrRender marks a local artifact-generation failure.
	ErrRender = errors.New("render fault")
)

// Error provides a structured fault with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Op       string // Operation that failed (e.g. "remote.uploadStep")
	Cause    error  // Underlying error
}

// Error returns the human-readable fault message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Initialization creates an initialization fault wrapping an underlying cause.
func Initialization(op string, cause error) error {
	return newError(ErrInitialization, op, cause)
}

// Remote creates a remote fault wrapping an underlying cause.
func Remote(op string, cause error) error {
	return newError(ErrRemote, op, cause)
}

// Engine creates an engine fault wrapping an underlying cause.
func Engine(op string, cause error) error {
	return newError(ErrEngine, op, cause)
}

// Render creates a render fault wrapping an underlying cause.
func Render(op string, cause error) error {
	return newError(ErrRender, op, cause)
}

func newError(sentinel error, op string, cause error) error {
	return &Error{
		Sentinel: sentinel,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
