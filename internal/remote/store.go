// Package remote provides the client boundary to the job-tracking data store.
package remote

import (
	"context"

	"simrunner/internal/config"
)

// JobStatus is the tracking service's status enumeration. The values are part
// of its wire contract. A run only ever reports Running, Success or Error.
type JobStatus int

const (
	StatusPending JobStatus = 1
	StatusRunning JobStatus = 2
	StatusSuccess JobStatus = 3
	StatusError   JobStatus = 4
)

// String returns the lowercase status name.
func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// JobDescriptor is the local view of one remote job record.
type JobDescriptor struct {
	JobID       string
	TargetTime  float64
	CurrentTime float64
	Status      JobStatus
}

// FolderID identifies the remote folder created for one uploaded step.
type FolderID string

// Store is the contract the runner needs from the remote data store. Any
// transport (HTTP client, test double, decorator) can satisfy it.
//
// Call ordering is owned by the runner: Initialize must succeed before any
// other call, and no two calls for the same job are ever in flight at once.
type Store interface {
	// Initialize creates the remote job record and persists the raw
	// configuration snapshot into it before returning.
	Initialize(ctx context.Context, name string, targetTime float64, cfg *config.SimulationConfig) (*JobDescriptor, error)

	// SetStatus updates the job's status and progress. It is idempotent and
	// safe to call redundantly.
	SetStatus(ctx context.Context, jobID string, status JobStatus, current, total float64) error

	// UploadStep creates a folder named stepName under the job and uploads
	// every regular file in dir into it (flat, non-recursive).
	UploadStep(ctx context.Context, jobID, stepName, dir string) (FolderID, error)

	// Finalize marks the job computation-complete: no more artifacts will be
	// uploaded. Distinct from the job status, which records the outcome.
	Finalize(ctx context.Context, jobID string) error
}
