// Package runner drives one simulation job from creation to a terminal
// remote status.
package runner

import (
	"context"
	"log/slog"
	"os"
	"time"

	"simrunner/internal/config"
	"simrunner/internal/engine"
	"simrunner/internal/fault"
	"simrunner/internal/observability"
	"simrunner/internal/remote"
	"simrunner/internal/render"
)

// Preparer readies local inputs before stepping begins, e.g. the geometry
// cache. A failure here ends the run like any other remote fault.
type Preparer interface {
	Ensure(ctx context.Context) error
}

// Config wires a Runner.
type Config struct {
	Store    remote.Store
	Engine   engine.Engine
	Renderer render.Renderer

	Preparer Preparer               // optional
	Metrics  *observability.Metrics // optional
	Notifier *Notifier              // optional
	TempDir  string                 // root for step directories ("" = OS default)
}

// Runner executes simulation jobs strictly sequentially: each step's
// render/upload/status-update completes (or fails) before the next begins,
// and no two remote calls for the same job are ever in flight at once.
type Runner struct {
	store    remote.Store
	engine   engine.Engine
	renderer render.Renderer
	preparer Preparer
	metrics  *observability.Metrics
	notifier *Notifier
	tempDir  string
}

// New creates a Runner.
func New(cfg Config) *Runner {
	return &Runner{
		store:    cfg.Store,
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
		preparer: cfg.Preparer,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
		tempDir:  cfg.TempDir,
	}
}

// Job is one run request.
type Job struct {
	Name       string
	TargetTime float64
	Config     *config.SimulationConfig
}

// Run executes the job to a terminal state and returns the final descriptor.
//
// On any fault after initialization, one best-effort attempt is made to mark
// the remote job errored before the fault is returned; a failure of that
// attempt is logged and discarded so it never masks the original fault. A
// fault during initialization itself is returned directly: no remote record
// exists yet, so no status can be reported for it.
func (r *Runner) Run(ctx context.Context, job Job) (*remote.JobDescriptor, error) {
	logger := slog.With("job", job.Name, "targetTime", job.TargetTime)
	logger.Info("Initializing remote job")

	desc, err := r.store.Initialize(ctx, job.Name, job.TargetTime, job.Config)
	if err != nil {
		return nil, fault.Initialization("remote.initialize", err)
	}
	logger = logger.With("jobId", desc.JobID)

	start := time.Now()
	if r.metrics != nil {
		r.metrics.RecordRunStarted(ctx)
	}
	r.notifier.RunStarted(ctx, desc.JobID, job.Name)

	// current tracks the last progress value the remote store acknowledged;
	// the error status reuses it when a later step fails.
	current := 0.0
	runErr := r.execute(ctx, desc.JobID, job, &current)

	desc.CurrentTime = current
	if runErr != nil {
		logger.Error("Run failed", "current", current, "error", runErr)
		r.reportError(ctx, desc.JobID, current, job.TargetTime)
		desc.Status = remote.StatusError
		if r.metrics != nil {
			r.metrics.RecordRunCompleted(ctx, false, time.Since(start).Seconds())
		}
		r.notifier.RunExited(ctx, desc.JobID, runErr)
		return desc, runErr
	}

	desc.Status = remote.StatusSuccess
	if r.metrics != nil {
		r.metrics.RecordRunCompleted(ctx, true, time.Since(start).Seconds())
	}
	r.notifier.RunExited(ctx, desc.JobID, nil)
	logger.Info("Run complete")
	return desc, nil
}

// execute performs the running phase: initial status, input preparation, the
// step loop, then finalize and the success status. current is advanced only
// when a step has been fully persisted remotely.
func (r *Runner) execute(ctx context.Context, jobID string, job Job, current *float64) error {
	if err := r.store.SetStatus(ctx, jobID, remote.StatusRunning, 0, job.TargetTime); err != nil {
		return fault.Remote("remote.setStatus", err)
	}

	if r.preparer != nil {
		if err := r.preparer.Ensure(ctx); err != nil {
			return fault.Remote("remote.prepare", err)
		}
	}

	stream, err := r.engine.Run(ctx, job.Config, job.TargetTime)
	if err != nil {
		return fault.Engine("engine.run", err)
	}

	seq := engine.NewSequencer(stream)
	for {
		step, ok, err := seq.Next(ctx)
		if err != nil {
			return fault.Engine("engine.next", err)
		}
		if !ok {
			break
		}
		if err := r.runStep(ctx, jobID, job, step); err != nil {
			return err
		}
		*current = step.State.Time
	}

	if err := r.store.Finalize(ctx, jobID); err != nil {
		return fault.Remote("remote.finalize", err)
	}
	if err := r.store.SetStatus(ctx, jobID, remote.StatusSuccess, job.TargetTime, job.TargetTime); err != nil {
		return fault.Remote("remote.setStatus", err)
	}
	return nil
}

// runStep renders and uploads one step. The step directory is released on
// every exit path, before the trailing status update and before the fault,
// if any, propagates; at most one such directory exists at a time.
func (r *Runner) runStep(ctx context.Context, jobID string, job Job, step engine.Step) error {
	slog.Info("Simulation step", "jobId", jobID, "step", step.Name, "time", step.State.Time)
	stepStart := time.Now()

	if err := r.renderAndUpload(ctx, jobID, step); err != nil {
		return err
	}

	if err := r.store.SetStatus(ctx, jobID, remote.StatusRunning, step.State.Time, job.TargetTime); err != nil {
		return fault.Remote("remote.setStatus", err)
	}

	if r.metrics != nil {
		r.metrics.RecordStep(ctx, step.State.Phase == engine.PhaseFinalize, time.Since(stepStart).Seconds())
	}
	r.notifier.StepUploaded(ctx, jobID, step.Name, step.State.Time)
	return nil
}

// renderAndUpload owns the step's scratch directory. It is created here and
// removed before returning, so the trailing status update and the next step
// never see it.
func (r *Runner) renderAndUpload(ctx context.Context, jobID string, step engine.Step) error {
	dir, err := os.MkdirTemp(r.tempDir, "simrunner-step-")
	if err != nil {
		return fault.Render("render.tempdir", err)
	}
	defer os.RemoveAll(dir)

	if err := r.renderer.Render(ctx, step.State, dir); err != nil {
		return fault.Render("render.render", err)
	}

	uploadStart := time.Now()
	if _, err := r.store.UploadStep(ctx, jobID, step.Name, dir); err != nil {
		return fault.Remote("remote.uploadStep", err)
	}
	if r.metrics != nil {
		r.metrics.RecordUpload(ctx, time.Since(uploadStart).Seconds())
	}
	return nil
}

// reportError makes exactly one best-effort attempt to leave the remote job
// in an errored state. An externally visible job stuck in running forever is
// worse than a late error notification, so this runs for every non-init fault.
func (r *Runner) reportError(ctx context.Context, jobID string, current, total float64) {
	if err := r.store.SetStatus(ctx, jobID, remote.StatusError, current, total); err != nil {
		slog.Error("Could not set error status", "jobId", jobID, "error", err)
	}
}
