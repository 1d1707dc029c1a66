package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"simrunner/internal/config"
	"simrunner/internal/engine"
	"simrunner/internal/fault"
	"simrunner/internal/remote"
)

type statusCall struct {
	status  remote.JobStatus
	current float64
	total   float64
}

// fakeStore records every call in order and fails on demand.
type fakeStore struct {
	initErr         error
	uploadErrOn     string // step name whose upload fails
	failStatusCall  int    // 1-based SetStatus call index that fails
	failErrorStatus bool   // fail the best-effort error-status call
	finalizeErr     error

	calls       []string
	statusCalls []statusCall
	uploads     []string
}

func (s *fakeStore) Initialize(ctx context.Context, name string, targetTime float64, cfg *config.SimulationConfig) (*remote.JobDescriptor, error) {
	s.calls = append(s.calls, "initialize")
	if s.initErr != nil {
		return nil, s.initErr
	}
	return &remote.JobDescriptor{JobID: "job-1", TargetTime: targetTime, Status: remote.StatusPending}, nil
}

func (s *fakeStore) SetStatus(ctx context.Context, jobID string, status remote.JobStatus, current, total float64) error {
	s.calls = append(s.calls, fmt.Sprintf("setStatus:%s:%v", status, current))
	s.statusCalls = append(s.statusCalls, statusCall{status, current, total})
	if status == remote.StatusError && s.failErrorStatus {
		return fmt.Errorf("error status rejected")
	}
	if s.failStatusCall > 0 && len(s.statusCalls) == s.failStatusCall {
		return fmt.Errorf("status call %d rejected", s.failStatusCall)
	}
	return nil
}

func (s *fakeStore) UploadStep(ctx context.Context, jobID, stepName, dir string) (remote.FolderID, error) {
	s.calls = append(s.calls, "upload:"+stepName)
	if s.uploadErrOn == stepName {
		return "", fmt.Errorf("upload %s rejected", stepName)
	}
	s.uploads = append(s.uploads, stepName)
	return remote.FolderID("folder-" + stepName), nil
}

func (s *fakeStore) Finalize(ctx context.Context, jobID string) error {
	s.calls = append(s.calls, "finalize")
	return s.finalizeErr
}

func (s *fakeStore) errorStatusCalls() []statusCall {
	var out []statusCall
	for _, c := range s.statusCalls {
		if c.status == remote.StatusError {
			out = append(out, c)
		}
	}
	return out
}

// fakeEngine replays scripted states, failing at the configured point.
type fakeEngine struct {
	states    []engine.State
	runErr    error
	streamErr error
}

func (e *fakeEngine) Run(ctx context.Context, cfg *config.SimulationConfig, targetTime float64) (engine.Stream, error) {
	if e.runErr != nil {
		return nil, e.runErr
	}
	return &scriptedStream{states: e.states, err: e.streamErr}, nil
}

type scriptedStream struct {
	states []engine.State
	err    error
	pos    int
}

func (s *scriptedStream) Next(ctx context.Context) (engine.State, bool, error) {
	if s.pos >= len(s.states) {
		return engine.State{}, false, s.err
	}
	state := s.states[s.pos]
	s.pos++
	return state, true, nil
}

// trackingRenderer writes a file per step and asserts that no earlier step
// directory is still alive when a new one is rendered.
type trackingRenderer struct {
	t    *testing.T
	err  error
	dirs []string
}

func (r *trackingRenderer) Render(ctx context.Context, state engine.State, dir string) error {
	for _, prev := range r.dirs {
		if _, err := os.Stat(prev); err == nil {
			r.t.Errorf("previous step directory %s still exists", prev)
		}
	}
	r.dirs = append(r.dirs, dir)
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(filepath.Join(dir, "state.json"), []byte("{}"), 0o644)
}

func threeStepRun() []engine.State {
	return []engine.State{
		{Time: 1.0, Phase: engine.PhaseStepping},
		{Time: 2.0, Phase: engine.PhaseStepping},
		{Time: 3.0, Phase: engine.PhaseFinalize},
	}
}

func newTestRunner(t *testing.T, store *fakeStore, eng *fakeEngine, renderer *trackingRenderer) *Runner {
	t.Helper()
	if renderer == nil {
		renderer = &trackingRenderer{t: t}
	}
	return New(Config{
		Store:    store,
		Engine:   eng,
		Renderer: renderer,
		TempDir:  t.TempDir(),
	})
}

func testJob() Job {
	return Job{
		Name:       "test-run",
		TargetTime: 3.0,
		Config:     &config.SimulationConfig{TimeStep: 1},
	}
}

func TestRun_Success(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	renderer := &trackingRenderer{t: t}
	r := newTestRunner(t, store, &fakeEngine{states: threeStepRun()}, renderer)

	desc, err := r.Run(context.Background(), testJob())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if desc.Status != remote.StatusSuccess || desc.CurrentTime != 3.0 {
		t.Errorf("Unexpected descriptor: %+v", desc)
	}

	// N non-terminal steps produce N+1 uploads: zero-padded indices then the
	// terminal marker.
	wantUploads := []string{"000", "001", "final"}
	if len(store.uploads) != len(wantUploads) {
		t.Fatalf("Expected uploads %v, got %v", wantUploads, store.uploads)
	}
	for i, w := range wantUploads {
		if store.uploads[i] != w {
			t.Errorf("upload %d: expected %q, got %q", i, w, store.uploads[i])
		}
	}

	wantStatus := []statusCall{
		{remote.StatusRunning, 0, 3},
		{remote.StatusRunning, 1, 3},
		{remote.StatusRunning, 2, 3},
		{remote.StatusRunning, 3, 3},
		{remote.StatusSuccess, 3, 3},
	}
	if len(store.statusCalls) != len(wantStatus) {
		t.Fatalf("Expected status calls %v, got %v", wantStatus, store.statusCalls)
	}
	for i, w := range wantStatus {
		if store.statusCalls[i] != w {
			t.Errorf("status call %d: expected %+v, got %+v", i, w, store.statusCalls[i])
		}
	}

	// Progress never decreases.
	for i := 1; i < len(store.statusCalls); i++ {
		if store.statusCalls[i].current < store.statusCalls[i-1].current {
			t.Errorf("progress decreased at call %d: %v", i, store.statusCalls)
		}
	}

	// Finalize happens exactly once, after the terminal upload and before the
	// success status.
	wantTail := []string{"upload:final", "setStatus:running:3", "finalize", "setStatus:success:3"}
	tail := store.calls[len(store.calls)-len(wantTail):]
	for i, w := range wantTail {
		if tail[i] != w {
			t.Fatalf("Unexpected call tail: %v", tail)
		}
	}

	// Every step directory was released.
	for _, dir := range renderer.dirs {
		if _, err := os.Stat(dir); err == nil {
			t.Errorf("step directory %s was not released", dir)
		}
	}
}

func TestRun_UploadFault(t *testing.T) {
	t.Parallel()
	store := &fakeStore{uploadErrOn: "001"}
	r := newTestRunner(t, store, &fakeEngine{states: threeStepRun()}, nil)

	desc, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrRemote) {
		t.Fatalf("Expected remote fault, got %v", err)
	}

	if desc.Status != remote.StatusError {
		t.Errorf("Expected error status in descriptor, got %v", desc.Status)
	}

	// Step 000 made it; nothing after.
	if len(store.uploads) != 1 || store.uploads[0] != "000" {
		t.Errorf("Expected only upload 000, got %v", store.uploads)
	}

	// Exactly one error-status attempt with the last acknowledged progress.
	errCalls := store.errorStatusCalls()
	if len(errCalls) != 1 {
		t.Fatalf("Expected 1 error status call, got %d", len(errCalls))
	}
	if errCalls[0].current != 1.0 || errCalls[0].total != 3.0 {
		t.Errorf("Expected error status with current 1.0, got %+v", errCalls[0])
	}

	for _, call := range store.calls {
		if call == "finalize" {
			t.Error("Finalize must not be called after a fault")
		}
	}
}

func TestRun_InitializationFault(t *testing.T) {
	t.Parallel()
	store := &fakeStore{initErr: fmt.Errorf("record creation rejected")}
	r := newTestRunner(t, store, &fakeEngine{states: threeStepRun()}, nil)

	desc, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrInitialization) {
		t.Fatalf("Expected initialization fault, got %v", err)
	}
	if desc != nil {
		t.Errorf("Expected nil descriptor, got %+v", desc)
	}

	// No job record exists, so no status call of any kind is allowed.
	if len(store.statusCalls) != 0 {
		t.Errorf("Expected no status calls, got %v", store.statusCalls)
	}
}

func TestRun_SecondaryReportingFaultIsSwallowed(t *testing.T) {
	t.Parallel()
	store := &fakeStore{uploadErrOn: "001", failErrorStatus: true}
	r := newTestRunner(t, store, &fakeEngine{states: threeStepRun()}, nil)

	_, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrRemote) {
		t.Fatalf("Expected remote fault, got %v", err)
	}

	// The caller observes the original fault, not the reporting failure.
	if !strings.Contains(err.Error(), "upload 001 rejected") {
		t.Errorf("Expected original upload fault, got %q", err.Error())
	}
	if strings.Contains(err.Error(), "error status rejected") {
		t.Errorf("Secondary fault leaked into the returned error: %q", err.Error())
	}

	if len(store.errorStatusCalls()) != 1 {
		t.Errorf("Expected exactly one error status attempt")
	}
}

func TestRun_InitialStatusFault(t *testing.T) {
	t.Parallel()
	store := &fakeStore{failStatusCall: 1}
	r := newTestRunner(t, store, &fakeEngine{states: threeStepRun()}, nil)

	_, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrRemote) {
		t.Fatalf("Expected remote fault, got %v", err)
	}

	errCalls := store.errorStatusCalls()
	if len(errCalls) != 1 || errCalls[0].current != 0 {
		t.Errorf("Expected one error status with current 0, got %v", errCalls)
	}
	if len(store.uploads) != 0 {
		t.Errorf("Expected no uploads, got %v", store.uploads)
	}
}

func TestRun_EngineFault(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	r := newTestRunner(t, store, &fakeEngine{runErr: fmt.Errorf("bad configuration")}, nil)

	_, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrEngine) {
		t.Fatalf("Expected engine fault, got %v", err)
	}

	errCalls := store.errorStatusCalls()
	if len(errCalls) != 1 || errCalls[0].current != 0 {
		t.Errorf("Expected one error status with current 0, got %v", errCalls)
	}
}

func TestRun_EngineFaultMidStream(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	eng := &fakeEngine{
		states:    []engine.State{{Time: 1.0, Phase: engine.PhaseStepping}},
		streamErr: fmt.Errorf("solver diverged"),
	}
	r := newTestRunner(t, store, eng, nil)

	_, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrEngine) {
		t.Fatalf("Expected engine fault, got %v", err)
	}

	if len(store.uploads) != 1 || store.uploads[0] != "000" {
		t.Errorf("Expected upload 000 before the fault, got %v", store.uploads)
	}
	errCalls := store.errorStatusCalls()
	if len(errCalls) != 1 || errCalls[0].current != 1.0 {
		t.Errorf("Expected error status with current 1.0, got %v", errCalls)
	}
}

func TestRun_RenderFault(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	renderer := &trackingRenderer{t: t, err: fmt.Errorf("disk full")}
	r := newTestRunner(t, store, &fakeEngine{states: threeStepRun()}, renderer)

	_, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrRender) {
		t.Fatalf("Expected render fault, got %v", err)
	}

	if len(store.uploads) != 0 {
		t.Errorf("Expected no uploads after render fault, got %v", store.uploads)
	}
	// The step directory is released even on the fault path.
	for _, dir := range renderer.dirs {
		if _, err := os.Stat(dir); err == nil {
			t.Errorf("step directory %s was not released", dir)
		}
	}
}

func TestRun_FinalizeFault(t *testing.T) {
	t.Parallel()
	store := &fakeStore{finalizeErr: fmt.Errorf("completion rejected")}
	r := newTestRunner(t, store, &fakeEngine{states: threeStepRun()}, nil)

	_, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrRemote) {
		t.Fatalf("Expected remote fault, got %v", err)
	}

	// All steps persisted, so the error status carries the full progress.
	errCalls := store.errorStatusCalls()
	if len(errCalls) != 1 || errCalls[0].current != 3.0 {
		t.Errorf("Expected error status with current 3.0, got %v", errCalls)
	}
	for _, c := range store.statusCalls {
		if c.status == remote.StatusSuccess {
			t.Error("Success status must not be reported after a finalize fault")
		}
	}
}

type fakePreparer struct {
	err    error
	called int
}

func (p *fakePreparer) Ensure(ctx context.Context) error {
	p.called++
	return p.err
}

func TestRun_PreparerFault(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	prep := &fakePreparer{err: fmt.Errorf("geometry unavailable")}
	r := New(Config{
		Store:    store,
		Engine:   &fakeEngine{states: threeStepRun()},
		Renderer: &trackingRenderer{t: t},
		Preparer: prep,
		TempDir:  t.TempDir(),
	})

	_, err := r.Run(context.Background(), testJob())
	if !errors.Is(err, fault.ErrRemote) {
		t.Fatalf("Expected remote fault, got %v", err)
	}
	if prep.called != 1 {
		t.Errorf("Expected one prepare attempt, got %d", prep.called)
	}
	if len(store.uploads) != 0 {
		t.Errorf("Expected no uploads after prepare fault, got %v", store.uploads)
	}
}

func TestRun_PreparerRunsBeforeSteps(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	prep := &fakePreparer{}
	r := New(Config{
		Store:    store,
		Engine:   &fakeEngine{states: threeStepRun()},
		Renderer: &trackingRenderer{t: t},
		Preparer: prep,
		TempDir:  t.TempDir(),
	})

	if _, err := r.Run(context.Background(), testJob()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if prep.called != 1 {
		t.Errorf("Expected one prepare call, got %d", prep.called)
	}
}
