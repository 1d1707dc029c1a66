package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"simrunner/pkg/cloudevent"
)

// Event types for run lifecycle callbacks
const (
	EventTypeStart = "simrunner.run.start"
	EventTypeStep  = "simrunner.run.step"
	EventTypeExit  = "simrunner.run.exit"
)

// eventSource identifies this producer in emitted CloudEvents.
const eventSource = "simrunner/runner"

// Notifier delivers best-effort run lifecycle events to a callback URL.
// Delivery failures are logged and never influence the run outcome. A nil
// Notifier is valid and sends nothing.
type Notifier struct {
	sender *cloudevent.Sender
	url    string
	key    string
}

// NewNotifier creates a Notifier, or nil when url is empty.
func NewNotifier(url, signingKey string, timeout time.Duration) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		sender: cloudevent.NewSender(timeout),
		url:    url,
		key:    signingKey,
	}
}

// RunStarted announces that the remote job record exists and stepping begins.
func (n *Notifier) RunStarted(ctx context.Context, jobID, name string) {
	n.send(ctx, EventTypeStart, jobID, map[string]any{
		"jobId": jobID,
		"name":  name,
	})
}

// StepUploaded announces one fully persisted step.
func (n *Notifier) StepUploaded(ctx context.Context, jobID, stepName string, simTime float64) {
	n.send(ctx, EventTypeStep, jobID, map[string]any{
		"jobId": jobID,
		"step":  stepName,
		"time":  simTime,
	})
}

// RunExited announces the run outcome.
func (n *Notifier) RunExited(ctx context.Context, jobID string, runErr error) {
	data := map[string]any{
		"jobId":   jobID,
		"success": runErr == nil,
	}
	if runErr != nil {
		data["error"] = runErr.Error()
	}
	n.send(ctx, EventTypeExit, jobID, data)
}

func (n *Notifier) send(ctx context.Context, eventType, jobID string, data map[string]any) {
	if n == nil {
		return
	}
	event := cloudevent.New(eventType, eventSource, jobID, uuid.New().String(), data)
	if err := n.sender.Send(ctx, n.url, event, cloudevent.SendOptions{SigningKey: n.key}); err != nil {
		slog.Warn("Failed to send run event", "type", eventType, "jobId", jobID, "error", err)
	}
}
