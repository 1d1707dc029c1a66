// Package render converts simulation states into local artifact files.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"simrunner/internal/engine"
)

// Renderer writes the artifact files for one state into dir. The directory
// exists and is empty when Render is called; the caller owns its lifetime.
type Renderer interface {
	Render(ctx context.Context, state engine.State, dir string) error
}

// JSON renders a state as a single state.json snapshot.
type JSON struct{}

// snapshot is the persisted shape of one rendered state.
type snapshot struct {
	Time       float64   `json:"time"`
	Phase      string    `json:"phase"`
	RenderedAt time.Time `json:"renderedAt"`
}

// Render writes state.json into dir.
func (JSON) Render(ctx context.Context, state engine.State, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snapshot{
		Time:       state.Time,
		Phase:      string(state.Phase),
		RenderedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
