package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// Geometry caches the shared geometry file used by the simulation engine.
type Geometry struct {
	URL  string // Source URL of the geometry file
	Path string // Local cache path

	httpClient *http.Client
}

// NewGeometry creates a geometry cache with the given HTTP client.
func NewGeometry(client *http.Client, url, path string) *Geometry {
	return &Geometry{URL: url, Path: path, httpClient: client}
}

// Ensure downloads the geometry file to Path unless it is already present.
func (g *Geometry) Ensure(ctx context.Context) error {
	if info, err := os.Stat(g.Path); err == nil && info.Mode().IsRegular() {
		slog.Debug("Geometry file already cached", "path", g.Path)
		return nil
	}

	slog.Info("Downloading geometry file", "url", g.URL, "path", g.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := g.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download geometry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geometry download failed with status %d", resp.StatusCode)
	}

	file, err := os.Create(g.Path)
	if err != nil {
		return fmt.Errorf("failed to create geometry file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write geometry file: %w", err)
	}

	slog.Info("Geometry file cached", "bytes", written)
	return nil
}
