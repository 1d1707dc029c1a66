// Package config provides configuration loading from environment variables
// and YAML files.
package config

import (
	"time"
)

// Defaults for the remote endpoints.
const (
	DefaultAPIBase     = "https://data.nutritionallungimmunity.org/api/v1"
	DefaultGeometryURL = "https://data.nutritionallungimmunity.org/api/v1/file/5ebd86cec1b2cfe0661e681f/download"
)

// RunnerConfig holds configuration for the simulation runner.
type RunnerConfig struct {
	APIBase         string        // Base URL of the remote store API
	Token           string        // Authentication token for the remote store
	FolderID        string        // Parent folder for new job records
	GeometryURL     string        // Source URL of the shared geometry file
	GeometryPath    string        // Local cache path for the geometry file
	UploadTimeout   time.Duration // Per-request timeout for remote store calls
	CallbackURL     string        // Optional URL for run lifecycle events
	CallbackKey     string        // HMAC signing key for callbacks
	CallbackTimeout time.Duration
	MetricsPort     string // Port serving /metrics while a run is in flight
}

// LoadRunnerConfig loads runner configuration from environment variables.
// The token can come from TOKEN directly or from a file named by TOKEN_FILE.
func LoadRunnerConfig() *RunnerConfig {
	token := GetEnv("TOKEN", "")
	if token == "" {
		token = GetSecretFile(GetEnv("TOKEN_FILE", ""))
	}
	return &RunnerConfig{
		APIBase:         GetEnv("API_URL", DefaultAPIBase),
		Token:           token,
		FolderID:        GetEnv("FOLDER_ID", ""),
		GeometryURL:     GetEnv("GEOMETRY_URL", DefaultGeometryURL),
		GeometryPath:    GetEnv("GEOMETRY_PATH", "geometry.hdf5"),
		UploadTimeout:   GetDurationEnv("UPLOAD_TIMEOUT", 5*time.Minute),
		CallbackURL:     GetEnv("CALLBACK_URL", ""),
		CallbackKey:     GetEnv("CALLBACK_KEY", ""),
		CallbackTimeout: GetDurationEnv("CALLBACK_TIMEOUT", 30*time.Second),
		MetricsPort:     GetEnv("METRICS_PORT", "9090"),
	}
}
