package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SimulationConfig is the engine configuration for one run. Raw holds the
// exact bytes read from disk; they are persisted verbatim to the remote store
// when the job record is created, so external tooling sees the configuration
// the engine actually ran with.
type SimulationConfig struct {
	// TimeStep is the simulated time advanced per emitted state.
	TimeStep float64 `yaml:"time_step"`
	// Parameters are engine-specific knobs the runner treats as opaque.
	Parameters map[string]float64 `yaml:"parameters"`

	Raw []byte `yaml:"-"`
}

// LoadSimulation reads and parses a simulation configuration YAML file.
func LoadSimulation(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseSimulation(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseSimulation parses simulation configuration from raw YAML bytes.
func ParseSimulation(data []byte) (*SimulationConfig, error) {
	var cfg SimulationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.TimeStep == 0 {
		cfg.TimeStep = 1
	}
	if cfg.TimeStep < 0 {
		return nil, fmt.Errorf("time_step must be positive, got %v", cfg.TimeStep)
	}
	cfg.Raw = data
	return &cfg, nil
}
