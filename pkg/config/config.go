// Package config loads the settings that shape a Fixture before Init:
// server/voting counts and the default latencies and election timeouts
// from SPEC_FULL.md §4.C. Tests that are happy with the built-in defaults
// never need this package; it exists for the demo command and for tests
// that want a non-default fixture shape without hand-building a
// raftsim.Fixture's internals.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is loaded defaults-then-override: Default() supplies every field,
// then Load overlays whatever the YAML file sets.
type Config struct {
	ServerCount           int    `yaml:"server_count"`
	VotingCount           int    `yaml:"voting_count"`
	DiskLatencyMS         uint64 `yaml:"disk_latency_ms"`
	NetworkLatencyMS      uint64 `yaml:"network_latency_ms"`
	ElectionTimeoutBaseMS uint64 `yaml:"election_timeout_base_ms"`
	ElectionTimeoutStepMS uint64 `yaml:"election_timeout_step_ms"`
	LogLevel              string `yaml:"log_level"`
}

// Default returns the compiled-in configuration matching the harness's
// built-in defaults (§4.C: disk_latency=10ms, network_latency=15ms,
// randomized election timeout 1000+i*100ms).
func Default() Config {
	return Config{
		ServerCount:           3,
		VotingCount:           3,
		DiskLatencyMS:         10,
		NetworkLatencyMS:      15,
		ElectionTimeoutBaseMS: 1000,
		ElectionTimeoutStepMS: 100,
		LogLevel:              "info",
	}
}

// Load reads path, if it exists, and overlays it onto Default(). A missing
// file is not an error — the caller gets the compiled-in defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
