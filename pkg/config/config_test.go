package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3, cfg.ServerCount)
	assert.Equal(t, uint64(10), cfg.DiskLatencyMS)
	assert.Equal(t, uint64(15), cfg.NetworkLatencyMS)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raftsim.yaml")
	contents := "server_count: 5\nvoting_count: 5\nnetwork_latency_ms: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ServerCount)
	assert.Equal(t, 5, cfg.VotingCount)
	assert.Equal(t, uint64(30), cfg.NetworkLatencyMS)
	// untouched fields keep their defaults
	assert.Equal(t, uint64(10), cfg.DiskLatencyMS)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
