// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"bindery/internal/config"
)

// NewConfig returns a validated default configuration rooted in per-test
// temporary directories.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.OutputFolder = t.TempDir()
	cfg.Paths.StagingDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Inventory.Path = filepath.Join(t.TempDir(), "inventory.db")
	return &cfg
}

// WriteConfigFile marshals cfg to TOML in a temporary directory and returns
// the file path, for tests exercising the --config flag.
func WriteConfigFile(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bindery.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
