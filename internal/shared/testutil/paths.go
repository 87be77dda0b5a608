package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"nhstac/internal/config"
)

// NewTestConfig returns a default configuration rooted in a fresh temp directory,
// with the raw input directory already created.
func NewTestConfig(t *testing.T) (*config.Config, *config.Paths) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Analytics.Charts = false

	paths, err := cfg.GetPaths()
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}
	if err := os.MkdirAll(paths.RawDir, 0755); err != nil {
		t.Fatalf("create raw dir: %v", err)
	}
	return cfg, paths
}
