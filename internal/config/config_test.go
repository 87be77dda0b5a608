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

	assert.Equal(t, "Data", cfg.Paths.DataDir)
	assert.Equal(t, DefaultDataSheet, cfg.Extract.DataSheet)
	assert.Equal(t, 2.0, cfg.Analytics.ZThreshold)
	assert.Equal(t, 750, cfg.Analytics.TopN)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
paths:
  data_dir: /srv/tac
analytics:
  top_n: 100
  z_threshold: 3
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	t.Setenv("TAC_ANALYTICS_TOP_N", "25")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "/srv/tac", cfg.Paths.DataDir)
	assert.Equal(t, 3.0, cfg.Analytics.ZThreshold)
	assert.Equal(t, 25, cfg.Analytics.TopN, "environment wins over file")
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultDataSheet, cfg.Extract.DataSheet)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad level", "logging:\n  level: loud\n"},
		{"zero threshold", "analytics:\n  z_threshold: -1\n"},
		{"bad focus year", "analytics:\n  focus_fy: 2023\n"},
		{"malformed yaml", "paths: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(file, []byte(tt.content), 0644))

			_, err := Load(file)
			assert.Error(t, err)
		})
	}
}

func TestGetPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.MappingsDir = filepath.Join(dir, "seeds")

	paths, err := cfg.GetPaths()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "raw"), paths.RawDir)
	assert.Equal(t, filepath.Join(dir, "seeds"), paths.MappingsDir)
	assert.Equal(t, filepath.Join(dir, "canonical", FactParquetFile), paths.FactParquet)
	assert.Equal(t, filepath.Join(dir, "canonical", DuckDBFile), paths.DuckDB)
	assert.Equal(t, filepath.Join(dir, "canonical", MetricsTextfile), paths.MetricsFile)
	assert.Equal(t, filepath.Join(dir, "analysis", "outliers"), paths.AnalysisJobDir("outliers"))
	assert.Equal(t, filepath.Join(dir, "seeds", "dim_provider.csv"), paths.MappingFile(ProviderDimTable))
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")

	paths, err := cfg.GetPaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	for _, d := range []string{paths.CanonicalDir, paths.MappingsDir, paths.AnalysisDir, paths.LogsDir} {
		assert.DirExists(t, d)
	}
	assert.NoDirExists(t, paths.RawDir)
}
