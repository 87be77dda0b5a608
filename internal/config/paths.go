package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains every resolved file location used by the pipeline
type Paths struct {
	DataDir      string
	RawDir       string
	ReferenceDir string
	CanonicalDir string
	MappingsDir  string
	AnalysisDir  string
	LogsDir      string

	// Canonical outputs
	FactParquet string
	DuckDB      string
	Ledger      string
	QCSummary   string
	MetricsFile string
}

// GetPaths resolves the configured layout into concrete paths
func (c *Config) GetPaths() (*Paths, error) {
	dataDir, err := filepath.Abs(c.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir %q: %w", c.Paths.DataDir, err)
	}

	p := &Paths{
		DataDir:      dataDir,
		RawDir:       orDefault(c.Paths.RawDir, filepath.Join(dataDir, "raw")),
		ReferenceDir: orDefault(c.Paths.ReferenceDir, filepath.Join(dataDir, "reference")),
		CanonicalDir: orDefault(c.Paths.CanonicalDir, filepath.Join(dataDir, "canonical")),
		MappingsDir:  orDefault(c.Paths.MappingsDir, filepath.Join(dataDir, "mappings")),
		AnalysisDir:  orDefault(c.Paths.AnalysisDir, filepath.Join(dataDir, "analysis")),
		LogsDir:      orDefault(c.Paths.LogsDir, "logs"),
	}

	p.FactParquet = filepath.Join(p.CanonicalDir, FactParquetFile)
	p.DuckDB = filepath.Join(p.CanonicalDir, DuckDBFile)
	p.Ledger = filepath.Join(p.CanonicalDir, LedgerFile)
	p.QCSummary = filepath.Join(p.CanonicalDir, QCSummaryFile)
	p.MetricsFile = c.Telemetry.MetricsFile
	if p.MetricsFile == "" && c.Telemetry.Metrics {
		p.MetricsFile = filepath.Join(p.CanonicalDir, MetricsTextfile)
	}

	return p, nil
}

// AnalysisJobDir returns the output directory of a single analysis job
func (p *Paths) AnalysisJobDir(job string) string {
	return filepath.Join(p.AnalysisDir, job)
}

// MappingFile returns the CSV path of a dimension seed
func (p *Paths) MappingFile(table string) string {
	return filepath.Join(p.MappingsDir, table+".csv")
}

// EnsureDirectories creates the output directories. Input directories are never created.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.CanonicalDir,
		p.MappingsDir,
		p.AnalysisDir,
		p.LogsDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
