package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config holds all pipeline configuration
type Config struct {
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Extract   ExtractConfig   `yaml:"extract" envconfig:"EXTRACT"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
}

// PathsConfig holds the directory layout. Empty sub-directories are derived from DataDir.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	RawDir       string `yaml:"raw_dir" envconfig:"RAW_DIR"`
	ReferenceDir string `yaml:"reference_dir" envconfig:"REFERENCE_DIR"`
	CanonicalDir string `yaml:"canonical_dir" envconfig:"CANONICAL_DIR"`
	MappingsDir  string `yaml:"mappings_dir" envconfig:"MAPPINGS_DIR"`
	AnalysisDir  string `yaml:"analysis_dir" envconfig:"ANALYSIS_DIR"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// ExtractConfig holds workbook extraction settings
type ExtractConfig struct {
	DataSheet       string `yaml:"data_sheet" envconfig:"DATA_SHEET" validate:"required"`
	WorkbookPattern string `yaml:"workbook_pattern" envconfig:"WORKBOOK_PATTERN" validate:"required"`
}

// AnalyticsConfig holds settings shared by the analysis jobs
type AnalyticsConfig struct {
	ZThreshold    float64 `yaml:"z_threshold" envconfig:"Z_THRESHOLD" validate:"gt=0"`
	TopN          int     `yaml:"top_n" envconfig:"TOP_N" validate:"min=1"`
	FocusFY       string  `yaml:"focus_fy" envconfig:"FOCUS_FY" validate:"omitempty,len=7"`
	CategoryRules string  `yaml:"category_rules" envconfig:"CATEGORY_RULES"`
	Charts        bool    `yaml:"charts" envconfig:"CHARTS"`
}

// TelemetryConfig holds tracing and metrics settings
type TelemetryConfig struct {
	Tracing     bool   `yaml:"tracing" envconfig:"TRACING"`
	TraceFile   string `yaml:"trace_file" envconfig:"TRACE_FILE"`
	Metrics     bool   `yaml:"metrics" envconfig:"METRICS"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// ServerConfig holds settings for the read-only browser API
type ServerConfig struct {
	Addr            string          `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig holds per-client rate limiting
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// Load builds the configuration from defaults, an optional YAML file and the environment.
// An empty filePath searches the usual locations; a missing file is not an error.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	if filePath == "" {
		filePath = getConfigFilePath()
	}
	if filePath != "" {
		if err := loadFromFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(DefaultConfigEnv, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the keys present in the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// getConfigFilePath returns the first config file found in the usual locations
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "Data",
			LogsDir: "logs",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/tac.log",
		},
		Extract: ExtractConfig{
			DataSheet:       DefaultDataSheet,
			WorkbookPattern: DefaultWorkbookPattern,
		},
		Analytics: AnalyticsConfig{
			ZThreshold: DefaultZThreshold,
			TopN:       DefaultTopN,
			FocusFY:    DefaultFocusFY,
			Charts:     true,
		},
		Telemetry: TelemetryConfig{
			Metrics: true,
		},
		Server: ServerConfig{
			Addr:            DefaultServerAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
	}
}
