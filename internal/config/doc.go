// Package config loads and validates settings for the TAC pipeline.
//
// # Configuration Sources
//
// Settings are layered in the following order, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. A YAML file (--config, or config.yaml / configs/config.yaml when present)
//  3. Environment variables with the TAC_ prefix
//
// # Environment Variables
//
// Nested sections are addressed with underscores:
//
//	TAC_PATHS_DATA_DIR=/srv/tac/Data
//	TAC_LOGGING_LEVEL=debug
//	TAC_ANALYTICS_Z_THRESHOLD=2.5
//	TAC_SERVER_ADDR=:8090
//
// # Paths
//
// Paths resolves every concrete input and output location from the configured
// data directory. It is the single source of truth for file locations; no
// other package builds paths from string literals.
package config
