// Package analytics implements the descriptive analysis jobs over the
// canonical fact table: group counts and shares, z-score outliers,
// schema evolution, top lines and keyword spend categories.
//
// Every job reads the DuckDB store fresh, writes its CSV (and optional PNG)
// outputs under the job's analysis directory and overwrites earlier runs.
package analytics
