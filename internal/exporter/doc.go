// Package exporter writes CSV outputs and renders console tables.
//
// CSVWriter writes every analysis and dimension CSV. Files are written to a
// temporary sibling and renamed into place, so a rerun either fully replaces
// an output or leaves the previous one untouched.
//
// RenderTable formats rows as an aligned Markdown table using display width,
// which keeps organisation names with wide characters lined up.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(paths.AnalysisDir, logger)
//	err := w.WriteCSV("outliers/high_outliers.csv", exporter.WriteOptions{
//	    Headers: []string{"fy", "sector", "org_name_raw", "z_score"},
//	    Records: rows,
//	})
package exporter
