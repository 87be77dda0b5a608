package canonical

import (
	"nhstac/internal/exporter"
	"nhstac/pkg/contracts/domain"
)

// QCHeaders is the column layout of qc_summary.csv and the console table
var QCHeaders = []string{"fy", "sector", "rows", "null_amounts", "total_amount"}

// QCRecords renders QC rows for CSV and console output
func QCRecords(rows []domain.QCRow) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.FY,
			r.Sector,
			exporter.FormatInt(r.Rows),
			exporter.FormatInt(r.NullAmounts),
			r.TotalAmount.StringFixed(2),
		}
	}
	return out
}

// WriteQCSummary writes the QC table to path
func WriteQCSummary(w *exporter.CSVWriter, path string, rows []domain.QCRow) (string, error) {
	return w.WriteSimpleCSV(path, QCHeaders, QCRecords(rows))
}
