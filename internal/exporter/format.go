package exporter

import (
	"fmt"
	"math"
	"strconv"

	"nhstac/pkg/contracts/domain"
)

// FormatAmount formats a reported amount without rounding. Null amounts are empty.
func FormatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatFloat formats a derived value with exactly 2 decimal places.
// Non-finite values are written as empty cells.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return fmt.Sprintf("%.2f", f)
}

// FormatRatio formats z-scores and shares with 4 decimal places
func FormatRatio(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return fmt.Sprintf("%.4f", f)
}

// FormatInt formats an integer count
func FormatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// FormatBool formats a boolean value for CSV output
func FormatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// FactRecordRow renders a fact record in domain.FactColumns order
func FactRecordRow(r domain.FactRecord) []string {
	return []string{
		r.OrgName,
		r.WorkSheetName,
		r.TableID,
		r.MainCode,
		r.RowNumber,
		r.SubCode,
		FormatAmount(r.Amount),
		r.FY,
		r.Sector,
		r.SourceFile,
		r.SchemaVersion,
	}
}
