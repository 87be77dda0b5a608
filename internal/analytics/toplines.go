package analytics

import (
	"context"
	"database/sql"

	apperrors "nhstac/internal/errors"
)

// TopLine is one TAC line ranked by absolute amount within its sector
type TopLine struct {
	FY        string
	Sector    string
	TableID   string
	MainCode  string
	SubCode   string
	RowNumber string
	AbsAmount float64
	Rank      int64
}

const topLinesQuery = `
WITH line_totals AS (
	SELECT fy, sector, TableID, MainCode, SubCode, RowNumber,
	       COALESCE(SUM(ABS(amount)), 0) AS abs_amount
	FROM fact_tru_tac
	WHERE fy = ?
	GROUP BY fy, sector, TableID, MainCode, SubCode, RowNumber
),
ranked AS (
	SELECT *,
	       ROW_NUMBER() OVER (
	           PARTITION BY sector
	           ORDER BY abs_amount DESC, TableID, MainCode, SubCode, RowNumber
	       ) AS rn
	FROM line_totals
)
SELECT fy, sector, TableID, MainCode, SubCode, RowNumber, abs_amount, rn
FROM ranked
WHERE rn <= ?
ORDER BY sector, rn`

// TopLines ranks the lines of fy by SUM(ABS(amount)) per sector and keeps the
// first n of each sector. Equal totals are ordered by line key.
func TopLines(ctx context.Context, db *sql.DB, fy string, n int) ([]TopLine, error) {
	rows, err := db.QueryContext(ctx, topLinesQuery, fy, n)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to rank lines", err).WithContext("fy", fy)
	}
	defer rows.Close()

	var out []TopLine
	for rows.Next() {
		var l TopLine
		if err := rows.Scan(&l.FY, &l.Sector, &l.TableID, &l.MainCode, &l.SubCode, &l.RowNumber, &l.AbsAmount, &l.Rank); err != nil {
			return nil, apperrors.NewStorageError("failed to scan ranked line", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LatestFY returns the most recent financial year in the fact table
func LatestFY(ctx context.Context, db *sql.DB) (string, error) {
	var fy sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT MAX(fy) FROM fact_tru_tac").Scan(&fy); err != nil {
		return "", apperrors.NewStorageError("failed to find latest year", err)
	}
	if !fy.Valid {
		return "", apperrors.NewNotFoundError("financial year")
	}
	return fy.String, nil
}
