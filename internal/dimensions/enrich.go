package dimensions

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"

	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/exporter"
)

// unmappedReportLimit caps unmapped_subcodes.csv
const unmappedReportLimit = 300

// EnrichJob builds fact_tru_tac_enriched by joining the facts to the provider
// and label dimensions, then reports how much spend has no label
type EnrichJob struct{}

func (EnrichJob) Name() string { return "enrich" }

func (EnrichJob) Description() string {
	return "Enriched fact table with provider ids and sub code labels, plus unmapped QC"
}

var enrichQuery = fmt.Sprintf(`
CREATE OR REPLACE TABLE %[1]s AS
SELECT
	f.*,
	p.provider_id,
	p.org_name_canonical,
	m.subcode_label,
	m.source_file AS mapping_source_file,
	m.subcode_label IS NULL AS is_unmapped
FROM (
	SELECT *, regexp_replace(lower(WorkSheetName), '[^\pL\pN]+', '', 'g') AS ws_key
	FROM %[2]s
) f
LEFT JOIN %[3]s p
	ON f.sector = p.sector
	AND f.org_name_raw = p.org_name_raw
LEFT JOIN %[4]s m
	ON f.fy = m.fy
	AND f.ws_key = m.ws_key
	AND f.SubCode = m.SubCode`,
	config.EnrichedFactTable, config.FactTableName, config.ProviderDimTable, config.SubCodeLabelTable)

var unmappedShareQuery = fmt.Sprintf(`
SELECT
	fy,
	sector,
	COUNT(*) FILTER (WHERE is_unmapped) AS unmapped_rows,
	COUNT(*) AS total_rows,
	COALESCE(SUM(ABS(amount)), 0) AS abs_total,
	COALESCE(SUM(ABS(amount)) FILTER (WHERE is_unmapped), 0) AS abs_unmapped
FROM %s
GROUP BY fy, sector
ORDER BY fy, sector`, config.EnrichedFactTable)

var unmappedSubCodesQuery = fmt.Sprintf(`
SELECT
	fy, sector, WorkSheetName, TableID, SubCode,
	COUNT(*) AS rows,
	COALESCE(SUM(ABS(amount)), 0) AS abs_amount
FROM %s
WHERE is_unmapped
GROUP BY fy, sector, WorkSheetName, TableID, SubCode
ORDER BY abs_amount DESC, fy, sector, WorkSheetName, TableID, SubCode
LIMIT %d`, config.EnrichedFactTable, unmappedReportLimit)

// UnmappedShare is the share of a fy/sector group's spend whose sub code has no label
type UnmappedShare struct {
	FY           string
	Sector       string
	UnmappedRows int64
	TotalRows    int64
	AbsTotal     float64
	AbsUnmapped  float64
}

// SharePct returns the unmapped percentage of absolute spend, NaN when the group has none
func (u UnmappedShare) SharePct() float64 {
	if u.AbsTotal == 0 {
		return math.NaN()
	}
	return u.AbsUnmapped / u.AbsTotal * 100
}

func (j EnrichJob) Run(ctx context.Context, env *Env) (*Result, error) {
	for _, table := range []string{config.FactTableName, config.ProviderDimTable, config.SubCodeLabelTable} {
		if err := env.Store.RequireTable(ctx, table); err != nil {
			return nil, err
		}
	}

	if err := env.Store.Exec(ctx, enrichQuery); err != nil {
		return nil, err
	}
	n, err := env.Store.CountRows(ctx, config.EnrichedFactTable)
	if err != nil {
		return nil, err
	}

	shares, err := UnmappedShares(ctx, env.Store.DB())
	if err != nil {
		return nil, err
	}

	w := exporter.NewCSVWriter(env.Paths.AnalysisJobDir(j.Name()), env.logger())
	result := &Result{Table: config.EnrichedFactTable, Rows: int(n)}

	shareRows := make([][]string, len(shares))
	for i, s := range shares {
		shareRows[i] = []string{
			s.FY, s.Sector,
			exporter.FormatInt(s.UnmappedRows),
			exporter.FormatInt(s.TotalRows),
			exporter.FormatFloat(s.AbsTotal),
			exporter.FormatFloat(s.AbsUnmapped),
			exporter.FormatRatio(s.SharePct()),
		}
		env.logger().InfoContext(ctx, "unmapped_share",
			slog.String("fy", s.FY),
			slog.String("sector", s.Sector),
			slog.Int64("unmapped_rows", s.UnmappedRows),
			slog.Int64("total_rows", s.TotalRows),
			slog.Float64("share_abs_unmapped_pct", s.SharePct()))
	}
	path, err := w.WriteSimpleCSV("unmapped_share_by_fy_sector.csv", []string{
		"fy", "sector", "unmapped_rows", "total_rows", "abs_total", "abs_unmapped", "share_abs_unmapped_pct",
	}, shareRows)
	if err != nil {
		return nil, err
	}
	result.Outputs = append(result.Outputs, path)

	subcodes, err := unmappedSubCodes(ctx, env.Store.DB())
	if err != nil {
		return nil, err
	}
	path, err = w.WriteSimpleCSV("unmapped_subcodes.csv", []string{
		"fy", "sector", "WorkSheetName", "TableID", "SubCode", "rows", "abs_amount",
	}, subcodes)
	if err != nil {
		return nil, err
	}
	result.Outputs = append(result.Outputs, path)

	env.logger().InfoContext(ctx, "enrich_completed",
		slog.Int64("rows", n),
		slog.Int("unmapped_subcodes", len(subcodes)))

	return result, nil
}

// UnmappedShares returns the unmapped spend of each fy/sector group of the enriched table
func UnmappedShares(ctx context.Context, db *sql.DB) ([]UnmappedShare, error) {
	rows, err := db.QueryContext(ctx, unmappedShareQuery)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to summarise unmapped spend", err)
	}
	defer rows.Close()

	var out []UnmappedShare
	for rows.Next() {
		var u UnmappedShare
		if err := rows.Scan(&u.FY, &u.Sector, &u.UnmappedRows, &u.TotalRows, &u.AbsTotal, &u.AbsUnmapped); err != nil {
			return nil, apperrors.NewStorageError("failed to scan unmapped share", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func unmappedSubCodes(ctx context.Context, db *sql.DB) ([][]string, error) {
	rows, err := db.QueryContext(ctx, unmappedSubCodesQuery)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to rank unmapped sub codes", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var fy, sector, ws, tableID, subCode string
		var n int64
		var abs float64
		if err := rows.Scan(&fy, &sector, &ws, &tableID, &subCode, &n, &abs); err != nil {
			return nil, apperrors.NewStorageError("failed to scan unmapped sub code", err)
		}
		out = append(out, []string{fy, sector, ws, tableID, subCode, exporter.FormatInt(n), exporter.FormatFloat(abs)})
	}
	return out, rows.Err()
}
