package dimensions

import (
	"context"
	"strings"

	"nhstac/internal/canonical"
	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
)

var subCodeColumns = []canonical.Column{
	{Name: "SubCode", Type: "VARCHAR"},
	{Name: "WorkSheetName", Type: "VARCHAR"},
	{Name: "first_fy", Type: "VARCHAR"},
	{Name: "last_fy", Type: "VARCHAR"},
	{Name: "years_present", Type: "BIGINT"},
	{Name: "fy_list", Type: "VARCHAR"},
}

// SubCodesJob builds dim_tac_subcodes: the years each sub code appears on each worksheet
type SubCodesJob struct{}

func (SubCodesJob) Name() string { return "subcodes" }

func (SubCodesJob) Description() string {
	return "Sub code dimension with presence by year"
}

func (j SubCodesJob) Run(ctx context.Context, env *Env) (*Result, error) {
	if err := env.Store.RequireTable(ctx, config.FactTableName); err != nil {
		return nil, err
	}

	rows, err := env.Store.DB().QueryContext(ctx, `
		SELECT DISTINCT SubCode, WorkSheetName, fy
		FROM fact_tru_tac
		WHERE SubCode <> ''
		ORDER BY SubCode, WorkSheetName, fy`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list sub codes", err)
	}
	defer rows.Close()

	var out [][]interface{}
	var code, ws string
	var years []string
	flush := func() {
		if len(years) == 0 {
			return
		}
		out = append(out, []interface{}{
			code, ws, years[0], years[len(years)-1], int64(len(years)), strings.Join(years, "|"),
		})
	}

	for rows.Next() {
		var c, w, fy string
		if err := rows.Scan(&c, &w, &fy); err != nil {
			return nil, apperrors.NewStorageError("failed to scan sub code", err)
		}
		if c != code || w != ws {
			flush()
			code, ws, years = c, w, nil
		}
		years = append(years, fy)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to read sub codes", err)
	}
	flush()
	rows.Close()

	return publish(ctx, env, config.SubCodeDimTable, subCodeColumns, out)
}
