package dimensions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"nhstac/internal/canonical"
	"nhstac/internal/config"
	"nhstac/internal/exporter"
)

// Env is what a dimension job reads from and writes to
type Env struct {
	Store     *canonical.Store
	Paths     *config.Paths
	Analytics config.AnalyticsConfig
	Logger    *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Result describes a published dimension
type Result struct {
	Table   string
	CSVPath string
	Rows    int
	Outputs []string // additional QC files
}

// Job builds one dimension
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context, env *Env) (*Result, error)
}

// Jobs returns the dimension jobs in build order. Enrich needs the provider
// and label dimensions.
func Jobs() []Job {
	return []Job{
		ProvidersJob{},
		SubCodesJob{},
		LinesJob{},
		LabelsJob{},
		EnrichJob{},
	}
}

// Lookup finds a job by name among jobs
func Lookup(jobs []Job, name string) (Job, error) {
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if j.Name() == name {
			return j, nil
		}
		names = append(names, j.Name())
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown dimension %q (available: %v)", name, names)
}

// publish writes rows to the table's mapping CSV and replaces the DuckDB table
func publish(ctx context.Context, env *Env, table string, columns []canonical.Column, rows [][]interface{}) (*Result, error) {
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = c.Name
	}
	records := make([][]string, len(rows))
	for i, row := range rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = cell(v)
		}
		records[i] = rec
	}

	w := exporter.NewCSVWriter(env.Paths.MappingsDir, env.logger())
	path, err := w.WriteSimpleCSV(env.Paths.MappingFile(table), headers, records)
	if err != nil {
		return nil, err
	}
	if err := env.Store.ReplaceTable(ctx, table, columns, rows); err != nil {
		return nil, err
	}

	env.logger().InfoContext(ctx, "dimension_published",
		slog.String("table", table),
		slog.String("csv", path),
		slog.Int("rows", len(rows)))

	return &Result{Table: table, CSVPath: path, Rows: len(rows)}, nil
}

func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return exporter.FormatInt(x)
	case float64:
		return exporter.FormatAmount(&x)
	case bool:
		return exporter.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
