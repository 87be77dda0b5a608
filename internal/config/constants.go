package config

import "time"

// Canonical output names
const (
	FactTableName    = "fact_tru_tac"
	FactParquetFile  = "fact_tru_tac.parquet"
	DuckDBFile       = "tru_tac.duckdb"
	LedgerFile       = "runs.db"
	QCSummaryFile    = "qc_summary.csv"
	MetricsTextfile  = "tac_pipeline.prom"
	DefaultConfigEnv = "TAC"
)

// Workbook conventions
const (
	DefaultDataSheet       = "All data"
	DefaultWorkbookPattern = "TAC_*.xlsx"
	ExcelExtension         = ".xlsx"
)

// Analytics defaults
const (
	DefaultZThreshold = 2.0
	DefaultTopN       = 750
	DefaultFocusFY    = "2023-24"
)

// Dimension and analysis table names
const (
	ProviderDimTable   = "dim_provider"
	SubCodeDimTable    = "dim_tac_subcodes"
	LineSeedTable      = "dim_tac_lines_seed"
	SubCodeLabelTable  = "dim_tac_subcodes_ws"
	EnrichedFactTable  = "fact_tru_tac_enriched"
	TopLinesTable      = "top_lines"
	DefaultServerAddr  = ":8090"
	DefaultReadTimeout = 15 * time.Second
)
