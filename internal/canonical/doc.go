// Package canonical builds and serves the canonical TAC fact table.
//
// Extracted workbooks are concatenated into a single Snappy-compressed
// Parquet file, which is then loaded into a DuckDB database as the
// fact_tru_tac table. Both outputs are rebuilt from scratch on every run.
// Downstream jobs read the DuckDB file through Store.
package canonical
