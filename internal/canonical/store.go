package canonical

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/shopspring/decimal"

	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/pkg/contracts/domain"
)

// Store wraps the DuckDB database holding the fact table and the derived tables
type Store struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Column describes one column of a materialised table
type Column struct {
	Name string
	Type string // DuckDB type, e.g. VARCHAR, DOUBLE, BIGINT, BOOLEAN
}

// TableInfo is a table name with its row count
type TableInfo struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// ColumnInfo is a column name with its DuckDB type
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FactFilter narrows a fact query. Empty fields match everything; Limit 0 means no limit.
type FactFilter struct {
	FY        string
	Sector    string
	Org       string
	SubCode   string
	WorkSheet string
	Limit     int
	Offset    int
}

// OpenStore opens (or creates) a DuckDB database for writing
func OpenStore(path string) (*Store, error) {
	return openStore(path, false)
}

// OpenStoreReadOnly opens an existing database without taking the write lock
func OpenStoreReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("database").WithContext("path", path)
		}
		return nil, apperrors.NewStorageError("failed to stat database", err)
	}
	return openStore(path, true)
}

func openStore(path string, readOnly bool) (*Store, error) {
	dsn := path
	if readOnly {
		dsn += "?access_mode=READ_ONLY"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open DuckDB", err).WithContext("path", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("failed to connect to DuckDB", err).WithContext("path", path)
	}

	return &Store{db: db, path: path, readOnly: readOnly}, nil
}

// Path returns the database file path
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle for ad-hoc analytical queries
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadFactFromParquet replaces the fact table with the contents of a Parquet file
// and returns the loaded row count.
func (s *Store) LoadFactFromParquet(ctx context.Context, parquetPath string) (int64, error) {
	query := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)",
		quoteIdent(config.FactTableName), quoteLiteral(parquetPath))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return 0, apperrors.NewStorageError("failed to load fact table", err).WithContext("parquet", parquetPath)
	}
	return s.CountRows(ctx, config.FactTableName)
}

// CountRows returns the number of rows in a table
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, apperrors.NewStorageError("failed to count rows", err).WithContext("table", table)
	}
	return n, nil
}

// KeyTuples returns the natural key of every fact row
func (s *Store) KeyTuples(ctx context.Context) ([]domain.FactKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fy, sector, org_name_raw, TableID, MainCode, SubCode, RowNumber
		FROM fact_tru_tac`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query key tuples", err)
	}
	defer rows.Close()

	var keys []domain.FactKey
	for rows.Next() {
		var k domain.FactKey
		if err := rows.Scan(&k.FY, &k.Sector, &k.OrgName, &k.TableID, &k.MainCode, &k.SubCode, &k.RowNumber); err != nil {
			return nil, apperrors.NewStorageError("failed to scan key tuple", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// QC returns row count, null amount count and amount total per fy and sector
func (s *Store) QC(ctx context.Context) ([]domain.QCRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fy, sector, COUNT(*), COUNT(*) - COUNT(amount), COALESCE(SUM(amount), 0)
		FROM fact_tru_tac
		GROUP BY fy, sector
		ORDER BY fy, sector`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query QC summary", err)
	}
	defer rows.Close()

	var out []domain.QCRow
	for rows.Next() {
		var r domain.QCRow
		var total float64
		if err := rows.Scan(&r.FY, &r.Sector, &r.Rows, &r.NullAmounts, &total); err != nil {
			return nil, apperrors.NewStorageError("failed to scan QC row", err)
		}
		r.TotalAmount = decimalFromFloat(total)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SubCodes summarises the sub codes seen on a worksheet, or on every
// worksheet when worksheet is empty. The match ignores case.
func (s *Store) SubCodes(ctx context.Context, worksheet string) ([]domain.SubCodeDim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT SubCode, WorkSheetName, MIN(fy), MAX(fy), COUNT(DISTINCT fy),
		       string_agg(DISTINCT fy, '|' ORDER BY fy)
		FROM fact_tru_tac
		WHERE SubCode <> '' AND (? = '' OR lower(WorkSheetName) = lower(?))
		GROUP BY SubCode, WorkSheetName
		ORDER BY WorkSheetName, SubCode`, worksheet, worksheet)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query sub codes", err)
	}
	defer rows.Close()

	var out []domain.SubCodeDim
	for rows.Next() {
		var d domain.SubCodeDim
		var years string
		if err := rows.Scan(&d.SubCode, &d.WorkSheetName, &d.FirstFY, &d.LastFY, &d.YearsPresent, &years); err != nil {
			return nil, apperrors.NewStorageError("failed to scan sub code", err)
		}
		d.Years = strings.Split(years, "|")
		out = append(out, d)
	}
	return out, rows.Err()
}

// ForEachFact streams fact rows matching filter in key order
func (s *Store) ForEachFact(ctx context.Context, filter FactFilter, fn func(domain.FactRecord) error) error {
	query, args := factQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to query facts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r domain.FactRecord
		var amount sql.NullFloat64
		if err := rows.Scan(&r.OrgName, &r.WorkSheetName, &r.TableID, &r.MainCode, &r.RowNumber, &r.SubCode,
			&amount, &r.FY, &r.Sector, &r.SourceFile, &r.SchemaVersion); err != nil {
			return apperrors.NewStorageError("failed to scan fact", err)
		}
		if amount.Valid {
			v := amount.Float64
			r.Amount = &v
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Facts returns the fact rows matching filter
func (s *Store) Facts(ctx context.Context, filter FactFilter) ([]domain.FactRecord, error) {
	var out []domain.FactRecord
	err := s.ForEachFact(ctx, filter, func(r domain.FactRecord) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

func factQuery(f FactFilter) (string, []interface{}) {
	var where []string
	var args []interface{}
	add := func(clause, value string) {
		if value != "" {
			where = append(where, clause)
			args = append(args, value)
		}
	}
	add("fy = ?", f.FY)
	add("sector = ?", f.Sector)
	add("org_name_raw = ?", f.Org)
	add("SubCode = ?", f.SubCode)
	add("WorkSheetName = ?", f.WorkSheet)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(domain.FactColumns, ", "))
	b.WriteString(" FROM fact_tru_tac")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY fy, sector, org_name_raw, TableID, MainCode, SubCode, RowNumber, source_file")
	if f.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", f.Offset)
	}
	return b.String(), args
}

// ReplaceTable drops and recreates a table, then inserts rows in a single transaction
func (s *Store) ReplaceTable(ctx context.Context, name string, columns []Column, rows [][]interface{}) error {
	if len(columns) == 0 {
		return apperrors.NewValidationError("table has no columns").WithContext("table", name)
	}

	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c.Name) + " " + c.Type
		marks[i] = "?"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	create := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return apperrors.NewStorageError("failed to create table", err).WithContext("table", name)
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(marks, ", ")))
		if err != nil {
			return apperrors.NewStorageError("failed to prepare insert", err).WithContext("table", name)
		}
		defer stmt.Close()

		for i, row := range rows {
			if len(row) != len(columns) {
				return apperrors.NewValidationError("row width does not match columns").
					WithContext("table", name).WithContext("row", i)
			}
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return apperrors.NewStorageError("failed to insert row", err).WithContext("table", name).WithContext("row", i)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("failed to commit table", err).WithContext("table", name)
	}
	return nil
}

// Exec runs a statement that derives one table from others
func (s *Store) Exec(ctx context.Context, query string, args ...interface{}) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewStorageError("failed to execute statement", err)
	}
	return nil
}

// TableExists reports whether a table is present in the main schema
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'main' AND table_name = ?", name).Scan(&n)
	if err != nil {
		return false, apperrors.NewStorageError("failed to look up table", err).WithContext("table", name)
	}
	return n > 0, nil
}

// RequireTable returns a not-found error when the table is missing
func (s *Store) RequireTable(ctx context.Context, name string) error {
	ok, err := s.TableExists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError("table").WithContext("table", name)
	}
	return nil
}

// Tables lists the tables of the main schema with their row counts
func (s *Store) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list tables", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, apperrors.NewStorageError("failed to scan table name", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TableInfo, 0, len(names))
	for _, name := range names {
		n, err := s.CountRows(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, TableInfo{Name: name, Rows: n})
	}
	return out, nil
}

// Columns returns the column layout of a table
func (s *Store) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to describe table", err).WithContext("table", table)
	}
	defer rows.Close()

	var out []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, apperrors.NewStorageError("failed to scan column", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, apperrors.NewNotFoundError("table").WithContext("table", table)
	}
	return out, nil
}

// Preview returns the header and the first limit rows of a table rendered as text
func (s *Store) Preview(ctx context.Context, table string, limit int) ([]string, [][]string, error) {
	if err := s.RequireTable(ctx, table); err != nil {
		return nil, nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), limit))
	if err != nil {
		return nil, nil, apperrors.NewStorageError("failed to preview table", err).WithContext("table", table)
	}
	defer rows.Close()

	headers, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rows.Next() {
		values := make([]interface{}, len(headers))
		ptrs := make([]interface{}, len(headers))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, apperrors.NewStorageError("failed to scan preview row", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		out = append(out, row)
	}
	return headers, out, rows.Err()
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// IsNotFound reports whether err means the database or a table is missing
func IsNotFound(err error) bool {
	return apperrors.IsType(err, apperrors.ErrTypeNotFound)
}

func decimalFromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
