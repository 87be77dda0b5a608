package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "nhstac/internal/errors"
	"nhstac/pkg/contracts/domain"
)

// ErrWorksheetNotRecognised is returned when no worksheet carries the TAC data columns
var ErrWorksheetNotRecognised = errors.New("worksheet not recognised")

const (
	// headerScanLimit bounds how far down the sheet the header row may sit
	headerScanLimit = 10
	// cancelCheckInterval is how often (in rows) the context is polled
	cancelCheckInterval = 5000
)

// Result is the outcome of extracting one workbook
type Result struct {
	Path    string
	Meta    domain.WorkbookMeta
	Sheet   string
	Rule    MatchRule
	Columns ColumnMap
	Records []domain.FactRecord

	NullAmounts int // amounts stored as null, including non-numeric text
	NonNumeric  int // text amounts that failed to parse
	BlankRows   int // non-empty rows with no key cells, dropped
}

// Extractor reads TAC workbooks
type Extractor struct {
	dataSheet string
	logger    *slog.Logger
}

// NewExtractor creates an extractor looking for dataSheet ("All data" by default)
func NewExtractor(dataSheet string, logger *slog.Logger) *Extractor {
	if dataSheet == "" {
		dataSheet = "All data"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{dataSheet: dataSheet, logger: logger}
}

// Extract reads one workbook into fact records
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	meta, err := ParseWorkbookName(path)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err).WithContext("file", meta.FileName)
	}
	defer f.Close()

	sheet, rule, ok := MatchSheet(f.GetSheetList(), e.dataSheet)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrWorksheetNotRecognised, meta.FileName)
	}

	e.logger.DebugContext(ctx, "worksheet_selected",
		slog.String("file", meta.FileName),
		slog.String("sheet", sheet),
		slog.String("rule", string(rule)))

	result := &Result{
		Path:  path,
		Meta:  meta,
		Sheet: sheet,
		Rule:  rule,
	}

	if err := e.readSheet(ctx, f, result); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "workbook_extracted",
		slog.String("file", meta.FileName),
		slog.String("sector", string(meta.Sector)),
		slog.String("fy", meta.FY),
		slog.String("sheet", sheet),
		slog.String("rule", string(rule)),
		slog.Int("rows", len(result.Records)),
		slog.Int("null_amounts", result.NullAmounts),
		slog.Int("non_numeric", result.NonNumeric))

	return result, nil
}

// readSheet streams the selected sheet, locating the header row first
func (e *Extractor) readSheet(ctx context.Context, f *excelize.File, result *Result) error {
	rows, err := f.Rows(result.Sheet)
	if err != nil {
		return apperrors.NewParsingError("failed to read worksheet", err).WithContext("sheet", result.Sheet)
	}
	defer rows.Close()

	headerFound := false
	var lastMissing []string
	rowIndex := 0

	for rows.Next() {
		rowIndex++
		if rowIndex%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return apperrors.NewParsingError("failed to read row", err).WithContext("row", rowIndex)
		}

		if !headerFound {
			cm, missing := ResolveColumns(cells)
			if len(missing) == 0 {
				headerFound = true
				result.Columns = cm
				e.logColumns(ctx, result)
				continue
			}
			lastMissing = missing
			if rowIndex >= headerScanLimit {
				break
			}
			continue
		}

		e.appendRecord(result, cells)
	}
	if err := rows.Error(); err != nil {
		return apperrors.NewParsingError("failed to iterate worksheet", err).WithContext("sheet", result.Sheet)
	}

	if !headerFound {
		return fmt.Errorf("%w: %s sheet %q (rule %s) lacks columns %s",
			ErrWorksheetNotRecognised, result.Meta.FileName, result.Sheet, result.Rule, strings.Join(lastMissing, ", "))
	}
	return nil
}

func (e *Extractor) logColumns(ctx context.Context, result *Result) {
	e.logger.DebugContext(ctx, "columns_resolved",
		slog.String("file", result.Meta.FileName),
		slog.String("sheet", result.Sheet),
		slog.String("org_column", result.Columns.OrgHeader),
		slog.String("amount_column", result.Columns.AmountHeader))
}

// appendRecord converts one data row. Empty rows are ignored; rows with
// content but no key cells (footers, notes) are dropped and counted.
func (e *Extractor) appendRecord(result *Result, cells []string) {
	if isEmptyRow(cells) {
		return
	}

	cm := result.Columns
	cell := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	rec := domain.FactRecord{
		OrgName:       cell(cm.Org),
		WorkSheetName: cell(cm.WorkSheetName),
		TableID:       cell(cm.TableID),
		MainCode:      cell(cm.MainCode),
		RowNumber:     cell(cm.RowNumber),
		SubCode:       cell(cm.SubCode),
		FY:            result.Meta.FY,
		Sector:        string(result.Meta.Sector),
		SourceFile:    result.Meta.FileName,
		SchemaVersion: result.Meta.SchemaVersion,
	}

	if rec.WorkSheetName == "" && rec.TableID == "" && rec.MainCode == "" && rec.RowNumber == "" && rec.SubCode == "" {
		result.BlankRows++
		return
	}

	amount, invalid := ParseAmount(cell(cm.Amount))
	rec.Amount = amount
	if amount == nil {
		result.NullAmounts++
	}
	if invalid {
		result.NonNumeric++
	}

	result.Records = append(result.Records, rec)
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
