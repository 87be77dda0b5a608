package dimensions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"nhstac/internal/canonical"
	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/extract"
	"nhstac/internal/files"
)

// SubCodePattern matches TAC sub codes such as EXP0390 or SOCNE0010A
var SubCodePattern = regexp.MustCompile(`^[A-Z]{2,5}\d{3,4}[A-Z]?$`)

const (
	// headerSearchRows is how many leading rows may hold the table header
	headerSearchRows = 40
	// lookaheadRows is how many rows below a candidate header are sampled
	lookaheadRows = 14
	// minSubCodeHits is how many sampled cells must look like sub codes
	minSubCodeHits = 3
	// UnknownFY is reported for reference workbooks whose name carries no year
	UnknownFY = "unknown"
)

// Label is a sub code label harvested from a reference worksheet
type Label struct {
	FY         string
	WorkSheet  string
	SubCode    string
	Label      string
	SourceFile string
}

var (
	fySeparated = regexp.MustCompile(`(20\d{2})[-_](\d{2})`)
	fyCompact   = regexp.MustCompile(`(20\d{2})(\d{2})`)
)

// InferFY reads the financial year from a reference workbook name
func InferFY(name string) string {
	if m := fySeparated.FindStringSubmatch(name); m != nil {
		return m[1] + "-" + m[2]
	}
	if m := fyCompact.FindStringSubmatch(name); m != nil {
		return m[1] + "-" + m[2]
	}
	if strings.Contains(name, "1920") {
		return "2019-20"
	}
	return UnknownFY
}

// HarvestLabels reads every TAC worksheet of a reference workbook and returns
// the sub codes it lists with their labels, in sheet and row order
func HarvestLabels(path string) ([]Label, error) {
	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open reference workbook", err).WithContext("file", path)
	}
	defer f.Close()

	name := filepath.Base(path)
	fy := InferFY(name)

	var out []Label
	for _, sheet := range f.GetSheetList() {
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(sheet)), "tac") {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read reference sheet", err).
				WithContext("file", name).WithContext("sheet", sheet)
		}
		textAt := func(r, c int, v string) bool {
			return isText(f, sheet, r, c, v)
		}
		for _, l := range sheetLabels(rows, textAt) {
			l.FY, l.WorkSheet, l.SourceFile = fy, sheet, name
			out = append(out, l)
		}
	}
	return out, nil
}

// sheetLabels finds the sub code column and returns a label for every sub code
// below it. The label is the first cell left of the code that textAt accepts.
func sheetLabels(rows [][]string, textAt func(r, c int, v string) bool) []Label {
	header, col, ok := findSubCodeColumn(rows)
	if !ok {
		return nil
	}

	var out []Label
	for r := header + 1; r < len(rows); r++ {
		code := strings.TrimSpace(cellAt(rows, r, col))
		if !SubCodePattern.MatchString(code) {
			continue
		}
		label := ""
		for c := 0; c < col; c++ {
			if v := strings.TrimSpace(cellAt(rows, r, c)); textAt(r, c, v) {
				label = v
				break
			}
		}
		out = append(out, Label{SubCode: code, Label: label})
	}
	return out
}

// findSubCodeColumn returns the first (row, column) whose following rows contain
// enough sub code shaped values to be the start of a table
func findSubCodeColumn(rows [][]string) (int, int, bool) {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	for r := 0; r < len(rows) && r < headerSearchRows; r++ {
		for c := 0; c < width; c++ {
			hits := 0
			for rr := r + 1; rr < len(rows) && rr <= r+lookaheadRows; rr++ {
				if SubCodePattern.MatchString(strings.TrimSpace(cellAt(rows, rr, c))) {
					hits++
				}
			}
			if hits >= minSubCodeHits {
				return r, c, true
			}
		}
	}
	return 0, 0, false
}

func cellAt(rows [][]string, r, c int) string {
	if r >= len(rows) || c >= len(rows[r]) {
		return ""
	}
	return rows[r][c]
}

// isText reports whether the cell at zero-based (r, c) holding v is text.
// Numeric-looking values count as text when the cell is stored as a string,
// so a label such as "2023" typed as text is kept.
func isText(f *excelize.File, sheet string, r, c int, v string) bool {
	if v == "" {
		return false
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return true
	}
	cell, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return false
	}
	t, err := f.GetCellType(sheet, cell)
	if err != nil {
		return false
	}
	switch t {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return true
	}
	return false
}

// DedupeLabels keeps the last label seen for each (fy, worksheet, sub code)
// and orders the result by that key
func DedupeLabels(labels []Label) []Label {
	type key struct{ fy, ws, code string }
	last := make(map[key]int, len(labels))
	for i, l := range labels {
		last[key{l.FY, l.WorkSheet, l.SubCode}] = i
	}

	out := make([]Label, 0, len(last))
	for i, l := range labels {
		if last[key{l.FY, l.WorkSheet, l.SubCode}] == i {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FY != b.FY {
			return a.FY < b.FY
		}
		if a.WorkSheet != b.WorkSheet {
			return a.WorkSheet < b.WorkSheet
		}
		return a.SubCode < b.SubCode
	})
	return out
}

var labelColumns = []canonical.Column{
	{Name: "fy", Type: "VARCHAR"},
	{Name: "WorkSheetName", Type: "VARCHAR"},
	{Name: "ws_key", Type: "VARCHAR"},
	{Name: "SubCode", Type: "VARCHAR"},
	{Name: "subcode_label", Type: "VARCHAR"},
	{Name: "source_file", Type: "VARCHAR"},
}

// LabelsJob builds dim_tac_subcodes_ws from the reference workbooks.
// Unreadable workbooks are skipped with a warning. Without any reference
// workbook the table is published empty, leaving every fact unmapped.
type LabelsJob struct{}

func (LabelsJob) Name() string { return "labels" }

func (LabelsJob) Description() string {
	return "Sub code labels harvested from the illustrative reference workbooks"
}

func (j LabelsJob) Run(ctx context.Context, env *Env) (*Result, error) {
	log := env.logger()

	var workbooks []files.FileInfo
	if _, err := os.Stat(env.Paths.ReferenceDir); err == nil {
		workbooks, err = files.NewDiscovery("").FindReferenceWorkbooks(env.Paths.ReferenceDir)
		if err != nil {
			return nil, fmt.Errorf("failed to list reference workbooks: %w", err)
		}
	}
	if len(workbooks) == 0 {
		log.WarnContext(ctx, "no_reference_workbooks", slog.String("dir", env.Paths.ReferenceDir))
	}

	var labels []Label
	for _, wb := range workbooks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		harvested, err := HarvestLabels(wb.Path)
		if err != nil {
			log.WarnContext(ctx, "reference_workbook_skipped",
				slog.String("file", wb.Name),
				slog.String("error", err.Error()))
			continue
		}
		if fy := InferFY(wb.Name); fy == UnknownFY {
			log.WarnContext(ctx, "reference_year_unknown", slog.String("file", wb.Name))
		}
		log.InfoContext(ctx, "reference_workbook_harvested",
			slog.String("file", wb.Name),
			slog.Int("labels", len(harvested)))
		labels = append(labels, harvested...)
	}

	labels = DedupeLabels(labels)
	rows := make([][]interface{}, len(labels))
	for i, l := range labels {
		rows[i] = []interface{}{l.FY, l.WorkSheet, extract.NormalizeName(l.WorkSheet), l.SubCode, l.Label, l.SourceFile}
	}
	return publish(ctx, env, config.SubCodeLabelTable, labelColumns, rows)
}
