package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// TACHeader is the header row of an "All data" worksheet
var TACHeader = []interface{}{
	"Organisation Name", "WorkSheetName", "TableID", "MainCode", "RowNumber", "SubCode", "Total",
}

// TACRow is one line of an "All data" worksheet. Amount may be a number, text or nil.
type TACRow struct {
	Org       string
	Worksheet string
	TableID   string
	MainCode  string
	RowNumber int
	SubCode   string
	Amount    interface{}
}

// WorkbookSpec describes a fixture workbook
type WorkbookSpec struct {
	Name   string
	Sheet  string // data sheet name; empty means "All data"
	Header []interface{}
	Rows   []TACRow
	Extra  []string // additional sheets created before the data sheet
}

// WriteWorkbook saves a TAC-style workbook into dir and returns its path
func WriteWorkbook(t *testing.T, dir string, spec WorkbookSpec) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := spec.Sheet
	if sheet == "" {
		sheet = "All data"
	}
	header := spec.Header
	if header == nil {
		header = TACHeader
	}

	// excelize starts with Sheet1; the extras come first so sheet order is controlled
	sheets := append(append([]string{}, spec.Extra...), sheet)
	if err := f.SetSheetName("Sheet1", sheets[0]); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	for _, name := range sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet %s: %v", name, err)
		}
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i, r := range spec.Rows {
		row := []interface{}{r.Org, r.Worksheet, r.TableID, r.MainCode, r.RowNumber, r.SubCode, r.Amount}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}

	path := filepath.Join(dir, spec.Name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

// GenerateRows builds n distinct rows for org, cycling through a few sub codes
func GenerateRows(org string, n int) []TACRow {
	subCodes := []string{"EXP0390", "EXP0400", "INC0100", "SOF0100"}
	worksheets := []string{"TAC08 Op Exp", "TAC08 Op Exp", "TAC06 Op Inc", "TAC02 SoFP"}

	rows := make([]TACRow, n)
	for i := range rows {
		k := i % len(subCodes)
		rows[i] = TACRow{
			Org:       org,
			Worksheet: worksheets[k],
			TableID:   fmt.Sprintf("%d", 1+k),
			MainCode:  fmt.Sprintf("M%02d", k),
			RowNumber: 10 + i,
			SubCode:   subCodes[k],
			Amount:    float64((i + 1) * 1000),
		}
	}
	return rows
}

// ReferenceSheet is one sheet of an illustrative reference workbook, written cell by cell from A1
type ReferenceSheet struct {
	Name string
	Rows [][]interface{}
}

// WriteReferenceWorkbook saves a workbook with the given sheets, in order, and returns its path
func WriteReferenceWorkbook(t *testing.T, dir, name string, sheets ...ReferenceSheet) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			t.Fatalf("new sheet %s: %v", s.Name, err)
		}
		for r := range s.Rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(s.Name, cell, &s.Rows[r]); err != nil {
				t.Fatalf("write %s row %d: %v", s.Name, r, err)
			}
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}
