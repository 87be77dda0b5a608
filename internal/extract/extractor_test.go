package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhstac/internal/shared/testutil"
)

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteWorkbook(t, dir, testutil.WorkbookSpec{
		Name:  "TAC_Trusts_2023-24.xlsx",
		Extra: []string{"Cover"},
		Rows: []testutil.TACRow{
			{Org: "Alpha NHS Trust", Worksheet: "TAC08 Op Exp", TableID: "1", MainCode: "M1", RowNumber: 10, SubCode: "EXP0390", Amount: 1500.25},
			{Org: "Alpha NHS Trust", Worksheet: "TAC08 Op Exp", TableID: "1", MainCode: "M1", RowNumber: 11, SubCode: "EXP0400", Amount: -300.0},
			{Org: "Beta NHS Trust", Worksheet: "TAC08 Op Exp", TableID: "1", MainCode: "M1", RowNumber: 12, SubCode: "EXP0410", Amount: "n/a"},
			{Org: "Beta NHS Trust", Worksheet: "TAC08 Op Exp", TableID: "1", MainCode: "M1", RowNumber: 13, SubCode: "EXP0420", Amount: nil},
		},
	})

	result, err := NewExtractor("All data", nil).Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "All data", result.Sheet)
	assert.Equal(t, MatchExact, result.Rule)
	require.Len(t, result.Records, 4)
	assert.Equal(t, 2, result.NullAmounts)
	assert.Equal(t, 1, result.NonNumeric)

	first := result.Records[0]
	assert.Equal(t, "Alpha NHS Trust", first.OrgName)
	assert.Equal(t, "TAC08 Op Exp", first.WorkSheetName)
	assert.Equal(t, "10", first.RowNumber)
	assert.Equal(t, "EXP0390", first.SubCode)
	require.NotNil(t, first.Amount)
	assert.Equal(t, 1500.25, *first.Amount)
	assert.Equal(t, "2023-24", first.FY)
	assert.Equal(t, "Trust", first.Sector)
	assert.Equal(t, "TAC_Trusts_2023-24.xlsx", first.SourceFile)
	assert.Equal(t, "2023-24", first.SchemaVersion)

	assert.Equal(t, -300.0, *result.Records[1].Amount)
	assert.Nil(t, result.Records[2].Amount)
	assert.Nil(t, result.Records[3].Amount)
}

func TestExtract_AmountsAreNumericOrNull(t *testing.T) {
	rows := testutil.GenerateRows("Gamma NHS FT", 20)
	rows[3].Amount = "twelve"
	rows[7].Amount = "1,000"
	path := testutil.WriteWorkbook(t, t.TempDir(), testutil.WorkbookSpec{Name: "TAC_FTs_2021-22.xlsx", Rows: rows})

	result, err := NewExtractor("", nil).Extract(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, result.Records, 20)

	for _, r := range result.Records {
		if r.Amount != nil {
			assert.False(t, *r.Amount != *r.Amount, "NaN must not survive")
		}
	}
	assert.Nil(t, result.Records[3].Amount)
	assert.Equal(t, 1000.0, *result.Records[7].Amount)
	assert.Equal(t, "FT", result.Records[0].Sector)
}

func TestExtract_SheetFallbacks(t *testing.T) {
	dir := t.TempDir()

	normalized := testutil.WriteWorkbook(t, dir, testutil.WorkbookSpec{
		Name: "TAC_FTs_2019-20.xlsx", Sheet: "ALL_DATA", Extra: []string{"Cover"},
		Rows: testutil.GenerateRows("Org", 2),
	})
	result, err := NewExtractor("All data", nil).Extract(context.Background(), normalized)
	require.NoError(t, err)
	assert.Equal(t, MatchNormalized, result.Rule)

	first := testutil.WriteWorkbook(t, filepath.Join(dir), testutil.WorkbookSpec{
		Name: "TAC_FTs_2020-21.xlsx", Sheet: "Data", Extra: nil,
		Rows: testutil.GenerateRows("Org", 3),
	})
	result, err = NewExtractor("All data", nil).Extract(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, MatchFirstSheet, result.Rule)
	assert.Len(t, result.Records, 3)
}

func TestExtract_WorksheetNotRecognised(t *testing.T) {
	// The only sheet is a cover page without TAC columns
	path := testutil.WriteWorkbook(t, t.TempDir(), testutil.WorkbookSpec{
		Name:   "TAC_FTs_2023-24.xlsx",
		Sheet:  "Cover",
		Header: []interface{}{"Title", "Published"},
	})

	_, err := NewExtractor("All data", nil).Extract(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorksheetNotRecognised))
	assert.Contains(t, err.Error(), "worksheetname")
}

func TestExtract_MissingOrgOrAmountColumn(t *testing.T) {
	tests := []struct {
		name    string
		header  []interface{}
		missing string
	}{
		{
			name:    "no amount",
			header:  []interface{}{"Organisation Name", "WorkSheetName", "TableID", "MainCode", "RowNumber", "SubCode", "Notes"},
			missing: "amount",
		},
		{
			name:    "no organisation",
			header:  []interface{}{"Provider Code", "WorkSheetName", "TableID", "MainCode", "RowNumber", "SubCode", "Total"},
			missing: "organisation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteWorkbook(t, t.TempDir(), testutil.WorkbookSpec{
				Name:   "TAC_Trusts_2021-22.xlsx",
				Header: tt.header,
				Rows:   testutil.GenerateRows("Gamma NHS Trust", 5),
			})

			result, err := NewExtractor("All data", nil).Extract(context.Background(), path)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, ErrWorksheetNotRecognised))
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestExtract_HeaderBelowTitleRows(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteWorkbook(t, dir, testutil.WorkbookSpec{
		Name: "TAC_Trusts_2018-19.xlsx",
		Rows: testutil.GenerateRows("Delta", 2),
	})

	// Re-save with two title rows inserted above the header
	f, err := openForEdit(path)
	require.NoError(t, err)
	require.NoError(t, f.InsertRows("All data", 1, 2))
	require.NoError(t, f.SetCellValue("All data", "A1", "TAC data 2018-19"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	result, err := NewExtractor("All data", nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, "Delta", result.Records[0].OrgName)
}

func TestExtract_BlankRowsDropped(t *testing.T) {
	path := testutil.WriteWorkbook(t, t.TempDir(), testutil.WorkbookSpec{
		Name: "TAC_Trusts_2022-23.xlsx",
		Rows: testutil.GenerateRows("Epsilon", 3),
	})

	// A footer with only an organisation cell carries no key and is dropped
	f, err := openForEdit(path)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("All data", "A7", "Source: NHS England"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	result, err := NewExtractor("", nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, result.Records, 3)
	assert.Equal(t, 1, result.BlankRows)
}

func TestExtract_BadInputs(t *testing.T) {
	dir := t.TempDir()

	_, err := NewExtractor("", nil).Extract(context.Background(), filepath.Join(dir, "Budget_2023.xlsx"))
	assert.True(t, errors.Is(err, ErrUnrecognisedWorkbookName))

	corrupt := filepath.Join(dir, "TAC_Trusts_2023-24.xlsx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0644))
	_, err = NewExtractor("", nil).Extract(context.Background(), corrupt)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrWorksheetNotRecognised))
}
