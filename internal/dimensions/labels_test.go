package dimensions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhstac/internal/shared/testutil"
)

func TestInferFY(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"TAC illustrative 2023-24.xlsx", "2023-24"},
		{"ref_2022_23.xlsx", "2022-23"},
		{"Illustrative202122.xlsx", "2021-22"},
		{"TAC 1920.xlsx", "2019-20"},
		{"notes.xlsx", UnknownFY},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferFY(tt.name))
		})
	}
}

func opExpSheet() testutil.ReferenceSheet {
	return testutil.ReferenceSheet{
		Name: "TAC08 Op Exp",
		Rows: [][]interface{}{
			{"Operating expenditure"},
			{"Description", "Note", "SubCode", "2023-24"},
			{"Staff costs", 3, "EXP0390", 0},
			{nil, "Purchase of IT software", "EXP0400", 0},
			{123, "Premises", " EXP0410 ", 0},
			{"2023", 2024, "EXP0420", 0},
			{2023, "Consultancy", "EXP0430", 0},
			{"Total", nil, "Total", nil},
			{"Staff costs restated", nil, "EXP0390", nil},
		},
	}
}

func TestHarvestLabels(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteReferenceWorkbook(t, dir, "TAC illustrative 2023-24.xlsx",
		testutil.ReferenceSheet{Name: "Contents", Rows: [][]interface{}{
			{"x"}, {"a", "EXP0001"}, {"b", "EXP0002"}, {"c", "EXP0003"},
		}},
		opExpSheet(),
		testutil.ReferenceSheet{Name: "tac06 op inc", Rows: [][]interface{}{
			{"Income", "INC0100"}, {"Other", "INC0200"},
		}},
	)

	labels, err := HarvestLabels(path)
	require.NoError(t, err)

	want := []Label{
		{SubCode: "EXP0390", Label: "Staff costs"},
		{SubCode: "EXP0400", Label: "Purchase of IT software"},
		{SubCode: "EXP0410", Label: "Premises"},
		{SubCode: "EXP0420", Label: "2023"},
		{SubCode: "EXP0430", Label: "Consultancy"},
		{SubCode: "EXP0390", Label: "Staff costs restated"},
	}
	require.Len(t, labels, len(want))
	for i, w := range want {
		assert.Equal(t, w.SubCode, labels[i].SubCode)
		assert.Equal(t, w.Label, labels[i].Label, "first text cell to the left of %s", w.SubCode)
		assert.Equal(t, "2023-24", labels[i].FY)
		assert.Equal(t, "TAC08 Op Exp", labels[i].WorkSheet)
		assert.Equal(t, "TAC illustrative 2023-24.xlsx", labels[i].SourceFile)
	}
}

func TestHarvestLabels_Unreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0644))

	_, err := HarvestLabels(path)
	assert.Error(t, err)
}

func TestFindSubCodeColumn(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]string
		wantRow int
		wantCol int
		found   bool
	}{
		{
			name:  "too few codes",
			rows:  [][]string{{"h"}, {"EXP0390"}, {"EXP0400"}},
			found: false,
		},
		{
			name:    "codes in second column",
			rows:    [][]string{{"a", "b"}, {"x", "EXP0390"}, {"y", "EXP0400"}, {"z", "SOCNE0010A"}},
			wantRow: 0, wantCol: 1, found: true,
		},
		{
			name: "codes beyond the lookahead window",
			rows: append(make([][]string, 16), []string{"EXP0390"}, []string{"EXP0400"}, []string{"EXP0410"}),
			// rows 16..18 are first seen from row 4
			wantRow: 4, wantCol: 0, found: true,
		},
		{
			name:  "lower case is not a code",
			rows:  [][]string{{"h"}, {"exp0390"}, {"exp0400"}, {"exp0410"}},
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, c, ok := findSubCodeColumn(tt.rows)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.wantRow, r)
				assert.Equal(t, tt.wantCol, c)
			}
		})
	}
}

func TestDedupeLabels(t *testing.T) {
	labels := []Label{
		{FY: "2023-24", WorkSheet: "TAC08", SubCode: "B", Label: "first"},
		{FY: "2022-23", WorkSheet: "TAC08", SubCode: "B", Label: "older year"},
		{FY: "2023-24", WorkSheet: "TAC08", SubCode: "A", Label: "a"},
		{FY: "2023-24", WorkSheet: "TAC08", SubCode: "B", Label: "last"},
	}

	got := DedupeLabels(labels)
	require.Len(t, got, 3)
	assert.Equal(t, "older year", got[0].Label)
	assert.Equal(t, "a", got[1].Label)
	assert.Equal(t, "last", got[2].Label)
}
