package dimensions

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhstac/internal/canonical/canonicaltest"
	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/shared/testutil"
	"nhstac/pkg/contracts/domain"
)

const (
	opExp = "TAC08 Op Exp"
	alpha = "Alpha  NHS   Trust"
)

func dimFacts() []domain.FactRecord {
	amt := canonicaltest.Amount
	return []domain.FactRecord{
		canonicaltest.Fact("2022-23", "Trust", alpha, opExp, "EXP0390", "10", amt(100)),
		canonicaltest.Fact("2023-24", "Trust", alpha, opExp, "EXP0390", "10", amt(120)),
		canonicaltest.Fact("2023-24", "Trust", alpha, opExp, "EXP0400", "11", amt(-30)),
		canonicaltest.Fact("2023-24", "FT", "Beta NHS FT", opExp, "EXP0390", "10", amt(50)),
		canonicaltest.Fact("2023-24", "FT", "Beta NHS FT", "TAC09 IT", "EXP9999", "5", amt(7)),
	}
}

func newEnv(t *testing.T) *Env {
	t.Helper()
	cfg, paths := testutil.NewTestConfig(t)
	store := canonicaltest.LoadStore(t, paths, dimFacts())
	return &Env{Store: store, Paths: paths, Analytics: cfg.Analytics}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func writeReference(t *testing.T, env *Env) {
	t.Helper()
	require.NoError(t, os.MkdirAll(env.Paths.ReferenceDir, 0755))
	testutil.WriteReferenceWorkbook(t, env.Paths.ReferenceDir, "TAC illustrative 2023-24.xlsx", opExpSheet())
	require.NoError(t, os.WriteFile(filepath.Join(env.Paths.ReferenceDir, "broken.xlsx"), []byte("junk"), 0644))
}

func TestProvidersJob(t *testing.T) {
	env := newEnv(t)

	result, err := ProvidersJob{}.Run(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderDimTable, result.Table)
	assert.Equal(t, 2, result.Rows)

	assert.Equal(t, [][]string{
		{"provider_id", "sector", "org_name_raw", "org_name_canonical", "first_fy", "last_fy", "row_count"},
		{ProviderID("FT", "Beta NHS FT"), "FT", "Beta NHS FT", "Beta NHS FT", "2023-24", "2023-24", "2"},
		{ProviderID("Trust", alpha), "Trust", alpha, "Alpha NHS Trust", "2022-23", "2023-24", "3"},
	}, readCSV(t, env.Paths.MappingFile(config.ProviderDimTable)))

	n, err := env.Store.CountRows(context.Background(), config.ProviderDimTable)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestProviderID(t *testing.T) {
	assert.Equal(t, ProviderID("Trust", "Alpha"), ProviderID("Trust", "Alpha"))
	assert.NotEqual(t, ProviderID("Trust", "Alpha"), ProviderID("FT", "Alpha"))
	assert.NotEqual(t, ProviderID("Trust", "Alpha"), ProviderID("Trust", "Alpha "))
	assert.Len(t, ProviderID("Trust", "Alpha"), 36)
}

func TestSubCodesJob(t *testing.T) {
	env := newEnv(t)

	_, err := SubCodesJob{}.Run(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"SubCode", "WorkSheetName", "first_fy", "last_fy", "years_present", "fy_list"},
		{"EXP0390", opExp, "2022-23", "2023-24", "2", "2022-23|2023-24"},
		{"EXP0400", opExp, "2023-24", "2023-24", "1", "2023-24"},
		{"EXP9999", "TAC09 IT", "2023-24", "2023-24", "1", "2023-24"},
	}, readCSV(t, env.Paths.MappingFile(config.SubCodeDimTable)))
}

func TestLinesJob(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		name string
		topN int
		want [][]string
	}{
		{
			name: "top line of each sector, deduplicated",
			topN: 1,
			want: [][]string{{"1", "M1", "EXP0390", "10", "", "", "", "", ""}},
		},
		{
			name: "all lines sorted by key",
			topN: 750,
			want: [][]string{
				{"1", "M1", "EXP0390", "10", "", "", "", "", ""},
				{"1", "M1", "EXP0400", "11", "", "", "", "", ""},
				{"1", "M1", "EXP9999", "5", "", "", "", "", ""},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.Analytics.TopN = tt.topN
			_, err := LinesJob{}.Run(context.Background(), env)
			require.NoError(t, err)

			got := readCSV(t, env.Paths.MappingFile(config.LineSeedTable))
			assert.Equal(t, []string{"TableID", "MainCode", "SubCode", "RowNumber",
				"line_label", "category_1", "category_2", "is_digital_data_it", "notes"}, got[0])
			assert.Equal(t, tt.want, got[1:])
		})
	}
}

func TestLabelsJob(t *testing.T) {
	env := newEnv(t)

	t.Run("no reference workbooks", func(t *testing.T) {
		result, err := LabelsJob{}.Run(context.Background(), env)
		require.NoError(t, err)
		assert.Zero(t, result.Rows)

		ok, err := env.Store.TableExists(context.Background(), config.SubCodeLabelTable)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("harvests and skips unreadable files", func(t *testing.T) {
		writeReference(t, env)

		result, err := LabelsJob{}.Run(context.Background(), env)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Rows)

		assert.Equal(t, [][]string{
			{"fy", "WorkSheetName", "ws_key", "SubCode", "subcode_label", "source_file"},
			{"2023-24", opExp, "tac08opexp", "EXP0390", "Staff costs restated", "TAC illustrative 2023-24.xlsx"},
			{"2023-24", opExp, "tac08opexp", "EXP0400", "Purchase of IT software", "TAC illustrative 2023-24.xlsx"},
			{"2023-24", opExp, "tac08opexp", "EXP0410", "Premises", "TAC illustrative 2023-24.xlsx"},
		}, readCSV(t, env.Paths.MappingFile(config.SubCodeLabelTable)))
	})
}

func TestEnrichJob(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := EnrichJob{}.Run(ctx, env)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound), "dimensions must be built first")

	writeReference(t, env)
	_, err = ProvidersJob{}.Run(ctx, env)
	require.NoError(t, err)
	_, err = LabelsJob{}.Run(ctx, env)
	require.NoError(t, err)

	result, err := EnrichJob{}.Run(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Rows)
	require.Len(t, result.Outputs, 2)

	assert.Equal(t, [][]string{
		{"fy", "sector", "unmapped_rows", "total_rows", "abs_total", "abs_unmapped", "share_abs_unmapped_pct"},
		{"2022-23", "Trust", "1", "1", "100.00", "100.00", "100.0000"},
		{"2023-24", "FT", "1", "2", "57.00", "7.00", "12.2807"},
		{"2023-24", "Trust", "0", "2", "150.00", "0.00", "0.0000"},
	}, readCSV(t, result.Outputs[0]))

	assert.Equal(t, [][]string{
		{"fy", "sector", "WorkSheetName", "TableID", "SubCode", "rows", "abs_amount"},
		{"2022-23", "Trust", opExp, "1", "EXP0390", "1", "100.00"},
		{"2023-24", "FT", "TAC09 IT", "1", "EXP9999", "1", "7.00"},
	}, readCSV(t, result.Outputs[1]))

	var providerID, canonicalName, label string
	var unmapped bool
	err = env.Store.DB().QueryRowContext(ctx, `
		SELECT provider_id, org_name_canonical, subcode_label, is_unmapped
		FROM fact_tru_tac_enriched
		WHERE fy = '2023-24' AND sector = 'Trust' AND SubCode = 'EXP0400'`).
		Scan(&providerID, &canonicalName, &label, &unmapped)
	require.NoError(t, err)
	assert.Equal(t, ProviderID("Trust", alpha), providerID)
	assert.Equal(t, "Alpha NHS Trust", canonicalName)
	assert.Equal(t, "Purchase of IT software", label)
	assert.False(t, unmapped)
}

func TestLookup(t *testing.T) {
	job, err := Lookup(Jobs(), "enrich")
	require.NoError(t, err)
	assert.Equal(t, "enrich", job.Name())

	_, err = Lookup(Jobs(), "postcodes")
	assert.Error(t, err)
}
