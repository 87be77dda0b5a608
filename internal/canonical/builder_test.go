package canonical

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nhstac/internal/errors"
	"nhstac/internal/shared/testutil"
	"nhstac/pkg/contracts/domain"
)

type memoryRecorder struct {
	mu       sync.Mutex
	outcomes map[string][]domain.WorkbookOutcome
}

func (m *memoryRecorder) RecordWorkbook(_ context.Context, runID string, o domain.WorkbookOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string][]domain.WorkbookOutcome)
	}
	m.outcomes[runID] = append(m.outcomes[runID], o)
	return nil
}

func TestBuild_SkipsWorkbookWithoutDataSheet(t *testing.T) {
	cfg, paths := testutil.NewTestConfig(t)
	testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{
		Name: "TAC_Trusts_2023-24.xlsx",
		Rows: testutil.GenerateRows("Alpha NHS Trust", 100),
	})
	testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{
		Name:   "TAC_FTs_2023-24.xlsx",
		Sheet:  "Contents",
		Header: []interface{}{"Introduction", "Notes"},
	})

	logger, logs := testutil.NewTestLogger(t)
	recorder := &memoryRecorder{}
	report, err := NewBuilder(cfg.Extract, paths, logger, WithRecorder(recorder)).Build(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, int64(100), report.Rows)
	assert.Equal(t, 1, report.Extracted)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"workbook_skipped"}, logs.Messages(slog.LevelWarn))

	skipped := logs.Records(slog.LevelWarn)[0]
	assert.Equal(t, "TAC_FTs_2023-24.xlsx", skipped.Attrs["file"])
	assert.Equal(t, domain.SkipWorksheetNotRecognised, skipped.Attrs["reason"])

	store, err := OpenStoreReadOnly(paths.DuckDB)
	require.NoError(t, err)
	defer store.Close()

	facts, err := store.Facts(context.Background(), FactFilter{})
	require.NoError(t, err)
	require.Len(t, facts, 100)
	for _, f := range facts {
		assert.Equal(t, "Trust", f.Sector)
		assert.Equal(t, "2023-24", f.FY)
	}

	require.Len(t, recorder.outcomes["run-1"], 2)
	assert.Equal(t, domain.WorkbookSkipped, recorder.outcomes["run-1"][0].Status)
	assert.Equal(t, "FT", recorder.outcomes["run-1"][0].Sector)
	assert.Equal(t, domain.WorkbookExtracted, recorder.outcomes["run-1"][1].Status)
}

func TestBuild_RowCountIsSumOfExtracts(t *testing.T) {
	cfg, paths := testutil.NewTestConfig(t)
	sizes := map[string]int{
		"TAC_Trusts_2021-22.xlsx": 7,
		"TAC_Trusts_2022-23.xlsx": 12,
		"TAC_FTs_2022-23.xlsx":    5,
	}
	for name, n := range sizes {
		testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{Name: name, Rows: testutil.GenerateRows("Org "+name, n)})
	}
	// matches the discovery glob but not the naming convention
	testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{Name: "TAC_Summary.xlsx", Rows: testutil.GenerateRows("X", 3)})

	report, err := NewBuilder(cfg.Extract, paths, nil).Build(context.Background(), "run-2")
	require.NoError(t, err)

	var sum int
	for _, o := range report.Outcomes {
		sum += o.Rows
		if o.File == "TAC_Summary.xlsx" {
			assert.Equal(t, domain.WorkbookSkipped, o.Status)
			assert.Equal(t, domain.SkipUnrecognisedName, o.Reason)
		}
	}
	assert.Equal(t, 24, sum)
	assert.Equal(t, int64(24), report.Rows)

	records, err := ReadParquet(paths.FactParquet)
	require.NoError(t, err)
	assert.Len(t, records, 24)

	// workbooks are appended in file name order
	assert.Equal(t, "TAC_FTs_2022-23.xlsx", records[0].SourceFile)
	assert.Equal(t, "TAC_Trusts_2022-23.xlsx", records[len(records)-1].SourceFile)

	require.Len(t, report.QC, 3)
	assert.Equal(t, "2021-22", report.QC[0].FY)
	assert.Equal(t, "Trust", report.QC[0].Sector)
	assert.Equal(t, int64(7), report.QC[0].Rows)
	assert.Equal(t, "28000.00", report.QC[0].TotalAmount.StringFixed(2))
}

func TestBuild_DatabaseMatchesParquet(t *testing.T) {
	cfg, paths := testutil.NewTestConfig(t)
	rows := testutil.GenerateRows("Alpha NHS Trust", 30)
	rows[4].Amount = "not a number"
	rows[9].Amount = nil
	testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{Name: "TAC_Trusts_2022-23.xlsx", Rows: rows})
	testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{Name: "TAC_FTs_2022-23.xlsx", Rows: testutil.GenerateRows("Beta NHS FT", 20)})

	report, err := NewBuilder(cfg.Extract, paths, nil).Build(context.Background(), "run-3")
	require.NoError(t, err)

	records, err := ReadParquet(paths.FactParquet)
	require.NoError(t, err)
	parquetKeys := make([]domain.FactKey, len(records))
	for i, r := range records {
		parquetKeys[i] = r.Key()
	}

	store, err := OpenStoreReadOnly(paths.DuckDB)
	require.NoError(t, err)
	defer store.Close()

	dbKeys, err := store.KeyTuples(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, parquetKeys, dbKeys)

	dbQC, err := store.QC(context.Background())
	require.NoError(t, err)
	require.Len(t, dbQC, 2)
	for i := range dbQC {
		assert.Equal(t, report.QC[i].Rows, dbQC[i].Rows)
		assert.Equal(t, report.QC[i].NullAmounts, dbQC[i].NullAmounts)
		assert.True(t, report.QC[i].TotalAmount.Equal(dbQC[i].TotalAmount))
	}
	assert.Equal(t, int64(2), report.QC[1].NullAmounts)
}

func TestBuild_RerunIsIdempotent(t *testing.T) {
	cfg, paths := testutil.NewTestConfig(t)
	testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{Name: "TAC_Trusts_2023-24.xlsx", Rows: testutil.GenerateRows("Alpha NHS Trust", 25)})
	testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{Name: "TAC_FTs_2023-24.xlsx", Rows: testutil.GenerateRows("Beta NHS FT", 15)})

	builder := NewBuilder(cfg.Extract, paths, nil)
	snapshot := func() ([]domain.FactRecord, []byte) {
		_, err := builder.Build(context.Background(), "run")
		require.NoError(t, err)

		store, err := OpenStoreReadOnly(paths.DuckDB)
		require.NoError(t, err)
		defer store.Close()
		facts, err := store.Facts(context.Background(), FactFilter{})
		require.NoError(t, err)

		qc, err := os.ReadFile(paths.QCSummary)
		require.NoError(t, err)
		return facts, qc
	}

	firstFacts, firstQC := snapshot()
	secondFacts, secondQC := snapshot()

	assert.Equal(t, firstFacts, secondFacts)
	assert.Equal(t, firstQC, secondQC)
}

func TestBuild_FatalConditions(t *testing.T) {
	t.Run("missing input directory", func(t *testing.T) {
		cfg, paths := testutil.NewTestConfig(t)
		require.NoError(t, os.RemoveAll(paths.RawDir))

		_, err := NewBuilder(cfg.Extract, paths, nil).Build(context.Background(), "run")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	})

	t.Run("no workbooks", func(t *testing.T) {
		cfg, paths := testutil.NewTestConfig(t)

		_, err := NewBuilder(cfg.Extract, paths, nil).Build(context.Background(), "run")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
	})

	t.Run("nothing extractable", func(t *testing.T) {
		cfg, paths := testutil.NewTestConfig(t)
		testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{
			Name:   "TAC_FTs_2023-24.xlsx",
			Header: []interface{}{"Introduction"},
		})

		_, err := NewBuilder(cfg.Extract, paths, nil).Build(context.Background(), "run")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.NoFileExists(t, paths.FactParquet)
	})

	t.Run("cancelled", func(t *testing.T) {
		cfg, paths := testutil.NewTestConfig(t)
		testutil.WriteWorkbook(t, paths.RawDir, testutil.WorkbookSpec{Name: "TAC_FTs_2023-24.xlsx", Rows: testutil.GenerateRows("A", 2)})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewBuilder(cfg.Extract, paths, nil).Build(ctx, "run")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
