package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "nhstac/internal/errors"
	"nhstac/internal/operations"
	"nhstac/internal/shared/testutil"
	"nhstac/pkg/contracts/domain"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TAC_PATHS_LOGS_DIR", filepath.Join(dir, "logs"))
	a, err := New(Options{
		DataDir:   dir,
		Addr:      "127.0.0.1:0",
		LogOutput: io.Discard,
	})
	require.NoError(t, err)
	a.Config.Analytics.Charts = false
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func writeInputs(t *testing.T, a *Application) {
	t.Helper()
	require.NoError(t, os.MkdirAll(a.Paths.RawDir, 0755))
	for _, name := range []string{"TAC_Trusts_2022-23.xlsx", "TAC_Trusts_2023-24.xlsx", "TAC_FTs_2023-24.xlsx"} {
		testutil.WriteWorkbook(t, a.Paths.RawDir, testutil.WorkbookSpec{
			Name: name,
			Rows: testutil.GenerateRows("Alpha NHS Trust", 12),
		})
	}
}

func TestNew_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TAC_PATHS_LOGS_DIR", filepath.Join(dir, "logs"))
	a, err := New(Options{DataDir: dir, FocusFY: "2022-23", TopN: 5, Addr: ":9999", LogOutput: io.Discard})
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Equal(t, "2022-23", a.Config.Analytics.FocusFY)
	assert.Equal(t, 5, a.Config.Analytics.TopN)
	assert.Equal(t, ":9999", a.Config.Server.Addr)
	assert.DirExists(t, a.Paths.CanonicalDir)
	assert.NotNil(t, a.Metrics)

	_, err = New(Options{DataDir: dir, FocusFY: "2022", LogOutput: io.Discard})
	assert.Error(t, err)
}

func TestRunPipeline_RecordsRun(t *testing.T) {
	a := newTestApp(t)
	writeInputs(t, a)
	ctx := context.Background()

	state, err := a.RunPipeline(ctx, "pipeline", operations.FullSelection(), false)
	require.NoError(t, err)
	assert.Equal(t, operations.RunStatusCompleted, state.GetStatus())

	runs, err := a.OpenLedger()
	require.NoError(t, err)
	defer runs.Close()

	recent, err := runs.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, state.ID, recent[0].ID)
	assert.Equal(t, domain.RunCompleted, recent[0].Status)
	assert.Equal(t, int64(36), recent[0].Rows)

	outcomes, err := runs.Outcomes(ctx, state.ID)
	require.NoError(t, err)
	assert.Len(t, outcomes, 3)

	// a later analysis-only run reports the fact table size
	_, err = a.RunPipeline(ctx, "analyze counts", operations.Selection{Analyses: []string{"counts"}}, false)
	require.NoError(t, err)
	recent, err = runs.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(36), recent[0].Rows)

	require.NoError(t, a.Close(ctx))
	data, err := os.ReadFile(a.Paths.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tac_workbooks_processed")
}

func TestRunPipeline_RecordsFailure(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.RunPipeline(ctx, "extract", operations.Selection{Extract: true}, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	runs, err := a.OpenLedger()
	require.NoError(t, err)
	defer runs.Close()

	recent, err := runs.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, domain.RunFailed, recent[0].Status)
	assert.NotEmpty(t, recent[0].Error)
}

func TestServe(t *testing.T) {
	a := newTestApp(t)

	err := a.Serve(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	writeInputs(t, a)
	_, err = a.RunPipeline(context.Background(), "extract", operations.Selection{Extract: true}, false)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(a.Paths.CanonicalDir, "tru_tac.duckdb"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, a.Serve(ctx))
}
