package commands

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/shared/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(io.Discard)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func dataDir(t *testing.T, workbooks ...string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TAC_PATHS_LOGS_DIR", filepath.Join(dir, "logs"))
	t.Setenv("TAC_ANALYTICS_CHARTS", "false")

	raw := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(raw, 0755))
	for _, name := range workbooks {
		testutil.WriteWorkbook(t, raw, testutil.WorkbookSpec{
			Name: name,
			Rows: testutil.GenerateRows("Alpha NHS Trust", 10),
		})
	}
	return dir
}

func TestExtractInspectRuns(t *testing.T) {
	dir := dataDir(t, "TAC_Trusts_2022-23.xlsx", "TAC_FTs_2023-24.xlsx")

	out, err := execute(t, "--data-dir", dir, "extract")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "extracted 2 workbooks, skipped 0, 20 rows")
	assert.Contains(t, out, "2022-23")
	assert.FileExists(t, filepath.Join(dir, "canonical", config.DuckDBFile))

	out, err = execute(t, "--data-dir", dir, "inspect", "--limit", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "## tables in")
	assert.Contains(t, out, config.FactTableName)
	assert.Contains(t, out, "## first 3 rows of "+config.FactTableName)

	out, err = execute(t, "--data-dir", dir, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "extract")
	assert.Contains(t, out, "completed")
}

func TestAnalyze_UnknownJob(t *testing.T) {
	dir := dataDir(t, "TAC_Trusts_2022-23.xlsx")
	_, err := execute(t, "--data-dir", dir, "extract")
	require.NoError(t, err)

	_, err = execute(t, "--data-dir", dir, "analyze", "no_such_job")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeValidation, appErr.Type)
}

func TestExtract_MissingInputs(t *testing.T) {
	dir := dataDir(t)

	_, err := execute(t, "--data-dir", dir, "extract")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeNotFound, appErr.Type)
}

func TestInspect_MissingDatabase(t *testing.T) {
	dir := dataDir(t)

	_, err := execute(t, "--data-dir", dir, "inspect")
	assert.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "tac")
}
