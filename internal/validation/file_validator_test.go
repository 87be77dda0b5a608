package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputDirectory(t *testing.T) {
	v := NewFileValidator(nil)

	t.Run("missing directory is fatal", func(t *testing.T) {
		err := v.ValidateInputDirectory(filepath.Join(t.TempDir(), "raw"), "TAC_*.xlsx")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("no matching workbooks is fatal", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.xlsx"), []byte("x"), 0644))
		err := v.ValidateInputDirectory(dir, "TAC_*.xlsx")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no files matching")
	})

	t.Run("file instead of directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "raw")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		assert.Error(t, v.ValidateInputDirectory(file, ""))
	})

	t.Run("valid", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "TAC_FTs_2021-22.xlsx"), []byte("x"), 0644))
		assert.NoError(t, v.ValidateInputDirectory(dir, "TAC_*.xlsx"))
	})
}

func TestValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil)
	dir := filepath.Join(t.TempDir(), "canonical", "nested")

	require.NoError(t, v.ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write check file must be removed")
}

func TestValidateFile(t *testing.T) {
	v := NewFileValidator(nil)
	dir := t.TempDir()

	good := filepath.Join(dir, "TAC_Trusts_2023-24.xlsx")
	require.NoError(t, os.WriteFile(good, []byte("PK"), 0644))
	empty := filepath.Join(dir, "empty.xlsx")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	tests := []struct {
		name    string
		path    string
		exts    []string
		wantErr bool
	}{
		{"valid workbook", good, []string{".xlsx"}, false},
		{"no extension filter", good, nil, false},
		{"wrong extension", good, []string{".csv"}, true},
		{"empty file", empty, nil, true},
		{"missing", filepath.Join(dir, "nope.xlsx"), nil, true},
		{"directory", dir, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateFile(tt.path, tt.exts...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
