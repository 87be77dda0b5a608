// Package canonicaltest builds loaded fact stores for tests of the packages
// that read them.
package canonicaltest

import (
	"context"
	"testing"

	"nhstac/internal/canonical"
	"nhstac/internal/config"
	"nhstac/pkg/contracts/domain"
)

// Amount returns a pointer to v
func Amount(v float64) *float64 { return &v }

// Fact builds a fact record on the given line with schema version and source file filled in
func Fact(fy, sector, org, worksheet, subCode, rowNumber string, amount *float64) domain.FactRecord {
	file := "TAC_Trusts_" + fy + ".xlsx"
	if sector == "FT" {
		file = "TAC_FTs_" + fy + ".xlsx"
	}
	return domain.FactRecord{
		OrgName:       org,
		WorkSheetName: worksheet,
		TableID:       "1",
		MainCode:      "M1",
		RowNumber:     rowNumber,
		SubCode:       subCode,
		Amount:        amount,
		FY:            fy,
		Sector:        sector,
		SourceFile:    file,
		SchemaVersion: fy,
	}
}

// LoadStore writes records to the canonical parquet file under paths and loads
// them into a read-write store that is closed when the test ends.
func LoadStore(t *testing.T, paths *config.Paths, records []domain.FactRecord) *canonical.Store {
	t.Helper()

	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("create directories: %v", err)
	}
	if err := canonical.WriteParquet(paths.FactParquet, records); err != nil {
		t.Fatalf("write parquet: %v", err)
	}

	store, err := canonical.OpenStore(paths.DuckDB)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	n, err := store.LoadFactFromParquet(context.Background(), paths.FactParquet)
	if err != nil {
		t.Fatalf("load facts: %v", err)
	}
	if n != int64(len(records)) {
		t.Fatalf("loaded %d rows, want %d", n, len(records))
	}
	return store
}
