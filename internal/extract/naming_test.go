package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhstac/pkg/contracts/domain"
)

func TestParseWorkbookName(t *testing.T) {
	tests := []struct {
		path   string
		sector domain.Sector
		fy     string
	}{
		{"Data/raw/TAC_Trusts_2023-24.xlsx", domain.SectorTrust, "2023-24"},
		{"TAC_FTs_2017-18.xlsx", domain.SectorFT, "2017-18"},
		{"/abs/TAC_FTs_1999-00.xlsx", domain.SectorFT, "1999-00"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			meta, err := ParseWorkbookName(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.sector, meta.Sector)
			assert.Equal(t, tt.fy, meta.FY)
			assert.Equal(t, tt.fy, meta.SchemaVersion)
		})
	}
}

func TestParseWorkbookName_Rejects(t *testing.T) {
	for _, name := range []string{
		"TAC_NHS_2023-24.xlsx",
		"TAC_Trusts_2023.xlsx",
		"TAC_Trusts_2023-24.xls",
		"tac_trusts_2023-24.xlsx",
		"TAC_Trusts_2023-25.xlsx",
		"Copy of TAC_Trusts_2023-24.xlsx",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWorkbookName(name)
			assert.True(t, errors.Is(err, ErrUnrecognisedWorkbookName), "got %v", err)
		})
	}
}
