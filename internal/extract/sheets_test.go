package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "alldata", NormalizeName("All data"))
	assert.Equal(t, "alldata", NormalizeName(" ALL_DATA "))
	assert.Equal(t, "organisationname", NormalizeName("Organisation Name"))
	assert.Equal(t, "valuenumber", NormalizeName("Value (number)"))
	assert.Equal(t, "", NormalizeName("--"))
}

func TestMatchSheet(t *testing.T) {
	tests := []struct {
		name      string
		sheets    []string
		wantSheet string
		wantRule  MatchRule
	}{
		{"exact wins over normalized", []string{"ALL DATA", "All data"}, "All data", MatchExact},
		{"normalized", []string{"Cover", "All_Data"}, "All_Data", MatchNormalized},
		{"normalized beats substring", []string{"All data 2023-24", "all-data"}, "all-data", MatchNormalized},
		{"substring", []string{"Cover", "All data (2023-24)"}, "All data (2023-24)", MatchSubstring},
		{"first sheet fallback", []string{"Cover", "Notes"}, "Cover", MatchFirstSheet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, rule, ok := MatchSheet(tt.sheets, "All data")
			assert.True(t, ok)
			assert.Equal(t, tt.wantSheet, sheet)
			assert.Equal(t, tt.wantRule, rule)
		})
	}

	_, _, ok := MatchSheet(nil, "All data")
	assert.False(t, ok)
}
