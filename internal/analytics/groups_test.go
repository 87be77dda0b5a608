package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nhstac/internal/canonical/canonicaltest"
	"nhstac/pkg/contracts/domain"
)

func groupFacts() []domain.FactRecord {
	amt := canonicaltest.Amount
	return []domain.FactRecord{
		canonicaltest.Fact("2023-24", "Trust", "Alpha", "TAC08 Op Exp", "EXP0390", "10", amt(10)),
		canonicaltest.Fact("2023-24", "Trust", "Alpha", "TAC09 IT", "EXP0500", "11", amt(-5)),
		canonicaltest.Fact("2023-24", "Trust", "Gamma", "TAC08 Op Exp", "EXP0390", "10", nil),
		canonicaltest.Fact("2023-24", "FT", "Beta", "TAC08 Op Exp", "EXP0390", "10", amt(45)),
		canonicaltest.Fact("2022-23", "Trust", "Alpha", "TAC08 Op Exp", "EXP0390", "10", amt(1)),
	}
}

func TestGroupCounts(t *testing.T) {
	tests := []struct {
		name string
		dims []Dimension
		want []GroupCount
	}{
		{
			name: "fy and sector",
			dims: []Dimension{DimFY, DimSector},
			want: []GroupCount{
				{Keys: []string{"2022-23", "Trust"}, Rows: 1, AbsAmount: 1},
				{Keys: []string{"2023-24", "FT"}, Rows: 1, AbsAmount: 45},
				{Keys: []string{"2023-24", "Trust"}, Rows: 3, AbsAmount: 15},
			},
		},
		{
			name: "worksheet",
			dims: []Dimension{DimWorkSheet},
			want: []GroupCount{
				{Keys: []string{"TAC08 Op Exp"}, Rows: 4, AbsAmount: 56},
				{Keys: []string{"TAC09 IT"}, Rows: 1, AbsAmount: 5},
			},
		},
		{
			name: "organisation and fy",
			dims: []Dimension{DimOrg, DimFY},
			want: []GroupCount{
				{Keys: []string{"Alpha", "2022-23"}, Rows: 1, AbsAmount: 1},
				{Keys: []string{"Alpha", "2023-24"}, Rows: 2, AbsAmount: 15},
				{Keys: []string{"Beta", "2023-24"}, Rows: 1, AbsAmount: 45},
				{Keys: []string{"Gamma", "2023-24"}, Rows: 1, AbsAmount: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GroupCounts(groupFacts(), tt.dims...))
		})
	}
}

func TestShares(t *testing.T) {
	groups := GroupCounts(groupFacts(), DimFY, DimSector)

	t.Run("within fy", func(t *testing.T) {
		shares := Shares(groups, 1)
		require.Len(t, shares, 3)

		assert.InDelta(t, 100.0, shares[0].RowSharePct, 1e-9)
		assert.InDelta(t, 25.0, shares[1].RowSharePct, 1e-9)
		assert.InDelta(t, 75.0, shares[2].RowSharePct, 1e-9)
		assert.InDelta(t, 75.0, shares[1].AmountSharePct, 1e-9)
		assert.InDelta(t, 25.0, shares[2].AmountSharePct, 1e-9)
	})

	t.Run("overall", func(t *testing.T) {
		var rows float64
		for _, s := range Shares(groups, 0) {
			rows += s.RowSharePct
		}
		assert.InDelta(t, 100.0, rows, 1e-9)
	})

	t.Run("zero amount partition", func(t *testing.T) {
		shares := Shares([]GroupCount{{Keys: []string{"x"}, Rows: 2}}, 1)
		assert.InDelta(t, 100.0, shares[0].RowSharePct, 1e-9)
		assert.True(t, math.IsNaN(shares[0].AmountSharePct))
	})
}
