package charts

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer(t *testing.T) {
	r := NewRenderer(t.TempDir(), nil)

	tests := []struct {
		name   string
		render func() (string, error)
	}{
		{"bar", func() (string, error) {
			return r.Bar("bar", "Rows", "rows", []string{"2022-23", "2023-24"}, []float64{10, 12})
		}},
		{"grouped", func() (string, error) {
			return r.GroupedBar("grouped", "Rows by sector", "rows", []string{"2022-23", "2023-24"},
				[]Series{{Name: "Trust", Values: []float64{1, 2}}, {Name: "FT", Values: []float64{3, 4}}})
		}},
		{"histogram", func() (string, error) {
			return r.Histogram("hist", "z", "z-score", []float64{-2.5, -1, 0, 0.5, 1, 3}, 5)
		}},
		{"line", func() (string, error) {
			return r.Line("line", "Sub codes", "count", []string{"a", "b", "c"}, []Series{{Name: "codes", Values: []float64{3, 5, 4}}})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := tt.render()
			require.NoError(t, err)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestRenderer_RejectsEmptyAndMisaligned(t *testing.T) {
	r := NewRenderer(t.TempDir(), nil)

	_, err := r.Bar("empty", "", "", nil, nil)
	assert.Error(t, err)

	_, err = r.Histogram("empty", "", "", nil, 10)
	assert.Error(t, err)

	_, err = r.GroupedBar("bad", "", "", []string{"a", "b"}, []Series{{Values: []float64{1}}})
	assert.Error(t, err)
}
