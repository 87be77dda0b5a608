package extract

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount coerces a raw cell to a number. Empty cells are null; text that
// does not parse is null and reported as invalid. Thousands separators are
// accepted. Signs are kept as reported.
func ParseAmount(raw string) (value *float64, invalid bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}

	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, true
	}
	return &f, false
}
