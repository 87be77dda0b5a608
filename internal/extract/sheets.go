package extract

import (
	"strings"
	"unicode"
)

// MatchRule records which rule selected the data worksheet
type MatchRule string

const (
	MatchExact      MatchRule = "exact"
	MatchNormalized MatchRule = "normalized"
	MatchSubstring  MatchRule = "substring"
	MatchFirstSheet MatchRule = "first_sheet"
)

// NormalizeName lowercases s and drops everything that is not a letter or digit,
// so "All data", "ALL_DATA" and "All-Data" compare equal.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchSheet picks the data worksheet. Rules apply in order and the first hit wins:
// exact name, normalized equality, normalized substring, then the first sheet.
// ok is false only when the workbook has no sheets.
func MatchSheet(sheets []string, want string) (string, MatchRule, bool) {
	if len(sheets) == 0 {
		return "", "", false
	}

	for _, s := range sheets {
		if s == want {
			return s, MatchExact, true
		}
	}

	wantKey := NormalizeName(want)
	if wantKey != "" {
		for _, s := range sheets {
			if NormalizeName(s) == wantKey {
				return s, MatchNormalized, true
			}
		}
		for _, s := range sheets {
			if strings.Contains(NormalizeName(s), wantKey) {
				return s, MatchSubstring, true
			}
		}
	}

	return sheets[0], MatchFirstSheet, true
}
