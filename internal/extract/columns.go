package extract

import "strings"

// Normalised header names of the columns every data worksheet must carry
var requiredColumns = []string{"worksheetname", "tableid", "maincode", "rownumber", "subcode"}

// Candidate headers, most specific first. A sheet needs one of each.
var (
	orgCandidates    = []string{"organisationname", "orgname", "providername", "organisation"}
	amountCandidates = []string{"valuenumber", "total", "amount", "valuenumeric", "value"}
)

// Names reported when no organisation or amount candidate is present
const (
	missingOrg    = "organisation"
	missingAmount = "amount"
)

// ColumnMap holds zero-based column positions
type ColumnMap struct {
	WorkSheetName int
	TableID       int
	MainCode      int
	RowNumber     int
	SubCode       int
	Org           int
	Amount        int

	OrgHeader    string
	AmountHeader string
}

// ResolveColumns maps a header row onto ColumnMap. It returns the normalised
// names of required columns that are missing, plus "organisation" or "amount"
// when no candidate for them is present; a non-empty result means the row is
// not a usable header.
func ResolveColumns(header []string) (ColumnMap, []string) {
	index := make(map[string]int, len(header))
	original := make(map[string]string, len(header))
	for i, h := range header {
		key := NormalizeName(h)
		if key == "" {
			continue
		}
		if _, seen := index[key]; !seen {
			index[key] = i
			original[key] = strings.TrimSpace(h)
		}
	}

	var missing []string
	lookup := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		missing = append(missing, name)
		return -1
	}

	cm := ColumnMap{
		WorkSheetName: lookup("worksheetname"),
		TableID:       lookup("tableid"),
		MainCode:      lookup("maincode"),
		RowNumber:     lookup("rownumber"),
		SubCode:       lookup("subcode"),
		Org:           -1,
		Amount:        -1,
	}

	for _, c := range orgCandidates {
		if i, ok := index[c]; ok {
			cm.Org, cm.OrgHeader = i, original[c]
			break
		}
	}
	for _, c := range amountCandidates {
		if i, ok := index[c]; ok {
			cm.Amount, cm.AmountHeader = i, original[c]
			break
		}
	}
	if cm.Org < 0 {
		missing = append(missing, missingOrg)
	}
	if cm.Amount < 0 {
		missing = append(missing, missingAmount)
	}

	return cm, missing
}
