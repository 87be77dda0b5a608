package analytics

import (
	"sort"
)

// SubCodePresence records that a sub code appeared on a worksheet in a financial year
type SubCodePresence struct {
	FY        string
	SubCode   string
	WorkSheet string
	Label     string
}

// YearChange describes the sub code set of one financial year against the previous one
type YearChange struct {
	FY           string
	Total        int
	NewCodes     []string
	RemovedCodes []string
}

// SubCodeHistory is the presence of one sub code across years
type SubCodeHistory struct {
	SubCode          string
	Years            []string
	Label            string
	PrimaryWorkSheet string
}

// SchemaEvolution summarises how the TAC sub code set changed over time
type SchemaEvolution struct {
	Years      []YearChange
	SubCodes   []SubCodeHistory
	Stable     []string // present in every year
	Volatile   []string // present in exactly one year
	WorkSheets int
}

// AnalyzeSchema derives the year-on-year sub code changes. The first year
// reports all of its codes as new; removals start from the second year.
func AnalyzeSchema(presence []SubCodePresence) SchemaEvolution {
	byYear := make(map[string]map[string]bool)
	years := make(map[string]map[string]bool) // SubCode -> years
	label := make(map[string]string)
	wsCount := make(map[string]map[string]int) // SubCode -> worksheet -> occurrences
	worksheets := make(map[string]bool)

	for _, p := range presence {
		if byYear[p.FY] == nil {
			byYear[p.FY] = make(map[string]bool)
		}
		byYear[p.FY][p.SubCode] = true

		if years[p.SubCode] == nil {
			years[p.SubCode] = make(map[string]bool)
			wsCount[p.SubCode] = make(map[string]int)
		}
		years[p.SubCode][p.FY] = true
		wsCount[p.SubCode][p.WorkSheet]++
		worksheets[p.WorkSheet] = true

		if label[p.SubCode] == "" && p.Label != "" {
			label[p.SubCode] = p.Label
		}
	}

	fys := sortedKeys(byYear)
	evo := SchemaEvolution{WorkSheets: len(worksheets)}

	var prev map[string]bool
	for _, fy := range fys {
		current := byYear[fy]
		change := YearChange{FY: fy, Total: len(current)}
		for code := range current {
			if !prev[code] {
				change.NewCodes = append(change.NewCodes, code)
			}
		}
		for code := range prev {
			if !current[code] {
				change.RemovedCodes = append(change.RemovedCodes, code)
			}
		}
		sort.Strings(change.NewCodes)
		sort.Strings(change.RemovedCodes)
		evo.Years = append(evo.Years, change)
		prev = current
	}

	for _, code := range sortedKeys(years) {
		h := SubCodeHistory{
			SubCode:          code,
			Years:            sortedKeys(years[code]),
			Label:            label[code],
			PrimaryWorkSheet: primaryWorkSheet(wsCount[code]),
		}
		evo.SubCodes = append(evo.SubCodes, h)

		switch len(h.Years) {
		case len(fys):
			evo.Stable = append(evo.Stable, code)
		case 1:
			evo.Volatile = append(evo.Volatile, code)
		}
	}

	// most widely present first, then by code
	sort.SliceStable(evo.SubCodes, func(i, j int) bool {
		return len(evo.SubCodes[i].Years) > len(evo.SubCodes[j].Years)
	})

	return evo
}

// primaryWorkSheet returns the worksheet a code appears on most often, ties broken by name
func primaryWorkSheet(counts map[string]int) string {
	best, bestN := "", -1
	for _, ws := range sortedKeys(counts) {
		if counts[ws] > bestN {
			best, bestN = ws, counts[ws]
		}
	}
	return best
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
