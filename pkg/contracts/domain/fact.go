package domain

import "github.com/shopspring/decimal"

// Sector identifies the NHS provider classification a workbook reports for
type Sector string

const (
	SectorTrust Sector = "Trust" // NHS Trust
	SectorFT    Sector = "FT"    // NHS Foundation Trust
)

// Sectors lists the sectors in reporting order
var Sectors = []Sector{SectorTrust, SectorFT}

// DisplayName returns the long-form sector label used in charts and reports
func (s Sector) DisplayName() string {
	switch s {
	case SectorTrust:
		return "NHS Trust"
	case SectorFT:
		return "NHS Foundation Trust"
	default:
		return string(s)
	}
}

// FactRecord is one row of the long-form TAC fact table.
// Column names match the canonical parquet file and the fact_tru_tac table.
type FactRecord struct {
	OrgName       string   `parquet:"org_name_raw" json:"org_name_raw"`
	WorkSheetName string   `parquet:"WorkSheetName" json:"WorkSheetName"`
	TableID       string   `parquet:"TableID" json:"TableID"`
	MainCode      string   `parquet:"MainCode" json:"MainCode"`
	RowNumber     string   `parquet:"RowNumber" json:"RowNumber"`
	SubCode       string   `parquet:"SubCode" json:"SubCode"`
	Amount        *float64 `parquet:"amount" json:"amount"`
	FY            string   `parquet:"fy" json:"fy"`
	Sector        string   `parquet:"sector" json:"sector"`
	SourceFile    string   `parquet:"source_file" json:"source_file"`
	SchemaVersion string   `parquet:"schema_version" json:"schema_version"`
}

// FactColumns is the column order shared by the parquet file, the database table and CSV exports
var FactColumns = []string{
	"org_name_raw", "WorkSheetName", "TableID", "MainCode", "RowNumber", "SubCode",
	"amount", "fy", "sector", "source_file", "schema_version",
}

// FactKey is the natural key of a fact record
type FactKey struct {
	FY        string
	Sector    string
	OrgName   string
	TableID   string
	MainCode  string
	SubCode   string
	RowNumber string
}

// Key returns the natural key of the record
func (r FactRecord) Key() FactKey {
	return FactKey{
		FY:        r.FY,
		Sector:    r.Sector,
		OrgName:   r.OrgName,
		TableID:   r.TableID,
		MainCode:  r.MainCode,
		SubCode:   r.SubCode,
		RowNumber: r.RowNumber,
	}
}

// AbsAmount returns |amount|, treating null as zero
func (r FactRecord) AbsAmount() float64 {
	if r.Amount == nil {
		return 0
	}
	if *r.Amount < 0 {
		return -*r.Amount
	}
	return *r.Amount
}

// WorkbookMeta is the provenance parsed from a TAC workbook file name
type WorkbookMeta struct {
	FileName      string `json:"file_name" validate:"required"`
	Sector        Sector `json:"sector" validate:"required,oneof=Trust FT"`
	FY            string `json:"fy" validate:"required,len=7"`
	SchemaVersion string `json:"schema_version"`
}

// QCRow is the per year and sector quality summary of the fact table.
// TotalAmount is summed exactly from the reported values.
type QCRow struct {
	FY          string          `json:"fy"`
	Sector      string          `json:"sector"`
	Rows        int64           `json:"rows"`
	NullAmounts int64           `json:"null_amounts"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}
