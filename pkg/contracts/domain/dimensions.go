package domain

// ProviderDim is one organisation observed in the fact table
type ProviderDim struct {
	Sector   string `json:"sector"`
	OrgName  string `json:"org_name_raw"`
	FirstFY  string `json:"first_fy"`
	LastFY   string `json:"last_fy"`
	RowCount int64  `json:"row_count"`
}

// SubCodeDim tracks where and when a sub code appears
type SubCodeDim struct {
	SubCode       string   `json:"SubCode"`
	WorkSheetName string   `json:"WorkSheetName"`
	FirstFY       string   `json:"first_fy"`
	LastFY        string   `json:"last_fy"`
	YearsPresent  int      `json:"years_present"`
	Years         []string `json:"fy_list"`
}

// TACLine is a distinct line-item position in the TAC template.
// Label and category columns are left blank for manual curation.
type TACLine struct {
	TableID         string `json:"TableID"`
	MainCode        string `json:"MainCode"`
	SubCode         string `json:"SubCode"`
	RowNumber       string `json:"RowNumber"`
	LineLabel       string `json:"line_label"`
	Category1       string `json:"category_1"`
	Category2       string `json:"category_2"`
	IsDigitalDataIT string `json:"is_digital_data_it"`
	Notes           string `json:"notes"`
}

// SubCodeLabel is a sub code label harvested from an illustrative reference workbook
type SubCodeLabel struct {
	FY            string `json:"fy"`
	WorkSheetName string `json:"WorkSheetName"`
	WSKey         string `json:"ws_key"`
	SubCode       string `json:"SubCode"`
	Label         string `json:"subcode_label"`
	SourceFile    string `json:"source_file"`
}
