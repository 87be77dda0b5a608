package domain

import "time"

// WorkbookStatus is the outcome of reading one workbook
type WorkbookStatus string

const (
	WorkbookExtracted WorkbookStatus = "extracted"
	WorkbookSkipped   WorkbookStatus = "skipped"
)

// Skip reasons recorded for skipped workbooks
const (
	SkipUnrecognisedName       = "unrecognised_name"
	SkipWorksheetNotRecognised = "worksheet_not_recognised"
	SkipUnreadable             = "unreadable"
)

// WorkbookOutcome records what happened to one workbook in a run
type WorkbookOutcome struct {
	File        string         `json:"file"`
	Sector      string         `json:"sector,omitempty"`
	FY          string         `json:"fy,omitempty"`
	Status      WorkbookStatus `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Error       string         `json:"error,omitempty"`
	Sheet       string         `json:"sheet,omitempty"`
	MatchRule   string         `json:"match_rule,omitempty"`
	Rows        int            `json:"rows"`
	NullAmounts int            `json:"null_amounts"`
}

// RunStatus is the lifecycle state of a recorded run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded invocation of a pipeline command
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Rows       int64      `json:"rows"`
	Error      string     `json:"error,omitempty"`
}
