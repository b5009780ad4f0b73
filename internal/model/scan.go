package model

import "time"

// ScanStatus is the lifecycle state of a scan run.
type ScanStatus string

const (
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
	// ScanPartial means the wall-clock budget expired before every unit
	// was processed; results for processed units are committed.
	ScanPartial ScanStatus = "partial"
)

// Terminal reports whether the scan will make no further progress.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed || s == ScanPartial
}

// CheckerFailure is a diagnostic entry for one checker erroring on one
// unit. It never aborts the scan.
type CheckerFailure struct {
	CheckerID string `json:"checker_id"`
	UnitID    string `json:"unit_id"`
	Error     string `json:"error"`
}

// ScanStats summarizes one scan run.
type ScanStats struct {
	UnitsTotal     int `json:"units_total"`
	UnitsAdded     int `json:"units_added"`
	UnitsChanged   int `json:"units_changed"`
	UnitsUnchanged int `json:"units_unchanged"`
	UnitsRemoved   int `json:"units_removed"`
	UnitsProcessed int `json:"units_processed"`
	FindingsNew    int `json:"findings_new"`
	Suppressed     int `json:"suppressed"`
	Superseded     int `json:"superseded"`
	Archived       int `json:"archived"`
}

// Scan is a point-in-time run over a document. Snapshot maps unit ID to
// content fingerprint as of this scan and is what the next scan diffs
// against.
type Scan struct {
	ID          string            `json:"id"`
	DocumentID  string            `json:"document_id"`
	Status      ScanStatus        `json:"status"`
	Snapshot    map[string]string `json:"snapshot,omitempty"`
	Stats       ScanStats         `json:"stats"`
	Diagnostics []CheckerFailure  `json:"diagnostics,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}
