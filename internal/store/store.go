// Package store defines the persistence interface for documents, scans,
// findings, and decision patterns, with SQLite and PostgreSQL backends.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/aegis/internal/learner"
	"github.com/sells-group/aegis/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrNotPending is returned when an adjudication targets a finding that
// is no longer pending (already adjudicated, superseded, or archived).
var ErrNotPending = eris.New("store: finding not pending")

// FindingFilter specifies criteria for listing findings. The zero value
// is the default reviewer view: pending findings that are not
// auto-suppressed.
type FindingFilter struct {
	DocumentID string                `json:"document_id,omitempty"`
	UnitID     string                `json:"unit_id,omitempty"`
	CheckerID  string                `json:"checker_id,omitempty"`
	Statuses   []model.FindingStatus `json:"statuses,omitempty"`
	// IncludeSuppressed includes auto-suppressed findings, which are
	// hidden from default views but kept for audit.
	IncludeSuppressed bool `json:"include_suppressed,omitempty"`
	// AllStatuses disables the default pending-only restriction.
	AllStatuses bool `json:"all_statuses,omitempty"`
	Limit       int  `json:"limit,omitempty"`
	Offset      int  `json:"offset,omitempty"`
}

// ScanCommit is everything one scan writes, applied in a single
// transaction so a failed commit leaves prior state untouched.
type ScanCommit struct {
	// Scan carries the terminal status, fingerprint snapshot, stats, and
	// diagnostics for the scan row created at submission time.
	Scan *model.Scan

	// Document and its units as observed by this scan (processed units
	// carry fresh fingerprints).
	Document *model.Document

	// NewFindings are learner-annotated findings from added/changed units.
	NewFindings []model.Finding

	// SupersededIDs and ArchivedIDs are prior active findings to
	// transition; each transition appends a finding event.
	SupersededIDs []string
	ArchivedIDs   []string

	// RemovedUnitIDs are units no longer present in the document.
	RemovedUnitIDs []string
}

// Store is the persistence boundary for the scan core. Implementations
// must make CommitScan and AdjudicateFinding atomic; concurrent
// adjudications must not lose pattern counter updates.
type Store interface {
	// Documents
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)

	// Scans
	CreateScan(ctx context.Context, scan *model.Scan) error
	GetScan(ctx context.Context, scanID string) (*model.Scan, error)
	// ListScans returns recent scans newest first. An empty documentID
	// lists scans across all documents.
	ListScans(ctx context.Context, documentID string, limit int) ([]model.Scan, error)
	// LatestSnapshot returns the most recent completed or partial scan
	// for the document, whose snapshot is the diff base for the next
	// scan. Returns ErrNotFound when the document has never been scanned.
	LatestSnapshot(ctx context.Context, documentID string) (*model.Scan, error)
	MarkScanFailed(ctx context.Context, scanID string, cause string) error
	CommitScan(ctx context.Context, commit ScanCommit) error

	// Findings
	GetFinding(ctx context.Context, findingID string) (*model.Finding, error)
	ListFindings(ctx context.Context, filter FindingFilter) ([]model.Finding, error)
	ListFindingEvents(ctx context.Context, findingID string) ([]model.FindingEvent, error)
	// ActiveFindings returns all non-superseded, non-archived findings
	// for a document keyed by unit ID.
	ActiveFindings(ctx context.Context, documentID string) (map[string][]model.Finding, error)

	// AdjudicateFinding atomically verifies the finding is pending,
	// applies the decision, increments the matching decision pattern
	// counter, and re-evaluates suppression under the policy.
	AdjudicateFinding(ctx context.Context, findingID string, decision model.Decision, reviewer string, policy learner.Policy) (*model.Finding, error)

	// Decision patterns
	GetPattern(ctx context.Context, checkerID, contextSignature string) (*model.DecisionPattern, error)
	ListPatterns(ctx context.Context, limit int) ([]model.DecisionPattern, error)
	// ActiveSuppressions returns the set of pattern keys with
	// suppression currently active.
	ActiveSuppressions(ctx context.Context) (map[model.PatternKey]bool, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
