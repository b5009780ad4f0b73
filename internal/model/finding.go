package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Severity ranks how serious a finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// FindingStatus is the lifecycle state of a finding.
//
// pending is the only state a reviewer may act on. confirmed/rejected
// are reviewer-driven; superseded/archived are system-driven and
// terminal. All statuses remain queryable for audit.
type FindingStatus string

const (
	FindingPending    FindingStatus = "pending"
	FindingConfirmed  FindingStatus = "confirmed"
	FindingRejected   FindingStatus = "rejected"
	FindingSuperseded FindingStatus = "superseded"
	FindingArchived   FindingStatus = "archived"
)

// Decision is a reviewer adjudication outcome.
type Decision string

const (
	DecisionConfirmed Decision = "confirmed"
	DecisionRejected  Decision = "rejected"
)

// Status returns the finding status a decision transitions to.
func (d Decision) Status() FindingStatus {
	if d == DecisionConfirmed {
		return FindingConfirmed
	}
	return FindingRejected
}

// Valid reports whether d is a recognized decision.
func (d Decision) Valid() bool {
	return d == DecisionConfirmed || d == DecisionRejected
}

// Finding is a single issue raised by one checker against one unit.
// At most one active (pending) finding exists per (checker_id, unit_id).
type Finding struct {
	ID                    string        `json:"id"`
	DocumentID            string        `json:"document_id"`
	UnitID                string        `json:"unit_id"`
	CheckerID             string        `json:"checker_id"`
	Severity              Severity      `json:"severity"`
	Message               string        `json:"message"`
	Confidence            float64       `json:"confidence"`
	Status                FindingStatus `json:"status"`
	ContextSignature      string        `json:"context_signature"`
	DetectedAtFingerprint string        `json:"detected_at_fingerprint"`
	DetectedInScan        string        `json:"detected_in_scan"`
	AutoSuppressed        bool          `json:"auto_suppressed"`
	ReviewedBy            string        `json:"reviewed_by,omitempty"`
	ReviewedAt            *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// Active reports whether the finding still belongs to the document's
// current review surface (not yet superseded or archived).
func (f *Finding) Active() bool {
	switch f.Status {
	case FindingPending, FindingConfirmed, FindingRejected:
		return true
	default:
		return false
	}
}

// FindingEvent records one status transition for audit.
type FindingEvent struct {
	ID        string        `json:"id"`
	FindingID string        `json:"finding_id"`
	From      FindingStatus `json:"from"`
	To        FindingStatus `json:"to"`
	Actor     string        `json:"actor,omitempty"`
	At        time.Time     `json:"at"`
}

// findingTransitions is the allowed transition table. Reviewer actions
// only move pending findings; the orchestrator may supersede or archive
// any finding that is still active.
var findingTransitions = map[FindingStatus][]FindingStatus{
	FindingPending:   {FindingConfirmed, FindingRejected, FindingSuperseded, FindingArchived},
	FindingConfirmed: {FindingSuperseded, FindingArchived},
	FindingRejected:  {FindingSuperseded, FindingArchived},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to FindingStatus) bool {
	for _, next := range findingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition applies a status change in place, rejecting illegal moves.
func (f *Finding) Transition(to FindingStatus, actor string, at time.Time) (*FindingEvent, error) {
	if !CanTransition(f.Status, to) {
		return nil, eris.Errorf("finding %s: illegal transition %s -> %s", f.ID, f.Status, to)
	}
	ev := &FindingEvent{
		FindingID: f.ID,
		From:      f.Status,
		To:        to,
		Actor:     actor,
		At:        at,
	}
	f.Status = to
	f.UpdatedAt = at
	if to == FindingConfirmed || to == FindingRejected {
		f.ReviewedBy = actor
		reviewed := at
		f.ReviewedAt = &reviewed
	}
	return ev, nil
}
