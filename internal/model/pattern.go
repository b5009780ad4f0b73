package model

import "time"

// DecisionPattern aggregates reviewer adjudications for one class of
// finding, keyed by (checker_id, context_signature). Counts move only on
// explicit adjudications, never on automated re-scans, so suppression
// cannot train on its own output.
type DecisionPattern struct {
	CheckerID         string    `json:"checker_id"`
	ContextSignature  string    `json:"context_signature"`
	ConfirmCount      int       `json:"confirm_count"`
	RejectCount       int       `json:"reject_count"`
	SuppressionActive bool      `json:"suppression_active"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Samples is the total number of adjudications recorded for the pattern.
func (p *DecisionPattern) Samples() int {
	return p.ConfirmCount + p.RejectCount
}

// PatternKey identifies a decision pattern row.
type PatternKey struct {
	CheckerID        string `json:"checker_id"`
	ContextSignature string `json:"context_signature"`
}
