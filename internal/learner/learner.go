// Package learner implements the adaptive decision loop: it scores
// historical reviewer adjudications per (checker, context signature)
// pattern and annotates fresh findings that match patterns reviewers have
// consistently rejected.
//
// The learner is deliberately one-directional: it reads pattern counters
// and writes only the AutoSuppressed flag on findings. Counters move only
// on explicit adjudications, so automated suppression can never feed its
// own training signal.
package learner

import (
	"github.com/sells-group/aegis/internal/model"
)

// Default hysteresis parameters.
const (
	DefaultMinSamples     = 10
	DefaultEnterThreshold = 0.8
	DefaultExitThreshold  = 0.5
	DefaultSmoothing      = 1.0
)

// Policy controls when a decision pattern enters and exits active
// suppression. EnterThreshold must be strictly greater than
// ExitThreshold; the gap is what prevents oscillation on borderline
// counts.
type Policy struct {
	// MinSamples is the minimum total adjudications (confirms + rejects)
	// before a pattern may activate suppression.
	MinSamples int `yaml:"min_samples" mapstructure:"min_samples"`

	// EnterThreshold is the minimum suppression score to activate.
	EnterThreshold float64 `yaml:"enter_threshold" mapstructure:"enter_threshold"`

	// ExitThreshold is the score below which an active suppression
	// deactivates. Strictly lower than EnterThreshold.
	ExitThreshold float64 `yaml:"exit_threshold" mapstructure:"exit_threshold"`

	// Smoothing is the additive constant k in the score denominator.
	Smoothing float64 `yaml:"smoothing" mapstructure:"smoothing"`
}

// DefaultPolicy returns the stock hysteresis configuration.
func DefaultPolicy() Policy {
	return Policy{
		MinSamples:     DefaultMinSamples,
		EnterThreshold: DefaultEnterThreshold,
		ExitThreshold:  DefaultExitThreshold,
		Smoothing:      DefaultSmoothing,
	}
}

// normalized fills zero values with defaults so a partially configured
// policy behaves sanely.
func (p Policy) normalized() Policy {
	if p.MinSamples <= 0 {
		p.MinSamples = DefaultMinSamples
	}
	if p.EnterThreshold <= 0 {
		p.EnterThreshold = DefaultEnterThreshold
	}
	if p.ExitThreshold <= 0 {
		p.ExitThreshold = DefaultExitThreshold
	}
	if p.Smoothing <= 0 {
		p.Smoothing = DefaultSmoothing
	}
	return p
}

// Score computes the smoothed rejection ratio
// reject / (confirm + reject + k) for a pattern's counters.
func (p Policy) Score(confirm, reject int) float64 {
	p = p.normalized()
	denom := float64(confirm+reject) + p.Smoothing
	if denom == 0 {
		return 0
	}
	return float64(reject) / denom
}

// Next returns the suppression state after an adjudication, given the
// updated counters and whether suppression was previously active.
//
// A pattern activates only once it has at least MinSamples total
// adjudications and its score reaches EnterThreshold. Once active it
// stays active until the score falls below the strictly lower
// ExitThreshold.
func (p Policy) Next(confirm, reject int, active bool) bool {
	p = p.normalized()
	score := p.Score(confirm, reject)
	if active {
		return score >= p.ExitThreshold
	}
	return confirm+reject >= p.MinSamples && score >= p.EnterThreshold
}

// Annotate flags findings whose (checker, signature) matches an active
// suppression pattern. Suppressed findings are still created and
// persisted for audit; they are only excluded from default views and
// severity tallies. Returns the number of findings flagged.
func Annotate(findings []model.Finding, active map[model.PatternKey]bool) int {
	n := 0
	for i := range findings {
		key := model.PatternKey{
			CheckerID:        findings[i].CheckerID,
			ContextSignature: findings[i].ContextSignature,
		}
		if active[key] {
			findings[i].AutoSuppressed = true
			n++
		}
	}
	return n
}
